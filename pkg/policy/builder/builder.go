package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/dsl"
	"gatekeeper-hq/gatekeeper/pkg/dsl/compiler"
	"gatekeeper-hq/gatekeeper/pkg/policy/git"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/metrics"
)

// SourceExtension is the extension of policy source files.
const SourceExtension = ".dsl"

// Options controls a build.
type Options struct {
	// SourceDir is walked recursively for .dsl files.
	SourceDir string

	// OutputDir receives the compiled artifacts and manifest.json.
	OutputDir string

	// Workers bounds the number of files compiled concurrently.
	Workers int

	// Atomic stages the output and publishes it only when every file
	// compiled. When false, artifacts of files that compiled stay in
	// OutputDir even if other files failed.
	Atomic bool

	// MaxFileSize rejects larger source files. Zero disables the check.
	MaxFileSize int64
}

// OptionsFromConfig builds Options from the policy configuration.
func OptionsFromConfig(cfg *config.PolicyConfig) Options {
	return Options{
		SourceDir:   cfg.SourceDir,
		OutputDir:   cfg.CompiledDir,
		Workers:     cfg.Workers,
		Atomic:      cfg.Atomic,
		MaxFileSize: cfg.MaxFileSize,
	}
}

// GitSource is a policy source that must be synchronised before a build.
// *git.Repository implements it.
type GitSource interface {
	Sync(ctx context.Context) (*git.SyncResult, error)
	CurrentCommit() (*git.CommitInfo, error)
	PolicyDir() string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logging.Component(logger, "builder") }
}

// WithMetrics records build metrics.
func WithMetrics(m *metrics.BuildMetrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithGitSource syncs the repository before each build, compiles from its
// policy directory and records the commit in the manifest.
func WithGitSource(src GitSource) Option {
	return func(b *Builder) { b.git = src }
}

// WithClock overrides the time source used for compiled_at.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// Builder compiles a tree of policy sources into rule artifacts.
// A Builder is safe to reuse but concurrent builds into the same output
// directory must be serialised by the caller.
type Builder struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.BuildMetrics
	git     GitSource
	now     func() time.Time
}

// New creates a builder.
func New(opts Options, options ...Option) *Builder {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	b := &Builder{
		opts:   opts,
		logger: logging.Component(nil, "builder"),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Result is the outcome of a build.
type Result struct {
	Manifest *Manifest

	// Files is the number of source files found.
	Files int

	// Rules is the number of artifacts written.
	Rules int

	// Errors holds one entry per file that failed, in walk order.
	Errors []*FileError

	// Success is true when every file compiled.
	Success bool

	// OutputDir is where the manifest was written. Empty when an atomic
	// build failed and nothing was published.
	OutputDir string

	Duration time.Duration
}

// Err joins the file errors, or returns nil for a successful build.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

type fileOutcome struct {
	path     string
	policyID string
	entry    PolicyEntry
	// artifacts maps file names to encoded rules. Only the merge step
	// writes them, after the policy id is accepted.
	artifacts []artifact
	err       error
}

type artifact struct {
	name string
	body []byte
}

// Build compiles every .dsl file under the source directory. File-local
// failures are collected in Result.Errors and never stop the walk; the
// returned error is reserved for failures of the build itself (missing
// source directory, unwritable output, cancellation).
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	result, err := b.build(ctx)
	b.metrics.RecordBuild(err == nil && result.Success, time.Since(start))
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	if result.Success {
		b.logger.Info("build complete",
			"files", result.Files,
			"rules", result.Rules,
			"output", result.OutputDir,
			"duration", result.Duration,
		)
	} else {
		for _, fe := range result.Errors {
			b.logger.Error("policy failed to compile", "path", fe.Path, "error", fe.Err)
		}
		b.logger.Error("build failed", "files", result.Files, "errors", len(result.Errors))
	}
	return result, nil
}

func (b *Builder) build(ctx context.Context) (*Result, error) {
	sourceDir := b.opts.SourceDir
	var source *SourceInfo

	if b.git != nil {
		if _, err := b.git.Sync(ctx); err != nil {
			return nil, fmt.Errorf("failed to sync policy repository: %w", err)
		}
		commit, err := b.git.CurrentCommit()
		if err != nil {
			return nil, fmt.Errorf("failed to read policy repository commit: %w", err)
		}
		sourceDir = b.git.PolicyDir()
		source = &SourceInfo{
			Repository: commit.Repository,
			Branch:     commit.Branch,
			Commit:     commit.SHA,
		}
	}

	files, err := collectSources(sourceDir)
	if err != nil {
		return nil, err
	}
	b.logger.Info("starting build", "source", sourceDir, "output", b.opts.OutputDir, "files", len(files))

	writeDir := b.opts.OutputDir
	if b.opts.Atomic {
		writeDir, err = b.stagingDir()
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(writeDir)
	} else if err := os.MkdirAll(writeDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var previous *Manifest
	if !b.opts.Atomic {
		// A missing or unreadable manifest only means nothing to prune.
		previous, _ = LoadManifest(filepath.Join(writeDir, ManifestFile))
	}

	outcomes := make([]fileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = b.processFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build cancelled: %w", err)
	}

	// Single writer: merge outcomes in walk order.
	result := &Result{Files: len(files)}
	policies := make(map[string]PolicyEntry, len(files))
	definedIn := make(map[string]string, len(files))
	for _, o := range outcomes {
		if o.err != nil {
			result.Errors = append(result.Errors, &FileError{Path: o.path, Err: o.err})
			continue
		}
		if prev, dup := definedIn[o.policyID]; dup {
			result.Errors = append(result.Errors, &FileError{
				Path: o.path,
				Err:  fmt.Errorf("duplicate policy id %s (also defined in %s)", o.policyID, prev),
			})
			continue
		}
		if err := writeArtifacts(writeDir, o.artifacts); err != nil {
			result.Errors = append(result.Errors, &FileError{Path: o.path, Err: err})
			continue
		}
		definedIn[o.policyID] = o.path
		policies[o.policyID] = o.entry
		result.Rules += len(o.entry.Rules)
	}
	result.Success = len(result.Errors) == 0

	if previous != nil {
		b.pruneStale(writeDir, previous, policies)
	}

	digest, err := ComputeDigest(policies)
	if err != nil {
		return nil, err
	}
	result.Manifest = &Manifest{
		CompiledAt:      b.now().UTC().Format(time.RFC3339Nano),
		CompilerVersion: compiler.Version,
		Digest:          digest,
		Source:          source,
		Policies:        policies,
	}

	if b.opts.Atomic && !result.Success {
		return result, nil
	}

	if err := writeManifest(writeDir, result.Manifest); err != nil {
		return nil, err
	}
	if b.opts.Atomic {
		if err := publish(writeDir, b.opts.OutputDir); err != nil {
			return nil, err
		}
	}
	result.OutputDir = b.opts.OutputDir
	return result, nil
}

// processFile compiles one source file and encodes its artifacts without
// touching the output directory.
func (b *Builder) processFile(ctx context.Context, path string) fileOutcome {
	out := fileOutcome{path: path}

	b.logger.Debug("processing policy", "path", path)

	data, err := b.readSource(path)
	if err != nil {
		out.err = err
		b.metrics.RecordFile(false, 0)
		return out
	}

	source := string(data)
	policy, rules, err := dsl.CompileSource(source, path)
	if err != nil {
		out.err = err
		b.metrics.RecordFile(false, 0)
		return out
	}

	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		body, err := rule.Marshal()
		if err != nil {
			out.err = fmt.Errorf("failed to encode %s: %w", rule.ID, err)
			b.metrics.RecordFile(false, 0)
			return out
		}
		out.artifacts = append(out.artifacts, artifact{name: rule.Filename, body: body})
		ids = append(ids, rule.ID)
	}

	out.policyID = compiler.NormalizeID(policy.PolicyID)
	out.entry = PolicyEntry{
		SourceHash: compiler.SourceHash(source),
		Version:    policy.Version,
		Rules:      ids,
	}
	b.metrics.RecordFile(true, len(ids))
	b.logger.DebugContext(logging.WithPolicyID(ctx, out.policyID), "policy compiled",
		"path", path,
		"rules", len(ids),
	)
	return out
}

func writeArtifacts(dir string, artifacts []artifact) error {
	for _, a := range artifacts {
		if err := os.WriteFile(filepath.Join(dir, a.name), a.body, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.name, err)
		}
	}
	return nil
}

// pruneStale removes artifacts the previous manifest listed for a policy
// that was rebuilt with fewer rules. Policies absent from this build keep
// their files.
func (b *Builder) pruneStale(dir string, previous *Manifest, current map[string]PolicyEntry) {
	for id, old := range previous.Policies {
		entry, ok := current[id]
		if !ok {
			continue
		}
		keep := make(map[string]bool, len(entry.Rules))
		for _, ruleID := range entry.Rules {
			keep[ruleID] = true
		}
		for _, ruleID := range old.Rules {
			if keep[ruleID] {
				continue
			}
			path := filepath.Join(dir, ruleID+compiler.ArtifactExtension)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				b.logger.Warn("failed to remove stale artifact", "path", path, "error", err)
				continue
			}
			b.logger.Debug("removed stale artifact", "policy", id, "rule", ruleID)
		}
	}
}

func (b *Builder) readSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if b.opts.MaxFileSize > 0 && info.Size() > b.opts.MaxFileSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum %d bytes", info.Size(), b.opts.MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file contains invalid UTF-8 encoding")
	}
	return data, nil
}

// stagingDir creates a temporary directory next to the output directory so
// the final rename stays on one filesystem.
func (b *Builder) stagingDir() (string, error) {
	parent := filepath.Dir(filepath.Clean(b.opts.OutputDir))
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", fmt.Errorf("failed to create output parent directory: %w", err)
	}
	dir, err := os.MkdirTemp(parent, ".gatekeeper-staging-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.Chmod(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to set staging directory permissions: %w", err)
	}
	return dir, nil
}

// publish replaces outDir with staging. The previous output is restored if
// the swap fails.
func publish(staging, outDir string) error {
	backup := ""
	if _, err := os.Stat(outDir); err == nil {
		backup = filepath.Clean(outDir) + ".previous"
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("failed to clear previous output backup: %w", err)
		}
		if err := os.Rename(outDir, backup); err != nil {
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
	}

	if err := os.Rename(staging, outDir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, outDir)
		}
		return fmt.Errorf("failed to publish build output: %w", err)
	}

	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// collectSources returns every .dsl file under dir in lexical order.
// Hidden directories are skipped.
func collectSources(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, dir)
		}
		return nil, fmt.Errorf("failed to access source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == SourceExtension {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source directory: %w", err)
	}
	return files, nil
}

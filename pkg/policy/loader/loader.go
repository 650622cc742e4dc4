package loader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

// DefaultMaxFileSize bounds a single artifact.
const DefaultMaxFileSize = int64(1048576)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used to report skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logging.Component(logger, "loader") }
}

// WithMaxFileSize overrides the artifact size limit.
func WithMaxFileSize(n int64) Option {
	return func(l *Loader) { l.maxFileSize = n }
}

// Loader reads compiled rule artifacts from a directory tree.
type Loader struct {
	dir         string
	maxFileSize int64
	logger      *slog.Logger
}

// New creates a loader rooted at dir.
func New(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:         dir,
		maxFileSize: DefaultMaxFileSize,
		logger:      logging.Component(nil, "loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is the outcome of loading a directory.
type Result struct {
	// Rules are the enabled rules in evaluation order.
	Rules []*Rule

	// Disabled counts rules skipped because enabled is false.
	Disabled int

	// Skipped holds one error per file that could not be loaded.
	Skipped []*LoadError
}

// LoadAll returns every enabled rule under the directory sorted by
// priority (descending) then policy id. Malformed files are logged and
// skipped. A missing directory yields no rules.
func (l *Loader) LoadAll(ctx context.Context) ([]*Rule, error) {
	res, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return res.Rules, nil
}

// Load is LoadAll with the skipped files reported.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	res := &Result{Rules: []*Rule{}}

	if _, err := os.Stat(l.dir); err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("rule directory does not exist", "dir", l.dir)
			return res, nil
		}
		return nil, &LoadError{FilePath: l.dir, Message: "failed to access directory", Cause: err}
	}

	paths, err := l.collect()
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rule, err := l.LoadFile(path)
		if err != nil {
			le, ok := err.(*LoadError)
			if !ok {
				le = &LoadError{FilePath: path, Message: "failed to load", Cause: err}
			}
			l.logger.Warn("skipping rule file", "path", path, "error", le)
			res.Skipped = append(res.Skipped, le)
			continue
		}
		if !rule.Enabled {
			res.Disabled++
			continue
		}
		res.Rules = append(res.Rules, rule)
	}

	SortRules(res.Rules)

	l.logger.Debug("rules loaded",
		"dir", l.dir,
		"rules", len(res.Rules),
		"disabled", res.Disabled,
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// SortRules orders rules by priority descending, then policy id ascending.
// Rules with equal keys keep their relative order.
func SortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		pi, pj := rules[i].Priority(), rules[j].Priority()
		if pi != pj {
			return pi > pj
		}
		return rules[i].PolicyID < rules[j].PolicyID
	})
}

// LoadFile loads one artifact with size, UTF-8 and schema checks.
func (l *Loader) LoadFile(path string) (*Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.maxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: path, Message: "file contains invalid UTF-8 encoding"}
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{FilePath: path, Message: "YAML parsing failed", Cause: err}
	}

	rule, err := doc.toRule(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "invalid rule", Cause: err}
	}
	return rule, nil
}

func (l *Loader) collect() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: l.dir, Message: "failed to walk directory", Cause: err}
	}
	return paths, nil
}

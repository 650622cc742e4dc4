package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/policy/builder"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

// ErrBuildFailed is wrapped by Rebuild when at least one source file did
// not compile. The previous rule set stays loaded.
var ErrBuildFailed = errors.New("policy build failed")

// Reloader is notified after each successful build. *engine.Engine
// implements it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadFunc adapts a function to Reloader.
type ReloadFunc func(ctx context.Context) error

// Reload calls f.
func (f ReloadFunc) Reload(ctx context.Context) error { return f(ctx) }

// Config contains the watch settings of a Manager.
type Config struct {
	SourceDir string
	Debounce  time.Duration
}

// ConfigFrom builds a Config from the policy configuration.
func ConfigFrom(cfg *config.PolicyConfig) Config {
	return Config{SourceDir: cfg.SourceDir, Debounce: cfg.Debounce}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(logger, "manager") }
}

// WithClock overrides the time source of Status.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Event describes one rebuild.
type Event struct {
	Result *builder.Result
	Diff   *builder.ManifestDiff

	// Reloaded is false when the build failed or a subscriber rejected
	// the new output.
	Reloaded bool
}

// Status is a snapshot of the manager's history.
type Status struct {
	Builds    int       `json:"builds"`
	Failures  int       `json:"failures"`
	LastBuild time.Time `json:"last_build"`
	LastError string    `json:"last_error,omitempty"`
	Digest    string    `json:"digest,omitempty"`
	Rules     int       `json:"rules"`
}

// Manager rebuilds the compiled rule set and reloads its subscribers.
// Rebuilds are serialised.
type Manager struct {
	builder *builder.Builder
	config  Config
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	subscribers []Reloader
	manifest    *builder.Manifest
	status      Status
}

// New creates a manager.
func New(b *builder.Builder, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		builder: b,
		config:  cfg,
		logger:  logging.Component(nil, "manager"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers r to be reloaded after each successful build.
// Subscribers run in registration order.
func (m *Manager) Subscribe(r Reloader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, r)
}

// Status returns a snapshot of the rebuild history.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Manifest returns the manifest of the last successful build, or nil.
func (m *Manager) Manifest() *builder.Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifest
}

// Rebuild compiles the sources and, when every file compiled, reloads the
// subscribers. A failed build leaves subscribers on the previous output and
// returns an error wrapping ErrBuildFailed.
func (m *Manager) Rebuild(ctx context.Context) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.Builds++
	m.status.LastBuild = m.now()

	result, err := m.builder.Build(ctx)
	if err != nil {
		return nil, m.fail(err)
	}

	event := &Event{Result: result}
	if !result.Success {
		return event, m.fail(fmt.Errorf("%w: %w", ErrBuildFailed, result.Err()))
	}

	if m.manifest != nil {
		event.Diff = builder.DiffManifests(m.manifest, result.Manifest)
		m.logDiff(event.Diff)
	}

	for _, sub := range m.subscribers {
		if err := sub.Reload(ctx); err != nil {
			return event, m.fail(fmt.Errorf("failed to reload: %w", err))
		}
	}

	event.Reloaded = true
	m.manifest = result.Manifest
	m.status.LastError = ""
	m.status.Digest = result.Manifest.Digest
	m.status.Rules = result.Manifest.RuleCount()
	return event, nil
}

func (m *Manager) fail(err error) error {
	m.status.Failures++
	m.status.LastError = err.Error()
	return err
}

func (m *Manager) logDiff(diff *builder.ManifestDiff) {
	if diff.Empty() {
		m.logger.Debug("rule set unchanged")
		return
	}
	m.logger.Info("rule set changed",
		"added", diff.Added,
		"removed", diff.Removed,
		"changed", len(diff.Changed),
	)
	for _, c := range diff.Changed {
		if c.Version == builder.VersionDowngrade {
			m.logger.Warn("policy version downgraded",
				"policy_id", c.PolicyID,
				"from", c.OldVersion,
				"to", c.NewVersion,
			)
		}
	}
}

// Watch rebuilds whenever a source file changes, until ctx is cancelled.
// The caller is expected to have run an initial Rebuild.
func (m *Manager) Watch(ctx context.Context) error {
	wcfg := DefaultWatcherConfig(m.config.SourceDir)
	if m.config.Debounce > 0 {
		wcfg.Debounce = m.config.Debounce
	}

	w, err := NewWatcher(wcfg, m.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Stop(); err != nil {
			m.logger.Warn("failed to stop watcher", "error", err)
		}
	}()

	return w.Watch(ctx, func(path string) {
		m.logger.Info("rebuilding policies", "trigger", path)
		if _, err := m.Rebuild(ctx); err != nil {
			m.logger.Error("rebuild failed, keeping previous rules", "error", err)
		}
	})
}

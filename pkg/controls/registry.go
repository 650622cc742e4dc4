package controls

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/metrics"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report failing controls.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logging.Component(logger, "controls") }
}

// WithMetrics counts control failures.
func WithMetrics(m *metrics.EvaluationMetrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithTimeout bounds a RunAll call. Zero means no bound.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// WithControls replaces the default control list.
func WithControls(controls ...Control) RegistryOption {
	return func(r *Registry) { r.controls = append([]Control(nil), controls...) }
}

// Registry runs a fixed, ordered list of controls.
type Registry struct {
	mu       sync.RWMutex
	controls []Control

	logger  *slog.Logger
	metrics *metrics.EvaluationMetrics
	timeout time.Duration
}

// DefaultControls returns the built-in controls in merge order.
func DefaultControls() []Control {
	return []Control{
		NewPrivilegedChangeControl(),
		NewSecretsControl(),
		NewApprovalsControl(),
		NewLicensesControl(),
		NewEnvBoundaryControl(),
	}
}

// NewRegistry creates a registry holding DefaultControls.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		controls: DefaultControls(),
		logger:   logging.Component(nil, "controls"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a control. It runs after the existing ones in merge
// order.
func (r *Registry) Register(c Control) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = append(r.controls, c)
}

// Controls returns a copy of the registered controls in merge order.
func (r *Registry) Controls() []Control {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Control(nil), r.controls...)
}

// RunAll executes every control concurrently and merges their outputs in
// registration order, so a later control's signal wins on a key clash.
// A control that fails or panics is logged and contributes nothing; RunAll
// itself never fails.
func (r *Registry) RunAll(ctx context.Context, cctx *Context) *SignalSet {
	controls := r.Controls()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	results := make([]*SignalSet, len(controls))
	var g errgroup.Group
	for i, c := range controls {
		g.Go(func() error {
			set, err := runControl(ctx, c, cctx)
			if err != nil {
				r.logger.Warn("control failed",
					"control", c.ID(),
					"repo", cctx.Repo,
					"change", cctx.ChangeID,
					"error", err,
				)
				r.metrics.RecordControlError(c.ID())
				return nil
			}
			results[i] = set
			return nil
		})
	}
	_ = g.Wait()

	merged := NewSignalSet()
	for _, set := range results {
		merged.Merge(set)
	}
	return merged
}

func runControl(ctx context.Context, c Control, cctx *Context) (set *SignalSet, err error) {
	defer func() {
		if p := recover(); p != nil {
			set, err = nil, fmt.Errorf("control panicked: %v", p)
		}
	}()
	return c.Execute(ctx, cctx)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gatekeeper-hq/gatekeeper/pkg/cli"
	"gatekeeper-hq/gatekeeper/pkg/evidence"
	"gatekeeper-hq/gatekeeper/pkg/evidence/retention"
	"gatekeeper-hq/gatekeeper/pkg/evidence/storage"
	"gatekeeper-hq/gatekeeper/pkg/policy/manager"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/health"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/metrics"
)

var watchFlags struct {
	source      string
	metricsAddr string
	poll        time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild policies whenever their sources change",
	Long: `Build the policies, load them and rebuild on every change to a .dsl file
under the source directory. A build that fails keeps the previous rules
loaded.

With a git policy source, file events are not available; the repository is
pulled and rebuilt every --poll interval instead (default 1m).

When evidence is enabled, records are pruned on the configured retention
schedule. With --metrics-addr, Prometheus metrics are served on /metrics
and probes on /healthz and /readyz.

Examples:
  gatekeeper watch
  gatekeeper watch --metrics-addr :9090
  gatekeeper watch --poll 30s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchFlags.source, "source", "s", "", "policy source directory (overrides policy.source_dir)")
	watchCmd.Flags().StringVar(&watchFlags.metricsAddr, "metrics-addr", "", "serve metrics and health probes on this address")
	watchCmd.Flags().DurationVar(&watchFlags.poll, "poll", 0, "rebuild on an interval instead of on file events")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if watchFlags.source != "" {
		cfg.Policy.SourceDir = watchFlags.source
	}
	poll := watchFlags.poll
	if poll == 0 && cfg.Policy.Git.Repository != "" {
		poll = time.Minute
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var collector *metrics.Collector
	var buildMetrics *metrics.BuildMetrics
	var evalMetrics *metrics.EvaluationMetrics
	var evidenceMetrics *metrics.EvidenceMetrics
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		buildMetrics = collector.Build
		evalMetrics = collector.Evaluation
		evidenceMetrics = collector.Evidence
	}

	b, err := newBuilder(cfg, logger, buildMetrics)
	if err != nil {
		return cli.NewCommandError("watch", err)
	}
	mgr := manager.New(b, manager.ConfigFrom(&cfg.Policy), manager.WithLogger(logger))

	// The engine needs a compiled tree to start from.
	if _, err := mgr.Rebuild(ctx); err != nil {
		return cli.NewCommandError("watch", err)
	}
	eng, injector, err := newEngine(ctx, cfg, logger, cfg.Policy.CompiledDir, evalMetrics)
	if err != nil {
		return cli.NewCommandError("watch", err)
	}
	if injector != nil {
		mgr.Subscribe(manager.ReloadFunc(func(context.Context) error {
			injector.Reset()
			return nil
		}))
	}
	mgr.Subscribe(eng)

	checker := health.New(2 * time.Second)
	checker.Register("policies", func(context.Context) error {
		if s := mgr.Status(); s.LastError != "" {
			return errors.New(s.LastError)
		}
		if len(eng.Rules()) == 0 {
			return errors.New("no rules loaded")
		}
		return nil
	})

	if cfg.Evidence.Enabled {
		store, err := storage.Open(cfg.Evidence, logger)
		if err != nil {
			return cli.NewCommandError("watch", err)
		}
		defer store.Close()

		pruner := retention.NewPruner(store, retention.ConfigFrom(cfg.Evidence.Retention),
			retention.WithLogger(logger),
			retention.WithMetrics(evidenceMetrics),
		)
		if err := pruner.Start(ctx); err != nil {
			return cli.NewCommandError("watch", err)
		}
		defer pruner.Stop()

		checker.Register("evidence", func(ctx context.Context) error {
			_, err := store.Count(ctx, &evidence.Query{})
			return err
		})
	}

	if watchFlags.metricsAddr != "" {
		srv := newProbeServer(watchFlags.metricsAddr, collector, checker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
				cancel()
			}
		}()
		defer shutdownServer(srv, logger)
		logger.Info("serving metrics and probes", "addr", watchFlags.metricsAddr)
	}

	if poll > 0 {
		return pollRebuild(ctx, mgr, poll, logger)
	}
	if err := mgr.Watch(ctx); err != nil {
		return cli.NewCommandError("watch", err)
	}
	return nil
}

func newProbeServer(addr string, collector *metrics.Collector, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
	checker.Mount(mux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func shutdownServer(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
}

func pollRebuild(ctx context.Context, mgr *manager.Manager, every time.Duration, logger *slog.Logger) error {
	logger.Info("polling policy source", "interval", every)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := mgr.Rebuild(ctx); err != nil {
				logger.Error("rebuild failed, keeping previous rules", "error", err)
			}
		}
	}
}


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/policy/builder"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine/source"
	"gatekeeper-hq/gatekeeper/pkg/policy/git"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/metrics"
	"gatekeeper-hq/gatekeeper/pkg/traceability"
)

// newBuilder creates a builder from the policy configuration, syncing from
// git first when a repository is configured.
func newBuilder(cfg *config.Config, logger *slog.Logger, m *metrics.BuildMetrics) (*builder.Builder, error) {
	opts := []builder.Option{builder.WithLogger(logger), builder.WithMetrics(m)}

	if cfg.Policy.Git.Repository != "" {
		repo, err := git.NewRepository(cfg.Policy.Git, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure policy repository: %w", err)
		}
		opts = append(opts, builder.WithGitSource(repo))
	}

	return builder.New(builder.OptionsFromConfig(&cfg.Policy), opts...), nil
}

// newEngine loads the compiled rules under dir. The returned injector is
// nil when traceability is disabled.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, dir string, m *metrics.EvaluationMetrics) (*engine.Engine, *traceability.Injector, error) {
	opts := engine.OptionsFromConfig(cfg)
	opts = append(opts, engine.WithLogger(logger), engine.WithMetrics(m))

	var injector *traceability.Injector
	if cfg.Engine.Traceability {
		injector = traceability.NewInjector(dir, nil, traceability.WithLogger(logger))
		opts = append(opts, engine.WithTracer(injector))
	}

	eng, err := engine.New(ctx, source.NewFileSource(dir, logger), opts...)
	if err != nil {
		return nil, nil, err
	}
	return eng, injector, nil
}

// readInput decodes an evaluation input from a JSON or YAML file. "-"
// reads JSON from stdin.
func readInput(path string, stdin io.Reader) (map[string]interface{}, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	input := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &input)
	default:
		err = json.Unmarshal(data, &input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse input %s: %w", path, err)
	}
	return input, nil
}

package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gatekeeper-hq/gatekeeper/pkg/policy/loader"
)

// FileSource loads compiled rules from disk.
type FileSource struct {
	path   string
	logger *slog.Logger
	loader *loader.Loader
}

// NewFileSource creates a new file-based rule source.
// The path can be either a single artifact or a directory of artifacts.
func NewFileSource(path string, logger *slog.Logger, opts ...loader.Option) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]loader.Option{loader.WithLogger(logger)}, opts...)
	return &FileSource{
		path:   path,
		logger: logger,
		loader: loader.New(path, opts...),
	}
}

// LoadRules loads all enabled rules from the configured path.
func (s *FileSource) LoadRules(ctx context.Context) ([]*loader.Rule, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	if !info.IsDir() {
		rule, err := s.loader.LoadFile(s.path)
		if err != nil {
			return nil, err
		}
		if !rule.Enabled {
			return []*loader.Rule{}, nil
		}
		return []*loader.Rule{rule}, nil
	}

	rules, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded rules from source",
		"path", s.path,
		"rule_count", len(rules),
	)
	return rules, nil
}

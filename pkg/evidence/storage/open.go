package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/evidence"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Open creates the backend selected by cfg.Backend. For SQLite the parent
// directory of the database file is created if needed.
func Open(cfg config.EvidenceConfig, logger *slog.Logger) (evidence.Storage, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStorage(), nil
	case BackendSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, evidence.NewStorageError(BackendSQLite, "open", err)
			}
		}
		return NewSQLiteStorage(&SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      true,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		}, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown evidence backend %q", cfg.Backend)
	}
}

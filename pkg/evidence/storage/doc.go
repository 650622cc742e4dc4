// Package storage provides storage backends for evaluation records.
//
// # Storage Backends
//
//   - SQLite: durable single-node storage, the default
//   - Memory: in-process storage for tests and one-shot runs
//
// # SQLite Backend
//
// Two database/sql drivers are supported and selected by name:
//
//   - "modernc" uses modernc.org/sqlite, a pure Go port (no cgo)
//   - "mattn" uses github.com/mattn/go-sqlite3 and requires cgo
//
// The backend enables WAL mode and a busy timeout, keeps timestamps as
// Unix nanoseconds so both drivers round-trip them identically, and
// stores triggered rules as a JSON column queried with json_each.
//
// # Basic Usage
//
//	store, err := storage.Open(cfg.Evidence, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package storage

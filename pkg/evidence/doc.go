// Package evidence persists the outcome of every evaluation as an
// immutable record for audit and later review.
//
// # Architecture
//
// The evidence system consists of four layers:
//
//  1. Recorder - builds records from engine run results (package recorder)
//  2. Storage - persists records in memory or SQLite (package storage)
//  3. Retention - prunes records by age or count on a cron schedule
//  4. Query and export - validated filters, JSON and CSV output
//
// # Evaluation Records
//
// Each record captures:
//   - Identity (UUID v4) and the change it describes (repository, change id, head SHA)
//   - The overall status and whether a label override applied
//   - Core risk score and level
//   - The triggered rules with their status and finding id
//   - The digest of the compiled policy set that produced the result
//   - The full run result as JSON plus its SHA-256
//
// # Recording Flow
//
//	Engine.Evaluate → RunResult
//	     ↓
//	Recorder.Record (builds record, hashes payload)
//	     ↓
//	async worker
//	     ↓
//	Storage.Store
//
// # Basic Usage
//
//	store, err := storage.Open(cfg.Evidence, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec := recorder.New(store, recorder.WithLogger(logger))
//	defer rec.Close()
//
//	if _, err := rec.Record(ctx, run, recorder.Change{Repository: "org/repo"}); err != nil {
//	    return err
//	}
//
// # Querying
//
//	q := &evidence.Query{Repository: "org/repo", OverallStatus: "BLOCK"}
//	query.ApplyDefaults(q)
//	if err := query.Validate(q); err != nil {
//	    return err
//	}
//	records, err := store.Query(ctx, q)
package evidence

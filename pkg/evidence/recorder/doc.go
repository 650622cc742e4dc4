// Package recorder turns engine run results into evaluation records and
// writes them to an evidence storage backend.
//
// Records are built synchronously, so the caller gets the record id back
// immediately, and written by a background worker:
//
//	rec := recorder.New(store, recorder.WithLogger(logger))
//	defer rec.Close()
//
//	record, err := rec.Record(ctx, run, recorder.ChangeFromInput(input))
//
// Close drains every queued record before returning. Recording after
// Close fails with ErrClosed.
package recorder

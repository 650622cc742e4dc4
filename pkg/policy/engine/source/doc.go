// Package source provides rule sources for the evaluation engine.
//
// # File Source
//
// The file source reads compiled rule artifacts through the loader:
//
//	src := source.NewFileSource("policies/compiled", logger)
//	eng, err := engine.New(ctx, src)
//
// Calling eng.Reload re-reads the directory, which is how watch mode picks
// up a fresh build.
//
// # In-Memory Source
//
// The in-memory source is useful for testing:
//
//	src := source.NewMemorySource(rules...)
//	eng, err := engine.New(ctx, src)
package source

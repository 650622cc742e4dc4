// Package manager keeps a compiled rule set in step with its policy sources.
//
// A Manager owns a builder.Builder and a list of subscribers. Rebuild
// compiles the source tree and, when every file compiled, reloads each
// subscriber in order. A failed build leaves the subscribers on the last
// good output, so a typo in one policy never empties a running engine.
//
// Watch mode adds a Watcher on the source directory. Bursts of .dsl
// changes are collapsed by a Debouncer and trigger one rebuild:
//
//	mgr := manager.New(b, manager.ConfigFrom(&cfg.Policy), manager.WithLogger(logger))
//	if _, err := mgr.Rebuild(ctx); err != nil {
//	    return err
//	}
//	eng, err := engine.New(ctx, source.NewFileSource(cfg.Policy.CompiledDir, logger))
//	if err != nil {
//	    return err
//	}
//	mgr.Subscribe(manager.ReloadFunc(func(context.Context) error {
//	    injector.Reset()
//	    return nil
//	}))
//	mgr.Subscribe(eng)
//	return mgr.Watch(ctx)
//
// Each rebuild after the first is diffed against the previous manifest and
// the added, removed and changed policies are logged.
//
// Rebuild and Watch are safe for concurrent use; rebuilds are serialised.
package manager

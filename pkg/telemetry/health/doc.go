// Package health serves liveness and readiness probes for watch mode.
//
// Checks are registered by name and run concurrently on every readiness
// request, each bounded by the checker's timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.Register("policies", func(context.Context) error {
//	    if s := mgr.Status(); s.LastError != "" {
//	        return errors.New(s.LastError)
//	    }
//	    return nil
//	})
//	checker.Mount(mux) // /healthz and /readyz
package health

// Package retention prunes evaluation records by age and count.
//
// A Pruner deletes records whose evaluation time is older than the
// retention period, then the oldest records beyond a maximum count. With an
// archive directory configured, records are exported as JSON before they
// are deleted. A Scheduler runs the pruner on a cron expression using
// github.com/robfig/cron/v3:
//
//	p := retention.NewPruner(store, retention.ConfigFrom(cfg.Evidence.Retention),
//	    retention.WithLogger(logger))
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop()
package retention

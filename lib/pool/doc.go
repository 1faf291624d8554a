// Package pool provides a bounded pool of reusable handles to an external
// service, such as database sessions, that are slow to create and cheap to
// reuse.
//
// The pool:
//   - creates its initial handles eagerly in New
//   - never holds more than MaxSize handles, idle and busy combined
//   - grows one handle at a time in the background when Acquire finds no idle handle
//   - hands out the most recently released handle first
//   - drops handles that report !IsLive() on acquire and tries again
//   - blocks or fails at capacity depending on WaitIfBusy
//
// # Basic Usage
//
//	factory := func(ctx context.Context, target pool.Descriptor) (pool.Handle, error) {
//	    return openSession(ctx, target.Identifier)
//	}
//
//	cfg := pool.DefaultConfig()
//	cfg.Target = "db:sqlite3:file:app.db"
//	cfg.MaxSize = 4
//
//	p, err := pool.New(factory, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown()
//
//	h, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(h)
//
// # Errors
//
// New fails with ErrInvalidConfig or ErrFactory. Acquire fails with
// ErrPoolExhausted, ErrCancelled or ErrPoolClosed. Each wraps the matching
// sentinel from lib/errors. Failures of background creation are logged and
// only show up as continued waiting or exhaustion.
//
// # Retries
//
// Acquire retries without limit after discarding a stale handle or waking
// from a wait. A factory that only produces dead handles keeps a waiting
// caller looping until its context is cancelled.
//
// # Metrics
//
// Counters and histograms are registered with lib/metrics:
//   - handlepool_acquire_total, handlepool_acquire_success_total, handlepool_acquire_failed_total
//   - handlepool_release_total, handlepool_stale_dropped_total, handlepool_create_failed_total
//   - handlepool_acquire_duration_seconds, handlepool_create_duration_seconds
//
// Gauges are refreshed from Stats with UpdateMetrics.
package pool

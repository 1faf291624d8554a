package main

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-i2p/handlepool/lib/config"
	"github.com/go-i2p/handlepool/lib/driver"
	apperrors "github.com/go-i2p/handlepool/lib/errors"
	"github.com/go-i2p/handlepool/lib/pool"
	"github.com/go-i2p/handlepool/lib/ratelimit"
)

// workloadResult summarizes a workload run.
type workloadResult struct {
	Acquired    int64
	Rejected    int64
	ProbeFailed int64
}

// runWorkload runs w.Workers goroutines that each acquire, optionally probe,
// hold and release a handle w.Iterations times. Exhaustion is counted, not
// fatal. A positive w.Rate caps acquisitions per second across workers.
// Cancelling ctx stops every worker at its next step.
func runWorkload(ctx context.Context, p *pool.Pool, w config.WorkloadConfig, logger *slog.Logger) (workloadResult, error) {
	var acquired, rejected, probeFailed atomic.Int64

	var limiter *ratelimit.Limiter
	if w.Rate > 0 {
		limiter = ratelimit.New(w.Rate, max(w.Burst, 1))
	}

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < w.Workers; id++ {
		g.Go(func() error {
			for i := 0; i < w.Iterations; i++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				}

				h, err := p.Acquire(ctx)
				switch {
				case errors.Is(err, pool.ErrPoolExhausted):
					rejected.Add(1)
					logger.Debug("pool exhausted", "worker", id, "class", apperrors.Classify(err))
					continue
				case errors.Is(err, pool.ErrCancelled):
					return ctx.Err()
				case err != nil:
					return err
				}
				acquired.Add(1)

				if w.Probe {
					if err := driver.Probe(ctx, h); err != nil {
						probeFailed.Add(1)
						logger.Warn("probe failed", "worker", id, "class", apperrors.Classify(err), "error", err)
					}
				}

				if err := sleepCtx(ctx, w.Hold); err != nil {
					p.Release(h)
					return err
				}
				p.Release(h)
			}
			return nil
		})
	}

	err := g.Wait()
	return workloadResult{
		Acquired:    acquired.Load(),
		Rejected:    rejected.Load(),
		ProbeFailed: probeFailed.Load(),
	}, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

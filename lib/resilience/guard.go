package resilience

import (
	"context"

	"github.com/go-i2p/handlepool/lib/pool"
)

// GuardFactory wraps factory with a circuit breaker named name. While the
// circuit is open the returned factory fails with ErrCircuitOpen without
// calling factory.
func GuardFactory(name string, cfg CircuitBreakerConfig, factory pool.Factory) (pool.Factory, *CircuitBreaker) {
	cb := NewCircuitBreaker(name, cfg)
	guarded := func(ctx context.Context, target pool.Descriptor) (pool.Handle, error) {
		var h pool.Handle
		err := cb.ExecuteWithContext(ctx, func(ctx context.Context) error {
			var err error
			h, err = factory(ctx, target)
			return err
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	return guarded, cb
}

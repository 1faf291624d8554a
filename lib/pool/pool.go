package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/handlepool/lib/errors"
	"github.com/go-i2p/handlepool/lib/metrics"
)

var (
	// ErrInvalidConfig is returned by New for unusable construction arguments.
	ErrInvalidConfig = fmt.Errorf("pool: %w", apperrors.ErrConfiguration)
	// ErrFactory is returned by New when an initial handle cannot be created.
	ErrFactory = fmt.Errorf("pool: %w", apperrors.ErrFactory)
	// ErrPoolExhausted is returned when the pool is at capacity and not allowed to wait.
	ErrPoolExhausted = fmt.Errorf("pool: connection pool %w", apperrors.ErrExhausted)
	// ErrCancelled is returned when a blocked acquire is cancelled through its context.
	ErrCancelled = fmt.Errorf("pool: acquire %w", apperrors.ErrCancelled)
	// ErrPoolClosed is returned when operating on a shut down pool.
	ErrPoolClosed = fmt.Errorf("pool: pool is %w", apperrors.ErrClosed)

	errDuplicateHandle = errors.New("factory returned a handle the pool already holds")
)

// Handle is a pooled resource. The pool tells handles apart with ==, so each
// handle a factory returns must be a distinct pointer to a type of non-zero
// size. Pointers to distinct zero-size values may compare equal; a factory
// result equal to a handle the pool already holds is refused as a failed
// creation.
type Handle interface {
	// IsLive reports whether the handle can still be used.
	IsLive() bool
	// Destroy releases the underlying resource. The handle is not used afterwards.
	Destroy() error
}

// Factory creates a new handle for target.
type Factory func(ctx context.Context, target Descriptor) (Handle, error)

// Config configures a Pool.
type Config struct {
	// Target is the descriptor handed to the factory, db:<subscheme>:<identifier>.
	Target string
	// InitialSize is the number of handles created by New. Must be positive.
	// Values above MaxSize are clamped.
	InitialSize int
	// MaxSize is the ceiling on live handles, idle and lent out combined.
	MaxSize int
	// WaitIfBusy makes Acquire block at capacity instead of failing.
	WaitIfBusy bool
	// CreateTimeout bounds a single factory call. Zero means no deadline.
	CreateTimeout time.Duration
	// CreateBackoff delays the retry after a failed background creation.
	// Zero retries immediately.
	CreateBackoff time.Duration
}

// DefaultConfig returns a Config with sensible defaults. Target must still be set.
func DefaultConfig() Config {
	return Config{
		InitialSize:   2,
		MaxSize:       10,
		WaitIfBusy:    true,
		CreateTimeout: 30 * time.Second,
		CreateBackoff: 100 * time.Millisecond,
	}
}

// Pool is a bounded handle pool.
type Pool struct {
	factory Factory
	target  Descriptor
	config  Config

	// ctx is cancelled by Shutdown and aborts in-flight creation.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cond      *sync.Cond
	available []Handle
	busy      map[Handle]struct{}
	pending   bool
	closed    bool

	// createFailures counts failed background creations; waiters compare it
	// across a wait to learn that the attempt they waited on failed.
	createFailures uint64
	lastCreateErr  error

	// Metrics
	acquireCount   uint64
	acquireSuccess uint64
	acquireFailed  uint64
	releaseCount   uint64
	staleDropped   uint64
	createCount    uint64
	createFailed   uint64
	destroyFailed  uint64
}

// New validates cfg and creates a pool holding min(InitialSize, MaxSize)
// handles. If any of them cannot be created, the ones already made are
// destroyed and an error wrapping ErrFactory is returned.
func New(factory Factory, cfg Config) (*Pool, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: factory is required", ErrInvalidConfig)
	}
	if cfg.InitialSize <= 0 {
		return nil, fmt.Errorf("%w: initial size must be positive, got %d", ErrInvalidConfig, cfg.InitialSize)
	}
	if cfg.MaxSize < 1 {
		return nil, fmt.Errorf("%w: max size must be at least 1, got %d", ErrInvalidConfig, cfg.MaxSize)
	}
	target, err := ParseDescriptor(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.InitialSize > cfg.MaxSize {
		log.WithField("initialSize", cfg.InitialSize).
			WithField("maxSize", cfg.MaxSize).
			Info("initial size exceeds max size, clamping")
		cfg.InitialSize = cfg.MaxSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		factory:   factory,
		target:    target,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		available: make([]Handle, 0, cfg.MaxSize),
		busy:      make(map[Handle]struct{}, cfg.MaxSize),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < cfg.InitialSize; i++ {
		h, err := p.create()
		if err == nil {
			err = p.admit(h)
		}
		if err != nil {
			for _, made := range p.available {
				p.destroy(made, "construction aborted")
			}
			cancel()
			return nil, fmt.Errorf("%w: creating handle %d of %d: %w", ErrFactory, i+1, cfg.InitialSize, err)
		}
		p.available = append(p.available, h)
	}

	PoolConnectionsTotal.Set(int64(cfg.MaxSize))
	log.WithField("target", target.String()).
		WithField("initialSize", cfg.InitialSize).
		WithField("maxSize", cfg.MaxSize).
		Debug("pool created")
	return p, nil
}

// Acquire returns a live handle and marks it busy. When no idle handle is
// available it starts a background creation if there is room, and blocks
// until a handle is released or created. At capacity it fails with
// ErrPoolExhausted unless the pool was configured to wait.
//
// There is no built-in deadline: callers bound the wait with ctx, and a
// cancelled wait returns an error wrapping ErrCancelled and ctx.Err().
//
// Without waiting, a caller whose background creation failed gets
// ErrPoolExhausted wrapping the factory error, even below capacity. It does
// not start another creation attempt in the same call.
func (p *Pool) Acquire(ctx context.Context) (Handle, error) {
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()
	timer := metrics.NewTimer(PoolAcquireLatency)
	defer timer.ObserveDuration()

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return p.acquireFail(ErrPoolClosed)
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return p.acquireFail(fmt.Errorf("%w: %w", ErrCancelled, err))
		}

		if n := len(p.available); n > 0 {
			// Most recently released first.
			h := p.available[n-1]
			p.available[n-1] = nil
			p.available = p.available[:n-1]
			p.busy[h] = struct{}{}
			p.mu.Unlock()

			// The handle stays counted in busy while it is validated, so a
			// caller that does not wait may see the pool at capacity until a
			// stale handle here is dropped.
			live := h.IsLive()

			p.mu.Lock()
			if _, tracked := p.busy[h]; !tracked {
				// Shutdown destroyed it meanwhile.
				continue
			}
			if live {
				p.mu.Unlock()
				atomic.AddUint64(&p.acquireSuccess, 1)
				PoolAcquireSuccessTotal.Inc()
				return h, nil
			}

			delete(p.busy, h)
			p.cond.Broadcast()
			p.mu.Unlock()

			atomic.AddUint64(&p.staleDropped, 1)
			PoolStaleDroppedTotal.Inc()
			log.Debug("dropping stale handle")
			p.destroy(h, "stale")

			p.mu.Lock()
			continue
		}

		total := len(p.busy)
		switch {
		case total < p.config.MaxSize && !p.pending:
			p.pending = true
			go p.createInBackground()
		case total >= p.config.MaxSize && !p.config.WaitIfBusy:
			p.mu.Unlock()
			return p.acquireFail(ErrPoolExhausted)
		}

		failures := p.createFailures
		log.WithField("busy", total).Debug("waiting for available handle")
		p.waitWithContext(ctx)

		if !p.config.WaitIfBusy && p.createFailures != failures && len(p.available) == 0 && !p.closed {
			// The creation this caller waited on failed; report it as
			// exhaustion rather than starting another attempt.
			err := fmt.Errorf("%w: handle creation failed: %w", ErrPoolExhausted, p.lastCreateErr)
			p.mu.Unlock()
			return p.acquireFail(err)
		}
	}
}

func (p *Pool) acquireFail(err error) (Handle, error) {
	atomic.AddUint64(&p.acquireFailed, 1)
	PoolAcquireFailedTotal.Inc()
	return nil, err
}

// waitWithContext waits for a broadcast or for ctx to be done.
// Caller must hold p.mu.
func (p *Pool) waitWithContext(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	p.cond.Wait()
	stop()
}

// createInBackground makes one handle outside the lock and publishes it.
// At most one runs at a time, guarded by p.pending.
func (p *Pool) createInBackground() {
	h, err := p.create()
	if err == nil {
		p.mu.Lock()
		err = p.admit(h)
		p.mu.Unlock()
	}
	if err != nil {
		log.WithError(err).WithField("target", p.target.String()).Warn("background handle creation failed")
		if p.config.CreateBackoff > 0 {
			select {
			case <-time.After(p.config.CreateBackoff):
			case <-p.ctx.Done():
			}
		}
	}

	p.mu.Lock()
	p.pending = false
	if err != nil {
		p.createFailures++
		p.lastCreateErr = err
		p.cond.Broadcast()
		p.mu.Unlock()
		return
	}
	if p.closed {
		p.mu.Unlock()
		p.destroy(h, "pool closed")
		return
	}
	p.available = append(p.available, h)
	p.cond.Broadcast()
	p.mu.Unlock()
	log.Debug("background handle created")
}

// admit refuses a new handle equal to one the pool already holds and counts
// it as a failed creation. The refused value is the held handle, so it is
// not destroyed. Caller must hold p.mu, or own the pool during New.
func (p *Pool) admit(h Handle) error {
	_, held := p.busy[h]
	for _, idle := range p.available {
		if held {
			break
		}
		held = idle == h
	}
	if !held {
		return nil
	}
	atomic.AddUint64(&p.createFailed, 1)
	PoolCreateFailedTotal.Inc()
	log.WithField("target", p.target.String()).Warn("factory returned a handle the pool already holds")
	return errDuplicateHandle
}

// create calls the factory once. A panicking factory counts as a failure.
func (p *Pool) create() (h Handle, err error) {
	ctx := p.ctx
	if p.config.CreateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.CreateTimeout)
		defer cancel()
	}

	atomic.AddUint64(&p.createCount, 1)
	timer := metrics.NewTimer(PoolCreateLatency)
	defer func() {
		timer.ObserveDuration()
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("factory panicked: %v", r)
		}
		if err == nil && h == nil {
			err = fmt.Errorf("factory returned no handle")
		}
		if err != nil {
			atomic.AddUint64(&p.createFailed, 1)
			PoolCreateFailedTotal.Inc()
		}
	}()

	return p.factory(ctx, p.target)
}

// destroy tears a handle down, logging rather than returning failures.
func (p *Pool) destroy(h Handle, reason string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destroy panicked: %v", r)
		}
		if err != nil {
			atomic.AddUint64(&p.destroyFailed, 1)
			log.WithError(err).WithField("reason", reason).Warn("failed to destroy handle")
		}
	}()
	return h.Destroy()
}

// Release returns a handle obtained from Acquire to the pool and wakes
// waiters. Releasing a handle the pool does not hold as busy, including a
// second release of the same handle, is a no-op.
func (p *Pool) Release(h Handle) {
	if h == nil {
		return
	}

	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.busy[h]; !ok {
		log.Debug("ignoring release of untracked handle")
		return
	}
	delete(p.busy, h)
	p.available = append(p.available, h)
	p.cond.Broadcast()
}

// TotalConnections returns the number of live handles, idle and busy.
func (p *Pool) TotalConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available) + len(p.busy)
}

// Shutdown destroys every handle, idle or busy, and closes the pool.
// It does not wait for busy handles to be released; callers must make sure
// none are in use. Destroy failures are logged and do not stop the sweep.
func (p *Pool) Shutdown() {
	_ = p.Close()
}

// Close is Shutdown returning ErrPoolClosed when the pool was already closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	p.cancel()

	handles := make([]Handle, 0, len(p.available)+len(p.busy))
	handles = append(handles, p.available...)
	for h := range p.busy {
		handles = append(handles, h)
	}
	p.available = nil
	p.busy = make(map[Handle]struct{})
	p.cond.Broadcast()
	p.mu.Unlock()

	failed := 0
	for _, h := range handles {
		if err := p.destroy(h, "shutdown"); err != nil {
			failed++
		}
	}

	log.WithField("destroyed", len(handles)-failed).
		WithField("failed", failed).
		Debug("pool closed")
	return nil
}

// String summarizes the pool for diagnostics.
func (p *Pool) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("HandlePool(%s), available=%d, busy=%d, max=%d",
		p.target, len(p.available), len(p.busy), p.config.MaxSize)
}

// Stats holds pool statistics.
type Stats struct {
	// MaxSize is the capacity of the pool.
	MaxSize int
	// NumOpen is the number of live handles.
	NumOpen int
	// NumIdle is the number of handles available for acquire.
	NumIdle int
	// NumInUse is the number of handles lent out.
	NumInUse int
	// Pending reports whether a background creation is outstanding.
	Pending bool
	// AcquireCount is the total number of acquire calls.
	AcquireCount uint64
	// AcquireSuccess is the number of acquires that returned a handle.
	AcquireSuccess uint64
	// AcquireFailed is the number of acquires that returned an error.
	AcquireFailed uint64
	// ReleaseCount is the number of release calls.
	ReleaseCount uint64
	// StaleDropped is the number of dead handles discarded by acquire.
	StaleDropped uint64
	// CreateCount is the number of factory calls.
	CreateCount uint64
	// CreateFailed is the number of failed factory calls.
	CreateFailed uint64
	// DestroyFailed is the number of handles whose Destroy failed.
	DestroyFailed uint64
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		MaxSize:        p.config.MaxSize,
		NumOpen:        len(p.available) + len(p.busy),
		NumIdle:        len(p.available),
		NumInUse:       len(p.busy),
		Pending:        p.pending,
		AcquireCount:   atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess: atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:  atomic.LoadUint64(&p.acquireFailed),
		ReleaseCount:   atomic.LoadUint64(&p.releaseCount),
		StaleDropped:   atomic.LoadUint64(&p.staleDropped),
		CreateCount:    atomic.LoadUint64(&p.createCount),
		CreateFailed:   atomic.LoadUint64(&p.createFailed),
		DestroyFailed:  atomic.LoadUint64(&p.destroyFailed),
	}
}

// Package ratelimit provides a token bucket used to pace handle
// acquisition when generating load against a pool.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. It starts full and refills continuously at
// a fixed rate up to its burst size.
type Limiter struct {
	perSecond float64
	burst     float64
	now       func() time.Time

	mu      sync.Mutex
	avail   float64
	updated time.Time
}

// New returns a limiter that grants perSecond tokens per second with at
// most burst of them banked. A non-positive perSecond never refills.
func New(perSecond float64, burst int) *Limiter {
	l := &Limiter{
		perSecond: perSecond,
		burst:     float64(burst),
		avail:     float64(burst),
		now:       time.Now,
	}
	l.updated = l.now()
	return l
}

// Allow takes one token if available.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN takes n tokens if all of them are available.
func (l *Limiter) AllowN(n int) bool {
	_, ok := l.take(float64(n))
	return ok
}

// Wait blocks until it can take a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		delay, ok := l.take(1)
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Tokens reports how many tokens are banked right now.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advance()
	return l.avail
}

// take removes n tokens, or reports how long until n would be available.
func (l *Limiter) take(n float64) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance()
	if l.avail >= n {
		l.avail -= n
		return 0, true
	}
	if l.perSecond <= 0 {
		return time.Hour, false
	}
	short := n - l.avail
	return time.Duration(short / l.perSecond * float64(time.Second)), false
}

// advance credits the tokens earned since the last update.
// Caller must hold l.mu.
func (l *Limiter) advance() {
	now := l.now()
	if elapsed := now.Sub(l.updated); elapsed > 0 {
		l.avail = min(l.burst, l.avail+elapsed.Seconds()*l.perSecond)
	}
	l.updated = now
}

// Package driver provides pool factories for concrete backends.
//
// The factory returned by Factory dispatches on the descriptor subscheme:
//
//	db:mysql:tcp(localhost:3306)/app     MySQL session
//	db:sqlite3:file:app.db               SQLite connection
//	db:redis:localhost:6379/0            Redis connection
//
// Each handle wraps exactly one backend connection, so the pool's ceiling
// is the ceiling on open sessions.
package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/go-i2p/handlepool/lib/errors"
	"github.com/go-i2p/handlepool/lib/pool"
)

// Default driver timeouts.
const (
	DefaultPingTimeout = 2 * time.Second
	DefaultDialTimeout = 5 * time.Second
)

// Options carries the backend credentials and timeouts shared by every handle.
type Options struct {
	// User overrides the user embedded in the identifier, if set.
	User string
	// Password overrides the password embedded in the identifier, if set.
	Password string
	// PingTimeout bounds the liveness check run by IsLive.
	PingTimeout time.Duration
	// DialTimeout bounds establishing a new connection.
	DialTimeout time.Duration
}

// DefaultOptions returns Options with default timeouts and no credentials.
func DefaultOptions() Options {
	return Options{
		PingTimeout: DefaultPingTimeout,
		DialTimeout: DefaultDialTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.PingTimeout <= 0 {
		o.PingTimeout = DefaultPingTimeout
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	return o
}

// Opener opens one handle for the identifier part of a descriptor.
type Opener func(ctx context.Context, identifier string, opts Options) (pool.Handle, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Opener{
		"mysql":   openMySQL,
		"sqlite3": openSQLite,
		"redis":   openRedis,
	}
)

// Register makes opener available under subscheme, replacing any previous
// registration. It panics if opener is nil.
func Register(subscheme string, opener Opener) {
	if opener == nil {
		panic("driver: Register opener is nil")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[subscheme] = opener
}

// Subschemes returns the registered subschemes in sorted order.
func Subschemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(subscheme string) (Opener, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	o, ok := registry[subscheme]
	return o, ok
}

// Factory returns a pool.Factory that opens handles with opts.
// Unknown subschemes fail with an error wrapping lib/errors.ErrUnknownDriver.
func Factory(opts Options) pool.Factory {
	opts = opts.withDefaults()
	return func(ctx context.Context, target pool.Descriptor) (pool.Handle, error) {
		opener, ok := lookup(target.Subscheme)
		if !ok {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownDriver, target.Subscheme)
		}

		h, err := opener(ctx, target.Identifier, opts)
		if err != nil {
			log.WithField("subscheme", target.Subscheme).
				WithError(err).
				Debug("open failed")
			return nil, fmt.Errorf("driver: open %s: %w", target.Subscheme, err)
		}
		return h, nil
	}
}

// Probe runs a minimal round trip on h: SELECT 1 for SQL handles, PING for
// Redis handles. Other handle types fall back to IsLive.
func Probe(ctx context.Context, h pool.Handle) error {
	switch v := h.(type) {
	case *SQLHandle:
		var one int
		return v.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	case *RedisHandle:
		return v.client.Ping(ctx).Err()
	default:
		if !h.IsLive() {
			return fmt.Errorf("driver: handle is not live: %w", apperrors.ErrUnavailable)
		}
		return nil
	}
}

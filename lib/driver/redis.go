package driver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/go-i2p/handlepool/lib/pool"
)

// RedisHandle is a Redis client restricted to a single connection.
type RedisHandle struct {
	client *redis.Client
	opts   Options
}

var _ pool.Handle = (*RedisHandle)(nil)

// Client returns the underlying client.
func (h *RedisHandle) Client() *redis.Client {
	return h.client
}

// IsLive sends PING within Options.PingTimeout.
func (h *RedisHandle) IsLive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.PingTimeout)
	defer cancel()

	if err := h.client.Ping(ctx).Err(); err != nil {
		log.WithField("addr", h.client.Options().Addr).WithError(err).Debug("redis ping failed")
		return false
	}
	return true
}

// Destroy closes the client.
func (h *RedisHandle) Destroy() error {
	return h.client.Close()
}

// redisOptions accepts either a redis:// URL or host:port[/db].
func redisOptions(identifier string, opts Options) (*redis.Options, error) {
	var ro *redis.Options
	if strings.Contains(identifier, "://") {
		parsed, err := redis.ParseURL(identifier)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ro = parsed
	} else {
		addr, db := identifier, 0
		if i := strings.LastIndex(identifier, "/"); i >= 0 {
			n, err := strconv.Atoi(identifier[i+1:])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid redis database %q", identifier[i+1:])
			}
			addr, db = identifier[:i], n
		}
		if addr == "" {
			return nil, fmt.Errorf("missing redis address in %q", identifier)
		}
		ro = &redis.Options{Addr: addr, DB: db}
	}

	if opts.User != "" {
		ro.Username = opts.User
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	ro.DialTimeout = opts.DialTimeout
	ro.PoolSize = 1
	ro.MinIdleConns = 0
	ro.MaxRetries = -1
	return ro, nil
}

func openRedis(ctx context.Context, identifier string, opts Options) (pool.Handle, error) {
	ro, err := redisOptions(identifier, opts)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(ro)

	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(dialCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.WithField("addr", ro.Addr).WithField("db", ro.DB).Debug("redis handle opened")
	return &RedisHandle{client: client, opts: opts}, nil
}

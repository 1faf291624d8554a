// Package testutil provides helpers for tests that need a live backend.
//
// Integration tests are opt-in. They read a descriptor from the environment
// and skip when it is unset or the backend does not accept connections:
//
//	HANDLEPOOL_TEST_MYSQL='db:mysql:root:secret@tcp(127.0.0.1:3306)/test' go test ./...
//	HANDLEPOOL_TEST_REDIS='db:redis:127.0.0.1:6379/15' go test ./...
package testutil

import (
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-i2p/handlepool/lib/pool"
)

const (
	// EnvMySQL names the variable holding a MySQL descriptor.
	EnvMySQL = "HANDLEPOOL_TEST_MYSQL"

	// EnvRedis names the variable holding a Redis descriptor.
	EnvRedis = "HANDLEPOOL_TEST_REDIS"

	// DefaultDialTimeout is the timeout for reachability checks.
	DefaultDialTimeout = 2 * time.Second
)

// RequireBackend returns the descriptor stored in env, skipping t when the
// variable is unset. A malformed descriptor fails the test.
func RequireBackend(t testing.TB, env string) pool.Descriptor {
	t.Helper()

	raw := os.Getenv(env)
	if raw == "" {
		t.Skipf("%s not set, skipping integration test", env)
	}
	d, err := pool.ParseDescriptor(raw)
	if err != nil {
		t.Fatalf("%s: %v", env, err)
	}
	return d
}

// CheckTCP reports whether addr accepts TCP connections.
func CheckTCP(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, DefaultDialTimeout)
	if err != nil {
		return fmt.Errorf("backend unavailable at %s: %w", addr, err)
	}
	return conn.Close()
}

// RequireTCP skips t unless addr accepts TCP connections.
func RequireTCP(t testing.TB, addr string) {
	t.Helper()
	if err := CheckTCP(addr); err != nil {
		t.Skip(err)
	}
}

// NewPool creates a pool for target and shuts it down when t finishes.
func NewPool(t testing.TB, factory pool.Factory, target pool.Descriptor, initial, maxSize int) *pool.Pool {
	t.Helper()

	cfg := pool.DefaultConfig()
	cfg.Target = target.String()
	cfg.InitialSize = initial
	cfg.MaxSize = maxSize
	cfg.CreateTimeout = 10 * time.Second

	p, err := pool.New(factory, cfg)
	if err != nil {
		t.Fatalf("pool.New(%s): %v", target, err)
	}
	t.Cleanup(p.Shutdown)
	return p
}

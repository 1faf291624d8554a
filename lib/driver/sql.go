package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/go-i2p/handlepool/lib/pool"
)

// SQLHandle is one dedicated database/sql session.
//
// Each handle owns a *sql.DB capped at a single connection, so closing the
// handle closes the backend session instead of returning it to a second,
// hidden pool.
type SQLHandle struct {
	db         *sql.DB
	conn       *sql.Conn
	opts       Options
	driverName string
}

var _ pool.Handle = (*SQLHandle)(nil)

// Conn returns the underlying connection.
func (h *SQLHandle) Conn() *sql.Conn {
	return h.conn
}

// IsLive pings the session within Options.PingTimeout.
func (h *SQLHandle) IsLive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.PingTimeout)
	defer cancel()

	if err := h.conn.PingContext(ctx); err != nil {
		log.WithField("driver", h.driverName).WithError(err).Debug("sql ping failed")
		return false
	}
	return true
}

// Destroy closes the session and its database object.
func (h *SQLHandle) Destroy() error {
	return errors.Join(h.conn.Close(), h.db.Close())
}

func openSQL(ctx context.Context, driverName, dsn string, opts Options) (pool.Handle, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	conn, err := db.Conn(dialCtx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(dialCtx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	return &SQLHandle{db: db, conn: conn, opts: opts, driverName: driverName}, nil
}

func openSQLite(ctx context.Context, identifier string, opts Options) (pool.Handle, error) {
	return openSQL(ctx, "sqlite3", identifier, opts)
}

func openMySQL(ctx context.Context, identifier string, opts Options) (pool.Handle, error) {
	dsn, err := mysqlDSN(identifier, opts)
	if err != nil {
		return nil, err
	}
	return openSQL(ctx, "mysql", dsn, opts)
}

// mysqlDSN parses identifier as a MySQL DSN and injects the credentials and
// dial timeout from opts.
func mysqlDSN(identifier string, opts Options) (string, error) {
	cfg, err := mysql.ParseDSN(identifier)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if opts.User != "" {
		cfg.User = opts.User
	}
	if opts.Password != "" {
		cfg.Passwd = opts.Password
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = opts.DialTimeout
	}
	return cfg.FormatDSN(), nil
}

// Package config loads handlepool settings from TOML files and the
// environment.
//
// Precedence, lowest to highest: built-in defaults, the TOML file,
// HANDLEPOOL_* environment variables. The CLI applies its flags last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/go-i2p/handlepool/lib/driver"
	apperrors "github.com/go-i2p/handlepool/lib/errors"
	"github.com/go-i2p/handlepool/lib/pool"
	"github.com/go-i2p/handlepool/lib/resilience"
	"github.com/go-i2p/handlepool/lib/validation"
)

// Default configuration values
const (
	DefaultTarget        = "db:sqlite3:file:handlepool.db"
	DefaultInitialSize   = 2
	DefaultMaxSize       = 10
	DefaultWaitIfBusy    = true
	DefaultCreateTimeout = 30 * time.Second
	DefaultCreateBackoff = 100 * time.Millisecond

	DefaultFailureThreshold = 5
	DefaultBreakerTimeout   = 10 * time.Second

	DefaultWorkers    = 4
	DefaultIterations = 100
	DefaultHold       = 10 * time.Millisecond
	DefaultBurst      = 1
)

// Config holds all configuration for a handlepool run.
type Config struct {
	Pool     PoolConfig     `toml:"pool"`
	Driver   DriverConfig   `toml:"driver"`
	Breaker  BreakerConfig  `toml:"breaker"`
	Workload WorkloadConfig `toml:"workload"`
}

// PoolConfig contains pool sizing and behavior.
type PoolConfig struct {
	// Target is the backend descriptor, db:<subscheme>:<identifier>
	Target string `toml:"target"`
	// InitialSize is the number of handles created up front
	InitialSize int `toml:"initial_size"`
	// MaxSize is the ceiling on live handles
	MaxSize int `toml:"max_size"`
	// WaitIfBusy blocks acquirers at capacity instead of failing them
	WaitIfBusy bool `toml:"wait_if_busy"`
	// CreateTimeout bounds a single handle creation
	CreateTimeout time.Duration `toml:"create_timeout"`
	// CreateBackoff delays the retry after a failed creation
	CreateBackoff time.Duration `toml:"create_backoff"`
}

// DriverConfig contains backend credentials and timeouts.
type DriverConfig struct {
	User        string        `toml:"user,omitempty"`
	Password    string        `toml:"password,omitempty"`
	PingTimeout time.Duration `toml:"ping_timeout"`
	DialTimeout time.Duration `toml:"dial_timeout"`
}

// BreakerConfig contains the circuit breaker guarding handle creation.
type BreakerConfig struct {
	// Enabled wraps the driver factory in a circuit breaker
	Enabled bool `toml:"enabled"`
	// FailureThreshold is the number of consecutive failures that opens it
	FailureThreshold int `toml:"failure_threshold"`
	// Timeout is how long it stays open before a trial creation
	Timeout time.Duration `toml:"timeout"`
}

// WorkloadConfig describes the load generated by the CLI.
type WorkloadConfig struct {
	// Workers is the number of concurrent acquirers
	Workers int `toml:"workers"`
	// Iterations is the number of acquire/release cycles per worker
	Iterations int `toml:"iterations"`
	// Hold is how long each worker keeps a handle
	Hold time.Duration `toml:"hold"`
	// Probe runs a round trip on each acquired handle
	Probe bool `toml:"probe"`
	// Rate caps acquisitions per second across all workers, 0 is unlimited
	Rate float64 `toml:"rate"`
	// Burst is the number of acquisitions allowed above Rate at once
	Burst int `toml:"burst"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			Target:        DefaultTarget,
			InitialSize:   DefaultInitialSize,
			MaxSize:       DefaultMaxSize,
			WaitIfBusy:    DefaultWaitIfBusy,
			CreateTimeout: DefaultCreateTimeout,
			CreateBackoff: DefaultCreateBackoff,
		},
		Driver: DriverConfig{
			PingTimeout: driver.DefaultPingTimeout,
			DialTimeout: driver.DefaultDialTimeout,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: DefaultFailureThreshold,
			Timeout:          DefaultBreakerTimeout,
		},
		Workload: WorkloadConfig{
			Workers:    DefaultWorkers,
			Iterations: DefaultIterations,
			Hold:       DefaultHold,
			Probe:      true,
			Burst:      DefaultBurst,
		},
	}
}

// LoadConfig reads configuration from a TOML file and applies environment
// overrides. If the file doesn't exist, the defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.WithField("path", path).Debug("config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file: %w", apperrors.ErrConfiguration, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration and reports every problem found. The
// returned error wraps lib/errors.ErrConfiguration and each field error.
func (c *Config) Validate() error {
	var errs validation.Errors

	errs.Add(validation.Required("pool.target", c.Pool.Target))
	if c.Pool.Target != "" {
		_, err := pool.ParseDescriptor(c.Pool.Target)
		errs.Add(validation.Format("pool.target", err))
	}
	errs.Add(validation.AtLeast("pool.initial_size", c.Pool.InitialSize, 1))
	errs.Add(validation.AtLeast("pool.max_size", c.Pool.MaxSize, 1))
	errs.Add(validation.NonNegative("pool.create_timeout", c.Pool.CreateTimeout))
	errs.Add(validation.NonNegative("pool.create_backoff", c.Pool.CreateBackoff))

	errs.Add(validation.NonNegative("driver.ping_timeout", c.Driver.PingTimeout))
	errs.Add(validation.NonNegative("driver.dial_timeout", c.Driver.DialTimeout))

	if c.Breaker.Enabled {
		errs.Add(validation.AtLeast("breaker.failure_threshold", c.Breaker.FailureThreshold, 1))
		errs.Add(validation.NonNegative("breaker.timeout", c.Breaker.Timeout))
	}

	errs.Add(validation.AtLeast("workload.workers", c.Workload.Workers, 1))
	errs.Add(validation.NonNegative("workload.iterations", c.Workload.Iterations))
	errs.Add(validation.NonNegative("workload.hold", c.Workload.Hold))
	errs.Add(validation.NonNegative("workload.rate", c.Workload.Rate))
	if c.Workload.Rate > 0 {
		errs.Add(validation.AtLeast("workload.burst", c.Workload.Burst, 1))
	}

	if err := errs.Err(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	return nil
}

// PoolOptions converts the pool section into a pool.Config.
func (c *Config) PoolOptions() pool.Config {
	return pool.Config{
		Target:        c.Pool.Target,
		InitialSize:   c.Pool.InitialSize,
		MaxSize:       c.Pool.MaxSize,
		WaitIfBusy:    c.Pool.WaitIfBusy,
		CreateTimeout: c.Pool.CreateTimeout,
		CreateBackoff: c.Pool.CreateBackoff,
	}
}

// DriverOptions converts the driver section into driver.Options.
func (c *Config) DriverOptions() driver.Options {
	return driver.Options{
		User:        c.Driver.User,
		Password:    c.Driver.Password,
		PingTimeout: c.Driver.PingTimeout,
		DialTimeout: c.Driver.DialTimeout,
	}
}

// BreakerOptions converts the breaker section into a circuit breaker config.
func (c *Config) BreakerOptions() resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = c.Breaker.FailureThreshold
	cfg.Timeout = c.Breaker.Timeout
	return cfg
}

// applyEnvOverrides applies HANDLEPOOL_* environment variables to cfg.
// Durations are given in milliseconds. Unparseable or negative values are
// ignored.
func applyEnvOverrides(cfg *Config) {
	setString("HANDLEPOOL_TARGET", &cfg.Pool.Target)
	setInt("HANDLEPOOL_INITIAL_SIZE", &cfg.Pool.InitialSize)
	setInt("HANDLEPOOL_MAX_SIZE", &cfg.Pool.MaxSize)
	setBool("HANDLEPOOL_WAIT_IF_BUSY", &cfg.Pool.WaitIfBusy)
	setMillis("HANDLEPOOL_CREATE_TIMEOUT_MS", &cfg.Pool.CreateTimeout)
	setMillis("HANDLEPOOL_CREATE_BACKOFF_MS", &cfg.Pool.CreateBackoff)

	setString("HANDLEPOOL_DB_USER", &cfg.Driver.User)
	setString("HANDLEPOOL_DB_PASSWORD", &cfg.Driver.Password)
	setMillis("HANDLEPOOL_PING_TIMEOUT_MS", &cfg.Driver.PingTimeout)
	setMillis("HANDLEPOOL_DIAL_TIMEOUT_MS", &cfg.Driver.DialTimeout)

	setBool("HANDLEPOOL_BREAKER_ENABLED", &cfg.Breaker.Enabled)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithField("key", key).WithError(err).Warn("ignoring invalid integer in environment")
		return
	}
	*dst = n
}

func setBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithField("key", key).WithError(err).Warn("ignoring invalid boolean in environment")
		return
	}
	*dst = b
}

func setMillis(key string, dst *time.Duration) {
	ms := -1
	setInt(key, &ms)
	if ms >= 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

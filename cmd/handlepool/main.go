// handlepool exercises a bounded pool of database handles.
//
// It opens a pool against a backend descriptor, runs concurrent workers
// that acquire, use and release handles, then prints the pool state.
//
// Usage:
//
//	handlepool [flags]
//	handlepool init-config [path]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "~/.handlepool/config.toml")
//	-target string
//	    Backend descriptor, e.g. db:sqlite3:file:app.db (overrides config)
//	-initial int
//	    Handles created up front (overrides config)
//	-max int
//	    Maximum live handles (overrides config)
//	-wait
//	    Block at capacity instead of failing (overrides config)
//	-workers, -iterations, -hold, -rate
//	    Workload shape (override config)
//	-v
//	    Enable verbose logging
//	-stats
//	    Print metrics after the run
//	-version
//	    Print version and exit
//
// Library components log through go-i2p/logger; set DEBUG_I2P=debug to see
// their output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-i2p/handlepool/lib/config"
	"github.com/go-i2p/handlepool/lib/driver"
	apperrors "github.com/go-i2p/handlepool/lib/errors"
	"github.com/go-i2p/handlepool/lib/metrics"
	"github.com/go-i2p/handlepool/lib/pool"
	"github.com/go-i2p/handlepool/lib/resilience"
	"github.com/go-i2p/handlepool/version"
)

const (
	exitOK      = apperrors.ExitOK
	exitRuntime = apperrors.ExitRuntime
	exitConfig  = apperrors.ExitConfiguration
)

func main() {
	os.Exit(run())
}

func run() int {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	defaultConfigPath := filepath.Join(homeDir, ".handlepool", "config.toml")

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	target := flag.String("target", "", "Backend descriptor db:<subscheme>:<identifier> (overrides config)")
	initial := flag.Int("initial", 0, "Handles created up front (overrides config)")
	maxSize := flag.Int("max", 0, "Maximum live handles (overrides config)")
	wait := flag.Bool("wait", config.DefaultWaitIfBusy, "Block at capacity instead of failing (overrides config)")
	workers := flag.Int("workers", 0, "Concurrent workers (overrides config)")
	iterations := flag.Int("iterations", -1, "Acquire/release cycles per worker (overrides config)")
	hold := flag.Duration("hold", -1, "How long each worker holds a handle (overrides config)")
	rate := flag.Float64("rate", 0, "Maximum acquisitions per second, 0 for unlimited (overrides config)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	showStats := flag.Bool("stats", false, "Print metrics after the run")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "handlepool - bounded handle pool exerciser\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  handlepool [flags]               Run the workload\n")
		fmt.Fprintf(os.Stderr, "  handlepool init-config [path]    Write a default configuration file\n\n")
		fmt.Fprintf(os.Stderr, "Supported subschemes: %v\n\n", driver.Subschemes())
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("handlepool version %s\n", version.Full())
		return exitOK
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	args := flag.Args()
	if len(args) > 0 && args[0] == "init-config" {
		path := *configPath
		if len(args) > 1 {
			path = args[1]
		}
		return handleInitConfig(logger, path)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return exitConfig
	}

	// Apply command-line overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Pool.Target = *target
		case "initial":
			cfg.Pool.InitialSize = *initial
		case "max":
			cfg.Pool.MaxSize = *maxSize
		case "wait":
			cfg.Pool.WaitIfBusy = *wait
		case "workers":
			cfg.Workload.Workers = *workers
		case "iterations":
			cfg.Workload.Iterations = *iterations
		case "hold":
			cfg.Workload.Hold = *hold
		case "rate":
			cfg.Workload.Rate = *rate
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitConfig
	}

	metrics.RecordStartTime()

	factory := driver.Factory(cfg.DriverOptions())
	var breaker *resilience.CircuitBreaker
	if cfg.Breaker.Enabled {
		factory, breaker = resilience.GuardFactory(cfg.Pool.Target, cfg.BreakerOptions(), factory)
	}

	p, err := pool.New(factory, cfg.PoolOptions())
	if err != nil {
		logger.Error("failed to create pool",
			"target", cfg.Pool.Target, "class", apperrors.Classify(err), "error", err)
		return apperrors.ExitCode(err)
	}
	defer p.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("handlepool started",
		"target", cfg.Pool.Target,
		"max", cfg.Pool.MaxSize,
		"wait", cfg.Pool.WaitIfBusy,
		"workers", cfg.Workload.Workers,
		"version", version.Version)

	start := time.Now()
	result, err := runWorkload(ctx, p, cfg.Workload, logger)
	elapsed := time.Since(start)

	pool.UpdateMetrics(p.Stats())
	fmt.Println(p.String())
	fmt.Printf("acquired=%d rejected=%d probe_failed=%d elapsed=%s\n",
		result.Acquired, result.Rejected, result.ProbeFailed, elapsed.Round(time.Millisecond))
	if breaker != nil {
		logger.Debug("circuit breaker", "state", breaker.State().String())
	}

	if *showStats {
		if werr := metrics.WriteTo(os.Stdout); werr != nil {
			logger.Error("failed to write metrics", "error", werr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("workload failed", "class", apperrors.Classify(err), "error", err)
		return apperrors.ExitCode(err)
	}

	logger.Info("handlepool stopped")
	return exitOK
}

// handleInitConfig handles the "init-config" subcommand.
func handleInitConfig(logger *slog.Logger, path string) int {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Config file already exists: %s\n", path)
		return exitConfig
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		logger.Error("failed to write config", "path", path, "error", err)
		return exitRuntime
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return exitOK
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/amikos-tech/onnx-fuzz/harness"
	"github.com/amikos-tech/onnx-fuzz/internal/config"
	"github.com/amikos-tech/onnx-fuzz/ort"
)

// newEngine initializes ONNX Runtime and returns an engine with a release
// function for the environment. Tests replace it with a fake.
var newEngine = func(ctx context.Context, cfg config.RuntimeConfig, logger *slog.Logger) (harness.Engine, func() error, error) {
	release, err := initRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := harness.NewORTEngine(
		harness.WithIntraOpThreads(cfg.Threads),
		harness.WithInterOpThreads(cfg.InterOpThreads),
	)
	if err != nil {
		return nil, nil, errors.Join(err, release())
	}
	return engine, release, nil
}

// initRuntime loads the shared library from cfg.ORTLibraryPath, or downloads
// and caches the release for this platform when it is empty.
func initRuntime(ctx context.Context, cfg config.RuntimeConfig, logger *slog.Logger) (func() error, error) {
	opts := []ort.BootstrapOption{ort.WithBootstrapLogger(logger)}
	if cfg.ORTLibraryPath != "" {
		opts = append(opts, ort.WithBootstrapLibraryPath(cfg.ORTLibraryPath))
	}
	if cfg.ORTVersion != "" {
		opts = append(opts, ort.WithBootstrapVersion(cfg.ORTVersion))
	}
	if cfg.CacheDir != "" {
		opts = append(opts, ort.WithBootstrapCacheDir(cfg.CacheDir))
	}
	if cfg.DisableDownload {
		opts = append(opts, ort.WithBootstrapDisableDownload(true))
	}

	if err := ort.InitializeEnvironmentWithBootstrap(ctx, opts...); err != nil {
		return nil, fmt.Errorf("initialize ONNX Runtime: %w", err)
	}
	logger.Debug("ONNX Runtime ready", "version", ort.GetVersionString())
	return ort.DestroyEnvironment, nil
}

// exitProcess is os.Exit, replaced in tests.
var exitProcess = os.Exit

// watchdog aborts the process when a guarded call outlives timeout. Run has
// no cancellation, so exiting is the only way to bound it.
type watchdog struct {
	timeout time.Duration
	logger  *slog.Logger
	// beforeExit runs just before the process exits, for example to flush
	// the fuzz log.
	beforeExit func()
}

func (w watchdog) guard(fn func() error) error {
	if w.timeout <= 0 {
		return fn()
	}
	timer := time.AfterFunc(w.timeout, func() {
		w.logger.Error("inference exceeded timeout, aborting", "timeout", w.timeout)
		if w.beforeExit != nil {
			w.beforeExit()
		}
		exitProcess(2)
	})
	defer timer.Stop()
	return fn()
}

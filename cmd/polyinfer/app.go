package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"polyinfer-hq/polyinfer/pkg/cli"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/metrics"
	"polyinfer-hq/polyinfer/pkg/orchestrator"
	"polyinfer-hq/polyinfer/pkg/telemetry/logging"
	"polyinfer-hq/polyinfer/pkg/telemetry/tracing"
)

// app holds the components built from a configuration file.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracer   *tracing.Tracer
	exporter *metrics.Exporter
	orch     *orchestrator.Orchestrator
}

type appOptions struct {
	// exporter attaches a Prometheus exporter when the configuration
	// enables it.
	exporter bool
}

// loadConfig loads the configuration file with environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	lc := logging.FromConfig(cfg.Telemetry.Logging, os.Stderr)
	if verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return logger, nil
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	tracer, err := tracing.New(cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	tracer.SetGlobal()

	a := &app{cfg: cfg, logger: logger, tracer: tracer}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithTracerProvider(tracer.Provider()),
	}
	if opts.exporter && cfg.Telemetry.Prometheus.Enabled {
		a.exporter = metrics.NewExporter(cfg.Telemetry.Prometheus.Namespace, nil)
		orchOpts = append(orchOpts, orchestrator.WithExporter(a.exporter))
	}

	a.orch, err = orchestrator.New(cfg, orchOpts...)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, cli.NewConfigError(cfgFile, err)
	}

	return a, nil
}

// close stops the orchestrator and flushes pending spans.
func (a *app) close() {
	_ = a.orch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", "error", err)
	}
}

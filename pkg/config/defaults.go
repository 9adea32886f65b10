package config

import "time"

// Default values for configuration fields.
const (
	// Orchestration defaults
	DefaultMode               = ModeSynchronous
	DefaultConsecutiveSuccess = 3
	DefaultProviderTimeout    = 60 * time.Second

	// Cache defaults
	DefaultCacheTTL           = int64(300000) // 5 minutes, in milliseconds
	DefaultCacheSweepSchedule = "@every 1m"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:3000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)

	// Telemetry defaults
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultPrometheusPath    = "/metrics/prometheus"
	DefaultMetricsNamespace  = "polyinfer"
	DefaultTracerServiceName = "polyinfer"
	DefaultTracingSampler    = "always"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	} else if m, err := ParseMode(string(cfg.Mode)); err == nil {
		cfg.Mode = m
	}
	if cfg.ConsecutiveSuccess == 0 {
		cfg.ConsecutiveSuccess = DefaultConsecutiveSuccess
	}

	for i := range cfg.Providers {
		if cfg.Providers[i].Timeout == 0 {
			cfg.Providers[i].Timeout = DefaultProviderTimeout
		}
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Prometheus.Path == "" {
		cfg.Telemetry.Prometheus.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Prometheus.Namespace == "" {
		cfg.Telemetry.Prometheus.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracerServiceName
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
}

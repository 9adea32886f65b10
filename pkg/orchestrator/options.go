package orchestrator

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/keys"
	"polyinfer-hq/polyinfer/pkg/metrics"
	"polyinfer-hq/polyinfer/pkg/providers"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Per-attempt records are only written when
// the configuration enables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClient replaces the provider HTTP client.
func WithClient(client *providers.Client) Option {
	return func(o *Orchestrator) {
		o.client = client
	}
}

// WithSelector replaces the key selector, for example to inject a key
// lookup or a seeded random source.
func WithSelector(selector *keys.Selector) Option {
	return func(o *Orchestrator) {
		o.selector = selector
	}
}

// WithExporter mirrors metrics and cache events into Prometheus.
func WithExporter(exporter *metrics.Exporter) Option {
	return func(o *Orchestrator) {
		o.exporter = exporter
	}
}

// WithTracerProvider sets the tracer provider. The default is the global
// provider, which is a no-op unless one was installed.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// SayOption configures a single Say call.
type SayOption func(*sayOptions)

type sayOptions struct {
	config *config.Config
	mode   config.Mode
}

// WithConfig replaces the configuration for this call only.
func WithConfig(cfg *config.Config) SayOption {
	return func(o *sayOptions) {
		o.config = cfg
	}
}

// WithMode overrides the dispatch mode for this call only.
func WithMode(mode config.Mode) SayOption {
	return func(o *sayOptions) {
		o.mode = mode
	}
}

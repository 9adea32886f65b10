package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"polyinfer-hq/polyinfer/pkg/extract"
	"polyinfer-hq/polyinfer/pkg/keys"
)

// Mode selects how providers are dispatched for a call.
type Mode string

const (
	// ModeSynchronous tries providers one after another and stops at the
	// first success.
	ModeSynchronous Mode = "synchronous"

	// ModeConcurrent races every provider and keeps the first success.
	ModeConcurrent Mode = "concurrent"
)

// ParseMode parses a mode name. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSynchronous:
		return ModeSynchronous, nil
	case ModeConcurrent:
		return ModeConcurrent, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected %q or %q)", s, ModeSynchronous, ModeConcurrent)
	}
}

// Config is the root configuration of a polyinfer orchestrator.
//
// A Config is built once, prepared with Prepare (or loaded with Load or
// Parse, which prepare it), and then treated as immutable. Replacing the
// configuration of a running orchestrator means handing it a new Config.
type Config struct {
	// Providers lists the configured backends. Order is significant: it is
	// the dispatch priority order.
	Providers []ProviderConfig `yaml:"providers"`

	// AllIntents is the vocabulary of intent tags providers may declare.
	// Empty means any tag is accepted.
	AllIntents []string `yaml:"all_intents"`

	// Mode is the default dispatch mode.
	// Default: "synchronous"
	Mode Mode `yaml:"mode"`

	// ConsecutiveSuccess is the number of synchronous wins in a row after
	// which a provider is tried first.
	// Default: 3
	ConsecutiveSuccess int `yaml:"consecutive_success"`

	// Logging enables per-attempt structured logging.
	Logging bool `yaml:"logging"`

	// Metrics enables the per-provider metrics collector.
	// Default: true when loaded from a document
	Metrics bool `yaml:"metrics"`

	// Cache configures result memoization.
	Cache CacheConfig `yaml:"cache"`

	// RepairBody runs rendered request bodies that are not valid JSON
	// through a JSON repair pass before sending them.
	// Default: false
	RepairBody bool `yaml:"repair_body"`

	// Server configures the HTTP front end.
	Server ServerConfig `yaml:"server"`

	// Telemetry configures logging, metrics export and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// index maps provider names to positions in Providers.
	index map[string]int
}

// CacheConfig configures result memoization.
type CacheConfig struct {
	// Enabled turns the cache on.
	Enabled bool `yaml:"enabled"`

	// TTL is the entry lifetime in milliseconds. Zero means entries expire
	// immediately and are never stored.
	// Default: 300000 (5 minutes) when the cache section omits it
	TTL int64 `yaml:"ttl"`

	// SweepSchedule is the cron schedule of the background pass that drops
	// expired entries. Empty disables the sweep; expiry is still enforced
	// on lookup.
	// Default: "@every 1m"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// TTLDuration returns TTL as a time.Duration.
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Millisecond
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to.
	// Default: "127.0.0.1:3000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading a request, body included.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response. It must cover the slowest
	// provider chain.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive idle time.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus contains metrics export configuration.
	Prometheus PrometheusConfig `yaml:"prometheus"`

	// Tracing contains tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactKeys masks API keys and bearer tokens in log attributes.
	// Default: true when loaded from a document
	RedactKeys bool `yaml:"redact_keys"`
}

// PrometheusConfig contains metrics export configuration.
type PrometheusConfig struct {
	// Enabled exposes the Prometheus endpoint on the HTTP server.
	// Default: true when loaded from a document
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the exposition endpoint.
	// Default: "/metrics/prometheus"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "polyinfer"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains tracing configuration.
type TracingConfig struct {
	// Enabled emits spans through the global OpenTelemetry tracer provider.
	// When false a no-op tracer is used.
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "polyinfer"
	ServiceName string `yaml:"service_name"`

	// Endpoint is the OTLP gRPC collector address (host:port). Empty
	// records spans in-process without exporting them.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Sampler selects the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampled fraction for the "ratio" sampler.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// UnmarshalYAML presets the defaults that cannot be told apart from an
// explicit false once decoded.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	raw := rawConfig{Metrics: true}
	raw.Telemetry.Logging.RedactKeys = true
	raw.Telemetry.Prometheus.Enabled = true
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Config(raw)
	return nil
}

// UnmarshalYAML presets the TTL so that an omitted ttl and an explicit
// ttl of 0 stay distinguishable.
func (c *CacheConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawCache CacheConfig
	raw := rawCache{TTL: DefaultCacheTTL, SweepSchedule: DefaultCacheSweepSchedule}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = CacheConfig(raw)
	return nil
}

// Provider returns the provider with the given name.
func (c *Config) Provider(name string) (*ProviderConfig, bool) {
	if c.index == nil {
		for i := range c.Providers {
			if c.Providers[i].Name == name {
				return &c.Providers[i], true
			}
		}
		return nil, false
	}
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return &c.Providers[i], true
}

// ProviderNames returns provider names in declared order.
func (c *Config) ProviderNames() []string {
	names := make([]string, len(c.Providers))
	for i, p := range c.Providers {
		names[i] = p.Name
	}
	return names
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Providers = make([]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		out.Providers[i] = p.clone()
	}
	out.AllIntents = append([]string(nil), c.AllIntents...)
	if c.index != nil {
		out.index = make(map[string]int, len(c.index))
		for k, v := range c.index {
			out.index[k] = v
		}
	}
	return &out
}

// WithMode returns a copy of the configuration using mode.
func (c *Config) WithMode(mode Mode) *Config {
	out := c.Clone()
	out.Mode = mode
	return out
}

// Prepare applies defaults, validates the configuration and compiles the
// provider index and response paths. Load and Parse call it; callers that
// build a Config in code must call it before use.
func (c *Config) Prepare() error {
	ApplyDefaults(c)
	if err := Validate(c); err != nil {
		return err
	}
	c.compile()
	return nil
}

// Prepared reports whether Prepare has completed successfully.
func (c *Config) Prepared() bool {
	return c.index != nil
}

// compile builds derived state. Validate must have succeeded.
func (c *Config) compile() {
	c.index = make(map[string]int, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		c.index[p.Name] = i
		p.path = extract.MustParse(p.ResponsePath)
		if p.KeyStrategy == nil {
			p.KeyStrategy = keys.First{}
		}
	}
}

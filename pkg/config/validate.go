package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"polyinfer-hq/polyinfer/pkg/extract"
)

// ErrInvalidConfig is matched by ValidationError via errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "providers[0].api_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Is implements error matching for errors.Is().
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Has reports whether a field error was recorded for field.
func (e ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateOrchestration(cfg)...)
	errs = append(errs, validateProviders(cfg.Providers, cfg.AllIntents)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateOrchestration(cfg *Config) []FieldError {
	var errs []FieldError

	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		errs = append(errs, FieldError{Field: "mode", Message: err.Error()})
	}
	if cfg.ConsecutiveSuccess < 1 {
		errs = append(errs, FieldError{
			Field:   "consecutive_success",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.ConsecutiveSuccess),
		})
	}

	return errs
}

// validateProviders validates the provider list.
func validateProviders(providers []ProviderConfig, allIntents []string) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		return append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
	}

	known := make(map[string]bool, len(allIntents))
	for _, intent := range allIntents {
		known[intent] = true
	}

	seen := make(map[string]int, len(providers))
	for i := range providers {
		p := &providers[i]
		prefix := fmt.Sprintf("providers[%d]", i)

		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "name is required"})
		} else if first, dup := seen[p.Name]; dup {
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate provider name %q (first declared at providers[%d])", p.Name, first),
			})
		} else {
			seen[p.Name] = i
		}

		if p.APIURL == "" {
			errs = append(errs, FieldError{Field: prefix + ".api_url", Message: "api url is required"})
		} else if u, err := url.Parse(p.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".api_url",
				Message: fmt.Sprintf("api url %q must be an absolute http or https URL", p.APIURL),
			})
		}

		if strings.TrimSpace(p.RequestStructure) == "" {
			errs = append(errs, FieldError{Field: prefix + ".request_structure", Message: "request structure is required"})
		}

		if _, err := extract.Parse(p.ResponsePath); err != nil {
			errs = append(errs, FieldError{Field: prefix + ".responsePath", Message: err.Error()})
		}

		for j, name := range p.APIKeyFromEnv {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.api_key_from_env[%d]", prefix, j),
					Message: "environment variable name must not be empty",
				})
			}
		}

		// A keyless provider never consults its strategy.
		if !p.Keyless() {
			if err := p.Strategy().Validate(len(p.APIKeyFromEnv)); err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".api_key_fallback_strategy",
					Message: fmt.Sprintf("%s: %v", p.Strategy().Name(), err),
				})
			}
		}

		if len(known) > 0 {
			for _, intent := range p.Intent {
				if !known[intent] {
					errs = append(errs, FieldError{
						Field:   prefix + ".intent",
						Message: fmt.Sprintf("intent %q is not listed in all_intents", intent),
					})
				}
			}
		}

		if p.Timeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "timeout must be non-negative"})
		}
	}

	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if cfg.TTL < 0 {
		errs = append(errs, FieldError{
			Field:   "cache.ttl",
			Message: fmt.Sprintf("ttl must be non-negative, got %d", cfg.TTL),
		})
	}
	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "cache.sweep_schedule",
				Message: fmt.Sprintf("invalid cron schedule: %v", err),
			})
		}
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must be non-negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q (expected debug, info, warn or error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q (expected json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Prometheus.Path != "" && !strings.HasPrefix(cfg.Prometheus.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.prometheus.path",
			Message: "path must start with /",
		})
	}

	switch cfg.Tracing.Sampler {
	case "", "always", "never":
	case "ratio":
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %g", cfg.Tracing.SampleRatio),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("unknown sampler %q (expected always, never or ratio)", cfg.Tracing.Sampler),
		})
	}

	return errs
}

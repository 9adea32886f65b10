// Package telemetry groups the observability packages used by the
// orchestrator, the HTTP server and the CLI.
//
// # Components
//
//   - logging: slog handlers with API key redaction and request-scoped
//     attributes
//   - tracing: OpenTelemetry tracer provider with configurable sampling and
//     OTLP export
//
// Provider metrics live in pkg/metrics; they are part of the orchestration
// state rather than an exporter concern.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactKeys: true})
//	if err != nil {
//		return err
//	}
//
//	t, err := tracing.New(cfg.Telemetry.Tracing)
//	if err != nil {
//		return err
//	}
//	defer t.Shutdown(context.Background())
//
//	ctx, span := t.Tracer().Start(ctx, "operation")
//	defer span.End()
//
// # Key Protection
//
// With RedactKeys set, values that look like provider credentials are
// masked in every log record:
//
//   - Bearer tokens: Bearer abc.def → Bearer ***
//   - OpenAI and Anthropic keys: sk-abc123... → sk-***
//   - xAI keys: xai-abc123... → xai-***
//   - Google keys: AIzaSy... → AIza***
//   - query parameters: ?key=abc → ?key=***
package telemetry

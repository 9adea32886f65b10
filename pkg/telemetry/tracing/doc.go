// Package tracing builds the OpenTelemetry tracer provider.
//
// With tracing disabled every span is a no-op. With tracing enabled spans
// are sampled according to the configured strategy and, when an endpoint
// is set, batched to an OTLP gRPC collector:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// The orchestrator opens a "polyinfer.say" span per call with one
// "polyinfer.attempt" child per provider key attempt.
package tracing

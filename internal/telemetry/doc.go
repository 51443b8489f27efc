// Package telemetry exports secretsh traces and metrics to an OTLP
// collector.
//
// When enabled, New installs global tracer and meter providers so that
// instrumentation created through otel.Tracer and otel.Meter (the runner
// spans, the MCP tool metrics) is exported. When disabled, or when a
// provider cannot be built, the globals stay no-op and secretsh runs
// normally.
//
//	telemetry:
//	  enabled: true
//	  endpoint: localhost:4317
//	  protocol: grpc          # or http/protobuf
//	  sample_rate: 1.0
//	  metrics_interval: 15s
//
// Span attributes and metric labels carry secret names and outcomes, never
// values or command output.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry

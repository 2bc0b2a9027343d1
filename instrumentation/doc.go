// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the oauth-engine library.
//
// This package enables observability across all library layers through:
// - Metrics: Counters, histograms, and gauges for monitoring OAuth flows
// - Traces: Spans for every flow execution
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-oauth-service",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//		TracerProvider: tracerProvider, // optional, defaults to otel.GetTracerProvider()
//		MeterProvider:  meterProvider,  // optional, defaults to otel.GetMeterProvider()
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	endpoint.Instrumentation = inst
//
// When Enabled is false, no-op providers are used (zero overhead).
//
// # Prometheus
//
// Set MetricsExporter to "prometheus" and leave MeterProvider nil to collect
// metrics into a Prometheus registry:
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		Enabled:         true,
//		MetricsExporter: instrumentation.MetricsExporterPrometheus,
//	})
//	http.Handle("/metrics", promhttp.HandlerFor(inst.PrometheusRegistry(), promhttp.HandlerOpts{}))
//
// Metric names are translated by the exporter, so oauth.code.issued is
// exposed as oauth_code_issued_total.
//
// # Available Metrics
//
// Flows:
//   - oauth.authorization.requests{result} - Authorization requests processed
//   - oauth.code.issued{client_id} - Authorization codes issued
//   - oauth.code.exchanged{client_id, pkce_method} - Codes exchanged for tokens
//   - oauth.token.refreshed{client_id} - Tokens refreshed
//   - oauth.resource.validated{result} - Bearer tokens validated
//   - oauth.protocol.errors{flow, error} - Protocol errors returned to clients
//
// Security:
//   - oauth.pkce.validation_failed{method} - PKCE verification failures
//   - oauth.audit.events{event_type} - Audit events emitted
//
// Actor bridge:
//   - oauth.actor.messages{actor, message, outcome} - Messages processed per mailbox
//   - oauth.actor.message.duration{actor, message} - Round-trip time in milliseconds
//
// Storage:
//   - oauth.storage.codes - Pending authorization codes
//   - oauth.storage.tokens - Live access tokens
//   - oauth.storage.clients - Registered clients
//
// # Traces
//
// Spans are named oauth.authorization, oauth.access_token, oauth.refresh and
// oauth.resource. See tracing.go for the attribute keys.
//
// SECURITY: authorization codes, tokens and secrets are never recorded in
// spans or metrics.
package instrumentation

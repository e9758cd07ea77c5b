// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the jam reconciliation service.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth operations, mailbox
//     fetches, oracle calls, reconciliation outcomes and sync passes
//   - Distributed tracing for sync flows and upstream API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Mailbox Metrics:
//   - mailbox_operations_total: Counter of mailbox API operations by operation, status
//   - mailbox_operation_duration_seconds: Histogram of mailbox operation durations
//
// OAuth Authentication Metrics:
//   - oauth_auth_total: Counter of OAuth authentication events by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Oracle Metrics:
//   - oracle_calls_total: Counter of classification calls by status
//   - oracle_call_duration_seconds: Histogram of classification call durations
//   - oracle_tokens_total: Counter of tokens consumed by direction
//
// Reconciliation and Sync Metrics:
//   - reconcile_outcomes_total: Counter of outcomes (created, updated, skipped)
//   - sync_runs_total: Counter of sync passes by trigger and status
//   - sync_run_duration_seconds: Histogram of sync pass durations
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - Sync passes (sync.run)
//   - Upstream API calls (mailbox.list, oracle.complete)
//   - OAuth token operations
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: jam)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "jam",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "POST", "/sync/gmail", 202, time.Since(start))
//
//	// Record a mailbox operation
//	recorder.RecordMailboxOperation(ctx, "list", "success", time.Since(start))
//
//	// Record a sync pass
//	recorder.RecordSyncRun(ctx, "cadence", "success", time.Since(start))
package instrumentation

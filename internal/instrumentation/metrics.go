package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	// Common attributes (reused across metrics)
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrOutcome   = "outcome"
	attrTrigger   = "trigger"
	attrOwner     = "owner"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Mailbox (Google API) metrics
	mailboxOperationsTotal   metric.Int64Counter
	mailboxOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Oracle metrics
	oracleCallsTotal   metric.Int64Counter
	oracleCallDuration metric.Float64Histogram
	oracleTokensTotal  metric.Int64Counter

	// Reconciliation metrics
	reconcileOutcomesTotal metric.Int64Counter

	// Sync pass metrics
	syncRunsTotal   metric.Int64Counter
	syncRunDuration metric.Float64Histogram

	// Configuration
	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// Mailbox Metrics
	m.mailboxOperationsTotal, err = meter.Int64Counter(
		"mailbox_operations_total",
		metric.WithDescription("Total number of mailbox API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox_operations_total counter: %w", err)
	}

	m.mailboxOperationDuration, err = meter.Float64Histogram(
		"mailbox_operation_duration_seconds",
		metric.WithDescription("Mailbox API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailbox_operation_duration_seconds histogram: %w", err)
	}

	// OAuth Metrics
	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	// Oracle Metrics
	m.oracleCallsTotal, err = meter.Int64Counter(
		"oracle_calls_total",
		metric.WithDescription("Total number of classification oracle calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle_calls_total counter: %w", err)
	}

	m.oracleCallDuration, err = meter.Float64Histogram(
		"oracle_call_duration_seconds",
		metric.WithDescription("Classification oracle call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle_call_duration_seconds histogram: %w", err)
	}

	m.oracleTokensTotal, err = meter.Int64Counter(
		"oracle_tokens_total",
		metric.WithDescription("Total number of oracle tokens consumed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle_tokens_total counter: %w", err)
	}

	// Reconciliation Metrics
	m.reconcileOutcomesTotal, err = meter.Int64Counter(
		"reconcile_outcomes_total",
		metric.WithDescription("Total number of reconciliation outcomes by kind"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile_outcomes_total counter: %w", err)
	}

	// Sync Pass Metrics
	m.syncRunsTotal, err = meter.Int64Counter(
		"sync_runs_total",
		metric.WithDescription("Total number of mailbox sync passes"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_runs_total counter: %w", err)
	}

	m.syncRunDuration, err = meter.Float64Histogram(
		"sync_run_duration_seconds",
		metric.WithDescription("Mailbox sync pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_run_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMailboxOperation records a mailbox API operation with operation name,
// status, and duration.
//
// Parameters:
//   - operation: Operation type (list, get, etc.)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordMailboxOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.mailboxOperationsTotal == nil || m.mailboxOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, ServiceMailbox),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.mailboxOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.mailboxOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthAuth records an OAuth authentication attempt with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOracleCall records one classification oracle call with status,
// duration and token consumption.
func (m *Metrics) RecordOracleCall(ctx context.Context, status string, duration time.Duration, inputTokens, outputTokens int64) {
	if m.oracleCallsTotal == nil || m.oracleCallDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.oracleCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.oracleCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if m.oracleTokensTotal != nil {
		m.oracleTokensTotal.Add(ctx, inputTokens,
			metric.WithAttributes(attribute.String("direction", "input")))
		m.oracleTokensTotal.Add(ctx, outputTokens,
			metric.WithAttributes(attribute.String("direction", "output")))
	}
}

// RecordReconcileOutcome records one reconciliation outcome.
// Outcome should be one of: "created", "updated", "skipped".
func (m *Metrics) RecordReconcileOutcome(ctx context.Context, outcome string) {
	if m.reconcileOutcomesTotal == nil {
		return // Instrumentation not initialized
	}

	m.reconcileOutcomesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordSyncRun records one completed sync pass with its trigger origin,
// status, and duration.
//
// Parameters:
//   - trigger: "cadence" or "on_demand"
//   - status: Result status ("success" or "error")
//   - duration: Wall time of the whole pass
func (m *Metrics) RecordSyncRun(ctx context.Context, trigger, status string, duration time.Duration) {
	if m.syncRunsTotal == nil || m.syncRunDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTrigger, trigger),
		attribute.String(attrStatus, status),
	}

	m.syncRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.syncRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSyncRunForOwner records a sync pass including an owner label.
// This is the detailed version used when detailedLabels is enabled; the
// owner value should already be anonymized by the caller.
func (m *Metrics) RecordSyncRunForOwner(ctx context.Context, trigger, status, owner string, duration time.Duration) {
	if m.syncRunsTotal == nil || m.syncRunDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTrigger, trigger),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && owner != "" {
		attrs = append(attrs, attribute.String(attrOwner, owner))
	}

	m.syncRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.syncRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

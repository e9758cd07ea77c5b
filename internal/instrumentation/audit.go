package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SyncAudit captures all information about one sync pass for audit
// logging. It provides an audit trail for every automated touch of a
// user's mailbox and records.
//
// # Privacy Considerations
//
// The UserEmail field contains PII. When logging, consider:
//   - Using UserDomain() to get only the domain for metrics/general logs
//   - Only logging full email in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type SyncAudit struct {
	// Trigger origin: "cadence" or "on_demand"
	Trigger string

	// Owner identity
	OwnerID   string
	UserEmail string

	// Pass accounting
	Created int
	Updated int
	Skipped int

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserDomain returns the domain portion of the user's email for lower-cardinality logging.
func (sa *SyncAudit) UserDomain() string {
	return ExtractUserDomain(sa.UserEmail)
}

// Status returns "success" or "error" based on the Success field.
func (sa *SyncAudit) Status() string {
	if sa.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging.
// This provides a consistent set of fields for all sync pass logs.
//
// # Cardinality
//
// This function uses cardinality-controlled values (user_domain)
// for metrics-compatible logging. For full audit logging, use LogAuditAttrs.
func (sa *SyncAudit) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("trigger", sa.Trigger),
		slog.String("user_domain", sa.UserDomain()),
		slog.Int("created", sa.Created),
		slog.Int("updated", sa.Updated),
		slog.Int("skipped", sa.Skipped),
		slog.Duration("duration", sa.Duration),
		slog.Bool("success", sa.Success),
	}

	// Add optional fields only if present
	if sa.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", sa.TraceID))
	}
	if sa.Error != "" {
		attrs = append(attrs, slog.String("error", sa.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging.
// This includes the full user email for compliance/audit purposes.
//
// # Security Warning
//
// This method includes PII (full email). Ensure audit logs are:
//   - Stored securely with appropriate access controls
//   - Not exposed to general monitoring dashboards
//   - Retained according to compliance requirements
func (sa *SyncAudit) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("trigger", sa.Trigger),
		slog.String("owner", sa.OwnerID),
		slog.String("user", sa.UserEmail),
		slog.Int("created", sa.Created),
		slog.Int("updated", sa.Updated),
		slog.Int("skipped", sa.Skipped),
		slog.Duration("duration", sa.Duration),
		slog.Bool("success", sa.Success),
	}

	if sa.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", sa.TraceID))
	}
	if sa.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", sa.SpanID))
	}
	if sa.Error != "" {
		attrs = append(attrs, slog.String("error", sa.Error))
	}

	return attrs
}

// NewSyncAudit creates a new SyncAudit with timing started.
// Call Complete() when the pass finishes.
func NewSyncAudit(trigger string) *SyncAudit {
	return &SyncAudit{
		Trigger:   trigger,
		StartTime: time.Now(),
	}
}

// WithOwner sets the owner identity information.
func (sa *SyncAudit) WithOwner(ownerID, email string) *SyncAudit {
	sa.OwnerID = ownerID
	sa.UserEmail = email
	return sa
}

// WithCounts sets the pass accounting.
func (sa *SyncAudit) WithCounts(created, updated, skipped int) *SyncAudit {
	sa.Created = created
	sa.Updated = updated
	sa.Skipped = skipped
	return sa
}

// WithSpanContext extracts trace context from the current span.
func (sa *SyncAudit) WithSpanContext(ctx context.Context) *SyncAudit {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		sa.TraceID = span.SpanContext().TraceID().String()
		sa.SpanID = span.SpanContext().SpanID().String()
	}
	return sa
}

// Complete marks the pass as completed and calculates duration.
// Returns the same SyncAudit for method chaining.
func (sa *SyncAudit) Complete(success bool, err error) *SyncAudit {
	sa.Duration = time.Since(sa.StartTime)
	sa.Success = success
	if err != nil {
		sa.Error = err.Error()
	}
	return sa
}

// CompleteWithError marks the pass as failed with the given error.
func (sa *SyncAudit) CompleteWithError(err error) *SyncAudit {
	return sa.Complete(false, err)
}

// CompleteSuccess marks the pass as successful.
func (sa *SyncAudit) CompleteSuccess() *SyncAudit {
	return sa.Complete(true, nil)
}

// AuditLogger provides structured audit logging for mailbox syncs and
// credential connections. It wraps slog.Logger with convenience methods.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs (anonymized identifiers are used instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include full email addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogSync logs one completed sync pass using the standard log attributes.
// If the logger is configured with IncludePII, full user emails are logged;
// otherwise, only domain-based anonymized identifiers are used.
func (al *AuditLogger) LogSync(sa *SyncAudit) {
	if !al.enabled {
		return
	}

	// Choose between PII and anonymized logging based on configuration
	var attrs []slog.Attr
	if al.includePII {
		attrs = sa.LogAuditAttrs()
	} else {
		attrs = sa.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if sa.Success {
		al.logger.Info("sync_executed", args...)
	} else {
		al.logger.Warn("sync_failed", args...)
	}
}

// LogCredentialConnect logs a mailbox credential connection event
// (a completed OAuth consent that stored a refresh token).
func (al *AuditLogger) LogCredentialConnect(ownerID, email string, success bool) {
	if !al.enabled {
		return
	}

	user := ExtractUserDomain(email)
	if al.includePII {
		user = email
	}

	if success {
		al.logger.Info("mailbox_connected",
			slog.String("owner", ownerID),
			slog.String("user", user))
	} else {
		al.logger.Warn("mailbox_connect_failed",
			slog.String("user", user))
	}
}

// TraceIDFromContext extracts the trace ID from the current span in context.
// Returns empty string if no valid span is present.
//
// Deprecated: Use GetTraceID instead.
func TraceIDFromContext(ctx context.Context) string {
	return GetTraceID(ctx)
}

package audit

import (
	"context"
	"log/slog"

	"github.com/eleven-am/verdict/internal/ports"
)

// SlogSink writes audit records as structured log lines. Records are
// append-only; nothing in the core reads them back.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "audit")}
}

func (s *SlogSink) Record(ctx context.Context, record ports.AuditRecord) error {
	s.logger.InfoContext(ctx, "audit",
		"actor", record.Actor,
		"tenant_id", record.TenantID,
		"action", record.Action,
		"resource_type", record.ResourceType,
		"resource_id", record.ResourceID,
		"reason", record.Reason,
		"correlation_id", record.CorrelationID,
		"timestamp_utc", record.TimestampUTC,
		"metadata", record.Metadata)
	return nil
}

var _ ports.AuditSink = (*SlogSink)(nil)

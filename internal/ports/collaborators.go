package ports

import (
	"context"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
)

// EventRepository is the source of truth for persisted events. Failures
// surface to the orchestrator as PersistenceError.
type EventRepository interface {
	Save(ctx context.Context, event *domain.Event, correlationID string) (*domain.Event, error)
	Get(ctx context.Context, tenantID, eventID string) (*domain.Event, bool, error)
}

// Message is the envelope published when an event enters the system.
type Message struct {
	EventID       string             `json:"event_id"`
	TenantID      string             `json:"tenant_id"`
	CorrelationID string             `json:"correlation_id"`
	EventType     string             `json:"event_type"`
	Status        domain.EventStatus `json:"status"`
	Headers       map[string]string  `json:"headers,omitempty"`
}

// Publisher announces persisted events to interested collaborators.
// Failures surface as PublishFailure and abort the transaction.
type Publisher interface {
	Publish(ctx context.Context, topic string, message Message) error
}

// WorkflowTrigger starts the decision pipeline for a persisted event.
// Trigger failures are caught and logged by the orchestrator, never
// propagated.
type WorkflowTrigger interface {
	Start(ctx context.Context, eventID, tenantID string) error
}

// AuditRecord is one append-only audit entry. The core never reads the
// sink back.
type AuditRecord struct {
	Actor         string                 `json:"actor"`
	TenantID      string                 `json:"tenant_id"`
	Action        string                 `json:"action"`
	ResourceType  string                 `json:"resource_type"`
	ResourceID    string                 `json:"resource_id"`
	Reason        string                 `json:"reason,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	TimestampUTC  time.Time              `json:"timestamp_utc"`
}

// AuditSink records structured audit entries: who, what, when (UTC), and
// the correlation chain.
type AuditSink interface {
	Record(ctx context.Context, record AuditRecord) error
}

// MetricsSink reports counters and latencies. Absence of a sink must not
// change behavior; callers hold a no-op implementation instead of nil.
type MetricsSink interface {
	Increment(name string, labels map[string]string)
	ObserveLatency(name string, millis float64, labels map[string]string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Increment(string, map[string]string)               {}
func (NoopMetrics) ObserveLatency(string, float64, map[string]string) {}

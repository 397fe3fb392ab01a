package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

const (
	defaultTopic          = "events"
	defaultActor          = "system"
	defaultIdempotencyTTL = 300 * time.Second

	// reservationTTL bounds how long a crashed submission blocks its
	// idempotency key before duplicates may run the transaction.
	reservationTTL = 30 * time.Second

	// reservationPollInterval paces duplicates waiting for the key
	// holder's transaction to settle.
	reservationPollInterval = 5 * time.Millisecond

	breakerPersistence = "persistence"
	breakerPublisher   = "publisher"
	breakerWorkflow    = "workflow"
)

type Config struct {
	Topic          string        `json:"topic" yaml:"topic"`
	Actor          string        `json:"actor" yaml:"actor"`
	IdempotencyTTL time.Duration `json:"idempotency_ttl" yaml:"idempotency_ttl"`
}

// SubmitRequest carries one caller submission. The idempotency key scopes
// "same logical request" within the tenant.
type SubmitRequest struct {
	TenantID       string
	IdempotencyKey string
	CorrelationID  string
	EventType      string
	Payload        map[string]interface{}
	Version        string
}

// Orchestrator is the transaction boundary: reserve the idempotency key,
// persist, publish, trigger the workflow, audit, commit the key.
// Persistence is the source of truth; publish is transactionally
// required; the workflow is best-effort and decoupled from the
// synchronous path.
type Orchestrator struct {
	repo      ports.EventRepository
	publisher ports.Publisher
	trigger   ports.WorkflowTrigger
	audit     ports.AuditSink
	gate      ports.IdempotencyGate
	breakers  ports.CircuitBreakerProvider
	metrics   ports.MetricsSink
	logger    *slog.Logger
	config    Config
}

func New(repo ports.EventRepository, publisher ports.Publisher, trigger ports.WorkflowTrigger, audit ports.AuditSink, gate ports.IdempotencyGate, breakers ports.CircuitBreakerProvider, metrics ports.MetricsSink, config Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	if config.Topic == "" {
		config.Topic = defaultTopic
	}
	if config.Actor == "" {
		config.Actor = defaultActor
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = defaultIdempotencyTTL
	}

	return &Orchestrator{
		repo:      repo,
		publisher: publisher,
		trigger:   trigger,
		audit:     audit,
		gate:      gate,
		breakers:  breakers,
		metrics:   metrics,
		logger:    logger.With("component", "orchestrator"),
		config:    config,
	}
}

func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*domain.Receipt, error) {
	if req.IdempotencyKey == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	start := time.Now()
	logger := o.logger.With(
		"tenant_id", req.TenantID,
		"correlation_id", correlationID)

	now := time.Now().UTC()
	event := &domain.Event{
		TenantID:      req.TenantID,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		EventType:     req.EventType,
		Payload:       req.Payload,
		Status:        domain.StatusReceived,
		Version:       req.Version,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	receipt := &domain.Receipt{
		EventID:       event.EventID,
		TenantID:      event.TenantID,
		CorrelationID: correlationID,
		EventType:     event.EventType,
		Status:        event.Status,
		CreatedAt:     event.CreatedAt,
		Version:       event.Version,
	}

	// Step 1: win the key or converge on the holder's result. Of N
	// concurrent duplicates exactly one reservation succeeds; every
	// other caller returns the winner's receipt without side effects.
	won, cached, err := o.claimKey(ctx, req, receipt, logger)
	if err != nil {
		return nil, err
	}
	if !won {
		return cached, nil
	}

	// Step 2: persist. Failure aborts and frees the key for a retry.
	var persisted *domain.Event
	err = o.breakers.GetCircuitBreaker(breakerPersistence).Execute(ctx, func() error {
		var saveErr error
		persisted, saveErr = o.repo.Save(ctx, event, correlationID)
		return saveErr
	})
	if err != nil {
		o.metrics.Increment("transaction_persist_failure", map[string]string{"tenant_id": req.TenantID})
		logger.Error("event persistence failed", "error", err)
		o.abortReservation(ctx, req, logger)
		return nil, domain.NewPersistenceError("save", err)
	}

	// Step 3: publish. Failure is terminal and the reservation is
	// dropped, so a retry with the same key re-attempts the transaction.
	message := ports.Message{
		EventID:       persisted.EventID,
		TenantID:      persisted.TenantID,
		CorrelationID: correlationID,
		EventType:     persisted.EventType,
		Status:        persisted.Status,
		Headers:       map[string]string{"idempotency_key": req.IdempotencyKey},
	}
	err = o.breakers.GetCircuitBreaker(breakerPublisher).Execute(ctx, func() error {
		return o.publisher.Publish(ctx, o.config.Topic, message)
	})
	if err != nil {
		o.metrics.Increment("transaction_publish_failure", map[string]string{"tenant_id": req.TenantID})
		logger.Error("event publish failed, transaction aborted", "event_id", persisted.EventID, "error", err)
		o.abortReservation(ctx, req, logger)
		return nil, domain.NewPublishFailure(o.config.Topic, err)
	}

	// Step 4: trigger the workflow. Best-effort: persistence and publish
	// already succeeded, so a trigger failure does not fail the caller.
	err = o.breakers.GetCircuitBreaker(breakerWorkflow).Execute(ctx, func() error {
		return o.trigger.Start(ctx, persisted.EventID, persisted.TenantID)
	})
	if err != nil {
		o.metrics.Increment("workflow_trigger_failure", map[string]string{"tenant_id": req.TenantID})
		logger.Error("workflow trigger failed, continuing transaction", "event_id", persisted.EventID, "error", err)
		o.recordAudit(ctx, persisted, correlationID, "workflow_trigger_failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Step 5: audit the accepted transaction.
	o.recordAudit(ctx, persisted, correlationID, "event_accepted", map[string]interface{}{
		"status":     persisted.Status,
		"event_type": persisted.EventType,
	})

	// Step 6: commit the idempotency record over the reservation. Failing
	// the caller here would force a retry that duplicates publish, so a
	// commit error only costs replay protection and is logged.
	if err := o.gate.Commit(ctx, req.TenantID, req.IdempotencyKey, receipt, o.config.IdempotencyTTL); err != nil {
		logger.Warn("idempotency commit failed", "event_id", persisted.EventID, "error", err)
	}

	o.metrics.ObserveLatency("transaction_duration_ms",
		float64(time.Since(start).Microseconds())/1000.0,
		map[string]string{"tenant_id": req.TenantID})
	logger.Info("transaction committed", "event_id", persisted.EventID)

	return receipt, nil
}

// claimKey races for the idempotency key. It returns won=true when this
// submission reserved the key and must run the transaction. Otherwise it
// waits for the current holder to settle: a commit yields the cached
// receipt, an abort (or reservation expiry) reopens the race.
func (o *Orchestrator) claimKey(ctx context.Context, req SubmitRequest, receipt *domain.Receipt, logger *slog.Logger) (bool, *domain.Receipt, error) {
	for {
		cached, state, err := o.gate.Check(ctx, req.TenantID, req.IdempotencyKey)
		if err != nil {
			return false, nil, domain.NewPersistenceError("idempotency check", err)
		}

		switch state {
		case ports.ReservationCommitted:
			o.metrics.Increment("transaction_replayed", map[string]string{"tenant_id": req.TenantID})
			logger.Info("idempotent replay, returning cached result", "event_id", cached.EventID)
			return false, cached, nil

		case ports.ReservationNone:
			won, err := o.gate.Reserve(ctx, req.TenantID, req.IdempotencyKey, receipt, reservationTTL)
			if err != nil {
				return false, nil, domain.NewPersistenceError("idempotency reserve", err)
			}
			if won {
				return true, nil, nil
			}
		}

		// A concurrent duplicate holds the key; wait for its outcome.
		select {
		case <-ctx.Done():
			return false, nil, ctx.Err()
		case <-time.After(reservationPollInterval):
		}
	}
}

func (o *Orchestrator) abortReservation(ctx context.Context, req SubmitRequest, logger *slog.Logger) {
	if err := o.gate.Abort(ctx, req.TenantID, req.IdempotencyKey); err != nil {
		// The reservation then blocks retries until it expires.
		logger.Warn("idempotency reservation abort failed", "error", err)
	}
}

// GetEvent returns a previously persisted event, tenant-scoped.
func (o *Orchestrator) GetEvent(ctx context.Context, tenantID, eventID string) (*domain.Event, bool, error) {
	event, exists, err := o.repo.Get(ctx, tenantID, eventID)
	if err != nil {
		return nil, false, domain.NewPersistenceError("get", err)
	}
	return event, exists, nil
}

func (o *Orchestrator) recordAudit(ctx context.Context, event *domain.Event, correlationID, action string, metadata map[string]interface{}) {
	record := ports.AuditRecord{
		Actor:         o.config.Actor,
		TenantID:      event.TenantID,
		Action:        action,
		ResourceType:  "event",
		ResourceID:    event.EventID,
		CorrelationID: correlationID,
		Metadata:      metadata,
		TimestampUTC:  time.Now().UTC(),
	}
	if err := o.audit.Record(ctx, record); err != nil {
		o.logger.Error("audit write failed", "action", action, "event_id", event.EventID, "error", err)
	}
}

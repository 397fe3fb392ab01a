package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

// Trigger starts a workflow run for a persisted event. The orchestrator
// treats trigger failures as non-fatal, so errors returned here are
// logged upstream, never propagated to the submitting caller.
type Trigger struct {
	engine ports.WorkflowEngine
	repo   ports.EventRepository
	logger *slog.Logger
}

func NewTrigger(engine ports.WorkflowEngine, repo ports.EventRepository, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}

	return &Trigger{
		engine: engine,
		repo:   repo,
		logger: logger.With("component", "workflow-trigger"),
	}
}

func (t *Trigger) Start(ctx context.Context, eventID, tenantID string) error {
	event, exists, err := t.repo.Get(ctx, tenantID, eventID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("event %s not found for tenant %s", eventID, tenantID)
	}

	state := domain.StateFromEvent(event, "")
	final, err := t.engine.Run(ctx, state)
	if err != nil {
		if domain.IsLockUnavailable(err) {
			t.logger.Info("workflow held by another process", "event_id", eventID)
			return nil
		}
		return err
	}

	t.logger.Debug("workflow triggered",
		"event_id", eventID,
		"tenant_id", tenantID,
		"final_decision", final.FinalDecision)
	return nil
}

var _ ports.WorkflowTrigger = (*Trigger)(nil)

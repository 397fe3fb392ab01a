package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
	"github.com/eleven-am/verdict/internal/xjson"
)

// StateStore caches completed workflow runs keyed by workflow:{event_id}.
// Only final states land here; partial runs retry from the first
// incomplete node using the audit trail instead.
type StateStore struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

func NewStateStore(storage ports.StoragePort, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &StateStore{
		storage: storage,
		logger:  logger.With("component", "workflow-state-store"),
	}
}

func (s *StateStore) GetState(ctx context.Context, eventID string) (domain.WorkflowState, bool, error) {
	data, exists, err := s.storage.Get(ctx, domain.WorkflowStateKey(eventID))
	if err != nil || !exists {
		return domain.WorkflowState{}, false, err
	}

	var state domain.WorkflowState
	if err := xjson.Unmarshal(data, &state); err != nil {
		return domain.WorkflowState{}, false, err
	}
	return state, true, nil
}

func (s *StateStore) SetState(ctx context.Context, eventID string, state domain.WorkflowState, ttl time.Duration) error {
	data, err := xjson.Marshal(&state)
	if err != nil {
		return err
	}
	return s.storage.Put(ctx, domain.WorkflowStateKey(eventID), data, ttl)
}

var _ ports.WorkflowStateStore = (*StateStore)(nil)

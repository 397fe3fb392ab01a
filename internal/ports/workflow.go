package ports

import (
	"context"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
)

// WorkflowNode is one deterministic stage of the decision pipeline. Execute
// never mutates the input state; it returns a new state with its outputs
// and an appended audit-trail entry.
type WorkflowNode interface {
	Name() string
	Execute(ctx context.Context, state domain.WorkflowState) (domain.WorkflowState, error)
}

// WorkflowStateStore caches a completed workflow run keyed by event
// identity, enabling skip-on-replay. Partial runs are never stored.
type WorkflowStateStore interface {
	GetState(ctx context.Context, eventID string) (domain.WorkflowState, bool, error)
	SetState(ctx context.Context, eventID string, state domain.WorkflowState, ttl time.Duration) error
}

// WorkflowEngine executes the node sequence over an immutable state.
type WorkflowEngine interface {
	Run(ctx context.Context, initial domain.WorkflowState) (domain.WorkflowState, error)
}

type EngineConfig struct {
	GuardrailThreshold float64       `json:"guardrail_threshold" yaml:"guardrail_threshold"`
	ModelVersion       string        `json:"model_version" yaml:"model_version"`
	PromptVersion      int           `json:"prompt_version" yaml:"prompt_version"`
	UseLock            bool          `json:"use_lock" yaml:"use_lock"`
	LockTTL            time.Duration `json:"lock_ttl" yaml:"lock_ttl"`
	StateTTL           time.Duration `json:"state_ttl" yaml:"state_ttl"`
}

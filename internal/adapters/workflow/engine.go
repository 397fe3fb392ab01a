package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

const (
	defaultGuardrailThreshold = 75.0
	defaultModelVersion       = "simulated@1"
	defaultPromptVersion      = 1
	defaultLockTTL            = 30 * time.Second
	defaultStateTTL           = time.Hour
)

// Engine runs the deterministic node sequence over an immutable state.
// Replay safety comes from two layers: a completed run cached in the
// state store short-circuits the whole run, and the audit trail skips
// individual nodes that already executed. The optional distributed lock
// keyed by workflow:{event_id} serializes execution across processes.
type Engine struct {
	nodes   []ports.WorkflowNode
	store   ports.WorkflowStateStore
	lock    ports.DistributedLock
	config  ports.EngineConfig
	logger  *slog.Logger
	metrics ports.MetricsSink
}

// NewEngine builds the retrieval → policy_validation → risk_scoring →
// guardrails → decision pipeline. store and lock may be nil; the engine
// then runs without replay caching or cross-process serialization.
func NewEngine(store ports.WorkflowStateStore, lock ports.DistributedLock, audit ports.AuditSink, config ports.EngineConfig, logger *slog.Logger, metrics ports.MetricsSink) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	if config.GuardrailThreshold <= 0 {
		config.GuardrailThreshold = defaultGuardrailThreshold
	}
	if config.ModelVersion == "" {
		config.ModelVersion = defaultModelVersion
	}
	if config.PromptVersion <= 0 {
		config.PromptVersion = defaultPromptVersion
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaultLockTTL
	}
	if config.StateTTL <= 0 {
		config.StateTTL = defaultStateTTL
	}

	logger = logger.With("component", "workflow-engine")
	base := nodeBase{audit: audit, logger: logger}

	return &Engine{
		nodes: []ports.WorkflowNode{
			&retrievalNode{nodeBase: base},
			&policyValidationNode{nodeBase: base},
			&riskScoringNode{nodeBase: base},
			&guardrailsNode{nodeBase: base, threshold: config.GuardrailThreshold},
			&decisionNode{nodeBase: base, threshold: config.GuardrailThreshold},
		},
		store:   store,
		lock:    lock,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (e *Engine) Run(ctx context.Context, initial domain.WorkflowState) (domain.WorkflowState, error) {
	if e.store != nil {
		cached, ok, err := e.store.GetState(ctx, initial.EventID)
		if err != nil {
			return domain.WorkflowState{}, err
		}
		if ok {
			e.metrics.Increment("workflow_replay_hit", map[string]string{"tenant_id": initial.TenantID})
			e.logger.Info("workflow replay, returning cached state",
				"event_id", initial.EventID,
				"correlation_id", initial.CorrelationID)
			return cached, nil
		}
	}

	if e.config.UseLock && e.lock != nil {
		token, err := e.lock.Acquire(ctx, domain.WorkflowStateKey(initial.EventID), e.config.LockTTL)
		if err != nil {
			if domain.IsLockUnavailable(err) {
				e.logger.Info("workflow already executing elsewhere", "event_id", initial.EventID)
			}
			return domain.WorkflowState{}, err
		}
		defer func() {
			if err := e.lock.Release(ctx, domain.WorkflowStateKey(initial.EventID), token); err != nil {
				e.logger.Warn("lock release failed", "event_id", initial.EventID, "error", err)
			}
		}()
	}

	current := initial
	if current.ModelVersion == "" {
		current = current.WithVersions(e.config.ModelVersion, e.config.PromptVersion)
	}

	runStart := time.Now()
	for _, node := range e.nodes {
		if current.NodeExecuted(node.Name()) {
			e.logger.Debug("node already executed, skipping",
				"event_id", current.EventID,
				"node", node.Name())
			continue
		}

		nodeStart := time.Now()
		next, err := node.Execute(ctx, current)
		if err != nil {
			// Partial state is never cached as final; the next run
			// retries from this node.
			e.metrics.Increment("workflow_node_failure", map[string]string{"node": node.Name()})
			return domain.WorkflowState{}, domain.NewWorkflowNodeError(node.Name(), current.EventID, err)
		}

		e.metrics.ObserveLatency("workflow_node_duration_ms",
			float64(time.Since(nodeStart).Microseconds())/1000.0,
			map[string]string{"node": node.Name()})
		current = next
	}

	if e.store != nil {
		if err := e.store.SetState(ctx, current.EventID, current, e.config.StateTTL); err != nil {
			// The run itself succeeded; a cache write failure only costs
			// replay short-circuiting.
			e.logger.Warn("workflow state cache write failed", "event_id", current.EventID, "error", err)
		}
	}

	e.metrics.ObserveLatency("workflow_run_duration_ms",
		float64(time.Since(runStart).Microseconds())/1000.0,
		map[string]string{"tenant_id": current.TenantID})
	e.logger.Info("workflow completed",
		"event_id", current.EventID,
		"correlation_id", current.CorrelationID,
		"final_decision", current.FinalDecision,
		"risk_score", current.RiskScore)

	return current, nil
}

var _ ports.WorkflowEngine = (*Engine)(nil)

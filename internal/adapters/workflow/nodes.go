package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

const (
	NodeRetrieval        = "retrieval"
	NodePolicyValidation = "policy_validation"
	NodeRiskScoring      = "risk_scoring"
	NodeGuardrails       = "guardrails"
	NodeDecision         = "decision"

	workflowActor = "workflow"

	// Deterministic score mapping per event category.
	scoreHighRisk  = 85.0
	scoreSensitive = 70.0
	scoreLowRisk   = 15.0
	scoreStandard  = 30.0
)

// nodeBase carries the collaborators every decision node shares. Audit
// write failures are logged, never propagated: the trail inside the state
// is authoritative for replay, the sink is an external copy.
type nodeBase struct {
	audit  ports.AuditSink
	logger *slog.Logger
}

func (b nodeBase) emitAudit(ctx context.Context, state domain.WorkflowState, action, reason string, metadata map[string]interface{}) {
	record := ports.AuditRecord{
		Actor:         workflowActor,
		TenantID:      state.TenantID,
		Action:        action,
		ResourceType:  "workflow",
		ResourceID:    state.EventID,
		Reason:        reason,
		CorrelationID: state.CorrelationID,
		Metadata:      metadata,
		TimestampUTC:  time.Now().UTC(),
	}
	if err := b.audit.Record(ctx, record); err != nil {
		b.logger.Error("audit write failed", "action", action, "event_id", state.EventID, "error", err)
	}
}

func trailEntry(node, action string, state domain.WorkflowState, start time.Time, summary string) domain.AuditEntry {
	return domain.AuditEntry{
		Node:          node,
		Action:        action,
		At:            time.Now().UTC(),
		DurationMS:    float64(time.Since(start).Microseconds()) / 1000.0,
		ModelVersion:  state.ModelVersion,
		PromptVersion: state.PromptVersion,
		Summary:       summary,
	}
}

func eventMetadata(state domain.WorkflowState) map[string]interface{} {
	if state.RawEvent == nil {
		return nil
	}
	metadata, _ := state.RawEvent["metadata"].(map[string]interface{})
	return metadata
}

func eventType(state domain.WorkflowState) string {
	if state.RawEvent == nil {
		return "unknown"
	}
	if t, ok := state.RawEvent["event_type"].(string); ok && t != "" {
		return t
	}
	return "unknown"
}

func boolField(metadata map[string]interface{}, key string) bool {
	v, _ := metadata[key].(bool)
	return v
}

func stringField(metadata map[string]interface{}, key string) string {
	v, _ := metadata[key].(string)
	return v
}

// retrievalNode derives the retrieved context purely from raw event
// fields. No randomness, no external calls.
type retrievalNode struct {
	nodeBase
}

func (n *retrievalNode) Name() string { return NodeRetrieval }

func (n *retrievalNode) Execute(ctx context.Context, state domain.WorkflowState) (domain.WorkflowState, error) {
	start := time.Now()

	retrieved := fmt.Sprintf("context:%s:%s", state.TenantID, eventType(state))

	entry := trailEntry(NodeRetrieval, "context_retrieved", state, start, retrieved)
	n.emitAudit(ctx, state, "context_retrieved", "deterministic_retrieval", map[string]interface{}{
		"model_version":  state.ModelVersion,
		"prompt_version": state.PromptVersion,
	})
	n.logger.Debug("retrieval node completed", "event_id", state.EventID)

	return state.WithContext(retrieved, entry), nil
}

// policyValidationNode fails the policy when the payload is flagged
// sensitive or carries an explicit override.
type policyValidationNode struct {
	nodeBase
}

func (n *policyValidationNode) Name() string { return NodePolicyValidation }

func (n *policyValidationNode) Execute(ctx context.Context, state domain.WorkflowState) (domain.WorkflowState, error) {
	start := time.Now()
	metadata := eventMetadata(state)

	result := domain.PolicyPass
	if boolField(metadata, "policy_override") || stringField(metadata, "category") == "sensitive" {
		result = domain.PolicyFail
	}

	entry := trailEntry(NodePolicyValidation, "policy_validated", state, start, result)
	n.emitAudit(ctx, state, "policy_validated", "rule_based_validation", map[string]interface{}{
		"policy_result": result,
	})
	n.logger.Debug("policy validation node completed", "event_id", state.EventID, "policy_result", result)

	return state.WithPolicyResult(result, entry), nil
}

// riskScoringNode maps the event category to a fixed score.
type riskScoringNode struct {
	nodeBase
}

func (n *riskScoringNode) Name() string { return NodeRiskScoring }

func (n *riskScoringNode) Execute(ctx context.Context, state domain.WorkflowState) (domain.WorkflowState, error) {
	start := time.Now()
	metadata := eventMetadata(state)

	var score float64
	switch {
	case eventType(state) == "high_risk":
		score = scoreHighRisk
	case stringField(metadata, "category") == "sensitive":
		score = scoreSensitive
	case eventType(state) == "low_risk":
		score = scoreLowRisk
	default:
		score = scoreStandard
	}

	entry := trailEntry(NodeRiskScoring, "risk_scored", state, start, fmt.Sprintf("score=%.1f", score))
	n.emitAudit(ctx, state, "risk_scored", "deterministic_scoring", map[string]interface{}{
		"risk_score": score,
	})
	n.logger.Debug("risk scoring node completed", "event_id", state.EventID, "risk_score", score)

	return state.WithRiskScore(score, entry), nil
}

// guardrailsNode flags a violation when the score breaches the configured
// threshold or the payload matches a blocked pattern.
type guardrailsNode struct {
	nodeBase
	threshold float64
}

func (n *guardrailsNode) Name() string { return NodeGuardrails }

func (n *guardrailsNode) Execute(ctx context.Context, state domain.WorkflowState) (domain.WorkflowState, error) {
	start := time.Now()
	metadata := eventMetadata(state)

	result := domain.GuardrailOK
	if state.RiskScore >= n.threshold || boolField(metadata, "blocked_pattern") {
		result = domain.GuardrailViolation
	}

	entry := trailEntry(NodeGuardrails, "guardrails_applied", state, start, result)
	n.emitAudit(ctx, state, "guardrails_applied", "threshold_and_pattern_check", map[string]interface{}{
		"guardrail_result": result,
		"risk_score":       state.RiskScore,
	})
	n.logger.Debug("guardrails node completed", "event_id", state.EventID, "guardrail_result", result)

	return state.WithGuardrailResult(result, entry), nil
}

// decisionNode is terminal: approval is required on policy failure,
// guardrail violation, or high risk.
type decisionNode struct {
	nodeBase
	threshold float64
}

func (n *decisionNode) Name() string { return NodeDecision }

func (n *decisionNode) Execute(ctx context.Context, state domain.WorkflowState) (domain.WorkflowState, error) {
	start := time.Now()

	decision := domain.DecisionApproved
	if state.PolicyResult == domain.PolicyFail ||
		state.GuardrailResult == domain.GuardrailViolation ||
		state.RiskScore >= n.threshold {
		decision = domain.DecisionRequireApproval
	}

	entry := trailEntry(NodeDecision, "decision_made", state, start, decision)
	n.emitAudit(ctx, state, "decision_made", "deterministic_decision", map[string]interface{}{
		"final_decision": decision,
	})
	n.logger.Debug("decision node completed", "event_id", state.EventID, "final_decision", decision)

	return state.WithDecision(decision, entry), nil
}

package domain

import (
	"time"
)

const (
	PolicyPass              = "PASS"
	PolicyFail              = "FAIL"
	GuardrailOK             = "OK"
	GuardrailViolation      = "VIOLATION"
	DecisionApproved        = "APPROVED"
	DecisionRequireApproval = "REQUIRE_APPROVAL"
)

// AuditEntry records one node execution in a workflow run. The trail is
// append-only and ordered by execution.
type AuditEntry struct {
	Node          string    `json:"node"`
	Action        string    `json:"action"`
	At            time.Time `json:"at"`
	DurationMS    float64   `json:"duration_ms"`
	ModelVersion  string    `json:"model_version"`
	PromptVersion int       `json:"prompt_version"`
	Summary       string    `json:"summary,omitempty"`
}

// WorkflowState is the immutable value threaded through the decision
// pipeline. Every transition returns a new state; callers never mutate a
// state they received. The struct stays fully serializable so runs can be
// cached for replay.
type WorkflowState struct {
	EventID          string                 `json:"event_id"`
	TenantID         string                 `json:"tenant_id"`
	CorrelationID    string                 `json:"correlation_id"`
	RawEvent         map[string]interface{} `json:"raw_event,omitempty"`
	RetrievedContext string                 `json:"retrieved_context,omitempty"`
	PolicyResult     string                 `json:"policy_result,omitempty"`
	RiskScore        float64                `json:"risk_score"`
	GuardrailResult  string                 `json:"guardrail_result,omitempty"`
	FinalDecision    string                 `json:"final_decision,omitempty"`
	ModelVersion     string                 `json:"model_version"`
	PromptVersion    int                    `json:"prompt_version"`
	AuditTrail       []AuditEntry           `json:"audit_trail"`
	IdempotencyKey   string                 `json:"idempotency_key,omitempty"`
}

func (s WorkflowState) clone() WorkflowState {
	next := s
	if s.RawEvent != nil {
		raw := make(map[string]interface{}, len(s.RawEvent))
		for k, v := range s.RawEvent {
			raw[k] = v
		}
		next.RawEvent = raw
	}
	trail := make([]AuditEntry, len(s.AuditTrail))
	copy(trail, s.AuditTrail)
	next.AuditTrail = trail
	return next
}

// NodeExecuted reports whether the audit trail already holds an entry for
// the named node. Engines use this for skip-on-replay.
func (s WorkflowState) NodeExecuted(node string) bool {
	for _, entry := range s.AuditTrail {
		if entry.Node == node {
			return true
		}
	}
	return false
}

// WithVersions returns a copy stamped with the given model and prompt
// versions.
func (s WorkflowState) WithVersions(modelVersion string, promptVersion int) WorkflowState {
	next := s.clone()
	next.ModelVersion = modelVersion
	next.PromptVersion = promptVersion
	return next
}

// WithContext returns a copy carrying the retrieved context and the
// retrieval trail entry.
func (s WorkflowState) WithContext(context string, entry AuditEntry) WorkflowState {
	next := s.clone()
	next.RetrievedContext = context
	next.AuditTrail = append(next.AuditTrail, entry)
	return next
}

// WithPolicyResult returns a copy carrying the policy outcome.
func (s WorkflowState) WithPolicyResult(result string, entry AuditEntry) WorkflowState {
	next := s.clone()
	next.PolicyResult = result
	next.AuditTrail = append(next.AuditTrail, entry)
	return next
}

// WithRiskScore returns a copy carrying the computed score.
func (s WorkflowState) WithRiskScore(score float64, entry AuditEntry) WorkflowState {
	next := s.clone()
	next.RiskScore = score
	next.AuditTrail = append(next.AuditTrail, entry)
	return next
}

// WithGuardrailResult returns a copy carrying the guardrail outcome.
func (s WorkflowState) WithGuardrailResult(result string, entry AuditEntry) WorkflowState {
	next := s.clone()
	next.GuardrailResult = result
	next.AuditTrail = append(next.AuditTrail, entry)
	return next
}

// WithDecision returns a copy carrying the terminal decision.
func (s WorkflowState) WithDecision(decision string, entry AuditEntry) WorkflowState {
	next := s.clone()
	next.FinalDecision = decision
	next.AuditTrail = append(next.AuditTrail, entry)
	return next
}

// StateFromEvent builds the initial workflow state for a persisted event.
func StateFromEvent(event *Event, idempotencyKey string) WorkflowState {
	raw := map[string]interface{}{
		"event_type": event.EventType,
		"metadata":   event.Payload,
	}
	return WorkflowState{
		EventID:        event.EventID,
		TenantID:       event.TenantID,
		CorrelationID:  event.CorrelationID,
		RawEvent:       raw,
		AuditTrail:     []AuditEntry{},
		IdempotencyKey: idempotencyKey,
	}
}

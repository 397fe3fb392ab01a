package domain

import (
	"time"
)

// EventStatus is the lifecycle stage of a persisted event.
type EventStatus string

const (
	StatusReceived   EventStatus = "RECEIVED"
	StatusQueued     EventStatus = "QUEUED"
	StatusProcessing EventStatus = "PROCESSING"
	StatusCompleted  EventStatus = "COMPLETED"
	StatusFailed     EventStatus = "FAILED"
	StatusEscalated  EventStatus = "ESCALATED"
)

var statusTransitions = map[EventStatus][]EventStatus{
	StatusReceived:   {StatusQueued, StatusFailed},
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusEscalated},
	StatusCompleted:  {},
	StatusFailed:     {StatusQueued},
	StatusEscalated:  {StatusCompleted, StatusFailed},
}

func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Event is the persisted record of one accepted submission. Events are
// tenant-scoped: every read and write carries the tenant id.
type Event struct {
	TenantID      string                 `json:"tenant_id"`
	EventID       string                 `json:"event_id"`
	CorrelationID string                 `json:"correlation_id"`
	EventType     string                 `json:"event_type"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Status        EventStatus            `json:"status"`
	Version       string                 `json:"version,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// TransitionTo moves the event to the next lifecycle stage, rejecting
// moves the transition table does not allow.
func (e *Event) TransitionTo(next EventStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return &InvalidStatusTransitionError{From: e.Status, To: next}
	}
	e.Status = next
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Receipt is the caller-visible outcome of a submission. The same receipt
// is returned for the original call and for every idempotent replay.
type Receipt struct {
	EventID       string      `json:"event_id"`
	TenantID      string      `json:"tenant_id"`
	CorrelationID string      `json:"correlation_id"`
	EventType     string      `json:"event_type"`
	Status        EventStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	Version       string      `json:"version,omitempty"`
}

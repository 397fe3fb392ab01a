package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLockUnavailable       = errors.New("lock held by another owner")
	ErrLockNotHeld           = errors.New("lock not held by caller")
	ErrBulkheadOverflow      = errors.New("bulkhead concurrency and queue exhausted")
	ErrRateLimitExceeded     = errors.New("tenant rate limit exceeded")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	ErrClosed                = errors.New("already closed")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// PersistenceError is fatal to the transaction: nothing downstream of the
// persist step runs when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// PublishFailure is fatal to the transaction but retry-safe: the
// idempotency record is never committed, so a retry with the same key
// re-attempts persist and publish.
type PublishFailure struct {
	Topic string
	Err   error
}

func (e *PublishFailure) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Topic, e.Err)
}

func (e *PublishFailure) Unwrap() error {
	return e.Err
}

func NewPublishFailure(topic string, err error) *PublishFailure {
	return &PublishFailure{Topic: topic, Err: err}
}

func IsPublishFailure(err error) bool {
	var pf *PublishFailure
	return errors.As(err, &pf)
}

// WorkflowNodeError aborts a workflow run. The partial state is not cached
// as final, so a subsequent run retries from the first incomplete node.
type WorkflowNodeError struct {
	Node    string
	EventID string
	Err     error
}

func (e *WorkflowNodeError) Error() string {
	return fmt.Sprintf("workflow node %s (event %s): %v", e.Node, e.EventID, e.Err)
}

func (e *WorkflowNodeError) Unwrap() error {
	return e.Err
}

func NewWorkflowNodeError(node, eventID string, err error) *WorkflowNodeError {
	return &WorkflowNodeError{Node: node, EventID: eventID, Err: err}
}

func IsWorkflowNodeError(err error) bool {
	var ne *WorkflowNodeError
	return errors.As(err, &ne)
}

// InvalidStatusTransitionError reports a disallowed event lifecycle move.
type InvalidStatusTransitionError struct {
	From EventStatus
	To   EventStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

func IsLockUnavailable(err error) bool {
	return errors.Is(err, ErrLockUnavailable)
}

func IsBulkheadOverflow(err error) bool {
	return errors.Is(err, ErrBulkheadOverflow)
}

func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

package ports

import (
	"context"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
)

// ReservationState describes what a (tenant, idempotency key) pair
// currently maps to.
type ReservationState int

const (
	// ReservationNone means the key is unclaimed.
	ReservationNone ReservationState = iota
	// ReservationPending means a submission holds the key and is still
	// executing its transaction.
	ReservationPending
	// ReservationCommitted means a transaction completed under the key
	// and its receipt is cached.
	ReservationCommitted
)

// IdempotencyGate serializes duplicate submissions on a (tenant,
// idempotency key) pair. Reserve is create-if-absent, so of N concurrent
// duplicates exactly one wins the key and runs the transaction; the rest
// observe a pending reservation and wait for it to settle. Commit replaces
// the winner's own reservation with the final receipt; Abort drops the
// reservation so a retry can run the transaction again. Expiry is enforced
// by the backing store, bounding how long a crashed winner blocks the key.
type IdempotencyGate interface {
	Check(ctx context.Context, tenantID, idempotencyKey string) (*domain.Receipt, ReservationState, error)
	Reserve(ctx context.Context, tenantID, idempotencyKey string, receipt *domain.Receipt, ttl time.Duration) (bool, error)
	Commit(ctx context.Context, tenantID, idempotencyKey string, receipt *domain.Receipt, ttl time.Duration) error
	Abort(ctx context.Context, tenantID, idempotencyKey string) error
}

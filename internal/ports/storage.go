package ports

import (
	"context"
	"time"
)

// StoragePort is the shared mutable state backend for idempotency records,
// workflow state snapshots, and lock entries. Every mutation is a single
// atomic operation at the backend; callers never rely on an in-process
// lock for cross-process correctness.
type StoragePort interface {
	// Get returns the value for key, or exists=false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value []byte, exists bool, err error)

	// Put writes the value unconditionally. A zero ttl stores without
	// expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// PutIfAbsent atomically creates the key only when absent. It returns
	// false when another value is already live under the key.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndPut atomically replaces the value only when the current
	// value equals expected. It returns false when the key is absent or
	// holds a different value.
	CompareAndPut(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete atomically deletes the key only when its current
	// value equals expected. It returns false when the key is absent or
	// holds a different value.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// Delete removes the key unconditionally. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

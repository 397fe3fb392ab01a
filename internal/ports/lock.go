package ports

import (
	"context"
	"time"
)

// DistributedLock provides cross-process mutual exclusion on a named key.
// Acquisition is fail-fast: contention is reported as ErrLockUnavailable,
// not waited out. TTL bounds how long a crashed holder blocks others;
// holders needing longer work renew before expiry.
type DistributedLock interface {
	// Acquire atomically creates the lock entry with a unique token and
	// the given ttl. It returns the token on success and
	// domain.ErrLockUnavailable when the lock is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)

	// Release deletes the lock only when its current token matches. A
	// holder whose lock expired and was re-acquired elsewhere cannot
	// release the new owner's lock.
	Release(ctx context.Context, key, token string) error

	// Renew extends the ttl when the caller still holds the lock.
	Renew(ctx context.Context, key, token string, ttl time.Duration) error
}

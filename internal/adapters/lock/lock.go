package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

const lockKeyPrefix = "lock:"

// Manager implements ports.DistributedLock on top of the atomic storage
// backend. Acquire is create-if-absent with a per-acquisition token;
// release is compare-and-delete against that token, so a holder whose
// lease expired cannot release a lock re-acquired by another process.
type Manager struct {
	storage ports.StoragePort
	logger  *slog.Logger
	metrics ports.MetricsSink
}

func NewManager(storage ports.StoragePort, logger *slog.Logger, metrics ports.MetricsSink) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	return &Manager{
		storage: storage,
		logger:  logger.With("component", "distributed-lock"),
		metrics: metrics,
	}
}

func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	created, err := m.storage.PutIfAbsent(ctx, lockKeyPrefix+key, []byte(token), ttl)
	if err != nil {
		return "", err
	}
	if !created {
		m.metrics.Increment("lock_contended", map[string]string{"key": key})
		m.logger.Debug("lock acquisition failed, already held", "key", key)
		return "", domain.ErrLockUnavailable
	}

	m.logger.Debug("lock acquired", "key", key, "ttl", ttl)
	return token, nil
}

func (m *Manager) Release(ctx context.Context, key, token string) error {
	deleted, err := m.storage.CompareAndDelete(ctx, lockKeyPrefix+key, []byte(token))
	if err != nil {
		return err
	}
	if !deleted {
		m.logger.Debug("lock release skipped, not held by caller", "key", key)
		return domain.ErrLockNotHeld
	}

	m.logger.Debug("lock released", "key", key)
	return nil
}

// Renew extends the ttl while the caller still holds the lock. Callers
// must renew before expiry; a lock that lapsed and was re-acquired
// elsewhere cannot be renewed by the old holder.
func (m *Manager) Renew(ctx context.Context, key, token string, ttl time.Duration) error {
	renewed, err := m.storage.CompareAndPut(ctx, lockKeyPrefix+key, []byte(token), []byte(token), ttl)
	if err != nil {
		return err
	}
	if !renewed {
		return domain.ErrLockNotHeld
	}

	m.logger.Debug("lock renewed", "key", key, "ttl", ttl)
	return nil
}

var _ ports.DistributedLock = (*Manager)(nil)

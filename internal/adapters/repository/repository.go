package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
	"github.com/eleven-am/verdict/internal/xjson"
)

const defaultEventTTL = 300 * time.Second

// CacheRepository persists events into the storage backend under
// event:{tenant_id}:{event_id}. Expiry is handled by the store; a zero ttl
// keeps events until deleted.
type CacheRepository struct {
	storage ports.StoragePort
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCacheRepository(storage ports.StoragePort, ttl time.Duration, logger *slog.Logger) *CacheRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl == 0 {
		ttl = defaultEventTTL
	}

	return &CacheRepository{
		storage: storage,
		ttl:     ttl,
		logger:  logger.With("component", "event-repository"),
	}
}

func (r *CacheRepository) Save(ctx context.Context, event *domain.Event, correlationID string) (*domain.Event, error) {
	persisted := *event
	persisted.CorrelationID = correlationID

	data, err := xjson.Marshal(&persisted)
	if err != nil {
		return nil, err
	}

	key := domain.EventCacheKey(persisted.TenantID, persisted.EventID)
	if err := r.storage.Put(ctx, key, data, r.ttl); err != nil {
		return nil, err
	}

	r.logger.Debug("event persisted",
		"tenant_id", persisted.TenantID,
		"event_id", persisted.EventID,
		"status", persisted.Status)
	return &persisted, nil
}

func (r *CacheRepository) Get(ctx context.Context, tenantID, eventID string) (*domain.Event, bool, error) {
	data, exists, err := r.storage.Get(ctx, domain.EventCacheKey(tenantID, eventID))
	if err != nil || !exists {
		return nil, false, err
	}

	var event domain.Event
	if err := xjson.Unmarshal(data, &event); err != nil {
		return nil, false, err
	}
	return &event, true, nil
}

var _ ports.EventRepository = (*CacheRepository)(nil)

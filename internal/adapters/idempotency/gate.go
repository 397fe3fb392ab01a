package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
	"github.com/eleven-am/verdict/internal/xjson"
)

type record struct {
	Receipt   *domain.Receipt `json:"receipt"`
	Committed bool            `json:"committed"`
}

// Gate maps (tenant, idempotency key) to a transaction record through the
// atomic storage backend. Reserve races duplicates on PutIfAbsent so one
// submission wins the key; Commit overwrites the winner's pending record
// with the committed receipt; Abort deletes it so the key is retryable.
type Gate struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

func NewGate(storage ports.StoragePort, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{
		storage: storage,
		logger:  logger.With("component", "idempotency-gate"),
	}
}

func (g *Gate) Check(ctx context.Context, tenantID, idempotencyKey string) (*domain.Receipt, ports.ReservationState, error) {
	data, exists, err := g.storage.Get(ctx, domain.IdempotencyCacheKey(tenantID, idempotencyKey))
	if err != nil || !exists {
		return nil, ports.ReservationNone, err
	}

	var rec record
	if err := xjson.Unmarshal(data, &rec); err != nil {
		return nil, ports.ReservationNone, err
	}
	if !rec.Committed {
		return nil, ports.ReservationPending, nil
	}

	g.logger.Debug("idempotency hit",
		"tenant_id", tenantID,
		"event_id", rec.Receipt.EventID)
	return rec.Receipt, ports.ReservationCommitted, nil
}

func (g *Gate) Reserve(ctx context.Context, tenantID, idempotencyKey string, receipt *domain.Receipt, ttl time.Duration) (bool, error) {
	data, err := xjson.Marshal(record{Receipt: receipt})
	if err != nil {
		return false, err
	}

	won, err := g.storage.PutIfAbsent(ctx, domain.IdempotencyCacheKey(tenantID, idempotencyKey), data, ttl)
	if err != nil {
		return false, err
	}
	if !won {
		g.logger.Debug("idempotency key already reserved",
			"tenant_id", tenantID,
			"event_id", receipt.EventID)
	}
	return won, nil
}

func (g *Gate) Commit(ctx context.Context, tenantID, idempotencyKey string, receipt *domain.Receipt, ttl time.Duration) error {
	data, err := xjson.Marshal(record{Receipt: receipt, Committed: true})
	if err != nil {
		return err
	}
	return g.storage.Put(ctx, domain.IdempotencyCacheKey(tenantID, idempotencyKey), data, ttl)
}

func (g *Gate) Abort(ctx context.Context, tenantID, idempotencyKey string) error {
	return g.storage.Delete(ctx, domain.IdempotencyCacheKey(tenantID, idempotencyKey))
}

var _ ports.IdempotencyGate = (*Gate)(nil)

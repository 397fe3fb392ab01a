package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/verdict/internal/adapters/memory"
	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

func TestCheckMissThenReserveThenCommit(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(memory.NewStorage(), nil)

	_, state, err := gate.Check(ctx, "tenant-a", "key-1")
	require.NoError(t, err)
	assert.Equal(t, ports.ReservationNone, state)

	receipt := &domain.Receipt{
		EventID:       "evt-1",
		TenantID:      "tenant-a",
		CorrelationID: "corr-1",
		EventType:     "standard",
		Status:        domain.StatusReceived,
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}

	won, err := gate.Reserve(ctx, "tenant-a", "key-1", receipt, time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	// Reserved but not committed: duplicates see a pending key, not a
	// replayable result.
	_, state, err = gate.Check(ctx, "tenant-a", "key-1")
	require.NoError(t, err)
	assert.Equal(t, ports.ReservationPending, state)

	require.NoError(t, gate.Commit(ctx, "tenant-a", "key-1", receipt, time.Minute))

	cached, state, err := gate.Check(ctx, "tenant-a", "key-1")
	require.NoError(t, err)
	require.Equal(t, ports.ReservationCommitted, state)
	assert.Equal(t, receipt.EventID, cached.EventID)
	assert.Equal(t, receipt.Status, cached.Status)
	assert.True(t, receipt.CreatedAt.Equal(cached.CreatedAt))
}

func TestReserveSingleWinner(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(memory.NewStorage(), nil)

	won, err := gate.Reserve(ctx, "tenant-a", "key-1", &domain.Receipt{EventID: "evt-1"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = gate.Reserve(ctx, "tenant-a", "key-1", &domain.Receipt{EventID: "evt-2"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(memory.NewStorage(), nil)

	const contenders = 16

	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := gate.Reserve(ctx, "tenant-a", "key-1", &domain.Receipt{EventID: "evt-1"}, time.Minute)
			if err == nil && won {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins)
}

func TestAbortReopensKey(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(memory.NewStorage(), nil)

	won, err := gate.Reserve(ctx, "tenant-a", "key-1", &domain.Receipt{EventID: "evt-1"}, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, gate.Abort(ctx, "tenant-a", "key-1"))

	_, state, err := gate.Check(ctx, "tenant-a", "key-1")
	require.NoError(t, err)
	assert.Equal(t, ports.ReservationNone, state)

	won, err = gate.Reserve(ctx, "tenant-a", "key-1", &domain.Receipt{EventID: "evt-2"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "an aborted key is claimable again")
}

func TestKeysScopedPerTenant(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(memory.NewStorage(), nil)

	won, err := gate.Reserve(ctx, "tenant-a", "key-1", &domain.Receipt{EventID: "evt-a"}, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	won, err = gate.Reserve(ctx, "tenant-b", "key-1", &domain.Receipt{EventID: "evt-b"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "the same key under another tenant is a distinct record")
}

func TestReservationExpires(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(memory.NewStorage(), nil)

	won, err := gate.Reserve(ctx, "tenant-a", "key-1", &domain.Receipt{EventID: "evt-1"}, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, won)

	time.Sleep(30 * time.Millisecond)

	_, state, err := gate.Check(ctx, "tenant-a", "key-1")
	require.NoError(t, err)
	assert.Equal(t, ports.ReservationNone, state, "a crashed holder's reservation lapses")
}

package lock

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
)

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(memory.NewStorage(), nil, nil)

	token, err := manager.Acquire(ctx, "workflow:evt-1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = manager.Acquire(ctx, "workflow:evt-1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)

	require.NoError(t, manager.Release(ctx, "workflow:evt-1", token))

	token2, err := manager.Acquire(ctx, "workflow:evt-1", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2, "each acquisition gets a fresh token")
}

func TestReleaseWrongToken(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(memory.NewStorage(), nil, nil)

	token, err := manager.Acquire(ctx, "key", time.Minute)
	require.NoError(t, err)

	err = manager.Release(ctx, "key", "not-the-token")
	assert.ErrorIs(t, err, domain.ErrLockNotHeld)

	// Still held by the real owner.
	_, err = manager.Acquire(ctx, "key", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)

	require.NoError(t, manager.Release(ctx, "key", token))
}

func TestExpiredLockReacquirable(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(memory.NewStorage(), nil, nil)

	stale, err := manager.Acquire(ctx, "key", 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = manager.Acquire(ctx, "key", time.Minute)
	require.NoError(t, err)

	// The stale holder cannot release what another process now owns.
	err = manager.Release(ctx, "key", stale)
	assert.ErrorIs(t, err, domain.ErrLockNotHeld)
}

func TestRenew(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(memory.NewStorage(), nil, nil)

	token, err := manager.Acquire(ctx, "key", 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, manager.Renew(ctx, "key", token, time.Minute))

	time.Sleep(60 * time.Millisecond)

	// The renewed ttl outlives the original lease.
	_, err = manager.Acquire(ctx, "key", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)

	err = manager.Renew(ctx, "key", "wrong-token", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockNotHeld)
}

func TestRenewAfterLossAndReacquisition(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(memory.NewStorage(), nil, nil)

	stale, err := manager.Acquire(ctx, "key", 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	current, err := manager.Acquire(ctx, "key", time.Minute)
	require.NoError(t, err)

	// The old holder's renew must not steal the lock back.
	err = manager.Renew(ctx, "key", stale, time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockNotHeld)

	require.NoError(t, manager.Release(ctx, "key", current), "the new owner still holds its lock")
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(memory.NewStorage(), nil, nil)

	const contenders = 32

	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := manager.Acquire(ctx, "contested", time.Minute); err == nil {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins)
}

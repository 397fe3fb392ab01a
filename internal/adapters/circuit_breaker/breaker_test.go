package circuit_breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/verdict/internal/ports"
)

var errBoom = errors.New("boom")

func newTestBreaker(threshold int, recovery time.Duration) ports.CircuitBreaker {
	return NewCircuitBreaker("test", ports.CircuitBreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
	}, nil, nil)
}

func fail(context.Context) error { return errBoom }

func succeed(context.Context) error { return nil }

func TestBreakerOpensAtThreshold(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Call(ctx, fail), errBoom)
		assert.Equal(t, ports.StateClosed, cb.State())
	}

	require.ErrorIs(t, cb.Call(ctx, fail), errBoom)
	assert.Equal(t, ports.StateOpen, cb.State())

	err := cb.Call(ctx, succeed)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)

	metrics := cb.Metrics()
	assert.Equal(t, int64(3), metrics.ConsecutiveFailure)
	assert.Equal(t, int64(1), metrics.RequestsRejected)
}

func TestBreakerSuccessResetsConsecutiveCount(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(3, time.Minute)

	require.Error(t, cb.Call(ctx, fail))
	require.Error(t, cb.Call(ctx, fail))
	require.NoError(t, cb.Call(ctx, succeed))
	require.Error(t, cb.Call(ctx, fail))
	require.Error(t, cb.Call(ctx, fail))

	assert.Equal(t, ports.StateClosed, cb.State(), "non-consecutive failures must not open")
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(1, 20*time.Millisecond)

	require.Error(t, cb.Call(ctx, fail))
	require.Equal(t, ports.StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, cb.Call(ctx, succeed))
	assert.Equal(t, ports.StateClosed, cb.State())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(1, 20*time.Millisecond)

	require.Error(t, cb.Call(ctx, fail))
	time.Sleep(30 * time.Millisecond)

	require.ErrorIs(t, cb.Call(ctx, fail), errBoom)
	assert.Equal(t, ports.StateOpen, cb.State())

	// The failed probe restarts the recovery clock.
	err := cb.Call(ctx, succeed)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}

func TestBreakerSingleProbeInFlight(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(1, 10*time.Millisecond)

	require.Error(t, cb.Call(ctx, fail))
	time.Sleep(20 * time.Millisecond)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	probeDone := make(chan error, 1)

	go func() {
		probeDone <- cb.Call(ctx, func(context.Context) error {
			close(probeStarted)
			<-release
			return nil
		})
	}()

	<-probeStarted
	assert.Equal(t, ports.StateHalfOpen, cb.State())

	// While the probe is running every other caller is rejected.
	err := cb.Call(ctx, succeed)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)

	close(release)
	require.NoError(t, <-probeDone)
	assert.Equal(t, ports.StateClosed, cb.State())
}

func TestBreakerReset(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(1, time.Minute)

	require.Error(t, cb.Call(ctx, fail))
	require.Equal(t, ports.StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, ports.StateClosed, cb.State())
	require.NoError(t, cb.Call(ctx, succeed))

	metrics := cb.Metrics()
	assert.Equal(t, int64(1), metrics.TotalRequests)
	assert.Equal(t, int64(0), metrics.ConsecutiveFailure)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	ctx := context.Background()
	changes := make(chan ports.CircuitBreakerState, 4)

	cb := NewCircuitBreaker("callback", ports.CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		OnStateChange: func(name string, from, to ports.CircuitBreakerState) {
			changes <- to
		},
	}, nil, nil)

	require.Error(t, cb.Call(ctx, fail))

	select {
	case state := <-changes:
		assert.Equal(t, ports.StateOpen, state)
	case <-time.After(time.Second):
		t.Fatal("state change callback never fired")
	}
}

func TestProviderReusesBreakersByName(t *testing.T) {
	provider := NewProvider(ports.CircuitBreakerConfig{FailureThreshold: 2}, nil, nil)

	a := provider.GetCircuitBreaker("persistence")
	b := provider.GetCircuitBreaker("persistence")
	c := provider.GetCircuitBreaker("publisher")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	metrics := provider.GetAllMetrics()
	assert.Len(t, metrics, 2)
	assert.Contains(t, metrics, "persistence")
	assert.Contains(t, metrics, "publisher")
}

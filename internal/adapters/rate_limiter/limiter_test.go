package rate_limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/verdict/internal/ports"
)

func newTestLimiter(requests int, window time.Duration) ports.RateLimiter {
	return NewTenantRateLimiter(ports.RateLimiterConfig{
		RequestsPerWindow: requests,
		Window:            window,
	}, nil, nil)
}

func TestAllowUpToCap(t *testing.T) {
	limiter := newTestLimiter(5, time.Minute)
	defer limiter.Close()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("tenant-a"), "request %d should pass", i)
	}
	assert.False(t, limiter.Allow("tenant-a"))
	assert.False(t, limiter.Allow("tenant-a"))

	metrics := limiter.Metrics("tenant-a")
	assert.Equal(t, int64(7), metrics.TotalRequests)
	assert.Equal(t, int64(5), metrics.AllowedRequests)
	assert.Equal(t, int64(2), metrics.DeniedRequests)
	assert.Equal(t, 5, metrics.WindowCount)
}

func TestTenantIsolation(t *testing.T) {
	limiter := newTestLimiter(2, time.Minute)
	defer limiter.Close()

	require.True(t, limiter.Allow("tenant-a"))
	require.True(t, limiter.Allow("tenant-a"))
	require.False(t, limiter.Allow("tenant-a"))

	// A saturated tenant never affects another.
	assert.True(t, limiter.Allow("tenant-b"))
	assert.True(t, limiter.Allow("tenant-b"))
	assert.False(t, limiter.Allow("tenant-b"))
}

func TestWindowSlides(t *testing.T) {
	limiter := newTestLimiter(2, 40*time.Millisecond)
	defer limiter.Close()

	require.True(t, limiter.Allow("tenant-a"))
	require.True(t, limiter.Allow("tenant-a"))
	require.False(t, limiter.Allow("tenant-a"))

	time.Sleep(50 * time.Millisecond)

	assert.True(t, limiter.Allow("tenant-a"), "capacity returns once stamps age out")
}

func TestPruneKeepsStampAtWindowBoundary(t *testing.T) {
	cutoff := time.Now()
	stamps := []time.Time{
		cutoff.Add(-time.Second),
		cutoff,
		cutoff.Add(time.Second),
	}

	kept := prune(stamps, cutoff)

	require.Len(t, kept, 2, "a stamp exactly at the cutoff still counts against the window")
	assert.True(t, kept[0].Equal(cutoff))
	assert.True(t, kept[1].Equal(cutoff.Add(time.Second)))
}

func TestReset(t *testing.T) {
	limiter := newTestLimiter(1, time.Minute)
	defer limiter.Close()

	require.True(t, limiter.Allow("tenant-a"))
	require.False(t, limiter.Allow("tenant-a"))

	limiter.Reset("tenant-a")

	assert.True(t, limiter.Allow("tenant-a"))
}

func TestCleanupRemovesIdleTenants(t *testing.T) {
	rl := NewTenantRateLimiter(ports.RateLimiterConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		CleanupInterval:   time.Hour,
		KeyExpiry:         10 * time.Millisecond,
	}, nil, nil).(*tenantLimiter)
	defer rl.Close()

	require.True(t, rl.Allow("tenant-a"))
	time.Sleep(20 * time.Millisecond)

	rl.performCleanup()

	_, exists := rl.windows.Load("tenant-a")
	assert.False(t, exists)
}

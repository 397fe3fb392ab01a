package rate_limiter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/verdict/internal/ports"
)

type window struct {
	mu           sync.Mutex
	stamps       []time.Time
	total        int64
	allowed      int64
	denied       int64
	lastActivity time.Time
}

// tenantLimiter tracks an independent sliding window per tenant. A request
// is allowed iff fewer than the cap of timestamps fall inside the window;
// denials are reported to the caller as false, never as an error.
type tenantLimiter struct {
	config  ports.RateLimiterConfig
	logger  *slog.Logger
	metrics ports.MetricsSink
	windows sync.Map
	done    chan struct{}
	once    sync.Once
}

func NewTenantRateLimiter(config ports.RateLimiterConfig, logger *slog.Logger, metrics ports.MetricsSink) ports.RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	if config.RequestsPerWindow <= 0 {
		config.RequestsPerWindow = 100
	}
	if config.Window <= 0 {
		config.Window = 60 * time.Second
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.KeyExpiry <= 0 {
		config.KeyExpiry = 10 * time.Minute
	}

	rl := &tenantLimiter{
		config:  config,
		logger:  logger.With("component", "rate-limiter"),
		metrics: metrics,
		done:    make(chan struct{}),
	}

	go rl.cleanupExpiredTenants()

	return rl
}

func (rl *tenantLimiter) getWindow(tenantID string) *window {
	if value, ok := rl.windows.Load(tenantID); ok {
		return value.(*window)
	}

	value, _ := rl.windows.LoadOrStore(tenantID, &window{lastActivity: time.Now()})
	return value.(*window)
}

func (rl *tenantLimiter) Allow(tenantID string) bool {
	w := rl.getWindow(tenantID)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.total++
	w.lastActivity = now
	w.stamps = prune(w.stamps, now.Add(-rl.config.Window))

	if len(w.stamps) < rl.config.RequestsPerWindow {
		w.stamps = append(w.stamps, now)
		w.allowed++
		return true
	}

	w.denied++
	rl.metrics.Increment("rate_limit_exceeded", map[string]string{"tenant_id": tenantID})
	rl.logger.Debug("request denied", "tenant_id", tenantID, "window_count", len(w.stamps))
	return false
}

func (rl *tenantLimiter) Metrics(tenantID string) ports.RateLimiterMetrics {
	w := rl.getWindow(tenantID)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stamps = prune(w.stamps, time.Now().Add(-rl.config.Window))
	return ports.RateLimiterMetrics{
		TotalRequests:   w.total,
		AllowedRequests: w.allowed,
		DeniedRequests:  w.denied,
		WindowCount:     len(w.stamps),
	}
}

func (rl *tenantLimiter) Reset(tenantID string) {
	if value, ok := rl.windows.LoadAndDelete(tenantID); ok {
		w := value.(*window)
		w.mu.Lock()
		total := w.total
		w.mu.Unlock()
		rl.logger.Debug("reset rate limiter", "tenant_id", tenantID, "requests", total)
	}
}

func (rl *tenantLimiter) Close() {
	rl.once.Do(func() {
		close(rl.done)
	})
}

func (rl *tenantLimiter) cleanupExpiredTenants() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.performCleanup()
		}
	}
}

func (rl *tenantLimiter) performCleanup() {
	now := time.Now()
	deleted := 0

	rl.windows.Range(func(key, value interface{}) bool {
		w := value.(*window)
		w.mu.Lock()
		expired := now.Sub(w.lastActivity) > rl.config.KeyExpiry
		w.mu.Unlock()

		if expired {
			rl.windows.Delete(key)
			deleted++
		}
		return true
	})

	if deleted > 0 {
		rl.logger.Debug("cleaned up idle tenants", "deleted", deleted)
	}
}

// prune drops stamps older than the cutoff. A stamp exactly at the
// cutoff is still inside the window and is kept.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && stamps[idx].Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[idx:]...)
}

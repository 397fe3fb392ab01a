package ports

import "time"

type RateLimiterConfig struct {
	RequestsPerWindow int           `json:"requests_per_window" yaml:"requests_per_window"`
	Window            time.Duration `json:"window" yaml:"window"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	KeyExpiry         time.Duration `json:"key_expiry" yaml:"key_expiry"`
}

type RateLimiterMetrics struct {
	TotalRequests   int64 `json:"total_requests"`
	AllowedRequests int64 `json:"allowed_requests"`
	DeniedRequests  int64 `json:"denied_requests"`
	WindowCount     int   `json:"window_count"`
}

// RateLimiter admits requests per tenant over a sliding time window.
// Denials are a normal outcome, never an error: the caller decides how to
// react.
type RateLimiter interface {
	Allow(tenantID string) bool
	Metrics(tenantID string) RateLimiterMetrics
	Reset(tenantID string)
	Close()
}

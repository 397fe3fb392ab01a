package ports

import (
	"context"
	"time"
)

type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type CircuitBreakerConfig struct {
	FailureThreshold int                                             `json:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration                                   `json:"recovery_timeout" yaml:"recovery_timeout"`
	OnStateChange    func(name string, from, to CircuitBreakerState) `json:"-" yaml:"-"`
}

type CircuitBreakerMetrics struct {
	State              CircuitBreakerState `json:"state"`
	FailureCount       int64               `json:"failure_count"`
	SuccessCount       int64               `json:"success_count"`
	ConsecutiveFailure int64               `json:"consecutive_failure"`
	LastStateChange    time.Time           `json:"last_state_change"`
	TotalRequests      int64               `json:"total_requests"`
	RequestsRejected   int64               `json:"requests_rejected"`
}

// CircuitBreaker rejects calls to a flaky dependency after repeated
// failures and self-probes recovery with a single half-open call.
type CircuitBreaker interface {
	Execute(ctx context.Context, fn func() error) error
	Call(ctx context.Context, fn func(context.Context) error) error
	State() CircuitBreakerState
	Metrics() CircuitBreakerMetrics
	Reset()
}

// CircuitBreakerProvider hands out named breakers so every external
// dependency gets an independent state machine.
type CircuitBreakerProvider interface {
	GetCircuitBreaker(name string) CircuitBreaker
	CreateCircuitBreaker(name string, config CircuitBreakerConfig) CircuitBreaker
	GetAllMetrics() map[string]CircuitBreakerMetrics
}

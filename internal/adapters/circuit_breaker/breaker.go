package circuit_breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/verdict/internal/ports"
)

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// circuitBreaker serializes all state reads and writes under one mutex so
// concurrent callers observe a consistent state machine. The half-open
// state itself is the probe guard: the caller whose admission moved the
// breaker to half-open is the probe, and everyone else is rejected until
// its outcome moves the state again.
type circuitBreaker struct {
	name    string
	config  ports.CircuitBreakerConfig
	logger  *slog.Logger
	metrics ports.MetricsSink

	mu                 sync.Mutex
	state              ports.CircuitBreakerState
	consecutiveFailure int64
	failureCount       int64
	successCount       int64
	totalRequests      int64
	requestsRejected   int64
	openedAt           time.Time
	lastStateChange    time.Time
}

func NewCircuitBreaker(name string, config ports.CircuitBreakerConfig, logger *slog.Logger, metrics ports.MetricsSink) ports.CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}

	return &circuitBreaker{
		name:            name,
		config:          config,
		logger:          logger.With("component", "circuit-breaker", "name", name),
		metrics:         metrics,
		state:           ports.StateClosed,
		lastStateChange: time.Now(),
	}
}

func (cb *circuitBreaker) Execute(ctx context.Context, fn func() error) error {
	return cb.Call(ctx, func(ctx context.Context) error {
		return fn()
	})
}

func (cb *circuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allowRequest() {
		cb.metrics.Increment("circuit_breaker_rejected", map[string]string{"name": cb.name})
		cb.logger.Debug("request rejected", "state", cb.State().String())
		return ErrCircuitBreakerOpen
	}

	if err := fn(ctx); err != nil {
		cb.onFailure()
		return err
	}

	cb.onSuccess()
	return nil
}

func (cb *circuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.state {
	case ports.StateClosed:
		return true
	case ports.StateOpen:
		if time.Since(cb.openedAt) >= cb.config.RecoveryTimeout {
			cb.setState(ports.StateHalfOpen)
			return true
		}
		cb.requestsRejected++
		return false
	case ports.StateHalfOpen:
		// Probe already in flight.
		cb.requestsRejected++
		return false
	default:
		cb.requestsRejected++
		return false
	}
}

func (cb *circuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount++
	cb.consecutiveFailure = 0
	cb.metrics.Increment("circuit_breaker_success", map[string]string{"name": cb.name})

	if cb.state == ports.StateHalfOpen {
		cb.setState(ports.StateClosed)
	}
}

func (cb *circuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.consecutiveFailure++
	cb.metrics.Increment("circuit_breaker_failure", map[string]string{"name": cb.name})

	switch cb.state {
	case ports.StateHalfOpen:
		cb.openedAt = time.Now()
		cb.setState(ports.StateOpen)
	case ports.StateClosed:
		if cb.consecutiveFailure >= int64(cb.config.FailureThreshold) {
			cb.openedAt = time.Now()
			cb.setState(ports.StateOpen)
		}
	}
}

func (cb *circuitBreaker) setState(newState ports.CircuitBreakerState) {
	oldState := cb.state
	if oldState == newState {
		return
	}

	cb.logger.Info("circuit breaker state change",
		"from", oldState.String(),
		"to", newState.String(),
		"consecutive_failures", cb.consecutiveFailure)

	cb.state = newState
	cb.lastStateChange = time.Now()

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.name, oldState, newState)
	}
}

func (cb *circuitBreaker) State() ports.CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Metrics() ports.CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return ports.CircuitBreakerMetrics{
		State:              cb.state,
		FailureCount:       cb.failureCount,
		SuccessCount:       cb.successCount,
		ConsecutiveFailure: cb.consecutiveFailure,
		LastStateChange:    cb.lastStateChange,
		TotalRequests:      cb.totalRequests,
		RequestsRejected:   cb.requestsRejected,
	}
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("circuit breaker reset")

	cb.failureCount = 0
	cb.successCount = 0
	cb.consecutiveFailure = 0
	cb.totalRequests = 0
	cb.requestsRejected = 0
	cb.setState(ports.StateClosed)
}

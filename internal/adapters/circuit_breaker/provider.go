package circuit_breaker

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/verdict/internal/ports"
)

// Provider hands out one breaker per named dependency so the persistence,
// publish, and workflow paths trip independently.
type Provider struct {
	defaultConfig ports.CircuitBreakerConfig
	logger        *slog.Logger
	metrics       ports.MetricsSink

	mu       sync.Mutex
	breakers map[string]ports.CircuitBreaker
}

func NewProvider(defaultConfig ports.CircuitBreakerConfig, logger *slog.Logger, metrics ports.MetricsSink) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	return &Provider{
		defaultConfig: defaultConfig,
		logger:        logger,
		metrics:       metrics,
		breakers:      make(map[string]ports.CircuitBreaker),
	}
}

func (p *Provider) GetCircuitBreaker(name string) ports.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, p.defaultConfig, p.logger, p.metrics)
	p.breakers[name] = cb
	return cb
}

func (p *Provider) CreateCircuitBreaker(name string, config ports.CircuitBreakerConfig) ports.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb := NewCircuitBreaker(name, config, p.logger, p.metrics)
	p.breakers[name] = cb
	return cb
}

func (p *Provider) GetAllMetrics() map[string]ports.CircuitBreakerMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics := make(map[string]ports.CircuitBreakerMetrics, len(p.breakers))
	for name, cb := range p.breakers {
		metrics[name] = cb.Metrics()
	}
	return metrics
}

var _ ports.CircuitBreakerProvider = (*Provider)(nil)

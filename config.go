package verdict

import (
	"errors"
	"time"

	"dario.cat/mergo"

	"github.com/eleven-am/verdict/internal/ports"
)

// Config controls the wiring of a Client. Zero-valued fields are filled
// from DefaultConfig when the client is constructed.
type Config struct {
	// NodeID identifies this process in logs. Defaults to a random id.
	NodeID string `json:"node_id" yaml:"node_id"`

	// DataDir is the badger database directory. Empty keeps the store
	// in memory, which is what tests want.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// RedisAddr switches the shared-state backend from embedded badger
	// to Redis, for deployments with multiple cooperating processes.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	Topic          string        `json:"topic" yaml:"topic"`
	Actor          string        `json:"actor" yaml:"actor"`
	IdempotencyTTL time.Duration `json:"idempotency_ttl" yaml:"idempotency_ttl"`
	EventTTL       time.Duration `json:"event_ttl" yaml:"event_ttl"`

	// DisableWorkflowLock turns off the per-event distributed lock
	// around workflow runs. The per-node skip-on-replay logic still
	// keeps repeated runs idempotent within a process.
	DisableWorkflowLock bool `json:"disable_workflow_lock" yaml:"disable_workflow_lock"`

	RateLimiter ports.RateLimiterConfig    `json:"rate_limiter" yaml:"rate_limiter"`
	Bulkhead    ports.BulkheadConfig       `json:"bulkhead" yaml:"bulkhead"`
	Breaker     ports.CircuitBreakerConfig `json:"breaker" yaml:"breaker"`
	Engine      ports.EngineConfig         `json:"engine" yaml:"engine"`

	// Metrics receives counters and latencies from every component.
	// Leaving it nil changes nothing except that the numbers go nowhere.
	Metrics MetricsSink `json:"-" yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		Topic:          "events",
		Actor:          "system",
		IdempotencyTTL: 300 * time.Second,
		EventTTL:       300 * time.Second,
		RateLimiter: ports.RateLimiterConfig{
			RequestsPerWindow: 100,
			Window:            60 * time.Second,
			CleanupInterval:   5 * time.Minute,
			KeyExpiry:         10 * time.Minute,
		},
		Bulkhead: ports.BulkheadConfig{
			MaxConcurrent: 10,
			MaxQueued:     100,
		},
		Breaker: ports.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
		},
		Engine: ports.EngineConfig{
			GuardrailThreshold: 75.0,
			ModelVersion:       "simulated@1",
			PromptVersion:      1,
			LockTTL:            30 * time.Second,
			StateTTL:           time.Hour,
		},
	}
}

func (c *Config) WithDataDir(dataDir string) *Config {
	c.DataDir = dataDir
	return c
}

func (c *Config) WithRedis(addr string) *Config {
	c.RedisAddr = addr
	return c
}

func (c *Config) WithRateLimit(requestsPerWindow int, window time.Duration) *Config {
	c.RateLimiter.RequestsPerWindow = requestsPerWindow
	c.RateLimiter.Window = window
	return c
}

func (c *Config) WithBulkhead(maxConcurrent, maxQueued int) *Config {
	c.Bulkhead.MaxConcurrent = maxConcurrent
	c.Bulkhead.MaxQueued = maxQueued
	return c
}

func (c *Config) WithBreaker(failureThreshold int, recoveryTimeout time.Duration) *Config {
	c.Breaker.FailureThreshold = failureThreshold
	c.Breaker.RecoveryTimeout = recoveryTimeout
	return c
}

func (c *Config) WithoutWorkflowLock() *Config {
	c.DisableWorkflowLock = true
	return c
}

func (c *Config) WithMetrics(sink MetricsSink) *Config {
	c.Metrics = sink
	return c
}

// applyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) applyDefaults() error {
	return mergo.Merge(c, DefaultConfig())
}

func (c *Config) Validate() error {
	if c.RateLimiter.RequestsPerWindow < 0 {
		return NewConfigError("rate_limiter.requests_per_window", errors.New("must not be negative"))
	}
	if c.RateLimiter.Window < 0 {
		return NewConfigError("rate_limiter.window", errors.New("must not be negative"))
	}
	if c.Bulkhead.MaxConcurrent < 0 {
		return NewConfigError("bulkhead.max_concurrent", errors.New("must not be negative"))
	}
	if c.Bulkhead.MaxQueued < 0 {
		return NewConfigError("bulkhead.max_queued", errors.New("must not be negative"))
	}
	if c.Breaker.FailureThreshold < 0 {
		return NewConfigError("breaker.failure_threshold", errors.New("must not be negative"))
	}
	if c.Engine.GuardrailThreshold < 0 {
		return NewConfigError("engine.guardrail_threshold", errors.New("must not be negative"))
	}
	if c.DataDir != "" && c.RedisAddr != "" {
		return NewConfigError("redis_addr", errors.New("choose either a data dir or a redis address, not both"))
	}
	return nil
}

// Package verdict is an embeddable event decision library. Callers submit
// tenant-scoped events through an idempotent transaction boundary; accepted
// events are persisted, published, and run through a deterministic
// five-node decision workflow whose outcome is either APPROVED or
// REQUIRE_APPROVAL.
//
// The submission path is wrapped in resilience primitives: a sliding-window
// rate limiter per tenant, a bulkhead bounding concurrent transactions, and
// circuit breakers around persistence, publishing, and workflow triggering.
// Workflow runs are serialized across processes with a token-fenced
// distributed lock and are safe to replay at both the run and node level.
//
// State lives in an embedded badger database by default. Pointing the
// configuration at Redis moves shared state (idempotency records, locks,
// cached runs) out of process so multiple instances can cooperate.
package verdict

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/eleven-am/verdict/internal/adapters/audit"
	"github.com/eleven-am/verdict/internal/adapters/bulkhead"
	"github.com/eleven-am/verdict/internal/adapters/circuit_breaker"
	"github.com/eleven-am/verdict/internal/adapters/events"
	"github.com/eleven-am/verdict/internal/adapters/idempotency"
	"github.com/eleven-am/verdict/internal/adapters/lock"
	"github.com/eleven-am/verdict/internal/adapters/orchestrator"
	"github.com/eleven-am/verdict/internal/adapters/rate_limiter"
	"github.com/eleven-am/verdict/internal/adapters/redis"
	"github.com/eleven-am/verdict/internal/adapters/repository"
	"github.com/eleven-am/verdict/internal/adapters/storage"
	"github.com/eleven-am/verdict/internal/adapters/workflow"
	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

// Re-exported domain types so callers never import internal packages.
type (
	Event         = domain.Event
	EventStatus   = domain.EventStatus
	Receipt       = domain.Receipt
	WorkflowState = domain.WorkflowState
	AuditEntry    = domain.AuditEntry

	SubmitRequest = orchestrator.SubmitRequest

	Message     = ports.Message
	AuditRecord = ports.AuditRecord
	MetricsSink = ports.MetricsSink
)

const (
	StatusReceived   = domain.StatusReceived
	StatusQueued     = domain.StatusQueued
	StatusProcessing = domain.StatusProcessing
	StatusCompleted  = domain.StatusCompleted
	StatusFailed     = domain.StatusFailed
	StatusEscalated  = domain.StatusEscalated

	PolicyPass              = domain.PolicyPass
	PolicyFail              = domain.PolicyFail
	GuardrailOK             = domain.GuardrailOK
	GuardrailViolation      = domain.GuardrailViolation
	DecisionApproved        = domain.DecisionApproved
	DecisionRequireApproval = domain.DecisionRequireApproval
)

var (
	ErrLockUnavailable       = domain.ErrLockUnavailable
	ErrLockNotHeld           = domain.ErrLockNotHeld
	ErrBulkheadOverflow      = domain.ErrBulkheadOverflow
	ErrRateLimitExceeded     = domain.ErrRateLimitExceeded
	ErrMissingIdempotencyKey = domain.ErrMissingIdempotencyKey
	ErrClosed                = domain.ErrClosed

	IsLockUnavailable   = domain.IsLockUnavailable
	IsBulkheadOverflow  = domain.IsBulkheadOverflow
	IsRateLimitExceeded = domain.IsRateLimitExceeded
	IsPersistenceError  = domain.IsPersistenceError
	IsPublishFailure    = domain.IsPublishFailure
	IsWorkflowNodeError = domain.IsWorkflowNodeError
)

// NewConfigError builds the error Validate returns for a bad field.
func NewConfigError(field string, err error) error {
	return domain.NewConfigError(field, err)
}

// Client is the assembled system. Construct one with New, submit events
// with Submit, and Close it when done.
type Client struct {
	config *Config
	logger *slog.Logger

	store    ports.StoragePort
	redisCli goredis.UniversalClient
	repo     ports.EventRepository
	broker   *events.Broker
	engine   ports.WorkflowEngine
	orch     *orchestrator.Orchestrator
	limiter  ports.RateLimiter
	executor ports.BulkheadExecutor
	breakers *circuit_breaker.Provider

	closeOnce sync.Once
	closed    chan struct{}
}

// New wires the full pipeline from cfg. A nil cfg uses DefaultConfig; a
// nil logger uses slog.Default.
func New(cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, NewConfigError("defaults", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()[:8]
	}

	logger = logger.With("node_id", cfg.NodeID)
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	var (
		store    ports.StoragePort
		redisCli goredis.UniversalClient
	)
	if cfg.RedisAddr != "" {
		redisCli = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		store = redis.NewStore(redisCli, logger)
	} else {
		badgerStore, err := storage.NewBadgerStorage(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		store = badgerStore
	}

	repo := repository.NewCacheRepository(store, cfg.EventTTL, logger)
	gate := idempotency.NewGate(store, logger)
	locks := lock.NewManager(store, logger, metrics)
	stateStore := workflow.NewStateStore(store, logger)
	auditSink := audit.NewSlogSink(logger)
	broker := events.NewBroker(logger)

	engineCfg := cfg.Engine
	engineCfg.UseLock = !cfg.DisableWorkflowLock
	engine := workflow.NewEngine(stateStore, locks, auditSink, engineCfg, logger, metrics)
	trigger := workflow.NewTrigger(engine, repo, logger)

	breakers := circuit_breaker.NewProvider(cfg.Breaker, logger, metrics)
	orch := orchestrator.New(repo, broker, trigger, auditSink, gate, breakers, metrics, orchestrator.Config{
		Topic:          cfg.Topic,
		Actor:          cfg.Actor,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}, logger)

	limiter := rate_limiter.NewTenantRateLimiter(cfg.RateLimiter, logger, metrics)
	executor := bulkhead.NewExecutor(cfg.Bulkhead, logger, metrics)

	backend := "badger"
	if cfg.RedisAddr != "" {
		backend = "redis"
	}
	logger.Info("client ready", "backend", backend, "topic", cfg.Topic)

	return &Client{
		config:   cfg,
		logger:   logger,
		store:    store,
		redisCli: redisCli,
		repo:     repo,
		broker:   broker,
		engine:   engine,
		orch:     orch,
		limiter:  limiter,
		executor: executor,
		breakers: breakers,
		closed:   make(chan struct{}),
	}, nil
}

// Submit runs the transaction boundary for one event: rate-limit
// admission, bulkhead scheduling, then the idempotent persist, publish,
// trigger, audit sequence. Replays of the same tenant and idempotency key
// return the original receipt without re-executing side effects.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	if !c.limiter.Allow(req.TenantID) {
		return nil, fmt.Errorf("tenant %s: %w", req.TenantID, ErrRateLimitExceeded)
	}

	future, err := c.executor.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		return c.orch.Submit(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	result, err := future.Result(ctx)
	if err != nil {
		return nil, err
	}
	return result.(*Receipt), nil
}

// GetEvent returns a persisted event by id, scoped to the tenant.
func (c *Client) GetEvent(ctx context.Context, tenantID, eventID string) (*Event, bool, error) {
	return c.orch.GetEvent(ctx, tenantID, eventID)
}

// RunWorkflow executes the decision workflow for a persisted event and
// returns the final state. Completed runs are cached, so calling this for
// an already-decided event returns the recorded outcome.
func (c *Client) RunWorkflow(ctx context.Context, tenantID, eventID string) (WorkflowState, error) {
	event, exists, err := c.repo.Get(ctx, tenantID, eventID)
	if err != nil {
		return WorkflowState{}, err
	}
	if !exists {
		return WorkflowState{}, fmt.Errorf("event %s not found for tenant %s", eventID, tenantID)
	}
	return c.engine.Run(ctx, domain.StateFromEvent(event, ""))
}

// Subscribe returns a channel of messages published to topic and a cancel
// function releasing the subscription.
func (c *Client) Subscribe(topic string) (<-chan Message, func()) {
	return c.broker.Subscribe(topic)
}

// BreakerMetrics reports the state of every circuit breaker by name.
func (c *Client) BreakerMetrics() map[string]ports.CircuitBreakerMetrics {
	return c.breakers.GetAllMetrics()
}

// Close releases every resource. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.executor.Close()
		c.limiter.Close()
		c.broker.Close()
		if cerr := c.store.Close(); cerr != nil {
			err = cerr
		}
		if c.redisCli != nil {
			if cerr := c.redisCli.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		c.logger.Info("client closed")
	})
	return err
}

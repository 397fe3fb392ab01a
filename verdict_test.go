package verdict

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()

	client, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func request(key, eventType string, payload map[string]interface{}) SubmitRequest {
	return SubmitRequest{
		TenantID:       "tenant-a",
		IdempotencyKey: key,
		EventType:      eventType,
		Payload:        payload,
	}
}

func TestClientEndToEnd(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	messages, cancel := client.Subscribe("events")
	defer cancel()

	receipt, err := client.Submit(ctx, request("key-1", "standard", map[string]interface{}{"category": "general"}))
	require.NoError(t, err)
	require.NotEmpty(t, receipt.EventID)
	assert.Equal(t, StatusReceived, receipt.Status)

	select {
	case msg := <-messages:
		assert.Equal(t, receipt.EventID, msg.EventID)
		assert.Equal(t, "key-1", msg.Headers["idempotency_key"])
	case <-time.After(time.Second):
		t.Fatal("no message published")
	}

	event, exists, err := client.GetEvent(ctx, "tenant-a", receipt.EventID)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, receipt.CorrelationID, event.CorrelationID)

	// The trigger already ran the workflow; this returns the cached run.
	state, err := client.RunWorkflow(ctx, "tenant-a", receipt.EventID)
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, state.FinalDecision)
	assert.Equal(t, 30.0, state.RiskScore)
	assert.Len(t, state.AuditTrail, 5)
}

func TestClientReplaySameReceipt(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	first, err := client.Submit(ctx, request("key-1", "standard", nil))
	require.NoError(t, err)

	second, err := client.Submit(ctx, request("key-1", "standard", nil))
	require.NoError(t, err)

	assert.Equal(t, first.EventID, second.EventID)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)
}

func TestClientHighRiskRequiresApproval(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	receipt, err := client.Submit(ctx, request("key-1", "high_risk", nil))
	require.NoError(t, err)

	state, err := client.RunWorkflow(ctx, "tenant-a", receipt.EventID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, state.RiskScore)
	assert.Equal(t, GuardrailViolation, state.GuardrailResult)
	assert.Equal(t, DecisionRequireApproval, state.FinalDecision)
}

func TestClientSensitivePayloadFailsPolicy(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	receipt, err := client.Submit(ctx, request("key-1", "standard", map[string]interface{}{"category": "sensitive"}))
	require.NoError(t, err)

	state, err := client.RunWorkflow(ctx, "tenant-a", receipt.EventID)
	require.NoError(t, err)
	assert.Equal(t, PolicyFail, state.PolicyResult)
	assert.Equal(t, 70.0, state.RiskScore)
	assert.Equal(t, DecisionRequireApproval, state.FinalDecision)
}

func TestClientRateLimit(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, DefaultConfig().WithRateLimit(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := client.Submit(ctx, request(fmt.Sprintf("key-%d", i), "standard", nil))
		require.NoError(t, err)
	}

	_, err := client.Submit(ctx, request("key-over", "standard", nil))
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestClientMissingIdempotencyKey(t *testing.T) {
	client := newTestClient(t, nil)

	_, err := client.Submit(context.Background(), request("", "standard", nil))
	assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
}

func TestClientSubmitAfterClose(t *testing.T) {
	client, err := New(nil, nil)
	require.NoError(t, err)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "close is idempotent")

	_, err = client.Submit(context.Background(), request("key-1", "standard", nil))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClientRunWorkflowUnknownEvent(t *testing.T) {
	client := newTestClient(t, nil)

	_, err := client.RunWorkflow(context.Background(), "tenant-a", "missing")
	assert.Error(t, err)
}

func TestClientBreakerMetrics(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	_, err := client.Submit(ctx, request("key-1", "standard", nil))
	require.NoError(t, err)

	metrics := client.BreakerMetrics()
	assert.Contains(t, metrics, "persistence")
	assert.Contains(t, metrics, "publisher")
	assert.Contains(t, metrics, "workflow")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative rate cap", func(c *Config) { c.RateLimiter.RequestsPerWindow = -1 }, false},
		{"negative window", func(c *Config) { c.RateLimiter.Window = -time.Second }, false},
		{"negative concurrency", func(c *Config) { c.Bulkhead.MaxConcurrent = -1 }, false},
		{"negative queue", func(c *Config) { c.Bulkhead.MaxQueued = -1 }, false},
		{"negative threshold", func(c *Config) { c.Breaker.FailureThreshold = -1 }, false},
		{"both backends", func(c *Config) {
			c.DataDir = "/tmp/verdict"
			c.RedisAddr = "localhost:6379"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bulkhead.MaxConcurrent = -1

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrClosed))
}

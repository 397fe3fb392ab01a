package domain

import "fmt"

const (
	IdempotencyPrefix = "idempotency:"
	EventPrefix       = "event:"
	WorkflowPrefix    = "workflow:"
	RateTenantPrefix  = "rate:tenant:"
)

// IdempotencyCacheKey builds the cache key for a committed transaction
// result scoped to a tenant.
func IdempotencyCacheKey(tenantID, idempotencyKey string) string {
	return fmt.Sprintf("%s%s:%s", IdempotencyPrefix, tenantID, idempotencyKey)
}

// EventCacheKey builds the key under which a persisted event is cached.
func EventCacheKey(tenantID, eventID string) string {
	return fmt.Sprintf("%s%s:%s", EventPrefix, tenantID, eventID)
}

// WorkflowStateKey builds the key for a cached workflow run. The lock
// guarding a run uses the same name on a distinct backend namespace.
func WorkflowStateKey(eventID string) string {
	return WorkflowPrefix + eventID
}

// RateWindowKey builds the per-tenant key for rate limiter windows.
func RateWindowKey(tenantID string) string {
	return RateTenantPrefix + tenantID
}

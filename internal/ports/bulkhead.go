package ports

import "context"

type BulkheadConfig struct {
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
	MaxQueued     int `json:"max_queued" yaml:"max_queued"`
}

type BulkheadMetrics struct {
	Running   int   `json:"running"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
}

// BulkheadTask is a unit of work admitted through the bulkhead.
type BulkheadTask func(ctx context.Context) (interface{}, error)

// BulkheadFuture resolves to the task's result once a worker has run it.
type BulkheadFuture interface {
	// Result blocks until the task completes or ctx is done.
	Result(ctx context.Context) (interface{}, error)
}

// BulkheadExecutor bounds concurrency and queueing for a pool of work so
// one tenant or path cannot starve others. Overflow is rejected
// synchronously with domain.ErrBulkheadOverflow, never silently dropped.
type BulkheadExecutor interface {
	Submit(ctx context.Context, task BulkheadTask) (BulkheadFuture, error)
	Metrics() BulkheadMetrics
	Close()
}

package bulkhead

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

type future struct {
	done   chan struct{}
	result interface{}
	err    error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) complete(result interface{}, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

func (f *future) Result(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type queuedTask struct {
	ctx  context.Context
	task ports.BulkheadTask
	fut  *future
}

// Executor bounds concurrent work at MaxConcurrent and queues up to
// MaxQueued waiting tasks in FIFO order. When both are saturated, Submit
// rejects synchronously with ErrBulkheadOverflow. Completed workers drain
// the queue before giving up their slot, so queued tasks never starve.
type Executor struct {
	config  ports.BulkheadConfig
	logger  *slog.Logger
	metrics ports.MetricsSink

	mu        sync.Mutex
	running   int
	queue     []*queuedTask
	submitted int64
	rejected  int64
	completed int64
	closed    bool
}

func NewExecutor(config ports.BulkheadConfig, logger *slog.Logger, metrics ports.MetricsSink) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.MaxQueued <= 0 {
		config.MaxQueued = 100
	}

	return &Executor{
		config:  config,
		logger:  logger.With("component", "bulkhead"),
		metrics: metrics,
	}
}

func (e *Executor) Submit(ctx context.Context, task ports.BulkheadTask) (ports.BulkheadFuture, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, domain.ErrClosed
	}

	e.submitted++
	fut := newFuture()

	if e.running < e.config.MaxConcurrent {
		e.running++
		go e.run(&queuedTask{ctx: ctx, task: task, fut: fut})
		return fut, nil
	}

	if len(e.queue) < e.config.MaxQueued {
		e.queue = append(e.queue, &queuedTask{ctx: ctx, task: task, fut: fut})
		e.logger.Debug("task queued", "queue_depth", len(e.queue))
		return fut, nil
	}

	e.rejected++
	e.metrics.Increment("bulkhead_rejected", nil)
	e.logger.Debug("task rejected",
		"running", e.running,
		"queued", len(e.queue))
	return nil, domain.ErrBulkheadOverflow
}

func (e *Executor) run(qt *queuedTask) {
	for qt != nil {
		result, err := qt.task(qt.ctx)
		qt.fut.complete(result, err)

		e.mu.Lock()
		e.completed++
		if e.closed || len(e.queue) == 0 {
			e.running--
			e.mu.Unlock()
			return
		}
		qt = e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
	}
}

func (e *Executor) Metrics() ports.BulkheadMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	return ports.BulkheadMetrics{
		Running:   e.running,
		Queued:    len(e.queue),
		Submitted: e.submitted,
		Rejected:  e.rejected,
		Completed: e.completed,
	}
}

// Close rejects all queued tasks and stops accepting new work. Running
// tasks finish normally.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	for _, qt := range e.queue {
		qt.fut.complete(nil, domain.ErrClosed)
	}
	e.queue = nil
}

var _ ports.BulkheadExecutor = (*Executor)(nil)

package eventwire

import (
	"context"
	"log/slog"
	"sync"
)

// Executor accepts asynchronous invocation tasks. Submission must not block;
// an executor that has been shut down rejects work with an error rather than
// dropping it silently.
type Executor interface {
	Submit(task func()) error
}

// Pool is a bounded-lifetime worker pool backing asynchronous firings. It is
// constructed and torn down with the bus instance: Close stops accepting new
// submissions and drains already-queued tasks to completion before releasing
// the workers.
type Pool struct {
	mu     sync.RWMutex
	closed bool

	tasks   chan func()
	workers sync.WaitGroup
	inline  sync.WaitGroup

	logger *slog.Logger
}

// NewPool creates a pool with the given worker and queue sizes; zero or
// negative values select defaults.
func NewPool(workerCount, queueSize int, logger *slog.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		tasks:  make(chan func(), queueSize),
		logger: logger,
	}
	for i := 0; i < workerCount; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task without blocking. When the queue is full the task
// runs on a dedicated goroutine instead — work is never dropped. After Close
// the pool rejects submissions with ErrPoolShutdown.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolShutdown
	}
	select {
	case p.tasks <- task:
	default:
		p.inline.Add(1)
		go func() {
			defer p.inline.Done()
			task()
		}()
	}
	return nil
}

// Close stops accepting submissions and drains queued and in-flight tasks.
// Returns ErrPoolShutdownTimeout when the context expires first. Close is
// idempotent.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.workers.Wait()
		p.inline.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		p.logger.Error("worker pool shutdown timed out")
		return ErrPoolShutdownTimeout
	}
}

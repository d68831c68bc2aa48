package eventwire

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// Completion is the future-like handle representing all asynchronous observer
// invocations of one firing. Every constituent failure is collected — never
// replaced — and the handle settles exactly once after all tasks finish:
// success carrying the original payload when no errors were collected, else
// failure carrying the aggregate error with every cause retained.
//
// Continuations may be attached before or after settling; late continuations
// see the resolved value immediately.
type Completion struct {
	payload any

	mu        sync.Mutex
	errs      []error
	remaining int
	settled   bool
	err       error
	callbacks []func(payload any, err error)

	done chan struct{}
}

// newCompletion creates a handle expecting the given number of constituent
// tasks. With zero tasks the handle settles immediately.
func newCompletion(payload any, tasks int) *Completion {
	c := &Completion{
		payload:   payload,
		remaining: tasks,
		done:      make(chan struct{}),
	}
	if tasks == 0 {
		c.mu.Lock()
		c.settleLocked()
		c.mu.Unlock()
	}
	return c
}

// taskFailed records one constituent failure. Called at most once per task,
// before taskDone.
func (c *Completion) taskFailed(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

// taskDone marks one constituent task as settled; the last one triggers the
// terminal transition.
func (c *Completion) taskDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining--
	if c.remaining <= 0 && !c.settled {
		c.settleLocked()
	}
}

// settleLocked performs the single terminal transition. Callers hold c.mu.
func (c *Completion) settleLocked() {
	c.settled = true
	c.err = multierr.Combine(c.errs...)
	callbacks := c.callbacks
	c.callbacks = nil
	close(c.done)

	payload, err := c.payload, c.err
	for _, callback := range callbacks {
		go callback(payload, err)
	}
}

// Done returns a channel closed when the handle settles.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Settled reports whether the handle has reached its terminal state.
func (c *Completion) Settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Result returns the original payload and the aggregate error. It must only
// be called after Done is closed; use Wait to block.
func (c *Completion) Result() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload, c.err
}

// Err returns the aggregate error, nil before settling or on success. Use
// multierr.Errors to inspect the individual causes.
func (c *Completion) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until the handle settles or the context is cancelled.
func (c *Completion) Wait(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnComplete attaches a continuation invoked with the payload and aggregate
// error once the handle settles. Continuations attached after settling run
// immediately. Continuations run on their own goroutine.
func (c *Completion) OnComplete(callback func(payload any, err error)) {
	c.mu.Lock()
	if c.settled {
		payload, err := c.payload, c.err
		c.mu.Unlock()
		go callback(payload, err)
		return
	}
	c.callbacks = append(c.callbacks, callback)
	c.mu.Unlock()
}

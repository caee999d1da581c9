package plan

import (
	"context"
	"sync/atomic"
)

// Completion is the single-resolution future of a run.
// The first Resolve wins. Later calls are ignored and the callback never fires twice.
type Completion struct {
	resolved atomic.Bool
	done     chan struct{}
	result   *Result
	callback func(*Result)
}

// NewCompletion creates a pending completion. callback may be nil.
// The callback runs before waiters are released, so it must not call Wait.
// Calling Resolve from the callback is a no-op.
func NewCompletion(callback func(*Result)) *Completion {
	return &Completion{
		done:     make(chan struct{}),
		callback: callback,
	}
}

// Resolve settles the completion with r. The callback runs before waiters are released.
// It reports whether this call resolved it.
func (c *Completion) Resolve(r *Result) bool {
	if !c.resolved.CompareAndSwap(false, true) {
		return false
	}
	c.result = r
	if c.callback != nil {
		c.callback(r)
	}
	close(c.done)
	return true
}

// Done is closed once the completion is resolved.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the completion is resolved or ctx is done.
// Abandoning a wait does not interrupt the run.
func (c *Completion) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the run status without blocking.
func (c *Completion) Status() Status {
	select {
	case <-c.done:
		if c.result == nil {
			return StatusFailure
		}
		return c.result.Status
	default:
		return StatusPending
	}
}

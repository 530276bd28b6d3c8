// Package effect provides the cancellation primitives behind change-driven
// fetches: a debouncer for "fetch once input settles" and a generation
// guard for "only the newest answer counts".
package effect

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs a function once no new trigger arrived for the wait
// period. A new trigger cancels both the pending timer and the context of
// a run already in flight.
type Debouncer struct {
	wait time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait}
}

// Trigger schedules fn. The context passed to fn derives from parent and is
// cancelled by the next Trigger, Cancel or Close.
func (d *Debouncer) Trigger(parent context.Context, fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.stopLocked()

	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.wait, func() {
		defer d.wg.Done()
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	})
}

// Cancel drops the pending run and cancels one in flight.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Close cancels all work, waits for an in-flight run to return and makes
// later triggers no-ops.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.stopLocked()
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil && d.timer.Stop() {
		// The callback will never run, so it will never call Done.
		d.wg.Done()
	}
	d.timer = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

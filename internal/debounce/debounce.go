// Package debounce delays a call until its trigger has been quiet for a
// fixed wait, collapsing bursts into one call with the latest argument.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once per burst of Call invocations.
type Debouncer[T any] struct {
	wait time.Duration
	fn   func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	last    T
	seq     uint64
}

// New returns a Debouncer that calls fn after wait has passed without a new Call.
func New[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Call records v and restarts the wait. Safe for concurrent use.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = v
	d.pending = true
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(seq) })
}

// fire runs fn if no Call, Flush or Stop happened since the timer was armed.
func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || seq != d.seq {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.mu.Unlock()

	d.fn(v)
}

// take clears the pending call. d.mu must be held.
func (d *Debouncer[T]) take() T {
	v := d.last
	var zero T
	d.last = zero
	d.pending = false
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return v
}

// Flush runs a pending call immediately. It reports whether one was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	v := d.take()
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Stop cancels a pending call. It reports whether one was pending.
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pending {
		return false
	}
	d.take()
	return true
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

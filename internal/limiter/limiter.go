// Package limiter bounds parallel execution with strict FIFO admission.
package limiter

import (
	"context"
	"fmt"
	"sync"
)

// Limiter admits at most max concurrent tasks. Callers beyond the cap queue
// in arrival order; a finishing task hands its slot to the oldest waiter, so
// no waiter starves and a failing task never consumes a future slot.
type Limiter struct {
	mu      sync.Mutex
	max     int
	current int
	waiters []chan struct{}
}

// New builds a Limiter with the given parallelism cap.
func New(max int) *Limiter {
	if max <= 0 {
		max = 1
	}
	return &Limiter{max: max}
}

// Acquire blocks until a slot is free or the context finishes. Each
// successful Acquire must be paired with exactly one Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.current < l.max {
		l.current++
		l.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.abandon(ready)
		return fmt.Errorf("limiter acquire canceled: %w", ctx.Err())
	}
}

// Release frees a slot and wakes the oldest waiter, if any.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) > 0 {
		ready := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(ready)
		return
	}
	if l.current > 0 {
		l.current--
	}
}

// Run executes fn under a slot. The slot is released on return even if fn
// panics.
func (l *Limiter) Run(ctx context.Context, fn func()) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	fn()
	return nil
}

// InFlight reports the number of tasks currently holding slots.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// QueueDepth reports the number of callers waiting for a slot.
func (l *Limiter) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// abandon removes a canceled waiter. If the slot was already handed over the
// waiter re-releases it so the next queued task runs.
func (l *Limiter) abandon(ready chan struct{}) {
	l.mu.Lock()
	for i, w := range l.waiters {
		if w == ready {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			l.mu.Unlock()
			return
		}
	}
	l.mu.Unlock()
	// Not in the queue: Release already promoted us; give the slot back.
	l.Release()
}

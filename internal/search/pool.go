package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolDrained is the transient error waiters receive when the browser
// disconnects while they are queued for a page.
var ErrPoolDrained = errors.New("page pool drained")

// browserPage is one reusable tab.
type browserPage interface {
	// Run executes fn against the page's context.
	Run(ctx context.Context, fn func(pageCtx context.Context) error) error
	// Reset returns the page to a blank state before reuse.
	Reset(ctx context.Context) error
	// Healthy reports whether the page can still be driven.
	Healthy() bool
	// Close tears the tab down.
	Close()
}

// spawnFunc creates a fresh page. Called under no lock.
type spawnFunc func(ctx context.Context) (browserPage, error)

// pagePool is a bounded set of reusable tabs with FIFO acquisition. Idle
// pages are reused first; below the cap a new page is spawned; at the cap the
// caller suspends until a release. A browser disconnect drains everything and
// the pool repopulates lazily on the next acquire.
type pagePool struct {
	mu      sync.Mutex
	max     int
	total   int
	idle    []browserPage
	waiters []chan waiterGrant
	spawn   spawnFunc
}

type waiterGrant struct {
	page browserPage
	err  error
}

func newPagePool(max int, spawn spawnFunc) *pagePool {
	if max <= 0 {
		max = 1
	}
	return &pagePool{max: max, spawn: spawn}
}

// acquire returns a page, suspending FIFO when the pool is exhausted.
func (p *pagePool) acquire(ctx context.Context) (browserPage, error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		page := p.idle[0]
		p.idle = p.idle[1:]
		if !page.Healthy() {
			p.total--
			p.mu.Unlock()
			page.Close()
			p.mu.Lock()
			continue
		}
		p.mu.Unlock()
		return page, nil
	}
	if p.total < p.max {
		p.total++
		p.mu.Unlock()
		page, err := p.spawn(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, fmt.Errorf("spawn page: %w", err)
		}
		return page, nil
	}
	ready := make(chan waiterGrant, 1)
	p.waiters = append(p.waiters, ready)
	p.mu.Unlock()

	select {
	case grant := <-ready:
		return grant.page, grant.err
	case <-ctx.Done():
		p.removeWaiter(ready)
		return nil, fmt.Errorf("page wait canceled: %w", ctx.Err())
	}
}

// release resets the page and hands it to the oldest waiter, or parks it
// idle. Unhealthy pages are discarded so the pool can respawn below the cap.
func (p *pagePool) release(ctx context.Context, page browserPage) {
	if page == nil {
		return
	}
	healthy := page.Healthy()
	if healthy {
		if err := page.Reset(ctx); err != nil {
			healthy = false
		}
	}
	p.mu.Lock()
	if !healthy {
		p.total--
		p.mu.Unlock()
		page.Close()
		return
	}
	if len(p.waiters) > 0 {
		ready := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		ready <- waiterGrant{page: page}
		return
	}
	p.idle = append(p.idle, page)
	p.mu.Unlock()
}

// discard drops a page that misbehaved without returning it to rotation.
func (p *pagePool) discard(page browserPage) {
	if page == nil {
		return
	}
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
	page.Close()
}

// drain closes idle pages and rejects queued waiters. Called when the
// browser disconnects; subsequent acquires spawn fresh pages.
func (p *pagePool) drain() {
	p.mu.Lock()
	idle := p.idle
	waiters := p.waiters
	p.idle = nil
	p.waiters = nil
	p.total -= len(idle)
	if p.total < 0 {
		p.total = 0
	}
	p.mu.Unlock()

	for _, page := range idle {
		page.Close()
	}
	for _, ready := range waiters {
		ready <- waiterGrant{err: ErrPoolDrained}
	}
}

func (p *pagePool) removeWaiter(ready chan waiterGrant) {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w == ready {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()
	// Already granted: put the page back for the next caller.
	if grant := <-ready; grant.page != nil {
		p.release(context.Background(), grant.page)
	}
}

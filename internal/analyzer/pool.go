package analyzer

import (
	"context"
	"sync"
	"time"
)

// pool hands out backends one caller at a time. A zero maxWait waits until
// a backend is free or ctx is done.
type pool struct {
	slots   chan Backend
	size    int
	maxWait time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newPool(backends []Backend, maxWait time.Duration) *pool {
	p := &pool{
		slots:   make(chan Backend, len(backends)),
		size:    len(backends),
		maxWait: maxWait,
		done:    make(chan struct{}),
	}
	for _, b := range backends {
		p.slots <- b
	}
	return p
}

// acquire reserves a backend. Returns a release func to be deferred.
func (p *pool) acquire(ctx context.Context) (Backend, func(), error) {
	// Fast path: respect an already-canceled context or closed pool
	if err := ctx.Err(); err != nil {
		return nil, func() {}, err
	}
	select {
	case <-p.done:
		return nil, func() {}, ErrClosed
	default:
	}

	var timeout <-chan time.Time
	if p.maxWait > 0 {
		timer := time.NewTimer(p.maxWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case b := <-p.slots:
		var once sync.Once
		return b, func() { once.Do(func() { p.slots <- b }) }, nil
	case <-p.done:
		return nil, func() {}, ErrClosed
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	case <-timeout:
		return nil, func() {}, tooBusyError{wait: p.maxWait}
	}
}

// inUse reports how many backends are currently handed out.
func (p *pool) inUse() int { return p.size - len(p.slots) }

// close rejects new acquisitions, waits for in-flight ones to be released
// and closes every backend.
func (p *pool) close() error {
	var first error
	p.closeOnce.Do(func() {
		close(p.done)
		for i := 0; i < p.size; i++ {
			b := <-p.slots
			if err := b.Close(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}

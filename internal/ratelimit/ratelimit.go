// Package ratelimit paces consecutive page requests against the catalog site.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Pacer pauses for a delay drawn uniformly from [min, max] on every Wait.
// The pause is unconditional, so time spent on the previous request does not
// count against it.
type Pacer struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	randN    func(time.Duration) time.Duration
	waits    int
}

func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		randN:    rand.N[time.Duration],
	}
}

func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	delay := p.nextDelay()
	p.waits++
	p.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Waits returns how many times Wait has been called.
func (p *Pacer) Waits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}

func (p *Pacer) nextDelay() time.Duration {
	if p.minDelay == p.maxDelay {
		return p.minDelay
	}
	return p.minDelay + p.randN(p.maxDelay-p.minDelay+1)
}

package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls to scoring services. Each service key gets its own
// token bucket, shared by every run using the same Pacer, and callers pause
// for a fixed delay between consecutive batches.
type Pacer struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	delay        time.Duration

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. requestsPerSecond <= 0 disables the token
// bucket; the fixed delay still applies.
func NewPacer(requestsPerSecond float64, burst int, delay time.Duration) *Pacer {
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Pacer{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
		delay:        delay,
		sleep:        sleepContext,
	}
}

// Delay returns the fixed inter-batch delay
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Wait blocks until the bucket for key allows another call
func (p *Pacer) Wait(ctx context.Context, key string) error {
	return p.getLimiter(key).Wait(ctx)
}

// Pause sleeps for the inter-batch delay, returning early with ctx.Err()
// when ctx is done
func (p *Pacer) Pause(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, p.delay)
}

// SetSleep replaces the sleep function used by Pause
func (p *Pacer) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	p.sleep = fn
}

func (p *Pacer) getLimiter(key string) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[key]
	p.mu.RUnlock()

	if exists {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := p.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(p.defaultRate, p.defaultBurst)
	p.limiters[key] = limiter

	return limiter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

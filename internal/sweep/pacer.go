package sweep

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// widenCap bounds how far the jitter window stretches under rate limiting
const widenCap = 8

// pacer spaces feed requests with a jittered delay window. Rate limit
// responses widen the window exponentially; successes shrink it back one
// step at a time so a noisy feed does not whipsaw the sweep.
type pacer struct {
	baseMin time.Duration
	baseMax time.Duration

	mu     sync.Mutex
	factor int
	rng    *rand.Rand
}

func newPacer(minDelay, maxDelay time.Duration) *pacer {
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &pacer{
		baseMin: minDelay,
		baseMax: maxDelay,
		factor:  1,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait sleeps a random duration inside the current window
func (p *pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	minDelay := p.baseMin * time.Duration(p.factor)
	maxDelay := p.baseMax * time.Duration(p.factor)
	delay := minDelay
	if maxDelay > minDelay {
		delay += time.Duration(p.rng.Int63n(int64(maxDelay - minDelay)))
	}
	p.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordRateLimit doubles the window up to the cap
func (p *pacer) RecordRateLimit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.factor < widenCap {
		p.factor *= 2
		if p.factor > widenCap {
			p.factor = widenCap
		}
	}
}

// RecordSuccess shrinks the window one step toward the base
func (p *pacer) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.factor > 1 {
		p.factor /= 2
	}
}

// Factor exposes the current widening factor for tests and logging
func (p *pacer) Factor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.factor
}

package main

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pollBackoff doubles the wait after each failed batch up to max and drops
// back to the poll interval on the first success.
type pollBackoff struct {
	base, max, cur time.Duration
}

func newPollBackoff(base, max time.Duration) *pollBackoff {
	return &pollBackoff{base: base, max: max, cur: base}
}

func (b *pollBackoff) fail() time.Duration {
	b.cur = min(b.cur*2, b.max)
	return jitter(b.cur)
}

func (b *pollBackoff) idle() time.Duration { return jitter(b.base) }

func (b *pollBackoff) reset() { b.cur = b.base }

// jitter spreads concurrent publishers so they do not poll in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

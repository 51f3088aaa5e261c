package statesync

import (
	"context"
	"sync"
	"time"
)

// Throttle is a token-bucket bandwidth limiter, bytes-per-second, used by
// the receiver to pace chunk downloads (spec §4.11: "subject to
// bandwidth throttling (token-bucket, bytes-per-second)").
type Throttle struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // bytes/sec
	last       time.Time
}

// NewThrottle returns a Throttle that allows up to bytesPerSecond bytes
// through per second, with bursts up to that same amount.
func NewThrottle(bytesPerSecond int) *Throttle {
	rate := float64(bytesPerSecond)
	return &Throttle{
		capacity:   rate,
		tokens:     rate,
		refillRate: rate,
		last:       time.Now(),
	}
}

// Wait blocks until n bytes' worth of tokens are available, or ctx is
// cancelled. A zero or negative refillRate disables throttling.
func (t *Throttle) Wait(ctx context.Context, n int) error {
	if t.refillRate <= 0 {
		return nil
	}
	for {
		t.mu.Lock()
		t.refillLocked()
		if t.tokens >= float64(n) {
			t.tokens -= float64(n)
			t.mu.Unlock()
			return nil
		}
		deficit := float64(n) - t.tokens
		wait := time.Duration(deficit/t.refillRate*1000) * time.Millisecond
		t.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Throttle) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(t.last).Seconds()
	t.last = now
	t.tokens += elapsed * t.refillRate
	if t.tokens > t.capacity {
		t.tokens = t.capacity
	}
}

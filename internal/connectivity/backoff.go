package connectivity

import (
	"math/rand"
	"time"
)

// Default backoff configuration values.
const (
	DefaultBackoffInitial = time.Second
	DefaultBackoffMax     = 60 * time.Second
)

// Backoff computes exponential retry delays with ±20% jitter.
// It never sleeps; callers schedule the next attempt themselves.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration

	// jitter returns a value in [0, 1).
	jitter func() float64
}

// NewBackoff creates a backoff starting at initial and capped at max.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
		jitter:  rand.Float64,
	}
}

// Next returns the delay before the next attempt and doubles the base.
func (b *Backoff) Next() time.Duration {
	j := float64(b.current) * 0.2 * (b.jitter()*2 - 1)
	delay := time.Duration(float64(b.current) + j)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the base of the next delay, before jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}

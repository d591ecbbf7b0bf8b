package domain

import (
	"sync"
	"time"
)

// Clock supplies the current naive wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns the local time with its location dropped.
func (SystemClock) Now() time.Time {
	return Naive(time.Now())
}

// FixedClock always reports the same instant. Tests use it to pin "today".
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock constructs a FixedClock at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: Naive(t)}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

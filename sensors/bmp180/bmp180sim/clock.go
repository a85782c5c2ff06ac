package bmp180sim

import (
	"sync"
	"time"
)

// Clock is a manual clock. Sleep returns immediately after advancing the
// clock, so conversion delays and bus deadlines cost no wall time.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

// Slept returns the total time passed to Sleep.
func (c *Clock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

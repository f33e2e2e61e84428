// Package clock provides a testable abstraction over timed waits.
package clock

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses for the specified duration.
	Sleep(d time.Duration)

	// After waits for the duration to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time
}

// Real implements Clock using the standard time package.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep pauses the current goroutine for at least the duration d.
func (Real) Sleep(d time.Duration) {
	time.Sleep(d)
}

// After waits for the duration to elapse and then sends the current time.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Instant is a Clock whose waits complete immediately. Every wait advances
// its notion of now and is recorded, so tests can check timing policy without
// sleeping.
type Instant struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration

	// OnWait, if set, is called after each wait is recorded.
	OnWait func(d time.Duration)
}

// NewInstant creates an Instant clock set to the given time.
func NewInstant(t time.Time) *Instant {
	return &Instant{now: t}
}

// Now returns the mocked current time.
func (c *Instant) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep records the duration and returns immediately.
func (c *Instant) Sleep(d time.Duration) {
	c.record(d)
}

// After records the duration and returns a channel that is already ready.
func (c *Instant) After(d time.Duration) <-chan time.Time {
	now := c.record(d)
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Waits returns all recorded wait durations.
func (c *Instant) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]time.Duration, len(c.waits))
	copy(result, c.waits)
	return result
}

// Elapsed returns the sum of all recorded waits.
func (c *Instant) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.waits {
		total += d
	}
	return total
}

func (c *Instant) record(d time.Duration) time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	now := c.now
	hook := c.OnWait
	c.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return now
}

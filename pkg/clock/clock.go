package clock

import "time"

// Clock accumulates elapsed logical time.
//
// The zero value is ready to use and reads zero.
type Clock struct {
	now     time.Duration
	ticks   uint64
	stopped bool
}

// New returns a clock at zero.
func New() *Clock { return &Clock{} }

// Now returns the accumulated logical time.
func (c *Clock) Now() time.Duration { return c.now }

// Ticks returns how many times Advance succeeded since the last Reset.
func (c *Clock) Ticks() uint64 { return c.ticks }

// Advance moves the clock forward by delta and returns the new time.
// A negative delta leaves the clock untouched. A stopped clock does not move.
func (c *Clock) Advance(delta time.Duration) (time.Duration, error) {
	if err := CheckInterval("delta", delta); err != nil {
		return c.now, err
	}
	if c.stopped {
		return c.now, nil
	}
	c.now += delta
	c.ticks++
	return c.now, nil
}

// At returns the absolute time that is delay after now.
func (c *Clock) At(delay time.Duration) time.Duration { return c.now + delay }

// Stop ends the timeline. Components sharing the clock refuse new work with
// ErrEnded until Reset.
func (c *Clock) Stop() { c.stopped = true }

// Stopped reports whether Stop was called since the last Reset.
func (c *Clock) Stopped() bool { return c.stopped }

// Guard returns ErrEnded if the clock is stopped.
func (c *Clock) Guard() error {
	if c.stopped {
		return ErrEnded
	}
	return nil
}

// Reset puts the clock back to zero and restarts a stopped clock.
// Only a full scheduler reset should call it.
func (c *Clock) Reset() {
	c.now = 0
	c.ticks = 0
	c.stopped = false
}

package clock

import (
	"errors"
	"testing"
	"time"
)

func TestAdvanceAccumulates(t *testing.T) {
	t.Parallel()
	c := New()
	for _, d := range []time.Duration{0, 100 * time.Millisecond, 250 * time.Millisecond, 0} {
		before := c.Now()
		now, err := c.Advance(d)
		if err != nil {
			t.Fatalf("Advance(%v) error: %v", d, err)
		}
		if now != before+d {
			t.Fatalf("Advance(%v) = %v, want %v", d, now, before+d)
		}
	}
	if c.Now() != 350*time.Millisecond {
		t.Fatalf("Now = %v, want 350ms", c.Now())
	}
	if c.Ticks() != 4 {
		t.Fatalf("Ticks = %d, want 4", c.Ticks())
	}
}

func TestAdvanceNegative(t *testing.T) {
	t.Parallel()
	c := New()
	_, _ = c.Advance(time.Second)
	now, err := c.Advance(-time.Millisecond)
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
	if now != time.Second || c.Now() != time.Second {
		t.Fatalf("clock moved on negative delta: %v", c.Now())
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	var c Clock
	_, _ = c.Advance(5 * time.Second)
	c.Reset()
	if c.Now() != 0 || c.Ticks() != 0 {
		t.Fatalf("after Reset: now=%v ticks=%d", c.Now(), c.Ticks())
	}
	if got := c.At(time.Second); got != time.Second {
		t.Fatalf("At(1s) = %v, want 1s", got)
	}
}

func TestStopFreezesAndGuards(t *testing.T) {
	t.Parallel()
	c := New()
	_, _ = c.Advance(time.Second)
	if err := c.Guard(); err != nil {
		t.Fatalf("Guard on running clock: %v", err)
	}
	c.Stop()
	if !errors.Is(c.Guard(), ErrEnded) {
		t.Fatalf("Guard = %v, want ErrEnded", c.Guard())
	}
	if now, err := c.Advance(time.Second); err != nil || now != time.Second {
		t.Fatalf("Advance on stopped clock = %v, %v", now, err)
	}
	c.Reset()
	if c.Stopped() || c.Guard() != nil {
		t.Fatal("Reset did not restart the clock")
	}
}

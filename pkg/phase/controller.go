// Package phase drives an eventmap.Queue through the phases of an encounter.
package phase

import (
	"fmt"

	"phasebot/pkg/clock"
	"phasebot/pkg/eventmap"
)

// Phase is re-exported from eventmap.
type Phase = eventmap.Phase

// Hook runs on phase entry or exit.
type Hook func(p Phase)

// Canceler is anything holding work that must die with the encounter.
type Canceler interface {
	CancelAll() int
}

// Controller is a small state machine over the event queue. Entering a phase
// switches the queue and then runs the phase's entry hook, which installs the
// phase's timeline. End is terminal until Reset.
type Controller struct {
	clk   *clock.Clock
	q     *eventmap.Queue
	other []Canceler

	enter map[Phase]Hook
	exit  map[Phase]Hook
	// anyEnter runs after the phase-specific entry hook.
	anyEnter Hook

	history []Phase
	ended   bool
	onEnd   []func()
}

// New returns a controller in no phase. Cancelers are emptied by End.
func New(clk *clock.Clock, q *eventmap.Queue, cancel ...Canceler) *Controller {
	return &Controller{
		clk:   clk,
		q:     q,
		other: cancel,
		enter: map[Phase]Hook{},
		exit:  map[Phase]Hook{},
	}
}

// OnEnter registers the entry hook of p, replacing any previous one.
func (c *Controller) OnEnter(p Phase, h Hook) { c.enter[p] = h }

// OnExit registers the exit hook of p, replacing any previous one.
func (c *Controller) OnExit(p Phase, h Hook) { c.exit[p] = h }

// OnAnyEnter registers a hook run after every phase entry.
func (c *Controller) OnAnyEnter(h Hook) { c.anyEnter = h }

// OnEnd registers a callback run once when the encounter ends.
func (c *Controller) OnEnd(fn func()) { c.onEnd = append(c.onEnd, fn) }

// EnterPhase leaves the current phase, switches the queue to p and runs the
// entry hook of p.
func (c *Controller) EnterPhase(p Phase) error {
	if err := c.clk.Guard(); err != nil {
		return err
	}
	if p == 0 || p > eventmap.MaxPhase {
		return fmt.Errorf("enter phase %d: %w", p, ErrInvalidPhase)
	}
	if cur := c.q.Phase(); cur != 0 {
		if h := c.exit[cur]; h != nil {
			h(cur)
		}
		// The exit hook may have ended the encounter.
		if c.ended {
			return clock.ErrEnded
		}
	}
	c.q.SwitchPhase(p)
	c.history = append(c.history, p)
	if h := c.enter[p]; h != nil {
		h(p)
	}
	if c.anyEnter != nil && !c.ended {
		c.anyEnter(p)
	}
	return nil
}

// Current returns the current phase, 0 before the first EnterPhase.
func (c *Controller) Current() Phase { return c.q.Phase() }

// IsInPhase reports whether p is the current phase.
func (c *Controller) IsInPhase(p Phase) bool { return c.q.IsInPhase(p) }

// History returns the phases entered since the last Reset, in order.
func (c *Controller) History() []Phase { return append([]Phase(nil), c.history...) }

// Ended reports whether End was called since the last Reset.
func (c *Controller) Ended() bool { return c.ended }

// End cancels every event and every registered canceler's work and stops the
// clock so that later scheduling fails with clock.ErrEnded.
func (c *Controller) End() {
	if c.ended {
		return
	}
	c.ended = true
	c.clk.Stop()
	c.q.Reset()
	for _, o := range c.other {
		o.CancelAll()
	}
	for _, fn := range c.onEnd {
		fn()
	}
}

// Reset clears all work, rewinds the clock and leaves the controller in no
// phase, ready for a new encounter. Hooks stay registered.
func (c *Controller) Reset() {
	c.q.Reset()
	for _, o := range c.other {
		o.CancelAll()
	}
	c.clk.Reset()
	c.history = nil
	c.ended = false
}

package encounter

import (
	"fmt"
	"time"

	"phasebot/pkg/clock"
	"phasebot/pkg/eventmap"
)

// EventContext is handed to an event handler. It is only valid for the
// duration of the handler.
type EventContext struct {
	s  *Scheduler
	ev eventmap.Fired
}

// Now returns the logical time.
func (ec *EventContext) Now() time.Duration { return ec.s.clk.Now() }

// ID returns the fired event.
func (ec *EventContext) ID() EventID { return ec.ev.ID }

// Due returns the time the event was due. It is never after Now.
func (ec *EventContext) Due() time.Duration { return ec.ev.Due }

// Phase returns the current phase.
func (ec *EventContext) Phase() Phase { return ec.s.ctl.Current() }

// Repeating reports whether the event already re-armed itself.
func (ec *EventContext) Repeating() bool { return ec.ev.Repeating }

// Scheduler returns the owning scheduler.
func (ec *EventContext) Scheduler() *Scheduler { return ec.s }

// Repeat arms the event again d after its due time, in the same mask.
// It replaces an automatic re-arm.
func (ec *EventContext) Repeat(d time.Duration) error {
	if err := ec.s.events.Repeat(ec.ev, d); err != nil {
		return fmt.Errorf("repeat event %d: %w", ec.ev.ID, err)
	}
	return nil
}

// RepeatBetween is Repeat with a delay drawn from [min, max].
func (ec *EventContext) RepeatBetween(min, max time.Duration) error {
	if err := ec.s.events.RepeatBetween(ec.ev, min, max); err != nil {
		return fmt.Errorf("repeat event %d: %w", ec.ev.ID, err)
	}
	return nil
}

// ScheduleRelative runs fn delay after this event's due time.
func (ec *EventContext) ScheduleRelative(delay time.Duration, fn TaskFunc) error {
	return ec.ScheduleRelativeOpt(delay, TaskOptions{}, fn)
}

// ScheduleRelativeOpt is ScheduleRelative with a group and/or validator.
func (ec *EventContext) ScheduleRelativeOpt(delay time.Duration, opt TaskOptions, fn TaskFunc) error {
	if err := clock.CheckInterval("delay", delay); err != nil {
		return fmt.Errorf("schedule task: %w", err)
	}
	if err := ec.s.tasks.ScheduleAt(ec.ev.Due+delay, opt, fn); err != nil {
		return fmt.Errorf("schedule task: %w", err)
	}
	return nil
}

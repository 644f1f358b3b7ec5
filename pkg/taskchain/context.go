package taskchain

import (
	"time"

	"phasebot/pkg/clock"
)

// Context is handed to a running continuation. It is only valid for the
// duration of the callback.
type Context struct {
	s        *Scheduler
	t        *task
	repeated bool
}

// Now returns the scheduler's logical time.
func (tc *Context) Now() time.Duration { return tc.s.clk.Now() }

// Due returns the time this continuation was due. It is never after Now.
func (tc *Context) Due() time.Duration { return tc.t.due }

// Group returns the continuation's group.
func (tc *Context) Group() Group { return tc.t.opt.Group }

// RepeatCount returns how many times this continuation was repeated so far.
func (tc *Context) RepeatCount() int { return tc.t.repeats }

// Scheduler returns the owning scheduler.
func (tc *Context) Scheduler() *Scheduler { return tc.s }

// ScheduleRelative runs fn delay after this continuation's due time, in the
// same group and under the same per-task validator.
func (tc *Context) ScheduleRelative(delay time.Duration, fn Func) error {
	return tc.ScheduleRelativeOpt(delay, tc.t.opt, fn)
}

// ScheduleRelativeOpt is ScheduleRelative with explicit options.
func (tc *Context) ScheduleRelativeOpt(delay time.Duration, opt Options, fn Func) error {
	if err := clock.CheckInterval("delay", delay); err != nil {
		return err
	}
	return tc.s.insertAt(tc.t.due+delay, opt, fn, 0)
}

// Repeat runs this continuation again interval after its due time, keeping
// its group and validator. Calling it more than once per firing does nothing.
func (tc *Context) Repeat(interval time.Duration) error {
	if tc.repeated {
		return nil
	}
	if err := clock.CheckInterval("repeat", interval); err != nil {
		return err
	}
	if err := tc.s.insertAt(tc.t.due+interval, tc.t.opt, tc.t.fn, tc.t.repeats+1); err != nil {
		return err
	}
	tc.repeated = true
	return nil
}

// CancelGroup discards the pending continuations of g.
func (tc *Context) CancelGroup(g Group) { tc.s.CancelGroup(g) }

// CancelAll discards every pending continuation.
func (tc *Context) CancelAll() { tc.s.CancelAll() }

package taskchain

import (
	"container/heap"
	"fmt"
	"time"

	"phasebot/pkg/clock"
)

// Scheduler holds pending continuations. It is not safe for concurrent use.
type Scheduler struct {
	clk *clock.Clock
	cfg Config

	h      taskHeap
	parked []*task
	seq    uint64

	validator   Validator
	dispatching bool
}

// New returns an empty scheduler reading time from clk.
func New(clk *clock.Clock, cfg Config) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clk: clk, cfg: cfg}
}

// Now returns the scheduler's logical time.
func (s *Scheduler) Now() time.Duration { return s.clk.Now() }

// Schedule runs fn delay from now.
func (s *Scheduler) Schedule(delay time.Duration, fn Func) error {
	return s.ScheduleOpt(delay, Options{}, fn)
}

// ScheduleOpt is Schedule with a group and/or a per-task validator.
func (s *Scheduler) ScheduleOpt(delay time.Duration, opt Options, fn Func) error {
	if err := clock.CheckInterval("delay", delay); err != nil {
		return err
	}
	return s.insertAt(s.clk.At(delay), opt, fn, 0)
}

// ScheduleAt runs fn at the absolute logical time due. A due time already in
// the past fires on the next dispatch.
func (s *Scheduler) ScheduleAt(due time.Duration, opt Options, fn Func) error {
	if err := clock.CheckInterval("due", due); err != nil {
		return err
	}
	return s.insertAt(due, opt, fn, 0)
}

func (s *Scheduler) insertAt(due time.Duration, opt Options, fn Func, repeats int) error {
	if err := s.clk.Guard(); err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	t := &task{due: due, seq: s.seq, fn: fn, opt: opt, repeats: repeats}
	s.seq++
	heap.Push(&s.h, t)
	return nil
}

// SetValidator installs the scheduler-wide guard checked before every firing.
func (s *Scheduler) SetValidator(v Validator) { s.validator = v }

// ClearValidator removes the scheduler-wide guard.
func (s *Scheduler) ClearValidator() { s.validator = nil }

// CancelGroup discards every pending continuation in g.
func (s *Scheduler) CancelGroup(g Group) int {
	if g == NoGroup {
		return 0
	}
	return s.removeIf(func(t *task) bool { return t.opt.Group == g })
}

// CancelAll discards every pending continuation.
func (s *Scheduler) CancelAll() int {
	return s.removeIf(func(*task) bool { return true })
}

// DelayAll pushes every pending continuation back by d.
func (s *Scheduler) DelayAll(d time.Duration) error {
	return s.delayIf(d, func(*task) bool { return true })
}

// DelayGroup pushes the continuations of g back by d.
func (s *Scheduler) DelayGroup(g Group, d time.Duration) error {
	return s.delayIf(d, func(t *task) bool { return t.opt.Group == g })
}

func (s *Scheduler) delayIf(d time.Duration, match func(t *task) bool) error {
	if err := clock.CheckInterval("delay", d); err != nil {
		return err
	}
	for _, t := range s.h {
		if match(t) {
			t.due += d
		}
	}
	for _, t := range s.parked {
		if match(t) {
			t.due += d
		}
	}
	heap.Init(&s.h)
	return nil
}

// Len returns the number of pending continuations.
func (s *Scheduler) Len() int { return len(s.h) + len(s.parked) }

// GroupLen returns the number of pending continuations in g.
func (s *Scheduler) GroupLen(g Group) int {
	n := 0
	for _, t := range s.h {
		if t.opt.Group == g {
			n++
		}
	}
	for _, t := range s.parked {
		if t.opt.Group == g {
			n++
		}
	}
	return n
}

// Next returns the due time of the earliest pending continuation.
func (s *Scheduler) Next() (time.Duration, bool) {
	var (
		best  time.Duration
		found bool
	)
	for _, t := range s.h {
		if !found || t.due < best {
			best, found = t.due, true
		}
	}
	for _, t := range s.parked {
		if !found || t.due < best {
			best, found = t.due, true
		}
	}
	return best, found
}

// Update advances the clock by delta and dispatches due continuations.
func (s *Scheduler) Update(delta time.Duration) (int, error) {
	if _, err := s.clk.Advance(delta); err != nil {
		return 0, err
	}
	return s.Dispatch(), nil
}

// Dispatch fires every continuation that is due at the current time and was
// pending when Dispatch started. It returns the number of callbacks run.
// Nested calls from inside a callback do nothing.
func (s *Scheduler) Dispatch() int {
	return s.DispatchBefore(s.seq)
}

// Mark returns the sequence bound for DispatchBefore: continuations scheduled
// after the call compare at or above it.
func (s *Scheduler) Mark() uint64 { return s.seq }

// DispatchBefore is Dispatch restricted to continuations scheduled before
// bound was taken with Mark.
func (s *Scheduler) DispatchBefore(bound uint64) int {
	if s.dispatching {
		return 0
	}
	s.dispatching = true
	defer func() {
		s.dispatching = false
		s.unpark()
	}()

	now := s.clk.Now()
	fired := 0
	for !s.clk.Stopped() {
		t := s.popEligible(bound, now)
		if t == nil {
			break
		}
		if t.due > now {
			panic(fmt.Sprintf("taskchain: popped continuation not due until %s (now %s)", t.due, now))
		}
		if s.validator != nil && !s.validator() {
			s.dropped(t, DropGlobalValidator)
			if s.cfg.PurgeOnInvalid {
				s.purge(DropGlobalValidator)
				break
			}
			continue
		}
		if t.opt.Validator != nil && !t.opt.Validator() {
			s.dropped(t, DropTaskValidator)
			continue
		}
		if s.cfg.OnFire != nil {
			s.cfg.OnFire(t.opt.Group)
		}
		t.fn(&Context{s: s, t: t})
		fired++
	}
	return fired
}

func (s *Scheduler) popEligible(bound uint64, now time.Duration) *task {
	for len(s.h) > 0 && s.h[0].due <= now {
		t := heap.Pop(&s.h).(*task)
		if t.seq >= bound {
			s.parked = append(s.parked, t)
			continue
		}
		return t
	}
	return nil
}

func (s *Scheduler) unpark() {
	for _, t := range s.parked {
		heap.Push(&s.h, t)
	}
	clear(s.parked)
	s.parked = s.parked[:0]
}

func (s *Scheduler) dropped(t *task, reason DropReason) {
	if s.cfg.OnDrop != nil {
		s.cfg.OnDrop(t.opt.Group, reason)
	}
}

func (s *Scheduler) purge(reason DropReason) {
	for _, t := range s.h {
		s.dropped(t, reason)
	}
	for _, t := range s.parked {
		s.dropped(t, reason)
	}
	s.CancelAll()
}

func (s *Scheduler) removeIf(match func(t *task) bool) int {
	removed := 0
	n := 0
	for _, t := range s.h {
		if match(t) {
			t.index = -1
			removed++
			continue
		}
		s.h[n] = t
		n++
	}
	if n < len(s.h) {
		clear(s.h[n:])
		s.h = s.h[:n]
		for i, t := range s.h {
			t.index = i
		}
		heap.Init(&s.h)
	}
	m := 0
	for _, t := range s.parked {
		if match(t) {
			removed++
			continue
		}
		s.parked[m] = t
		m++
	}
	clear(s.parked[m:])
	s.parked = s.parked[:m]
	return removed
}

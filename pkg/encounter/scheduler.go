package encounter

import (
	"fmt"
	"math/rand"
	"time"

	"phasebot/pkg/clock"
	"phasebot/pkg/eventmap"
	"phasebot/pkg/logx"
	"phasebot/pkg/phase"
	"phasebot/pkg/taskchain"
)

// Scheduler is the per-actor timeline. It is not safe for concurrent use.
type Scheduler struct {
	cfg Config
	log logx.Logger
	// unhandled is throttled: a repeating event with no handler would
	// otherwise log every tick.
	unhandled logx.Logger
	obs       Observer

	clk    *clock.Clock
	events *eventmap.Queue
	tasks  *taskchain.Scheduler
	ctl    *phase.Controller

	handlers map[EventID]EventFunc
	fallback EventFunc

	ticking bool
	closed  bool
}

// New returns a scheduler at time 0, in no phase. A nil observer is replaced
// by NopObserver.
func New(cfg Config, log logx.Logger, obs Observer) *Scheduler {
	if obs == nil {
		obs = NopObserver{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}

	s := &Scheduler{
		cfg:      cfg,
		obs:      obs,
		handlers: map[EventID]EventFunc{},
	}
	s.log = log.With(logx.String("encounter", cfg.Name))
	s.unhandled = s.log.Throttled(time.Second, 4)

	s.clk = clock.New()
	s.events = eventmap.New(s.clk, rand.New(rand.NewSource(seed)))
	s.tasks = taskchain.New(s.clk, taskchain.Config{
		PurgeOnInvalid: !cfg.KeepOnInvalid,
		OnDrop:         s.onDrop,
		OnFire:         func(g Group) { s.obs.TaskFired(s.cfg.Name, g) },
	})
	s.ctl = phase.New(s.clk, s.events, s.tasks)
	return s
}

// Name returns the configured name.
func (s *Scheduler) Name() string { return s.cfg.Name }

// Now returns the logical time since the last Reset.
func (s *Scheduler) Now() time.Duration { return s.clk.Now() }

// Tick advances the clock by delta, fires every due event in (due, schedule
// order) through its handler and then runs due continuations. Only
// continuations pending when the tick began run; anything scheduled by a
// handler or task during the tick waits for the next one. After End it does
// nothing.
func (s *Scheduler) Tick(delta time.Duration) error {
	if s.ticking {
		return ErrTickInProgress
	}
	if s.clk.Stopped() {
		return nil
	}
	if _, err := s.clk.Advance(delta); err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	s.ticking = true
	defer func() { s.ticking = false }()

	mark := s.tasks.Mark()
	events := 0
	for ev := range s.events.Due() {
		events++
		s.fire(ev)
	}
	tasks := s.tasks.DispatchBefore(mark)

	s.obs.Ticked(s.cfg.Name, delta, events, tasks)
	return nil
}

func (s *Scheduler) fire(ev eventmap.Fired) {
	s.obs.EventFired(s.cfg.Name, ev.ID, s.events.Phase())

	h := s.handlers[ev.ID]
	if h == nil {
		h = s.fallback
	}
	if h == nil {
		s.unhandled.Warn("event without handler",
			logx.Uint64("event", uint64(ev.ID)),
			logx.At(ev.Due),
		)
		return
	}
	h(&EventContext{s: s, ev: ev})
}

func (s *Scheduler) onDrop(g Group, reason DropReason) {
	s.obs.TaskDropped(s.cfg.Name, g, reason)
	s.log.Trace("continuation dropped", logx.Uint64("group", uint64(g)), logx.String("reason", string(reason)))
}

// HandleEvent registers the handler of id, replacing any previous one.
func (s *Scheduler) HandleEvent(id EventID, fn EventFunc) {
	if fn == nil {
		delete(s.handlers, id)
		return
	}
	s.handlers[id] = fn
}

// HandleUnknown registers the handler for events with no specific handler.
func (s *Scheduler) HandleUnknown(fn EventFunc) { s.fallback = fn }

// ScheduleEvent arms id to fire delay from now while a phase of mask is
// current. A pending event with the same id in an overlapping mask is
// replaced.
func (s *Scheduler) ScheduleEvent(id EventID, delay time.Duration, mask Mask, r Repeat) error {
	return s.ScheduleEventOpt(id, delay, EventOptions{Mask: mask, Repeat: r})
}

// ScheduleEventOpt is ScheduleEvent with options.
func (s *Scheduler) ScheduleEventOpt(id EventID, delay time.Duration, opt EventOptions) error {
	if err := s.events.ScheduleOpt(id, delay, opt); err != nil {
		return fmt.Errorf("schedule event %d: %w", id, err)
	}
	return nil
}

// CancelEvent removes every pending entry of id. It reports whether any was
// pending.
func (s *Scheduler) CancelEvent(id EventID) bool { return s.events.Cancel(id) }

// DelayEvents pushes every pending event back by d.
func (s *Scheduler) DelayEvents(d time.Duration) error {
	if err := s.events.Delay(d); err != nil {
		return fmt.Errorf("delay events: %w", err)
	}
	return nil
}

// TimeUntil returns how long until id is due.
func (s *Scheduler) TimeUntil(id EventID) (time.Duration, bool) { return s.events.TimeUntil(id) }

// EnterPhase switches to p and runs its entry hook.
func (s *Scheduler) EnterPhase(p Phase) error {
	prev := s.ctl.Current()
	if err := s.ctl.EnterPhase(p); err != nil {
		return err
	}
	s.obs.PhaseEntered(s.cfg.Name, p)
	s.log.Debug("phase entered",
		logx.Int("from", int(prev)),
		logx.Int("phase", int(p)),
		logx.Int("events", s.events.Len()),
		logx.At(s.clk.Now()),
	)
	return nil
}

// OnPhaseEnter registers the hook that installs the timeline of p.
func (s *Scheduler) OnPhaseEnter(p Phase, h PhaseHook) { s.ctl.OnEnter(p, h) }

// OnPhaseExit registers the hook run when p is left for another phase.
func (s *Scheduler) OnPhaseExit(p Phase, h PhaseHook) { s.ctl.OnExit(p, h) }

// OnEnd registers a callback run once when the encounter ends.
func (s *Scheduler) OnEnd(fn func()) { s.ctl.OnEnd(fn) }

// Phase returns the current phase, 0 before the first EnterPhase.
func (s *Scheduler) Phase() Phase { return s.ctl.Current() }

// IsInPhase reports whether p is the current phase.
func (s *Scheduler) IsInPhase(p Phase) bool { return s.ctl.IsInPhase(p) }

// History returns the phases entered since the last Reset.
func (s *Scheduler) History() []Phase { return s.ctl.History() }

// End cancels all events and continuations. Later scheduling fails with
// ErrEnded and Tick does nothing until Reset.
func (s *Scheduler) End() {
	if s.ctl.Ended() {
		return
	}
	s.ctl.End()
	s.obs.Ended(s.cfg.Name)
	s.log.Info("encounter ended",
		logx.At(s.clk.Now()),
		logx.Any("phases", s.ctl.History()),
	)
}

// Ended reports whether End was called since the last Reset.
func (s *Scheduler) Ended() bool { return s.ctl.Ended() }

// Reset drops all pending work and rewinds to time 0 in no phase. Handlers
// and hooks stay registered.
func (s *Scheduler) Reset() {
	s.ctl.Reset()
	s.log.Debug("encounter reset")
}

// Close ends the encounter and forgets every handler. Used when the owning
// actor is destroyed.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.End()
	clear(s.handlers)
	s.fallback = nil
	return nil
}

// ScheduleTask runs fn delay from now.
func (s *Scheduler) ScheduleTask(delay time.Duration, fn TaskFunc) error {
	return s.ScheduleTaskOpt(delay, TaskOptions{}, fn)
}

// ScheduleTaskOpt is ScheduleTask with a group and/or validator.
func (s *Scheduler) ScheduleTaskOpt(delay time.Duration, opt TaskOptions, fn TaskFunc) error {
	if err := s.tasks.ScheduleOpt(delay, opt, fn); err != nil {
		return fmt.Errorf("schedule task: %w", err)
	}
	return nil
}

// CancelTaskGroup discards the pending continuations of g.
func (s *Scheduler) CancelTaskGroup(g Group) int { return s.tasks.CancelGroup(g) }

// CancelAllTasks discards every pending continuation.
func (s *Scheduler) CancelAllTasks() int { return s.tasks.CancelAll() }

// DelayTaskGroup pushes the continuations of g back by d.
func (s *Scheduler) DelayTaskGroup(g Group, d time.Duration) error {
	if err := s.tasks.DelayGroup(g, d); err != nil {
		return fmt.Errorf("delay task group %d: %w", g, err)
	}
	return nil
}

// SetGlobalValidator installs the predicate checked before every
// continuation fires.
func (s *Scheduler) SetGlobalValidator(v Validator) { s.tasks.SetValidator(v) }

// ClearGlobalValidator removes the global predicate.
func (s *Scheduler) ClearGlobalValidator() { s.tasks.ClearValidator() }

// Snapshot returns a diagnostic view of the pending work.
func (s *Scheduler) Snapshot() Snapshot {
	next, ok := s.tasks.Next()
	return Snapshot{
		Name:     s.cfg.Name,
		Now:      s.clk.Now(),
		Phase:    s.ctl.Current(),
		History:  s.ctl.History(),
		Ended:    s.ctl.Ended(),
		Events:   s.events.Snapshot(),
		Tasks:    s.tasks.Len(),
		NextTask: next,
		HasTask:  ok,
	}
}

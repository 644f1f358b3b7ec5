package script

import (
	"time"

	"phasebot/internal/timeline"
	"phasebot/pkg/encounter"
	"phasebot/pkg/logx"
)

const KindTimeline = "timeline"

// Emit types used by the built-in scripts.
const (
	EmitCast  = "cast"
	EmitSay   = "say"
	EmitPhase = "phase"
	EmitChain = "chain"
)

// relFunc schedules a continuation relative to whatever is running.
type relFunc func(delay time.Duration, opt encounter.TaskOptions, fn encounter.TaskFunc) error

// Timeline runs a compiled timeline plan.
type Timeline struct {
	plan *timeline.Plan
	h    Host
	s    *encounter.Scheduler
	log  logx.Logger
}

func NewTimeline(plan *timeline.Plan) *Timeline { return &Timeline{plan: plan} }

func (t *Timeline) Kind() string { return KindTimeline }

// Attach installs phase hooks and event handlers and enters the first phase.
func (t *Timeline) Attach(h Host) error {
	t.h = h
	t.s = h.Scheduler()
	t.log = h.Logger().With(logx.String("timeline", t.plan.Name))

	for _, ph := range t.plan.Phases {
		ph := ph
		t.s.OnPhaseEnter(ph.ID, func(encounter.Phase) { t.enterPhase(ph) })
	}
	t.s.HandleUnknown(t.onEvent)
	return t.s.EnterPhase(t.plan.Start())
}

func (t *Timeline) enterPhase(ph *timeline.Phase) {
	t.h.Emit(Emit{Type: EmitPhase, Name: ph.Name, Phase: ph.ID})
	for _, ev := range ph.Events {
		err := t.s.ScheduleEventOpt(ev.ID, ev.After, encounter.EventOptions{
			Mask:       ev.Mask,
			Repeat:     ev.Repeat,
			Persistent: ev.Persistent,
		})
		if err != nil {
			t.log.Warn("schedule event failed", logx.String("event", ev.Name), logx.Err(err))
		}
	}
	t.run(ph.OnEnter, t.s.ScheduleTaskOpt)
}

func (t *Timeline) onEvent(ec *encounter.EventContext) {
	ev := t.plan.EventFor(ec.ID(), ec.Phase())
	if ev == nil {
		t.log.Debug("event without definition", logx.Uint64("event", uint64(ec.ID())))
		return
	}
	t.run(ev.Actions, ec.ScheduleRelativeOpt)
}

func (t *Timeline) run(actions []timeline.Action, rel relFunc) {
	for _, a := range actions {
		if t.s.Ended() {
			return
		}
		switch a.Kind {
		case timeline.ActCast:
			t.h.Emit(Emit{Type: EmitCast, Name: a.Name, Phase: t.s.Phase()})
		case timeline.ActSay:
			t.h.Emit(Emit{Type: EmitSay, Name: a.Name, Phase: t.s.Phase()})
		case timeline.ActEnterPhase:
			if err := t.s.EnterPhase(a.Phase); err != nil {
				t.log.Warn("enter phase failed", logx.Int("phase", int(a.Phase)), logx.Err(err))
			}
		case timeline.ActEnd:
			t.s.End()
		case timeline.ActChain:
			t.startChain(a.Name, rel)
		case timeline.ActCancel:
			for _, id := range a.Events {
				t.s.CancelEvent(id)
			}
		case timeline.ActCancelChain:
			t.s.CancelTaskGroup(a.Group)
		case timeline.ActSpawn:
			for i := 0; i < a.Spawn.Count; i++ {
				if _, err := t.h.Spawn(a.Spawn.Kind, a.Spawn.Name, a.Spawn.Lifetime); err != nil {
					t.log.Warn("spawn failed", logx.String("kind", a.Spawn.Kind), logx.Err(err))
					break
				}
			}
		}
	}
}

// startChain restarts the named chain. Each step schedules the next one
// relative to its own due time, so offsets hold regardless of tick size.
func (t *Timeline) startChain(name string, rel relFunc) {
	ch := t.plan.Chains[name]
	if ch == nil || len(ch.Steps) == 0 {
		return
	}
	t.s.CancelTaskGroup(ch.Group)
	t.h.Emit(Emit{Type: EmitChain, Name: ch.Name, Phase: t.s.Phase()})
	if err := rel(ch.Steps[0].At, encounter.TaskOptions{Group: ch.Group}, t.step(ch, 0)); err != nil {
		t.log.Warn("start chain failed", logx.String("chain", name), logx.Err(err))
	}
}

func (t *Timeline) step(ch *timeline.Chain, i int) encounter.TaskFunc {
	return func(tc *encounter.TaskContext) {
		t.run(ch.Steps[i].Actions, tc.ScheduleRelativeOpt)
		if i+1 >= len(ch.Steps) || t.s.Ended() {
			return
		}
		delay := ch.Steps[i+1].At - ch.Steps[i].At
		if err := tc.ScheduleRelative(delay, t.step(ch, i+1)); err != nil {
			t.log.Debug("chain stopped", logx.String("chain", ch.Name), logx.Err(err))
		}
	}
}

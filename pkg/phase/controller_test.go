package phase

import (
	"errors"
	"slices"
	"testing"
	"time"

	"phasebot/pkg/clock"
	"phasebot/pkg/eventmap"
	"phasebot/pkg/taskchain"
)

const ms = time.Millisecond

type fixture struct {
	clk   *clock.Clock
	q     *eventmap.Queue
	tasks *taskchain.Scheduler
	c     *Controller
}

func newFixture() fixture {
	clk := clock.New()
	q := eventmap.New(clk, nil)
	tasks := taskchain.New(clk, taskchain.DefaultConfig())
	return fixture{clk: clk, q: q, tasks: tasks, c: New(clk, q, tasks)}
}

func fire(f fixture, d time.Duration) []eventmap.ID {
	_, _ = f.clk.Advance(d)
	var out []eventmap.ID
	for ev := range f.q.Due() {
		out = append(out, ev.ID)
	}
	f.tasks.Dispatch()
	return out
}

func TestEnterPhaseInstallsTimeline(t *testing.T) {
	t.Parallel()
	f := newFixture()
	var log []string
	f.c.OnEnter(1, func(p Phase) {
		log = append(log, "enter 1")
		_ = f.q.Schedule(10, 100*ms, eventmap.Phases(1), eventmap.Every(100*ms))
	})
	f.c.OnExit(1, func(Phase) { log = append(log, "exit 1") })
	f.c.OnEnter(2, func(p Phase) {
		log = append(log, "enter 2")
		_ = f.q.Schedule(20, 50*ms, eventmap.Phases(2), eventmap.Once())
	})

	if err := f.c.EnterPhase(1); err != nil {
		t.Fatalf("EnterPhase(1): %v", err)
	}
	if got := fire(f, 100*ms); !slices.Equal(got, []eventmap.ID{10}) {
		t.Fatalf("phase 1 fired %v", got)
	}
	if err := f.c.EnterPhase(2); err != nil {
		t.Fatalf("EnterPhase(2): %v", err)
	}
	if got := fire(f, 500*ms); !slices.Equal(got, []eventmap.ID{20}) {
		t.Fatalf("phase 2 fired %v, want [20]", got)
	}
	want := []string{"enter 1", "exit 1", "enter 2"}
	if !slices.Equal(log, want) {
		t.Fatalf("hooks = %v, want %v", log, want)
	}
	if !slices.Equal(f.c.History(), []Phase{1, 2}) || !f.c.IsInPhase(2) {
		t.Fatalf("history = %v current = %d", f.c.History(), f.c.Current())
	}
}

func TestPhaseSwitchFromEventHandler(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.c.OnEnter(2, func(Phase) {
		_ = f.q.Schedule(3, 0, eventmap.Phases(2), eventmap.Once())
	})
	_ = f.c.EnterPhase(1)
	_ = f.q.Schedule(1, 100*ms, eventmap.Phases(1), eventmap.Once())
	_ = f.q.Schedule(2, 100*ms, eventmap.Phases(1), eventmap.Once())

	_, _ = f.clk.Advance(100 * ms)
	var got []eventmap.ID
	for ev := range f.q.Due() {
		got = append(got, ev.ID)
		if ev.ID == 1 {
			if err := f.c.EnterPhase(2); err != nil {
				t.Fatalf("EnterPhase: %v", err)
			}
		}
	}
	// Event 2 left with phase 1; event 3 waits for the next drain.
	if !slices.Equal(got, []eventmap.ID{1}) {
		t.Fatalf("fired %v, want [1]", got)
	}
	if got := fire(f, 0); !slices.Equal(got, []eventmap.ID{3}) {
		t.Fatalf("next drain fired %v, want [3]", got)
	}
}

func TestEndIsTerminal(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ended := 0
	f.c.OnEnd(func() { ended++ })
	_ = f.c.EnterPhase(1)
	_ = f.q.Schedule(1, 100*ms, 0, eventmap.Every(ms))
	ran := false
	_ = f.tasks.Schedule(100*ms, func(*taskchain.Context) { ran = true })

	f.c.End()
	f.c.End()
	if ended != 1 || !f.c.Ended() {
		t.Fatalf("OnEnd ran %d times", ended)
	}
	if got := fire(f, time.Second); len(got) != 0 || ran {
		t.Fatalf("work fired after End: events=%v task=%v", got, ran)
	}
	if err := f.q.Schedule(2, 0, 0, eventmap.Once()); !errors.Is(err, clock.ErrEnded) {
		t.Fatalf("Schedule after End err = %v", err)
	}
	if err := f.c.EnterPhase(2); !errors.Is(err, clock.ErrEnded) {
		t.Fatalf("EnterPhase after End err = %v", err)
	}
	if f.q.Len() != 0 || f.tasks.Len() != 0 {
		t.Fatalf("pending after End: events=%d tasks=%d", f.q.Len(), f.tasks.Len())
	}

	f.c.Reset()
	if f.c.Ended() || f.clk.Now() != 0 || f.c.Current() != 0 {
		t.Fatal("Reset did not revive the controller")
	}
	if err := f.c.EnterPhase(1); err != nil {
		t.Fatalf("EnterPhase after Reset: %v", err)
	}
}

func TestInvalidPhase(t *testing.T) {
	t.Parallel()
	f := newFixture()
	for _, p := range []Phase{0, eventmap.MaxPhase + 1} {
		if err := f.c.EnterPhase(p); !errors.Is(err, ErrInvalidPhase) {
			t.Fatalf("EnterPhase(%d) err = %v", p, err)
		}
	}
}

package taskchain

import (
	"errors"
	"slices"
	"testing"
	"time"

	"phasebot/pkg/clock"
)

const ms = time.Millisecond

func update(t *testing.T, s *Scheduler, d time.Duration) int {
	t.Helper()
	n, err := s.Update(d)
	if err != nil {
		t.Fatalf("Update(%v): %v", d, err)
	}
	return n
}

func TestFalseValidatorDropsTask(t *testing.T) {
	t.Parallel()
	var drops []DropReason
	s := New(clock.New(), Config{OnDrop: func(_ Group, r DropReason) { drops = append(drops, r) }})
	ran := false
	err := s.ScheduleOpt(100*ms, Options{Validator: func() bool { return false }}, func(*Context) { ran = true })
	if err != nil {
		t.Fatalf("ScheduleOpt: %v", err)
	}
	update(t, s, 200*ms)
	if ran {
		t.Fatal("continuation ran despite failing validator")
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	if !slices.Equal(drops, []DropReason{DropTaskValidator}) {
		t.Fatalf("drops = %v", drops)
	}
}

func TestScheduleRelativeChainsFromOwnDue(t *testing.T) {
	t.Parallel()
	s := New(clock.New(), DefaultConfig())
	var dDue time.Duration
	dRan := false
	_ = s.Schedule(500*ms, func(tc *Context) {
		if err := tc.ScheduleRelative(250*ms, func(tc *Context) {
			dRan = true
			dDue = tc.Due()
		}); err != nil {
			t.Errorf("ScheduleRelative: %v", err)
		}
	})

	// One tick covers both t=500 and t=750.
	if n := update(t, s, 800*ms); n != 1 {
		t.Fatalf("first update fired %d, want 1", n)
	}
	if dRan {
		t.Fatal("follow-up ran in the same update that scheduled it")
	}
	if next, ok := s.Next(); !ok || next != 750*ms {
		t.Fatalf("Next = %v,%v want 750ms", next, ok)
	}
	if n := update(t, s, 0); n != 1 || !dRan {
		t.Fatalf("second update fired %d (ran=%v), want 1", n, dRan)
	}
	if dDue != 750*ms {
		t.Fatalf("follow-up due = %v, want 750ms", dDue)
	}
}

func TestDispatchBeforeMark(t *testing.T) {
	t.Parallel()
	s := New(clock.New(), DefaultConfig())
	var ran []string
	_ = s.Schedule(0, func(*Context) { ran = append(ran, "early") })
	mark := s.Mark()
	_ = s.Schedule(0, func(*Context) { ran = append(ran, "late") })

	if n := s.DispatchBefore(mark); n != 1 {
		t.Fatalf("DispatchBefore fired %d, want 1", n)
	}
	if !slices.Equal(ran, []string{"early"}) {
		t.Fatalf("ran = %v, want [early]", ran)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want the late continuation parked back", s.Len())
	}
	if n := s.Dispatch(); n != 1 || !slices.Equal(ran, []string{"early", "late"}) {
		t.Fatalf("Dispatch fired %d, ran = %v", n, ran)
	}
}

func TestFIFOTieBreak(t *testing.T) {
	t.Parallel()
	for run := 0; run < 10; run++ {
		s := New(nil, DefaultConfig())
		var got []int
		for i := 0; i < 8; i++ {
			i := i
			_ = s.Schedule(time.Second, func(*Context) { got = append(got, i) })
		}
		_ = s.Schedule(500*ms, func(*Context) { got = append(got, -1) })
		update(t, s, time.Second)
		want := []int{-1, 0, 1, 2, 3, 4, 5, 6, 7}
		if !slices.Equal(got, want) {
			t.Fatalf("run %d order = %v, want %v", run, got, want)
		}
	}
}

func TestRepeatKeepsGroupAndCounts(t *testing.T) {
	t.Parallel()
	s := New(nil, DefaultConfig())
	var dues []time.Duration
	_ = s.ScheduleOpt(100*ms, Options{Group: 3}, func(tc *Context) {
		dues = append(dues, tc.Due())
		if tc.Group() != 3 {
			t.Errorf("Group = %d, want 3", tc.Group())
		}
		if tc.RepeatCount() < 2 {
			_ = tc.Repeat(200 * ms)
			_ = tc.Repeat(time.Hour) // ignored
		}
	})
	for i := 0; i < 6; i++ {
		update(t, s, 100*ms)
	}
	want := []time.Duration{100 * ms, 300 * ms, 500 * ms}
	if !slices.Equal(dues, want) {
		t.Fatalf("dues = %v, want %v", dues, want)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestCancelGroup(t *testing.T) {
	t.Parallel()
	s := New(nil, DefaultConfig())
	var got []string
	_ = s.ScheduleOpt(100*ms, Options{Group: 1}, func(*Context) { got = append(got, "a") })
	_ = s.ScheduleOpt(100*ms, Options{Group: 2}, func(*Context) { got = append(got, "b") })
	_ = s.ScheduleOpt(200*ms, Options{Group: 1}, func(*Context) { got = append(got, "c") })
	if n := s.CancelGroup(1); n != 2 {
		t.Fatalf("CancelGroup removed %d, want 2", n)
	}
	if n := s.CancelGroup(99); n != 0 {
		t.Fatalf("CancelGroup(unknown) removed %d", n)
	}
	update(t, s, time.Second)
	if !slices.Equal(got, []string{"b"}) {
		t.Fatalf("ran %v, want [b]", got)
	}
}

func TestCancelInsideCallbackIsImmediate(t *testing.T) {
	t.Parallel()
	s := New(nil, DefaultConfig())
	var got []string
	_ = s.Schedule(100*ms, func(tc *Context) {
		got = append(got, "first")
		tc.CancelGroup(7)
	})
	_ = s.ScheduleOpt(100*ms, Options{Group: 7}, func(*Context) { got = append(got, "second") })
	update(t, s, 100*ms)
	if !slices.Equal(got, []string{"first"}) {
		t.Fatalf("ran %v, want [first]", got)
	}
}

func TestGlobalValidatorPurgesEverything(t *testing.T) {
	t.Parallel()
	alive := true
	drops := 0
	s := New(nil, Config{PurgeOnInvalid: true, OnDrop: func(Group, DropReason) { drops++ }})
	s.SetValidator(func() bool { return alive })
	ran := 0
	_ = s.Schedule(100*ms, func(*Context) { ran++ })
	_ = s.Schedule(200*ms, func(*Context) { ran++ })
	_ = s.Schedule(5*time.Second, func(*Context) { ran++ })

	update(t, s, 100*ms)
	alive = false
	update(t, s, 100*ms)
	if ran != 1 {
		t.Fatalf("ran %d, want 1", ran)
	}
	if s.Len() != 0 || drops != 2 {
		t.Fatalf("Len = %d drops = %d, want 0 and 2", s.Len(), drops)
	}
}

func TestGlobalValidatorWithoutPurge(t *testing.T) {
	t.Parallel()
	s := New(nil, Config{})
	s.SetValidator(func() bool { return false })
	_ = s.Schedule(100*ms, func(*Context) { t.Error("ran") })
	_ = s.Schedule(time.Second, func(*Context) { t.Error("ran") })
	update(t, s, 100*ms)
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	s.ClearValidator()
	ran := false
	_ = s.Schedule(0, func(*Context) { ran = true })
	update(t, s, 0)
	if !ran {
		t.Fatal("continuation did not run after ClearValidator")
	}
}

func TestStoppedClockRejectsWork(t *testing.T) {
	t.Parallel()
	clk := clock.New()
	s := New(clk, DefaultConfig())
	var repeatErr error
	_ = s.Schedule(100*ms, func(tc *Context) {
		clk.Stop()
		repeatErr = tc.Repeat(ms)
	})
	_ = s.Schedule(100*ms, func(*Context) { t.Error("ran after stop") })
	update(t, s, 100*ms)
	if !errors.Is(repeatErr, clock.ErrEnded) {
		t.Fatalf("Repeat err = %v, want ErrEnded", repeatErr)
	}
	if err := s.Schedule(0, func(*Context) {}); !errors.Is(err, clock.ErrEnded) {
		t.Fatalf("Schedule err = %v, want ErrEnded", err)
	}
}

func TestDelayGroupAndInvalid(t *testing.T) {
	t.Parallel()
	s := New(nil, DefaultConfig())
	var got []string
	_ = s.ScheduleOpt(100*ms, Options{Group: 1}, func(*Context) { got = append(got, "g1") })
	_ = s.ScheduleOpt(150*ms, Options{Group: 2}, func(*Context) { got = append(got, "g2") })
	if err := s.DelayGroup(1, 100*ms); err != nil {
		t.Fatalf("DelayGroup: %v", err)
	}
	update(t, s, 200*ms)
	if !slices.Equal(got, []string{"g2", "g1"}) {
		t.Fatalf("ran %v, want [g2 g1]", got)
	}
	if err := s.DelayAll(-ms); !errors.Is(err, clock.ErrInvalidInterval) {
		t.Fatalf("DelayAll(-1ms) err = %v", err)
	}
	if err := s.Schedule(-ms, func(*Context) {}); !errors.Is(err, clock.ErrInvalidInterval) {
		t.Fatalf("Schedule(-1ms) err = %v", err)
	}
	if _, err := s.Update(-ms); !errors.Is(err, clock.ErrInvalidInterval) {
		t.Fatalf("Update(-1ms) err = %v", err)
	}
}

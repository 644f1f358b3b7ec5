package systemd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "phasebot/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
	err    error
}

func (r *recorder) send(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return r.err == nil, r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func TestNotifierStates(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	n := NewNotifier(logx.Nop())
	n.send = rec.send

	n.Ready("running")
	n.Status("tick 10")
	n.Stopping()
	n.Watchdog()

	want := []string{"READY=1\nSTATUS=running", "STATUS=tick 10", "STOPPING=1", "WATCHDOG=1"}
	if len(rec.states) != len(want) {
		t.Fatalf("Got %q, want %q", rec.states, want)
	}
	for i := range want {
		if rec.states[i] != want[i] {
			t.Fatalf("state %d = %q, want %q", i, rec.states[i], want[i])
		}
	}
}

func TestNotifierSwallowsErrors(t *testing.T) {
	t.Parallel()

	rec := &recorder{err: errors.New("no socket")}
	n := NewNotifier(logx.Nop())
	n.send = rec.send
	n.Ready("x")
	if rec.count() != 1 {
		t.Fatalf("Got %d sends, want 1", rec.count())
	}
}

func TestRunWatchdog(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	n := NewNotifier(logx.Nop())
	n.send = rec.send

	if err := n.RunWatchdog(context.Background(), 0); err != nil {
		t.Fatalf("disabled watchdog should return nil, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := n.RunWatchdog(ctx, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Got %v, want deadline", err)
	}
	if rec.count() == 0 {
		t.Fatalf("watchdog never pinged")
	}
}

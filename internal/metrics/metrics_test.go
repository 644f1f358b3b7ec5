package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"phasebot/pkg/encounter"
	"phasebot/pkg/logx"
)

func TestObserverCountsSchedulerActivity(t *testing.T) {
	t.Parallel()

	m := New()
	s := encounter.New(encounter.Config{Name: "boss#1"}, logx.Nop(), m)
	s.HandleEvent(1, func(ec *encounter.EventContext) {
		_ = ec.ScheduleRelative(0, func(*encounter.TaskContext) {})
	})
	if err := s.EnterPhase(1); err != nil {
		t.Fatal(err)
	}
	if err := s.ScheduleEvent(1, time.Second, 0, encounter.Every(time.Second)); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := s.Tick(time.Second); err != nil {
			t.Fatal(err)
		}
	}
	s.End()

	expectLines(t, scrape(t, m),
		`phasebot_events_fired_total{encounter="boss",phase="1"} 3`,
		`phasebot_tasks_fired_total{encounter="boss"} 3`,
		`phasebot_phase_entries_total{encounter="boss",phase="1"} 1`,
		`phasebot_encounters_ended_total{encounter="boss"} 1`,
		`phasebot_tick_work_items_count{encounter="boss"} 3`,
	)
}

func TestObserverCountsDrops(t *testing.T) {
	t.Parallel()

	m := New()
	s := encounter.New(encounter.Config{Name: "add#7"}, logx.Nop(), m)
	s.SetGlobalValidator(func() bool { return false })
	for range 2 {
		if err := s.ScheduleTask(time.Second, func(*encounter.TaskContext) {}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Tick(time.Second); err != nil {
		t.Fatal(err)
	}
	expectLines(t, scrape(t, m), `phasebot_tasks_dropped_total{encounter="add",reason="global_validator"} 2`)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.Ended("boss#1")
	m.ObserveTick(2 * time.Millisecond)
	m.Overrun()

	expectLines(t, scrape(t, m),
		`phasebot_encounters_ended_total{encounter="boss"} 1`,
		"phasebot_tick_overruns_total 1",
		"phasebot_tick_duration_seconds_count 1",
		"go_goroutines",
	)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Got status %d", rec.Code)
	}
	return rec.Body.String()
}

func expectLines(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("metrics output missing %q", w)
		}
	}
}

func TestBaseAndPath(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"boss#1", "boss"},
		{"a#b#3", "a#b"},
		{"plain", "plain"},
		{"#1", "#1"},
	}
	for _, tt := range tests {
		if got := base(tt.in); got != tt.want {
			t.Errorf("base(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if normalizePath("") != "/metrics" || normalizePath("m") != "/m" {
		t.Fatalf("normalizePath mismatch")
	}
	if !isLoopbackAddr("127.0.0.1:1") || isLoopbackAddr(":9464") || !isLoopbackAddr("localhost:1") {
		t.Fatalf("isLoopbackAddr mismatch")
	}
}

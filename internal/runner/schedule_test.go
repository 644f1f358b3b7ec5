package runner

import (
	"testing"
	"time"

	"phasebot/internal/config"
	logx "phasebot/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		kind    SpecKind
		cron    string
		every   time.Duration
		wantErr bool
	}{
		{in: "*/5 * * * *", kind: SpecCron, cron: "*/5 * * * *"},
		{in: "@hourly", kind: SpecCron, cron: "@hourly"},
		{in: "cron:0 0 * * *", kind: SpecCron, cron: "0 0 * * *"},
		{in: "30s", kind: SpecInterval, every: 30 * time.Second},
		{in: "00:05", kind: SpecInterval, every: 5 * time.Minute},
		{in: "every:1h", kind: SpecInterval, every: time.Hour},
		{in: "", wantErr: true},
		{in: "cron:", wantErr: true},
		{in: "00:75", wantErr: true},
		{in: "-5s", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSchedule(%q) = %+v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSchedule(%q) error: %v", tt.in, err)
			continue
		}
		if got.Kind != tt.kind || got.Cron != tt.cron || got.Every != tt.every {
			t.Errorf("ParseSchedule(%q) = %+v", tt.in, got)
		}
	}

	if got, _ := ParseSchedule("90s"); got.CronSpec() != "@every 1m30s" {
		t.Fatalf("Got cron spec %q", got.CronSpec())
	}
}

func TestStatusCronApply(t *testing.T) {
	t.Parallel()

	s := newStatusCron(logx.Nop(), func() {})
	defer s.Stop()

	if err := s.Apply(config.StatusConfig{Schedule: "@every 1h"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.c == nil {
		t.Fatalf("cron should be running")
	}
	if err := s.Apply(config.StatusConfig{Schedule: "* * *"}); err == nil {
		t.Fatalf("bad cron expression should fail")
	}
	if s.c == nil {
		t.Fatalf("a rejected config must keep the previous cron")
	}
	if err := s.Apply(config.StatusConfig{Schedule: "1m", Timezone: "Nowhere/City"}); err == nil {
		t.Fatalf("bad timezone should fail")
	}
	if err := s.Apply(config.StatusConfig{}); err != nil || s.c != nil {
		t.Fatalf("empty schedule should stop the cron, err=%v", err)
	}
}

package logx

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestThrottledSharesBudget(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").Throttled(time.Hour, 2)
	child := log.With(String("component", "test"))

	log.Info("one")
	child.Info("two")
	log.Info("three")
	child.Info("four")

	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", lines, buf.String())
	}
	if strings.Contains(buf.String(), "three") {
		t.Fatalf("throttled line leaked: %s", buf.String())
	}
}

func TestLevelFilterDoesNotSpendBudget(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, "info").Throttled(time.Hour, 1)

	log.Debug("hidden")
	log.Info("shown")

	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info line, got %q", buf.String())
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()

	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Info("nothing", Int("n", 1))
	l.Throttled(time.Second, 1).Warn("still nothing")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in, LevelInfo); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWorldFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWriter(&buf, "info").With(Actor(3)).Info("cast", At(90500*time.Millisecond+123*time.Microsecond))

	out := buf.String()
	for _, want := range []string{`"actor":3`, `"t":"1m30.5s"`, `"caller":"logging_test.go:`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}

func TestServiceApplySwapsLevel(t *testing.T) {
	t.Parallel()

	svc, log := New(Config{Level: "error", File: FileConfig{Enabled: true, Path: t.TempDir() + "/x.log"}})
	defer svc.Close()
	if log.Enabled(LevelInfo) {
		t.Fatalf("info should be filtered at error level")
	}
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: t.TempDir() + "/y.log"}})
	if !log.Enabled(LevelDebug) || svc.Config().Level != "debug" {
		t.Fatalf("logger did not follow Apply")
	}
}

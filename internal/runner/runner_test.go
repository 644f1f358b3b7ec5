package runner

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"phasebot/internal/config"
	"phasebot/internal/eventbus"
	"phasebot/internal/storage"
	"phasebot/pkg/encounter"
	logx "phasebot/pkg/logx"
)

const tinyTimeline = `
name: tiny
phases:
  - id: 1
    events:
      - name: poke
        after: 10ms
        repeat: 10ms
        do: [{cast: poke}]
      - name: finish
        after: 50ms
        do: [{enter_phase: 2}]
  - id: 2
    on_enter: [{say: two}, {end: true}]
    events: []
`

func writeTimeline(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	if err := os.WriteFile(path, []byte(tinyTimeline), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(t *testing.T, cfg *config.Config) *Runner {
	t.Helper()
	r, err := New(Options{Config: cfg, Logger: logx.Nop()})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSimulateBuiltinEncounter(t *testing.T) {
	t.Parallel()

	journal := filepath.Join(t.TempDir(), "journal")
	cfg := &config.Config{
		Simulation: config.SimulationConfig{Seed: 42},
		Storage:    &config.StorageConfig{Driver: "file", Path: journal},
	}
	r, err := New(Options{Config: cfg, Logger: logx.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := r.Simulate(context.Background())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !sum.Ended || sum.TimedOut {
		t.Fatalf("Got summary %+v, want ended", sum)
	}
	if !slices.Equal(sum.Phases, []encounter.Phase{1, 2, 3}) {
		t.Fatalf("Got phases %v, want [1 2 3]", sum.Phases)
	}
	if sum.Elapsed < 8*time.Minute || sum.Elapsed > 12*time.Minute {
		t.Fatalf("Got elapsed %v, want roughly ten minutes", sum.Elapsed)
	}

	store, err := OpenStore(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	recs, err := store.Records(context.Background(), sum.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != sum.Actions {
		t.Fatalf("Got %d journaled records, want %d", len(recs), sum.Actions)
	}
	if recs[0].Type != "spawn" || recs[0].Actor != 1 {
		t.Fatalf("first record should spawn the boss, got %+v", recs[0])
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Seq != recs[i-1].Seq+1 || recs[i].Logical < recs[i-1].Logical {
			t.Fatalf("records out of order at %d: %+v then %+v", i, recs[i-1], recs[i])
		}
	}
	if last := recs[len(recs)-1]; last.Type != "despawn" && last.Type != "end" {
		t.Fatalf("Got last record %+v", last)
	}
}

func TestSimulateIsDeterministic(t *testing.T) {
	t.Parallel()

	run := func() []storage.Record {
		r := newRunner(t, &config.Config{Simulation: config.SimulationConfig{Seed: 7, MaxDuration: "4m"}})
		ch, cancel := r.Subscribe(1<<14, eventbus.Lossy)
		defer cancel()
		if _, err := r.Simulate(context.Background()); err != nil {
			t.Fatal(err)
		}
		var out []storage.Record
		for {
			select {
			case rec := <-ch:
				rec.RunID, rec.At = "", time.Time{}
				out = append(out, rec)
			default:
				return out
			}
		}
	}
	a, b := run(), run()
	if len(a) == 0 || !slices.Equal(a, b) {
		t.Fatalf("runs with the same seed differ: %d vs %d records", len(a), len(b))
	}
}

func TestSimulateTimesOut(t *testing.T) {
	t.Parallel()

	r := newRunner(t, &config.Config{Simulation: config.SimulationConfig{MaxDuration: "10s", Tick: "1s"}})
	sum, err := r.Simulate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Ended || !sum.TimedOut || sum.Elapsed != 10*time.Second || sum.Ticks != 10 {
		t.Fatalf("Got %+v", sum)
	}
}

func TestSimulateHonorsContext(t *testing.T) {
	t.Parallel()

	r := newRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Simulate(ctx); err == nil {
		t.Fatalf("cancelled context should stop the run")
	}
}

func TestNewFromConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tl := writeTimeline(t)
	path := filepath.Join(dir, "config.yaml")
	src := "simulation:\n  tick: 5ms\n  timeline: " + tl + "\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(Options{
		ConfigPath: path,
		Logger:     logx.Nop(),
		Override:   func(c *config.Config) { c.Simulation.Seed = 99 },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Plan().Name != "tiny" || r.sim.Tick != 5*time.Millisecond || r.sim.Seed != 99 {
		t.Fatalf("Got plan %q tick %v seed %d", r.Plan().Name, r.sim.Tick, r.sim.Seed)
	}

	sum, err := r.Simulate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Ended || sum.Elapsed != 50*time.Millisecond {
		t.Fatalf("Got %+v", sum)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Logger: logx.Nop()}); err == nil {
		t.Fatalf("missing config should fail")
	}
	bad := &config.Config{Simulation: config.SimulationConfig{Timeline: filepath.Join(t.TempDir(), "none.yaml")}}
	if _, err := New(Options{Config: bad, Logger: logx.Nop()}); err == nil {
		t.Fatalf("missing timeline should fail")
	}
	if _, err := New(Options{
		Logger:   logx.Nop(),
		Override: func(c *config.Config) { c.Simulation.Tick = "soon" },
	}); err == nil {
		t.Fatalf("invalid override should fail")
	}
}

func TestRealtimeRunsToEnd(t *testing.T) {
	t.Parallel()

	r := newRunner(t, &config.Config{Simulation: config.SimulationConfig{
		Tick:        "5ms",
		MaxDuration: "5s",
		Timeline:    writeTimeline(t),
	}})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sum, err := r.Realtime(ctx)
	if err != nil {
		t.Fatalf("realtime: %v", err)
	}
	if !sum.Ended || sum.Elapsed < 50*time.Millisecond {
		t.Fatalf("Got %+v", sum)
	}
}

func TestRealtimeStopsOnCancel(t *testing.T) {
	t.Parallel()

	r := newRunner(t, &config.Config{Simulation: config.SimulationConfig{Tick: "5ms"}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sum, err := r.Realtime(ctx)
	if err == nil || sum.Ended {
		t.Fatalf("Got %+v, %v; want a cancelled run", sum, err)
	}
	if sum.Ticks == 0 {
		t.Fatalf("realtime loop never ticked")
	}
}

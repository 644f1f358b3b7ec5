// Package runner drives a world from a configuration: as fast as possible for
// simulations, or from a wall-clock ticker as a long-running service.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"phasebot/internal/config"
	"phasebot/internal/eventbus"
	"phasebot/internal/metrics"
	"phasebot/internal/script"
	"phasebot/internal/storage"
	"phasebot/internal/timeline"
	"phasebot/internal/world"
	"phasebot/pkg/encounter"
	logx "phasebot/pkg/logx"
)

// Options configures New.
type Options struct {
	// ConfigPath is a JSON or YAML config file. Empty runs with defaults (or
	// Config) and disables hot reload.
	ConfigPath string
	Config     *config.Config

	// Override adjusts the loaded config before it is used, e.g. from flags.
	Override func(cfg *config.Config)

	// Logger replaces the configured logging service when set.
	Logger logx.Logger
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Elapsed  time.Duration
	Ticks    int
	Actions  int
	Ended    bool
	TimedOut bool
	Phases   []encounter.Phase
}

// Runner owns one run: the world, its journal and its observers.
type Runner struct {
	cfgm *config.Manager
	cfg  *config.Config
	sim  config.Simulation

	logs *logx.Service
	log  logx.Logger

	plan    *timeline.Plan
	world   *world.World
	boss    world.ActorID
	metrics *metrics.Metrics
	store   storage.Store
	bus     *eventbus.Bus[storage.Record]

	runID   string
	seq     int64
	ticks   int
	pending []storage.Record
}

func New(opts Options) (*Runner, error) {
	r := &Runner{}

	cfg := opts.Config
	if opts.ConfigPath != "" {
		r.cfgm = config.NewManager(opts.ConfigPath)
		loaded, err := r.cfgm.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if opts.Override != nil {
		c := *cfg
		opts.Override(&c)
		cfg = &c
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	r.cfg = cfg

	sim, err := config.ResolveSimulation(cfg.Simulation)
	if err != nil {
		return nil, err
	}
	r.sim = sim

	if opts.Logger.IsZero() {
		r.logs, r.log = logx.New(mapLogConfig(cfg))
	} else {
		r.log = opts.Logger
	}
	r.log = r.log.With(logx.String("component", "runner"))

	enc, err := timeline.Load(sim.Timeline)
	if err != nil {
		return nil, r.fail(err)
	}
	if r.plan, err = timeline.Compile(enc); err != nil {
		return nil, r.fail(err)
	}
	reg, err := script.Defaults(r.plan)
	if err != nil {
		return nil, r.fail(err)
	}

	if r.store, err = OpenStore(cfg, r.log); err != nil {
		return nil, r.fail(err)
	}

	r.runID = uuid.NewString()
	r.bus = eventbus.New[storage.Record]()
	r.metrics = metrics.New()
	r.world = world.New(world.Config{
		Seed:          sim.Seed,
		KeepOnInvalid: sim.KeepOnInvalid,
	}, reg, world.SinkFunc(r.record), r.metrics, r.log)
	return r, nil
}

func (r *Runner) fail(err error) error {
	if r.logs != nil {
		_ = r.logs.Close()
	}
	return err
}

func (r *Runner) RunID() string             { return r.runID }
func (r *Runner) Plan() *timeline.Plan      { return r.plan }
func (r *Runner) Metrics() *metrics.Metrics { return r.metrics }
func (r *Runner) World() *world.World       { return r.world }

// Settings returns the resolved simulation settings.
func (r *Runner) Settings() config.Simulation { return r.sim }

// Subscribe streams journal records as they are produced. A Lossy
// subscriber misses records when behind; a Lossless one paces the run.
func (r *Runner) Subscribe(buffer int, mode eventbus.Mode) (<-chan storage.Record, func()) {
	return r.bus.Subscribe(buffer, mode)
}

// start spawns the encounter actor.
func (r *Runner) start() error {
	if r.boss != 0 {
		return nil
	}
	id, err := r.world.Spawn(script.KindTimeline, r.plan.Name, 0, 0)
	if err != nil {
		return err
	}
	r.boss = id
	r.log.Info("run started",
		logx.String("run", r.runID),
		logx.String("encounter", r.plan.Name),
		logx.Duration("tick", r.sim.Tick),
		logx.Int64("seed", r.sim.Seed),
	)
	return nil
}

// Simulate ticks the world with the configured fixed step until every actor
// has ended or the maximum duration has passed.
func (r *Runner) Simulate(ctx context.Context) (Summary, error) {
	if err := r.start(); err != nil {
		return Summary{}, err
	}
	for !r.world.Done() && r.world.Now() < r.sim.MaxDuration {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx), err
		}
		if err := r.step(ctx, r.sim.Tick); err != nil {
			return r.finish(ctx), err
		}
	}
	return r.finish(ctx), nil
}

func (r *Runner) step(ctx context.Context, delta time.Duration) error {
	start := time.Now()
	err := r.world.Tick(delta)
	r.metrics.ObserveTick(time.Since(start))
	r.ticks++
	if err != nil {
		return fmt.Errorf("tick %d: %w", r.ticks, err)
	}
	return r.flush(ctx)
}

func (r *Runner) record(a world.Action) {
	r.seq++
	rec := storage.Record{
		RunID:   r.runID,
		Seq:     r.seq,
		At:      time.Now().UTC(),
		Logical: a.At,
		Actor:   uint32(a.Actor),
		Kind:    a.Kind,
		Type:    a.Type,
		Name:    a.Name,
		Phase:   int(a.Phase),
		Target:  uint32(a.Target),
	}
	if a.Owner != 0 {
		rec.Meta = fmt.Sprintf("owner=%d", a.Owner)
	}
	r.pending = append(r.pending, rec)
	r.bus.Publish(rec)
}

// flush writes pending records to the journal.
func (r *Runner) flush(ctx context.Context) error {
	defer func() { r.pending = r.pending[:0] }()
	if r.store == nil {
		return nil
	}
	for _, rec := range r.pending {
		if err := r.store.Append(ctx, rec); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	return nil
}

func (r *Runner) finish(ctx context.Context) Summary {
	if err := r.flush(context.WithoutCancel(ctx)); err != nil {
		r.log.Warn("journal flush failed", logx.Err(err))
	}
	s := Summary{
		RunID:   r.runID,
		Elapsed: r.world.Now(),
		Ticks:   r.ticks,
		Actions: int(r.seq),
		Ended:   r.world.Done(),
	}
	s.TimedOut = !s.Ended && s.Elapsed >= r.sim.MaxDuration
	if info, ok := r.world.Lookup(r.boss); ok {
		s.Phases = info.Snapshot.History
	}
	r.log.Info("run finished",
		logx.String("run", s.RunID),
		logx.Duration("elapsed", s.Elapsed),
		logx.Int("ticks", s.Ticks),
		logx.Int("actions", s.Actions),
		logx.Bool("ended", s.Ended),
		logx.Bool("timed_out", s.TimedOut),
	)
	return s
}

// Close despawns every actor and releases the journal and log sinks.
func (r *Runner) Close() error {
	r.world.Close()
	var errs []error
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.logs != nil {
		errs = append(errs, r.logs.Close())
	}
	return errors.Join(errs...)
}

package runner

import (
	"context"
	"fmt"
	"time"

	"phasebot/internal/config"
	"phasebot/internal/runtime/supervisor"
	logx "phasebot/pkg/logx"
	"phasebot/pkg/systemd"
)

// Realtime drives the world from a wall-clock ticker until every actor has
// ended, the maximum duration has passed or ctx is cancelled. Each tick
// advances logical time by the measured wall delta. Background loops (config
// watch, metrics endpoint, sd_notify watchdog, status cron) run under a
// supervisor and never touch the world; they signal the tick loop instead.
func (r *Runner) Realtime(ctx context.Context) (Summary, error) {
	if err := r.start(); err != nil {
		return Summary{}, err
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(r.log.With(logx.String("component", "supervisor"))))
	notify := systemd.NewNotifier(r.log)

	var reloads <-chan *config.Config
	if r.cfgm != nil {
		r.cfgm.SetLogger(r.log)
		sub := r.cfgm.Subscribe(4)
		defer r.cfgm.Unsubscribe(sub)
		reloads = sub
		sup.GoRestart("config.watch", r.cfgm.Watch)
	}
	if r.cfg.Metrics.Enabled {
		mcfg := mapMetricsConfig(r.cfg)
		sup.GoRestart("metrics.http", func(c context.Context) error {
			return r.metrics.Serve(c, mcfg, r.log)
		}, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}
	if wd := systemd.WatchdogInterval(); wd > 0 {
		sup.Go("systemd.watchdog", func(c context.Context) error { return notify.RunWatchdog(c, wd) })
	}

	statusCh := make(chan struct{}, 1)
	status := newStatusCron(r.log, func() {
		select {
		case statusCh <- struct{}{}:
		default:
		}
	})
	if err := status.Apply(r.cfg.Status); err != nil {
		r.log.Warn("status reports disabled", logx.Err(err))
	}

	defer func() {
		notify.Stopping()
		status.Stop()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			r.log.Warn("background loops stopped with error", logx.Err(err))
		}
	}()

	warn := r.log.Throttled(r.sim.OverrunWarnEvery, 1)
	ticker := time.NewTicker(r.sim.Tick)
	defer ticker.Stop()

	notify.Ready(fmt.Sprintf("running %s", r.plan.Name))
	r.log.Info("realtime loop started", logx.String("run", r.runID))

	last := time.Now()
	for !r.world.Done() && r.world.Now() < r.sim.MaxDuration {
		select {
		case <-ctx.Done():
			return r.finish(ctx), ctx.Err()

		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			start := time.Now()
			if err := r.step(ctx, delta); err != nil {
				return r.finish(ctx), err
			}
			if took := time.Since(start); took > r.sim.Tick {
				r.metrics.Overrun()
				warn.Warn("tick overrun",
					logx.Duration("took", took),
					logx.Duration("tick", r.sim.Tick),
				)
			}

		case <-statusCh:
			line := r.statusLine()
			notify.Status(line)
			r.log.Info("status", logx.String("summary", line), logx.Any("loops", sup.Snapshot()))

		case cfg, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			warn = r.applyConfig(cfg, status, warn)
		}
	}
	return r.finish(ctx), nil
}

// applyConfig applies the hot-reloadable sections: logging, status and the
// overrun warning rate. Everything else needs a restart.
func (r *Runner) applyConfig(cfg *config.Config, status *statusCron, warn logx.Logger) logx.Logger {
	changed, _ := config.SummarizeConfigChange(r.cfg, cfg)
	r.cfg = cfg

	if r.logs != nil {
		r.logs.Apply(mapLogConfig(cfg))
	}
	if err := status.Apply(cfg.Status); err != nil {
		r.log.Warn("invalid status config; keeping previous", logx.Err(err))
	}
	if sim, err := config.ResolveSimulation(cfg.Simulation); err == nil && sim.OverrunWarnEvery != r.sim.OverrunWarnEvery {
		r.sim.OverrunWarnEvery = sim.OverrunWarnEvery
		warn = r.log.Throttled(sim.OverrunWarnEvery, 1)
	}
	for _, s := range changed {
		switch s {
		case "storage", "metrics", "simulation":
			r.log.Warn("config section changed; applies on the next run", logx.String("section", s))
		}
	}
	r.log.Debug("config applied", logx.Any("changed", changed))
	return warn
}

func (r *Runner) statusLine() string {
	info, ok := r.world.Lookup(r.boss)
	if !ok {
		return fmt.Sprintf("t=%s actors=%d", r.world.Now().Truncate(time.Millisecond), len(r.world.Actors()))
	}
	return fmt.Sprintf("t=%s phase=%d actors=%d events=%d tasks=%d",
		r.world.Now().Truncate(time.Millisecond),
		info.Snapshot.Phase,
		len(r.world.Actors()),
		len(info.Snapshot.Events),
		info.Snapshot.Tasks,
	)
}

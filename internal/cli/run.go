package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"phasebot/internal/config"
	"phasebot/internal/eventbus"
	"phasebot/internal/runner"
	"phasebot/internal/storage"
)

// NewRunCmd runs the configured encounter.
func NewRunCmd(configFn func() string, outputFn func() *Output) *cobra.Command {
	var (
		realtime    bool
		quiet       bool
		timelineArg string
		seed        int64
		tick        string
		maxDuration string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the encounter",
		Long: "Run the encounter as fast as possible (default) or against the wall clock (--realtime).\n" +
			"Actions are printed as they happen unless --quiet is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			flags := cmd.Flags()

			r, err := runner.New(runner.Options{
				ConfigPath: configFn(),
				Override: func(c *config.Config) {
					if flags.Changed("realtime") {
						c.Simulation.Realtime = realtime
					}
					if flags.Changed("timeline") {
						c.Simulation.Timeline = timelineArg
					}
					if flags.Changed("seed") {
						c.Simulation.Seed = seed
					}
					if flags.Changed("tick") {
						c.Simulation.Tick = tick
					}
					if flags.Changed("max-duration") {
						c.Simulation.MaxDuration = maxDuration
					}
				},
			})
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var wg sync.WaitGroup
			stopPrinting := func() {}
			if !quiet {
				records, unsub := r.Subscribe(256, eventbus.Lossless)
				stopPrinting = func() {
					unsub()
					wg.Wait()
				}
				defer stopPrinting()
				wg.Add(1)
				go func() {
					defer wg.Done()
					for rec := range records {
						out.Line(formatRecord(rec), rec)
					}
				}()
			}

			var sum runner.Summary
			if r.Settings().Realtime {
				sum, err = r.Realtime(ctx)
			} else {
				sum, err = r.Simulate(ctx)
			}
			stopPrinting()
			if err != nil && ctx.Err() == nil {
				return err
			}

			out.Success(fmt.Sprintf("Run finished: %s", sum.RunID))
			out.Print(
				[]string{"RUN", "ELAPSED", "TICKS", "ACTIONS", "ENDED", "PHASES"},
				[][]string{{
					sum.RunID,
					sum.Elapsed.Truncate(time.Millisecond).String(),
					strconv.Itoa(sum.Ticks),
					strconv.Itoa(sum.Actions),
					strconv.FormatBool(sum.Ended),
					fmt.Sprint(sum.Phases),
				}},
				sum,
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&realtime, "realtime", false, "Drive the world from the wall clock")
	f.BoolVar(&quiet, "quiet", false, "Do not print actions")
	f.StringVar(&timelineArg, "timeline", "", "Encounter file (default: built-in)")
	f.Int64Var(&seed, "seed", 0, "Random seed")
	f.StringVar(&tick, "tick", "", "Tick length, e.g. 100ms")
	f.StringVar(&maxDuration, "max-duration", "", "Stop after this much logical time, e.g. 20m")
	return cmd
}

func formatRecord(rec storage.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%10s  #%-3d %-8s %-8s %s",
		rec.Logical.Truncate(time.Millisecond), rec.Actor, rec.Kind, rec.Type, rec.Name)
	if rec.Phase != 0 {
		fmt.Fprintf(&b, " phase=%d", rec.Phase)
	}
	if rec.Target != 0 {
		fmt.Fprintf(&b, " target=#%d", rec.Target)
	}
	if rec.Meta != "" {
		b.WriteString(" " + rec.Meta)
	}
	return b.String()
}

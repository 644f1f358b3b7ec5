package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"phasebot/internal/config"
	"phasebot/internal/runner"
	logx "phasebot/pkg/logx"
)

// NewJournalCmd lists journaled runs, or prints the actions of one run.
func NewJournalCmd(configFn func() string, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal [RUN_ID]",
		Short: "Inspect the action journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			path := configFn()
			if path == "" {
				return errors.New("journal needs --config with a storage section")
			}
			cfg, err := config.NewManager(path).Load()
			if err != nil {
				return err
			}
			store, err := runner.OpenStore(cfg, logx.Nop())
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("storage is disabled in the config")
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if len(args) == 0 {
				runs, err := store.Runs(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, len(runs))
				for i, r := range runs {
					rows[i] = []string{r.RunID, r.Started.Local().Format(time.DateTime), strconv.Itoa(r.Records)}
				}
				out.Print([]string{"RUN", "STARTED", "RECORDS"}, rows, runs)
				return nil
			}

			recs, err := store.Records(ctx, args[0])
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return fmt.Errorf("no records for run %s", args[0])
			}
			rows := make([][]string, len(recs))
			for i, r := range recs {
				rows[i] = []string{
					strconv.FormatInt(r.Seq, 10),
					r.Logical.Truncate(time.Millisecond).String(),
					strconv.FormatUint(uint64(r.Actor), 10),
					r.Kind,
					r.Type,
					r.Name,
					strconv.Itoa(r.Phase),
				}
			}
			out.Print([]string{"SEQ", "AT", "ACTOR", "KIND", "TYPE", "NAME", "PHASE"}, rows, recs)
			return nil
		},
	}
	return cmd
}

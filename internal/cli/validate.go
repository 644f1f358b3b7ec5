package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"phasebot/internal/config"
	"phasebot/internal/timeline"
)

type phaseSummary struct {
	ID     int      `json:"id"`
	Name   string   `json:"name"`
	Events []string `json:"events"`
}

type timelineSummary struct {
	Name   string         `json:"name"`
	Phases []phaseSummary `json:"phases"`
	Chains []string       `json:"chains"`
}

// NewValidateCmd compiles a timeline and reports every problem in it.
func NewValidateCmd(configFn func() string, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [TIMELINE]",
		Short: "Check an encounter timeline",
		Long: "Check an encounter timeline. Without an argument the timeline from the config\n" +
			"(or the built-in one) is checked.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			path, err := timelinePath(configFn(), args)
			if err != nil {
				return err
			}
			enc, err := timeline.Load(path)
			if err != nil {
				return err
			}
			plan, err := timeline.Compile(enc)
			if err != nil {
				return fmt.Errorf("%s is invalid:\n%w", describe(path), err)
			}

			sum := summarize(plan)
			rows := make([][]string, 0, len(sum.Phases))
			for _, ph := range sum.Phases {
				rows = append(rows, []string{strconv.Itoa(ph.ID), ph.Name, strings.Join(ph.Events, ",")})
			}
			out.Success(fmt.Sprintf("%s is valid (%s, %d chains)", describe(path), sum.Name, len(sum.Chains)))
			out.Print([]string{"PHASE", "NAME", "EVENTS"}, rows, sum)
			return nil
		},
	}
	return cmd
}

func timelinePath(cfgPath string, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if cfgPath == "" {
		return "", nil
	}
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cfg.Simulation.Timeline), nil
}

func describe(path string) string {
	if path == "" {
		return "built-in timeline"
	}
	return path
}

func summarize(plan *timeline.Plan) timelineSummary {
	sum := timelineSummary{Name: plan.Name}
	for _, ph := range plan.Phases {
		ps := phaseSummary{ID: int(ph.ID), Name: ph.Name}
		for _, ev := range ph.Events {
			ps.Events = append(ps.Events, ev.Name)
		}
		sum.Phases = append(sum.Phases, ps)
	}
	for name := range plan.Chains {
		sum.Chains = append(sum.Chains, name)
	}
	sort.Strings(sum.Chains)
	return sum
}

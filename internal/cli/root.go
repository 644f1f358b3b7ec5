package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd assembles the command tree. Output goes to w, messages to errW.
func NewRootCmd(version string, w, errW io.Writer) *cobra.Command {
	var (
		cfgPath    string
		jsonOutput bool
	)

	root := &cobra.Command{
		Use:           "phasebot",
		Short:         "Phase-scoped encounter scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(w)
	root.SetErr(errW)

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a JSON or YAML config")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	configFn := func() string { return cfgPath }
	outputFn := func() *Output { return NewOutput(jsonOutput, w, errW) }

	root.AddCommand(
		NewRunCmd(configFn, outputFn),
		NewValidateCmd(configFn, outputFn),
		NewJournalCmd(configFn, outputFn),
	)
	return root
}

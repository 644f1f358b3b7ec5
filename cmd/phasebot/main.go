// Command phasebot runs phase-scoped encounters.
//
// Usage:
//
//	phasebot [--config FILE] [--json] <command> [flags]
package main

import (
	"context"
	"fmt"
	"os"

	"phasebot/internal/cli"
)

// version is set with -ldflags at build time.
var version = "dev"

func main() {
	root := cli.NewRootCmd(version, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

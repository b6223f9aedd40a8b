// Command flowctl is the sole writer to a repository-local task-tracking
// store used by AI agent orchestration: epics decompose into
// dependency-ordered tasks, each progressing through a lifecycle gated by
// plan review, soft claims, dependency satisfaction, and completion review.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	jsonOutput bool
	rootCmd    = &cobra.Command{
		Use:     "flowctl",
		Short:   "Repository-local task tracker for AI agent orchestration",
		Version: version,
		Long: `flowctl tracks epics and tasks in .flow/, gating task completion on
dependency satisfaction and (optionally) external plan/completion review.
It is designed to be invoked by many short-lived, concurrent processes
across git worktrees of one repository.`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		emitError(err)
		os.Exit(exitCodeFor(err))
	}
}

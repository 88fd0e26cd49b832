// Package cli wires the command surface. Commands stay thin: they parse
// flags, assemble the engine and its collaborators, and render results;
// behavior lives in the internal packages.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/logging"
)

var (
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "ferrite",
	Short: "Declarative infrastructure as code",
	Long: `Ferrite compiles declarative PKL resource definitions into a dependency
graph, diffs the graph against the last applied state, and executes the
resulting plan against cloud and container providers.

Core workflow:
  ferrite init       Scaffold a new project
  ferrite plan       Show what would change
  ferrite apply      Make it so
  ferrite destroy    Tear everything down in reverse order`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel, noColor)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command under ctx. Cancelling the context
// stops scheduling new apply steps while in-flight operations finish.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log verbosity (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(taintCmd)
	rootCmd.AddCommand(untaintCmd)
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

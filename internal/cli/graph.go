package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/engine"
)

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Output the dependency graph in DOT format",
	Long: `Generates a visual representation of the resource dependency graph
in Graphviz DOT format. Pipe the output to 'dot' to generate an image:

  ferrite graph | dot -Tpng > graph.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(args)
	if err != nil {
		return err
	}

	reg, _, err := loadRegistry(cmd.Context(), wd, entryPoint, nil)
	if err != nil {
		return err
	}

	dag, err := engine.BuildDAG(reg.Resources())
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	fmt.Print(dag.ToDOT())
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/state"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new project",
	Long:  `Creates the state directory and a starter configuration file.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(ferriteDir("."), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", state.Dir, err)
	}

	mainPkl := "main.pkl"
	if _, err := os.Stat(mainPkl); os.IsNotExist(err) {
		content := `// Infrastructure definition evaluated by ferrite.
//
// Reference another resource's output with "ref://<type>/<name>/<attribute>".

resources {
  new {
    type = "null_resource"
    name = "hello"
    provider = "null"
    properties {
      ["message"] = "Hello from ferrite"
    }
  }
}

outputs {
  ["message"] = "ref://null_resource/hello/message"
}
`
		if err := os.WriteFile(mainPkl, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", mainPkl, err)
		}
		fmt.Printf("Created %s\n", mainPkl)
	}

	statePath := workspaceStatePath(".")
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		mgr := state.NewManager(statePath)
		if err := mgr.Write(cmd.Context(), ir.NewState("")); err != nil {
			return fmt.Errorf("failed to create state file: %w", err)
		}
		fmt.Printf("Created %s\n", statePath)
	}

	fmt.Println("\nFerrite initialized successfully!")
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit main.pkl to define your infrastructure")
	fmt.Println("  2. Run 'ferrite plan' to see what will be created")
	fmt.Println("  3. Run 'ferrite apply' to create your infrastructure")

	return nil
}

package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/eval"
	"github.com/ferrite-io/ferrite/internal/ir"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console for exploring state and config",
	Long: `Opens an interactive console for inspecting the current state and
configuration.

Available commands:
  state              Show current state summary
  state.resources    List all resources
  state.outputs      Show all outputs
  resource <addr>    Show a specific resource
  output <name>      Show a specific output
  config             Show current config summary
  help               Show available commands
  exit / quit        Exit the console`,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(wd)
	if err != nil {
		return err
	}
	currentState, err := backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	// Config is optional in the console; a broken one just shows as absent.
	cfg, _ := eval.NewEvaluator(wd).LoadConfig(ctx, entryPoint, nil)

	fmt.Println("Ferrite Console (type 'help' for commands, 'exit' to quit)")
	fmt.Printf("State: %d resources, serial %d\n", len(currentState.Resources), currentState.Serial)
	if cfg != nil {
		fmt.Printf("Config: %d resources defined\n", len(cfg.Resources))
	}
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("ferrite> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if done := runConsoleCommand(parts, currentState, cfg); done {
			return nil
		}
	}

	return scanner.Err()
}

// runConsoleCommand executes one console line, reporting whether the session
// should end.
func runConsoleCommand(parts []string, currentState *ir.State, cfg *ir.Config) bool {
	switch parts[0] {
	case "exit", "quit":
		fmt.Println("Bye!")
		return true

	case "help":
		fmt.Println("Available commands:")
		fmt.Println("  state              - Show state summary")
		fmt.Println("  state.resources    - List all resources in state")
		fmt.Println("  state.outputs      - Show all state outputs")
		fmt.Println("  resource <addr>    - Show a specific resource")
		fmt.Println("  output <name>      - Show a specific output")
		fmt.Println("  config             - Show config summary")
		fmt.Println("  config.resources   - List all resources in config")
		fmt.Println("  json <expression>  - Output as JSON")
		fmt.Println("  exit / quit        - Exit the console")

	case "state":
		fmt.Printf("Version:   %d\n", currentState.Version)
		fmt.Printf("Serial:    %d\n", currentState.Serial)
		fmt.Printf("Lineage:   %s\n", currentState.Lineage)
		fmt.Printf("Resources: %d\n", len(currentState.Resources))
		fmt.Printf("Outputs:   %d\n", len(currentState.Outputs))

	case "state.resources":
		if len(currentState.Resources) == 0 {
			fmt.Println("No resources in state.")
			break
		}
		for _, res := range currentState.Resources {
			fmt.Printf("  %s (provider: %s)\n", res.Addr(), res.Provider)
		}

	case "state.outputs":
		if len(currentState.Outputs) == 0 {
			fmt.Println("No outputs.")
			break
		}
		renderOutputs(currentState.Outputs)

	case "resource":
		if len(parts) < 2 {
			fmt.Println("Usage: resource <address>")
			break
		}
		res, ok := currentState.Resource(parts[1])
		if !ok {
			fmt.Printf("Resource %s not found in state.\n", parts[1])
			break
		}
		printJSON(res)

	case "output":
		if len(parts) < 2 {
			fmt.Println("Usage: output <name>")
			break
		}
		if val, ok := currentState.Outputs[parts[1]]; ok {
			fmt.Printf("%s = %v\n", parts[1], val)
		} else {
			fmt.Printf("Output %s not found.\n", parts[1])
		}

	case "config":
		if cfg == nil {
			fmt.Println("No configuration loaded.")
			break
		}
		fmt.Printf("Resources: %d\n", len(cfg.Resources))
		fmt.Printf("Outputs:   %d\n", len(cfg.Outputs))

	case "config.resources":
		switch {
		case cfg == nil:
			fmt.Println("No configuration loaded.")
		case len(cfg.Resources) == 0:
			fmt.Println("No resources in config.")
		default:
			for _, res := range cfg.Resources {
				fmt.Printf("  %s (provider: %s)\n", res.Addr(), res.Provider)
			}
		}

	case "json":
		if len(parts) < 2 {
			fmt.Println("Usage: json <expression>")
			break
		}
		switch parts[1] {
		case "state":
			printJSON(currentState)
		case "state.resources":
			printJSON(currentState.Resources)
		case "state.outputs":
			printJSON(currentState.Outputs)
		default:
			fmt.Printf("Unknown expression: %s\n", parts[1])
		}

	default:
		fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
	}
	return false
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Cannot render as JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

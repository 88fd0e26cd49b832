package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/engine"
)

var (
	planOutFile    string
	planTargets    []string
	planProperties map[string]string
)

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Generate an execution plan",
	Long: `Generates an execution plan showing what actions ferrite will take to
reach the desired state defined in your configuration.

The plan shows:
  • Resources to be created
  • Resources to be updated (with per-attribute diff)
  • Resources to be replaced or deleted`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write the plan as JSON to a file")
	planCmd.Flags().StringArrayVar(&planTargets, "target", nil, "Limit planning to a resource address (repeatable)")
	planCmd.Flags().StringToStringVarP(&planProperties, "prop", "D", nil, "Set external properties (format: key=value)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fmt.Print("Loading configuration... ")
	reg, cfg, err := loadRegistry(ctx, wd, entryPoint, planProperties)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	providers := newProviderRegistry()
	if err := loadConfigProviders(providers, cfg); err != nil {
		return err
	}

	backend, err := openBackend(wd)
	if err != nil {
		return err
	}
	currentState, err := backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if err := loadStateProviders(providers, currentState); err != nil {
		return err
	}

	fmt.Print("Calculating plan... ")
	eng := engine.NewEngine(providers)
	plan, err := eng.CreatePlanWithTargets(ctx, reg, currentState, planTargets)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Println("OK")

	if plan.Summary.HasChanges() {
		fmt.Println("\nFerrite will perform the following actions:")
		renderPlanChanges(plan)
		renderPlanSummary(plan)
	} else {
		fmt.Println("\nNo changes. Infrastructure is up-to-date.")
	}

	if planOutFile != "" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize plan: %w", err)
		}
		if err := os.WriteFile(planOutFile, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write plan file: %w", err)
		}
		fmt.Printf("\nPlan written to %s\n", planOutFile)
	}

	return nil
}

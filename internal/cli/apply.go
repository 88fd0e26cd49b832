package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/engine"
	"github.com/ferrite-io/ferrite/internal/ir"
)

var (
	applyAutoApprove bool
	applyParallelism int
	applyTargets     []string
	applyProperties  map[string]string
)

var applyCmd = &cobra.Command{
	Use:   "apply [path]",
	Short: "Apply a configuration",
	Long: `Builds or changes infrastructure according to the configuration.

Independent resources are applied in parallel; resources linked by a
reference wait for their dependencies. A failure blocks only the failed
resource's dependents, everything else keeps going, and whatever was
applied is recorded in state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of the plan")
	applyCmd.Flags().IntVar(&applyParallelism, "parallelism", engine.DefaultParallelism, "Maximum number of concurrent provider operations")
	applyCmd.Flags().StringArrayVar(&applyTargets, "target", nil, "Limit the run to a resource address (repeatable)")
	applyCmd.Flags().StringToStringVarP(&applyProperties, "prop", "D", nil, "Set external properties (format: key=value)")
}

func runApply(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fmt.Print("Loading configuration... ")
	reg, cfg, err := loadRegistry(ctx, wd, entryPoint, applyProperties)
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
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	currentState, err := backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if err := loadStateProviders(providers, currentState); err != nil {
		return err
	}

	fmt.Print("Calculating plan... ")
	eng := engine.NewEngine(providers)
	eng.Parallelism = applyParallelism
	plan, err := eng.CreatePlanWithTargets(ctx, reg, currentState, applyTargets)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Println("OK")

	if !plan.Summary.HasChanges() {
		fmt.Println("No changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("\nFerrite will perform the following actions:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !applyAutoApprove {
		if !confirm("\nDo you want to perform these actions?") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	mutations := plan.Summary.Create + plan.Summary.Update + plan.Summary.Replace + plan.Summary.Delete
	fmt.Printf("\nApplying %d changes...\n\n", mutations)

	newState, result, applyErr := eng.ApplyPlanWithCallback(ctx, plan, currentState, applyProgress)

	// The new state is written even when the run failed: resources applied
	// before the failure are real and must not be forgotten.
	if newState != nil {
		if werr := backend.Write(ctx, newState); werr != nil {
			applyErr = errors.Join(applyErr, fmt.Errorf("failed to write state: %w", werr))
		}
	}

	entry := AuditEntry{
		Operation: "apply",
		Changes:   auditChanges(plan),
		Summary:   resultSummary(result),
	}
	if applyErr != nil {
		entry.Error = applyErr.Error()
	}
	_ = writeAuditLog(wd, entry)

	if applyErr != nil {
		return applyErr
	}

	var added, changed, destroyed int
	for _, res := range result.Results {
		if res.Status != engine.StatusApplied {
			continue
		}
		switch res.Action {
		case ir.ActionCreate:
			added++
		case ir.ActionUpdate:
			changed++
		case ir.ActionReplace:
			added++
			destroyed++
		case ir.ActionDelete:
			destroyed++
		}
	}
	fmt.Printf("\nApply complete! Resources: %d added, %d changed, %d destroyed.\n", added, changed, destroyed)

	if len(newState.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		renderOutputs(newState.Outputs)
	}

	return nil
}

// applyProgress prints one line per step transition.
func applyProgress(event engine.ApplyEvent) {
	switch event.Status {
	case "started":
		fmt.Printf("%s: %s...\n", event.Address, applyingVerb(event.Action))
	case "completed":
		fmt.Printf("%s: %s complete after %s\n", event.Address, appliedNoun(event.Action), event.Duration.Round(time.Second))
	case "failed":
		fmt.Printf("%s%s: Failed: %v%s\n", colorize(ansiRed), event.Address, event.Error, colorize(ansiReset))
	case "blocked":
		fmt.Printf("%s%s: Blocked by an upstream failure%s\n", colorize(ansiYellow), event.Address, colorize(ansiReset))
	case "cancelled":
		fmt.Printf("%s: Cancelled\n", event.Address)
	}
}

func applyingVerb(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "Creating"
	case ir.ActionUpdate:
		return "Modifying"
	case ir.ActionReplace:
		return "Replacing"
	case ir.ActionDelete:
		return "Destroying"
	default:
		return "Applying"
	}
}

func appliedNoun(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "Creation"
	case ir.ActionUpdate:
		return "Modification"
	case ir.ActionReplace:
		return "Replacement"
	case ir.ActionDelete:
		return "Destruction"
	default:
		return "Step"
	}
}

func resultSummary(result *engine.ApplyResult) map[string]int {
	if result == nil {
		return nil
	}
	return map[string]int{
		"applied":   len(result.Applied()),
		"failed":    len(result.Failed()),
		"blocked":   len(result.Blocked()),
		"skipped":   len(result.Skipped()),
		"cancelled": len(result.Cancelled()),
	}
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/engine"
)

var (
	destroyAutoApprove bool
	destroyTargets     []string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [path]",
	Short: "Destroy managed infrastructure",
	Long: `Deletes every resource tracked in the state file, dependents before
their dependencies. With --target, only the named resources and whatever
depends on them are destroyed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval of the destroy plan")
	destroyCmd.Flags().StringArrayVar(&destroyTargets, "target", nil, "Limit destruction to a resource address (repeatable)")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// The configuration is optional here: lifecycle guards like
	// preventDestroy live in it, but state alone is enough to tear down.
	reg, _, err := loadRegistry(ctx, wd, entryPoint, nil)
	if err != nil {
		reg = nil
	}

	providers := newProviderRegistry()
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
	if len(currentState.Resources) == 0 {
		fmt.Println("Nothing to destroy. State is empty.")
		return nil
	}
	if err := loadStateProviders(providers, currentState); err != nil {
		return err
	}

	eng := engine.NewEngine(providers)
	plan, err := eng.CreateDestroyPlan(ctx, reg, currentState, destroyTargets)
	if err != nil {
		return fmt.Errorf("destroy plan failed: %w", err)
	}
	if !plan.Summary.HasChanges() {
		fmt.Println("Nothing to destroy.")
		return nil
	}

	fmt.Println("Ferrite will destroy the following resources:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !destroyAutoApprove {
		if !confirm("\nDo you really want to destroy these resources?") {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	fmt.Printf("\nDestroying %d resources...\n\n", plan.Summary.Delete)

	newState, result, destroyErr := eng.ApplyPlanWithCallback(ctx, plan, currentState, applyProgress)

	if newState != nil {
		if werr := backend.Write(ctx, newState); werr != nil {
			destroyErr = errors.Join(destroyErr, fmt.Errorf("failed to write state: %w", werr))
		}
	}

	entry := AuditEntry{
		Operation: "destroy",
		Changes:   auditChanges(plan),
		Summary:   resultSummary(result),
	}
	if destroyErr != nil {
		entry.Error = destroyErr.Error()
	}
	_ = writeAuditLog(wd, entry)

	if destroyErr != nil {
		return destroyErr
	}

	fmt.Printf("\nDestroy complete! Resources: %d destroyed.\n", len(result.Applied()))
	return nil
}

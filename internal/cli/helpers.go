package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ferrite-io/ferrite/internal/engine"
	"github.com/ferrite-io/ferrite/internal/eval"
	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/registry"
	"github.com/ferrite-io/ferrite/internal/state"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// colorize returns the ANSI code, or nothing when color is disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// configError marks configuration problems detected before any provider was
// called, so main can exit with a distinct code.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// ExitCode maps an error from Execute to a process exit code: 0 for success,
// 2 for invalid configuration, 1 for everything else including partial
// applies.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		evalErr     *configError
		dupErr      *registry.DuplicateResourceError
		unknownErr  *registry.UnknownResourceError
		refErr      *engine.UnresolvedReferenceError
		cycleErr    *engine.CyclicDependencyError
		validateErr *engine.ValidationError
	)
	switch {
	case errors.As(err, &evalErr),
		errors.As(err, &dupErr),
		errors.As(err, &unknownErr),
		errors.As(err, &refErr),
		errors.As(err, &cycleErr),
		errors.As(err, &validateErr):
		return 2
	}
	return 1
}

// resolveProject turns the optional positional argument into a project
// directory and configuration entry point. The argument may name either a
// directory or a single .pkl file; absent, the working directory and
// main.pkl are assumed. The entry point comes back absolute so evaluation
// does not depend on where the process was started.
func resolveProject(args []string) (string, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	entry := "main.pkl"

	if len(args) > 0 {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
		}
		if info.IsDir() {
			wd = absPath
		} else {
			wd = filepath.Dir(absPath)
			entry = filepath.Base(absPath)
		}
	}
	return wd, filepath.Join(wd, entry), nil
}

// loadRegistry evaluates the configuration and registers every resource,
// count and forEach declarations already expanded into instances.
func loadRegistry(ctx context.Context, wd, entryPoint string, properties map[string]string) (*registry.Registry, *ir.Config, error) {
	evaluator := eval.NewEvaluator(wd)
	cfg, err := evaluator.LoadConfig(ctx, entryPoint, properties)
	if err != nil {
		return nil, nil, &configError{fmt.Errorf("failed to load config: %w", err)}
	}

	cfg.Resources = engine.ExpandForEach(cfg.Resources)

	reg, err := registry.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return reg, cfg, nil
}

// openBackend picks the state backend for a project: the local manager by
// default, or whatever .ferrite/backend.json configures.
func openBackend(wd string) (state.Backend, error) {
	cfg, err := state.LoadBackendConfig(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.Type == "" || cfg.Type == "local" {
		return state.NewManager(workspaceStatePath(wd)), nil
	}
	return state.NewBackend(cfg)
}

// confirm prompts on stdout and reads a single-word answer.
func confirm(prompt string) bool {
	fmt.Printf("%s (y/n): ", prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}

func actionSymbol(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "+"
	case ir.ActionDelete:
		return "-"
	case ir.ActionReplace:
		return "-/+"
	case ir.ActionNoOp:
		return " "
	default:
		return "~"
	}
}

func actionColor(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return colorize(ansiGreen)
	case ir.ActionDelete:
		return colorize(ansiRed)
	case ir.ActionUpdate, ir.ActionReplace:
		return colorize(ansiYellow)
	default:
		return ""
	}
}

func actionVerb(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "created"
	case ir.ActionUpdate:
		return "updated"
	case ir.ActionReplace:
		return "replaced"
	case ir.ActionDelete:
		return "destroyed"
	default:
		return "left unchanged"
	}
}

// renderPlanChanges prints the change list in configuration-like syntax.
// No-op steps are omitted; they only show up in the summary counts.
func renderPlanChanges(plan *ir.Plan) {
	for _, change := range plan.Changes {
		if change.Action == ir.ActionNoOp {
			continue
		}

		color := actionColor(change.Action)
		reset := colorize(ansiReset)

		var resourceType, resourceName string
		switch {
		case change.Desired != nil:
			resourceType = change.Desired.Type
			resourceName = change.Desired.Name
		case change.Prior != nil:
			resourceType = change.Prior.Type
			resourceName = change.Prior.Name
		}

		fmt.Printf("\n%s  # %s will be %s%s\n", color, change.Address, actionVerb(change.Action), reset)
		fmt.Printf("%s  %s resource %q %q {%s\n", color, actionSymbol(change.Action), resourceType, resourceName, reset)
		renderPropertyDiff(change.Diff)
		fmt.Printf("%s  }%s\n", color, reset)
	}
}

// renderPropertyDiff prints per-attribute changes in key order.
func renderPropertyDiff(diff map[string]*ir.PropertyDiff) {
	keys := make([]string, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		d := diff[key]
		switch d.Action {
		case "create":
			fmt.Printf("%s      + %s = %s%s\n", colorize(ansiGreen), key, formatValue(d.After), colorize(ansiReset))
		case "delete":
			fmt.Printf("%s      - %s = %s%s\n", colorize(ansiRed), key, formatValue(d.Before), colorize(ansiReset))
		case "update":
			note := ""
			if d.Destructive {
				note = " # forces replacement"
			}
			fmt.Printf("%s      ~ %s = %s -> %s%s%s\n", colorize(ansiYellow), key, formatValue(d.Before), formatValue(d.After), note, colorize(ansiReset))
		}
	}
}

// formatValue returns a human-readable representation of a property value.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderPlanSummary prints the plan summary counts.
func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create:  %d\n", plan.Summary.Create)
	fmt.Printf("  Update:  %d\n", plan.Summary.Update)
	fmt.Printf("  Replace: %d\n", plan.Summary.Replace)
	fmt.Printf("  Delete:  %d\n", plan.Summary.Delete)
	fmt.Printf("  NoOp:    %d\n", plan.Summary.NoOp)
}

// renderOutputs prints output values in name order.
func renderOutputs(outputs map[string]any) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s = %s\n", name, formatValue(outputs[name]))
	}
}

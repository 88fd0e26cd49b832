package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Manage resource state",
	Long:  `Commands for inspecting and surgically modifying the state file.`,
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources in state",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show attributes of a single resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var stateMvCmd = &cobra.Command{
	Use:   "mv <source> <destination>",
	Short: "Move a resource to a new address",
	Args:  cobra.ExactArgs(2),
	RunE:  runStateMv,
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <address>",
	Short: "Remove a resource from state (does not destroy it)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateRm,
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateMvCmd)
	stateCmd.AddCommand(stateRmCmd)
}

func openProjectBackend() (state.Backend, error) {
	wd, _, err := resolveProject(nil)
	if err != nil {
		return nil, err
	}
	return openBackend(wd)
}

// parseAddress splits a "type.name" resource address.
func parseAddress(addr string) (resourceType, name string, err error) {
	parts := strings.SplitN(addr, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid resource address %q, expected format type.name", addr)
	}
	return parts[0], parts[1], nil
}

func runStateList(cmd *cobra.Command, args []string) error {
	backend, err := openProjectBackend()
	if err != nil {
		return err
	}
	s, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	if len(s.Resources) == 0 {
		fmt.Println("No resources in state.")
		return nil
	}

	fmt.Printf("State version: %d, serial: %d, lineage: %s\n\n", s.Version, s.Serial, s.Lineage)
	for _, res := range s.Resources {
		fmt.Printf("  %s (provider: %s)\n", res.Addr(), res.Provider)
	}
	fmt.Printf("\nTotal: %d resource(s)\n", len(s.Resources))

	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	backend, err := openProjectBackend()
	if err != nil {
		return err
	}
	s, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	res, ok := s.Resource(args[0])
	if !ok {
		return fmt.Errorf("resource %s not found in state", args[0])
	}

	fmt.Printf("# %s\n", res.Addr())
	fmt.Printf("  provider = %s\n", res.Provider)
	fmt.Printf("  type     = %s\n", res.Type)
	fmt.Printf("  name     = %s\n", res.Name)
	if res.ID != "" {
		fmt.Printf("  id       = %s\n", res.ID)
	}
	if res.Tainted {
		fmt.Println("  tainted  = true")
	}

	printSection := func(title string, attrs map[string]any) {
		if len(attrs) == 0 {
			return
		}
		fmt.Printf("\n  %s:\n", title)
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s = %s\n", k, formatValue(attrs[k]))
		}
	}
	printSection("Inputs", res.Inputs)
	printSection("Outputs", res.Outputs)

	if res.InputsHash != "" {
		fmt.Printf("\n  inputs_hash = %s\n", res.InputsHash)
	}
	if res.LastApplied != "" {
		fmt.Printf("  last_applied = %s\n", res.LastApplied)
	}

	return nil
}

func runStateMv(cmd *cobra.Command, args []string) error {
	backend, err := openProjectBackend()
	if err != nil {
		return err
	}
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	s, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	src, dst := args[0], args[1]
	newType, newName, err := parseAddress(dst)
	if err != nil {
		return err
	}
	if _, exists := s.Resource(dst); exists {
		return fmt.Errorf("destination %s already exists in state", dst)
	}

	res, ok := s.Resource(src)
	if !ok {
		return fmt.Errorf("resource %s not found in state", src)
	}
	res.Type = newType
	res.Name = newName
	s.Serial++

	if err := backend.Write(cmd.Context(), s); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	_ = writeAuditLog(".", AuditEntry{
		Operation: "state.mv",
		Changes:   []AuditChange{{Address: src, Action: "MOVE"}, {Address: dst, Action: "MOVE"}},
	})

	fmt.Printf("Moved %s to %s\n", src, dst)
	return nil
}

func runStateRm(cmd *cobra.Command, args []string) error {
	backend, err := openProjectBackend()
	if err != nil {
		return err
	}
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	s, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	target := args[0]
	newResources := make([]*ir.ResourceState, 0, len(s.Resources))
	found := false
	for _, res := range s.Resources {
		if res.Addr() == target {
			found = true
			continue
		}
		newResources = append(newResources, res)
	}
	if !found {
		return fmt.Errorf("resource %s not found in state", target)
	}

	s.Resources = newResources
	s.Serial++
	if err := backend.Write(cmd.Context(), s); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	_ = writeAuditLog(".", AuditEntry{
		Operation: "state.rm",
		Changes:   []AuditChange{{Address: target, Action: "FORGET"}},
	})

	fmt.Printf("Removed %s from state (resource was NOT destroyed)\n", target)
	return nil
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/state"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage workspaces",
	Long: `Workspaces keep multiple distinct sets of infrastructure for the same
configuration, each with its own state file. The default workspace is
called "default".`,
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE:  runWorkspaceList,
}

var workspaceNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceNew,
}

var workspaceSelectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Switch to another workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceSelect,
}

var workspaceDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceDelete,
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current workspace name",
	RunE:  runWorkspaceShow,
}

func init() {
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceNewCmd)
	workspaceCmd.AddCommand(workspaceSelectCmd)
	workspaceCmd.AddCommand(workspaceDeleteCmd)
	workspaceCmd.AddCommand(workspaceShowCmd)
}

func ferriteDir(root string) string {
	return filepath.Join(root, state.Dir)
}

func workspaceFile(root string) string {
	return filepath.Join(ferriteDir(root), "workspace")
}

// currentWorkspace reads the selected workspace under root. A missing or
// empty marker file means the default workspace.
func currentWorkspace(root string) string {
	data, err := os.ReadFile(workspaceFile(root))
	if err != nil {
		return "default"
	}
	ws := strings.TrimSpace(string(data))
	if ws == "" {
		return "default"
	}
	return ws
}

// workspaceStatePath returns the state file path for the workspace currently
// selected under root.
func workspaceStatePath(root string) string {
	return state.PathFor(root, currentWorkspace(root))
}

func listWorkspaces(root string) ([]string, error) {
	entries, err := os.ReadDir(ferriteDir(root))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{"default"}, nil
		}
		return nil, fmt.Errorf("failed to read %s directory: %w", state.Dir, err)
	}

	workspaces := []string{"default"}
	seen := map[string]bool{"default": true}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "state.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ws := strings.TrimPrefix(name, "state.")
		ws = strings.TrimSuffix(ws, ".json")
		if ws != "" && !seen[ws] {
			workspaces = append(workspaces, ws)
			seen[ws] = true
		}
	}

	return workspaces, nil
}

func runWorkspaceList(cmd *cobra.Command, args []string) error {
	workspaces, err := listWorkspaces(".")
	if err != nil {
		return err
	}

	current := currentWorkspace(".")
	for _, ws := range workspaces {
		if ws == current {
			fmt.Printf("* %s\n", ws)
		} else {
			fmt.Printf("  %s\n", ws)
		}
	}
	return nil
}

func runWorkspaceNew(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == "default" {
		return fmt.Errorf("workspace %q always exists", name)
	}

	statePath := state.PathFor(".", name)
	if _, err := os.Stat(statePath); err == nil {
		return fmt.Errorf("workspace %q already exists", name)
	}

	// Writing through the manager mints the lineage and creates .ferrite.
	mgr := state.NewManager(statePath)
	if err := mgr.Write(cmd.Context(), ir.NewState("")); err != nil {
		return fmt.Errorf("failed to create workspace state: %w", err)
	}

	if err := os.WriteFile(workspaceFile("."), []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to switch workspace: %w", err)
	}

	fmt.Printf("Created and switched to workspace %q\n", name)
	return nil
}

func runWorkspaceSelect(cmd *cobra.Command, args []string) error {
	name := args[0]

	if name != "default" {
		if _, err := os.Stat(state.PathFor(".", name)); os.IsNotExist(err) {
			return fmt.Errorf("workspace %q does not exist", name)
		}
	}

	if err := os.MkdirAll(ferriteDir("."), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", state.Dir, err)
	}
	if err := os.WriteFile(workspaceFile("."), []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to switch workspace: %w", err)
	}

	fmt.Printf("Switched to workspace %q\n", name)
	return nil
}

func runWorkspaceDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == "default" {
		return fmt.Errorf("cannot delete the default workspace")
	}
	if currentWorkspace(".") == name {
		return fmt.Errorf("cannot delete the active workspace %q, switch to another workspace first", name)
	}

	statePath := state.PathFor(".", name)
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		return fmt.Errorf("workspace %q does not exist", name)
	}

	if err := os.Remove(statePath); err != nil {
		return fmt.Errorf("failed to delete workspace state: %w", err)
	}
	os.Remove(statePath + ".lock")

	fmt.Printf("Deleted workspace %q\n", name)
	return nil
}

func runWorkspaceShow(cmd *cobra.Command, args []string) error {
	fmt.Println(currentWorkspace("."))
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/provider"
)

var importProvider string

var importCmd = &cobra.Command{
	Use:   "import <address> <id>",
	Short: "Import existing infrastructure into state",
	Long: `Imports an existing resource into the state file under the given
address. The resource's provider is looked up from the resource type; use
--provider to override.

This does not generate configuration. It only records the resource in
state so ferrite manages it going forward; write the matching PKL
declaration yourself, then run 'ferrite plan' to reconcile.

Example:
  ferrite import container.web a3f9c2e1b4d8`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importProvider, "provider", "", "Provider to import through (default: inferred from the resource type)")
}

func runImport(cmd *cobra.Command, args []string) error {
	addr, id := args[0], args[1]
	resourceType, resourceName, err := parseAddress(addr)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	providers := newProviderRegistry()
	var prov provider.Provider
	if importProvider != "" {
		if err := providers.LoadProvider(importProvider); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", importProvider, err)
		}
		if prov, err = providers.Get(importProvider); err != nil {
			return err
		}
	} else {
		if prov, err = providerForKind(providers, resourceType); err != nil {
			return err
		}
	}
	reader, ok := prov.(provider.Reader)
	if !ok {
		return fmt.Errorf("provider %s cannot read live state, import is not supported", prov.Name())
	}

	backend, err := openProjectBackend()
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
	if _, exists := currentState.Resource(addr); exists {
		return fmt.Errorf("resource %s already exists in state", addr)
	}

	fmt.Printf("Importing %s (id: %s)...\n", addr, id)
	resp, err := reader.Read(ctx, &provider.ReadRequest{
		Kind: resourceType,
		Name: resourceName,
		ID:   id,
	})
	if err != nil {
		return fmt.Errorf("failed to read resource from provider: %w", err)
	}
	if !resp.Exists {
		return fmt.Errorf("resource %s with id %s does not exist", resourceType, id)
	}

	currentState.SetResource(&ir.ResourceState{
		Type:     resourceType,
		Name:     resourceName,
		Provider: prov.Name(),
		ID:       id,
		Inputs:   map[string]any{},
		Outputs:  resp.Outputs,
	})
	currentState.Serial++

	if err := backend.Write(ctx, currentState); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	_ = writeAuditLog(".", AuditEntry{
		Operation: "import",
		Changes:   []AuditChange{{Address: addr, Action: "IMPORT"}},
	})

	fmt.Printf("Successfully imported %s\n", addr)
	fmt.Println("Note: write the corresponding PKL configuration for this resource.")
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/provider"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Update state to match real infrastructure",
	Long: `Reads the live state of every managed resource from its provider and
updates the state file to reflect actual infrastructure.

This detects drift between what ferrite recorded and what actually
exists. Resources deleted out-of-band are dropped from state.`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	wd, _, err := resolveProject(nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(wd)
	if err != nil {
		return err
	}
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	fmt.Print("Reading state... ")
	currentState, err := backend.Read(ctx)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("failed to read state: %w", err)
	}
	fmt.Println("OK")

	if len(currentState.Resources) == 0 {
		fmt.Println("No resources to refresh.")
		return nil
	}

	providers := newProviderRegistry()
	if err := loadStateProviders(providers, currentState); err != nil {
		return err
	}

	fmt.Printf("Refreshing %d resource(s)...\n\n", len(currentState.Resources))

	drifted := 0
	deleted := 0
	var gone []string

	for _, res := range currentState.Resources {
		addr := res.Addr()
		prov, err := providers.Get(res.Provider)
		if err != nil {
			fmt.Printf("  %s: SKIP (provider %s not available)\n", addr, res.Provider)
			continue
		}
		reader, ok := prov.(provider.Reader)
		if !ok {
			fmt.Printf("  %s: SKIP (provider %s cannot read live state)\n", addr, res.Provider)
			continue
		}

		resp, err := reader.Read(ctx, &provider.ReadRequest{
			Kind:       res.Type,
			Name:       res.Name,
			ID:         res.ID,
			Attributes: res.Inputs,
		})
		if err != nil {
			fmt.Printf("  %s: ERROR (%v)\n", addr, err)
			continue
		}

		if !resp.Exists {
			fmt.Printf("  %s%s: DELETED (no longer exists in provider)%s\n", colorize(ansiRed), addr, colorize(ansiReset))
			gone = append(gone, addr)
			deleted++
			continue
		}

		// Loose comparison: state outputs went through JSON, so numeric
		// types differ from what the provider hands back live.
		if len(resp.Outputs) > 0 && fmt.Sprintf("%v", resp.Outputs) != fmt.Sprintf("%v", res.Outputs) {
			fmt.Printf("  %s%s: DRIFTED (state updated)%s\n", colorize(ansiYellow), addr, colorize(ansiReset))
			res.Outputs = resp.Outputs
			drifted++
		} else {
			fmt.Printf("  %s: OK\n", addr)
		}
	}

	for _, addr := range gone {
		currentState.RemoveResource(addr)
	}

	if drifted > 0 || deleted > 0 {
		currentState.Serial++
		if err := backend.Write(ctx, currentState); err != nil {
			return fmt.Errorf("failed to write state: %w", err)
		}
	}

	fmt.Printf("\nRefresh complete. %d drifted, %d deleted.\n", drifted, deleted)
	return nil
}

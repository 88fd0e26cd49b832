package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/engine"
	"github.com/ferrite-io/ferrite/internal/provider"
)

var validateProperties map[string]string

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate the configuration",
	Long: `Checks that the configuration evaluates, that resource addresses are
unique, that every reference resolves without cycles, and that each
provider accepts its resources' attributes. No provider is ever asked to
change anything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringToStringVarP(&validateProperties, "prop", "D", nil, "Set external properties (format: key=value)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fmt.Print("Validating configuration... ")

	reg, cfg, err := loadRegistry(ctx, wd, entryPoint, validateProperties)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}

	if _, err := engine.BuildDAG(reg.Resources()); err != nil {
		fmt.Println("FAILED")
		return err
	}

	providers := newProviderRegistry()
	if err := loadConfigProviders(providers, cfg); err != nil {
		fmt.Println("FAILED")
		return err
	}
	for _, res := range reg.Resources() {
		prov, err := providers.Get(res.Provider)
		if err != nil {
			fmt.Println("FAILED")
			return err
		}
		if err := prov.Validate(ctx, &provider.ValidateRequest{
			Kind:       res.Type,
			Name:       res.Name,
			Attributes: res.Properties,
		}); err != nil {
			fmt.Println("FAILED")
			return &engine.ValidationError{Address: res.Addr(), Err: err}
		}
	}

	fmt.Println("OK")
	fmt.Printf("Configuration is valid: %d resources, %d outputs.\n", reg.Len(), len(cfg.Outputs))
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/state"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate-from-terraform [tf-dir]",
	Short: "Convert Terraform state to ferrite state",
	Long: `Reads a Terraform state file (terraform.tfstate) and converts it into
a ferrite state file for the current workspace.

The conversion is best effort: resource attributes become outputs and
inputs start empty, so the first plan reports updates until the PKL
configuration matches reality. Existing resources are never recreated.

Example:
  ferrite migrate-from-terraform .
  ferrite migrate-from-terraform /path/to/terraform/project`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

// terraformState mirrors the subset of the Terraform state format the
// conversion needs.
type terraformState struct {
	Version          int                        `json:"version"`
	TerraformVersion string                     `json:"terraform_version"`
	Serial           int                        `json:"serial"`
	Lineage          string                     `json:"lineage"`
	Outputs          map[string]terraformOutput `json:"outputs"`
	Resources        []terraformResource        `json:"resources"`
}

type terraformOutput struct {
	Value any `json:"value"`
}

type terraformResource struct {
	Module    string              `json:"module"`
	Mode      string              `json:"mode"` // "managed" or "data"
	Type      string              `json:"type"`
	Name      string              `json:"name"`
	Provider  string              `json:"provider"`
	Instances []terraformInstance `json:"instances"`
}

type terraformInstance struct {
	IndexKey     any            `json:"index_key"`
	Attributes   map[string]any `json:"attributes"`
	Dependencies []string       `json:"dependencies"`
}

func runMigrate(cmd *cobra.Command, args []string) error {
	tfDir := "."
	if len(args) > 0 {
		tfDir = args[0]
	}

	statePath := filepath.Join(tfDir, "terraform.tfstate")
	data, err := os.ReadFile(statePath)
	if err != nil {
		return fmt.Errorf("failed to read terraform state from %s: %w", statePath, err)
	}

	var tfState terraformState
	if err := json.Unmarshal(data, &tfState); err != nil {
		return fmt.Errorf("failed to parse terraform state: %w", err)
	}

	fmt.Printf("Found Terraform state: version=%d serial=%d lineage=%s\n",
		tfState.Version, tfState.Serial, tfState.Lineage)
	fmt.Printf("Resources: %d\n", len(tfState.Resources))

	out := &ir.State{
		Version: ir.StateVersion,
		Serial:  tfState.Serial,
		Lineage: tfState.Lineage,
		Outputs: map[string]any{},
	}
	for name, output := range tfState.Outputs {
		out.Outputs[name] = output.Value
	}

	converted := 0
	for _, res := range tfState.Resources {
		if res.Mode != "managed" {
			continue
		}

		providerName := mapTFProvider(res.Provider)
		kind := mapTFResourceType(res.Type)

		for _, inst := range res.Instances {
			name := res.Name
			// Indexed instances get the same bracketed names expansion uses.
			switch key := inst.IndexKey.(type) {
			case string:
				name = fmt.Sprintf("%s[%q]", res.Name, key)
			case float64:
				name = fmt.Sprintf("%s[%d]", res.Name, int(key))
			}

			var id string
			if v, ok := inst.Attributes["id"]; ok {
				id = fmt.Sprintf("%v", v)
			}

			out.SetResource(&ir.ResourceState{
				Type:     kind,
				Name:     name,
				Provider: providerName,
				ID:       id,
				Inputs:   map[string]any{},
				Outputs:  inst.Attributes,
			})
			converted++
		}
	}

	mgr := state.NewManager(workspaceStatePath("."))
	if err := mgr.Write(cmd.Context(), out); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	fmt.Printf("\nMigration complete! Converted %d resources to %s\n", converted, mgr.Path())
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Write the corresponding PKL configuration in main.pkl")
	fmt.Println("  2. Run 'ferrite plan' to verify no changes are needed")
	fmt.Println("  3. If the plan shows changes, adjust your PKL config to match")
	return nil
}

// mapTFProvider reduces a Terraform provider address to a ferrite provider
// name. Terraform uses addresses like registry.terraform.io/hashicorp/aws,
// sometimes wrapped in quoting from older state versions.
func mapTFProvider(tfProvider string) string {
	parts := strings.Split(tfProvider, "/")
	name := parts[len(parts)-1]
	return strings.Trim(name, "[]\"")
}

// mapTFResourceType maps a Terraform resource type to the ferrite kind the
// matching provider manages. Unknown types pass through unchanged; they stay
// in state but no provider will claim them.
func mapTFResourceType(tfType string) string {
	typeMap := map[string]string{
		"aws_vpc":                   "network",
		"aws_subnet":                "subnet",
		"aws_security_group":        "securityPolicy",
		"aws_eks_cluster":           "cluster",
		"aws_db_instance":           "database",
		"aws_dynamodb_table":        "table",
		"aws_ecs_service":           "service",
		"aws_sns_topic":             "topic",
		"aws_sqs_queue":             "queue",
		"aws_lambda_function":       "function",
		"aws_s3_bucket":             "bucket",
		"aws_iam_role":              "role",
		"aws_kms_key":               "key",
		"aws_secretsmanager_secret": "secret",
		"aws_cloudwatch_log_group":  "logGroup",
		"aws_route53_zone":          "zone",
		"aws_route53_record":        "record",
		"aws_ecr_repository":        "repository",
		"docker_container":          "container",
		"docker_image":              "image",
		"docker_network":            "dockerNetwork",
		"docker_volume":             "volume",
		"null_resource":             "null_resource",
	}

	if mapped, ok := typeMap[tfType]; ok {
		return mapped
	}
	return tfType
}

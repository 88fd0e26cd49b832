package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrite-io/ferrite/internal/ir"
)

var policyFile string

var policyCmd = &cobra.Command{
	Use:   "policy-check <plan-file>",
	Short: "Check a saved plan against policy rules",
	Long: `Evaluates a plan written with 'ferrite plan -o' against rules from a
JSON policy file.

Rules can deny plan actions, require attributes to be present, or
constrain attribute values. Example policy file:

  {
    "rules": [
      {
        "name": "no-public-buckets",
        "description": "buckets must not have a public-read ACL",
        "resource_type": "bucket",
        "condition": "property_equals",
        "property": "acl",
        "value": "public-read",
        "severity": "error"
      }
    ]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyCheck,
}

func init() {
	policyCmd.Flags().StringVarP(&policyFile, "policy", "p", ".ferrite/policies.json", "Path to the policy file")
}

// PolicyFile is a collection of policy rules.
type PolicyFile struct {
	Rules []PolicyRule `json:"rules"`
}

// PolicyRule defines a single check. Condition is one of deny_action,
// property_equals (deny the value), property_not_equals (require the value)
// or require_property.
type PolicyRule struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ResourceType string `json:"resource_type"` // empty matches all types
	Condition    string `json:"condition"`
	Property     string `json:"property"`
	Value        string `json:"value"`
	Severity     string `json:"severity"` // "error" or "warning"
}

// PolicyViolation is one rule failing against one plan change.
type PolicyViolation struct {
	Rule     PolicyRule
	Resource string
	Message  string
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	planData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read plan file: %w", err)
	}
	var plan ir.Plan
	if err := json.Unmarshal(planData, &plan); err != nil {
		return fmt.Errorf("failed to parse plan: %w", err)
	}

	policyData, err := os.ReadFile(policyFile)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", policyFile, err)
	}
	var policies PolicyFile
	if err := json.Unmarshal(policyData, &policies); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	violations := evaluatePolicies(&plan, &policies)

	errors := 0
	warnings := 0
	for _, v := range violations {
		if strings.EqualFold(v.Rule.Severity, "warning") {
			warnings++
			fmt.Printf("%s[WARN]%s %s: %s\n", colorize(ansiYellow), colorize(ansiReset), v.Rule.Name, v.Message)
		} else {
			errors++
			fmt.Printf("%s[ERROR]%s %s: %s\n", colorize(ansiRed), colorize(ansiReset), v.Rule.Name, v.Message)
		}
	}

	fmt.Printf("\nPolicy check complete: %d error(s), %d warning(s)\n", errors, warnings)

	if errors > 0 {
		return fmt.Errorf("policy check failed with %d error(s)", errors)
	}
	return nil
}

func evaluatePolicies(plan *ir.Plan, policies *PolicyFile) []PolicyViolation {
	var violations []PolicyViolation

	for _, rule := range policies.Rules {
		for _, change := range plan.Changes {
			if rule.ResourceType != "" && changeType(change) != rule.ResourceType {
				continue
			}

			switch rule.Condition {
			case "deny_action":
				if strings.EqualFold(string(change.Action), rule.Value) {
					violations = append(violations, PolicyViolation{
						Rule:     rule,
						Resource: change.Address,
						Message:  fmt.Sprintf("resource %s: action %s is denied by policy %q", change.Address, change.Action, rule.Name),
					})
				}

			case "property_equals":
				if val, ok := desiredProperty(change, rule.Property); ok && fmt.Sprintf("%v", val) == rule.Value {
					violations = append(violations, PolicyViolation{
						Rule:     rule,
						Resource: change.Address,
						Message:  fmt.Sprintf("resource %s: property %s=%v violates policy %q", change.Address, rule.Property, val, rule.Name),
					})
				}

			case "property_not_equals":
				if val, ok := desiredProperty(change, rule.Property); ok && fmt.Sprintf("%v", val) != rule.Value {
					violations = append(violations, PolicyViolation{
						Rule:     rule,
						Resource: change.Address,
						Message:  fmt.Sprintf("resource %s: property %s=%v violates policy %q (expected %s)", change.Address, rule.Property, val, rule.Name, rule.Value),
					})
				}

			case "require_property":
				if change.Desired == nil {
					continue
				}
				switch change.Action {
				case ir.ActionCreate, ir.ActionUpdate, ir.ActionReplace:
					if _, ok := change.Desired.Properties[rule.Property]; !ok {
						violations = append(violations, PolicyViolation{
							Rule:     rule,
							Resource: change.Address,
							Message:  fmt.Sprintf("resource %s: missing required property %q per policy %q", change.Address, rule.Property, rule.Name),
						})
					}
				}
			}
		}
	}

	return violations
}

func changeType(change *ir.ResourceChange) string {
	if change.Desired != nil {
		return change.Desired.Type
	}
	if change.Prior != nil {
		return change.Prior.Type
	}
	return ""
}

func desiredProperty(change *ir.ResourceChange, property string) (any, bool) {
	if change.Desired == nil {
		return nil, false
	}
	val, ok := change.Desired.Properties[property]
	return val, ok
}

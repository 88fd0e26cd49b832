// Package eval turns PKL configuration modules into IR types.
package eval

import (
	"context"
	"fmt"

	"github.com/apple/pkl-go/pkl"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// Evaluator handles PKL evaluation into IR types.
type Evaluator struct {
	projectDir string
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{
		projectDir: projectDir,
	}
}

// LoadConfig evaluates the main configuration file and returns the IR.
// External properties are exposed to the module as `read("prop:...")`.
func (e *Evaluator) LoadConfig(ctx context.Context, entryPoint string, properties map[string]string) (*ir.Config, error) {
	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewProjectEvaluator(ctx, e.projectDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg ir.Config
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(entryPoint), &cfg); err != nil {
		return nil, fmt.Errorf("failed to evaluate config: %w", err)
	}

	if err := normalizeConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeConfig fills schema defaults the evaluated module may omit and
// rejects declarations the engine cannot address.
func normalizeConfig(cfg *ir.Config) error {
	if cfg.Resources == nil {
		cfg.Resources = []*ir.Resource{}
	}
	for i, res := range cfg.Resources {
		if res == nil {
			return fmt.Errorf("resource at index %d is empty", i)
		}
		if res.Name == "" {
			return fmt.Errorf("resource at index %d has no name", i)
		}
		if res.Type == "" {
			res.Type = "null_resource"
		}
		// Other kinds are bound to a provider by whoever loads them; only
		// the null kind has exactly one possible owner.
		if res.Provider == "" && res.Type == "null_resource" {
			res.Provider = "null"
		}
		if res.Properties == nil {
			res.Properties = map[string]any{}
		}
	}
	return nil
}

package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// function is a Lambda function deployed from a local zip archive named by
// the code attribute. Runtime, handler, role and limits update in place;
// only a rename forces recreation.
var functionHandler = &handler{
	required: []string{"runtime", "handler", "role", "code"},
	forceNew: []string{"name"},
	validate: func(req *provider.ValidateRequest) error {
		code := stringAttr(req.Attributes, "code")
		if _, err := os.Stat(code); err != nil {
			return provider.NewError(provider.CodeValidation,
				"aws function %q: code archive %q is not readable", req.Name, code)
		}
		return nil
	},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		entryPoint := stringAttr(req.Attributes, "handler")
		role := stringAttr(req.Attributes, "role")

		zipBytes, err := os.ReadFile(stringAttr(req.Attributes, "code"))
		if err != nil {
			return "", nil, fmt.Errorf("read code archive: %w", err)
		}

		input := &lambda.CreateFunctionInput{
			FunctionName: &name,
			Runtime:      types.Runtime(stringAttr(req.Attributes, "runtime")),
			Handler:      &entryPoint,
			Role:         &role,
			Code:         &types.FunctionCode{ZipFile: zipBytes},
		}
		if memory := intAttr(req.Attributes, "memory", 0); memory > 0 {
			m := int32(memory)
			input.MemorySize = &m
		}
		if timeout := intAttr(req.Attributes, "timeout", 0); timeout > 0 {
			t := int32(timeout)
			input.Timeout = &t
		}
		if env := tagsAttr(req.Attributes, "environment"); len(env) > 0 {
			input.Environment = &types.Environment{Variables: env}
		}

		resp, err := c.lambda.CreateFunction(ctx, input)
		if err != nil {
			return "", nil, err
		}

		return *resp.FunctionName, map[string]any{
			"name": *resp.FunctionName,
			"arn":  *resp.FunctionArn,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)

		if changed["runtime"] || changed["handler"] || changed["role"] ||
			changed["memory"] || changed["timeout"] || changed["environment"] {
			entryPoint := stringAttr(req.Attributes, "handler")
			role := stringAttr(req.Attributes, "role")
			input := &lambda.UpdateFunctionConfigurationInput{
				FunctionName: &req.ID,
				Runtime:      types.Runtime(stringAttr(req.Attributes, "runtime")),
				Handler:      &entryPoint,
				Role:         &role,
			}
			if memory := intAttr(req.Attributes, "memory", 0); memory > 0 {
				m := int32(memory)
				input.MemorySize = &m
			}
			if timeout := intAttr(req.Attributes, "timeout", 0); timeout > 0 {
				t := int32(timeout)
				input.Timeout = &t
			}
			if env := tagsAttr(req.Attributes, "environment"); len(env) > 0 {
				input.Environment = &types.Environment{Variables: env}
			}
			if _, err := c.lambda.UpdateFunctionConfiguration(ctx, input); err != nil {
				return nil, err
			}
		}

		if changed["code"] || changed["codeHash"] {
			zipBytes, err := os.ReadFile(stringAttr(req.Attributes, "code"))
			if err != nil {
				return nil, fmt.Errorf("read code archive: %w", err)
			}
			if _, err := c.lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
				FunctionName: &req.ID,
				ZipFile:      zipBytes,
			}); err != nil {
				return nil, err
			}
		}

		resp, err := c.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: &req.ID})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"name": *resp.Configuration.FunctionName,
			"arn":  *resp.Configuration.FunctionArn,
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		resp, err := c.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: &req.ID})
		if err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":   *resp.Configuration.FunctionName,
				"name": *resp.Configuration.FunctionName,
				"arn":  *resp.Configuration.FunctionArn,
			},
		}, nil
	},
}

package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// role is an IAM role. The trust policy and description update in place;
// IAM is eventually consistent, so a freshly created role may take a few
// seconds to be assumable.
var roleHandler = &handler{
	required: []string{"assumeRolePolicy"},
	forceNew: []string{"name"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		policy := stringAttr(req.Attributes, "assumeRolePolicy")

		input := &iam.CreateRoleInput{
			RoleName:                 &name,
			AssumeRolePolicyDocument: &policy,
		}
		if desc := stringAttr(req.Attributes, "description"); desc != "" {
			input.Description = &desc
		}
		for k, v := range tagsAttr(req.Attributes, "tags") {
			input.Tags = append(input.Tags, types.Tag{Key: &k, Value: &v})
		}

		resp, err := c.iam.CreateRole(ctx, input)
		if err != nil {
			return "", nil, err
		}

		return *resp.Role.RoleName, map[string]any{
			"name": *resp.Role.RoleName,
			"arn":  *resp.Role.Arn,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["assumeRolePolicy"] {
			policy := stringAttr(req.Attributes, "assumeRolePolicy")
			_, err := c.iam.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
				RoleName:       &req.ID,
				PolicyDocument: &policy,
			})
			if err != nil {
				return nil, err
			}
		}
		if changed["description"] {
			desc := stringAttr(req.Attributes, "description")
			_, err := c.iam.UpdateRole(ctx, &iam.UpdateRoleInput{
				RoleName:    &req.ID,
				Description: &desc,
			})
			if err != nil {
				return nil, err
			}
		}

		resp, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: &req.ID})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"name": *resp.Role.RoleName,
			"arn":  *resp.Role.Arn,
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: &req.ID})
		return err
	},
}

package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// logGroup is a CloudWatch Logs group. Retention changes in place; setting
// retentionDays to zero removes the policy and keeps logs forever.
var logGroupHandler = &handler{
	forceNew: []string{"name"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)

		_, err := c.logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
			LogGroupName: &name,
		})
		if err != nil && !isAPIError(err, "ResourceAlreadyExistsException") {
			return "", nil, err
		}

		if retention := intAttr(req.Attributes, "retentionDays", 0); retention > 0 {
			if err := putLogRetention(ctx, c, name, retention); err != nil {
				return "", nil, err
			}
		}

		outputs, err := describeLogGroup(ctx, c, name)
		if err != nil {
			return "", nil, err
		}
		return name, outputs, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		if changedSet(req.Prior, req.Attributes)["retentionDays"] {
			retention := intAttr(req.Attributes, "retentionDays", 0)
			if retention > 0 {
				if err := putLogRetention(ctx, c, req.ID, retention); err != nil {
					return nil, err
				}
			} else {
				_, err := c.logs.DeleteRetentionPolicy(ctx, &cloudwatchlogs.DeleteRetentionPolicyInput{
					LogGroupName: &req.ID,
				})
				if err != nil {
					return nil, err
				}
			}
		}
		return describeLogGroup(ctx, c, req.ID)
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.logs.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{LogGroupName: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		outputs, err := describeLogGroup(ctx, c, req.ID)
		if err != nil {
			return nil, err
		}
		outputs["id"] = req.ID
		return &provider.ReadResponse{Exists: true, Outputs: outputs}, nil
	},
}

func putLogRetention(ctx context.Context, c *clients, name string, days int) error {
	_, err := c.logs.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    &name,
		RetentionInDays: func(i int32) *int32 { return &i }(int32(days)),
	})
	return err
}

// describeLogGroup fetches the group by name; the describe call matches by
// prefix, so the exact name is filtered here.
func describeLogGroup(ctx context.Context, c *clients, name string) (map[string]any, error) {
	resp, err := c.logs.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: &name,
	})
	if err != nil {
		return nil, err
	}
	for _, group := range resp.LogGroups {
		if group.LogGroupName != nil && *group.LogGroupName == name {
			outputs := map[string]any{"name": name}
			if group.Arn != nil {
				outputs["arn"] = *group.Arn
			}
			if group.RetentionInDays != nil {
				outputs["retentionDays"] = int(*group.RetentionInDays)
			}
			return outputs, nil
		}
	}
	return nil, provider.NewError(provider.CodeNotFound, "log group %q not found", name)
}

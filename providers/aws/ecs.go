package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// service is an ECS service. Moving a service between clusters or launch
// types recreates it; task definition and desired count roll in place.
var serviceHandler = &handler{
	required: []string{"cluster", "taskDefinition"},
	forceNew: []string{"cluster", "launchType"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		cluster := stringAttr(req.Attributes, "cluster")
		taskDef := stringAttr(req.Attributes, "taskDefinition")
		launchType := stringAttr(req.Attributes, "launchType")
		if launchType == "" {
			launchType = "FARGATE"
		}

		input := &ecs.CreateServiceInput{
			ServiceName:    &name,
			Cluster:        &cluster,
			TaskDefinition: &taskDef,
			DesiredCount:   func(i int32) *int32 { return &i }(int32(intAttr(req.Attributes, "desiredCount", 1))),
			LaunchType:     types.LaunchType(launchType),
		}
		if netCfg := serviceNetworkConfig(req.Attributes); netCfg != nil {
			input.NetworkConfiguration = netCfg
		}

		resp, err := c.ecs.CreateService(ctx, input)
		if err != nil {
			return "", nil, err
		}

		return *resp.Service.ServiceName, map[string]any{
			"name":    *resp.Service.ServiceName,
			"arn":     *resp.Service.ServiceArn,
			"cluster": cluster,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		cluster := stringAttr(req.Attributes, "cluster")
		taskDef := stringAttr(req.Attributes, "taskDefinition")
		input := &ecs.UpdateServiceInput{
			Service:        &req.ID,
			Cluster:        &cluster,
			TaskDefinition: &taskDef,
			DesiredCount:   func(i int32) *int32 { return &i }(int32(intAttr(req.Attributes, "desiredCount", 1))),
		}
		if netCfg := serviceNetworkConfig(req.Attributes); netCfg != nil {
			input.NetworkConfiguration = netCfg
		}

		resp, err := c.ecs.UpdateService(ctx, input)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"name":    *resp.Service.ServiceName,
			"arn":     *resp.Service.ServiceArn,
			"cluster": cluster,
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		cluster := stringAttr(req.Attributes, "cluster")
		_, err := c.ecs.DeleteService(ctx, &ecs.DeleteServiceInput{
			Service: &req.ID,
			Cluster: &cluster,
			Force:   func(b bool) *bool { return &b }(true),
		})
		return err
	},
}

// serviceNetworkConfig builds the awsvpc configuration when subnets are
// declared; Fargate services require it.
func serviceNetworkConfig(attrs map[string]any) *types.NetworkConfiguration {
	subnets := stringsAttr(attrs, "subnets")
	if len(subnets) == 0 {
		return nil
	}
	assign := types.AssignPublicIpDisabled
	if boolAttr(attrs, "assignPublicIp") {
		assign = types.AssignPublicIpEnabled
	}
	return &types.NetworkConfiguration{
		AwsvpcConfiguration: &types.AwsVpcConfiguration{
			Subnets:        subnets,
			SecurityGroups: stringsAttr(attrs, "securityGroups"),
			AssignPublicIp: assign,
		},
	}
}

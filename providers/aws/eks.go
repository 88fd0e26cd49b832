package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// cluster is an EKS control plane. Version upgrades run in place; changing
// the name or the control-plane role requires a new cluster.
var clusterHandler = &handler{
	required: []string{"roleArn", "subnetIds"},
	forceNew: []string{"name", "roleArn"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		roleArn := stringAttr(req.Attributes, "roleArn")

		input := &eks.CreateClusterInput{
			Name:    &name,
			RoleArn: &roleArn,
			ResourcesVpcConfig: &types.VpcConfigRequest{
				SubnetIds:        stringsAttr(req.Attributes, "subnetIds"),
				SecurityGroupIds: stringsAttr(req.Attributes, "securityGroupIds"),
			},
		}
		if version := stringAttr(req.Attributes, "version"); version != "" {
			input.Version = &version
		}
		if tags := tagsAttr(req.Attributes, "tags"); len(tags) > 0 {
			input.Tags = tags
		}
		if _, ok := req.Attributes["endpointPublicAccess"]; ok {
			public := boolAttr(req.Attributes, "endpointPublicAccess")
			input.ResourcesVpcConfig.EndpointPublicAccess = &public
		}
		if _, ok := req.Attributes["endpointPrivateAccess"]; ok {
			private := boolAttr(req.Attributes, "endpointPrivateAccess")
			input.ResourcesVpcConfig.EndpointPrivateAccess = &private
		}

		resp, err := c.eks.CreateCluster(ctx, input)
		if err != nil {
			return "", nil, err
		}

		outputs := map[string]any{
			"name": *resp.Cluster.Name,
			"arn":  *resp.Cluster.Arn,
		}
		if resp.Cluster.Endpoint != nil {
			outputs["endpoint"] = *resp.Cluster.Endpoint
		}
		if resp.Cluster.Version != nil {
			outputs["version"] = *resp.Cluster.Version
		}
		return *resp.Cluster.Name, outputs, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["version"] {
			version := stringAttr(req.Attributes, "version")
			_, err := c.eks.UpdateClusterVersion(ctx, &eks.UpdateClusterVersionInput{
				Name:    &req.ID,
				Version: &version,
			})
			if err != nil {
				return nil, err
			}
		}
		if changed["subnetIds"] || changed["securityGroupIds"] ||
			changed["endpointPublicAccess"] || changed["endpointPrivateAccess"] {
			public := boolAttr(req.Attributes, "endpointPublicAccess")
			private := boolAttr(req.Attributes, "endpointPrivateAccess")
			_, err := c.eks.UpdateClusterConfig(ctx, &eks.UpdateClusterConfigInput{
				Name: &req.ID,
				ResourcesVpcConfig: &types.VpcConfigRequest{
					SubnetIds:             stringsAttr(req.Attributes, "subnetIds"),
					SecurityGroupIds:      stringsAttr(req.Attributes, "securityGroupIds"),
					EndpointPublicAccess:  &public,
					EndpointPrivateAccess: &private,
				},
			})
			if err != nil {
				return nil, err
			}
		}

		resp, err := c.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: &req.ID})
		if err != nil {
			return nil, err
		}
		outputs := map[string]any{
			"name": *resp.Cluster.Name,
			"arn":  *resp.Cluster.Arn,
		}
		if resp.Cluster.Endpoint != nil {
			outputs["endpoint"] = *resp.Cluster.Endpoint
		}
		if resp.Cluster.Version != nil {
			outputs["version"] = *resp.Cluster.Version
		}
		return outputs, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.eks.DeleteCluster(ctx, &eks.DeleteClusterInput{Name: &req.ID})
		return err
	},
}

package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// network is an EC2 VPC. The CIDR block is fixed at creation; everything
// else updates in place.
var networkHandler = &handler{
	required: []string{"cidrBlock"},
	forceNew: []string{"cidrBlock"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		cidr := stringAttr(req.Attributes, "cidrBlock")
		resp, err := c.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
			CidrBlock: &cidr,
		})
		if err != nil {
			return "", nil, err
		}
		vpcID := *resp.Vpc.VpcId

		if err := tagEC2(ctx, c, vpcID, tagsAttr(req.Attributes, "tags")); err != nil {
			return "", nil, err
		}

		return vpcID, map[string]any{
			"cidrBlock": *resp.Vpc.CidrBlock,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		if err := tagEC2(ctx, c, req.ID, tagsAttr(req.Attributes, "tags")); err != nil {
			return nil, err
		}
		return map[string]any{
			"cidrBlock": stringAttr(req.Attributes, "cidrBlock"),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		resp, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{req.ID}})
		if err != nil {
			return nil, err
		}
		if len(resp.Vpcs) == 0 {
			return &provider.ReadResponse{Exists: false}, nil
		}
		vpc := resp.Vpcs[0]
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":        *vpc.VpcId,
				"cidrBlock": *vpc.CidrBlock,
			},
		}, nil
	},
}

var subnetHandler = &handler{
	required: []string{"vpcId", "cidrBlock"},
	forceNew: []string{"cidrBlock", "vpcId", "availabilityZone"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		vpcID := stringAttr(req.Attributes, "vpcId")
		cidr := stringAttr(req.Attributes, "cidrBlock")
		input := &ec2.CreateSubnetInput{
			VpcId:     &vpcID,
			CidrBlock: &cidr,
		}
		if az := stringAttr(req.Attributes, "availabilityZone"); az != "" {
			input.AvailabilityZone = &az
		}

		resp, err := c.ec2.CreateSubnet(ctx, input)
		if err != nil {
			return "", nil, err
		}
		subnetID := *resp.Subnet.SubnetId

		if err := tagEC2(ctx, c, subnetID, tagsAttr(req.Attributes, "tags")); err != nil {
			return "", nil, err
		}
		if boolAttr(req.Attributes, "mapPublicIpOnLaunch") {
			if err := mapPublicIP(ctx, c, subnetID, true); err != nil {
				return "", nil, err
			}
		}

		return subnetID, map[string]any{
			"vpcId":            *resp.Subnet.VpcId,
			"cidrBlock":        *resp.Subnet.CidrBlock,
			"availabilityZone": *resp.Subnet.AvailabilityZone,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["mapPublicIpOnLaunch"] {
			if err := mapPublicIP(ctx, c, req.ID, boolAttr(req.Attributes, "mapPublicIpOnLaunch")); err != nil {
				return nil, err
			}
		}
		if changed["tags"] {
			if err := tagEC2(ctx, c, req.ID, tagsAttr(req.Attributes, "tags")); err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"vpcId":     stringAttr(req.Attributes, "vpcId"),
			"cidrBlock": stringAttr(req.Attributes, "cidrBlock"),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		resp, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{req.ID}})
		if err != nil {
			return nil, err
		}
		if len(resp.Subnets) == 0 {
			return &provider.ReadResponse{Exists: false}, nil
		}
		sub := resp.Subnets[0]
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":               *sub.SubnetId,
				"vpcId":            *sub.VpcId,
				"cidrBlock":        *sub.CidrBlock,
				"availabilityZone": *sub.AvailabilityZone,
			},
		}, nil
	},
}

// securityPolicy is an EC2 security group. The ingress rule set is replaced
// wholesale on update; name and VPC cannot change in place.
var securityPolicyHandler = &handler{
	required: []string{"name", "vpcId"},
	forceNew: []string{"name", "vpcId"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := stringAttr(req.Attributes, "name")
		vpcID := stringAttr(req.Attributes, "vpcId")
		desc := stringAttr(req.Attributes, "description")
		if desc == "" {
			desc = "managed by ferrite"
		}

		resp, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName:   &name,
			Description: &desc,
			VpcId:       &vpcID,
		})
		if err != nil {
			return "", nil, err
		}
		groupID := *resp.GroupId

		if perms := ingressPermissions(req.Attributes); len(perms) > 0 {
			_, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
				GroupId:       &groupID,
				IpPermissions: perms,
			})
			if err != nil {
				return "", nil, err
			}
		}

		return groupID, map[string]any{
			"name":  name,
			"vpcId": vpcID,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		// Revoke the prior rule set and authorize the desired one. Revoking
		// a rule that already disappeared counts as done.
		if prior := ingressPermissions(req.Prior); len(prior) > 0 {
			_, err := c.ec2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
				GroupId:       &req.ID,
				IpPermissions: prior,
			})
			if err != nil && !isAPIError(err, "InvalidPermission.NotFound") {
				return nil, err
			}
		}
		if desired := ingressPermissions(req.Attributes); len(desired) > 0 {
			_, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
				GroupId:       &req.ID,
				IpPermissions: desired,
			})
			if err != nil && !isAPIError(err, "InvalidPermission.Duplicate") {
				return nil, err
			}
		}
		return map[string]any{
			"name":  stringAttr(req.Attributes, "name"),
			"vpcId": stringAttr(req.Attributes, "vpcId"),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		resp, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{req.ID}})
		if err != nil {
			return nil, err
		}
		if len(resp.SecurityGroups) == 0 {
			return &provider.ReadResponse{Exists: false}, nil
		}
		sg := resp.SecurityGroups[0]
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":    *sg.GroupId,
				"name":  *sg.GroupName,
				"vpcId": *sg.VpcId,
			},
		}, nil
	},
}

// ingressPermissions converts the ingress attribute into EC2 permissions.
// Each rule carries fromPort, toPort, protocol and cidrBlocks.
func ingressPermissions(attrs map[string]any) []types.IpPermission {
	var perms []types.IpPermission
	for _, rule := range listAttr(attrs, "ingress") {
		protocol := stringAttr(rule, "protocol")
		if protocol == "" {
			protocol = "tcp"
		}
		var ranges []types.IpRange
		for _, cidr := range stringsAttr(rule, "cidrBlocks") {
			ranges = append(ranges, types.IpRange{CidrIp: &cidr})
		}
		perms = append(perms, types.IpPermission{
			IpProtocol: &protocol,
			FromPort:   func(i int32) *int32 { return &i }(int32(intAttr(rule, "fromPort", 0))),
			ToPort:     func(i int32) *int32 { return &i }(int32(intAttr(rule, "toPort", 0))),
			IpRanges:   ranges,
		})
	}
	return perms
}

func tagEC2(ctx context.Context, c *clients, id string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	var ec2Tags []types.Tag
	for k, v := range tags {
		ec2Tags = append(ec2Tags, types.Tag{Key: &k, Value: &v})
	}
	_, err := c.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      ec2Tags,
	})
	return err
}

func mapPublicIP(ctx context.Context, c *clients, subnetID string, enabled bool) error {
	_, err := c.ec2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            &subnetID,
		MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: &enabled},
	})
	return err
}

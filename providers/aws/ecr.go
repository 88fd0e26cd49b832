package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// repository is an ECR repository. Tag mutability and scan-on-push change
// in place; delete is forced so images do not block teardown.
var repositoryHandler = &handler{
	forceNew: []string{"name"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)

		input := &ecr.CreateRepositoryInput{
			RepositoryName: &name,
			ImageScanningConfiguration: &types.ImageScanningConfiguration{
				ScanOnPush: boolAttr(req.Attributes, "scanOnPush"),
			},
		}
		if mutability := stringAttr(req.Attributes, "imageTagMutability"); mutability != "" {
			input.ImageTagMutability = types.ImageTagMutability(mutability)
		}

		resp, err := c.ecr.CreateRepository(ctx, input)
		if err != nil {
			return "", nil, err
		}

		return *resp.Repository.RepositoryName, map[string]any{
			"name":          *resp.Repository.RepositoryName,
			"arn":           *resp.Repository.RepositoryArn,
			"repositoryUrl": *resp.Repository.RepositoryUri,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["imageTagMutability"] {
			_, err := c.ecr.PutImageTagMutability(ctx, &ecr.PutImageTagMutabilityInput{
				RepositoryName:     &req.ID,
				ImageTagMutability: types.ImageTagMutability(stringAttr(req.Attributes, "imageTagMutability")),
			})
			if err != nil {
				return nil, err
			}
		}
		if changed["scanOnPush"] {
			_, err := c.ecr.PutImageScanningConfiguration(ctx, &ecr.PutImageScanningConfigurationInput{
				RepositoryName: &req.ID,
				ImageScanningConfiguration: &types.ImageScanningConfiguration{
					ScanOnPush: boolAttr(req.Attributes, "scanOnPush"),
				},
			})
			if err != nil {
				return nil, err
			}
		}

		resp, err := c.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
			RepositoryNames: []string{req.ID},
		})
		if err != nil {
			return nil, err
		}
		repo := resp.Repositories[0]
		return map[string]any{
			"name":          *repo.RepositoryName,
			"arn":           *repo.RepositoryArn,
			"repositoryUrl": *repo.RepositoryUri,
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.ecr.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
			RepositoryName: &req.ID,
			Force:          true,
		})
		return err
	},
}

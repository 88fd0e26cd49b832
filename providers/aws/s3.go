package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// bucket is an S3 bucket. Bucket names are global, so create treats
// BucketAlreadyOwnedByYou as success; versioning and tags change in place.
var bucketHandler = &handler{
	forceNew: []string{"name"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)

		input := &s3.CreateBucketInput{Bucket: &name}
		// us-east-1 is the API default and rejects an explicit constraint.
		if c.region != "" && c.region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(c.region),
			}
		}
		if _, err := c.s3.CreateBucket(ctx, input); err != nil && !isAPIError(err, "BucketAlreadyOwnedByYou") {
			return "", nil, err
		}

		if err := configureBucket(ctx, c, name, req.Attributes); err != nil {
			return "", nil, err
		}

		return name, map[string]any{
			"name": name,
			"arn":  fmt.Sprintf("arn:aws:s3:::%s", name),
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		if err := configureBucket(ctx, c, req.ID, req.Attributes); err != nil {
			return nil, err
		}
		return map[string]any{
			"name": req.ID,
			"arn":  fmt.Sprintf("arn:aws:s3:::%s", req.ID),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		if boolAttr(req.Attributes, "forceDestroy") {
			if err := emptyBucket(ctx, c, req.ID); err != nil {
				return err
			}
		}
		_, err := c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &req.ID}); err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":   req.ID,
				"name": req.ID,
				"arn":  fmt.Sprintf("arn:aws:s3:::%s", req.ID),
			},
		}, nil
	},
}

// configureBucket applies the mutable bucket settings: versioning and tags.
func configureBucket(ctx context.Context, c *clients, name string, attrs map[string]any) error {
	if _, ok := attrs["versioning"]; ok {
		status := types.BucketVersioningStatusSuspended
		if boolAttr(attrs, "versioning") {
			status = types.BucketVersioningStatusEnabled
		}
		_, err := c.s3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
			Bucket: &name,
			VersioningConfiguration: &types.VersioningConfiguration{
				Status: status,
			},
		})
		if err != nil {
			return err
		}
	}

	if tags := tagsAttr(attrs, "tags"); len(tags) > 0 {
		var tagSet []types.Tag
		for k, v := range tags {
			tagSet = append(tagSet, types.Tag{Key: &k, Value: &v})
		}
		_, err := c.s3.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
			Bucket:  &name,
			Tagging: &types.Tagging{TagSet: tagSet},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// emptyBucket removes every object so the bucket itself can be deleted.
func emptyBucket(ctx context.Context, c *clients, name string) error {
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{Bucket: &name})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		if len(page.Contents) == 0 {
			continue
		}
		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &name,
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

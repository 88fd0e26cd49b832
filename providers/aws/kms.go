package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// Keys cannot be deleted immediately; this is the shortest window KMS
// accepts for a scheduled deletion.
const keyDeletionWindowDays = 7

// key is a KMS key. Every declared attribute updates in place; delete
// schedules the key for deletion rather than removing it outright.
var keyHandler = &handler{
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		input := &kms.CreateKeyInput{}
		if desc := stringAttr(req.Attributes, "description"); desc != "" {
			input.Description = &desc
		}
		if usage := stringAttr(req.Attributes, "keyUsage"); usage != "" {
			input.KeyUsage = types.KeyUsageType(usage)
		}

		resp, err := c.kms.CreateKey(ctx, input)
		if err != nil {
			return "", nil, err
		}
		keyID := *resp.KeyMetadata.KeyId

		if _, ok := req.Attributes["enabled"]; ok && !boolAttr(req.Attributes, "enabled") {
			if _, err := c.kms.DisableKey(ctx, &kms.DisableKeyInput{KeyId: &keyID}); err != nil {
				return "", nil, err
			}
		}

		return keyID, map[string]any{
			"keyId": keyID,
			"arn":   *resp.KeyMetadata.Arn,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["description"] {
			desc := stringAttr(req.Attributes, "description")
			_, err := c.kms.UpdateKeyDescription(ctx, &kms.UpdateKeyDescriptionInput{
				KeyId:       &req.ID,
				Description: &desc,
			})
			if err != nil {
				return nil, err
			}
		}
		if changed["enabled"] {
			if boolAttr(req.Attributes, "enabled") {
				if _, err := c.kms.EnableKey(ctx, &kms.EnableKeyInput{KeyId: &req.ID}); err != nil {
					return nil, err
				}
			} else {
				if _, err := c.kms.DisableKey(ctx, &kms.DisableKeyInput{KeyId: &req.ID}); err != nil {
					return nil, err
				}
			}
		}

		resp, err := c.kms.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: &req.ID})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"keyId": *resp.KeyMetadata.KeyId,
			"arn":   *resp.KeyMetadata.Arn,
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.kms.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
			KeyId:               &req.ID,
			PendingWindowInDays: func(i int32) *int32 { return &i }(keyDeletionWindowDays),
		})
		return err
	},
}

package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// secret is a Secrets Manager secret identified by its ARN. The value
// lands in state inputs, so pairing it with state encryption is advisable.
// Delete skips the recovery window.
var secretHandler = &handler{
	forceNew: []string{"name"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)

		input := &secretsmanager.CreateSecretInput{Name: &name}
		if desc := stringAttr(req.Attributes, "description"); desc != "" {
			input.Description = &desc
		}
		if keyID := stringAttr(req.Attributes, "kmsKeyId"); keyID != "" {
			input.KmsKeyId = &keyID
		}
		if value := stringAttr(req.Attributes, "value"); value != "" {
			input.SecretString = &value
		}

		resp, err := c.secrets.CreateSecret(ctx, input)
		if err != nil {
			return "", nil, err
		}

		return *resp.ARN, map[string]any{
			"arn":  *resp.ARN,
			"name": *resp.Name,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["description"] || changed["kmsKeyId"] {
			input := &secretsmanager.UpdateSecretInput{SecretId: &req.ID}
			if desc := stringAttr(req.Attributes, "description"); desc != "" {
				input.Description = &desc
			}
			if keyID := stringAttr(req.Attributes, "kmsKeyId"); keyID != "" {
				input.KmsKeyId = &keyID
			}
			if _, err := c.secrets.UpdateSecret(ctx, input); err != nil {
				return nil, err
			}
		}
		if changed["value"] {
			value := stringAttr(req.Attributes, "value")
			_, err := c.secrets.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
				SecretId:     &req.ID,
				SecretString: &value,
			})
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"arn":  req.ID,
			"name": nameAttr(req.Attributes, req.Name),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.secrets.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
			SecretId:                   &req.ID,
			ForceDeleteWithoutRecovery: func(b bool) *bool { return &b }(true),
		})
		return err
	},
}

package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// table is a DynamoDB table. The key schema is immutable; billing mode and
// provisioned capacity change in place.
var tableHandler = &handler{
	required: []string{"hashKey"},
	forceNew: []string{"name", "hashKey", "rangeKey"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		input := &dynamodb.CreateTableInput{
			TableName:            &name,
			AttributeDefinitions: tableAttributeDefinitions(req.Attributes),
			KeySchema:            tableKeySchema(req.Attributes),
			BillingMode:          tableBillingMode(req.Attributes),
		}
		if input.BillingMode == types.BillingModeProvisioned {
			input.ProvisionedThroughput = tableThroughput(req.Attributes)
		}

		resp, err := c.dynamo.CreateTable(ctx, input)
		if err != nil {
			return "", nil, err
		}

		return name, map[string]any{
			"name": *resp.TableDescription.TableName,
			"arn":  *resp.TableDescription.TableArn,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["billingMode"] || changed["readCapacity"] || changed["writeCapacity"] {
			input := &dynamodb.UpdateTableInput{
				TableName:   &req.ID,
				BillingMode: tableBillingMode(req.Attributes),
			}
			if input.BillingMode == types.BillingModeProvisioned {
				input.ProvisionedThroughput = tableThroughput(req.Attributes)
			}
			if _, err := c.dynamo.UpdateTable(ctx, input); err != nil {
				return nil, err
			}
		}

		resp, err := c.dynamo.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &req.ID})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"name": *resp.Table.TableName,
			"arn":  *resp.Table.TableArn,
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.dynamo.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		resp, err := c.dynamo.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &req.ID})
		if err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":   *resp.Table.TableName,
				"name": *resp.Table.TableName,
				"arn":  *resp.Table.TableArn,
			},
		}, nil
	},
}

// tableAttributeDefinitions builds the definitions for the key attributes.
// Key types default to S; hashKeyType and rangeKeyType override.
func tableAttributeDefinitions(attrs map[string]any) []types.AttributeDefinition {
	hashKey := stringAttr(attrs, "hashKey")
	hashType := stringAttr(attrs, "hashKeyType")
	if hashType == "" {
		hashType = "S"
	}
	defs := []types.AttributeDefinition{{
		AttributeName: &hashKey,
		AttributeType: types.ScalarAttributeType(hashType),
	}}

	if rangeKey := stringAttr(attrs, "rangeKey"); rangeKey != "" {
		rangeType := stringAttr(attrs, "rangeKeyType")
		if rangeType == "" {
			rangeType = "S"
		}
		defs = append(defs, types.AttributeDefinition{
			AttributeName: &rangeKey,
			AttributeType: types.ScalarAttributeType(rangeType),
		})
	}
	return defs
}

func tableKeySchema(attrs map[string]any) []types.KeySchemaElement {
	hashKey := stringAttr(attrs, "hashKey")
	schema := []types.KeySchemaElement{{
		AttributeName: &hashKey,
		KeyType:       types.KeyTypeHash,
	}}
	if rangeKey := stringAttr(attrs, "rangeKey"); rangeKey != "" {
		schema = append(schema, types.KeySchemaElement{
			AttributeName: &rangeKey,
			KeyType:       types.KeyTypeRange,
		})
	}
	return schema
}

func tableBillingMode(attrs map[string]any) types.BillingMode {
	if mode := stringAttr(attrs, "billingMode"); mode != "" {
		return types.BillingMode(mode)
	}
	return types.BillingModePayPerRequest
}

func tableThroughput(attrs map[string]any) *types.ProvisionedThroughput {
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  func(i int64) *int64 { return &i }(int64(intAttr(attrs, "readCapacity", 5))),
		WriteCapacityUnits: func(i int64) *int64 { return &i }(int64(intAttr(attrs, "writeCapacity", 5))),
	}
}

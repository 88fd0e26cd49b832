package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// How long to wait for an RDS instance to become available after create.
// RDS provisioning is the slowest operation in the provider by far.
const databaseCreateWait = 20 * time.Minute

// database is an RDS instance. Engine and master username are fixed at
// creation; instance class, storage and password change in place.
var databaseHandler = &handler{
	required: []string{"engine", "instanceClass", "username", "password"},
	forceNew: []string{"engine", "username"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		identifier := stringAttr(req.Attributes, "identifier")
		if identifier == "" {
			identifier = req.Name
		}
		engine := stringAttr(req.Attributes, "engine")
		class := stringAttr(req.Attributes, "instanceClass")
		username := stringAttr(req.Attributes, "username")
		password := stringAttr(req.Attributes, "password")

		_, err := c.rds.CreateDBInstance(ctx, &rds.CreateDBInstanceInput{
			DBInstanceIdentifier: &identifier,
			Engine:               &engine,
			DBInstanceClass:      &class,
			MasterUsername:       &username,
			MasterUserPassword:   &password,
			AllocatedStorage:     func(i int32) *int32 { return &i }(int32(intAttr(req.Attributes, "allocatedStorage", 20))),
		})
		if err != nil {
			return "", nil, err
		}

		// The instance is unusable until available; downstream resources
		// reference its endpoint, so wait here.
		waiter := rds.NewDBInstanceAvailableWaiter(c.rds)
		if err := waiter.Wait(ctx, &rds.DescribeDBInstancesInput{
			DBInstanceIdentifier: &identifier,
		}, databaseCreateWait); err != nil {
			return "", nil, err
		}

		outputs, err := describeDatabase(ctx, c, identifier)
		if err != nil {
			return "", nil, err
		}
		return identifier, outputs, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		input := &rds.ModifyDBInstanceInput{
			DBInstanceIdentifier: &req.ID,
			ApplyImmediately:     func(b bool) *bool { return &b }(true),
		}
		if changed["instanceClass"] {
			class := stringAttr(req.Attributes, "instanceClass")
			input.DBInstanceClass = &class
		}
		if changed["allocatedStorage"] {
			storage := int32(intAttr(req.Attributes, "allocatedStorage", 20))
			input.AllocatedStorage = &storage
		}
		if changed["password"] {
			password := stringAttr(req.Attributes, "password")
			input.MasterUserPassword = &password
		}
		if _, err := c.rds.ModifyDBInstance(ctx, input); err != nil {
			return nil, err
		}
		return describeDatabase(ctx, c, req.ID)
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.rds.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
			DBInstanceIdentifier: &req.ID,
			SkipFinalSnapshot:    func(b bool) *bool { return &b }(true),
		})
		return err
	},
}

func describeDatabase(ctx context.Context, c *clients, identifier string) (map[string]any, error) {
	resp, err := c.rds.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: &identifier,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.DBInstances) == 0 {
		return nil, provider.NewError(provider.CodeNotFound, "db instance %q not found", identifier)
	}
	db := resp.DBInstances[0]
	outputs := map[string]any{
		"identifier": *db.DBInstanceIdentifier,
		"arn":        *db.DBInstanceArn,
	}
	if db.Endpoint != nil {
		outputs["endpoint"] = *db.Endpoint.Address
		outputs["port"] = int(*db.Endpoint.Port)
	}
	return outputs, nil
}

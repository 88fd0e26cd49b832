package aws

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/provider"
)

func TestKindsAreSortedAndComplete(t *testing.T) {
	p := New()

	kinds := p.Kinds()
	assert.IsIncreasing(t, kinds)
	assert.ElementsMatch(t, []string{
		"network", "subnet", "securityPolicy", "cluster", "database", "table",
		"service", "topic", "queue", "function", "bucket", "role", "key",
		"secret", "logGroup", "zone", "record", "repository",
	}, kinds)
}

func TestValidate_UnknownKind(t *testing.T) {
	p := New()

	err := p.Validate(context.Background(), &provider.ValidateRequest{Kind: "mainframe", Name: "x"})
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.CodeUnsupported, perr.Code)
}

func TestValidate_RequiredAttributes(t *testing.T) {
	p := New()
	ctx := context.Background()

	err := p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "network",
		Name:       "main",
		Attributes: map[string]any{"tags": map[string]any{"env": "dev"}},
	})
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.CodeValidation, perr.Code)
	assert.Contains(t, perr.Message, "cidrBlock")

	err = p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "network",
		Name:       "main",
		Attributes: map[string]any{"cidrBlock": "10.0.0.0/16"},
	})
	assert.NoError(t, err)
}

func TestValidate_SubnetNeedsVpc(t *testing.T) {
	p := New()

	err := p.Validate(context.Background(), &provider.ValidateRequest{
		Kind:       "subnet",
		Name:       "a",
		Attributes: map[string]any{"cidrBlock": "10.0.1.0/24"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vpcId")
}

func TestValidate_FunctionCodeArchive(t *testing.T) {
	p := New()
	ctx := context.Background()

	attrs := map[string]any{
		"runtime": "go1.x",
		"handler": "bootstrap",
		"role":    "arn:aws:iam::123456789012:role/lambda",
		"code":    filepath.Join(t.TempDir(), "missing.zip"),
	}
	err := p.Validate(ctx, &provider.ValidateRequest{Kind: "function", Name: "worker", Attributes: attrs})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not readable")

	archive := filepath.Join(t.TempDir(), "code.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK"), 0o644))
	attrs["code"] = archive
	assert.NoError(t, p.Validate(ctx, &provider.ValidateRequest{Kind: "function", Name: "worker", Attributes: attrs}))
}

func TestValidate_RecordNeedsValueOrAlias(t *testing.T) {
	p := New()
	ctx := context.Background()

	err := p.Validate(ctx, &provider.ValidateRequest{
		Kind: "record",
		Name: "www",
		Attributes: map[string]any{
			"zoneId": "Z123",
			"type":   "A",
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alias")

	err = p.Validate(ctx, &provider.ValidateRequest{
		Kind: "record",
		Name: "www",
		Attributes: map[string]any{
			"zoneId":  "Z123",
			"type":    "A",
			"records": []any{"203.0.113.10"},
		},
	})
	assert.NoError(t, err)
}

func TestDiff_ForceNewPerKind(t *testing.T) {
	p := New()
	ctx := context.Background()

	tests := []struct {
		kind        string
		attr        string
		destructive bool
	}{
		{"network", "cidrBlock", true},
		{"network", "tags", false},
		{"subnet", "availabilityZone", true},
		{"subnet", "mapPublicIpOnLaunch", false},
		{"cluster", "roleArn", true},
		{"cluster", "version", false},
		{"database", "engine", true},
		{"database", "instanceClass", false},
		{"table", "hashKey", true},
		{"table", "billingMode", false},
		{"service", "launchType", true},
		{"service", "desiredCount", false},
		{"queue", "fifo", true},
		{"queue", "visibilityTimeout", false},
		{"function", "name", true},
		{"function", "runtime", false},
		{"key", "description", false},
		{"record", "type", true},
		{"record", "ttl", false},
	}

	for _, tc := range tests {
		t.Run(tc.kind+"/"+tc.attr, func(t *testing.T) {
			resp, err := p.Diff(ctx, &provider.DiffRequest{
				Kind:    tc.kind,
				Name:    "x",
				Prior:   map[string]any{tc.attr: "before"},
				Desired: map[string]any{tc.attr: "after"},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{tc.attr}, resp.Changed)
			assert.Equal(t, tc.destructive, resp.Destructive)
		})
	}
}

func TestDiff_ReplaceOnExtendsForceNew(t *testing.T) {
	p := New()

	resp, err := p.Diff(context.Background(), &provider.DiffRequest{
		Kind:      "network",
		Name:      "main",
		Prior:     map[string]any{"tags": map[string]any{"env": "dev"}},
		Desired:   map[string]any{"tags": map[string]any{"env": "prod"}},
		ReplaceOn: []string{"tags"},
	})
	require.NoError(t, err)

	assert.True(t, resp.Destructive)
	assert.Equal(t, []string{"tags"}, resp.ForcedBy)
}

func TestRead_UnsupportedKind(t *testing.T) {
	p := New()

	_, err := p.Read(context.Background(), &provider.ReadRequest{Kind: "cluster", ID: "prod"})
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.CodeUnsupported, perr.Code)
}

func TestWrapErr_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      provider.ErrorCode
		retryable bool
	}{
		{
			name:      "throttling",
			err:       &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"},
			code:      provider.CodeThrottling,
			retryable: true,
		},
		{
			name: "not found",
			err:  &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "gone"},
			code: provider.CodeNotFound,
		},
		{
			name: "not found without suffix",
			err:  &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "gone"},
			code: provider.CodeNotFound,
		},
		{
			name: "conflict",
			err:  &smithy.GenericAPIError{Code: "BucketAlreadyExists", Message: "taken"},
			code: provider.CodeConflict,
		},
		{
			name: "in use",
			err:  &smithy.GenericAPIError{Code: "ResourceInUseException", Message: "busy"},
			code: provider.CodeConflict,
		},
		{
			name:      "server fault",
			err:       &smithy.GenericAPIError{Code: "InternalError", Message: "oops", Fault: smithy.FaultServer},
			code:      provider.CodeUnavailable,
			retryable: true,
		},
		{
			name: "unclassified",
			err:  errors.New("connection reset"),
			code: provider.CodeInternal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := wrapErr("create", "bucket", "assets", tc.err)

			var perr *provider.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.code, perr.Code)
			assert.Equal(t, tc.retryable, perr.Retryable)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestWrapErr_PassesThroughProviderErrors(t *testing.T) {
	orig := provider.NewError(provider.CodeValidation, "bad attribute")

	assert.Same(t, orig, wrapErr("create", "bucket", "assets", orig))
}

func TestWrapErr_NilStaysNil(t *testing.T) {
	assert.NoError(t, wrapErr("delete", "bucket", "assets", nil))
}

func TestAttributeHelpers(t *testing.T) {
	attrs := map[string]any{
		"count":   float64(3),
		"port":    42,
		"name":    "edge",
		"subnets": []any{"subnet-1", "subnet-2"},
		"tags":    map[string]any{"env": "dev", "skip": 7},
	}

	assert.Equal(t, 3, intAttr(attrs, "count", 0))
	assert.Equal(t, 42, intAttr(attrs, "port", 0))
	assert.Equal(t, 9, intAttr(attrs, "missing", 9))
	assert.Equal(t, "edge", nameAttr(attrs, "fallback"))
	assert.Equal(t, "fallback", nameAttr(map[string]any{}, "fallback"))
	assert.Equal(t, []string{"subnet-1", "subnet-2"}, stringsAttr(attrs, "subnets"))
	assert.Equal(t, map[string]string{"env": "dev"}, tagsAttr(attrs, "tags"))
	assert.Nil(t, stringsAttr(attrs, "missing"))
}

func TestQueueAttributes(t *testing.T) {
	attrs := queueAttributes(map[string]any{
		"visibilityTimeout":         60,
		"delaySeconds":              0,
		"contentBasedDeduplication": true,
	})

	assert.Equal(t, map[string]string{
		"VisibilityTimeout":         "60",
		"DelaySeconds":              "0",
		"ContentBasedDeduplication": "true",
	}, attrs)
}

func TestIngressPermissions(t *testing.T) {
	perms := ingressPermissions(map[string]any{
		"ingress": []any{
			map[string]any{
				"fromPort":   443,
				"toPort":     443,
				"protocol":   "tcp",
				"cidrBlocks": []any{"0.0.0.0/0"},
			},
			map[string]any{
				"fromPort": 53,
				"toPort":   53,
			},
		},
	})

	require.Len(t, perms, 2)
	assert.Equal(t, int32(443), *perms[0].FromPort)
	assert.Equal(t, "tcp", *perms[0].IpProtocol)
	require.Len(t, perms[0].IpRanges, 1)
	assert.Equal(t, "0.0.0.0/0", *perms[0].IpRanges[0].CidrIp)

	// protocol defaults to tcp
	assert.Equal(t, "tcp", *perms[1].IpProtocol)
}

func TestTableSchema(t *testing.T) {
	attrs := map[string]any{
		"hashKey":      "pk",
		"rangeKey":     "sk",
		"rangeKeyType": "N",
	}

	defs := tableAttributeDefinitions(attrs)
	require.Len(t, defs, 2)
	assert.Equal(t, "pk", *defs[0].AttributeName)
	assert.Equal(t, "S", string(defs[0].AttributeType))
	assert.Equal(t, "N", string(defs[1].AttributeType))

	schema := tableKeySchema(attrs)
	require.Len(t, schema, 2)
	assert.Equal(t, "HASH", string(schema[0].KeyType))
	assert.Equal(t, "RANGE", string(schema[1].KeyType))

	hashOnly := tableKeySchema(map[string]any{"hashKey": "id"})
	assert.Len(t, hashOnly, 1)
}

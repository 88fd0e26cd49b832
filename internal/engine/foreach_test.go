package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/ir"
)

func TestExpandForEach_NoIteration(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", Properties: map[string]any{"key": "val"}},
	}
	expanded := ExpandForEach(resources)
	assert.Len(t, expanded, 1)
	assert.Equal(t, "a", expanded[0].Name)
}

func TestExpandForEach_Count(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "null_resource",
			Name:     "server",
			Provider: "null",
			Count:    3,
			Properties: map[string]any{
				"index": "${count.index}",
				"name":  "server-${count.index}",
			},
		},
	}
	expanded := ExpandForEach(resources)
	require.Len(t, expanded, 3)

	assert.Equal(t, "server[0]", expanded[0].Name)
	assert.Equal(t, 0, expanded[0].Properties["index"])
	assert.Equal(t, "server-0", expanded[0].Properties["name"])

	assert.Equal(t, "server[1]", expanded[1].Name)
	assert.Equal(t, 1, expanded[1].Properties["index"])

	assert.Equal(t, "server[2]", expanded[2].Name)
	assert.Equal(t, "server-2", expanded[2].Properties["name"])

	// instances must not re-expand
	assert.Zero(t, expanded[0].Count)
}

func TestExpandForEach_ForEach(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "bucket",
			Name:     "store",
			Provider: "aws",
			ForEach: map[string]any{
				"logs": "logs-bucket",
				"data": "data-bucket",
			},
			Properties: map[string]any{
				"bucketName": "${each.value}",
				"tag":        "${each.key}",
			},
		},
	}
	expanded := ExpandForEach(resources)
	require.Len(t, expanded, 2)

	// keys expand in sorted order
	assert.Equal(t, `store["data"]`, expanded[0].Name)
	assert.Equal(t, "data-bucket", expanded[0].Properties["bucketName"])
	assert.Equal(t, "data", expanded[0].Properties["tag"])

	assert.Equal(t, `store["logs"]`, expanded[1].Name)
	assert.Equal(t, "logs-bucket", expanded[1].Properties["bucketName"])
}

func TestExpandForEach_EachValueKeepsType(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "subnet",
			Name:     "net",
			Provider: "aws",
			ForEach: map[string]any{
				"a": map[string]any{"cidrBlock": "10.0.1.0/24", "public": true},
			},
			Properties: map[string]any{
				"config": "${each.value}",
			},
		},
	}
	expanded := ExpandForEach(resources)
	require.Len(t, expanded, 1)

	config, ok := expanded[0].Properties["config"].(map[string]any)
	require.True(t, ok, "exact placeholder should keep the value's type")
	assert.Equal(t, "10.0.1.0/24", config["cidrBlock"])
}

func TestExpandForEach_DeterministicOrder(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type: "null_resource", Name: "r", Provider: "null",
			ForEach:    map[string]any{"c": 1, "a": 2, "b": 3},
			Properties: map[string]any{},
		},
	}

	for i := 0; i < 20; i++ {
		expanded := ExpandForEach(resources)
		require.Len(t, expanded, 3)
		assert.Equal(t, `r["a"]`, expanded[0].Name)
		assert.Equal(t, `r["b"]`, expanded[1].Name)
		assert.Equal(t, `r["c"]`, expanded[2].Name)
	}
}

func TestExpandForEach_PreservesLifecycle(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "null_resource",
			Name:     "server",
			Provider: "null",
			Count:    2,
			Timeout:  "5m",
			Lifecycle: &ir.Lifecycle{
				PreventDestroy: true,
				IgnoreChanges:  []string{"tags"},
			},
			Properties: map[string]any{},
		},
	}
	expanded := ExpandForEach(resources)
	require.Len(t, expanded, 2)

	for _, r := range expanded {
		require.NotNil(t, r.Lifecycle)
		assert.True(t, r.Lifecycle.PreventDestroy)
		assert.Equal(t, []string{"tags"}, r.Lifecycle.IgnoreChanges)
		assert.Equal(t, "5m", r.Timeout)
	}
}

func TestTransitiveDeps(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", DependsOn: []string{"null_resource.b"}, Properties: map[string]any{}},
		{Type: "null_resource", Name: "b", Provider: "null", DependsOn: []string{"null_resource.c"}, Properties: map[string]any{}},
		{Type: "null_resource", Name: "c", Provider: "null", Properties: map[string]any{}},
	}

	dag, err := BuildDAG(resources)
	require.NoError(t, err)

	deps := dag.TransitiveDeps("null_resource.a")
	assert.Len(t, deps, 2)
	assert.Contains(t, deps, "null_resource.b")
	assert.Contains(t, deps, "null_resource.c")

	deps = dag.TransitiveDeps("null_resource.b")
	assert.Len(t, deps, 1)
	assert.Contains(t, deps, "null_resource.c")

	assert.Empty(t, dag.TransitiveDeps("null_resource.c"))

	dependents := dag.TransitiveDependents("null_resource.c")
	assert.Len(t, dependents, 2)
	assert.Contains(t, dependents, "null_resource.a")
	assert.Contains(t, dependents, "null_resource.b")
}

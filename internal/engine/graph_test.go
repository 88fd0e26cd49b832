package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/ir"
)

func TestBuildDAG_NoDependencies(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null"},
		{Type: "null_resource", Name: "b", Provider: "null"},
		{Type: "null_resource", Name: "c", Provider: "null"},
	}

	dag, err := BuildDAG(resources)
	require.NoError(t, err)

	// with no edges, creation order is registration order
	assert.Equal(t, []string{"null_resource.a", "null_resource.b", "null_resource.c"}, dag.CreationOrder())
}

func TestBuildDAG_ExplicitDependsOn(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", DependsOn: []string{"null_resource.b"}},
		{Type: "null_resource", Name: "b", Provider: "null"},
		{Type: "null_resource", Name: "c", Provider: "null", DependsOn: []string{"null_resource.a"}},
	}

	dag, err := BuildDAG(resources)
	require.NoError(t, err)

	order := dag.CreationOrder()
	require.Len(t, order, 3)

	posB := indexOf(order, "null_resource.b")
	posA := indexOf(order, "null_resource.a")
	posC := indexOf(order, "null_resource.c")

	assert.Less(t, posB, posA, "b should come before a")
	assert.Less(t, posA, posC, "a should come before c")
}

func TestBuildDAG_ImplicitRef(t *testing.T) {
	resources := []*ir.Resource{
		{
			Type:     "subnet",
			Name:     "app",
			Provider: "aws",
			Properties: map[string]any{
				"vpcId": "ref://network/main/id",
			},
		},
		{Type: "network", Name: "main", Provider: "aws"},
	}

	dag, err := BuildDAG(resources)
	require.NoError(t, err)

	order := dag.CreationOrder()
	require.Len(t, order, 2)

	posNet := indexOf(order, "network.main")
	posSub := indexOf(order, "subnet.app")

	assert.Less(t, posNet, posSub, "network should be created before subnet")
}

func TestBuildDAG_RegistrationOrderBreaksTies(t *testing.T) {
	// z and m both become ready once root exists; registration order must
	// decide, not name order or map iteration
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "z", Provider: "null", DependsOn: []string{"null_resource.root"}},
		{Type: "null_resource", Name: "m", Provider: "null", DependsOn: []string{"null_resource.root"}},
		{Type: "null_resource", Name: "root", Provider: "null"},
		{Type: "null_resource", Name: "a", Provider: "null", DependsOn: []string{"null_resource.root"}},
	}

	for i := 0; i < 20; i++ {
		dag, err := BuildDAG(resources)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"null_resource.root",
			"null_resource.z",
			"null_resource.m",
			"null_resource.a",
		}, dag.CreationOrder())
	}
}

func TestBuildDAG_CycleDetection(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", DependsOn: []string{"null_resource.b"}},
		{Type: "null_resource", Name: "b", Provider: "null", DependsOn: []string{"null_resource.c"}},
		{Type: "null_resource", Name: "c", Provider: "null", DependsOn: []string{"null_resource.a"}},
	}

	_, err := BuildDAG(resources)
	require.Error(t, err)

	var cyc *CyclicDependencyError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{
		"null_resource.a",
		"null_resource.b",
		"null_resource.c",
		"null_resource.a",
	}, cyc.Cycle)
	assert.Contains(t, err.Error(), "null_resource.a -> null_resource.b -> null_resource.c -> null_resource.a")
}

func TestBuildDAG_SelfReferenceIsCycle(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", DependsOn: []string{"null_resource.a"}},
	}

	_, err := BuildDAG(resources)
	var cyc *CyclicDependencyError
	require.True(t, errors.As(err, &cyc))
}

func TestBuildDAG_TwoResourceRefCycle(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", Properties: map[string]any{
			"x": "ref://null_resource/b/id",
		}},
		{Type: "null_resource", Name: "b", Provider: "null", Properties: map[string]any{
			"x": "ref://null_resource/a/id",
		}},
	}

	_, err := BuildDAG(resources)
	var cyc *CyclicDependencyError
	require.True(t, errors.As(err, &cyc))
	assert.Len(t, cyc.Cycle, 3)
	assert.Equal(t, cyc.Cycle[0], cyc.Cycle[len(cyc.Cycle)-1])
}

func TestBuildDAG_UnresolvedRef(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "subnet", Name: "app", Provider: "aws", Properties: map[string]any{
			"vpcId": "ref://network/missing/id",
		}},
	}

	_, err := BuildDAG(resources)
	require.Error(t, err)

	var unresolved *UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "subnet.app", unresolved.Source)
	assert.Equal(t, "network.missing", unresolved.Target)
	assert.Equal(t, "ref://network/missing/id", unresolved.Reference)
}

func TestBuildDAG_UnresolvedDependsOn(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", DependsOn: []string{"null_resource.gone"}},
	}

	_, err := BuildDAG(resources)
	var unresolved *UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "null_resource.gone", unresolved.Target)
}

func TestBuildDAG_MalformedRef(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", Properties: map[string]any{
			"x": "ref://network/main",
		}},
	}

	_, err := BuildDAG(resources)
	var unresolved *UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Contains(t, err.Error(), "malformed reference")
}

func TestBuildDAG_DestructionOrder(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "subnet", Name: "app", Provider: "aws", DependsOn: []string{"network.main"}},
		{Type: "network", Name: "main", Provider: "aws"},
		{Type: "service", Name: "web", Provider: "aws", DependsOn: []string{"subnet.app"}},
	}

	dag, err := BuildDAG(resources)
	require.NoError(t, err)

	order := dag.CreationOrder()
	rev := dag.DestructionOrder()
	require.Len(t, rev, 3)

	// destruction order is exactly the creation order reversed
	for i, addr := range order {
		assert.Equal(t, addr, rev[len(rev)-1-i])
	}
	assert.Equal(t, "service.web", rev[0])
	assert.Equal(t, "network.main", rev[2])
}

func TestBuildDAGFromState(t *testing.T) {
	resources := []*ir.ResourceState{
		{Type: "subnet", Name: "app", Dependencies: []string{"network.main"}},
		{Type: "network", Name: "main"},
	}

	dag, err := BuildDAGFromState(resources)
	require.NoError(t, err)

	order := dag.CreationOrder()
	posNet := indexOf(order, "network.main")
	posSub := indexOf(order, "subnet.app")
	assert.Less(t, posNet, posSub)

	rev := dag.DestructionOrder()
	assert.Less(t, indexOf(rev, "subnet.app"), indexOf(rev, "network.main"))
}

func TestBuildDAGFromState_DanglingDependency(t *testing.T) {
	resources := []*ir.ResourceState{
		{Type: "subnet", Name: "app", Dependencies: []string{"network.gone"}},
	}

	dag, err := BuildDAGFromState(resources)
	require.NoError(t, err)
	assert.Len(t, dag.CreationOrder(), 2)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref      string
		wantType string
		wantName string
		wantAttr string
		wantOK   bool
	}{
		{"ref://network/main/id", "network", "main", "id", true},
		{"ref://bucket/logs/arn", "bucket", "logs", "arn", true},
		{"not-a-ref", "", "", "", false},
		{"ref://short", "", "", "", false},
		{"ref://network/main", "", "", "", false},
		{"ref:///main/id", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			typ, name, attr, ok := ParseRef(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantType, typ)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantAttr, attr)
		})
	}
}

func TestExtractRefs(t *testing.T) {
	props := map[string]any{
		"vpcId": "ref://network/main/id",
		"name":  "app",
		"tags": map[string]any{
			"bucket": "ref://bucket/logs/arn",
		},
		"list": []any{
			"ref://role/runner/arn",
			"plain-string",
		},
	}

	refs := extractRefs(props)
	assert.Len(t, refs, 3)
	assert.Contains(t, refs, "ref://network/main/id")
	assert.Contains(t, refs, "ref://bucket/logs/arn")
	assert.Contains(t, refs, "ref://role/runner/arn")
}

func TestDependencies(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "null_resource", Name: "a", Provider: "null", DependsOn: []string{"null_resource.b", "null_resource.c"}},
		{Type: "null_resource", Name: "b", Provider: "null"},
		{Type: "null_resource", Name: "c", Provider: "null"},
	}

	dag, err := BuildDAG(resources)
	require.NoError(t, err)

	deps := dag.Dependencies("null_resource.a")
	assert.Len(t, deps, 2)
	assert.Contains(t, deps, "null_resource.b")
	assert.Contains(t, deps, "null_resource.c")

	assert.Equal(t, []string{"null_resource.a"}, dag.Dependents("null_resource.b"))
}

func TestToDOT(t *testing.T) {
	resources := []*ir.Resource{
		{Type: "subnet", Name: "app", Provider: "aws", DependsOn: []string{"network.main"}},
		{Type: "network", Name: "main", Provider: "aws"},
	}

	dag, err := BuildDAG(resources)
	require.NoError(t, err)

	dot := dag.ToDOT()
	assert.Contains(t, dot, "digraph resources {")
	assert.Contains(t, dot, `"subnet.app" -> "network.main";`)
}

func indexOf(slice []string, item string) int {
	for i, s := range slice {
		if s == item {
			return i
		}
	}
	return -1
}

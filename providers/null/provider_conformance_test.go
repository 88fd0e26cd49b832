package null

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// Provider conformance suite: the full lifecycle every provider must
// support. Validate -> Create -> Read -> Diff (no change) -> Diff
// (destructive) -> Update -> Delete.

func TestConformance_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	p := New()

	attrs := map[string]any{
		"triggers": map[string]any{"key": "value"},
		"note":     "first",
	}

	// 1. Validate desired attributes
	err := p.Validate(ctx, &provider.ValidateRequest{Kind: "null_resource", Name: "test", Attributes: attrs})
	require.NoError(t, err)

	// 2. Create
	created, err := p.Create(ctx, &provider.CreateRequest{Kind: "null_resource", Name: "test", Attributes: attrs})
	require.NoError(t, err)
	require.Equal(t, "null-test", created.ID)

	// 3. Read it back
	read, err := p.Read(ctx, &provider.ReadRequest{Kind: "null_resource", ID: created.ID, Attributes: attrs})
	require.NoError(t, err)
	assert.True(t, read.Exists)

	// 4. Diff with identical attributes is a no-op
	diff, err := p.Diff(ctx, &provider.DiffRequest{Kind: "null_resource", Prior: attrs, Desired: attrs})
	require.NoError(t, err)
	assert.Empty(t, diff.Changed)

	// 5. Changing triggers is destructive
	changedTriggers := map[string]any{
		"triggers": map[string]any{"key": "other"},
		"note":     "first",
	}
	diff, err = p.Diff(ctx, &provider.DiffRequest{Kind: "null_resource", Prior: attrs, Desired: changedTriggers})
	require.NoError(t, err)
	assert.True(t, diff.Destructive)

	// 6. Changing anything else updates in place
	changedNote := map[string]any{
		"triggers": map[string]any{"key": "value"},
		"note":     "second",
	}
	diff, err = p.Diff(ctx, &provider.DiffRequest{Kind: "null_resource", Prior: attrs, Desired: changedNote})
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, diff.Changed)
	assert.False(t, diff.Destructive)

	updated, err := p.Update(ctx, &provider.UpdateRequest{
		Kind: "null_resource", Name: "test", ID: created.ID,
		Prior: attrs, Attributes: changedNote,
	})
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Outputs["note"])

	// 7. Delete
	err = p.Delete(ctx, &provider.DeleteRequest{Kind: "null_resource", Name: "test", ID: created.ID})
	require.NoError(t, err)
}

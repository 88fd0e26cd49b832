package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/ir"
)

func TestManager_ReadMissingFile(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "state.json"))

	s, err := mgr.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.StateVersion, s.Version)
	assert.Equal(t, 0, s.Serial)
	assert.Empty(t, s.Resources)
}

func TestManager_ReadWrite(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, ".ferrite", "state.json")

	mgr := NewManager(statePath)
	ctx := context.Background()

	s, err := mgr.Read(ctx)
	require.NoError(t, err)

	s.Serial = 3
	s.Resources = []*ir.ResourceState{
		{
			Type:         "bucket",
			Name:         "assets",
			Provider:     "aws",
			ID:           "assets-bucket",
			Inputs:       map[string]any{"versioning": true},
			InputsHash:   "hash123",
			Outputs:      map[string]any{"id": "assets-bucket", "arn": "arn:aws:s3:::assets-bucket"},
			Dependencies: []string{"key.main"},
			LastApplied:  "2026-08-20T10:00:00Z",
		},
	}

	require.NoError(t, mgr.Write(ctx, s))

	got, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Serial)
	require.Len(t, got.Resources, 1)

	rs := got.Resources[0]
	assert.Equal(t, "bucket.assets", rs.Addr())
	assert.Equal(t, "assets-bucket", rs.ID)
	assert.Equal(t, "hash123", rs.InputsHash)
	assert.Equal(t, true, rs.Inputs["versioning"])
	assert.Equal(t, []string{"key.main"}, rs.Dependencies)
	assert.Equal(t, "2026-08-20T10:00:00Z", rs.LastApplied)
}

func TestManager_WriteMintsLineage(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	s, err := mgr.Read(ctx)
	require.NoError(t, err)
	require.Empty(t, s.Lineage)

	require.NoError(t, mgr.Write(ctx, s))
	assert.NotEmpty(t, s.Lineage)

	// the lineage sticks across writes
	first := s.Lineage
	require.NoError(t, mgr.Write(ctx, s))
	got, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got.Lineage)
}

func TestManager_WriteLeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	mgr := NewManager(filepath.Join(tmpDir, "state.json"))
	ctx := context.Background()

	s, err := mgr.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, mgr.Write(ctx, s))
	require.NoError(t, mgr.Write(ctx, s))

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestManager_RejectsNewerVersion(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"version": 99, "serial": 1, "lineage": "x", "resources": []}`), 0644))

	_, err := NewManager(statePath).Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestManager_RejectsGarbage(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("not json"), 0644))

	_, err := NewManager(statePath).Read(context.Background())
	require.Error(t, err)
}

func TestManager_EncryptedRoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "unit-test-key-for-state-files!!!")

	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")
	mgr := NewManager(statePath)
	ctx := context.Background()

	s, err := mgr.Read(ctx)
	require.NoError(t, err)
	s.Resources = []*ir.ResourceState{{Type: "secret", Name: "db", Provider: "aws", ID: "sec-1"}}
	require.NoError(t, mgr.Write(ctx, s))

	// on disk the document is opaque
	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "sec-1")

	got, err := mgr.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "sec-1", got.Resources[0].ID)
}

func TestManager_Lock(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "state.json"))

	require.NoError(t, mgr.Lock())

	// a second hold fails while the lock exists
	err := mgr.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another process")

	require.NoError(t, mgr.Unlock())
	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())

	// unlocking twice is fine
	require.NoError(t, mgr.Unlock())
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, filepath.Join("proj", ".ferrite", "state.json"), PathFor("proj", "default"))
	assert.Equal(t, filepath.Join("proj", ".ferrite", "state.json"), PathFor("proj", ""))
	assert.Equal(t, filepath.Join("proj", ".ferrite", "state.staging.json"), PathFor("proj", "staging"))
}

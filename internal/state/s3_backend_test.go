package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/ir"
)

func TestNewS3BackendRequiresBucket(t *testing.T) {
	_, err := newS3Backend(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestNewS3BackendDefaults(t *testing.T) {
	config := map[string]string{
		"bucket": "my-bucket",
	}
	b, err := newS3Backend(config)
	// May fail on AWS config load in CI without credentials, which is expected
	if err != nil {
		t.Skipf("Skipping S3 backend test (no AWS credentials): %v", err)
	}
	s3b, ok := b.(*s3Backend)
	require.True(t, ok)
	assert.Equal(t, "my-bucket", s3b.bucket)
	assert.Equal(t, "ferrite/state.json", s3b.key)
	assert.Equal(t, "us-east-1", s3b.region)
	assert.Empty(t, s3b.dynamoDBTable)
	assert.False(t, s3b.encrypt)
}

func TestNewS3BackendCustomConfig(t *testing.T) {
	config := map[string]string{
		"bucket":         "custom-bucket",
		"key":            "custom/path/state.json",
		"region":         "eu-west-1",
		"dynamodb_table": "ferrite-locks",
		"encrypt":        "true",
		"profile":        "staging",
	}
	b, err := newS3Backend(config)
	if err != nil {
		t.Skipf("Skipping S3 backend test (no AWS credentials): %v", err)
	}
	s3b, ok := b.(*s3Backend)
	require.True(t, ok)
	assert.Equal(t, "custom-bucket", s3b.bucket)
	assert.Equal(t, "custom/path/state.json", s3b.key)
	assert.Equal(t, "eu-west-1", s3b.region)
	assert.Equal(t, "ferrite-locks", s3b.dynamoDBTable)
	assert.True(t, s3b.encrypt)
}

func TestMarshalUnmarshalState(t *testing.T) {
	state := &ir.State{
		Version: ir.StateVersion,
		Serial:  2,
		Lineage: "abc-123",
		Resources: []*ir.ResourceState{
			{Type: "table", Name: "events", Provider: "aws", ID: "events-table"},
		},
	}

	data, err := MarshalState(state)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lineage": "abc-123"`)

	got, err := UnmarshalState(data)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Serial)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "table.events", got.Resources[0].Addr())
}

func TestUnmarshalState_NilResources(t *testing.T) {
	got, err := UnmarshalState([]byte(`{"version": 1, "serial": 0, "lineage": "x"}`))
	require.NoError(t, err)
	assert.NotNil(t, got.Resources)
	assert.Empty(t, got.Resources)
}

func TestNewBackendRejectsNilConfig(t *testing.T) {
	_, err := NewBackend(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestNewBackendRejectsUnknownType(t *testing.T) {
	_, err := NewBackend(&BackendConfig{Type: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend type")
}

func TestNewBackendLocalFallback(t *testing.T) {
	_, err := NewBackend(&BackendConfig{Type: "local"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state.Manager")
}

func TestNewBackendGCSNotImplemented(t *testing.T) {
	_, err := NewBackend(&BackendConfig{Type: "gcs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not yet implemented")
}

func TestNewBackendHTTPNotImplemented(t *testing.T) {
	_, err := NewBackend(&BackendConfig{Type: "http"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not yet implemented")
}

func TestLoadBackendConfig_Missing(t *testing.T) {
	cfg, err := LoadBackendConfig(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestSaveLoadBackendConfig(t *testing.T) {
	root := t.TempDir()
	want := &BackendConfig{
		Type:   "s3",
		Config: map[string]string{"bucket": "my-bucket", "region": "eu-west-1"},
	}
	require.NoError(t, SaveBackendConfig(root, want))

	got, err := LoadBackendConfig(root)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s3", got.Type)
	assert.Equal(t, "my-bucket", got.Config["bucket"])
}

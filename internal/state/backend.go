package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// Backend defines the interface for state storage backends.
type Backend interface {
	// Read loads the state from the backend.
	Read(ctx context.Context) (*ir.State, error)

	// Write saves the state to the backend.
	Write(ctx context.Context, state *ir.State) error

	// Lock acquires an exclusive lock on the state.
	Lock() error

	// Unlock releases the lock on the state.
	Unlock() error
}

// BackendConfig holds configuration for a state backend.
type BackendConfig struct {
	Type   string            `json:"type"` // "local", "s3", "gcs", "http"
	Config map[string]string `json:"config"`
}

// S3BackendConfig holds configuration for the S3 state backend.
type S3BackendConfig struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	Region        string `json:"region"`
	DynamoDBTable string `json:"dynamodb_table"` // for locking
	Encrypt       bool   `json:"encrypt"`
	Profile       string `json:"profile"`
}

// NewBackend creates a state backend from configuration.
func NewBackend(cfg *BackendConfig) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		return nil, fmt.Errorf("use state.Manager for local backend")
	case "s3":
		return newS3Backend(cfg.Config)
	case "gcs":
		return nil, fmt.Errorf("GCS backend not yet implemented")
	case "http":
		return nil, fmt.Errorf("HTTP backend not yet implemented")
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// LoadBackendConfig reads the backend configuration under root, if any.
// A missing file means the local backend is in use.
func LoadBackendConfig(root string) (*BackendConfig, error) {
	path := filepath.Join(root, Dir, "backend.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backend config %s: %w", path, err)
	}

	var cfg BackendConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse backend config %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveBackendConfig writes the backend configuration under root.
func SaveBackendConfig(root string, cfg *BackendConfig) error {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize backend config: %w", err)
	}

	path := filepath.Join(dir, "backend.json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write backend config %s: %w", path, err)
	}
	return nil
}

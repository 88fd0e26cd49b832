// Package state persists the resource state document. The local manager
// writes JSON under .ferrite/ with an atomic rename so a crash never leaves a
// half-written file; remote backends mirror the same contract.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/ferrite-io/ferrite/internal/ir"
)

const (
	// Dir is the working directory subfolder holding state and metadata.
	Dir = ".ferrite"

	defaultStateFile = "state.json"
)

// PathFor returns the state file path for a workspace under root.
func PathFor(root, workspace string) string {
	if workspace == "" || workspace == "default" {
		return filepath.Join(root, Dir, defaultStateFile)
	}
	return filepath.Join(root, Dir, fmt.Sprintf("state.%s.json", workspace))
}

// Manager handles reading and writing of local state. All access goes through
// one mutex so concurrent callers see whole-file snapshots only.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the state file location.
func (m *Manager) Path() string {
	return m.path
}

// Read loads the state from the configured path. A missing file yields an
// empty state. Encrypted files are transparently decrypted.
func (m *Manager) Read(ctx context.Context) (*ir.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return &ir.State{Version: ir.StateVersion, Resources: []*ir.ResourceState{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", m.path, err)
	}

	if IsEncrypted(raw) {
		raw, err = DecryptState(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt state: %w", err)
		}
	}

	state, err := UnmarshalState(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load state from %s: %w", m.path, err)
	}
	return state, nil
}

// Write saves the state to the configured path. The file is written to a
// temporary sibling and renamed into place so readers never observe a partial
// document. If FERRITE_STATE_ENCRYPTION_KEY is set the content is encrypted.
func (m *Manager) Write(ctx context.Context, state *ir.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state.Lineage == "" {
		// Lineage is minted exactly once, when a state file is first written,
		// and detects two unrelated states being mixed up.
		state.Lineage = uuid.NewString()
	}
	if state.Version == 0 {
		state.Version = ir.StateVersion
	}

	content, err := MarshalState(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(encrypted); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set state file mode: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file %s: %w", m.path, err)
	}
	return nil
}

// MarshalState renders a state document as indented JSON.
func MarshalState(state *ir.State) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// UnmarshalState parses a state document and rejects versions newer than this
// build understands.
func UnmarshalState(data []byte) (*ir.State, error) {
	var state ir.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("invalid state document: %w", err)
	}
	if state.Version > ir.StateVersion {
		return nil, fmt.Errorf("state version %d is newer than supported version %d", state.Version, ir.StateVersion)
	}
	if state.Resources == nil {
		state.Resources = []*ir.ResourceState{}
	}
	return &state, nil
}

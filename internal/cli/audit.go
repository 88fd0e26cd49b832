package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// AuditEntry is one line of the append-only audit log. Every mutating
// command writes an entry, including failed runs.
type AuditEntry struct {
	Timestamp string         `json:"timestamp"`
	Operation string         `json:"operation"` // "apply", "destroy", "import", "state.rm", "state.mv", ...
	User      string         `json:"user"`
	Workspace string         `json:"workspace"`
	Changes   []AuditChange  `json:"changes,omitempty"`
	Summary   map[string]int `json:"summary,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// AuditChange records a single resource change.
type AuditChange struct {
	Address string `json:"address"`
	Action  string `json:"action"`
}

func auditLogPath(root string) string {
	return filepath.Join(ferriteDir(root), "audit.log")
}

// writeAuditLog appends an entry as one JSON line. A log that cannot be
// opened never blocks the operation it records.
func writeAuditLog(root string, entry AuditEntry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if entry.User == "" {
		entry.User = currentUser()
	}
	if entry.Workspace == "" {
		entry.Workspace = currentWorkspace(root)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(auditLogPath(root), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// auditChanges condenses a plan into audit records, no-ops excluded.
func auditChanges(plan *ir.Plan) []AuditChange {
	var changes []AuditChange
	for _, change := range plan.Changes {
		if change.Action == ir.ActionNoOp {
			continue
		}
		changes = append(changes, AuditChange{
			Address: change.Address,
			Action:  string(change.Action),
		})
	}
	return changes
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}

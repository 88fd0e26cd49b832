package ir

// Action is the operation a plan step performs on a resource.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionReplace Action = "REPLACE"
	ActionDelete  Action = "DELETE"
	ActionNoOp    Action = "NOOP"
)

// Plan represents a calculated execution plan.
type Plan struct {
	Metadata *PlanMetadata     `json:"metadata"`
	Changes  []*ResourceChange `json:"changes"`
	Summary  *PlanSummary      `json:"summary"`
	Outputs  map[string]any    `json:"outputs,omitempty"`
}

type PlanMetadata struct {
	Timestamp string `json:"timestamp"`
}

// ResourceChange is one plan step. Changes are ordered so that a step never
// precedes the steps its resource depends on; deletions are ordered in
// reverse.
type ResourceChange struct {
	Address string                   `json:"address"`
	Action  Action                   `json:"action"`
	Desired *Resource                `json:"resource,omitempty"`
	Prior   *Resource                `json:"prior,omitempty"`
	Diff    map[string]*PropertyDiff `json:"diff,omitempty"`
}

type PropertyDiff struct {
	Before      any    `json:"before,omitempty"`
	After       any    `json:"after,omitempty"`
	Destructive bool   `json:"destructive,omitempty"` // change forces delete + recreate
	Action      string `json:"action"`                // "create", "update", "delete"
}

type PlanSummary struct {
	Create  int `json:"create"`
	Update  int `json:"update"`
	Replace int `json:"replace"`
	Delete  int `json:"delete"`
	NoOp    int `json:"noop"`
}

// Count tallies one change into the summary.
func (s *PlanSummary) Count(action Action) {
	switch action {
	case ActionCreate:
		s.Create++
	case ActionUpdate:
		s.Update++
	case ActionReplace:
		s.Replace++
	case ActionDelete:
		s.Delete++
	case ActionNoOp:
		s.NoOp++
	}
}

// HasChanges reports whether the plan performs any mutation.
func (s *PlanSummary) HasChanges() bool {
	return s.Create+s.Update+s.Replace+s.Delete > 0
}

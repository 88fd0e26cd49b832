package ir

import "encoding/json"

// StateVersion is the current state file format version.
const StateVersion = 1

// State is the persisted record of everything ferrite has applied.
type State struct {
	Version   int              `json:"version"`
	Serial    int              `json:"serial"`
	Lineage   string           `json:"lineage"`
	Resources []*ResourceState `json:"resources"`
	Outputs   map[string]any   `json:"outputs,omitempty"`
}

// ResourceState maps a resource identity to its last-applied snapshot and the
// identifier the provider assigned to it.
type ResourceState struct {
	Type         string         `json:"type"`
	Name         string         `json:"name"`
	Provider     string         `json:"provider"`
	ID           string         `json:"id,omitempty"`
	Inputs       map[string]any `json:"inputs,omitempty"` // user-declared attributes
	InputsHash   string         `json:"inputsHash,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"` // provider-returned attributes
	Dependencies []string       `json:"dependencies,omitempty"`
	Tainted      bool           `json:"tainted,omitempty"`
	LastApplied  string         `json:"lastApplied,omitempty"` // RFC3339
}

// Addr returns the state entry address (type.name).
func (r *ResourceState) Addr() string {
	return r.Type + "." + r.Name
}

// NewState returns an empty state with the given lineage.
func NewState(lineage string) *State {
	return &State{
		Version: StateVersion,
		Lineage: lineage,
	}
}

// Resource returns the state entry at addr, if present.
func (s *State) Resource(addr string) (*ResourceState, bool) {
	for _, rs := range s.Resources {
		if rs.Addr() == addr {
			return rs, true
		}
	}
	return nil, false
}

// SetResource inserts or replaces the entry for rs.Addr(), keeping the
// positions of existing entries stable.
func (s *State) SetResource(rs *ResourceState) {
	for i, existing := range s.Resources {
		if existing.Addr() == rs.Addr() {
			s.Resources[i] = rs
			return
		}
	}
	s.Resources = append(s.Resources, rs)
}

// RemoveResource deletes the entry at addr, if present.
func (s *State) RemoveResource(addr string) {
	for i, rs := range s.Resources {
		if rs.Addr() == addr {
			s.Resources = append(s.Resources[:i], s.Resources[i+1:]...)
			return
		}
	}
}

// DeepCopy returns an independent copy of the state via a JSON round trip.
// Apply mutates a copy so a failed run never corrupts the snapshot its plan
// was computed against.
func (s *State) DeepCopy() (*State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out.Resources == nil {
		out.Resources = []*ResourceState{}
	}
	return &out, nil
}

// Resource lifts a state entry back into a declaration, used when planning
// deletions of resources no longer present in the configuration.
func (r *ResourceState) Resource() *Resource {
	return &Resource{
		Type:       r.Type,
		Name:       r.Name,
		Provider:   r.Provider,
		Properties: r.Inputs,
	}
}

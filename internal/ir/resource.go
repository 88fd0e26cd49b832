package ir

// Resource represents a single declared resource.
type Resource struct {
	Type       string         `pkl:"type" json:"type"` // kind tag, e.g. "network", "function"
	Name       string         `pkl:"name" json:"name"`
	Provider   string         `pkl:"provider" json:"provider"`
	Count      int            `pkl:"count" json:"count,omitempty"`
	ForEach    map[string]any `pkl:"forEach" json:"forEach,omitempty"`
	Lifecycle  *Lifecycle     `pkl:"lifecycle" json:"lifecycle,omitempty"`
	DependsOn  []string       `pkl:"dependsOn" json:"dependsOn,omitempty"`
	Timeout    string         `pkl:"timeout" json:"timeout,omitempty"` // Go duration string, e.g. "10m"
	Properties map[string]any `pkl:"properties" json:"properties,omitempty"`
}

// Addr returns the resource address (type.name).
func (r *Resource) Addr() string {
	return r.Type + "." + r.Name
}

type Lifecycle struct {
	CreateBeforeDestroy bool     `pkl:"createBeforeDestroy" json:"createBeforeDestroy,omitempty"`
	PreventDestroy      bool     `pkl:"preventDestroy" json:"preventDestroy,omitempty"`
	IgnoreChanges       []string `pkl:"ignoreChanges" json:"ignoreChanges,omitempty"`
}

package ir

// Config represents the evaluated top-level configuration.
type Config struct {
	Resources []*Resource    `pkl:"resources"`
	Outputs   map[string]any `pkl:"outputs"`

	// ReplaceOn extends the per-kind destructive-change table: kind tag to
	// attribute names whose change forces the resource to be recreated.
	ReplaceOn map[string][]string `pkl:"replaceOn"`
}

// Package provider defines the contract between the engine and resource
// providers. Providers implement lifecycle operations for a set of resource
// kinds; the engine never inspects kind-specific behavior itself.
package provider

import "context"

// Provider implements the resource lifecycle for one platform (aws, docker,
// null). Each call is scoped to a single resource instance.
type Provider interface {
	// Name returns the provider identifier used in resource declarations.
	Name() string

	// Kinds returns the resource types this provider can manage.
	Kinds() []string

	// Validate checks desired attributes before any plan is produced.
	Validate(ctx context.Context, req *ValidateRequest) error

	// Diff compares prior and desired attributes and reports which changed
	// and whether the change requires destroying the resource first.
	Diff(ctx context.Context, req *DiffRequest) (*DiffResponse, error)

	// Create provisions a new resource and returns its identity and outputs.
	Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error)

	// Update mutates an existing resource in place.
	Update(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error)

	// Delete destroys an existing resource.
	Delete(ctx context.Context, req *DeleteRequest) error
}

// Reader is implemented by providers that can read live resource attributes.
// It powers refresh and import; the engine treats it as optional.
type Reader interface {
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
}

// ValidateRequest carries the desired attributes of one resource.
type ValidateRequest struct {
	Kind       string
	Name       string
	Attributes map[string]any
}

// DiffRequest compares the last applied attributes against the desired ones.
// ReplaceOn lists extra attributes whose change forces recreation; it comes
// from the configuration and is merged with the provider's own defaults.
type DiffRequest struct {
	Kind      string
	Name      string
	Prior     map[string]any
	Desired   map[string]any
	ReplaceOn []string
}

// DiffResponse reports the changed attribute names. Destructive is set when
// any changed attribute cannot be updated in place; ForcedBy names them.
type DiffResponse struct {
	Changed     []string
	Destructive bool
	ForcedBy    []string
}

type CreateRequest struct {
	Kind       string
	Name       string
	Attributes map[string]any
}

// CreateResponse returns the provider-assigned identity and computed outputs.
type CreateResponse struct {
	ID      string
	Outputs map[string]any
}

type UpdateRequest struct {
	Kind       string
	Name       string
	ID         string
	Prior      map[string]any
	Attributes map[string]any
}

type UpdateResponse struct {
	Outputs map[string]any
}

// DeleteRequest carries the last applied attributes alongside the identity;
// some kinds need them to tear down dependent objects.
type DeleteRequest struct {
	Kind       string
	Name       string
	ID         string
	Attributes map[string]any
}

type ReadRequest struct {
	Kind       string
	Name       string
	ID         string
	Attributes map[string]any
}

// ReadResponse reports whether the resource still exists and its live outputs.
type ReadResponse struct {
	Exists  bool
	Outputs map[string]any
}

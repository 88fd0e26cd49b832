// Package null implements a provider whose resources exist only in state.
// A null_resource carries arbitrary trigger attributes; changing them forces
// the resource to be recreated. Useful for wiring ordering and for tests.
package null

import (
	"context"
	"fmt"

	"github.com/ferrite-io/ferrite/internal/provider"
)

type handler struct {
	forceNew []string
	create   func(req *provider.CreateRequest) (string, map[string]any, error)
	update   func(req *provider.UpdateRequest) (map[string]any, error)
}

var handlers = map[string]*handler{
	"null_resource": {
		forceNew: []string{"triggers"},
		create: func(req *provider.CreateRequest) (string, map[string]any, error) {
			return fmt.Sprintf("null-%s", req.Name), echo(req.Attributes), nil
		},
		update: func(req *provider.UpdateRequest) (map[string]any, error) {
			return echo(req.Attributes), nil
		},
	},
}

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return "null" }

func (p *Provider) Kinds() []string {
	kinds := make([]string, 0, len(handlers))
	for kind := range handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

func (p *Provider) Validate(ctx context.Context, req *provider.ValidateRequest) error {
	_, err := p.handler(req.Kind)
	return err
}

func (p *Provider) Diff(ctx context.Context, req *provider.DiffRequest) (*provider.DiffResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	changed := provider.DiffAttributes(req.Prior, req.Desired)
	forced := provider.ForcedBy(changed, h.forceNew, req.ReplaceOn)
	return &provider.DiffResponse{
		Changed:     changed,
		Destructive: len(forced) > 0,
		ForcedBy:    forced,
	}, nil
}

func (p *Provider) Create(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	id, outputs, err := h.create(req)
	if err != nil {
		return nil, err
	}
	return &provider.CreateResponse{ID: id, Outputs: outputs}, nil
}

func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	outputs, err := h.update(req)
	if err != nil {
		return nil, err
	}
	return &provider.UpdateResponse{Outputs: outputs}, nil
}

func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) error {
	_, err := p.handler(req.Kind)
	return err
}

// Read reports every recorded null resource as still existing.
func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	if _, err := p.handler(req.Kind); err != nil {
		return nil, err
	}
	return &provider.ReadResponse{Exists: true, Outputs: echo(req.Attributes)}, nil
}

func (p *Provider) handler(kind string) (*handler, error) {
	h, ok := handlers[kind]
	if !ok {
		return nil, provider.NewError(provider.CodeUnsupported, "provider null does not support kind %q", kind)
	}
	return h, nil
}

func echo(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

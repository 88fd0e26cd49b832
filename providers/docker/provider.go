// Package docker implements the provider for resources on a local Docker
// daemon: containers, images, networks and volumes. The client comes from
// the standard environment (DOCKER_HOST and friends) with API version
// negotiation, so the package works against any reasonably recent daemon.
package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// handler describes one resource kind: the attributes it insists on, the
// attributes whose change forces recreation, and its lifecycle operations.
type handler struct {
	required []string
	forceNew []string
	validate func(req *provider.ValidateRequest) error
	create   func(ctx context.Context, cli *client.Client, req *provider.CreateRequest) (string, map[string]any, error)
	update   func(ctx context.Context, cli *client.Client, req *provider.UpdateRequest) (map[string]any, error)
	delete   func(ctx context.Context, cli *client.Client, req *provider.DeleteRequest) error
	read     func(ctx context.Context, cli *client.Client, req *provider.ReadRequest) (*provider.ReadResponse, error)
}

var handlers = map[string]*handler{
	"container":     containerHandler,
	"image":         imageHandler,
	"dockerNetwork": dockerNetworkHandler,
	"volume":        volumeHandler,
}

type Provider struct {
	mu     sync.Mutex
	docker *client.Client
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return "docker" }

func (p *Provider) Kinds() []string {
	kinds := make([]string, 0, len(handlers))
	for kind := range handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// clientFor returns the daemon client, building it on first use. Building
// the client reads the environment but does not dial; connection failures
// surface on the first real call.
func (p *Provider) clientFor() (*client.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.docker != nil {
		return p.docker, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, provider.Wrap(provider.CodeUnavailable, err, "create docker client")
	}
	p.docker = cli
	return cli, nil
}

func (p *Provider) Validate(ctx context.Context, req *provider.ValidateRequest) error {
	h, err := p.handler(req.Kind)
	if err != nil {
		return err
	}
	for _, attr := range h.required {
		if _, ok := req.Attributes[attr]; !ok {
			return provider.NewError(provider.CodeValidation,
				"docker %s %q requires attribute %q", req.Kind, req.Name, attr)
		}
	}
	if h.validate != nil {
		return h.validate(req)
	}
	return nil
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
	cli, err := p.clientFor()
	if err != nil {
		return nil, err
	}
	id, outputs, err := h.create(ctx, cli, req)
	if err != nil {
		return nil, wrapErr("create", req.Kind, req.Name, err)
	}
	return &provider.CreateResponse{ID: id, Outputs: outputs}, nil
}

func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	cli, err := p.clientFor()
	if err != nil {
		return nil, err
	}
	outputs, err := h.update(ctx, cli, req)
	if err != nil {
		return nil, wrapErr("update", req.Kind, req.Name, err)
	}
	return &provider.UpdateResponse{Outputs: outputs}, nil
}

// Delete tears the resource down. A resource that is already gone counts
// as deleted.
func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) error {
	h, err := p.handler(req.Kind)
	if err != nil {
		return err
	}
	cli, err := p.clientFor()
	if err != nil {
		return err
	}
	if err := h.delete(ctx, cli, req); err != nil {
		werr := wrapErr("delete", req.Kind, req.Name, err)
		if provider.IsNotFound(werr) {
			return nil
		}
		return werr
	}
	return nil
}

// Read inspects the live object. A missing resource is reported through
// Exists, not as an error.
func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	cli, err := p.clientFor()
	if err != nil {
		return nil, err
	}
	resp, err := h.read(ctx, cli, req)
	if err != nil {
		werr := wrapErr("read", req.Kind, req.Name, err)
		if provider.IsNotFound(werr) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, werr
	}
	return resp, nil
}

func (p *Provider) handler(kind string) (*handler, error) {
	h, ok := handlers[kind]
	if !ok {
		return nil, provider.NewError(provider.CodeUnsupported,
			"provider docker does not support kind %q", kind)
	}
	return h, nil
}

// wrapErr turns a daemon failure into a structured provider error. The
// docker client surfaces HTTP status classes through errdefs; an unreachable
// daemon is retryable, everything else is terminal. Errors that already
// carry a classification pass through.
func wrapErr(op, kind, name string, err error) error {
	if err == nil {
		return nil
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		return err
	}

	out := &provider.Error{
		Code:    provider.CodeInternal,
		Message: fmt.Sprintf("%s docker %s %q", op, kind, name),
		Err:     err,
	}
	switch {
	case errdefs.IsNotFound(err):
		out.Code = provider.CodeNotFound
	case errdefs.IsConflict(err):
		out.Code = provider.CodeConflict
	case errdefs.IsInvalidParameter(err):
		out.Code = provider.CodeValidation
	case client.IsErrConnectionFailed(err) || errdefs.IsUnavailable(err):
		out.Code = provider.CodeUnavailable
		out.Retryable = true
	}
	return out
}

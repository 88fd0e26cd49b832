package docker

import (
	"context"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// dockerNetwork is a user-defined network. The daemon has no reconfigure
// call for networks, so every attribute change forces a replace.
var dockerNetworkHandler = &handler{
	forceNew: []string{"name", "driver", "internal", "attachable", "subnet", "gateway", "labels"},
	create: func(ctx context.Context, cli *client.Client, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		driver := stringAttr(req.Attributes, "driver")
		if driver == "" {
			driver = "bridge"
		}
		opts := network.CreateOptions{
			Driver:     driver,
			Internal:   boolAttr(req.Attributes, "internal"),
			Attachable: boolAttr(req.Attributes, "attachable"),
			Labels:     stringMapAttr(req.Attributes, "labels"),
		}
		if subnet := stringAttr(req.Attributes, "subnet"); subnet != "" {
			opts.IPAM = &network.IPAM{
				Config: []network.IPAMConfig{{
					Subnet:  subnet,
					Gateway: stringAttr(req.Attributes, "gateway"),
				}},
			}
		}
		resp, err := cli.NetworkCreate(ctx, name, opts)
		if err != nil {
			return "", nil, err
		}
		return resp.ID, map[string]any{"name": name, "driver": driver}, nil
	},
	update: func(ctx context.Context, cli *client.Client, req *provider.UpdateRequest) (map[string]any, error) {
		inspect, err := cli.NetworkInspect(ctx, req.ID, network.InspectOptions{})
		if err != nil {
			return nil, err
		}
		return map[string]any{"name": inspect.Name, "driver": inspect.Driver}, nil
	},
	delete: func(ctx context.Context, cli *client.Client, req *provider.DeleteRequest) error {
		return cli.NetworkRemove(ctx, req.ID)
	},
	read: func(ctx context.Context, cli *client.Client, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		inspect, err := cli.NetworkInspect(ctx, req.ID, network.InspectOptions{})
		if err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":     inspect.ID,
				"name":   inspect.Name,
				"driver": inspect.Driver,
			},
		}, nil
	},
}

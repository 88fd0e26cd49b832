package docker

import (
	"context"

	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// volume is a named volume. Volumes carry no mutable attributes; driver
// options and labels are fixed at create time.
var volumeHandler = &handler{
	forceNew: []string{"name", "driver", "driverOpts", "labels"},
	create: func(ctx context.Context, cli *client.Client, req *provider.CreateRequest) (string, map[string]any, error) {
		vol, err := cli.VolumeCreate(ctx, volume.CreateOptions{
			Name:       nameAttr(req.Attributes, req.Name),
			Driver:     stringAttr(req.Attributes, "driver"),
			DriverOpts: stringMapAttr(req.Attributes, "driverOpts"),
			Labels:     stringMapAttr(req.Attributes, "labels"),
		})
		if err != nil {
			return "", nil, err
		}
		return vol.Name, map[string]any{
			"name":       vol.Name,
			"driver":     vol.Driver,
			"mountpoint": vol.Mountpoint,
		}, nil
	},
	update: func(ctx context.Context, cli *client.Client, req *provider.UpdateRequest) (map[string]any, error) {
		vol, err := cli.VolumeInspect(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"name":       vol.Name,
			"driver":     vol.Driver,
			"mountpoint": vol.Mountpoint,
		}, nil
	},
	delete: func(ctx context.Context, cli *client.Client, req *provider.DeleteRequest) error {
		return cli.VolumeRemove(ctx, req.ID, true)
	},
	read: func(ctx context.Context, cli *client.Client, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		vol, err := cli.VolumeInspect(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":         vol.Name,
				"name":       vol.Name,
				"driver":     vol.Driver,
				"mountpoint": vol.Mountpoint,
			},
		}, nil
	},
}

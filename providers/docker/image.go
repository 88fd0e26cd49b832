package docker

import (
	"context"
	"io"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// image is a Docker image, pulled from a registry or built from a local
// context. The reference is its stable identity; rebuilding or re-pulling
// under the same reference is an in-place update that refreshes the
// imageId output.
var imageHandler = &handler{
	forceNew: []string{"name"},
	validate: func(req *provider.ValidateRequest) error {
		dir := stringAttr(req.Attributes, "buildContext")
		if dir == "" {
			return nil
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return provider.NewError(provider.CodeValidation,
				"docker image %q: build context %q is not a directory", req.Name, dir)
		}
		return nil
	},
	create: func(ctx context.Context, cli *client.Client, req *provider.CreateRequest) (string, map[string]any, error) {
		ref := nameAttr(req.Attributes, req.Name)
		outputs, err := materializeImage(ctx, cli, ref, req.Attributes)
		if err != nil {
			return "", nil, err
		}
		return ref, outputs, nil
	},
	update: func(ctx context.Context, cli *client.Client, req *provider.UpdateRequest) (map[string]any, error) {
		return materializeImage(ctx, cli, req.ID, req.Attributes)
	},
	delete: func(ctx context.Context, cli *client.Client, req *provider.DeleteRequest) error {
		_, err := cli.ImageRemove(ctx, req.ID, image.RemoveOptions{Force: true})
		return err
	},
	read: func(ctx context.Context, cli *client.Client, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		inspect, _, err := cli.ImageInspectWithRaw(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":      req.ID,
				"name":    req.ID,
				"imageId": inspect.ID,
			},
		}, nil
	},
}

// materializeImage builds or pulls ref and reports the resulting image ID.
func materializeImage(ctx context.Context, cli *client.Client, ref string, attrs map[string]any) (map[string]any, error) {
	if dir := stringAttr(attrs, "buildContext"); dir != "" {
		if err := buildImage(ctx, cli, ref, dir, attrs); err != nil {
			return nil, err
		}
	} else if err := pullImage(ctx, cli, ref); err != nil {
		return nil, err
	}
	inspect, _, err := cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": ref, "imageId": inspect.ID}, nil
}

// buildImage tars the context directory and streams it to the daemon. The
// daemon reports build failures inside the progress stream, so the stream
// is decoded rather than drained.
func buildImage(ctx context.Context, cli *client.Client, ref, dir string, attrs map[string]any) error {
	tar, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return provider.Wrap(provider.CodeValidation, err, "tar build context %q", dir)
	}
	defer tar.Close()

	dockerfile := stringAttr(attrs, "dockerfile")
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	resp, err := cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{ref},
		Dockerfile: dockerfile,
		BuildArgs:  buildArgs(attrs),
		Labels:     stringMapAttr(attrs, "labels"),
		Remove:     true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil)
}

// pullImage pulls ref; pull failures also arrive inside the stream.
func pullImage(ctx context.Context, cli *client.Client, ref string) error {
	reader, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	return jsonmessage.DisplayJSONMessagesStream(reader, io.Discard, 0, false, nil)
}

func buildArgs(attrs map[string]any) map[string]*string {
	args := stringMapAttr(attrs, "buildArgs")
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]*string, len(args))
	for k, v := range args {
		out[k] = &v
	}
	return out
}

package docker

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ferrite-io/ferrite/internal/provider"
)

const containerStopWait = 10 // seconds

// container is a running container created from an image reference. Almost
// every attribute bakes into the container at create time, so most changes
// force a replace; restart policy and resource limits change in place
// through ContainerUpdate.
var containerHandler = &handler{
	required: []string{"image"},
	forceNew: []string{
		"name", "image", "command", "entrypoint", "env", "ports", "volumes",
		"networks", "labels", "user", "workdir", "platform", "healthcheck",
		"logging",
	},
	validate: func(req *provider.ValidateRequest) error {
		if _, _, err := nat.ParsePortSpecs(stringsAttr(req.Attributes, "ports")); err != nil {
			return provider.Wrap(provider.CodeValidation, err,
				"docker container %q port specs", req.Name)
		}
		if err := container.ValidateRestartPolicy(restartPolicy(req.Attributes)); err != nil {
			return provider.Wrap(provider.CodeValidation, err,
				"docker container %q restart policy", req.Name)
		}
		if _, err := healthConfig(mapAttr(req.Attributes, "healthcheck")); err != nil {
			return err
		}
		if _, err := memoryBytes(req.Attributes, "memory"); err != nil {
			return provider.Wrap(provider.CodeValidation, err,
				"docker container %q", req.Name)
		}
		return nil
	},
	create: func(ctx context.Context, cli *client.Client, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		ref := stringAttr(req.Attributes, "image")

		pull := true
		if v, ok := req.Attributes["pull"].(bool); ok {
			pull = v
		}
		if pull {
			if err := pullImage(ctx, cli, ref); err != nil {
				return "", nil, err
			}
		}

		cfg, hostCfg, err := containerSpec(req.Attributes, ref)
		if err != nil {
			return "", nil, err
		}
		resp, err := cli.ContainerCreate(ctx, cfg, hostCfg,
			&network.NetworkingConfig{}, platformAttr(req.Attributes), name)
		if err != nil {
			return "", nil, err
		}
		if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			return "", nil, err
		}

		return resp.ID, map[string]any{"name": name, "image": ref}, nil
	},
	update: func(ctx context.Context, cli *client.Client, req *provider.UpdateRequest) (map[string]any, error) {
		changed := changedSet(req.Prior, req.Attributes)
		if changed["restart"] || changed["maxRetries"] || changed["memory"] || changed["cpus"] {
			memory, err := memoryBytes(req.Attributes, "memory")
			if err != nil {
				return nil, provider.Wrap(provider.CodeValidation, err,
					"docker container %q", req.Name)
			}
			_, err = cli.ContainerUpdate(ctx, req.ID, container.UpdateConfig{
				Resources: container.Resources{
					Memory:   memory,
					NanoCPUs: nanoCPUs(req.Attributes),
				},
				RestartPolicy: restartPolicy(req.Attributes),
			})
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"name":  nameAttr(req.Attributes, req.Name),
			"image": stringAttr(req.Attributes, "image"),
		}, nil
	},
	delete: func(ctx context.Context, cli *client.Client, req *provider.DeleteRequest) error {
		wait := intAttr(req.Attributes, "stopTimeout", containerStopWait)
		_ = cli.ContainerStop(ctx, req.ID, container.StopOptions{Timeout: &wait})
		return cli.ContainerRemove(ctx, req.ID, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: boolAttr(req.Attributes, "removeVolumes"),
		})
	},
	read: func(ctx context.Context, cli *client.Client, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		inspect, err := cli.ContainerInspect(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		outputs := map[string]any{
			"id":   inspect.ID,
			"name": strings.TrimPrefix(inspect.Name, "/"),
		}
		if inspect.Config != nil {
			outputs["image"] = inspect.Config.Image
		}
		if inspect.State != nil {
			outputs["running"] = inspect.State.Running
		}
		return &provider.ReadResponse{Exists: true, Outputs: outputs}, nil
	},
}

// containerSpec translates the attribute map into the create request pair.
func containerSpec(attrs map[string]any, ref string) (*container.Config, *container.HostConfig, error) {
	exposed, bindings, err := nat.ParsePortSpecs(stringsAttr(attrs, "ports"))
	if err != nil {
		return nil, nil, provider.Wrap(provider.CodeValidation, err, "parse port specs")
	}

	cfg := &container.Config{
		Image:      ref,
		Cmd:        stringsAttr(attrs, "command"),
		Entrypoint: stringsAttr(attrs, "entrypoint"),
		Env:        envList(stringMapAttr(attrs, "env")),
		Labels:     stringMapAttr(attrs, "labels"),
		WorkingDir: stringAttr(attrs, "workdir"),
		User:       stringAttr(attrs, "user"),
	}
	if len(exposed) > 0 {
		cfg.ExposedPorts = exposed
	}
	hc, err := healthConfig(mapAttr(attrs, "healthcheck"))
	if err != nil {
		return nil, nil, err
	}
	cfg.Healthcheck = hc

	memory, err := memoryBytes(attrs, "memory")
	if err != nil {
		return nil, nil, provider.Wrap(provider.CodeValidation, err, "parse memory")
	}

	hostCfg := &container.HostConfig{
		Binds:         bindMounts(stringsAttr(attrs, "volumes")),
		RestartPolicy: restartPolicy(attrs),
		Resources: container.Resources{
			Memory:   memory,
			NanoCPUs: nanoCPUs(attrs),
		},
	}
	if len(bindings) > 0 {
		hostCfg.PortBindings = bindings
	}
	if networks := stringsAttr(attrs, "networks"); len(networks) > 0 {
		hostCfg.NetworkMode = container.NetworkMode(networks[0])
	}
	if logging := mapAttr(attrs, "logging"); logging != nil {
		hostCfg.LogConfig = container.LogConfig{
			Type:   stringAttr(logging, "driver"),
			Config: stringMapAttr(logging, "options"),
		}
	}
	return cfg, hostCfg, nil
}

// bindMounts resolves relative host paths; the daemon knows nothing about
// our working directory.
func bindMounts(volumes []string) []string {
	var binds []string
	for _, v := range volumes {
		parts := strings.SplitN(v, ":", 2)
		if strings.HasPrefix(parts[0], "./") || strings.HasPrefix(parts[0], "../") {
			if abs, err := filepath.Abs(parts[0]); err == nil {
				parts[0] = abs
				binds = append(binds, strings.Join(parts, ":"))
				continue
			}
		}
		binds = append(binds, v)
	}
	return binds
}

// healthConfig translates the healthcheck attribute object. Durations are
// Go syntax strings ("10s"); an empty test list leaves the image's own
// healthcheck in effect.
func healthConfig(attrs map[string]any) (*container.HealthConfig, error) {
	if attrs == nil {
		return nil, nil
	}
	hc := &container.HealthConfig{
		Test:    stringsAttr(attrs, "test"),
		Retries: intAttr(attrs, "retries", 0),
	}
	var err error
	if hc.Interval, err = durationField(attrs, "interval"); err != nil {
		return nil, err
	}
	if hc.Timeout, err = durationField(attrs, "timeout"); err != nil {
		return nil, err
	}
	if hc.StartPeriod, err = durationField(attrs, "startPeriod"); err != nil {
		return nil, err
	}
	return hc, nil
}

func durationField(attrs map[string]any, key string) (time.Duration, error) {
	raw := stringAttr(attrs, key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, provider.NewError(provider.CodeValidation,
			"healthcheck %s %q is not a duration", key, raw)
	}
	return d, nil
}

func restartPolicy(attrs map[string]any) container.RestartPolicy {
	name := stringAttr(attrs, "restart")
	if name == "" {
		return container.RestartPolicy{}
	}
	return container.RestartPolicy{
		Name:              container.RestartPolicyMode(name),
		MaximumRetryCount: intAttr(attrs, "maxRetries", 0),
	}
}

func nanoCPUs(attrs map[string]any) int64 {
	switch v := attrs["cpus"].(type) {
	case float64:
		return int64(v * 1e9)
	case int:
		return int64(v) * 1e9
	case int64:
		return v * 1e9
	}
	return 0
}

// platformAttr parses "os/arch[/variant]" into an OCI platform; nil lets
// the daemon pick its default.
func platformAttr(attrs map[string]any) *v1.Platform {
	spec := stringAttr(attrs, "platform")
	if spec == "" {
		return nil
	}
	parts := strings.SplitN(spec, "/", 3)
	p := &v1.Platform{OS: parts[0]}
	if len(parts) > 1 {
		p.Architecture = parts[1]
	}
	if len(parts) > 2 {
		p.Variant = parts[2]
	}
	return p
}

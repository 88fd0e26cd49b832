package docker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/provider"
)

func TestKindsAreSortedAndComplete(t *testing.T) {
	p := New()

	kinds := p.Kinds()
	assert.IsIncreasing(t, kinds)
	assert.ElementsMatch(t, []string{"container", "dockerNetwork", "image", "volume"}, kinds)
}

func TestValidate_UnknownKind(t *testing.T) {
	p := New()

	err := p.Validate(context.Background(), &provider.ValidateRequest{Kind: "pod", Name: "x"})
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.CodeUnsupported, perr.Code)
}

func TestValidate_ContainerRequiresImage(t *testing.T) {
	p := New()

	err := p.Validate(context.Background(), &provider.ValidateRequest{
		Kind:       "container",
		Name:       "web",
		Attributes: map[string]any{"ports": []any{"8080:80"}},
	})
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.CodeValidation, perr.Code)
	assert.Contains(t, perr.Message, "image")
}

func TestValidate_ContainerPortSpecs(t *testing.T) {
	p := New()
	ctx := context.Background()

	err := p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "container",
		Name:       "web",
		Attributes: map[string]any{"image": "nginx", "ports": []any{"web:http"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")

	assert.NoError(t, p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "container",
		Name:       "web",
		Attributes: map[string]any{"image": "nginx", "ports": []any{"8080:80", "127.0.0.1:5353:53/udp"}},
	}))
}

func TestValidate_ContainerRestartPolicy(t *testing.T) {
	p := New()
	ctx := context.Background()

	err := p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "container",
		Name:       "web",
		Attributes: map[string]any{"image": "nginx", "restart": "sometimes"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart policy")

	assert.NoError(t, p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "container",
		Name:       "web",
		Attributes: map[string]any{"image": "nginx", "restart": "unless-stopped"},
	}))
}

func TestValidate_ContainerHealthcheckDurations(t *testing.T) {
	p := New()

	err := p.Validate(context.Background(), &provider.ValidateRequest{
		Kind: "container",
		Name: "web",
		Attributes: map[string]any{
			"image":       "nginx",
			"healthcheck": map[string]any{"interval": "soon"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a duration")
}

func TestValidate_ContainerMemory(t *testing.T) {
	p := New()
	ctx := context.Background()

	err := p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "container",
		Name:       "web",
		Attributes: map[string]any{"image": "nginx", "memory": "lots"},
	})
	require.Error(t, err)

	assert.NoError(t, p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "container",
		Name:       "web",
		Attributes: map[string]any{"image": "nginx", "memory": "512m"},
	}))
}

func TestValidate_ImageBuildContext(t *testing.T) {
	p := New()
	ctx := context.Background()

	err := p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "image",
		Name:       "app",
		Attributes: map[string]any{"buildContext": filepath.Join(t.TempDir(), "missing")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	assert.NoError(t, p.Validate(ctx, &provider.ValidateRequest{
		Kind:       "image",
		Name:       "app",
		Attributes: map[string]any{"buildContext": t.TempDir()},
	}))
}

func TestDiff_ContainerImageChangeIsDestructive(t *testing.T) {
	p := New()

	resp, err := p.Diff(context.Background(), &provider.DiffRequest{
		Kind:    "container",
		Name:    "web",
		Prior:   map[string]any{"image": "nginx:1.26"},
		Desired: map[string]any{"image": "nginx:1.27"},
	})
	require.NoError(t, err)

	assert.True(t, resp.Destructive)
	assert.Equal(t, []string{"image"}, resp.ForcedBy)
}

func TestDiff_ForceNewPerKind(t *testing.T) {
	p := New()
	ctx := context.Background()

	tests := []struct {
		kind        string
		attr        string
		destructive bool
	}{
		{"container", "env", true},
		{"container", "ports", true},
		{"container", "restart", false},
		{"container", "memory", false},
		{"container", "cpus", false},
		{"image", "name", true},
		{"image", "buildContext", false},
		{"image", "dockerfile", false},
		{"dockerNetwork", "driver", true},
		{"dockerNetwork", "subnet", true},
		{"volume", "driver", true},
	}

	for _, tc := range tests {
		t.Run(tc.kind+"/"+tc.attr, func(t *testing.T) {
			resp, err := p.Diff(ctx, &provider.DiffRequest{
				Kind:    tc.kind,
				Name:    "x",
				Prior:   map[string]any{tc.attr: "before"},
				Desired: map[string]any{tc.attr: "after"},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{tc.attr}, resp.Changed)
			assert.Equal(t, tc.destructive, resp.Destructive)
		})
	}
}

func TestDiff_ReplaceOnExtendsForceNew(t *testing.T) {
	p := New()

	resp, err := p.Diff(context.Background(), &provider.DiffRequest{
		Kind:      "container",
		Name:      "web",
		Prior:     map[string]any{"restart": "no"},
		Desired:   map[string]any{"restart": "always"},
		ReplaceOn: []string{"restart"},
	})
	require.NoError(t, err)

	assert.True(t, resp.Destructive)
	assert.Equal(t, []string{"restart"}, resp.ForcedBy)
}

func TestWrapErr_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      provider.ErrorCode
		retryable bool
	}{
		{
			name: "not found",
			err:  errdefs.NotFound(errors.New("no such container")),
			code: provider.CodeNotFound,
		},
		{
			name: "conflict",
			err:  errdefs.Conflict(errors.New("name already in use")),
			code: provider.CodeConflict,
		},
		{
			name: "invalid parameter",
			err:  errdefs.InvalidParameter(errors.New("invalid mount spec")),
			code: provider.CodeValidation,
		},
		{
			name:      "unavailable",
			err:       errdefs.Unavailable(errors.New("daemon is starting")),
			code:      provider.CodeUnavailable,
			retryable: true,
		},
		{
			name: "unclassified",
			err:  errors.New("stream copy failed"),
			code: provider.CodeInternal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := wrapErr("create", "container", "web", tc.err)

			var perr *provider.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.code, perr.Code)
			assert.Equal(t, tc.retryable, perr.Retryable)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestWrapErr_PassesThroughProviderErrors(t *testing.T) {
	orig := provider.NewError(provider.CodeValidation, "bad attribute")

	assert.Same(t, orig, wrapErr("create", "container", "web", orig))
}

func TestWrapErr_NilStaysNil(t *testing.T) {
	assert.NoError(t, wrapErr("delete", "container", "web", nil))
}

func TestAttributeHelpers(t *testing.T) {
	attrs := map[string]any{
		"name":   "cache",
		"count":  float64(3),
		"labels": map[string]any{"tier": "db", "skip": 7},
		"cmd":    []any{"redis-server", "--save", "60"},
	}

	assert.Equal(t, "cache", nameAttr(attrs, "fallback"))
	assert.Equal(t, "fallback", nameAttr(map[string]any{}, "fallback"))
	assert.Equal(t, 3, intAttr(attrs, "count", 0))
	assert.Equal(t, 9, intAttr(attrs, "missing", 9))
	assert.Equal(t, map[string]string{"tier": "db"}, stringMapAttr(attrs, "labels"))
	assert.Equal(t, []string{"redis-server", "--save", "60"}, stringsAttr(attrs, "cmd"))
}

func TestEnvListIsSorted(t *testing.T) {
	env := envList(map[string]string{"ZONE": "eu", "APP": "web", "MODE": "prod"})

	assert.Equal(t, []string{"APP=web", "MODE=prod", "ZONE=eu"}, env)
	assert.Nil(t, envList(nil))
}

func TestMemoryBytes(t *testing.T) {
	n, err := memoryBytes(map[string]any{"memory": "512m"}, "memory")
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024*1024), n)

	n, err = memoryBytes(map[string]any{"memory": float64(1024)}, "memory")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)

	n, err = memoryBytes(map[string]any{}, "memory")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = memoryBytes(map[string]any{"memory": "lots"}, "memory")
	assert.Error(t, err)
}

func TestContainerSpec(t *testing.T) {
	cfg, hostCfg, err := containerSpec(map[string]any{
		"command":  []any{"nginx", "-g", "daemon off;"},
		"env":      map[string]any{"TZ": "UTC"},
		"ports":    []any{"8080:80"},
		"networks": []any{"backend"},
		"volumes":  []any{"./conf:/etc/nginx:ro", "data:/var/lib/nginx"},
		"restart":  "always",
		"memory":   "256m",
		"cpus":     0.5,
	}, "nginx:1.27")
	require.NoError(t, err)

	assert.Equal(t, "nginx:1.27", cfg.Image)
	assert.Equal(t, []string{"nginx", "-g", "daemon off;"}, []string(cfg.Cmd))
	assert.Equal(t, []string{"TZ=UTC"}, cfg.Env)
	assert.Contains(t, cfg.ExposedPorts, nat.Port("80/tcp"))

	require.Len(t, hostCfg.PortBindings[nat.Port("80/tcp")], 1)
	assert.Equal(t, "8080", hostCfg.PortBindings[nat.Port("80/tcp")][0].HostPort)
	assert.Equal(t, "backend", string(hostCfg.NetworkMode))
	assert.Equal(t, "always", string(hostCfg.RestartPolicy.Name))
	assert.Equal(t, int64(256*1024*1024), hostCfg.Resources.Memory)
	assert.Equal(t, int64(500000000), hostCfg.Resources.NanoCPUs)

	require.Len(t, hostCfg.Binds, 2)
	assert.True(t, filepath.IsAbs(strings.SplitN(hostCfg.Binds[0], ":", 2)[0]))
	assert.True(t, strings.HasSuffix(hostCfg.Binds[0], ":/etc/nginx:ro"))
	assert.Equal(t, "data:/var/lib/nginx", hostCfg.Binds[1])
}

func TestHealthConfig(t *testing.T) {
	hc, err := healthConfig(map[string]any{
		"test":        []any{"CMD", "curl", "-f", "http://localhost/"},
		"interval":    "10s",
		"timeout":     "3s",
		"startPeriod": "5s",
		"retries":     3,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"CMD", "curl", "-f", "http://localhost/"}, []string(hc.Test))
	assert.Equal(t, 10*time.Second, hc.Interval)
	assert.Equal(t, 3*time.Second, hc.Timeout)
	assert.Equal(t, 5*time.Second, hc.StartPeriod)
	assert.Equal(t, 3, hc.Retries)

	hc, err = healthConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, hc)
}

func TestPlatformAttr(t *testing.T) {
	p := platformAttr(map[string]any{"platform": "linux/arm64/v8"})
	require.NotNil(t, p)
	assert.Equal(t, "linux", p.OS)
	assert.Equal(t, "arm64", p.Architecture)
	assert.Equal(t, "v8", p.Variant)

	assert.Nil(t, platformAttr(map[string]any{}))
}

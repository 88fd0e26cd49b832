package docker

import (
	"fmt"
	"sort"

	units "github.com/docker/go-units"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// Attribute accessors. Properties arrive as map[string]any decoded from the
// configuration, so numbers may be any Go numeric type and lists may be
// []any; these helpers normalize without panicking on absent keys.

func stringAttr(attrs map[string]any, key string) string {
	v, _ := attrs[key].(string)
	return v
}

// nameAttr returns the explicit name attribute, falling back to the
// resource's declared name.
func nameAttr(attrs map[string]any, fallback string) string {
	if v := stringAttr(attrs, "name"); v != "" {
		return v
	}
	return fallback
}

func intAttr(attrs map[string]any, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func boolAttr(attrs map[string]any, key string) bool {
	v, _ := attrs[key].(bool)
	return v
}

func stringsAttr(attrs map[string]any, key string) []string {
	switch v := attrs[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringMapAttr(attrs map[string]any, key string) map[string]string {
	switch v := attrs[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}

func mapAttr(attrs map[string]any, key string) map[string]any {
	v, _ := attrs[key].(map[string]any)
	return v
}

// memoryBytes reads a memory size attribute that may be a plain byte count
// or a human string such as "512m"; zero means unset.
func memoryBytes(attrs map[string]any, key string) (int64, error) {
	switch v := attrs[key].(type) {
	case string:
		return units.RAMInBytes(v)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("memory attribute %q has unsupported type %T", key, attrs[key])
}

// envList flattens an env map into the KEY=value form the daemon expects,
// sorted so repeated creates send identical requests.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// changedSet indexes the attributes that differ between two attribute maps,
// using the same normalization the diff path uses.
func changedSet(prior, desired map[string]any) map[string]bool {
	out := make(map[string]bool)
	for _, attr := range provider.DiffAttributes(prior, desired) {
		out[attr] = true
	}
	return out
}

package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// ExpandForEach expands resources carrying count or forEach into individual
// instances. Count instances are named name[0..n); forEach instances are
// named name["key"] with keys in sorted order, so expansion order is stable
// across runs. Must be called before resources are registered.
func ExpandForEach(resources []*ir.Resource) []*ir.Resource {
	var expanded []*ir.Resource

	for _, res := range resources {
		switch {
		case res.Count > 0:
			for i := 0; i < res.Count; i++ {
				clone := cloneResource(res)
				clone.Name = fmt.Sprintf("%s[%d]", res.Name, i)
				clone.Properties = substituteAll(clone.Properties, map[string]any{
					"${count.index}": i,
				})
				expanded = append(expanded, clone)
			}
		case len(res.ForEach) > 0:
			keys := make([]string, 0, len(res.ForEach))
			for key := range res.ForEach {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				clone := cloneResource(res)
				clone.Name = fmt.Sprintf("%s[%q]", res.Name, key)
				clone.Properties = substituteAll(clone.Properties, map[string]any{
					"${each.key}":   key,
					"${each.value}": res.ForEach[key],
				})
				expanded = append(expanded, clone)
			}
		default:
			expanded = append(expanded, res)
		}
	}

	return expanded
}

// cloneResource copies a resource for expansion. Count and forEach are
// dropped so an instance never re-expands.
func cloneResource(res *ir.Resource) *ir.Resource {
	clone := &ir.Resource{
		Type:     res.Type,
		Name:     res.Name,
		Provider: res.Provider,
		Timeout:  res.Timeout,
	}
	if res.Lifecycle != nil {
		clone.Lifecycle = &ir.Lifecycle{
			CreateBeforeDestroy: res.Lifecycle.CreateBeforeDestroy,
			PreventDestroy:      res.Lifecycle.PreventDestroy,
			IgnoreChanges:       append([]string{}, res.Lifecycle.IgnoreChanges...),
		}
	}
	clone.DependsOn = append([]string{}, res.DependsOn...)
	clone.Properties = deepCopyMap(res.Properties)
	return clone
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any)
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = deepCopyValue(item)
		}
		return clone
	default:
		return v
	}
}

func substituteAll(props map[string]any, replacements map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range props {
		result[k] = substituteValue(v, replacements)
	}
	return result
}

// substituteValue replaces placeholders in string values. A string that is
// exactly one placeholder takes the replacement's type; placeholders inside
// larger strings are stringified into place.
func substituteValue(v any, replacements map[string]any) any {
	switch val := v.(type) {
	case string:
		if replacement, ok := replacements[val]; ok {
			return replacement
		}
		result := val
		for placeholder, replacement := range replacements {
			result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", replacement))
		}
		return result
	case map[string]any:
		return substituteAll(val, replacements)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = substituteValue(item, replacements)
		}
		return result
	default:
		return v
	}
}

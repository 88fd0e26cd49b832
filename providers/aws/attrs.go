package aws

import "github.com/ferrite-io/ferrite/internal/provider"

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

func tagsAttr(attrs map[string]any, key string) map[string]string {
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

// listAttr returns a list attribute whose elements are objects, such as
// security policy ingress rules.
func listAttr(attrs map[string]any, key string) []map[string]any {
	items, ok := attrs[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func mapAttr(attrs map[string]any, key string) map[string]any {
	v, _ := attrs[key].(map[string]any)
	return v
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

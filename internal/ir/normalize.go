package ir

import "fmt"

// Normalize converts a property value into the shape it has after a JSON
// round trip: map keys become strings and all numbers become float64. Diffs,
// hashes, and state comparisons all operate on normalized values so a value
// read back from state compares equal to the one it was written from.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, v := range val {
			m[fmt.Sprintf("%v", k)] = Normalize(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, v := range val {
			m[k] = Normalize(v)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, v := range val {
			s[i] = Normalize(v)
		}
		return s
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

// NormalizeProperties normalizes a property map in one call.
func NormalizeProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	return Normalize(props).(map[string]any)
}

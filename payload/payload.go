package payload

import (
	"encoding/json"
	"strings"
)

// Bool returns the boolean at key. ok is false when the key is missing or
// does not hold a JSON boolean.
func Bool(m map[string]any, key string) (value bool, ok bool) {
	if m == nil {
		return false, false
	}
	b, ok := m[key].(bool)
	return b, ok
}

// IsTrue reports whether key holds the boolean true.
func IsTrue(m map[string]any, key string) bool {
	b, ok := Bool(m, key)
	return ok && b
}

// IsFalse reports whether key holds the boolean false. A missing key is not false.
func IsFalse(m map[string]any, key string) bool {
	b, ok := Bool(m, key)
	return ok && !b
}

// String returns the string at key.
func String(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

// NonEmptyString returns the string at key when it is present and not blank.
func NonEmptyString(m map[string]any, key string) (string, bool) {
	s, ok := String(m, key)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Number returns the numeric value at key, accepting any Go numeric type and
// json.Number. Strings are not coerced.
func Number(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Strings returns the string elements of the array at key. Non-string
// elements are skipped.
func Strings(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Map returns the nested object at key.
func Map(m map[string]any, key string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	nested, ok := m[key].(map[string]any)
	return nested, ok
}

// Clone returns a deep copy of a decoded JSON object.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

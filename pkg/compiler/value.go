package compiler

import (
	"fmt"
	"sort"
)

// Metadata holds per-unit key/value settings. Keys beginning with an
// underscore are transient and excluded from change comparison and
// persistence.
type Metadata map[string]any

// Canonicalize converts a metadata value into the closed set of types that
// survive a JSON round trip unchanged: string, bool, float64, []any with
// canonical elements, and map[string]any with canonical values. Integers
// widen to float64 so a persisted value compares equal after reload.
func Canonicalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case bool:
		return x, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := Canonicalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			c, err := Canonicalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value of type %T cannot be persisted", v)
	}
}

// CanonicalizeMetadata canonicalizes every value in m, returning a new map.
func CanonicalizeMetadata(m Metadata) (Metadata, error) {
	out := make(Metadata, len(m))
	for k, v := range m {
		c, err := Canonicalize(v)
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

// valuesEqual compares two canonical values structurally.
func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, present := y[k]
			if !present || !valuesEqual(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// comparable returns the keys of m that participate in change detection,
// sorted. Underscore-prefixed keys are transient.
func comparableKeys(m Metadata) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// diffMetadata describes the first difference between the previous and
// current metadata of a unit, ignoring transient keys. Empty means equal.
func diffMetadata(prev, cur Metadata) string {
	for _, k := range comparableKeys(cur) {
		pv, ok := prev[k]
		if !ok {
			return fmt.Sprintf("added %s=%v", k, cur[k])
		}
		if !valuesEqual(pv, cur[k]) {
			return fmt.Sprintf("modified %s: %v -> %v", k, pv, cur[k])
		}
	}
	for _, k := range comparableKeys(prev) {
		if _, ok := cur[k]; !ok {
			return fmt.Sprintf("removed %s", k)
		}
	}
	return ""
}

// persistable returns a copy of m with transient keys removed, for writing
// into the sidecar.
func persistable(m Metadata) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		out[k] = v
	}
	return out
}

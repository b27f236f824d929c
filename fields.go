package rods

import (
	"reflect"
	"sort"

	"golang.org/x/exp/constraints"
)

// Fields is the public field set of an entity, keyed by column name.
type Fields map[string]any

// Clone returns a shallow copy of f. A nil Fields clones to an empty one.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Only returns the subset of f named by cols. Missing names are skipped.
func (f Fields) Only(cols []string) Fields {
	out := make(Fields, len(cols))
	for _, c := range cols {
		if v, ok := f[c]; ok {
			out[c] = v
		}
	}
	return out
}

// diff returns the entries of f whose value differs from base.
func (f Fields) diff(base Fields) Fields {
	out := Fields{}
	for k, v := range f {
		old, ok := base[k]
		if !ok || !sameValue(old, v) {
			out[k] = v
		}
	}
	for k := range base {
		if _, ok := f[k]; !ok {
			out[k] = nil
		}
	}
	return out
}

// sameValue compares two field values. Numbers compare by value across
// integer widths because drivers disagree on what they hand back.
func sameValue(a, b any) bool {
	if x, ok := asInt64(a); ok {
		if y, ok := asInt64(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

// Number is the set of numeric types a field can be read as.
type Number interface {
	constraints.Integer | constraints.Float
}

// numberAs converts any numeric kind a driver may return to N. Non-numeric
// values report false.
func numberAs[N Number](v any) (N, bool) {
	switch n := v.(type) {
	case int:
		return N(n), true
	case int8:
		return N(n), true
	case int16:
		return N(n), true
	case int32:
		return N(n), true
	case int64:
		return N(n), true
	case uint:
		return N(n), true
	case uint8:
		return N(n), true
	case uint16:
		return N(n), true
	case uint32:
		return N(n), true
	case uint64:
		return N(n), true
	case float32:
		return N(n), true
	case float64:
		return N(n), true
	default:
		return 0, false
	}
}

// asInt64 normalizes an integral number to int64. Floats with a fraction
// are not integral and report false.
func asInt64(v any) (int64, bool) {
	switch v.(type) {
	case float32, float64:
		f, _ := numberAs[float64](v)
		i := int64(f)
		return i, float64(i) == f
	}
	return numberAs[int64](v)
}

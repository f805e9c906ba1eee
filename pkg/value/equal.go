package value

import "sort"

// Equal reports whether a and b are structurally equal. Absent and null
// compare equal.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch x := a.(type) {
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Number:
		y, ok := b.(Number)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y, ok := b.(Object)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case Array:
		out := make(Array, len(t))
		for i, child := range t {
			out[i] = Clone(child)
		}
		return out
	case Object:
		out := make(Object, len(t))
		for k, child := range t {
			out[k] = Clone(child)
		}
		return out
	}
	return v
}

// SortedKeys returns the keys of o in lexical order.
func SortedKeys(o Object) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeepMerge overlays override onto base. Objects merge key by key;
// any other override replaces the base value. An absent override keeps base.
func DeepMerge(base, override Value) Value {
	if override == nil {
		return Clone(base)
	}
	bo, bok := base.(Object)
	oo, ook := override.(Object)
	if !bok || !ook {
		return Clone(override)
	}

	out := make(Object, len(bo)+len(oo))
	for k, v := range bo {
		out[k] = Clone(v)
	}
	for k, v := range oo {
		out[k] = DeepMerge(bo[k], v)
	}
	return out
}

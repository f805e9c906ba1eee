package value

import (
	"strconv"
	"strings"

	"github.com/agentstation/curator/pkg/errors"
)

// SplitPath splits a dot path such as "members.0.name" into segments.
func SplitPath(dot string) []string {
	if dot == "" {
		return nil
	}
	return strings.Split(dot, ".")
}

// JoinPath joins path segments into a dot path.
func JoinPath(path []string) string {
	return strings.Join(path, ".")
}

// Get returns the value at path and whether it exists.
func Get(root Value, path []string) (Value, bool) {
	cur := root
	for _, seg := range path {
		switch c := cur.(type) {
		case Object:
			child, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = child
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Set returns a copy of root with v stored at path. Containers along the
// path are copied; untouched subtrees are shared. Missing or scalar
// intermediates become objects. An array segment may address one past the
// end to append.
func Set(root Value, path []string, v Value) (Value, error) {
	if len(path) == 0 {
		return v, nil
	}
	head, rest := path[0], path[1:]

	switch c := root.(type) {
	case Object:
		out := make(Object, len(c)+1)
		for k, child := range c {
			out[k] = child
		}
		child, err := Set(c[head], rest, v)
		if err != nil {
			return nil, err
		}
		out[head] = child
		return out, nil
	case Array:
		i, err := index(head, len(c)+1)
		if err != nil {
			return nil, err
		}
		out := make(Array, len(c), len(c)+1)
		copy(out, c)
		if i == len(c) {
			child, err := Set(nil, rest, v)
			if err != nil {
				return nil, err
			}
			return append(out, child), nil
		}
		child, err := Set(c[i], rest, v)
		if err != nil {
			return nil, err
		}
		out[i] = child
		return out, nil
	default:
		child, err := Set(nil, rest, v)
		if err != nil {
			return nil, err
		}
		return Object{head: child}, nil
	}
}

// Delete returns a copy of root without the value at path. Deleting an
// array element shifts later elements down. The boolean reports whether
// anything was removed.
func Delete(root Value, path []string) (Value, bool, error) {
	if len(path) == 0 {
		return nil, root != nil, nil
	}
	head, rest := path[0], path[1:]

	switch c := root.(type) {
	case Object:
		child, ok := c[head]
		if !ok {
			return root, false, nil
		}
		out := make(Object, len(c))
		for k, v := range c {
			out[k] = v
		}
		if len(rest) == 0 {
			delete(out, head)
			return out, true, nil
		}
		next, removed, err := Delete(child, rest)
		if err != nil || !removed {
			return root, removed, err
		}
		out[head] = next
		return out, true, nil
	case Array:
		i, err := strconv.Atoi(head)
		if err != nil || i < 0 {
			return nil, false, errors.NewValidationError("path", head, "array index must be a non-negative integer")
		}
		if i >= len(c) {
			return root, false, nil
		}
		if len(rest) == 0 {
			out := make(Array, 0, len(c)-1)
			out = append(out, c[:i]...)
			return append(out, c[i+1:]...), true, nil
		}
		next, removed, err := Delete(c[i], rest)
		if err != nil || !removed {
			return root, removed, err
		}
		out := make(Array, len(c))
		copy(out, c)
		out[i] = next
		return out, true, nil
	default:
		return root, false, nil
	}
}

// Paths lists the dot paths of every leaf in v. Empty containers count as leaves.
func Paths(v Value) []string {
	var out []string
	var walk func(prefix []string, cur Value)
	walk = func(prefix []string, cur Value) {
		switch c := cur.(type) {
		case Object:
			if len(c) == 0 {
				out = append(out, JoinPath(prefix))
				return
			}
			for _, k := range SortedKeys(c) {
				walk(append(append([]string(nil), prefix...), k), c[k])
			}
		case Array:
			if len(c) == 0 {
				out = append(out, JoinPath(prefix))
				return
			}
			for i, child := range c {
				walk(append(append([]string(nil), prefix...), strconv.Itoa(i)), child)
			}
		default:
			out = append(out, JoinPath(prefix))
		}
	}
	walk(nil, v)
	return out
}

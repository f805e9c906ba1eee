package differ

import (
	"strconv"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/value"
)

// Differ computes structural changes between two values.
type Differ interface {
	// Diff compares two values from the root.
	Diff(from, to value.Value) []FieldChange

	// DiffAt compares two values located at path.
	DiffAt(from, to value.Value, path []string) []FieldChange
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreFields map[string]bool
	positional   float64
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreFields: make(map[string]bool),
		positional:   constants.PositionalConfidence,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDiffer = New()

// Diff compares two values with the default Differ.
func Diff(from, to value.Value) []FieldChange {
	return defaultDiffer.Diff(from, to)
}

// DiffAt compares two values located at path with the default Differ.
func DiffAt(from, to value.Value, path []string) []FieldChange {
	return defaultDiffer.DiffAt(from, to, path)
}

func (d *differ) Diff(from, to value.Value) []FieldChange {
	return d.DiffAt(from, to, nil)
}

func (d *differ) DiffAt(from, to value.Value, path []string) []FieldChange {
	changes := []FieldChange{}
	d.diff(from, to, append([]string(nil), path...), &changes)
	return changes
}

func (d *differ) diff(from, to value.Value, path []string, out *[]FieldChange) {
	if len(d.ignoreFields) > 0 && d.ignoreFields[value.JoinPath(path)] {
		return
	}

	fromAbsent, toAbsent := value.IsNull(from), value.IsNull(to)
	switch {
	case fromAbsent && toAbsent:
		// absent and explicit null differ only in presence
		if from == nil && to != nil {
			d.emit(out, path, ChangeTypeAdd, from, to, constants.ExactConfidence)
		} else if from != nil && to == nil {
			d.emit(out, path, ChangeTypeDelete, from, nil, constants.ExactConfidence)
		}
		return
	case fromAbsent:
		d.emit(out, path, ChangeTypeAdd, from, to, constants.ExactConfidence)
		return
	case toAbsent:
		d.emit(out, path, ChangeTypeDelete, from, to, constants.ExactConfidence)
		return
	}

	switch f := from.(type) {
	case value.Array:
		if t, ok := to.(value.Array); ok {
			d.diffArrays(f, t, path, out)
			return
		}
	case value.Object:
		if t, ok := to.(value.Object); ok {
			d.diffObjects(f, t, path, out)
			return
		}
	}

	if !value.Equal(from, to) {
		d.emit(out, path, ChangeTypeModify, from, to, constants.ExactConfidence)
	}
}

func (d *differ) diffArrays(from, to value.Array, path []string, out *[]FieldChange) {
	n := max(len(from), len(to))
	for i := 0; i < n; i++ {
		child := appendPath(path, strconv.Itoa(i))
		switch {
		case i >= len(from):
			if !d.ignored(child) {
				d.emit(out, child, ChangeTypeAdd, nil, nullIfNil(to[i]), d.positional)
			}
		case i >= len(to):
			if !d.ignored(child) {
				d.emit(out, child, ChangeTypeDelete, nullIfNil(from[i]), nil, d.positional)
			}
		default:
			d.diff(nullIfNil(from[i]), nullIfNil(to[i]), child, out)
		}
	}
}

func (d *differ) diffObjects(from, to value.Object, path []string, out *[]FieldChange) {
	keys := make(map[string]struct{}, len(from)+len(to))
	for k := range from {
		keys[k] = struct{}{}
	}
	for k := range to {
		keys[k] = struct{}{}
	}
	union := make(value.Object, len(keys))
	for k := range keys {
		union[k] = nil
	}

	for _, k := range value.SortedKeys(union) {
		child := appendPath(path, k)
		fv, inFrom := from[k]
		tv, inTo := to[k]
		switch {
		case !inFrom:
			if !d.ignored(child) {
				d.emit(out, child, ChangeTypeAdd, nil, nullIfNil(tv), constants.ExactConfidence)
			}
		case !inTo:
			if !d.ignored(child) {
				d.emit(out, child, ChangeTypeDelete, nullIfNil(fv), nil, constants.ExactConfidence)
			}
		default:
			d.diff(nullIfNil(fv), nullIfNil(tv), child, out)
		}
	}
}

func (d *differ) ignored(path []string) bool {
	return len(d.ignoreFields) > 0 && d.ignoreFields[value.JoinPath(path)]
}

func (d *differ) emit(out *[]FieldChange, path []string, typ ChangeType, oldValue, newValue value.Value, confidence float64) {
	field := ""
	if len(path) > 0 {
		field = path[len(path)-1]
	}
	*out = append(*out, FieldChange{
		Path:       path,
		Field:      field,
		Type:       typ,
		OldValue:   oldValue,
		NewValue:   newValue,
		Confidence: confidence,
	})
}

func appendPath(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

// nullIfNil maps a nil stored inside a container to an explicit null.
func nullIfNil(v value.Value) value.Value {
	if v == nil {
		return value.Null{}
	}
	return v
}

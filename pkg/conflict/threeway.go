package conflict

import (
	"strconv"

	"github.com/agentstation/curator/pkg/value"
)

// ThreeWay merges ours and theirs against their common base. Properties
// changed on one side only take that side's value; properties changed on
// both sides to different values are reported as conflicts and keep ours
// in the merged result. Overlapping changes at different depths conflict
// at the shallower path.
func ThreeWay(base, ours, theirs value.Value) (value.Value, []Record) {
	m := &merger{fastForward: true}
	merged := m.merge(base, ours, theirs, nil)
	return merged, m.conflicts
}

type merger struct {
	// fastForward takes theirs when ours still equals base.
	fastForward bool
	conflicts   []Record
}

func (m *merger) merge(base, ours, theirs value.Value, path []string) value.Value {
	if value.Equal(ours, theirs) {
		return keep(ours, theirs)
	}
	if value.Equal(base, theirs) {
		return ours
	}
	if m.fastForward && value.Equal(base, ours) {
		return theirs
	}

	switch o := ours.(type) {
	case value.Object:
		if t, ok := theirs.(value.Object); ok {
			b, _ := base.(value.Object)
			return m.mergeObjects(b, o, t, path)
		}
	case value.Array:
		if t, ok := theirs.(value.Array); ok && len(o) == len(t) {
			b, _ := base.(value.Array)
			if len(b) != len(o) {
				b = nil
			}
			return m.mergeArrays(b, o, t, path)
		}
	}

	m.conflicts = append(m.conflicts, newRecord(path, base, ours, theirs))
	return ours
}

func (m *merger) mergeObjects(base, ours, theirs value.Object, path []string) value.Value {
	union := make(value.Object, len(ours)+len(theirs))
	for k := range ours {
		union[k] = nil
	}
	for k := range theirs {
		union[k] = nil
	}

	out := make(value.Object, len(union))
	for _, k := range value.SortedKeys(union) {
		var b value.Value
		if base != nil {
			b = base[k]
		}
		merged := m.merge(b, ours[k], theirs[k], childPath(path, k))
		if merged != nil {
			out[k] = merged
		}
	}
	return out
}

func (m *merger) mergeArrays(base, ours, theirs value.Array, path []string) value.Value {
	out := make(value.Array, len(ours))
	for i := range ours {
		var b value.Value
		if base != nil {
			b = base[i]
		}
		merged := m.merge(b, ours[i], theirs[i], childPath(path, strconv.Itoa(i)))
		if merged == nil {
			merged = value.Null{}
		}
		out[i] = merged
	}
	return out
}

// keep prefers a present value when ours and theirs compare equal.
func keep(ours, theirs value.Value) value.Value {
	if ours == nil {
		return theirs
	}
	return ours
}

func newRecord(path []string, base, current, external value.Value) Record {
	typ := TypeEdit
	switch {
	case base == nil:
		typ = TypeAdd
	case current == nil || external == nil:
		typ = TypeDelete
	}

	src := SourceExternal
	if current == nil && base != nil {
		src = SourceUser
	}

	return Record{
		Property:      value.JoinPath(path),
		Path:          path,
		ConflictType:  typ,
		OriginalValue: external,
		CurrentValue:  current,
		BaseValue:     base,
		Source:        src,
	}
}

func childPath(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

// Package workflow tracks an entity through an edit session: local
// changes, externally observed updates, conflicts and commit.
//
// States move new → clean → dirty → conflicted → clean. An item leaves the
// conflicted state only when every conflict is resolved.
package workflow

import (
	"time"

	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
)

// now is replaced in tests.
var now = time.Now

// State is the lifecycle state of an item.
type State string

const (
	StateNew        State = "new"
	StateClean      State = "clean"
	StateDirty      State = "dirty-no-conflict"
	StateConflicted State = "dirty-conflicted"
)

// Item is an entity plus its edit-session state. An Item belongs to a
// single edit session and is not safe for concurrent use.
type Item[T any] struct {
	EntityID      string            `json:"entityId,omitempty"`
	Data          T                 `json:"data"`
	New           bool              `json:"new"`
	Dirty         bool              `json:"dirty"`
	Conflicts     []conflict.Record `json:"conflicts"`
	Version       int               `json:"version"`
	LastModified  time.Time         `json:"lastModified"`
	BaseVersionID string            `json:"baseVersionId,omitempty"`

	// base is the last state agreed between the user and upstream.
	base value.Value
}

// New creates an item from an initial value. A new item has no agreed base;
// an existing one treats data as its base.
func New[T any](entityID string, data T, isNew bool) (*Item[T], error) {
	item := &Item[T]{
		EntityID:     entityID,
		Data:         data,
		New:          isNew,
		Conflicts:    []conflict.Record{},
		LastModified: now(),
	}
	if !isNew {
		base, err := value.Of(data)
		if err != nil {
			return nil, errors.WrapSerialization(entityID, err)
		}
		item.base = base
	}
	return item, nil
}

// FromSnapshot creates a clean item from a committed snapshot.
func FromSnapshot[T any](entityID, versionID string, snapshot value.Value) (*Item[T], error) {
	data, err := value.As[T](snapshot)
	if err != nil {
		return nil, errors.WrapSerialization(entityID, err)
	}
	return &Item[T]{
		EntityID:      entityID,
		Data:          data,
		Conflicts:     []conflict.Record{},
		LastModified:  now(),
		BaseVersionID: versionID,
		base:          value.Clone(snapshot),
	}, nil
}

// Base returns the last agreed value, or nil for a new item.
func (it *Item[T]) Base() value.Value {
	return it.base
}

// State reports the item's lifecycle state.
func (it *Item[T]) State() State {
	switch {
	case len(it.Conflicts) > 0:
		return StateConflicted
	case it.Dirty:
		return StateDirty
	case it.New:
		return StateNew
	default:
		return StateClean
	}
}

// Value returns the item's data as a Value.
func (it *Item[T]) Value() (value.Value, error) {
	v, err := value.Of(it.Data)
	if err != nil {
		return nil, errors.WrapSerialization(it.EntityID, err)
	}
	return v, nil
}

// UpdateData records local edits. When external is non-nil it is compared
// with the edits against the base; disagreements become conflicts and
// conflict-free external changes are folded into Data. The external value
// becomes the new base since the user has now observed it.
func (it *Item[T]) UpdateData(newData T, external *T) ([]conflict.Record, error) {
	if external == nil {
		it.Data = newData
		it.touch()
		return nil, nil
	}

	current, err := value.Of(newData)
	if err != nil {
		return nil, errors.WrapSerialization(it.EntityID, err)
	}
	ext, err := value.Of(*external)
	if err != nil {
		return nil, errors.WrapSerialization(it.EntityID, err)
	}

	detection := conflict.Detect(it.base, current, ext)
	merged, err := value.As[T](detection.Merged)
	if err != nil {
		return nil, errors.WrapSerialization(it.EntityID, err)
	}

	it.Data = merged
	it.Conflicts = mergeConflicts(it.Conflicts, detection.Conflicts)
	it.base = ext
	it.touch()
	return detection.Conflicts, nil
}

// ResolveConflicts applies the given resolutions and removes the matching
// conflicts. Conflicts without a resolution stay pending, and the item
// stays conflicted until every conflict is resolved.
func (it *Item[T]) ResolveConflicts(resolutions map[string]conflict.Resolution) ([]conflict.Resolved, error) {
	var chosen, pending []conflict.Record
	for _, c := range it.Conflicts {
		if _, ok := resolutions[c.Property]; ok {
			chosen = append(chosen, c)
		} else {
			pending = append(pending, c)
		}
	}
	return it.apply(chosen, pending, resolutions)
}

// ApplyResolutions resolves every pending conflict, using KeepCurrent for
// any property without an explicit resolution.
func (it *Item[T]) ApplyResolutions(resolutions map[string]conflict.Resolution) ([]conflict.Resolved, error) {
	return it.apply(it.Conflicts, nil, resolutions)
}

func (it *Item[T]) apply(chosen, pending []conflict.Record, resolutions map[string]conflict.Resolution) ([]conflict.Resolved, error) {
	if len(chosen) == 0 {
		return []conflict.Resolved{}, nil
	}

	resolved, err := conflict.ResolveAll(chosen, resolutions)
	if err != nil {
		return nil, err
	}

	current, err := it.Value()
	if err != nil {
		return nil, err
	}
	updated, err := conflict.Apply(current, resolved)
	if err != nil {
		return nil, err
	}
	data, err := value.As[T](updated)
	if err != nil {
		return nil, errors.WrapSerialization(it.EntityID, err)
	}

	it.Data = data
	if pending == nil {
		pending = []conflict.Record{}
	}
	it.Conflicts = pending
	it.Version++
	it.LastModified = now()
	if len(it.Conflicts) == 0 {
		it.Dirty = false
	}
	return resolved, nil
}

// ClearConflicts drops pending conflicts, keeping the current data.
func (it *Item[T]) ClearConflicts() {
	if len(it.Conflicts) == 0 {
		return
	}
	it.Conflicts = []conflict.Record{}
	it.touch()
}

// MarkCommitted records that Data was persisted as versionID. It fails
// while conflicts are pending.
func (it *Item[T]) MarkCommitted(versionID string) error {
	if len(it.Conflicts) > 0 {
		return &errors.ConflictsUnresolvedError{EntityID: it.EntityID, Properties: conflict.Properties(it.Conflicts)}
	}
	base, err := it.Value()
	if err != nil {
		return err
	}
	it.base = base
	it.BaseVersionID = versionID
	it.New = false
	it.Dirty = false
	it.LastModified = now()
	return nil
}

func (it *Item[T]) touch() {
	it.Dirty = true
	it.Version++
	it.LastModified = now()
}

// mergeConflicts replaces records for re-detected properties and keeps the rest.
func mergeConflicts(existing, detected []conflict.Record) []conflict.Record {
	seen := make(map[string]bool, len(detected))
	for _, c := range detected {
		seen[c.Property] = true
	}
	out := make([]conflict.Record, 0, len(existing)+len(detected))
	for _, c := range existing {
		if !seen[c.Property] {
			out = append(out, c)
		}
	}
	return append(out, detected...)
}

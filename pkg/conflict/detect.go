package conflict

import (
	"github.com/agentstation/curator/pkg/value"
)

// Detection is the outcome of comparing local edits with external data.
type Detection struct {
	// Merged holds current with every conflict-free external change applied.
	// Conflicting properties keep the current value.
	Merged    value.Value `json:"merged"`
	Conflicts []Record    `json:"conflicts"`
}

// HasConflicts reports whether any conflict was found.
func (d *Detection) HasConflicts() bool {
	return len(d.Conflicts) > 0
}

type detectOptions struct {
	fieldFastForward bool
}

// DetectOption configures Detect.
type DetectOption func(*detectOptions)

// WithFieldFastForward applies external changes to properties the user has
// not touched, reporting conflicts only where both sides changed the same
// property. By default an item with local edits surfaces every external
// change that disagrees with the current value.
func WithFieldFastForward() DetectOption {
	return func(o *detectOptions) {
		o.fieldFastForward = true
	}
}

// Detect compares a user's current value and a freshly observed external
// value against the last agreed base.
//
// When current still equals base, the external value is taken as is. When
// external equals base, current is kept. Otherwise properties that only the
// user changed never conflict, and external changes that disagree with the
// user's value are reported.
func Detect(base, current, external value.Value, opts ...DetectOption) *Detection {
	o := &detectOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch {
	case value.Equal(base, current):
		return &Detection{Merged: value.Clone(external), Conflicts: []Record{}}
	case value.Equal(base, external):
		return &Detection{Merged: value.Clone(current), Conflicts: []Record{}}
	}

	m := &merger{fastForward: o.fieldFastForward}
	merged := m.merge(base, current, external, nil)
	conflicts := m.conflicts
	if conflicts == nil {
		conflicts = []Record{}
	}
	return &Detection{Merged: value.Clone(merged), Conflicts: conflicts}
}

// Package differ computes structural diffs between entity values and
// applies them back as patches.
package differ

import (
	"fmt"
	"strings"

	"github.com/agentstation/curator/pkg/value"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a value appeared at a path.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeModify indicates a value at a path changed.
	ChangeTypeModify ChangeType = "modify"
	// ChangeTypeDelete indicates a value disappeared from a path.
	ChangeTypeDelete ChangeType = "delete"
)

// FieldChange represents a change at a specific path.
//
// A delete whose NewValue is an explicit null records "set to null" rather
// than removal; a delete with a nil NewValue removes the key or element.
type FieldChange struct {
	Path       []string    `json:"path"`
	Field      string      `json:"field"`
	Type       ChangeType  `json:"type"`
	OldValue   value.Value `json:"oldValue,omitempty"`
	NewValue   value.Value `json:"newValue,omitempty"`
	Confidence float64     `json:"confidence"`
}

// Property returns the dot path of the change.
func (c FieldChange) Property() string {
	return value.JoinPath(c.Path)
}

// String renders the change on one line.
func (c FieldChange) String() string {
	prop := c.Property()
	if prop == "" {
		prop = "(root)"
	}
	switch c.Type {
	case ChangeTypeAdd:
		return fmt.Sprintf("+ %s: %s", prop, value.Format(c.NewValue))
	case ChangeTypeDelete:
		return fmt.Sprintf("- %s: %s", prop, value.Format(c.OldValue))
	default:
		return fmt.Sprintf("~ %s: %s -> %s", prop, value.Format(c.OldValue), value.Format(c.NewValue))
	}
}

// Summary counts changes by type.
type Summary struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
	Total    int `json:"total"`
}

// Summarize computes the summary for a list of changes.
func Summarize(changes []FieldChange) Summary {
	var s Summary
	for _, c := range changes {
		switch c.Type {
		case ChangeTypeAdd:
			s.Added++
		case ChangeTypeModify:
			s.Modified++
		case ChangeTypeDelete:
			s.Deleted++
		}
	}
	s.Total = s.Added + s.Modified + s.Deleted
	return s
}

// HasChanges returns true if the summary counts any change.
func (s Summary) HasChanges() bool {
	return s.Total > 0
}

// String returns a human-readable summary.
func (s Summary) String() string {
	if s.Total == 0 {
		return "No changes detected"
	}
	var parts []string
	if s.Added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", s.Added))
	}
	if s.Modified > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", s.Modified))
	}
	if s.Deleted > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", s.Deleted))
	}
	return strings.Join(parts, ", ")
}

// ByPath indexes changes by dot path.
func ByPath(changes []FieldChange) map[string]FieldChange {
	out := make(map[string]FieldChange, len(changes))
	for _, c := range changes {
		out[c.Property()] = c
	}
	return out
}

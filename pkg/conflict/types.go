// Package conflict detects divergence between a user's in-progress edits
// and externally observed data, and resolves it field by field.
package conflict

import (
	"fmt"

	"github.com/agentstation/curator/pkg/value"
)

// Type classifies a conflict.
type Type string

const (
	// TypeEdit means both sides hold different values for an existing property.
	TypeEdit Type = "edit"
	// TypeAdd means the property did not exist in the base.
	TypeAdd Type = "add"
	// TypeDelete means one side removed the property.
	TypeDelete Type = "delete"
)

// Source identifies which side introduced the conflicting change.
type Source string

const (
	SourceUser     Source = "user"
	SourceExternal Source = "external"
)

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	// KeepOriginal takes the external (or base) value.
	KeepOriginal Strategy = "keep_original"
	// KeepCurrent takes the user's current value.
	KeepCurrent Strategy = "keep_current"
	// Merge combines disjoint sub-path changes, falling back to KeepCurrent.
	Merge Strategy = "merge"
	// Manual takes a caller-supplied value verbatim.
	Manual Strategy = "manual"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case KeepOriginal, KeepCurrent, Merge, Manual:
		return true
	}
	return false
}

// Record describes one conflicting property. A nil value means the
// property is absent on that side.
type Record struct {
	Property      string      `json:"property"`
	Path          []string    `json:"path"`
	ConflictType  Type        `json:"conflictType"`
	OriginalValue value.Value `json:"originalValue,omitempty"`
	CurrentValue  value.Value `json:"currentValue,omitempty"`
	BaseValue     value.Value `json:"baseValue,omitempty"`
	Source        Source      `json:"source"`
}

// String renders the record on one line.
func (r Record) String() string {
	return fmt.Sprintf("%s (%s): external %s, current %s",
		r.Property, r.ConflictType, value.Format(r.OriginalValue), value.Format(r.CurrentValue))
}

// Resolution is the outcome chosen for a conflict.
type Resolution struct {
	Strategy      Strategy    `json:"strategy"`
	ResolvedValue value.Value `json:"resolvedValue,omitempty"`
	Reason        string      `json:"reason,omitempty"`
}

// Resolved pairs a conflict with the resolution applied to it.
type Resolved struct {
	Record     Record     `json:"record"`
	Resolution Resolution `json:"resolution"`
}

// Properties returns the property names of records, in order.
func Properties(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Property
	}
	return out
}

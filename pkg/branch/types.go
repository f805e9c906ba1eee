// Package branch forks entity histories into named branches and merges
// them back with a three-way merge against their nearest common ancestor.
package branch

import (
	"time"

	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

// Strategy selects how MergeBranches finishes a merge.
type Strategy string

const (
	// Auto commits the merge when it has no conflicts.
	Auto Strategy = "auto"
	// Manual only computes the merge; CompleteMerge commits it.
	Manual Strategy = "manual"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == Auto || s == Manual
}

// Info describes a branch.
type Info struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	EntityID string `json:"entityId"`
	// BranchPoint is the version of EntityID the branch was forked from.
	BranchPoint string    `json:"branchPoint"`
	Head        string    `json:"head"`
	Versions    int       `json:"versions"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// MergeResult reports a merge. Conflicts are reported through Err rather
// than as a returned error; nothing is committed while conflicts remain.
type MergeResult struct {
	Success   bool     `json:"success"`
	Committed bool     `json:"committed"`
	Strategy  Strategy `json:"strategy"`
	TargetID  string   `json:"targetId"`
	SourceID  string   `json:"sourceId"`
	// Ancestor is the nearest common ancestor, empty when the histories
	// are unrelated.
	Ancestor string `json:"ancestor,omitempty"`
	// TargetHead and SourceHead are the versions that were merged.
	TargetHead string                `json:"targetHead"`
	SourceHead string                `json:"sourceHead"`
	MergedData value.Value           `json:"mergedData,omitempty"`
	Conflicts  []conflict.Record     `json:"conflicts,omitempty"`
	Version    *versions.DataVersion `json:"version,omitempty"`
	Err        error                 `json:"-"`
}

// HasConflicts reports whether the merge stopped on conflicts.
func (r *MergeResult) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

package workflow

import "github.com/agentstation/curator/pkg/conflict"

// Validation is the publish-readiness verdict for an item.
type Validation struct {
	Valid               bool              `json:"valid"`
	UnresolvedConflicts []conflict.Record `json:"unresolvedConflicts"`
}

// ValidateNoConflicts reports whether item may be published. A nil item
// never is.
func ValidateNoConflicts[T any](item *Item[T]) Validation {
	if item == nil {
		return Validation{Valid: false, UnresolvedConflicts: []conflict.Record{}}
	}
	if len(item.Conflicts) == 0 {
		return Validation{Valid: true, UnresolvedConflicts: []conflict.Record{}}
	}
	pending := make([]conflict.Record, len(item.Conflicts))
	copy(pending, item.Conflicts)
	return Validation{Valid: false, UnresolvedConflicts: pending}
}

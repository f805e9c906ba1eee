package differ

import (
	"fmt"

	"github.com/agentstation/curator/pkg/value"
)

// Apply patches base with changes and returns the result. Additions and
// modifications are applied in order, then deletions in reverse order so
// that trailing array removals do not shift each other. base is not
// modified.
func Apply(base value.Value, changes []FieldChange) (value.Value, error) {
	out := base
	var deletes []FieldChange

	for _, c := range changes {
		if c.Type == ChangeTypeDelete {
			deletes = append(deletes, c)
			continue
		}
		next, err := value.Set(out, c.Path, c.NewValue)
		if err != nil {
			return nil, fmt.Errorf("apply %s at %q: %w", c.Type, c.Property(), err)
		}
		out = next
	}

	for i := len(deletes) - 1; i >= 0; i-- {
		c := deletes[i]
		if c.NewValue != nil {
			next, err := value.Set(out, c.Path, c.NewValue)
			if err != nil {
				return nil, fmt.Errorf("apply delete at %q: %w", c.Property(), err)
			}
			out = next
			continue
		}
		next, _, err := value.Delete(out, c.Path)
		if err != nil {
			return nil, fmt.Errorf("apply delete at %q: %w", c.Property(), err)
		}
		out = next
	}

	return out, nil
}

package conflict

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
)

// Resolve computes the resolved value for a single conflict. For Manual,
// choice.ResolvedValue is used verbatim. Merge falls back to KeepCurrent
// when the two sides cannot be combined, noting the fallback in Reason.
func Resolve(record Record, choice Resolution) (Resolution, error) {
	switch choice.Strategy {
	case KeepOriginal:
		return Resolution{Strategy: KeepOriginal, ResolvedValue: record.OriginalValue, Reason: reason(choice, "kept external value")}, nil
	case KeepCurrent:
		return Resolution{Strategy: KeepCurrent, ResolvedValue: record.CurrentValue, Reason: reason(choice, "kept current value")}, nil
	case Manual:
		return Resolution{Strategy: Manual, ResolvedValue: choice.ResolvedValue, Reason: reason(choice, "manually resolved")}, nil
	case Merge:
		return mergeRecord(record, choice), nil
	default:
		return Resolution{}, errors.NewValidationError("strategy", choice.Strategy, "unknown resolution strategy")
	}
}

func mergeRecord(record Record, choice Resolution) Resolution {
	if !value.IsContainer(record.CurrentValue) || !value.IsContainer(record.OriginalValue) {
		return Resolution{
			Strategy:      KeepCurrent,
			ResolvedValue: record.CurrentValue,
			Reason: fmt.Sprintf("merge fell back to keep_current: %s and %s values cannot be merged",
				value.KindOf(record.CurrentValue), value.KindOf(record.OriginalValue)),
		}
	}

	merged, conflicts := ThreeWay(record.BaseValue, record.CurrentValue, record.OriginalValue)
	if len(conflicts) > 0 {
		return Resolution{
			Strategy:      KeepCurrent,
			ResolvedValue: record.CurrentValue,
			Reason:        fmt.Sprintf("merge fell back to keep_current: both sides changed %v", Properties(conflicts)),
		}
	}
	return Resolution{Strategy: Merge, ResolvedValue: merged, Reason: reason(choice, "merged disjoint changes")}
}

func reason(choice Resolution, fallback string) string {
	if choice.Reason != "" {
		return choice.Reason
	}
	return fallback
}

// ResolveAll resolves every record, looking choices up by property. Records
// without a choice use KeepCurrent.
func ResolveAll(records []Record, choices map[string]Resolution) ([]Resolved, error) {
	out := make([]Resolved, 0, len(records))
	for _, r := range records {
		choice, ok := choices[r.Property]
		if !ok {
			choice = Resolution{Strategy: KeepCurrent, Reason: "no resolution supplied, kept current value"}
		}
		res, err := Resolve(r, choice)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", r.Property, err)
		}
		out = append(out, Resolved{Record: r, Resolution: res})
	}
	return out, nil
}

// Apply writes resolved values into data. A nil resolved value removes the
// property. Removals run deepest and highest index first so array
// positions stay valid. data is not modified.
func Apply(data value.Value, resolved []Resolved) (value.Value, error) {
	out := data
	var removals []Resolved

	for _, r := range resolved {
		if r.Resolution.ResolvedValue == nil {
			removals = append(removals, r)
			continue
		}
		next, err := value.Set(out, r.Record.Path, r.Resolution.ResolvedValue)
		if err != nil {
			return nil, fmt.Errorf("apply resolution for %s: %w", r.Record.Property, err)
		}
		out = next
	}

	sort.SliceStable(removals, func(i, j int) bool {
		return pathAfter(removals[i].Record.Path, removals[j].Record.Path)
	})
	for _, r := range removals {
		next, _, err := value.Delete(out, r.Record.Path)
		if err != nil {
			return nil, fmt.Errorf("apply resolution for %s: %w", r.Record.Property, err)
		}
		out = next
	}
	return out, nil
}

// pathAfter orders paths so that later array indices and deeper paths come first.
func pathAfter(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		ai, aerr := strconv.Atoi(a[i])
		bi, berr := strconv.Atoi(b[i])
		if aerr == nil && berr == nil {
			return ai > bi
		}
		return a[i] > b[i]
	}
	return len(a) > len(b)
}

package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/curator/pkg/branch"
	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

// Print writes data in format. JSON and YAML print data.Source.
func Print(w io.Writer, format Format, data Data) error {
	return NewFormatter(format).Format(w, data)
}

// HistoryData renders a version log newest first.
func HistoryData(history []versions.DataVersion) Data {
	rows := make([][]string, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		v := history[i]
		rows = append(rows, []string{
			v.ID,
			v.Timestamp.Format(time.RFC3339),
			string(v.Metadata.Operation),
			v.Metadata.Author,
			v.Metadata.Source,
			strings.Join(v.Metadata.Tags, ","),
			strconv.Itoa(v.Metadata.SizeBytes),
		})
	}
	return Data{
		Headers:         []string{"ID", "Timestamp", "Operation", "Author", "Source", "Tags", "Size"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight},
		Source:          history,
	}
}

// VersionData renders one version as property rows, one per top-level field.
func VersionData(v *versions.DataVersion) Data {
	rows := [][]string{
		{"id", v.ID},
		{"entity", v.EntityID},
		{"timestamp", v.Timestamp.Format(time.RFC3339Nano)},
		{"operation", string(v.Metadata.Operation)},
		{"checksum", v.Checksum},
	}
	if v.Metadata.ParentVersion != "" {
		rows = append(rows, []string{"parent", v.Metadata.ParentVersion})
	}
	if v.Metadata.MergedFrom != "" {
		rows = append(rows, []string{"merged from", v.Metadata.MergedFrom})
	}
	if obj, ok := v.Data.(value.Object); ok {
		for _, k := range value.SortedKeys(obj) {
			rows = append(rows, []string{"data." + k, value.Format(obj[k])})
		}
	} else {
		rows = append(rows, []string{"data", value.Format(v.Data)})
	}
	return Data{Headers: []string{"Property", "Value"}, Rows: rows, Source: v}
}

// DiffData renders a version comparison, one row per change.
func DiffData(diff *versions.VersionDiff) Data {
	rows := make([][]string, 0, len(diff.Changes))
	for _, c := range diff.Changes {
		rows = append(rows, []string{
			string(c.Type),
			c.Property(),
			value.Format(c.OldValue),
			value.Format(c.NewValue),
			strconv.FormatFloat(c.Confidence, 'f', 2, 64),
		})
	}
	return Data{
		Headers:         []string{"Change", "Path", "Old", "New", "Confidence"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight},
		Source:          diff,
	}
}

// StatsData renders version statistics.
func StatsData(stats *versions.Stats) Data {
	rows := [][]string{
		{"entities", strconv.Itoa(stats.TotalEntities)},
		{"versions", strconv.Itoa(stats.TotalVersions)},
		{"average per entity", strconv.FormatFloat(stats.AverageVersionsPerEntity, 'f', 2, 64)},
		{"total size", strconv.FormatInt(stats.TotalSizeBytes, 10)},
	}
	if stats.OldestVersion != nil {
		rows = append(rows, []string{"oldest", stats.OldestVersion.Format(time.RFC3339)})
	}
	if stats.NewestVersion != nil {
		rows = append(rows, []string{"newest", stats.NewestVersion.Format(time.RFC3339)})
	}
	ops := make([]string, 0, len(stats.ByOperation))
	for op := range stats.ByOperation {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	for _, op := range ops {
		rows = append(rows, []string{"operation " + op, strconv.Itoa(stats.ByOperation[versions.Operation(op)])})
	}
	return Data{Headers: []string{"Stat", "Value"}, Rows: rows, Source: stats}
}

// CleanupData renders a cleanup result, one row per affected entity.
func CleanupData(result *versions.CleanupResult) Data {
	entities := make([]string, 0, len(result.RemovedVersions))
	for id := range result.RemovedVersions {
		entities = append(entities, id)
	}
	sort.Strings(entities)

	rows := make([][]string, 0, len(entities)+len(result.Skipped)+1)
	for _, id := range entities {
		rows = append(rows, []string{id, strconv.Itoa(len(result.RemovedVersions[id])), ""})
	}
	for _, id := range result.Skipped {
		rows = append(rows, []string{id, "0", "skipped"})
	}
	note := ""
	if result.DryRun {
		note = "dry run"
	}
	rows = append(rows, []string{
		fmt.Sprintf("total (%d entities)", result.Entities),
		strconv.Itoa(result.Removed),
		note,
	})
	return Data{
		Headers:         []string{"Entity", "Removed", "Note"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignLeft},
		Source:          result,
	}
}

// BranchesData renders branch listings.
func BranchesData(branches []branch.Info) Data {
	rows := make([][]string, 0, len(branches))
	for _, b := range branches {
		rows = append(rows, []string{
			b.Name,
			b.ID,
			b.BranchPoint,
			b.Head,
			strconv.Itoa(b.Versions),
			b.Updated.Format(time.RFC3339),
		})
	}
	return Data{
		Headers: []string{"Name", "ID", "Branch Point", "Head", "Versions", "Updated"},
		Rows:    rows,
		Source:  branches,
	}
}

// ConflictsData renders conflict records.
func ConflictsData(records []conflict.Record, source any) Data {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Property,
			string(r.ConflictType),
			value.Format(r.BaseValue),
			value.Format(r.CurrentValue),
			value.Format(r.OriginalValue),
		})
	}
	return Data{
		Headers: []string{"Property", "Type", "Base", "Current", "External"},
		Rows:    rows,
		Source:  source,
	}
}

// Package versions implements the append-only, per-entity version store:
// checksum deduplication, history queries, structural comparison, restore
// and retention cleanup.
package versions

import (
	"encoding/json"
	"slices"
	"sort"
	"time"

	"github.com/agentstation/curator/pkg/differ"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
)

// Operation records why a version was created.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationUpdate  Operation = "update"
	OperationDelete  Operation = "delete"
	OperationRestore Operation = "restore"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRestore:
		return true
	}
	return false
}

// Metadata describes how and why a version was created.
type Metadata struct {
	Author      string    `json:"author,omitempty"`
	Source      string    `json:"source"`
	Operation   Operation `json:"operation"`
	Description string    `json:"description,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	// ParentVersion links versions into a DAG. It is the previous latest
	// version for ordinary writes, the restored version for restores, and
	// the branch point for a branch's first version.
	ParentVersion string `json:"parentVersion,omitempty"`
	// MergedFrom is the second parent of a merge commit.
	MergedFrom string   `json:"mergedFrom,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	SizeBytes  int      `json:"sizeBytes"`
}

// HasTag reports whether the metadata carries tag.
func (m Metadata) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// normalizeTags returns tags sorted and de-duplicated.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// DataVersion is an immutable snapshot of an entity.
type DataVersion struct {
	ID        string      `json:"id"`
	EntityID  string      `json:"entityId"`
	Timestamp time.Time   `json:"timestamp"`
	Data      value.Value `json:"data"`
	Checksum  string      `json:"checksum"`
	Metadata  Metadata    `json:"metadata"`
}

// clone returns a copy that shares the immutable Data tree.
func (v DataVersion) clone() *DataVersion {
	out := v
	out.Metadata.Tags = slices.Clone(v.Metadata.Tags)
	return &out
}

// important versions survive per-item eviction.
func (v DataVersion) important() bool {
	return len(v.Metadata.Tags) > 0 || v.Metadata.Operation == OperationCreate || v.Metadata.Author != ""
}

type dataVersionJSON struct {
	ID        string          `json:"id"`
	EntityID  string          `json:"entityId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Checksum  string          `json:"checksum"`
	Metadata  Metadata        `json:"metadata"`
}

// MarshalJSON encodes the version with canonical data.
func (v DataVersion) MarshalJSON() ([]byte, error) {
	data, err := value.Encode(v.Data)
	if err != nil {
		return nil, errors.WrapSerialization(v.EntityID, err)
	}
	return json.Marshal(dataVersionJSON{
		ID:        v.ID,
		EntityID:  v.EntityID,
		Timestamp: v.Timestamp,
		Data:      data,
		Checksum:  v.Checksum,
		Metadata:  v.Metadata,
	})
}

// UnmarshalJSON decodes a version.
func (v *DataVersion) UnmarshalJSON(b []byte) error {
	var raw dataVersionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.WrapSerialization("", err)
	}
	data, err := value.Parse(raw.Data)
	if err != nil {
		return errors.WrapSerialization(raw.EntityID, err)
	}
	*v = DataVersion{
		ID:        raw.ID,
		EntityID:  raw.EntityID,
		Timestamp: raw.Timestamp,
		Data:      data,
		Checksum:  raw.Checksum,
		Metadata:  raw.Metadata,
	}
	return nil
}

// Query filters version history. Zero fields do not filter.
type Query struct {
	Author     string      `json:"author,omitempty"`
	Source     string      `json:"source,omitempty"`
	Operations []Operation `json:"operations,omitempty"`
	Since      time.Time   `json:"since,omitempty"`
	Until      time.Time   `json:"until,omitempty"`
	// Tags matches versions carrying every listed tag.
	Tags   []string `json:"tags,omitempty"`
	Offset int      `json:"offset,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

func (q Query) matches(v *DataVersion) bool {
	if q.Author != "" && v.Metadata.Author != q.Author {
		return false
	}
	if q.Source != "" && v.Metadata.Source != q.Source {
		return false
	}
	if len(q.Operations) > 0 && !slices.Contains(q.Operations, v.Metadata.Operation) {
		return false
	}
	if !q.Since.IsZero() && v.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && v.Timestamp.After(q.Until) {
		return false
	}
	for _, tag := range q.Tags {
		if !v.Metadata.HasTag(tag) {
			return false
		}
	}
	return true
}

// VersionDiff is the structural difference between two versions.
type VersionDiff struct {
	VersionFrom string               `json:"versionFrom"`
	VersionTo   string               `json:"versionTo"`
	Timestamp   time.Time            `json:"timestamp"`
	Changes     []differ.FieldChange `json:"changes"`
	Summary     differ.Summary       `json:"summary"`
}

// MergeStrategy selects how a restore combines the target with the current data.
type MergeStrategy string

const (
	// Overwrite replaces the current data with the target version's data.
	Overwrite MergeStrategy = "overwrite"
	// MergeCurrent deep-merges the current data over the target's data.
	MergeCurrent MergeStrategy = "merge"
	// Selective copies SelectedFields from the current data into the target's data.
	Selective MergeStrategy = "selective"
)

// RestoreOptions controls RestoreVersion.
type RestoreOptions struct {
	CreateBackup  bool          `json:"createBackup"`
	ValidateData  bool          `json:"validateData"`
	MergeStrategy MergeStrategy `json:"mergeStrategy"`
	// SelectedFields are dot paths used by the Selective strategy.
	SelectedFields []string `json:"selectedFields,omitempty"`
	Author         string   `json:"author,omitempty"`
	Source         string   `json:"source,omitempty"`
	SessionID      string   `json:"sessionId,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// RestoreResult reports a restore. Success is false, with Error set, when
// validation rejected the restored data; the log is then unchanged.
type RestoreResult struct {
	Success       bool         `json:"success"`
	RestoredData  value.Value  `json:"restoredData,omitempty"`
	Version       *DataVersion `json:"version,omitempty"`
	BackupVersion *DataVersion `json:"backupVersion,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// Stats aggregates version counts.
type Stats struct {
	TotalVersions            int               `json:"totalVersions"`
	TotalEntities            int               `json:"totalEntities"`
	AverageVersionsPerEntity float64           `json:"averageVersionsPerEntity"`
	OldestVersion            *time.Time        `json:"oldestVersion,omitempty"`
	NewestVersion            *time.Time        `json:"newestVersion,omitempty"`
	TotalSizeBytes           int64             `json:"totalSizeBytes"`
	ByOperation              map[Operation]int `json:"byOperation"`
}

// CleanupOptions controls retention cleanup.
type CleanupOptions struct {
	// OlderThanDays makes versions older than this many days eligible for removal.
	OlderThanDays int `json:"olderThanDays"`
	// KeepMinimumVersions is the number of versions each log retains at least.
	KeepMinimumVersions int  `json:"keepMinimumVersions"`
	PreserveTagged      bool `json:"preserveTagged"`
	DryRun              bool `json:"dryRun"`
	// EntityIDs limits cleanup to the listed entities. Empty means all.
	EntityIDs []string `json:"entityIds,omitempty"`
}

// Validate checks the options.
func (o CleanupOptions) Validate() error {
	if o.OlderThanDays < 0 {
		return errors.NewValidationError("olderThanDays", o.OlderThanDays, "must not be negative")
	}
	if o.KeepMinimumVersions < 0 {
		return errors.NewValidationError("keepMinimumVersions", o.KeepMinimumVersions, "must not be negative")
	}
	return nil
}

// CleanupResult reports what cleanup removed, or would remove on a dry run.
type CleanupResult struct {
	Removed   int `json:"removed"`
	Preserved int `json:"preserved"`
	Entities  int `json:"entities"`
	// RemovedVersions maps entity ids to the ids of removed versions.
	RemovedVersions map[string][]string `json:"removedVersions,omitempty"`
	// Skipped lists entities whose logs could not be read or were malformed.
	Skipped []string `json:"skipped,omitempty"`
	DryRun  bool     `json:"dryRun"`
}

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/curator/pkg/differ"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

func sampleHistory() []versions.DataVersion {
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return []versions.DataVersion{
		{
			ID: "band-7_1", EntityID: "band-7", Timestamp: ts,
			Data:     value.Object{"name": value.String("The Tide")},
			Metadata: versions.Metadata{Operation: versions.OperationCreate, Source: "import", SizeBytes: 19},
		},
		{
			ID: "band-7_2", EntityID: "band-7", Timestamp: ts.Add(time.Hour),
			Data:     value.Object{"name": value.String("The Tides"), "members": value.Null{}},
			Metadata: versions.Metadata{Operation: versions.OperationUpdate, Author: "ana", Source: "cli", Tags: []string{"reviewed"}, SizeBytes: 35},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("wide")
	assert.Error(t, err)
}

func TestHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, HistoryData(sampleHistory())))

	out := buf.String()
	assert.Contains(t, out, "OPERATION")
	assert.Contains(t, out, "reviewed")
	// newest first
	assert.Less(t, strings.Index(out, "band-7_2"), strings.Index(out, "band-7_1"))
}

func TestHistoryJSONPrintsSource(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatJSON, HistoryData(sampleHistory())))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "band-7_1", got[0]["id"])
	assert.Equal(t, map[string]any{"name": "The Tides", "members": nil}, got[1]["data"])
}

func TestVersionYAML(t *testing.T) {
	history := sampleHistory()
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatYAML, VersionData(&history[1])))

	out := buf.String()
	assert.Contains(t, out, "id: band-7_2")
	assert.Contains(t, out, "members: null")
}

func TestDiffTable(t *testing.T) {
	changes := []differ.FieldChange{
		{Path: []string{"name"}, Type: differ.ChangeTypeModify, OldValue: value.String("The Tide"), NewValue: value.String("The Tides"), Confidence: 1},
	}
	diff := &versions.VersionDiff{VersionFrom: "a", VersionTo: "b", Changes: changes, Summary: differ.Summarize(changes)}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, DiffData(diff)))
	assert.Contains(t, buf.String(), `"The Tides"`)
	assert.Contains(t, buf.String(), "1.00")
}

func TestCleanupData(t *testing.T) {
	data := CleanupData(&versions.CleanupResult{
		Removed:         3,
		Entities:        2,
		RemovedVersions: map[string][]string{"b": {"b_1"}, "a": {"a_1", "a_2"}},
		Skipped:         []string{"c"},
		DryRun:          true,
	})
	require.Len(t, data.Rows, 4)
	assert.Equal(t, []string{"a", "2", ""}, data.Rows[0])
	assert.Equal(t, []string{"c", "0", "skipped"}, data.Rows[2])
	assert.Equal(t, []string{"total (2 entities)", "3", "dry run"}, data.Rows[3])
}

func TestTableFormatterReflection(t *testing.T) {
	type row struct {
		EntityID string `json:"entity_id"`
		Count    int    `json:"count"`
	}
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, []row{{"band-7", 3}}))
	assert.Contains(t, buf.String(), "ENTITY ID")
	assert.Contains(t, buf.String(), "band-7")
}

package versions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/differ"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

// seedFestival writes two versions and returns them.
func seedFestival(t *testing.T, vs *versions.VersionStore) (*versions.DataVersion, *versions.DataVersion) {
	t.Helper()
	ctx := context.Background()
	v1, err := vs.CreateVersion(ctx, "fest-1", obj(t, map[string]any{
		"title": "Fest",
		"year":  2023,
		"city":  "Oslo",
		"lineup": map[string]any{
			"headliner": "The Tide",
		},
	}), versions.Metadata{Source: "import"})
	require.NoError(t, err)
	v2, err := vs.CreateVersion(ctx, "fest-1", obj(t, map[string]any{
		"title": "Festival",
		"year":  2024,
		"lineup": map[string]any{
			"opener": "Gulls",
		},
	}), versions.Metadata{Source: "edit", Author: "ana"})
	require.NoError(t, err)
	return v1, v2
}

func TestRestoreSelectiveWithBackup(t *testing.T) {
	ctx := context.Background()
	vs, fake := newStore(t)
	v1, v2 := seedFestival(t, vs)
	fake.Advance(time.Hour)

	result, err := vs.RestoreVersion(ctx, "fest-1", v1.ID, versions.RestoreOptions{
		MergeStrategy:  versions.Selective,
		SelectedFields: []string{"title"},
		CreateBackup:   true,
		Author:         "ana",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	changes := differ.Diff(v1.Data, result.RestoredData)
	require.Len(t, changes, 1)
	assert.Equal(t, "title", changes[0].Property())
	assert.Equal(t, value.String("Festival"), changes[0].NewValue)

	history, err := vs.GetVersionHistory(ctx, "fest-1", versions.Query{})
	require.NoError(t, err)
	require.Len(t, history, 4)

	restored, backup := history[0], history[1]
	assert.Equal(t, versions.OperationRestore, restored.Metadata.Operation)
	assert.Equal(t, v1.ID, restored.Metadata.ParentVersion)
	assert.Equal(t, "restore", restored.Metadata.Source)
	assert.Equal(t, result.Version.ID, restored.ID)

	assert.Equal(t, []string{constants.TagBackup, constants.TagRestorePoint}, backup.Metadata.Tags)
	assert.Equal(t, v2.ID, backup.Metadata.ParentVersion)
	assert.Equal(t, v2.Checksum, backup.Checksum)
	assert.True(t, value.Equal(v2.Data, backup.Data))
	require.NotNil(t, result.BackupVersion)
	assert.Equal(t, backup.ID, result.BackupVersion.ID)
	assert.True(t, backup.Timestamp.Before(restored.Timestamp))
}

func TestRestoreStrategies(t *testing.T) {
	tests := []struct {
		name string
		opts versions.RestoreOptions
		want map[string]any
	}{
		{
			name: "overwrite by default",
			opts: versions.RestoreOptions{},
			want: map[string]any{"title": "Fest", "year": 2023, "city": "Oslo", "lineup": map[string]any{"headliner": "The Tide"}},
		},
		{
			name: "merge current over target",
			opts: versions.RestoreOptions{MergeStrategy: versions.MergeCurrent},
			want: map[string]any{"title": "Festival", "year": 2024, "city": "Oslo", "lineup": map[string]any{"headliner": "The Tide", "opener": "Gulls"}},
		},
		{
			name: "selective nested field",
			opts: versions.RestoreOptions{MergeStrategy: versions.Selective, SelectedFields: []string{"lineup.opener", "year"}},
			want: map[string]any{"title": "Fest", "year": 2024, "city": "Oslo", "lineup": map[string]any{"headliner": "The Tide", "opener": "Gulls"}},
		},
		{
			name: "selective removes fields absent from current",
			opts: versions.RestoreOptions{MergeStrategy: versions.Selective, SelectedFields: []string{"city"}},
			want: map[string]any{"title": "Fest", "year": 2023, "lineup": map[string]any{"headliner": "The Tide"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			vs, _ := newStore(t)
			v1, _ := seedFestival(t, vs)

			result, err := vs.RestoreVersion(ctx, "fest-1", v1.ID, tc.opts)
			require.NoError(t, err)
			require.True(t, result.Success, result.Error)
			assert.True(t, value.Equal(obj(t, tc.want), result.RestoredData), value.Format(result.RestoredData))
			assert.Nil(t, result.BackupVersion)

			latest, err := vs.GetLatestVersion(ctx, "fest-1")
			require.NoError(t, err)
			assert.Equal(t, result.Version.ID, latest.ID)
			assert.True(t, value.Equal(result.RestoredData, latest.Data))
		})
	}
}

func TestRestoreRestoresEvenWhenDataMatchesLatest(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)
	_, v2 := seedFestival(t, vs)

	result, err := vs.RestoreVersion(ctx, "fest-1", v2.ID, versions.RestoreOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.NotEqual(t, v2.ID, result.Version.ID)
	assert.Equal(t, v2.Checksum, result.Version.Checksum)
}

func TestRestoreFailures(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)
	v1, v2 := seedFestival(t, vs)

	_, err := vs.RestoreVersion(ctx, "fest-1", "fest-1_0_missing", versions.RestoreOptions{})
	assert.True(t, errors.IsNotFound(err))

	_, err = vs.RestoreVersion(ctx, "fest-1", v1.ID, versions.RestoreOptions{MergeStrategy: "replace"})
	assert.True(t, errors.IsValidationError(err))

	rejected := []versions.RestoreOptions{
		{MergeStrategy: versions.Selective},
		{MergeStrategy: versions.Selective, SelectedFields: []string{"sponsor"}, ValidateData: true},
	}
	for _, opts := range rejected {
		result, err := vs.RestoreVersion(ctx, "fest-1", v1.ID, opts)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
		assert.Nil(t, result.Version)
	}

	latest, err := vs.GetLatestVersion(ctx, "fest-1")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, latest.ID)
}

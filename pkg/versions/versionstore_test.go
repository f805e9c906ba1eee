package versions_test

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/differ"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T, opts ...versions.Option) (*versions.VersionStore, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(epoch)
	opts = append([]versions.Option{versions.WithClock(fake)}, opts...)
	return versions.New(versions.NewMemoryStore(), opts...), fake
}

func obj(t *testing.T, in map[string]any) value.Value {
	t.Helper()
	v, err := value.Of(in)
	require.NoError(t, err)
	return v
}

// recorder is an Observer that counts events.
type recorder struct {
	mu         sync.Mutex
	created    []string
	duplicates int
	evicted    []string
	cleanups   []*versions.CleanupResult
}

func (r *recorder) VersionCreated(v *versions.DataVersion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, v.ID)
}

func (r *recorder) DuplicateSkipped(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicates++
}

func (r *recorder) VersionsEvicted(_ string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, ids...)
}

func (r *recorder) CleanupCompleted(result *versions.CleanupResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, result)
}

func TestCreateVersionDeduplicates(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	vs, fake := newStore(t, versions.WithObserver(rec))

	data := obj(t, map[string]any{"name": "The Tide", "genre": "rock"})
	first, err := vs.CreateVersion(ctx, "band-1", data, versions.Metadata{Source: "import"})
	require.NoError(t, err)

	fake.Advance(time.Minute)
	same := obj(t, map[string]any{"genre": "rock", "name": "The Tide"})
	second, err := vs.CreateVersion(ctx, "band-1", same, versions.Metadata{Source: "edit", Author: "ana"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, versions.OperationCreate, second.Metadata.Operation)
	assert.Equal(t, "import", second.Metadata.Source)
	assert.Equal(t, 1, rec.duplicates)
	assert.Len(t, rec.created, 1)

	history, err := vs.GetVersionHistory(ctx, "band-1", versions.Query{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreateVersionChainsOperationsAndParents(t *testing.T) {
	ctx := context.Background()
	vs, fake := newStore(t)

	v1, err := vs.CreateVersion(ctx, "venue-9", obj(t, map[string]any{"capacity": 300}), versions.Metadata{Source: "import"})
	require.NoError(t, err)
	fake.Advance(time.Second)
	v2, err := vs.CreateVersion(ctx, "venue-9", obj(t, map[string]any{"capacity": 350}), versions.Metadata{Source: "edit", Operation: versions.OperationCreate})
	require.NoError(t, err)
	v3, err := vs.CreateVersion(ctx, "venue-9", obj(t, map[string]any{"capacity": 400}), versions.Metadata{Source: "edit", Tags: []string{"b", "a", "b", ""}})
	require.NoError(t, err)

	assert.Equal(t, versions.OperationCreate, v1.Metadata.Operation)
	assert.Empty(t, v1.Metadata.ParentVersion)
	assert.Equal(t, versions.OperationUpdate, v2.Metadata.Operation)
	assert.Equal(t, v1.ID, v2.Metadata.ParentVersion)
	assert.Equal(t, v2.ID, v3.Metadata.ParentVersion)
	assert.Equal(t, []string{"a", "b"}, v3.Metadata.Tags)

	// v3 was created without advancing the clock
	assert.True(t, v3.Timestamp.After(v2.Timestamp))
	assert.NotEqual(t, v2.ID, v3.ID)
	assert.Contains(t, v1.ID, "venue-9_")
	assert.Positive(t, v1.Metadata.SizeBytes)
	assert.Len(t, v1.Checksum, 16)

	latest, err := vs.GetLatestVersion(ctx, "venue-9")
	require.NoError(t, err)
	assert.Equal(t, v3.ID, latest.ID)
}

func TestCreateVersionRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)

	_, err := vs.CreateVersion(ctx, "", obj(t, map[string]any{"a": 1}), versions.Metadata{})
	assert.True(t, errors.IsValidationError(err))

	_, err = vs.CreateVersion(ctx, "e", obj(t, map[string]any{"a": 1}), versions.Metadata{Operation: "rename"})
	assert.True(t, errors.IsValidationError(err))

	_, err = vs.CreateVersion(ctx, "e", value.Object{"score": value.Number(math.NaN())}, versions.Metadata{})
	require.Error(t, err)
	assert.True(t, errors.IsSerialization(err))

	ids, err := vs.Entities(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateVersionIf(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)

	v1, err := vs.CreateVersionIf(ctx, "e", "", obj(t, map[string]any{"n": 1}), versions.Metadata{})
	require.NoError(t, err)

	_, err = vs.CreateVersionIf(ctx, "e", "", obj(t, map[string]any{"n": 2}), versions.Metadata{})
	require.Error(t, err)
	assert.True(t, errors.IsStale(err))
	var stale *errors.StaleError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, v1.ID, stale.Actual)

	v2, err := vs.CreateVersionIf(ctx, "e", v1.ID, obj(t, map[string]any{"n": 2}), versions.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, v1.ID, v2.Metadata.ParentVersion)
}

func TestGetVersionMissing(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)

	v, err := vs.GetVersion(ctx, "nobody", "nobody_1_x")
	require.NoError(t, err)
	assert.Nil(t, v)

	latest, err := vs.GetLatestVersion(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, latest)

	history, err := vs.GetVersionHistory(ctx, "nobody", versions.Query{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestReturnedVersionsAreCopies(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)

	v, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"n": 1}), versions.Metadata{Tags: []string{"keep"}})
	require.NoError(t, err)
	v.Metadata.Tags[0] = "changed"

	got, err := vs.GetVersion(ctx, "e", v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, got.Metadata.Tags)
}

func TestGetVersionHistoryFilters(t *testing.T) {
	ctx := context.Background()
	vs, fake := newStore(t)

	write := func(n int, meta versions.Metadata) *versions.DataVersion {
		fake.Advance(time.Hour)
		v, err := vs.CreateVersion(ctx, "song-3", obj(t, map[string]any{"n": n}), meta)
		require.NoError(t, err)
		return v
	}
	v1 := write(1, versions.Metadata{Source: "import"})
	v2 := write(2, versions.Metadata{Source: "edit", Author: "ana", Tags: []string{"reviewed", "lyrics"}})
	v3 := write(3, versions.Metadata{Source: "edit", Author: "bo", Tags: []string{"reviewed"}})
	v4 := write(4, versions.Metadata{Source: "edit", Author: "ana", Operation: versions.OperationDelete})

	tests := []struct {
		name string
		q    versions.Query
		want []string
	}{
		{"all newest first", versions.Query{}, []string{v4.ID, v3.ID, v2.ID, v1.ID}},
		{"author", versions.Query{Author: "ana"}, []string{v4.ID, v2.ID}},
		{"source", versions.Query{Source: "import"}, []string{v1.ID}},
		{"operations", versions.Query{Operations: []versions.Operation{versions.OperationCreate, versions.OperationDelete}}, []string{v4.ID, v1.ID}},
		{"every tag", versions.Query{Tags: []string{"reviewed", "lyrics"}}, []string{v2.ID}},
		{"since", versions.Query{Since: v3.Timestamp}, []string{v4.ID, v3.ID}},
		{"until", versions.Query{Until: v2.Timestamp}, []string{v2.ID, v1.ID}},
		{"offset and limit", versions.Query{Offset: 1, Limit: 2}, []string{v3.ID, v2.ID}},
		{"offset past end", versions.Query{Offset: 10}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			history, err := vs.GetVersionHistory(ctx, "song-3", tc.q)
			require.NoError(t, err)
			ids := make([]string, 0, len(history))
			for _, v := range history {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	_, err := vs.GetVersionHistory(ctx, "song-3", versions.Query{Limit: -1})
	assert.True(t, errors.IsValidationError(err))
}

func TestCompareVersions(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)

	v1, err := vs.CreateVersion(ctx, "album-2", obj(t, map[string]any{
		"title":  "Low Tide",
		"year":   2019,
		"tracks": []any{"intro", "surf"},
	}), versions.Metadata{})
	require.NoError(t, err)
	v2, err := vs.CreateVersion(ctx, "album-2", obj(t, map[string]any{
		"title":  "Low Tide (Deluxe)",
		"label":  "Harbor",
		"tracks": []any{"intro", "surf", "outro"},
	}), versions.Metadata{})
	require.NoError(t, err)

	diff, err := vs.CompareVersions(ctx, "album-2", v1.ID, v2.ID)
	require.NoError(t, err)
	require.NotNil(t, diff)
	assert.Equal(t, v1.ID, diff.VersionFrom)
	assert.Equal(t, v2.ID, diff.VersionTo)
	assert.Equal(t, differ.Summary{Added: 2, Modified: 1, Deleted: 1, Total: 4}, diff.Summary)

	byPath := differ.ByPath(diff.Changes)
	assert.Equal(t, differ.ChangeTypeAdd, byPath["label"].Type)
	assert.Equal(t, differ.ChangeTypeModify, byPath["title"].Type)
	assert.Equal(t, differ.ChangeTypeDelete, byPath["year"].Type)
	assert.Equal(t, differ.ChangeTypeAdd, byPath["tracks.2"].Type)
	assert.InDelta(t, constants.PositionalConfidence, byPath["tracks.2"].Confidence, 1e-9)

	same, err := vs.CompareVersions(ctx, "album-2", v2.ID, v2.ID)
	require.NoError(t, err)
	assert.False(t, same.Summary.HasChanges())

	missing, err := vs.CompareVersions(ctx, "album-2", v1.ID, "album-2_0_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCompareVersionsUsesConfiguredDiffer(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t, versions.WithDiffer(differ.New(differ.WithIgnoredFields("updatedAt"))))

	v1, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"a": 1, "updatedAt": "mon"}), versions.Metadata{})
	require.NoError(t, err)
	v2, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"a": 1, "updatedAt": "tue"}), versions.Metadata{})
	require.NoError(t, err)

	diff, err := vs.CompareVersions(ctx, "e", v1.ID, v2.ID)
	require.NoError(t, err)
	assert.Empty(t, diff.Changes)
}

func TestEvictionRespectsCapAndImportantVersions(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	vs, _ := newStore(t, versions.WithMaxVersionsPerItem(4), versions.WithMinVersions(2), versions.WithObserver(rec))

	var ids []string
	for i := 0; i < 8; i++ {
		meta := versions.Metadata{Source: "auto"}
		if i == 2 {
			meta.Tags = []string{"release"}
		}
		v, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"n": i}), meta)
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}

	history, err := vs.GetVersionHistory(ctx, "e", versions.Query{})
	require.NoError(t, err)
	require.Len(t, history, 4)

	kept := map[string]bool{}
	for _, v := range history {
		kept[v.ID] = true
	}
	assert.True(t, kept[ids[0]], "create version kept")
	assert.True(t, kept[ids[2]], "tagged version kept")
	assert.True(t, kept[ids[7]], "newest version kept")
	assert.Len(t, rec.evicted, 4)
}

func TestEvictionStopsWhenOnlyImportantVersionsRemain(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t, versions.WithMaxVersionsPerItem(2), versions.WithMinVersions(1))

	for i := 0; i < 4; i++ {
		_, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"n": i}), versions.Metadata{Author: "ana"})
		require.NoError(t, err)
	}
	history, err := vs.GetVersionHistory(ctx, "e", versions.Query{})
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestGetVersionStats(t *testing.T) {
	ctx := context.Background()
	vs, fake := newStore(t)

	for i := 0; i < 3; i++ {
		_, err := vs.CreateVersion(ctx, "a", obj(t, map[string]any{"n": i}), versions.Metadata{})
		require.NoError(t, err)
		fake.Advance(time.Hour)
	}
	_, err := vs.CreateVersion(ctx, "b", obj(t, map[string]any{"n": 0}), versions.Metadata{})
	require.NoError(t, err)

	stats, err := vs.GetVersionStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalVersions)
	assert.Equal(t, 2, stats.TotalEntities)
	assert.InDelta(t, 2.0, stats.AverageVersionsPerEntity, 1e-9)
	assert.Equal(t, 2, stats.ByOperation[versions.OperationCreate])
	assert.Equal(t, 2, stats.ByOperation[versions.OperationUpdate])
	require.NotNil(t, stats.OldestVersion)
	assert.Equal(t, epoch, *stats.OldestVersion)
	assert.Equal(t, epoch.Add(3*time.Hour), *stats.NewestVersion)
	assert.Positive(t, stats.TotalSizeBytes)

	one, err := vs.GetVersionStats(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, one.TotalVersions)
	assert.Equal(t, 1, one.TotalEntities)

	empty, err := vs.GetVersionStats(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalVersions)
	assert.Nil(t, empty.OldestVersion)
}

func TestDeleteEntity(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)

	_, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"n": 1}), versions.Metadata{})
	require.NoError(t, err)
	require.NoError(t, vs.DeleteEntity(ctx, "e"))

	ids, err := vs.Entities(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestConcurrentWritesToOneEntity(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t, versions.WithMaxVersionsPerItem(0))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"n": n}), versions.Metadata{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := vs.GetVersionHistory(ctx, "e", versions.Query{})
	require.NoError(t, err)

	creates := 0
	for i, v := range history {
		if v.Metadata.Operation == versions.OperationCreate {
			creates++
		}
		if i+1 < len(history) {
			assert.Equal(t, history[i+1].ID, v.Metadata.ParentVersion)
			assert.True(t, v.Timestamp.After(history[i+1].Timestamp))
		}
	}
	assert.Equal(t, 1, creates)
	assert.LessOrEqual(t, len(history), 20)
}

func TestDataVersionJSON(t *testing.T) {
	ctx := context.Background()
	vs, _ := newStore(t)

	v, err := vs.CreateVersion(ctx, "e", obj(t, map[string]any{"b": []any{1, nil}, "a": "x"}), versions.Metadata{
		Source: "import",
		Tags:   []string{"seed"},
	})
	require.NoError(t, err)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":{"a":"x","b":[1,null]}`)
	assert.Contains(t, string(b), `"operation":"create"`)

	var decoded versions.DataVersion
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, v.ID, decoded.ID)
	assert.True(t, value.Equal(v.Data, decoded.Data))
	assert.Equal(t, v.Metadata, decoded.Metadata)
	assert.True(t, v.Timestamp.Equal(decoded.Timestamp))
}

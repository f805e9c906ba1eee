// Package storetest checks versions.Store implementations against the
// behavior the version store relies on.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

// Run exercises a fresh store from newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) versions.Store) {
	t.Helper()

	t.Run("missing entity is an empty log", func(t *testing.T) {
		s := newStore(t)
		log, err := s.Get(context.Background(), "nobody")
		require.NoError(t, err)
		assert.NotNil(t, log)
		assert.Empty(t, log)
	})

	t.Run("put then get round trips", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		log := sampleLog(t)
		require.NoError(t, s.Put(ctx, "band-7", log))

		got, err := s.Get(ctx, "band-7")
		require.NoError(t, err)
		require.Len(t, got, len(log))
		for i := range log {
			assert.Equal(t, log[i].ID, got[i].ID)
			assert.Equal(t, log[i].Checksum, got[i].Checksum)
			assert.Equal(t, log[i].Metadata, got[i].Metadata)
			assert.True(t, log[i].Timestamp.Equal(got[i].Timestamp))
			assert.True(t, value.Equal(log[i].Data, got[i].Data), "data of %s", log[i].ID)
			sum, _, err := value.Checksum(got[i].Data)
			require.NoError(t, err)
			assert.Equal(t, log[i].Checksum, sum, "checksum of %s", log[i].ID)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		log := sampleLog(t)
		require.NoError(t, s.Put(ctx, "band-7", log))
		require.NoError(t, s.Put(ctx, "band-7", log[1:]))

		got, err := s.Get(ctx, "band-7")
		require.NoError(t, err)
		require.Len(t, got, len(log)-1)
		assert.Equal(t, log[1].ID, got[0].ID)
	})

	t.Run("list is sorted and delete removes", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		log := sampleLog(t)
		for _, id := range []string{"venue-2", "band-7", "band-7_branch_demo"} {
			require.NoError(t, s.Put(ctx, id, log))
		}

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"band-7", "band-7_branch_demo", "venue-2"}, ids)

		require.NoError(t, s.Delete(ctx, "band-7"))
		require.NoError(t, s.Delete(ctx, "never-stored"))
		ids, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"band-7_branch_demo", "venue-2"}, ids)
	})

	t.Run("empty put deletes", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "band-7", sampleLog(t)))
		require.NoError(t, s.Put(ctx, "band-7", nil))

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("drives a version store", func(t *testing.T) {
		ctx := context.Background()
		vs := versions.New(newStore(t))
		v1, err := vs.CreateVersion(ctx, "e", value.Object{"n": value.Number(1)}, versions.Metadata{})
		require.NoError(t, err)
		v2, err := vs.CreateVersion(ctx, "e", value.Object{"n": value.Number(2)}, versions.Metadata{})
		require.NoError(t, err)

		again, err := vs.CreateVersion(ctx, "e", value.Object{"n": value.Number(2)}, versions.Metadata{})
		require.NoError(t, err)
		assert.Equal(t, v2.ID, again.ID)

		diff, err := vs.CompareVersions(ctx, "e", v1.ID, v2.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, diff.Summary.Modified)
	})
}

// sampleLog builds a three version log with nested data, nulls, tags and
// exponent-form numbers.
func sampleLog(t *testing.T) []versions.DataVersion {
	t.Helper()
	ctx := context.Background()
	mem := versions.NewMemoryStore()
	vs := versions.New(mem, versions.WithClock(clock.NewFake(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC))))

	payloads := []map[string]any{
		{"name": "The Tide", "members": []any{"ana", "bo"}},
		{"name": "The Tide", "members": []any{"ana", "bo", "cy"}, "label": nil},
		{"name": "Tide", "members": []any{"ana"}, "formed": map[string]any{"year": 2011, "city": "Oslo"}, "streams": 1e21, "ratio": 0.0000001},
	}
	for i, p := range payloads {
		meta := versions.Metadata{Source: "import", Author: "ana"}
		if i == 1 {
			meta.Tags = []string{"release"}
		}
		_, err := vs.CreateVersion(ctx, "band-7", value.MustOf(p), meta)
		require.NoError(t, err)
	}
	log, err := mem.Get(ctx, "band-7")
	require.NoError(t, err)
	require.Len(t, log, len(payloads))
	return log
}

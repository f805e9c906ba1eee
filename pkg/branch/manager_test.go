package branch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/curator/pkg/branch"
	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

type events struct {
	mu      sync.Mutex
	created []string
	merges  []*branch.MergeResult
}

func (e *events) BranchCreated(_, branchID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, branchID)
}

func (e *events) MergeCompleted(result *branch.MergeResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.merges = append(e.merges, result)
}

type fixture struct {
	vs     *versions.VersionStore
	fake   *clock.Fake
	mgr    *branch.Manager
	events *events
}

func setup(t *testing.T) *fixture {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	vs := versions.New(versions.NewMemoryStore(), versions.WithClock(fake))
	ev := &events{}
	return &fixture{vs: vs, fake: fake, mgr: branch.New(vs, branch.WithObserver(ev)), events: ev}
}

func (f *fixture) write(t *testing.T, entityID string, data map[string]any) *versions.DataVersion {
	t.Helper()
	f.fake.Advance(time.Minute)
	v, err := value.Of(data)
	require.NoError(t, err)
	dv, err := f.vs.CreateVersion(context.Background(), entityID, v, versions.Metadata{Source: "edit"})
	require.NoError(t, err)
	return dv
}

func (f *fixture) latest(t *testing.T, entityID string) *versions.DataVersion {
	t.Helper()
	v, err := f.vs.GetLatestVersion(context.Background(), entityID)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

var festival = map[string]any{"title": "Fest", "year": 2023, "city": "Oslo"}

func TestIDAndParse(t *testing.T) {
	id := branch.ID("fest-1", "draft")
	assert.Equal(t, "fest-1_branch_draft", id)

	entity, name, ok := branch.Parse(id)
	require.True(t, ok)
	assert.Equal(t, "fest-1", entity)
	assert.Equal(t, "draft", name)

	for _, bad := range []string{"fest-1", "_branch_x", "fest-1_branch_"} {
		_, _, ok := branch.Parse(bad)
		assert.False(t, ok, bad)
	}
}

func TestBranchFromVersion(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	f.write(t, "fest-1", map[string]any{"title": "Fest", "year": 2024, "city": "Oslo"})

	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	require.NoError(t, err)
	assert.Equal(t, "fest-1_branch_draft", id)

	head := f.latest(t, id)
	assert.Equal(t, v1.ID, head.Metadata.ParentVersion)
	assert.Equal(t, versions.OperationCreate, head.Metadata.Operation)
	assert.Equal(t, []string{constants.TagBranch}, head.Metadata.Tags)
	assert.True(t, value.Equal(v1.Data, head.Data))
	assert.Equal(t, []string{id}, f.events.created)

	_, err = f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	assert.True(t, errors.IsAlreadyExists(err))

	_, err = f.mgr.BranchFromVersion(ctx, "fest-1", "fest-1_0_gone", "other", nil)
	assert.True(t, errors.IsNotFound(err))

	_, err = f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "", nil)
	assert.True(t, errors.IsValidationError(err))
}

func TestBranchFromVersionWithData(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)

	data := value.MustOf(map[string]any{"title": "Fest (draft)"})
	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", &data)
	require.NoError(t, err)
	assert.True(t, value.Equal(data, f.latest(t, id).Data))
}

func TestListBranches(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	f.write(t, "fest-10", festival)

	_, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "b", nil)
	require.NoError(t, err)
	_, err = f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "a", nil)
	require.NoError(t, err)
	f.write(t, "fest-1_branch_a", map[string]any{"title": "A"})

	infos, err := f.mgr.ListBranches(ctx, "fest-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, 2, infos[0].Versions)
	assert.Equal(t, v1.ID, infos[0].BranchPoint)
	assert.True(t, infos[0].Updated.After(infos[0].Created))
	assert.Equal(t, "b", infos[1].Name)
	assert.Equal(t, "fest-1", infos[1].EntityID)

	none, err := f.mgr.ListBranches(ctx, "fest-10")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMergeBranchesAuto(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	require.NoError(t, err)

	target := f.write(t, "fest-1", map[string]any{"title": "Festival", "year": 2023, "city": "Oslo"})
	source := f.write(t, id, map[string]any{"title": "Fest", "year": 2023, "city": "Bergen"})

	result, err := f.mgr.MergeBranches(ctx, "fest-1", id, branch.Auto)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.True(t, result.Committed)
	assert.NoError(t, result.Err)
	assert.Equal(t, v1.ID, result.Ancestor)

	head := f.latest(t, "fest-1")
	assert.Equal(t, result.Version.ID, head.ID)
	assert.True(t, value.Equal(value.MustOf(map[string]any{"title": "Festival", "year": 2023, "city": "Bergen"}), head.Data))
	assert.Equal(t, target.ID, head.Metadata.ParentVersion)
	assert.Equal(t, source.ID, head.Metadata.MergedFrom)
	assert.True(t, head.Metadata.HasTag(constants.TagMerge))
	assert.True(t, head.Metadata.HasTag(constants.TagAuto))

	// merging again finds nothing new
	again, err := f.mgr.MergeBranches(ctx, "fest-1", id, branch.Auto)
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.False(t, again.Committed)
	assert.Equal(t, source.ID, again.Ancestor)
	assert.Equal(t, head.ID, f.latest(t, "fest-1").ID)
	assert.Len(t, f.events.merges, 2)
}

func TestMergeBranchesUsesPreviousMergeAsAncestor(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	require.NoError(t, err)

	f.write(t, "fest-1", map[string]any{"title": "Festival", "year": 2023, "city": "Oslo"})
	first := f.write(t, id, map[string]any{"title": "Fest", "year": 2023, "city": "Bergen"})
	_, err = f.mgr.MergeBranches(ctx, "fest-1", id, branch.Auto)
	require.NoError(t, err)

	// the branch still carries the old title, which must not revert the target
	f.write(t, id, map[string]any{"title": "Fest", "year": 2025, "city": "Bergen"})
	result, err := f.mgr.MergeBranches(ctx, "fest-1", id, branch.Auto)
	require.NoError(t, err)
	require.True(t, result.Success, "conflicts: %v", result.Conflicts)
	assert.Equal(t, first.ID, result.Ancestor)
	assert.True(t, value.Equal(
		value.MustOf(map[string]any{"title": "Festival", "year": 2025, "city": "Bergen"}),
		f.latest(t, "fest-1").Data,
	))
}

func TestMergeBranchesFastForward(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	require.NoError(t, err)
	f.write(t, id, map[string]any{"title": "Fest", "year": 2023})

	result, err := f.mgr.MergeBranches(ctx, "fest-1", id, "")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, branch.Auto, result.Strategy)
	_, hasCity := value.Get(f.latest(t, "fest-1").Data, []string{"city"})
	assert.False(t, hasCity)
}

func TestMergeBranchesConflictsAreAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	require.NoError(t, err)

	target := f.write(t, "fest-1", map[string]any{"title": "Festival", "year": 2024, "city": "Oslo"})
	f.write(t, id, map[string]any{"title": "Fest!", "year": 2023, "city": "Bergen"})

	result, err := f.mgr.MergeBranches(ctx, "fest-1", id, branch.Auto)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Committed)
	assert.True(t, result.HasConflicts())
	assert.True(t, errors.IsMergeConflict(result.Err))
	assert.Equal(t, []string{"title"}, conflict.Properties(result.Conflicts))
	assert.Equal(t, value.String("Fest!"), result.Conflicts[0].OriginalValue)
	assert.Equal(t, value.String("Festival"), result.Conflicts[0].CurrentValue)
	assert.Nil(t, result.Version)

	// nothing was written, not even the conflict-free parts
	assert.Equal(t, target.ID, f.latest(t, "fest-1").ID)

	done, err := f.mgr.CompleteMerge(ctx, result, map[string]conflict.Resolution{
		"title": {Strategy: conflict.KeepOriginal},
	})
	require.NoError(t, err)
	require.True(t, done.Committed)
	assert.Equal(t, branch.Manual, done.Strategy)
	assert.Empty(t, done.Conflicts)

	head := f.latest(t, "fest-1")
	assert.True(t, value.Equal(value.MustOf(map[string]any{"title": "Fest!", "year": 2024, "city": "Bergen"}), head.Data))
	assert.True(t, head.Metadata.HasTag(constants.TagManual))
	assert.True(t, head.Metadata.HasTag(constants.TagMerge))

	// the pending result is consumed
	_, err = f.mgr.CompleteMerge(ctx, done, nil)
	assert.True(t, errors.IsValidationError(err))
}

func TestMergeBranchesManual(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	require.NoError(t, err)
	f.write(t, id, map[string]any{"title": "Fest", "year": 2030, "city": "Oslo"})

	pending, err := f.mgr.MergeBranches(ctx, "fest-1", id, branch.Manual)
	require.NoError(t, err)
	assert.True(t, pending.Success)
	assert.False(t, pending.Committed)
	assert.Equal(t, v1.ID, f.latest(t, "fest-1").ID)

	done, err := f.mgr.CompleteMerge(ctx, pending, nil)
	require.NoError(t, err)
	assert.True(t, done.Committed)
	year, _ := value.Get(f.latest(t, "fest-1").Data, []string{"year"})
	assert.Equal(t, value.Number(2030), year)
}

func TestCompleteMergeDetectsMovedHeads(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", v1.ID, "draft", nil)
	require.NoError(t, err)
	f.write(t, id, map[string]any{"title": "Fest", "year": 2030, "city": "Oslo"})

	pending, err := f.mgr.MergeBranches(ctx, "fest-1", id, branch.Manual)
	require.NoError(t, err)

	f.write(t, "fest-1", map[string]any{"title": "Moved", "year": 2023, "city": "Oslo"})
	_, err = f.mgr.CompleteMerge(ctx, pending, nil)
	assert.True(t, errors.IsStale(err))

	pending, err = f.mgr.MergeBranches(ctx, "fest-1", id, branch.Manual)
	require.NoError(t, err)
	f.write(t, id, map[string]any{"title": "Fest", "year": 2031, "city": "Oslo"})
	_, err = f.mgr.CompleteMerge(ctx, pending, nil)
	assert.True(t, errors.IsStale(err))
}

func TestMergeBranchesErrors(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.write(t, "fest-1", festival)

	_, err := f.mgr.MergeBranches(ctx, "fest-1", "fest-1_branch_none", branch.Auto)
	assert.True(t, errors.IsNotFound(err))

	_, err = f.mgr.MergeBranches(ctx, "fest-1", "fest-1", branch.Auto)
	assert.True(t, errors.IsValidationError(err))

	_, err = f.mgr.MergeBranches(ctx, "fest-1", "fest-1_branch_none", "rebase")
	assert.True(t, errors.IsValidationError(err))

	_, err = f.mgr.CompleteMerge(ctx, nil, nil)
	assert.True(t, errors.IsValidationError(err))
}

func TestMergeUnrelatedHistories(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.write(t, "a", map[string]any{"x": 1, "shared": "same"})
	f.write(t, "b", map[string]any{"y": 2, "shared": "same"})

	result, err := f.mgr.MergeBranches(ctx, "a", "b", branch.Auto)
	require.NoError(t, err)
	assert.Empty(t, result.Ancestor)
	require.True(t, result.Success)
	assert.True(t, value.Equal(value.MustOf(map[string]any{"x": 1, "y": 2, "shared": "same"}), f.latest(t, "a").Data))
}

func TestBranchPointSurvivesCleanup(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	v1 := f.write(t, "fest-1", festival)
	point := f.write(t, "fest-1", map[string]any{"title": "Fest", "year": 2024})
	f.write(t, "fest-1", map[string]any{"title": "Fest", "year": 2025})
	latest := f.write(t, "fest-1", map[string]any{"title": "Fest", "year": 2026})

	_, err := f.mgr.BranchFromVersion(ctx, "fest-1", point.ID, "draft", nil)
	require.NoError(t, err)
	f.fake.Advance(90 * 24 * time.Hour)

	_, err = f.vs.Cleanup(ctx, versions.CleanupOptions{OlderThanDays: 30, EntityIDs: []string{"fest-1"}})
	require.NoError(t, err)

	history, err := f.vs.GetVersionHistory(ctx, "fest-1", versions.Query{})
	require.NoError(t, err)
	ids := []string{}
	for _, v := range history {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{latest.ID, point.ID, v1.ID}, ids)
}

func TestMergeAfterCleanupFindsBranchPoint(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.write(t, "fest-1", festival)
	point := f.write(t, "fest-1", map[string]any{"title": "Fest", "year": 2024})
	f.write(t, "fest-1", map[string]any{"title": "Fest", "year": 2025})
	f.write(t, "fest-1", map[string]any{"title": "Fest", "year": 2026})

	id, err := f.mgr.BranchFromVersion(ctx, "fest-1", point.ID, "draft", nil)
	require.NoError(t, err)
	f.write(t, id, map[string]any{"title": "Festival", "year": 2024})

	f.fake.Advance(90 * 24 * time.Hour)
	cleaned, err := f.vs.Cleanup(ctx, versions.CleanupOptions{OlderThanDays: 30})
	require.NoError(t, err)
	require.Equal(t, 1, cleaned.Removed)

	result, err := f.mgr.MergeBranches(ctx, "fest-1", id, branch.Auto)
	require.NoError(t, err)
	assert.Equal(t, point.ID, result.Ancestor)
	assert.Empty(t, result.Conflicts)
	require.True(t, result.Success)
	assert.True(t, value.Equal(value.MustOf(map[string]any{"title": "Festival", "year": 2026}), f.latest(t, "fest-1").Data))
}

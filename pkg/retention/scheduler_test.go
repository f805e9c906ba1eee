package retention_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/retention"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

type fakeCleaner struct {
	mu    sync.Mutex
	calls []versions.CleanupOptions
	err   error
}

func (c *fakeCleaner) Cleanup(_ context.Context, opts versions.CleanupOptions) (*versions.CleanupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, opts)
	if c.err != nil {
		return nil, c.err
	}
	return &versions.CleanupResult{Entities: len(c.calls)}, nil
}

func (c *fakeCleaner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type run struct {
	result *versions.CleanupResult
	err    error
}

func waitRun(t *testing.T, runs <-chan run) run {
	t.Helper()
	select {
	case r := <-runs:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled cleanup did not run")
		return run{}
	}
}

func TestSchedulerRunsOnEveryTick(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	cleaner := &fakeCleaner{}
	runs := make(chan run, 4)
	policy := versions.CleanupOptions{OlderThanDays: 7, KeepMinimumVersions: 2}

	s := retention.NewScheduler(cleaner,
		retention.WithClock(fake),
		retention.WithInterval(time.Hour),
		retention.WithPolicy(policy),
		retention.WithRunHook(func(r *versions.CleanupResult, err error) { runs <- run{r, err} }),
	)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	assert.True(t, s.Running())

	fake.Advance(30 * time.Minute)
	assert.Equal(t, 0, cleaner.count())

	fake.Advance(30 * time.Minute)
	first := waitRun(t, runs)
	require.NoError(t, first.err)
	assert.Equal(t, 1, first.result.Entities)

	fake.Advance(time.Hour)
	waitRun(t, runs)
	assert.Equal(t, 2, cleaner.count())
	assert.Equal(t, policy, cleaner.calls[0])

	s.Stop()
	assert.False(t, s.Running())
	assert.Equal(t, 0, fake.Tickers())

	fake.Advance(3 * time.Hour)
	assert.Equal(t, 2, cleaner.count())
}

func TestSchedulerKeepsRunningAfterFailure(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	cleaner := &fakeCleaner{err: errors.NewResourceError("list", "entities", "", assert.AnError)}
	runs := make(chan run, 4)

	s := retention.NewScheduler(cleaner,
		retention.WithClock(fake),
		retention.WithInterval(time.Minute),
		retention.WithRunHook(func(r *versions.CleanupResult, err error) { runs <- run{r, err} }),
	)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	fake.Advance(time.Minute)
	assert.ErrorIs(t, waitRun(t, runs).err, assert.AnError)

	fake.Advance(time.Minute)
	waitRun(t, runs)
	assert.True(t, s.Running())
}

func TestSchedulerRestart(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	s := retention.NewScheduler(&fakeCleaner{}, retention.WithClock(fake), retention.WithInterval(time.Minute))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, fake.Tickers())

	s.Stop()
	s.Stop()
	assert.Equal(t, 0, fake.Tickers())
}

func TestSchedulerRejectsBadConfig(t *testing.T) {
	err := retention.NewScheduler(&fakeCleaner{}, retention.WithInterval(0)).Start(context.Background())
	assert.True(t, errors.IsValidationError(err))

	err = retention.NewScheduler(&fakeCleaner{},
		retention.WithInterval(time.Minute),
		retention.WithPolicy(versions.CleanupOptions{OlderThanDays: -1}),
	).Start(context.Background())
	assert.True(t, errors.IsValidationError(err))
}

func TestRunOnceAgainstVersionStore(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	vs := versions.New(versions.NewMemoryStore(), versions.WithClock(fake))
	for i := 0; i < 10; i++ {
		_, err := vs.CreateVersion(ctx, "e", value.Object{"n": value.Number(i)}, versions.Metadata{})
		require.NoError(t, err)
	}
	fake.Advance(60 * 24 * time.Hour)

	s := retention.NewScheduler(vs, retention.WithClock(fake), retention.WithPolicy(versions.CleanupOptions{
		OlderThanDays:       30,
		KeepMinimumVersions: 4,
	}))
	result, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Removed)

	history, err := vs.GetVersionHistory(ctx, "e", versions.Query{})
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

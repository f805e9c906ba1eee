package versions

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
)

// DefaultCleanupOptions returns the standard retention policy.
func DefaultCleanupOptions() CleanupOptions {
	return CleanupOptions{
		OlderThanDays:       constants.DefaultRetentionDays,
		KeepMinimumVersions: constants.DefaultKeepMinimumVersions,
		PreserveTagged:      true,
	}
}

// Cleanup removes versions that fall outside the retention policy. Each
// entity is processed under its lock, so a version committed during the
// pass is never removed. Entities whose logs cannot be read are skipped.
// Cancellation is observed between entities; observers still see the
// versions removed before it.
func (s *VersionStore) Cleanup(ctx context.Context, opts CleanupOptions) (_ *CleanupResult, err error) {
	ctx, span := tracer.Start(ctx, "versions.Cleanup",
		trace.WithAttributes(
			attribute.Int("curator.older_than_days", opts.OlderThanDays),
			attribute.Int("curator.keep_minimum", opts.KeepMinimumVersions),
			attribute.Bool("curator.dry_run", opts.DryRun),
		))
	defer func() { endSpan(span, err) }()

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ids := opts.EntityIDs
	if len(ids) == 0 {
		if ids, err = s.store.List(ctx); err != nil {
			return nil, errors.WrapResource("list", "entities", "", err)
		}
	}

	start := time.Now()
	cutoff := s.opts.Clock.Now().AddDate(0, 0, -opts.OlderThanDays)
	logger := logging.FromContext(ctx)

	result := &CleanupResult{DryRun: opts.DryRun, RemovedVersions: make(map[string][]string)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(constants.MaxConcurrentCleanups)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			removed, preserved, ok := s.cleanupEntity(ctx, id, opts, cutoff)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				result.Skipped = append(result.Skipped, id)
				return nil
			}
			result.Entities++
			result.Removed += len(removed)
			result.Preserved += preserved
			if len(removed) > 0 {
				result.RemovedVersions[id] = removed
			}
			return nil
		})
	}
	waitErr := g.Wait()
	slices.Sort(result.Skipped)

	span.SetAttributes(
		attribute.Int("curator.removed", result.Removed),
		attribute.Int("curator.preserved", result.Preserved),
	)

	if waitErr != nil {
		logger.Warn().Err(waitErr).Int("removed", result.Removed).Msg("Cleanup interrupted")
		if !opts.DryRun {
			s.obs.cleanupCompleted(result, time.Since(start))
		}
		return result, errors.NewResourceError("cleanup", "entities", "", errors.ErrCanceled)
	}

	logger.Info().
		Int("entities", result.Entities).
		Int("removed", result.Removed).
		Int("preserved", result.Preserved).
		Int("skipped", len(result.Skipped)).
		Bool("dry_run", opts.DryRun).
		Msg("Cleanup finished")

	if !opts.DryRun {
		s.obs.cleanupCompleted(result, time.Since(start))
	}
	return result, nil
}

// cleanupEntity applies the policy to one log. ok is false when the log
// was skipped.
func (s *VersionStore) cleanupEntity(ctx context.Context, entityID string, opts CleanupOptions, cutoff time.Time) (removed []string, preserved int, ok bool) {
	unlock := s.locks.lock(entityID)
	defer unlock()

	logger := logging.FromContext(ctx).With().Str("entity_id", entityID).Logger()

	log, err := s.store.Get(ctx, entityID)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping entity with unreadable log")
		return nil, 0, false
	}
	if err := checkLog(entityID, log); err != nil {
		logger.Warn().Err(err).Msg("Skipping entity with malformed log")
		return nil, 0, false
	}

	keep := Retain(log, opts, cutoff, s.externalRefs(ctx, entityID))

	kept := make([]DataVersion, 0, len(log))
	for i := range log {
		if keep[i] {
			kept = append(kept, log[i])
		} else {
			removed = append(removed, log[i].ID)
		}
	}
	if len(removed) == 0 || opts.DryRun {
		return removed, len(kept), true
	}

	if err := s.store.Put(ctx, entityID, kept); err != nil {
		logger.Warn().Err(err).Msg("Skipping entity after failed write")
		return nil, 0, false
	}
	logger.Debug().Int("removed", len(removed)).Msg("Removed versions")
	return removed, len(kept), true
}

// Retain decides which versions of log survive cleanup. A version is kept
// when it is newer than cutoff, tagged (with PreserveTagged), a create
// version, the newest version, or the parent of a kept restore, or when
// other entities reference it. The log is then topped up with the newest
// remaining versions until KeepMinimumVersions are kept.
func Retain(log []DataVersion, opts CleanupOptions, cutoff time.Time, externalRefs map[string]bool) []bool {
	keep := make([]bool, len(log))
	if len(log) == 0 {
		return keep
	}

	index := make(map[string]int, len(log))
	for i := range log {
		index[log[i].ID] = i
		v := &log[i]
		switch {
		case v.Timestamp.After(cutoff),
			opts.PreserveTagged && len(v.Metadata.Tags) > 0,
			v.Metadata.Operation == OperationCreate,
			externalRefs[v.ID]:
			keep[i] = true
		}
	}
	keep[len(log)-1] = true

	count := 0
	for _, k := range keep {
		if k {
			count++
		}
	}
	for i := len(log) - 1; i >= 0 && count < opts.KeepMinimumVersions; i-- {
		if !keep[i] {
			keep[i] = true
			count++
		}
	}

	// restores depend on their targets; follow the chain to a fixpoint
	for changed := true; changed; {
		changed = false
		for i := range log {
			if !keep[i] || log[i].Metadata.Operation != OperationRestore {
				continue
			}
			if j, ok := index[log[i].Metadata.ParentVersion]; ok && !keep[j] {
				keep[j] = true
				changed = true
			}
		}
	}
	return keep
}

// checkLog rejects logs that cannot be reasoned about safely.
func checkLog(entityID string, log []DataVersion) error {
	seen := make(map[string]bool, len(log))
	for i := range log {
		v := &log[i]
		if v.ID == "" {
			return errors.NewValidationError("id", i, "version without id")
		}
		if v.EntityID != entityID {
			return errors.NewValidationError("entityId", v.EntityID, "version belongs to another entity")
		}
		if seen[v.ID] {
			return errors.NewValidationError("id", v.ID, "duplicate version id")
		}
		seen[v.ID] = true
	}
	return nil
}

package versions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/differ"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/value"
)

var tracer = otel.Tracer("github.com/agentstation/curator/pkg/versions")

// VersionStore is the per-entity append-only version log.
//
// Writes to one entity are serialized; different entities proceed in
// parallel. Versions are never modified once written.
type VersionStore struct {
	store Store
	opts  *Options
	locks *lockSet
	obs   observers
}

// New creates a VersionStore over store.
func New(store Store, opts ...Option) *VersionStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &VersionStore{
		store: store,
		opts:  o,
		locks: newLockSet(),
		obs:   observers(o.Observers),
	}
}

// Store returns the underlying persistence.
func (s *VersionStore) Store() Store {
	return s.store
}

// Clock returns the store's clock.
func (s *VersionStore) Clock() clock.Clock {
	return s.opts.Clock
}

// LockEntity serializes the caller with all writes to entityID until the
// returned func is called. Callers must not write to entityID themselves
// while holding the lock.
func (s *VersionStore) LockEntity(entityID string) func() {
	return s.locks.lock(entityID)
}

// writeOptions tune a single write.
type writeOptions struct {
	parent    string
	skipDedup bool
	expected  *string
}

// CreateVersion appends data to the entity's log. When data matches the
// latest version's checksum the latest version is returned and nothing is
// written.
func (s *VersionStore) CreateVersion(ctx context.Context, entityID string, data value.Value, meta Metadata) (*DataVersion, error) {
	return s.create(ctx, entityID, data, meta, writeOptions{})
}

// CreateVersionIf is CreateVersion guarded by an expected latest version id.
// An empty expectedLatestID expects an empty log. It fails with a StaleError
// when the log has moved.
func (s *VersionStore) CreateVersionIf(ctx context.Context, entityID, expectedLatestID string, data value.Value, meta Metadata) (*DataVersion, error) {
	return s.create(ctx, entityID, data, meta, writeOptions{expected: &expectedLatestID})
}

func (s *VersionStore) create(ctx context.Context, entityID string, data value.Value, meta Metadata, wo writeOptions) (_ *DataVersion, err error) {
	ctx, span := tracer.Start(ctx, "versions.CreateVersion",
		trace.WithAttributes(attribute.String("curator.entity_id", entityID)))
	defer func() { endSpan(span, err) }()

	if entityID == "" {
		return nil, errors.NewValidationError("entityID", entityID, "must not be empty")
	}
	if meta.Operation != "" && !meta.Operation.Valid() {
		return nil, errors.NewValidationError("operation", meta.Operation, "unknown operation")
	}

	checksum, size, err := value.Checksum(data)
	if err != nil {
		return nil, errors.WrapSerialization(entityID, err)
	}

	unlock := s.locks.lock(entityID)
	defer unlock()

	log, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, errors.WrapResource("get", "entity", entityID, err)
	}

	latest := latestOf(log)
	if wo.expected != nil {
		actual := ""
		if latest != nil {
			actual = latest.ID
		}
		if actual != *wo.expected {
			return nil, &errors.StaleError{EntityID: entityID, Expected: *wo.expected, Actual: actual}
		}
	}

	if !wo.skipDedup && latest != nil && latest.Checksum == checksum {
		logging.FromContext(ctx).Debug().
			Str("entity_id", entityID).
			Str("version_id", latest.ID).
			Msg("Checksum matches latest version, skipping write")
		s.obs.duplicateSkipped(entityID)
		span.SetAttributes(attribute.Bool("curator.deduplicated", true))
		return latest.clone(), nil
	}

	v := s.newVersion(entityID, latest, data, checksum, size, meta, wo.parent)
	if err := s.commit(ctx, entityID, log, v); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("curator.version_id", v.ID))
	return v.clone(), nil
}

// newVersion builds the next version following latest.
func (s *VersionStore) newVersion(entityID string, latest *DataVersion, data value.Value, checksum string, size int, meta Metadata, parent string) DataVersion {
	ts := s.opts.Clock.Now()
	if latest != nil && !ts.After(latest.Timestamp) {
		ts = latest.Timestamp.Add(time.Nanosecond)
	}

	switch {
	case meta.Operation == "" && latest == nil:
		meta.Operation = OperationCreate
	case meta.Operation == "", meta.Operation == OperationCreate && latest != nil:
		meta.Operation = OperationUpdate
	}

	switch {
	case parent != "":
		meta.ParentVersion = parent
	case latest != nil:
		meta.ParentVersion = latest.ID
	}

	meta.Tags = normalizeTags(meta.Tags)
	meta.SizeBytes = size

	return DataVersion{
		ID:        newVersionID(entityID, ts),
		EntityID:  entityID,
		Timestamp: ts,
		Data:      data,
		Checksum:  checksum,
		Metadata:  meta,
	}
}

// commit appends versions to log, applies the per-item cap and persists.
// The caller holds the entity lock.
func (s *VersionStore) commit(ctx context.Context, entityID string, log []DataVersion, added ...DataVersion) error {
	log = append(log, added...)

	var evicted []string
	if s.opts.MaxVersionsPerItem > 0 && len(log) > s.opts.MaxVersionsPerItem {
		log, evicted = s.evict(ctx, entityID, log)
	}

	if err := s.store.Put(ctx, entityID, log); err != nil {
		return errors.WrapResource("put", "entity", entityID, err)
	}

	logger := logging.FromContext(ctx)
	for i := range added {
		logger.Debug().
			Str("entity_id", entityID).
			Str("version_id", added[i].ID).
			Str("operation", string(added[i].Metadata.Operation)).
			Msg("Version created")
		s.obs.versionCreated(added[i].clone())
	}
	if len(evicted) > 0 {
		logger.Debug().
			Str("entity_id", entityID).
			Int("evicted", len(evicted)).
			Msg("Evicted versions over per-item cap")
		s.obs.versionsEvicted(entityID, evicted)
	}
	return nil
}

// evict drops the oldest unimportant versions until the log fits the cap,
// never going below the floor and never touching the newest version or a
// version another retained version depends on.
func (s *VersionStore) evict(ctx context.Context, entityID string, log []DataVersion) ([]DataVersion, []string) {
	floor := max(s.opts.MinVersions, 1)
	excess := len(log) - s.opts.MaxVersionsPerItem
	remaining := len(log)

	protected := restoreParents(log)
	for id := range s.externalRefs(ctx, entityID) {
		protected[id] = true
	}

	drop := make(map[int]bool)
	for i := 0; i < len(log)-1 && excess > 0 && remaining > floor; i++ {
		if log[i].important() || protected[log[i].ID] {
			continue
		}
		drop[i] = true
		excess--
		remaining--
	}

	kept := make([]DataVersion, 0, remaining)
	var evicted []string
	for i := range log {
		if drop[i] {
			evicted = append(evicted, log[i].ID)
			continue
		}
		kept = append(kept, log[i])
	}
	return kept, evicted
}

// GetVersion returns the version, or nil when it does not exist.
func (s *VersionStore) GetVersion(ctx context.Context, entityID, versionID string) (*DataVersion, error) {
	log, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, errors.WrapResource("get", "entity", entityID, err)
	}
	if v := findVersion(log, versionID); v != nil {
		return v.clone(), nil
	}
	return nil, nil
}

// GetLatestVersion returns the newest version, or nil for an unknown entity.
func (s *VersionStore) GetLatestVersion(ctx context.Context, entityID string) (*DataVersion, error) {
	log, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, errors.WrapResource("get", "entity", entityID, err)
	}
	if v := latestOf(log); v != nil {
		return v.clone(), nil
	}
	return nil, nil
}

// GetVersionHistory returns matching versions, newest first.
func (s *VersionStore) GetVersionHistory(ctx context.Context, entityID string, q Query) ([]DataVersion, error) {
	if q.Offset < 0 || q.Limit < 0 {
		return nil, errors.NewValidationError("query", q, "offset and limit must not be negative")
	}

	log, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, errors.WrapResource("get", "entity", entityID, err)
	}

	matched := make([]DataVersion, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		if q.matches(&log[i]) {
			matched = append(matched, *log[i].clone())
		}
	}

	if q.Offset >= len(matched) {
		return []DataVersion{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// CompareVersions diffs two versions of an entity. It returns nil when
// either version does not exist.
func (s *VersionStore) CompareVersions(ctx context.Context, entityID, fromID, toID string) (*VersionDiff, error) {
	log, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, errors.WrapResource("get", "entity", entityID, err)
	}
	from, to := findVersion(log, fromID), findVersion(log, toID)
	if from == nil || to == nil {
		return nil, nil
	}

	changes := s.opts.Differ.Diff(from.Data, to.Data)
	return &VersionDiff{
		VersionFrom: fromID,
		VersionTo:   toID,
		Timestamp:   s.opts.Clock.Now(),
		Changes:     changes,
		Summary:     differ.Summarize(changes),
	}, nil
}

// GetVersionStats aggregates counts for one entity, or for every entity
// when entityID is empty.
func (s *VersionStore) GetVersionStats(ctx context.Context, entityID string) (*Stats, error) {
	ids := []string{entityID}
	if entityID == "" {
		var err error
		if ids, err = s.store.List(ctx); err != nil {
			return nil, errors.WrapResource("list", "entities", "", err)
		}
	}

	stats := &Stats{ByOperation: make(map[Operation]int)}
	for _, id := range ids {
		log, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, errors.WrapResource("get", "entity", id, err)
		}
		if len(log) == 0 {
			continue
		}
		stats.TotalEntities++
		for i := range log {
			v := &log[i]
			stats.TotalVersions++
			stats.TotalSizeBytes += int64(v.Metadata.SizeBytes)
			stats.ByOperation[v.Metadata.Operation]++
			ts := v.Timestamp
			if stats.OldestVersion == nil || ts.Before(*stats.OldestVersion) {
				stats.OldestVersion = &ts
			}
			if stats.NewestVersion == nil || ts.After(*stats.NewestVersion) {
				stats.NewestVersion = &ts
			}
		}
	}
	if stats.TotalEntities > 0 {
		stats.AverageVersionsPerEntity = float64(stats.TotalVersions) / float64(stats.TotalEntities)
	}
	return stats, nil
}

// Entities lists every entity with a stored log.
func (s *VersionStore) Entities(ctx context.Context) ([]string, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.WrapResource("list", "entities", "", err)
	}
	return ids, nil
}

// DeleteEntity removes an entity's whole log.
func (s *VersionStore) DeleteEntity(ctx context.Context, entityID string) error {
	unlock := s.locks.lock(entityID)
	defer unlock()
	if err := s.store.Delete(ctx, entityID); err != nil {
		return errors.WrapResource("delete", "entity", entityID, err)
	}
	return nil
}

// externalRefs collects version ids that other entities' logs point at,
// through branch points and merge sources.
func (s *VersionStore) externalRefs(ctx context.Context, entityID string) map[string]bool {
	refs := make(map[string]bool)
	ids, err := s.store.List(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Cannot list entities for reference scan")
		return refs
	}
	prefix := entityID + "_"
	for _, id := range ids {
		if id == entityID {
			continue
		}
		log, err := s.store.Get(ctx, id)
		if err != nil {
			continue
		}
		for i := range log {
			m := log[i].Metadata
			if strings.HasPrefix(m.ParentVersion, prefix) {
				refs[m.ParentVersion] = true
			}
			if strings.HasPrefix(m.MergedFrom, prefix) {
				refs[m.MergedFrom] = true
			}
		}
	}
	return refs
}

func latestOf(log []DataVersion) *DataVersion {
	if len(log) == 0 {
		return nil
	}
	return &log[len(log)-1]
}

func findVersion(log []DataVersion, id string) *DataVersion {
	for i := range log {
		if log[i].ID == id {
			return &log[i]
		}
	}
	return nil
}

// restoreParents returns the targets of restore versions in log.
func restoreParents(log []DataVersion) map[string]bool {
	out := make(map[string]bool)
	for i := range log {
		if log[i].Metadata.Operation == OperationRestore && log[i].Metadata.ParentVersion != "" {
			out[log[i].Metadata.ParentVersion] = true
		}
	}
	return out
}

func newVersionID(entityID string, ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:constants.VersionIDSuffixLength]
	return fmt.Sprintf("%s_%d_%s", entityID, ts.UnixNano(), suffix)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

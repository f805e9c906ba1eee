package branch

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

var tracer = otel.Tracer("github.com/agentstation/curator/pkg/branch")

// Manager creates and merges branches. A branch is an ordinary entity
// whose id is "<entity>_branch_<name>" and whose first version points at
// the version it was forked from.
type Manager struct {
	vs        *versions.VersionStore
	source    string
	observers []Observer
}

// New creates a Manager over vs.
func New(vs *versions.VersionStore, opts ...Option) *Manager {
	m := &Manager{vs: vs, source: "branch"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the branch id for name on entityID.
func ID(entityID, name string) string {
	return entityID + constants.BranchSeparator + name
}

// Parse splits a branch id into its entity id and name.
func Parse(branchID string) (entityID, name string, ok bool) {
	i := strings.LastIndex(branchID, constants.BranchSeparator)
	if i <= 0 || i+len(constants.BranchSeparator) == len(branchID) {
		return "", "", false
	}
	return branchID[:i], branchID[i+len(constants.BranchSeparator):], true
}

// BranchFromVersion forks entityID at versionID into a new branch. The
// branch starts with data when given, otherwise with the version's data.
func (m *Manager) BranchFromVersion(ctx context.Context, entityID, versionID, name string, data *value.Value) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "branch.BranchFromVersion",
		trace.WithAttributes(
			attribute.String("curator.entity_id", entityID),
			attribute.String("curator.version_id", versionID),
			attribute.String("curator.branch", name),
		))
	defer func() { endSpan(span, err) }()

	if name == "" || strings.Contains(name, constants.BranchSeparator) {
		return "", errors.NewValidationError("name", name, "invalid branch name")
	}

	// the branch point must not be removed before the branch references it
	unlock := m.vs.LockEntity(entityID)
	defer unlock()

	src, err := m.vs.GetVersion(ctx, entityID, versionID)
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", errors.NewNotFoundError("version", versionID)
	}

	branchID := ID(entityID, name)
	payload := src.Data
	if data != nil {
		payload = *data
	}

	v, err := m.vs.CreateVersionIf(ctx, branchID, "", payload, versions.Metadata{
		Source:        m.source,
		Operation:     versions.OperationCreate,
		Description:   fmt.Sprintf("Branch %s from %s", name, versionID),
		SessionID:     logging.SessionID(ctx),
		ParentVersion: versionID,
		Tags:          []string{constants.TagBranch},
	})
	if errors.IsStale(err) {
		return "", fmt.Errorf("branch %s: %w", branchID, errors.ErrAlreadyExists)
	}
	if err != nil {
		return "", err
	}

	logging.FromContext(ctx).Info().
		Str("entity_id", entityID).
		Str("branch_id", branchID).
		Str("version_id", v.ID).
		Msg("Branch created")
	for _, obs := range m.observers {
		obs.BranchCreated(entityID, branchID)
	}
	return branchID, nil
}

// ListBranches returns the branches of entityID ordered by id.
func (m *Manager) ListBranches(ctx context.Context, entityID string) ([]Info, error) {
	ids, err := m.vs.Entities(ctx)
	if err != nil {
		return nil, err
	}

	prefix := entityID + constants.BranchSeparator
	var out []Info
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		name := strings.TrimPrefix(id, prefix)
		if strings.Contains(name, constants.BranchSeparator) {
			continue
		}
		history, err := m.vs.GetVersionHistory(ctx, id, versions.Query{})
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			continue
		}
		first, head := history[len(history)-1], history[0]
		out = append(out, Info{
			ID:          id,
			Name:        name,
			EntityID:    entityID,
			BranchPoint: first.Metadata.ParentVersion,
			Head:        head.ID,
			Versions:    len(history),
			Created:     first.Timestamp,
			Updated:     head.Timestamp,
		})
	}
	return out, nil
}

// MergeBranches merges sourceID into targetID. Properties changed on one
// side only are taken from that side; properties changed on both sides
// are conflicts. With conflicts nothing is written and the result carries
// a MergeConflictError. Under Auto a clean merge is committed to targetID
// tagged {merge, auto}; under Manual it is left for CompleteMerge.
func (m *Manager) MergeBranches(ctx context.Context, targetID, sourceID string, strategy Strategy) (_ *MergeResult, err error) {
	ctx, span := tracer.Start(ctx, "branch.MergeBranches",
		trace.WithAttributes(
			attribute.String("curator.target_id", targetID),
			attribute.String("curator.source_id", sourceID),
			attribute.String("curator.strategy", string(strategy)),
		))
	defer func() { endSpan(span, err) }()

	if strategy == "" {
		strategy = Auto
	}
	if !strategy.Valid() {
		return nil, errors.NewValidationError("strategy", strategy, "unknown merge strategy")
	}
	if targetID == sourceID {
		return nil, errors.NewValidationError("sourceId", sourceID, "cannot merge an entity into itself")
	}

	target, err := m.head(ctx, targetID)
	if err != nil {
		return nil, err
	}
	source, err := m.head(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	ancestor, err := newGraph(m.vs).commonAncestor(ctx, target, source)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{
		Strategy:   strategy,
		TargetID:   targetID,
		SourceID:   sourceID,
		TargetHead: target.ID,
		SourceHead: source.ID,
	}

	var base value.Value
	if ancestor != nil {
		result.Ancestor = ancestor.ID
		base = ancestor.Data
	}

	logger := logging.FromContext(ctx).With().
		Str("target_id", targetID).
		Str("source_id", sourceID).
		Str("ancestor", result.Ancestor).
		Logger()

	if ancestor != nil && ancestor.ID == source.ID {
		// everything on the source is already in the target
		result.Success = true
		result.MergedData = target.Data
		result.Version = target
		logger.Debug().Msg("Target already contains source")
		m.completed(result)
		return result, nil
	}

	merged, conflicts := conflict.ThreeWay(base, target.Data, source.Data)
	result.MergedData = merged
	result.Conflicts = conflicts
	span.SetAttributes(attribute.Int("curator.conflicts", len(conflicts)))

	if len(conflicts) > 0 {
		result.Err = errors.NewMergeConflictError(targetID, sourceID, conflict.Properties(conflicts))
		logger.Info().Int("conflicts", len(conflicts)).Msg("Merge stopped on conflicts")
		m.completed(result)
		return result, nil
	}

	result.Success = true
	if strategy == Manual {
		m.completed(result)
		return result, nil
	}

	if err := m.commit(ctx, result, merged, constants.TagAuto); err != nil {
		return nil, err
	}
	logger.Info().Str("version_id", result.Version.ID).Msg("Branches merged")
	m.completed(result)
	return result, nil
}

// CompleteMerge resolves the conflicts of a pending merge and commits it
// tagged {merge, manual}. Conflicts without a resolution keep the target's
// value. It fails with a StaleError when either side moved since pending
// was computed.
func (m *Manager) CompleteMerge(ctx context.Context, pending *MergeResult, resolutions map[string]conflict.Resolution) (_ *MergeResult, err error) {
	if pending == nil {
		return nil, errors.NewValidationError("pending", nil, "no merge to complete")
	}
	ctx, span := tracer.Start(ctx, "branch.CompleteMerge",
		trace.WithAttributes(
			attribute.String("curator.target_id", pending.TargetID),
			attribute.String("curator.source_id", pending.SourceID),
		))
	defer func() { endSpan(span, err) }()

	if pending.Committed {
		return nil, errors.NewValidationError("pending", pending.TargetID, "merge already committed")
	}

	source, err := m.head(ctx, pending.SourceID)
	if err != nil {
		return nil, err
	}
	if source.ID != pending.SourceHead {
		return nil, &errors.StaleError{EntityID: pending.SourceID, Expected: pending.SourceHead, Actual: source.ID}
	}

	resolved, err := conflict.ResolveAll(pending.Conflicts, resolutions)
	if err != nil {
		return nil, err
	}
	merged, err := conflict.Apply(pending.MergedData, resolved)
	if err != nil {
		return nil, err
	}

	result := *pending
	result.Strategy = Manual
	result.Conflicts = nil
	result.Err = nil
	result.Success = true
	result.MergedData = merged

	if err := m.commit(ctx, &result, merged, constants.TagManual); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Str("target_id", result.TargetID).
		Str("source_id", result.SourceID).
		Int("resolved", len(resolved)).
		Msg("Merge completed")
	m.completed(&result)
	return &result, nil
}

// commit writes the merge to the target, guarded by the target head the
// merge was computed against.
func (m *Manager) commit(ctx context.Context, result *MergeResult, merged value.Value, mode string) error {
	v, err := m.vs.CreateVersionIf(ctx, result.TargetID, result.TargetHead, merged, versions.Metadata{
		Source:      m.source,
		Operation:   versions.OperationUpdate,
		Description: fmt.Sprintf("Merge %s into %s", result.SourceID, result.TargetID),
		SessionID:   logging.SessionID(ctx),
		MergedFrom:  result.SourceHead,
		Tags:        []string{constants.TagMerge, mode},
	})
	if err != nil {
		return err
	}
	result.Version = v
	result.Committed = v.ID != result.TargetHead
	return nil
}

func (m *Manager) head(ctx context.Context, entityID string) (*versions.DataVersion, error) {
	v, err := m.vs.GetLatestVersion(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.NewNotFoundError("entity", entityID)
	}
	return v, nil
}

func (m *Manager) completed(result *MergeResult) {
	for _, obs := range m.observers {
		obs.MergeCompleted(result)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

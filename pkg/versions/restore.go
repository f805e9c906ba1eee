package versions

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/value"
)

// RestoreVersion commits a new version whose data is derived from versionID
// under opts.MergeStrategy. The restored version's parent is versionID.
//
// A missing version returns a NotFoundError. Restored data that fails
// validation yields Success false with the log unchanged.
func (s *VersionStore) RestoreVersion(ctx context.Context, entityID, versionID string, opts RestoreOptions) (_ *RestoreResult, err error) {
	ctx, span := tracer.Start(ctx, "versions.RestoreVersion",
		trace.WithAttributes(
			attribute.String("curator.entity_id", entityID),
			attribute.String("curator.version_id", versionID),
			attribute.String("curator.strategy", string(opts.MergeStrategy)),
		))
	defer func() { endSpan(span, err) }()

	if opts.MergeStrategy == "" {
		opts.MergeStrategy = Overwrite
	}
	switch opts.MergeStrategy {
	case Overwrite, MergeCurrent, Selective:
	default:
		return nil, errors.NewValidationError("mergeStrategy", opts.MergeStrategy, "unknown merge strategy")
	}

	unlock := s.locks.lock(entityID)
	defer unlock()

	log, err := s.store.Get(ctx, entityID)
	if err != nil {
		return nil, errors.WrapResource("get", "entity", entityID, err)
	}
	target := findVersion(log, versionID)
	if target == nil {
		return nil, errors.NewNotFoundError("version", versionID)
	}
	latest := latestOf(log)

	logger := logging.FromContext(ctx).With().
		Str("entity_id", entityID).
		Str("version_id", versionID).
		Logger()

	restored, err := restoredData(target.Data, latest.Data, opts)
	if err != nil {
		logger.Debug().Err(err).Msg("Restore rejected")
		return &RestoreResult{Success: false, Error: err.Error()}, nil
	}
	checksum, size, err := value.Checksum(restored)
	if err != nil {
		serr := errors.WrapSerialization(entityID, err)
		logger.Debug().Err(serr).Msg("Restore rejected")
		return &RestoreResult{Success: false, Error: serr.Error()}, nil
	}

	source := opts.Source
	if source == "" {
		source = "restore"
	}

	var added []DataVersion
	var backup *DataVersion
	prev := latest
	if opts.CreateBackup {
		b := s.newVersion(entityID, prev, latest.Data, latest.Checksum, latest.Metadata.SizeBytes, Metadata{
			Author:      opts.Author,
			Source:      source,
			Operation:   OperationUpdate,
			Description: fmt.Sprintf("Backup before restoring %s", versionID),
			SessionID:   opts.SessionID,
			Tags:        []string{constants.TagBackup, constants.TagRestorePoint},
		}, "")
		added = append(added, b)
		backup = &added[len(added)-1]
		prev = backup
	}

	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("Restored %s (%s)", versionID, opts.MergeStrategy)
	}
	rv := s.newVersion(entityID, prev, restored, checksum, size, Metadata{
		Author:      opts.Author,
		Source:      source,
		Operation:   OperationRestore,
		Description: description,
		SessionID:   opts.SessionID,
	}, versionID)
	added = append(added, rv)

	if err := s.commit(ctx, entityID, log, added...); err != nil {
		return nil, err
	}

	logger.Info().
		Str("strategy", string(opts.MergeStrategy)).
		Bool("backup", backup != nil).
		Msg("Version restored")

	result := &RestoreResult{
		Success:      true,
		RestoredData: restored,
		Version:      rv.clone(),
	}
	if backup != nil {
		result.BackupVersion = added[0].clone()
	}
	return result, nil
}

// restoredData combines the target version's data with the current data.
func restoredData(target, current value.Value, opts RestoreOptions) (value.Value, error) {
	var out value.Value
	switch opts.MergeStrategy {
	case Overwrite:
		out = value.Clone(target)
	case MergeCurrent:
		out = value.DeepMerge(target, current)
	case Selective:
		if len(opts.SelectedFields) == 0 {
			return nil, errors.NewValidationError("selectedFields", nil, "selective restore requires at least one field")
		}
		out = value.Clone(target)
		for _, field := range opts.SelectedFields {
			path := value.SplitPath(field)
			if len(path) == 0 {
				return nil, errors.NewValidationError("selectedFields", field, "empty field path")
			}
			cv, inCurrent := value.Get(current, path)
			if !inCurrent {
				if _, inTarget := value.Get(out, path); !inTarget && opts.ValidateData {
					return nil, errors.NewValidationError("selectedFields", field, "field exists in neither version")
				}
				next, _, err := value.Delete(out, path)
				if err != nil {
					return nil, err
				}
				out = next
				continue
			}
			next, err := value.Set(out, path, value.Clone(cv))
			if err != nil {
				return nil, err
			}
			out = next
		}
	}

	if opts.ValidateData && value.IsNull(out) {
		return nil, errors.NewValidationError("data", nil, "restored data is empty")
	}
	return out, nil
}

package curator

import (
	"context"

	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
	"github.com/agentstation/curator/pkg/workflow"
)

// Open starts an edit session on the latest version of an entity.
func Open[T any](ctx context.Context, c Client, entityID string) (*workflow.Item[T], error) {
	latest, err := c.Versions().GetLatestVersion(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, errors.NewNotFoundError("entity", entityID)
	}
	return workflow.FromSnapshot[T](entityID, latest.ID, latest.Data)
}

// Refresh folds versions committed since the item was opened into it.
// Edits that disagree with them become conflicts on the item. It returns
// the newly detected conflicts.
func Refresh[T any](ctx context.Context, c Client, item *workflow.Item[T]) ([]conflict.Record, error) {
	latest, err := c.Versions().GetLatestVersion(ctx, item.EntityID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.ID == item.BaseVersionID {
		return nil, nil
	}

	external, err := value.As[T](latest.Data)
	if err != nil {
		return nil, errors.WrapSerialization(item.EntityID, err)
	}
	detected, err := item.UpdateData(item.Data, &external)
	if err != nil {
		return nil, err
	}
	item.BaseVersionID = latest.ID

	if len(detected) > 0 {
		logging.FromContext(ctx).Debug().
			Str("entity_id", item.EntityID).
			Str("version_id", latest.ID).
			Int("conflicts", len(detected)).
			Msg("Conflicts detected on refresh")

		if m := c.Metrics(); m != nil {
			for _, r := range detected {
				m.ConflictDetected(string(r.ConflictType))
			}
		}
		if cl, ok := c.(*client); ok {
			cl.hooks.conflictsDetected(item.EntityID, detected)
		}
	}
	return detected, nil
}

// Commit writes a clean item as a new version. It fails with
// ErrConflictsUnresolved while conflicts are pending and with ErrStale
// when another version landed since the item's base; Refresh and retry.
func Commit[T any](ctx context.Context, c Client, item *workflow.Item[T], meta versions.Metadata) (*versions.DataVersion, error) {
	if item == nil {
		return nil, errors.NewValidationError("item", nil, "nothing to commit")
	}
	if check := workflow.ValidateNoConflicts(item); !check.Valid {
		return nil, &errors.ConflictsUnresolvedError{
			EntityID:   item.EntityID,
			Properties: conflict.Properties(check.UnresolvedConflicts),
		}
	}
	data, err := item.Value()
	if err != nil {
		return nil, err
	}
	if meta.Operation == "" {
		meta.Operation = versions.OperationUpdate
		if item.New {
			meta.Operation = versions.OperationCreate
		}
	}

	v, err := c.Versions().CreateVersionIf(ctx, item.EntityID, item.BaseVersionID, data, meta)
	if err != nil {
		return nil, err
	}
	if err := item.MarkCommitted(v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

// Package detect provides the detect command, which checks an edited copy
// of an entity against versions committed since the edit began.
package detect

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/curator"
	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/cmdutil"
	"github.com/agentstation/curator/internal/cmd/output"
	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/workflow"
)

// Report is the outcome of a detect run.
type Report struct {
	EntityID  string              `json:"entityId"`
	Base      string              `json:"base"`
	Latest    string              `json:"latest"`
	State     workflow.State      `json:"state"`
	Conflicts []conflict.Record   `json:"conflicts"`
	Resolved  []conflict.Resolved `json:"resolved,omitempty"`
	Merged    value.Value         `json:"merged"`
	Committed string              `json:"committed,omitempty"`
}

// NewCommand creates the detect command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		base    string
		resolve []string
		commit  bool
	)
	cmd := &cobra.Command{
		Use:   "detect <entity-id>",
		Short: "Check edited data for conflicts with newer versions",
		Long: `Detect treats --base as the version an edit started from and the given
data as the edited result. External changes committed since --base are
folded in; those that disagree with the edit are reported as conflicts.

With --commit a conflict-free result, or one whose conflicts are all
settled by --resolve, is recorded as a new version.`,
		Args: cobra.ExactArgs(1),
		Example: `  curator detect band-7 --base band-7_1767258000000000000_1a2b3c4d -f edited.yaml
  curator detect band-7 --base band-7_1767258000000000000_1a2b3c4d -f edited.yaml --resolve name=keep_current --commit`,
	}
	data := cmdutil.AddDataFlags(cmd, "edited entity data")
	meta := cmdutil.AddMetaFlags(cmd)
	cmd.Flags().StringVar(&base, "base", "", "version the edit started from (required)")
	cmd.Flags().StringSliceVar(&resolve, "resolve", nil, "property=strategy resolution for a conflict (repeatable)")
	cmd.Flags().BoolVar(&commit, "commit", false, "record the result when no conflicts remain")
	_ = cmd.MarkFlagRequired("base")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		entityID := args[0]
		edited, err := data.Read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		resolutions, err := cmdutil.ParseResolutions(resolve)
		if err != nil {
			return err
		}

		c, err := app.Client()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		baseVersion, err := c.Versions().GetVersion(ctx, entityID, base)
		if err != nil {
			return err
		}
		if baseVersion == nil {
			return errors.NewNotFoundError("version", base)
		}

		item, err := workflow.FromSnapshot[value.Value](entityID, baseVersion.ID, baseVersion.Data)
		if err != nil {
			return err
		}
		if _, err := item.UpdateData(edited, nil); err != nil {
			return err
		}

		detected, err := curator.Refresh(ctx, c, item)
		if err != nil {
			return err
		}

		report := &Report{
			EntityID:  entityID,
			Base:      base,
			Latest:    item.BaseVersionID,
			Conflicts: detected,
		}
		if len(resolutions) > 0 {
			if report.Resolved, err = item.ResolveConflicts(resolutions); err != nil {
				return err
			}
		}

		if commit && len(item.Conflicts) == 0 {
			v, err := curator.Commit(ctx, c, item, meta.Metadata())
			if err != nil {
				return err
			}
			report.Committed = v.ID
			app.Logger().Info().Str("version_id", v.ID).Msg("Edit committed")
		}

		report.State = item.State()
		report.Merged, err = item.Value()
		if err != nil {
			return err
		}

		if err := output.Print(cmd.OutOrStdout(), output.Format(app.OutputFormat()),
			output.ConflictsData(item.Conflicts, report)); err != nil {
			return err
		}
		if commit && len(item.Conflicts) > 0 {
			return &errors.ConflictsUnresolvedError{EntityID: entityID, Properties: conflict.Properties(item.Conflicts)}
		}
		return nil
	}
	return cmd
}

package entity

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/output"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/versions"
)

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(app application.Application) *cobra.Command {
	opts := versions.RestoreOptions{}
	var strategy string

	cmd := &cobra.Command{
		Use:   "restore <entity-id> <version-id>",
		Short: "Restore an earlier version as a new version",
		Long: `Restore appends a version built from an earlier one.

Strategies:
  overwrite  take the earlier version's data as is
  merge      lay the current data over the earlier version's data
  selective  take the earlier version but keep --field paths from the current data`,
		Args: cobra.ExactArgs(2),
		Example: `  curator restore band-7 band-7_1767258000000000000_1a2b3c4d --backup
  curator restore band-7 band-7_1767258000000000000_1a2b3c4d --strategy selective --field members`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.MergeStrategy = versions.MergeStrategy(strategy)

			c, err := app.Client()
			if err != nil {
				return err
			}
			result, err := c.Versions().RestoreVersion(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			if !result.Success {
				return errors.NewValidationError("data", args[1], result.Error)
			}

			if result.BackupVersion != nil {
				app.Logger().Info().Str("version_id", result.BackupVersion.ID).Msg("Backup recorded")
			}
			return render(cmd, app, output.VersionData(result.Version))
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", string(versions.Overwrite), "restore strategy: overwrite, merge, selective")
	cmd.Flags().StringSliceVar(&opts.SelectedFields, "field", nil, "dot path kept from the current data (selective, repeatable)")
	cmd.Flags().BoolVar(&opts.CreateBackup, "backup", false, "record the current data as a backup version first")
	cmd.Flags().BoolVar(&opts.ValidateData, "validate", false, "reject restored data missing required fields")
	cmd.Flags().StringVar(&opts.Author, "author", "", "author recorded on the restore")
	cmd.Flags().StringVar(&opts.Source, "source", "cli", "source recorded on the restore")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description recorded on the restore")
	return cmd
}

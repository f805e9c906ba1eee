package entity

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/output"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <entity-id> <from-version> <to-version>",
		Short: "Compare two versions of an entity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			diff, err := c.Versions().CompareVersions(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			app.Logger().Debug().
				Int("added", diff.Summary.Added).
				Int("modified", diff.Summary.Modified).
				Int("deleted", diff.Summary.Deleted).
				Msg("Versions compared")
			return render(cmd, app, output.DiffData(diff))
		},
	}
}

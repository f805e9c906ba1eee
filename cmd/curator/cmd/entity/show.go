package entity

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/output"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/versions"
)

// NewShowCommand creates the show command.
func NewShowCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entity-id> [version-id]",
		Short: "Show the latest or a specific version of an entity",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}

			var v *versions.DataVersion
			if len(args) == 2 {
				v, err = c.Versions().GetVersion(cmd.Context(), args[0], args[1])
			} else {
				v, err = c.Versions().GetLatestVersion(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if v == nil {
				id := args[0]
				if len(args) == 2 {
					id = args[1]
				}
				return errors.NewNotFoundError("version", id)
			}
			return render(cmd, app, output.VersionData(v))
		},
	}
}

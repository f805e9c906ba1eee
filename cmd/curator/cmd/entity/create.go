package entity

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/cmdutil"
	"github.com/agentstation/curator/internal/cmd/output"
	"github.com/agentstation/curator/pkg/versions"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(app application.Application) *cobra.Command {
	var (
		operation string
		expect    string
	)
	cmd := &cobra.Command{
		Use:   "create <entity-id>",
		Short: "Record a new version of an entity",
		Long: `Create appends a version holding the given data to the entity's log.

Writing data identical to the latest version is a no-op that returns the
latest version. With --expect the write only succeeds while the given
version is still the latest; pass --expect "" to require a new entity.`,
		Args: cobra.ExactArgs(1),
		Example: `  curator create band-7 --data '{"name":"The Tide","members":4}'
  curator create band-7 -f band.yaml --author ana --tag reviewed
  curator create band-7 -f - --expect band-7_1767258000000000000_1a2b3c4d < band.json`,
	}
	data := cmdutil.AddDataFlags(cmd, "entity data")
	meta := cmdutil.AddMetaFlags(cmd)
	cmd.Flags().StringVar(&operation, "operation", "", "operation: create, update, delete (default: inferred)")
	cmd.Flags().StringVar(&expect, "expect", "", "only write while this version is the latest")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		v, err := data.Read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		c, err := app.Client()
		if err != nil {
			return err
		}

		md := meta.Metadata()
		md.Operation = versions.Operation(operation)

		var created *versions.DataVersion
		if cmd.Flags().Changed("expect") {
			created, err = c.Versions().CreateVersionIf(cmd.Context(), args[0], expect, v, md)
		} else {
			created, err = c.Versions().CreateVersion(cmd.Context(), args[0], v, md)
		}
		if err != nil {
			return err
		}

		app.Logger().Info().
			Str("entity_id", created.EntityID).
			Str("version_id", created.ID).
			Msg("Version recorded")
		return render(cmd, app, output.VersionData(created))
	}
	return cmd
}

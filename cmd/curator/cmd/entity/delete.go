package entity

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(app application.Application) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <entity-id>",
		Short: "Delete an entity and its whole version log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("deleting %s removes every version; pass --force to confirm", args[0])
			}
			c, err := app.Client()
			if err != nil {
				return err
			}
			if err := c.Versions().DeleteEntity(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Logger().Info().Str("entity_id", args[0]).Msg("Entity deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}

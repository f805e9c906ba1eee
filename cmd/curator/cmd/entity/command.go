// Package entity provides the commands that read and write entity versions.
package entity

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/output"
)

// NewCommands returns the entity commands.
func NewCommands(app application.Application) []*cobra.Command {
	return []*cobra.Command{
		NewCreateCommand(app),
		NewShowCommand(app),
		NewHistoryCommand(app),
		NewDiffCommand(app),
		NewRestoreCommand(app),
		NewStatsCommand(app),
		NewDeleteCommand(app),
	}
}

func render(cmd *cobra.Command, app application.Application, data output.Data) error {
	return output.Print(cmd.OutOrStdout(), output.Format(app.OutputFormat()), data)
}

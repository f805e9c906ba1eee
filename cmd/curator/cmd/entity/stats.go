package entity

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/output"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [entity-id]",
		Short: "Show version statistics for one entity or the whole store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID := ""
			if len(args) == 1 {
				entityID = args[0]
			}
			c, err := app.Client()
			if err != nil {
				return err
			}
			stats, err := c.Versions().GetVersionStats(cmd.Context(), entityID)
			if err != nil {
				return err
			}
			return render(cmd, app, output.StatsData(stats))
		},
	}
}

// Package cleanup provides the retention cleanup command.
package cleanup

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/output"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/versions"
)

// NewCommand creates the cleanup command.
func NewCommand(app application.Application) *cobra.Command {
	opts := versions.DefaultCleanupOptions()
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup [entity-id...]",
		Short: "Remove old versions outside the retention policy",
		Long: `Cleanup removes versions older than --older-than days while keeping at
least --keep versions per entity. Creation versions, tagged versions (with
--preserve-tagged), restore targets and versions referenced by branches
or merges are always kept.

Flags not given fall back to the configured retention policy.`,
		Example: `  curator cleanup --dry-run
  curator cleanup band-7 band-9 --older-than 7 --keep 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var result *versions.CleanupResult
			if anyChanged(cmd, "older-than", "keep", "preserve-tagged", "dry-run") || len(args) > 0 {
				opts.EntityIDs = args
				result, err = c.Cleanup(ctx, opts)
			} else {
				result, err = c.Cleanup(ctx)
			}
			if err != nil {
				return err
			}

			app.Logger().Info().
				Int("removed", result.Removed).
				Int("entities", result.Entities).
				Bool("dry_run", result.DryRun).
				Msg("Cleanup finished")
			return output.Print(cmd.OutOrStdout(), output.Format(app.OutputFormat()), output.CleanupData(result))
		},
	}

	cmd.Flags().IntVar(&opts.OlderThanDays, "older-than", opts.OlderThanDays, "age in days after which versions may be removed")
	cmd.Flags().IntVar(&opts.KeepMinimumVersions, "keep", opts.KeepMinimumVersions, "versions kept per entity regardless of age")
	cmd.Flags().BoolVar(&opts.PreserveTagged, "preserve-tagged", opts.PreserveTagged, "never remove tagged versions")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be removed without removing it")
	cmd.Flags().DurationVar(&timeout, "timeout", constants.CleanupTimeout, "abort cleanup after this long")
	return cmd
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

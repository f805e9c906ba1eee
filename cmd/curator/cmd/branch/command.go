// Package branch provides the branch create, list and merge commands.
package branch

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/cmdutil"
	"github.com/agentstation/curator/internal/cmd/output"
	"github.com/agentstation/curator/pkg/branch"
	"github.com/agentstation/curator/pkg/value"
)

// NewCommand creates the branch command and its subcommands.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Fork, list and merge entity branches",
		Long: `A branch is an entity of its own whose first version forks from a
version of its parent. Branch ids take the form <entity-id>_branch_<name>.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCreateCommand(app), newListCommand(app), newMergeCommand(app))
	return cmd
}

func format(app application.Application) output.Format {
	return output.Format(app.OutputFormat())
}

func newCreateCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <entity-id> <version-id> <name>",
		Short: "Fork a branch from a version",
		Args:  cobra.ExactArgs(3),
		Example: `  curator branch create band-7 band-7_1767258000000000000_1a2b3c4d reunion
  curator branch create band-7 band-7_1767258000000000000_1a2b3c4d reunion --data '{"members":5}'`,
	}
	data := cmdutil.AddDataFlags(cmd, "initial branch data")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var initial *value.Value
		if data.Provided() {
			v, err := data.Read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			initial = &v
		}

		c, err := app.Client()
		if err != nil {
			return err
		}
		id, err := c.Branches().BranchFromVersion(cmd.Context(), args[0], args[1], args[2], initial)
		if err != nil {
			return err
		}
		app.Logger().Info().Str("branch_id", id).Msg("Branch created")
		_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
		return err
	}
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "list <entity-id>",
		Short: "List the branches of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client()
			if err != nil {
				return err
			}
			branches, err := c.Branches().ListBranches(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), format(app), output.BranchesData(branches))
		},
	}
}

func newMergeCommand(app application.Application) *cobra.Command {
	var (
		strategy string
		resolve  []string
		commit   bool
	)
	cmd := &cobra.Command{
		Use:   "merge <target-id> <source-id>",
		Short: "Merge a branch into another entity",
		Long: `Merge applies the changes made on source since the common ancestor to target.

With the auto strategy a clean merge is committed to target. Conflicting
merges commit nothing and list the conflicts; rerun with --resolve for
each conflicting property to commit. The manual strategy previews the
merge unless --commit is given.`,
		Args: cobra.ExactArgs(2),
		Example: `  curator branch merge band-7 band-7_branch_reunion
  curator branch merge band-7 band-7_branch_reunion --resolve members=keep_original
  curator branch merge band-7 band-7_branch_reunion --resolve name=manual:'"The Tides"'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolutions, err := cmdutil.ParseResolutions(resolve)
			if err != nil {
				return err
			}
			c, err := app.Client()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			result, err := c.Branches().MergeBranches(ctx, args[0], args[1], branch.Strategy(strategy))
			if err != nil {
				return err
			}

			complete := !result.Committed && result.Version == nil &&
				((result.HasConflicts() && len(resolutions) > 0) || (result.Success && commit))
			if complete {
				if result, err = c.Branches().CompleteMerge(ctx, result, resolutions); err != nil {
					return err
				}
			}

			if result.HasConflicts() {
				if err := output.Print(cmd.OutOrStdout(), format(app), output.ConflictsData(result.Conflicts, result)); err != nil {
					return err
				}
				return result.Err
			}

			app.Logger().Info().
				Str("target_id", result.TargetID).
				Str("source_id", result.SourceID).
				Bool("committed", result.Committed).
				Msg("Merge finished")
			if result.Version != nil {
				return output.Print(cmd.OutOrStdout(), format(app), output.VersionData(result.Version))
			}
			return output.NewFormatter(format(app)).Format(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", string(branch.Auto), "merge strategy: auto, manual")
	cmd.Flags().StringSliceVar(&resolve, "resolve", nil, "property=strategy resolution for a conflict (repeatable)")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit a manual merge")
	return cmd
}

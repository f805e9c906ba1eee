package entity

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/internal/cmd/output"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/versions"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(app application.Application) *cobra.Command {
	var (
		q          versions.Query
		operations []string
		since      string
		until      string
	)
	cmd := &cobra.Command{
		Use:     "history <entity-id>",
		Aliases: []string{"log"},
		Short:   "List the versions of an entity, newest first",
		Args:    cobra.ExactArgs(1),
		Example: `  curator history band-7
  curator history band-7 --author ana --operation restore
  curator history band-7 --since 2026-01-01T00:00:00Z --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, op := range operations {
				q.Operations = append(q.Operations, versions.Operation(op))
			}
			var err error
			if q.Since, err = parseTime("since", since); err != nil {
				return err
			}
			if q.Until, err = parseTime("until", until); err != nil {
				return err
			}

			c, err := app.Client()
			if err != nil {
				return err
			}
			history, err := c.Versions().GetVersionHistory(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			app.Logger().Debug().Int("versions", len(history)).Msg("History loaded")
			return render(cmd, app, output.HistoryData(history))
		},
	}

	cmd.Flags().StringVar(&q.Author, "author", "", "only versions by this author")
	cmd.Flags().StringVar(&q.Source, "source", "", "only versions from this source")
	cmd.Flags().StringSliceVar(&operations, "operation", nil, "only these operations (repeatable)")
	cmd.Flags().StringSliceVar(&q.Tags, "tag", nil, "only versions carrying every given tag")
	cmd.Flags().StringVar(&since, "since", "", "only versions at or after this RFC 3339 time")
	cmd.Flags().StringVar(&until, "until", "", "only versions at or before this RFC 3339 time")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "skip this many matching versions")
	cmd.Flags().IntVarP(&q.Limit, "limit", "l", 0, "return at most this many versions")
	return cmd
}

func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NewValidationError(field, s, "expected an RFC 3339 time")
	}
	return t, nil
}

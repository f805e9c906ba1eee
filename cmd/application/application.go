// Package application provides the application interface for curator commands.
//
// Commands accept Application rather than the concrete App so they can be
// exercised against a Mock:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            c, err := app.Client()
//	            if err != nil {
//	                return err
//	            }
//	            history, err := c.Versions().GetVersionHistory(cmd.Context(), args[0], versions.Query{})
//	            // ...
//	        },
//	    }
//	}
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/curator"
)

// Application provides what commands need from the running CLI.
// All methods must be safe for concurrent access.
type Application interface {
	// Client returns the curator client, opening the configured backend on
	// first use.
	Client() (curator.Client, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}

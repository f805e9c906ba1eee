// Package cmdutil provides shared flags and input parsing for curator commands.
package cmdutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

// FS is the filesystem --file paths are read from.
var FS = afero.NewOsFs()

// MetaFlags holds version metadata flags.
type MetaFlags struct {
	Author      string
	Source      string
	Description string
	SessionID   string
	Tags        []string
}

// AddMetaFlags adds version metadata flags to a command.
func AddMetaFlags(cmd *cobra.Command) *MetaFlags {
	flags := &MetaFlags{}
	cmd.Flags().StringVar(&flags.Author, "author", "", "author recorded on the version")
	cmd.Flags().StringVar(&flags.Source, "source", "cli", "source recorded on the version")
	cmd.Flags().StringVar(&flags.Description, "description", "", "description recorded on the version")
	cmd.Flags().StringVar(&flags.SessionID, "session", "", "session id recorded on the version")
	cmd.Flags().StringSliceVar(&flags.Tags, "tag", nil, "tag to attach (repeatable)")
	return flags
}

// Metadata converts the flags into version metadata.
func (f *MetaFlags) Metadata() versions.Metadata {
	return versions.Metadata{
		Author:      f.Author,
		Source:      f.Source,
		Description: f.Description,
		SessionID:   f.SessionID,
		Tags:        f.Tags,
	}
}

// DataFlags holds flags that supply an entity value.
type DataFlags struct {
	Data string
	File string
}

// AddDataFlags adds --data and --file to a command.
func AddDataFlags(cmd *cobra.Command, usage string) *DataFlags {
	flags := &DataFlags{}
	cmd.Flags().StringVarP(&flags.Data, "data", "d", "", usage+" as inline JSON or YAML")
	cmd.Flags().StringVarP(&flags.File, "file", "f", "", usage+" from a JSON or YAML file (- for stdin)")
	return flags
}

// Provided reports whether either flag was set.
func (f *DataFlags) Provided() bool {
	return f.Data != "" || f.File != ""
}

// Read returns the value supplied by the flags.
func (f *DataFlags) Read(stdin io.Reader) (value.Value, error) {
	switch {
	case f.Data != "" && f.File != "":
		return nil, errors.NewValidationError("data", nil, "use either --data or --file, not both")
	case f.Data != "":
		return ParseValue([]byte(f.Data))
	case f.File == "-":
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.WrapIO("read", "stdin", err)
		}
		return ParseValue(raw)
	case f.File != "":
		raw, err := afero.ReadFile(FS, f.File)
		if err != nil {
			return nil, errors.WrapIO("read", f.File, err)
		}
		return ParseValue(raw)
	}
	return nil, errors.NewValidationError("data", nil, "entity data is required: pass --data or --file")
}

// ParseValue parses JSON or YAML into a Value.
func ParseValue(raw []byte) (value.Value, error) {
	jsonData, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, errors.WrapSerialization("", err)
	}
	return value.Parse(jsonData)
}

// ParseResolutions parses property=strategy pairs. A manual resolution
// carries its value after a colon, as JSON or YAML:
//
//	title=keep_original
//	year=manual:2021
func ParseResolutions(specs []string) (map[string]conflict.Resolution, error) {
	out := make(map[string]conflict.Resolution, len(specs))
	for _, spec := range specs {
		prop, rest, ok := strings.Cut(spec, "=")
		if !ok || prop == "" {
			return nil, errors.NewValidationError("resolve", spec, "expected property=strategy")
		}
		strategy, raw, hasValue := strings.Cut(rest, ":")
		res := conflict.Resolution{Strategy: conflict.Strategy(strategy), Reason: "resolved from command line"}
		if !res.Strategy.Valid() {
			return nil, errors.NewValidationError("resolve", spec,
				fmt.Sprintf("unknown strategy %q: must be keep_original, keep_current, merge or manual", strategy))
		}
		if res.Strategy == conflict.Manual {
			if !hasValue {
				return nil, errors.NewValidationError("resolve", spec, "manual resolution needs a value, e.g. year=manual:2021")
			}
			v, err := ParseValue([]byte(raw))
			if err != nil {
				return nil, err
			}
			res.ResolvedValue = v
		}
		out[prop] = res
	}
	return out, nil
}

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/opsync/internal/compiler"
	"github.com/roach88/opsync/internal/transition"
)

// NewDiffCommand creates `opsync diff <local.cue> <backend.yaml>`.
//
// The backend team exports their authoritative table as YAML; diff
// compares it rule by rule against the local CUE table and exits
// non-zero on drift. Run in CI against every backend release.
func NewDiffCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <local.cue> <backend.yaml>",
		Short: "Compare the local transition table against a backend export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			local, err := compiler.CompileTableFile(args[0])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "compile local table", Err: err}
			}

			backend, err := loadExportedTable(args[1])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "load backend export", Err: err}
			}

			changes := transition.Diff(local, backend)
			if len(changes) == 0 {
				return f.OK("tables match")
			}

			if opts.Format == "json" {
				f.OK(changes)
			} else {
				lines := make([]string, len(changes))
				for i, c := range changes {
					lines[i] = c.String()
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			}
			return &ExitError{Code: ExitFailure,
				Message: fmt.Sprintf("%d rule differences", len(changes))}
		},
	}
	return cmd
}

func loadExportedTable(path string) (*transition.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ex transition.Export
	if err := yaml.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("parse export %s: %w", path, err)
	}
	return transition.FromExport(ex)
}

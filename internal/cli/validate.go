package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opsync/internal/compiler"
)

// NewValidateCommand creates `opsync validate <table.cue>`.
//
// Validation runs in two stages: the CUE document must compile into a
// table, and the compiled table must be total (every rule's statuses
// declared, From present, Next reachable).
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <table.cue>",
		Short: "Compile a transition table and check its totality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			table, err := compiler.CompileTableFile(args[0])
			if err != nil {
				f.Fail(err.Error())
				return &ExitError{Code: ExitFailure, Message: "table does not compile", Err: err}
			}

			if errs := table.Validate(); len(errs) > 0 {
				msgs := make([]string, len(errs))
				for i, e := range errs {
					msgs[i] = e.Error()
				}
				f.Fail(strings.Join(msgs, "; "))
				return &ExitError{Code: ExitFailure,
					Message: fmt.Sprintf("table has %d validation errors", len(errs))}
			}

			kinds := table.KindNames()
			names := make([]string, len(kinds))
			for i, k := range kinds {
				names[i] = string(k)
			}
			return f.OK(fmt.Sprintf("table valid: %d kinds (%s)", len(names), strings.Join(names, ", ")))
		},
	}
	return cmd
}

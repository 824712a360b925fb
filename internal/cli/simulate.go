package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/opsync/internal/harness"
)

// NewSimulateCommand creates `opsync simulate <scenario.yaml>...`.
//
// Each scenario runs through the real coordinator and feed window with
// deterministic helpers. Text mode prints a pass/fail summary; JSON
// mode prints the canonical trace, the same bytes golden files store.
func NewSimulateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>...",
		Short: "Run conformance scenarios and print their traces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0

			for _, path := range args {
				sc, err := harness.LoadScenario(path)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: "load scenario", Err: err}
				}

				result, err := harness.Run(sc)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: "run " + sc.Name, Err: err}
				}

				if opts.Format == "json" {
					trace, err := harness.MarshalTrace(sc.Name, result)
					if err != nil {
						return &ExitError{Code: ExitCommandError, Message: "marshal trace", Err: err}
					}
					fmt.Fprintln(out, string(trace))
				} else {
					status := "PASS"
					if !result.Pass {
						status = "FAIL"
					}
					fmt.Fprintf(out, "%s  %s (%d steps)\n", status, sc.Name, len(result.Trace))
					if opts.Verbose || !result.Pass {
						for _, e := range result.Errors {
							fmt.Fprintf(out, "      %s\n", e)
						}
					}
				}
				if !result.Pass {
					failed++
				}
			}

			if failed > 0 {
				return &ExitError{Code: ExitFailure,
					Message: fmt.Sprintf("%d of %d scenarios failed", failed, len(args))}
			}
			return nil
		},
	}
	return cmd
}

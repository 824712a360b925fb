package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/opsync/internal/journal"
)

// NewReplayCommand creates `opsync replay <journal.db>`.
//
// Replay prints the diagnostic journal in append order: every mutation
// attempt with its outcome and every feed ingestion decision. This is
// the tool for reconstructing what the engine did during an incident.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	var feedOnly, mutationsOnly bool

	cmd := &cobra.Command{
		Use:   "replay <journal.db>",
		Short: "Print the recorded mutation and feed journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "journal not found", Err: err}
			}

			j, err := journal.Open(args[0])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "open journal", Err: err}
			}
			defer j.Close()

			f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			ctx := cmd.Context()

			var mutations []journal.MutationRecord
			var feed []journal.FeedRecord
			if !feedOnly {
				if mutations, err = j.Mutations(ctx); err != nil {
					return &ExitError{Code: ExitCommandError, Message: "read mutations", Err: err}
				}
			}
			if !mutationsOnly {
				if feed, err = j.FeedEvents(ctx); err != nil {
					return &ExitError{Code: ExitCommandError, Message: "read feed events", Err: err}
				}
			}

			if opts.Format == "json" {
				return f.OK(map[string]any{"mutations": mutations, "feed_events": feed})
			}

			out := cmd.OutOrStdout()
			for _, m := range mutations {
				line := fmt.Sprintf("%6d  %s  %s/%s  %s  %s->%s (predicted %s)",
					m.Seq, m.At.Format("15:04:05.000"), m.Kind, m.EntityID,
					m.Action, m.PrevStatus, m.FinalStatus, m.PredictedStatus)
				if m.Outcome == journal.OutcomeRolledBack {
					line += fmt.Sprintf("  ROLLED BACK: %s", m.Error)
				}
				fmt.Fprintln(out, line)
			}
			for _, fe := range feed {
				fmt.Fprintf(out, "%6d  %s  feed/%s  %s  txn=%s order=%s\n",
					fe.Seq, fe.At.Format("15:04:05.000"), fe.Source, fe.Event, fe.TxnID, fe.OrderID)
			}
			if len(mutations)+len(feed) == 0 {
				fmt.Fprintln(out, "journal is empty")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&feedOnly, "feed-only", false, "print only feed ingestion events")
	cmd.Flags().BoolVar(&mutationsOnly, "mutations-only", false, "print only mutation outcomes")
	return cmd
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/lifecycle"
	"github.com/tkt-dev/tkt/internal/session"
)

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a done ticket, resetting it to pending",
		Long: `Conclude a done ticket negatively. A tombstone records the rejection and
its reason; the ticket itself resets to pending with its completion marker
cleared so the work can be retried.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
				t, ts, err := lifecycle.New(s).Reject(ctx, args[0], reason)
				if err != nil {
					return err
				}
				return f.Success(acceptResult{Ticket: t, Tombstone: ts}, func(w io.Writer) {
					fmt.Fprintf(w, "rejected %s  %s: %s\n", idColor.Sprint(t.ID), t.Name, ts.Reason)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "rejection reason (required)")

	return cmd
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/lifecycle"
	"github.com/tkt-dev/tkt/internal/session"
	"github.com/tkt-dev/tkt/internal/ticket"
)

// acceptResult pairs the concluded ticket with its tombstone for output.
type acceptResult struct {
	Ticket    *ticket.Ticket    `json:"ticket"`
	Tombstone *ticket.Tombstone `json:"tombstone"`
}

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accept [id]",
		Short: "Accept a done ticket, concluding it",
		Long: `Conclude a done ticket positively. The ticket leaves all live views and
an immutable tombstone records the conclusion. With no id, the oldest done
task is selected.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
				var id string
				if len(args) == 1 {
					id = args[0]
				}
				t, ts, err := lifecycle.New(s).Accept(ctx, id)
				if err != nil {
					return err
				}
				return f.Success(acceptResult{Ticket: t, Tombstone: ts}, func(w io.Writer) {
					fmt.Fprintf(w, "accepted %s  %s\n", idColor.Sprint(t.ID), t.Name)
				})
			})
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/lifecycle"
	"github.com/tkt-dev/tkt/internal/session"
)

// NewDoneCommand creates the done command.
func NewDoneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a pending task done",
		Long: `Mark a pending task done, stamping the completion time and the log
revision it was completed against. With no id, the oldest pending task is
selected.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
				var id string
				if len(args) == 1 {
					id = args[0]
				}
				t, err := lifecycle.New(s).Done(ctx, id)
				if err != nil {
					return err
				}
				return f.Success(t, func(w io.Writer) {
					fmt.Fprintf(w, "done %s  %s (rev %s)\n", idColor.Sprint(t.ID), t.Name, t.DoneRev)
				})
			})
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/lifecycle"
	"github.com/tkt-dev/tkt/internal/session"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a ticket",
		Long: `Mark a ticket deleted. The record stays in the log and the cache for
audit queries but leaves every live view. Deletion is blocked while any
other ticket lists this one as a dependency.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
				t, err := lifecycle.New(s).Delete(ctx, args[0])
				if err != nil {
					return err
				}
				return f.Success(t, func(w io.Writer) {
					fmt.Fprintf(w, "deleted %s  %s\n", idColor.Sprint(t.ID), t.Name)
				})
			})
		},
	}
}

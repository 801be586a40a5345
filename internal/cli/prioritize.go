package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/lifecycle"
	"github.com/tkt-dev/tkt/internal/session"
)

// NewPrioritizeCommand creates the prioritize command.
func NewPrioritizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "prioritize <id> <low|medium|high>",
		Short:         "Set a ticket's priority",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
				t, err := lifecycle.New(s).Prioritize(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return f.Success(t, func(w io.Writer) {
					fmt.Fprintf(w, "%s  priority=%s\n", idColor.Sprint(t.ID), t.Priority)
				})
			})
		},
	}
}

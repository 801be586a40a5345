package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/query"
	"github.com/tkt-dev/tkt/internal/session"
)

// NewSQLCommand creates the sql passthrough command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sql <query>",
		Short: "Run a raw query against the cache database",
		Long: `Run a query verbatim against the cache database.

This is the unvalidated escape hatch: the query is forwarded as-is, with
no compilation or predicate checking. The cache is derived state, so the
worst a destructive query can do is force a rebuild from the log. The
result cap still applies.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, cmd, strings.Join(args, " "))
		},
	}
}

func runSQL(opts *RootOptions, cmd *cobra.Command, queryStr string) error {
	return opts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
		if err := s.EnsureFresh(ctx); err != nil {
			return err
		}
		raw, err := query.Passthrough(ctx, s.Cache, queryStr, s.Limits.MaxResults)
		if err != nil {
			return err
		}

		return f.Success(raw, func(w io.Writer) {
			fmt.Fprintln(w, strings.Join(raw.Columns, "\t"))
			for _, row := range raw.Rows {
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
		})
	})
}

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

// NewQueryCommand creates the query command for pipeline expressions.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <pipeline>",
		Short: "Run a pipeline query against the ticket cache",
		Long: `Run a pipeline query of the form "source | field=value | terminal".

Sources: tasks, issues, notes, tickets. Filters test status, label, spec,
author, priority, branch, or parent for equality. Terminals: list
(default), count, ids.

Example:
  tkt query "tasks | status=pending | label=infra | ids"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			return runQuery(rootOpts, cmd, expr)
		},
	}
}

func runQuery(opts *RootOptions, cmd *cobra.Command, expr string) error {
	return opts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
		plan, err := query.ParsePipeline(expr)
		if err != nil {
			return err
		}
		return runPlan(ctx, s, f, plan)
	})
}

// runPlan refreshes the cache, executes a compiled plan, and renders the
// result. Shared by pipeline and legacy surfaces.
func runPlan(ctx context.Context, s *session.Session, f *OutputFormatter, plan query.Plan) error {
	if err := s.EnsureFresh(ctx); err != nil {
		return err
	}
	res, err := query.Execute(ctx, s.Cache, plan, s.Limits.MaxResults)
	if err != nil {
		return err
	}

	return f.Success(res, func(w io.Writer) {
		switch res.Terminal {
		case query.TerminalCount:
			fmt.Fprintln(w, res.Count)
		case query.TerminalIDs:
			for _, id := range res.IDs {
				fmt.Fprintln(w, id)
			}
		default:
			if len(res.Tickets) == 0 {
				fmt.Fprintln(w, "no matches")
				return
			}
			for _, t := range res.Tickets {
				renderTicketLine(w, t)
			}
		}
	})
}

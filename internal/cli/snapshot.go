package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/query"
	"github.com/tkt-dev/tkt/internal/session"
	"github.com/tkt-dev/tkt/internal/ticket"
)

// Snapshot is the full workspace view printed when tkt runs with no
// arguments.
type Snapshot struct {
	Branch   string           `json:"branch,omitempty"`
	Revision string           `json:"revision"`
	Pending  []*ticket.Ticket `json:"pending,omitempty"`
	Done     []*ticket.Ticket `json:"done,omitempty"`
	Issues   []*ticket.Ticket `json:"issues,omitempty"`
	Notes    []*ticket.Ticket `json:"notes,omitempty"`
}

// NewListCommand creates the list command, the explicit alias for the
// no-argument snapshot.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "Show the full workspace snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(rootOpts, cmd)
		},
	}
}

func runSnapshot(opts *RootOptions, cmd *cobra.Command) error {
	return opts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
		if err := s.EnsureFresh(ctx); err != nil {
			return err
		}

		snap := Snapshot{Branch: s.Branch, Revision: s.Revision}
		limit := s.Limits.MaxResults

		sections := []struct {
			dest *[]*ticket.Ticket
			plan query.Plan
		}{
			{&snap.Pending, query.Plan{
				Source:   query.SourceTasks,
				Filters:  []query.Filter{{Field: "status", Value: string(ticket.StatusPending)}},
				Terminal: query.TerminalList,
			}},
			{&snap.Done, query.Plan{
				Source:   query.SourceTasks,
				Filters:  []query.Filter{{Field: "status", Value: string(ticket.StatusDone)}},
				Terminal: query.TerminalList,
			}},
			{&snap.Issues, query.Plan{
				Source:   query.SourceIssues,
				Filters:  []query.Filter{{Field: "status", Value: string(ticket.StatusPending)}},
				Terminal: query.TerminalList,
			}},
			{&snap.Notes, query.Plan{
				Source:   query.SourceNotes,
				Filters:  []query.Filter{{Field: "status", Value: string(ticket.StatusPending)}},
				Terminal: query.TerminalList,
			}},
		}
		for _, sec := range sections {
			res, err := query.Execute(ctx, s.Cache, sec.plan, limit)
			if err != nil {
				return err
			}
			*sec.dest = res.Tickets
		}

		return f.Success(snap, func(w io.Writer) {
			if snap.Branch != "" {
				fmt.Fprintf(w, "branch: %s\n", snap.Branch)
			}
			f.VerboseLog("revision: %s", snap.Revision)
			total := len(snap.Pending) + len(snap.Done) + len(snap.Issues) + len(snap.Notes)
			if total == 0 {
				fmt.Fprintln(w, "no tickets")
				return
			}
			renderTicketList(w, "Pending tasks", snap.Pending)
			renderTicketList(w, "Done tasks", snap.Done)
			renderTicketList(w, "Issues", snap.Issues)
			renderTicketList(w, "Notes", snap.Notes)
		})
	})
}

package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/lifecycle"
	"github.com/tkt-dev/tkt/internal/session"
	"github.com/tkt-dev/tkt/internal/ticket"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Kind           string
	Notes          string
	AcceptCriteria string
	Spec           string
	Priority       string
	Deps           []string
	Labels         []string
	Parent         string
	CreatedFrom    string
	Supersedes     string
	BranchScoped   bool
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a new ticket",
		Long: `Create a new task, issue, or note.

Dependencies may only reference existing tasks. Parent, created-from, and
supersedes references must name existing tickets. A task created without
acceptance criteria gets a warning, not an error.

Example:
  tkt add "wire up retry loop" --kind task --dep tk-1a2b3c4d --label infra`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "task", "ticket kind (task|issue|note)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&opts.AcceptCriteria, "accept", "", "acceptance criteria")
	cmd.Flags().StringVar(&opts.Spec, "spec", "", "spec reference")
	cmd.Flags().StringVarP(&opts.Priority, "priority", "p", "", "priority (low|medium|high)")
	cmd.Flags().StringArrayVar(&opts.Deps, "dep", nil, "dependency ticket id (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Labels, "label", nil, "label (repeatable)")
	cmd.Flags().StringVar(&opts.Parent, "parent", "", "parent ticket id")
	cmd.Flags().StringVar(&opts.CreatedFrom, "created-from", "", "originating ticket id")
	cmd.Flags().StringVar(&opts.Supersedes, "supersedes", "", "superseded ticket id")
	cmd.Flags().BoolVar(&opts.BranchScoped, "branch-scoped", false,
		"scope the ticket to the current branch")

	return cmd
}

func runAdd(opts *AddOptions, cmd *cobra.Command, name string) error {
	return opts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
		// The branch name is only known once the session resolves it, so
		// the flag requests scoping rather than naming a branch.
		var branch string
		if opts.BranchScoped {
			branch = s.Branch
		}

		t, warnings, err := lifecycle.New(s).Add(ctx, lifecycle.AddParams{
			Kind:           ticket.Kind(opts.Kind),
			Name:           name,
			Notes:          opts.Notes,
			AcceptCriteria: opts.AcceptCriteria,
			Spec:           opts.Spec,
			Priority:       opts.Priority,
			Deps:           opts.Deps,
			Labels:         opts.Labels,
			Parent:         opts.Parent,
			CreatedFrom:    opts.CreatedFrom,
			Supersedes:     opts.Supersedes,
			Branch:         branch,
		})
		if err != nil {
			return err
		}
		for _, warning := range warnings {
			f.Warn("%s", warning)
		}

		return f.Success(t, func(w io.Writer) {
			renderTicketDetail(w, t)
		})
	})
}

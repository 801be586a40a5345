package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/lifecycle"
	"github.com/tkt-dev/tkt/internal/session"
	"github.com/tkt-dev/tkt/internal/ticket"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Name           string
	Notes          string
	AcceptCriteria string
	Spec           string
	Priority       string
	Deps           []string
	Labels         []string
	Parent         string
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields on a ticket",
		Long: `Merge the given fields into a ticket. Only flags that are set change
anything; unset flags leave their fields untouched. Setting --dep or
--label replaces the whole set.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "new name")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "new notes")
	cmd.Flags().StringVar(&opts.AcceptCriteria, "accept", "", "new acceptance criteria")
	cmd.Flags().StringVar(&opts.Spec, "spec", "", "new spec reference")
	cmd.Flags().StringVarP(&opts.Priority, "priority", "p", "", "new priority (low|medium|high)")
	cmd.Flags().StringArrayVar(&opts.Deps, "dep", nil, "replacement dependency set (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Labels, "label", nil, "replacement label set (repeatable)")
	cmd.Flags().StringVar(&opts.Parent, "parent", "", "new parent id")

	return cmd
}

// runUpdate translates changed flags into a patch. Flag presence, not
// value, decides what the patch carries, so an empty string can clear a
// clearable field.
func runUpdate(opts *UpdateOptions, cmd *cobra.Command, id string) error {
	patch := &ticket.Patch{}

	if cmd.Flags().Changed("name") {
		patch.Name = &opts.Name
	}
	if cmd.Flags().Changed("notes") {
		patch.Notes = &opts.Notes
	}
	if cmd.Flags().Changed("accept") {
		patch.AcceptCriteria = &opts.AcceptCriteria
	}
	if cmd.Flags().Changed("spec") {
		patch.Spec = &opts.Spec
	}
	if cmd.Flags().Changed("priority") {
		prio, err := ticket.ParsePriority(opts.Priority)
		if err != nil {
			return opts.formatter(cmd).Fail(err)
		}
		patch.Priority = &prio
	}
	if cmd.Flags().Changed("dep") {
		patch.Deps = opts.Deps
		if patch.Deps == nil {
			patch.Deps = []string{}
		}
	}
	if cmd.Flags().Changed("label") {
		patch.Labels = opts.Labels
		if patch.Labels == nil {
			patch.Labels = []string{}
		}
	}
	if cmd.Flags().Changed("parent") {
		patch.Parent = &opts.Parent
	}

	return opts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
		t, err := lifecycle.New(s).Update(ctx, id, patch)
		if err != nil {
			return err
		}
		return f.Success(t, func(w io.Writer) {
			renderTicketDetail(w, t)
		})
	})
}

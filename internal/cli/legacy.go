package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/query"
	"github.com/tkt-dev/tkt/internal/session"
)

// NewTasksCommand creates the tasks command with the legacy filter flags.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	return newLegacyCommand(rootOpts, query.SourceTasks,
		"List tasks (pending by default, --done for completed)")
}

// NewIssuesCommand creates the issues command with the legacy filter flags.
func NewIssuesCommand(rootOpts *RootOptions) *cobra.Command {
	return newLegacyCommand(rootOpts, query.SourceIssues, "List issues")
}

// NewNotesCommand creates the notes command with the legacy filter flags.
func NewNotesCommand(rootOpts *RootOptions) *cobra.Command {
	return newLegacyCommand(rootOpts, query.SourceNotes, "List notes")
}

// newLegacyCommand builds one of the positional filter commands. All three
// map their flags onto the same plan representation pipeline mode uses.
func newLegacyCommand(rootOpts *RootOptions, source query.Source, short string) *cobra.Command {
	var params query.LegacyParams

	cmd := &cobra.Command{
		Use:           string(source),
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
				plan, err := query.FromLegacy(source, params)
				if err != nil {
					return err
				}
				return runPlan(ctx, s, f, plan)
			})
		},
	}

	cmd.Flags().BoolVar(&params.Done, "done", false, "show done tickets")
	cmd.Flags().StringVar(&params.Label, "label", "", "filter by label")
	cmd.Flags().StringVar(&params.Spec, "spec", "", "filter by spec reference")
	cmd.Flags().StringVar(&params.Author, "author", "", "filter by author")
	cmd.Flags().StringVar(&params.Priority, "priority", "", "filter by priority (low|medium|high)")

	return cmd
}

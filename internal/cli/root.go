package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/eventlog"
	"github.com/tkt-dev/tkt/internal/session"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Dir     string // workspace root
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tkt CLI. Invoked with no
// arguments it prints the full workspace snapshot; a single positional
// argument is treated as a pipeline expression, so `tkt "tasks | count"`
// works without the query subcommand.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tkt [pipeline]",
		Short: "tkt - ticket tracking over an append-only log",
		Long: `tkt tracks tasks, issues, and notes in an append-only event log.

The log is the single source of truth; a local cache is rebuilt from it
whenever the log changes, so state always derives from replay.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runQuery(opts, cmd, args[0])
			}
			return runSnapshot(opts, cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Dir, "dir", "C", ".", "workspace directory")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewTasksCommand(opts))
	cmd.AddCommand(NewIssuesCommand(opts))
	cmd.AddCommand(NewNotesCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewDoneCommand(opts))
	cmd.AddCommand(NewAcceptCommand(opts))
	cmd.AddCommand(NewRejectCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewPrioritizeCommand(opts))
	cmd.AddCommand(NewRefsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter builds the output formatter for a command invocation.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// withSession opens the workspace session, runs fn, and renders any error
// through the formatter. Replay skip warnings surface on the diagnostic
// writer as they occur.
func (o *RootOptions) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session, f *OutputFormatter) error) error {
	f := o.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := session.Open(ctx, o.Dir, func(w eventlog.ScanWarning) {
		f.Warn("log line %d skipped: %s", w.Line, w.Msg)
	})
	if err != nil {
		return f.Fail(err)
	}
	defer s.Close()

	if err := fn(ctx, s, f); err != nil {
		return f.Fail(err)
	}
	return nil
}

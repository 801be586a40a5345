package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tkt-dev/tkt/internal/resolver"
	"github.com/tkt-dev/tkt/internal/session"
)

// NewRefsCommand creates the refs command, reporting broken and stale
// reference counts across the whole workspace.
func NewRefsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "Count broken and stale references across all tickets",
		Long: `Scan every dependency, parent, created-from, and supersedes reference
and classify each target: resolved (live ticket), stale (concluded, a
tombstone remains), or broken (never existed).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session.Session, f *OutputFormatter) error {
				if err := s.EnsureFresh(ctx); err != nil {
					return err
				}
				counts, err := resolver.CountRefs(ctx, s.Cache)
				if err != nil {
					return err
				}

				return f.Success(counts, func(w io.Writer) {
					fmt.Fprintf(w, "%d edges scanned: %d broken, %d stale\n",
						counts.Edges, counts.TotalBroken(), counts.TotalStale())
					rows := []struct {
						name string
						rc   resolver.RelationCounts
					}{
						{"deps", counts.Deps},
						{"parent", counts.Parent},
						{"created-from", counts.CreatedFrom},
						{"supersedes", counts.Supersedes},
					}
					for _, r := range rows {
						if r.rc.Broken == 0 && r.rc.Stale == 0 {
							continue
						}
						fmt.Fprintf(w, "  %-13s broken=%d stale=%d\n", r.name, r.rc.Broken, r.rc.Stale)
					}
				})
			})
		},
	}
}

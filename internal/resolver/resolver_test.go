package resolver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/ticket"
)

func openTest(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func put(t *testing.T, c *cache.Cache, tk *ticket.Ticket) {
	t.Helper()
	require.NoError(t, c.Mutate(context.Background(), func(tx *cache.Tx) error {
		return tx.PutTicket(tk)
	}))
}

func task(id string, status ticket.Status, deps ...string) *ticket.Ticket {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &ticket.Ticket{
		ID: id, Kind: ticket.KindTask, Name: id,
		Status: status, Deps: deps, CreatedAt: created, UpdatedAt: created,
	}
}

func TestResolveStates(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	put(t, c, task("tk-live", ticket.StatusPending))
	put(t, c, task("tk-done", ticket.StatusDone))
	put(t, c, task("tk-gone", ticket.StatusDeleted))
	put(t, c, task("tk-acc", ticket.StatusAccepted))
	require.NoError(t, c.Mutate(ctx, func(tx *cache.Tx) error {
		if err := tx.AddTombstone(ticket.Tombstone{TicketID: "tk-acc", Accepted: true}); err != nil {
			return err
		}
		return tx.AddTombstone(ticket.Tombstone{TicketID: "tk-concluded", Accepted: true})
	}))

	tests := []struct {
		id   string
		want State
	}{
		{"tk-live", Resolved},
		{"tk-done", Resolved},
		{"tk-gone", Broken},     // soft-deleted, no tombstone
		{"tk-acc", Stale},       // concluded row plus its tombstone
		{"tk-concluded", Stale}, // only a tombstone remains
		{"tk-never", Broken},
		{"", Broken},
	}
	for _, tt := range tests {
		got, err := Resolve(ctx, c, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Resolve(%q)", tt.id)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "broken", Broken.String())
}

func TestCountRefs(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	put(t, c, task("tk-a", ticket.StatusPending))
	require.NoError(t, c.Mutate(ctx, func(tx *cache.Tx) error {
		return tx.AddTombstone(ticket.Tombstone{TicketID: "tk-stale"})
	}))

	// One resolved dep, one stale dep, one broken dep, a broken parent,
	// and a stale supersedes.
	tk := task("tk-b", ticket.StatusPending, "tk-a", "tk-stale", "tk-missing")
	tk.Parent = "tk-no-parent"
	tk.Supersedes = "tk-stale"
	put(t, c, tk)

	counts, err := CountRefs(ctx, c)
	require.NoError(t, err)

	assert.Equal(t, 5, counts.Edges)
	assert.Equal(t, RelationCounts{Broken: 1, Stale: 1}, counts.Deps)
	assert.Equal(t, RelationCounts{Broken: 1}, counts.Parent)
	assert.Equal(t, RelationCounts{}, counts.CreatedFrom)
	assert.Equal(t, RelationCounts{Stale: 1}, counts.Supersedes)
	assert.Equal(t, 2, counts.TotalBroken())
	assert.Equal(t, 2, counts.TotalStale())
}

func TestCountRefsIncludesEdgesFromDeletedTickets(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	deleted := task("tk-del", ticket.StatusDeleted, "tk-missing")
	put(t, c, deleted)

	counts, err := CountRefs(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Edges)
	assert.Equal(t, 1, counts.Deps.Broken)
}

package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/ticket"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

func seedCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tickets := []*ticket.Ticket{
		{ID: "tk-1", Kind: ticket.KindTask, Name: "first", Status: ticket.StatusPending,
			Labels: []string{"infra"}, CreatedAt: base, UpdatedAt: base},
		{ID: "tk-2", Kind: ticket.KindTask, Name: "second", Status: ticket.StatusDone,
			CreatedAt: base.Add(time.Minute), UpdatedAt: base},
		{ID: "is-1", Kind: ticket.KindIssue, Name: "an issue", Status: ticket.StatusPending,
			Labels: []string{"infra"}, CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base},
	}
	require.NoError(t, c.Mutate(context.Background(), func(tx *cache.Tx) error {
		for _, tk := range tickets {
			if err := tx.PutTicket(tk); err != nil {
				return err
			}
		}
		return nil
	}))
	return c
}

func TestExecuteList(t *testing.T) {
	c := seedCache(t)
	plan := Plan{Source: SourceTasks, Terminal: TerminalList}

	res, err := Execute(context.Background(), c, plan, 10)
	require.NoError(t, err)
	require.Len(t, res.Tickets, 2)
	assert.Equal(t, "tk-1", res.Tickets[0].ID)
	assert.Equal(t, "tk-2", res.Tickets[1].ID)
}

func TestExecuteCount(t *testing.T) {
	c := seedCache(t)
	plan := Plan{
		Source:   SourceTickets,
		Filters:  []Filter{{Field: "label", Value: "infra"}},
		Terminal: TerminalCount,
	}

	res, err := Execute(context.Background(), c, plan, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Empty(t, res.Tickets)
}

func TestExecuteIDs(t *testing.T) {
	c := seedCache(t)
	plan := Plan{
		Source:   SourceTasks,
		Filters:  []Filter{{Field: "status", Value: "pending"}},
		Terminal: TerminalIDs,
	}

	res, err := Execute(context.Background(), c, plan, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"tk-1"}, res.IDs)
}

func TestExecuteOverflow(t *testing.T) {
	c := seedCache(t)
	plan := Plan{Source: SourceTickets, Terminal: TerminalList}

	_, err := Execute(context.Background(), c, plan, 2)
	require.Error(t, err)
	assert.True(t, tkterr.Is(err, tkterr.CodeOverflow))

	// Count is not subject to the result cap.
	plan.Terminal = TerminalCount
	res, err := Execute(context.Background(), c, plan, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
}

func TestPassthrough(t *testing.T) {
	c := seedCache(t)

	raw, err := Passthrough(context.Background(), c,
		"SELECT id, status FROM tickets WHERE kind = 'task' ORDER BY id", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "status"}, raw.Columns)
	require.Len(t, raw.Rows, 2)
	assert.Equal(t, []string{"tk-1", "pending"}, raw.Rows[0])
	assert.Equal(t, []string{"tk-2", "done"}, raw.Rows[1])
}

func TestPassthroughOverflow(t *testing.T) {
	c := seedCache(t)
	_, err := Passthrough(context.Background(), c, "SELECT id FROM tickets", 2)
	require.Error(t, err)
	assert.True(t, tkterr.Is(err, tkterr.CodeOverflow))
}

func TestPassthroughBadSQL(t *testing.T) {
	c := seedCache(t)
	_, err := Passthrough(context.Background(), c, "SELEKT nope", 10)
	require.Error(t, err)
	assert.True(t, tkterr.Is(err, tkterr.CodeStorage))
}

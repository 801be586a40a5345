package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/config"
	"github.com/tkt-dev/tkt/internal/eventlog"
	"github.com/tkt-dev/tkt/internal/gitrev"
	"github.com/tkt-dev/tkt/internal/ticket"
)

func strp(s string) *string { return &s }

func openTest(t *testing.T, dir string) *Session {
	t.Helper()
	s, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesWorkspaceDir(t *testing.T) {
	dir := t.TempDir()
	s := openTest(t, dir)

	info, err := os.Stat(filepath.Join(dir, config.WorkDirName))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, config.DefaultLimits, s.Limits)
}

func TestEnsureFreshEmptyLog(t *testing.T) {
	s := openTest(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.EnsureFresh(ctx))
	assert.Equal(t, gitrev.EmptyRevision, s.Revision)

	n, err := s.Cache.CountWhere(ctx, "", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnsureFreshRebuildsOnLogChange(t *testing.T) {
	s := openTest(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Log.Append(eventlog.Record{Op: eventlog.OpTask, ID: "tk-1", Name: strp("one")}))
	require.NoError(t, s.EnsureFresh(ctx))
	rev1 := s.Revision

	n, err := s.Cache.CountWhere(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Append behind the cache's back; the next freshness check must detect
	// the revision mismatch and replay.
	require.NoError(t, s.Log.Append(eventlog.Record{Op: eventlog.OpTask, ID: "tk-2", Name: strp("two")}))
	require.NoError(t, s.EnsureFresh(ctx))
	assert.NotEqual(t, rev1, s.Revision)

	n, err = s.Cache.CountWhere(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEnsureFreshNoRebuildWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	s := openTest(t, dir)
	ctx := context.Background()

	require.NoError(t, s.Log.Append(eventlog.Record{Op: eventlog.OpTask, ID: "tk-1", Name: strp("one")}))
	require.NoError(t, s.EnsureFresh(ctx))

	// A second session over the same workspace sees a fresh cache and must
	// not need a rebuild; planting a sentinel row proves no replay ran.
	require.NoError(t, s.Cache.Mutate(ctx, func(tx *cache.Tx) error {
		return tx.AddTombstone(ticket.Tombstone{TicketID: "sentinel"})
	}))

	s2 := openTest(t, dir)
	require.NoError(t, s2.EnsureFresh(ctx))

	has, err := s2.Cache.HasTombstone(ctx, "sentinel")
	require.NoError(t, err)
	assert.True(t, has, "fresh cache should not have been rebuilt")
}

func TestAdvanceRevision(t *testing.T) {
	s := openTest(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.EnsureFresh(ctx))
	require.NoError(t, s.Log.Append(eventlog.Record{Op: eventlog.OpTask, ID: "tk-1", Name: strp("one")}))

	require.NoError(t, s.Cache.Mutate(ctx, func(tx *cache.Tx) error {
		return s.AdvanceRevision(ctx, tx)
	}))

	logRev, err := s.LogRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, logRev, s.Revision)

	fresh, err := s.Cache.Fresh(ctx, logRev)
	require.NoError(t, err)
	assert.True(t, fresh)
}

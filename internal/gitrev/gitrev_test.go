package gitrev

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisionMissingFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	rev, err := s.Revision(context.Background(), filepath.Join(dir, "absent.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, EmptyRevision, rev)
}

func TestRevisionContentAddressed(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()
	path := filepath.Join(dir, "log.jsonl")

	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0o644))
	r1, err := s.Revision(ctx, path)
	require.NoError(t, err)
	require.NotEmpty(t, r1)
	require.NotEqual(t, EmptyRevision, r1)

	// Same bytes, same revision.
	r2, err := s.Revision(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	// Different bytes, different revision.
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))
	r3, err := s.Revision(ctx, path)
	require.NoError(t, err)
	assert.NotEqual(t, r1, r3)

	// Reverting the content restores the original revision.
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0o644))
	r4, err := s.Revision(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, r1, r4)
}

func TestBranchOutsideRepo(t *testing.T) {
	// A fresh temp dir is not a git checkout, so there is no branch to
	// scope by. (If the tmp filesystem is somehow inside a repo, rev-parse
	// would still answer; guard only the common case.)
	dir := t.TempDir()
	s := New(dir)
	branch := s.Branch(context.Background())
	assert.Empty(t, branch)
}

func TestHashFileFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	h1, err := hashFile(path)
	require.NoError(t, err)
	h2, err := hashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex sha256
}

// Package session threads the per-invocation context through every
// operation: log location, cache handle, current branch, current revision,
// and limits. There is no process-wide singleton; a Session is constructed
// once per invocation and passed explicitly.
package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/config"
	"github.com/tkt-dev/tkt/internal/eventlog"
	"github.com/tkt-dev/tkt/internal/gitrev"
	"github.com/tkt-dev/tkt/internal/replay"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

// Session is the explicit execution context for one invocation.
type Session struct {
	Dir      string // workspace root
	Log      *eventlog.Log
	Cache    *cache.Cache
	Branch   string // current branch; "" means unscoped
	Revision string // log revision at the last freshness check
	Actor    string
	Limits   config.Limits

	substrate *gitrev.Substrate
	warn      func(eventlog.ScanWarning)
}

// Open builds a session for the workspace at dir, loading configuration,
// resolving the current branch, and opening the cache. warn receives
// replay skip warnings; nil discards them.
func Open(ctx context.Context, dir string, warn func(eventlog.ScanWarning)) (*Session, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(dir, config.WorkDirName), 0o755); err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "create workspace directory")
	}

	c, err := cache.Open(cfg.CachePath(dir))
	if err != nil {
		return nil, err
	}

	sub := gitrev.New(dir)
	s := &Session{
		Dir:       dir,
		Log:       eventlog.New(cfg.LogPath(dir)),
		Cache:     c,
		Branch:    sub.Branch(ctx),
		Actor:     cfg.Actor,
		Limits:    cfg.Limits,
		substrate: sub,
		warn:      warn,
	}
	return s, nil
}

// Close releases the cache handle.
func (s *Session) Close() error {
	return s.Cache.Close()
}

// LogRevision returns the log's current revision from the versioning
// substrate.
func (s *Session) LogRevision(ctx context.Context) (string, error) {
	return s.substrate.Revision(ctx, s.Log.Path())
}

// EnsureFresh compares the cache's revision marker to the log's current
// revision and triggers a full rebuild on mismatch. Every read and
// mutation path calls this before touching data.
func (s *Session) EnsureFresh(ctx context.Context) error {
	rev, err := s.LogRevision(ctx)
	if err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "resolve log revision")
	}

	fresh, err := s.Cache.Fresh(ctx, rev)
	if err != nil {
		return err
	}
	if !fresh {
		if _, err := replay.Rebuild(ctx, s.Log, s.Cache, rev, s.warn); err != nil {
			return err
		}
	}
	s.Revision = rev
	return nil
}

// AdvanceRevision recomputes the log revision after an append and records
// it both in the session and in the given cache transaction, so the cache
// update and marker advance land atomically.
func (s *Session) AdvanceRevision(ctx context.Context, tx *cache.Tx) error {
	rev, err := s.LogRevision(ctx)
	if err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "resolve log revision")
	}
	if err := tx.SetRevision(rev); err != nil {
		return err
	}
	s.Revision = rev
	return nil
}

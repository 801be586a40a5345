// Package gitrev adapts the external versioning substrate (git) that
// serializes writers and assigns revisions to the event log.
//
// The revision of a log is content-addressed: two logs with the same bytes
// have the same revision, so a cache tagged with revision R is either fully
// correct for R or must be discarded. When git is unavailable the package
// falls back to hashing the file directly, which preserves the same
// contract outside a repository.
package gitrev

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
)

// EmptyRevision is the revision of a missing or empty log.
const EmptyRevision = "empty"

// Substrate resolves revisions and branches for files under a directory.
type Substrate struct {
	dir string
}

// New returns a Substrate rooted at dir (typically the workspace root).
func New(dir string) *Substrate {
	return &Substrate{dir: dir}
}

// Revision returns the content-addressed revision of the file at path.
// A missing file yields EmptyRevision. Inside a git checkout this is the
// blob hash git itself would assign, so revisions line up with committed
// history; outside git a sha256 of the content serves the same purpose.
func (s *Substrate) Revision(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return EmptyRevision, nil
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	cmd := exec.CommandContext(ctx, "git", "hash-object", "--", path)
	cmd.Dir = s.dir
	if out, err := cmd.Output(); err == nil {
		if rev := strings.TrimSpace(string(out)); rev != "" {
			return rev, nil
		}
	}

	return hashFile(path)
}

// Branch returns the current branch name, or "" when detached or outside
// a repository. An empty branch matches only branch-untagged tickets.
func (s *Substrate) Branch(ctx context.Context) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = s.dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	branch := strings.TrimSpace(string(out))
	if branch == "HEAD" {
		// Detached head has no branch to scope by.
		return ""
	}
	return branch
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

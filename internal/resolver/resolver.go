// Package resolver classifies foreign ticket identifiers against the cache.
//
// Resolution is single-hop only: it classifies one identifier at a time and
// never follows chains, so no cycle handling is needed here. Consumers that
// walk parent or dependency chains must impose their own visited-set and
// depth bound.
package resolver

import (
	"context"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

// State is the three-way classification of a referenced identifier.
type State int

const (
	// Resolved: the id names a live (non-deleted, non-accepted) ticket.
	Resolved State = iota
	// Stale: the id is not live but a tombstone exists; it existed and
	// concluded through accept or reject.
	Stale
	// Broken: neither live nor tombstoned. Ids that never existed and
	// soft-deleted tickets both land here.
	Broken
)

// String returns the classification as a lowercase word.
func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Stale:
		return "stale"
	case Broken:
		return "broken"
	default:
		return "unknown"
	}
}

// Resolve classifies id against the cache. Exactly one of the three states
// is returned for every input.
func Resolve(ctx context.Context, c *cache.Cache, id string) (State, error) {
	if id == "" {
		return Broken, nil
	}

	t, err := c.GetTicket(ctx, id)
	if err != nil && !tkterr.Is(err, tkterr.CodeNotFound) {
		return Broken, err
	}
	if t != nil && t.IsLive() {
		return Resolved, nil
	}

	// Not live: only a tombstone makes the reference stale. A stored but
	// non-live row without one (a soft delete) resolves broken, same as an
	// id that never existed.
	has, err := c.HasTombstone(ctx, id)
	if err != nil {
		return Broken, err
	}
	if has {
		return Stale, nil
	}
	return Broken, nil
}

// RelationCounts tallies broken and stale references for one relation kind.
type RelationCounts struct {
	Broken int `json:"broken"`
	Stale  int `json:"stale"`
}

// Counts is the result of a batch reference scan.
type Counts struct {
	Deps        RelationCounts `json:"deps"`
	Parent      RelationCounts `json:"parent"`
	CreatedFrom RelationCounts `json:"created_from"`
	Supersedes  RelationCounts `json:"supersedes"`
	Edges       int            `json:"edges"` // total edges scanned
}

// TotalBroken sums broken references across all relation kinds.
func (c Counts) TotalBroken() int {
	return c.Deps.Broken + c.Parent.Broken + c.CreatedFrom.Broken + c.Supersedes.Broken
}

// TotalStale sums stale references across all relation kinds.
func (c Counts) TotalStale() int {
	return c.Deps.Stale + c.Parent.Stale + c.CreatedFrom.Stale + c.Supersedes.Stale
}

// CountRefs scans every ticket's dependency, parent, created-from, and
// supersedes fields and tallies broken/stale counts per relation kind.
// Resolutions are memoized per id; one scan touches each edge once.
func CountRefs(ctx context.Context, c *cache.Cache) (Counts, error) {
	edges, err := c.RefEdges(ctx)
	if err != nil {
		return Counts{}, err
	}

	states := make(map[string]State)
	var counts Counts

	for _, e := range edges {
		// Edges out of deleted tickets still count: historical/audit
		// queries remain valid over soft-deleted records.
		st, ok := states[e.To]
		if !ok {
			st, err = Resolve(ctx, c, e.To)
			if err != nil {
				return Counts{}, err
			}
			states[e.To] = st
		}
		counts.Edges++

		var rc *RelationCounts
		switch e.Relation {
		case "dep":
			rc = &counts.Deps
		case "parent":
			rc = &counts.Parent
		case "created_from":
			rc = &counts.CreatedFrom
		case "supersedes":
			rc = &counts.Supersedes
		default:
			continue
		}
		switch st {
		case Broken:
			rc.Broken++
		case Stale:
			rc.Stale++
		}
	}
	return counts, nil
}

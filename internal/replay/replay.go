// Package replay rebuilds the cache from the event log.
//
// A rebuild is always full: the cache is cleared and every record is
// processed from the start in order. There is no incremental replay; each
// revision of the log is immutable, so a cache tagged with revision R is
// either fully correct for R or discarded entirely.
package replay

import (
	"context"
	"time"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/eventlog"
	"github.com/tkt-dev/tkt/internal/ticket"
)

// Stats summarizes one rebuild.
type Stats struct {
	Records    int // well-formed records processed
	Skipped    int // malformed lines skipped with a warning
	Tickets    int // distinct tickets in the rebuilt cache
	Tombstones int // tombstones in the rebuilt cache
}

// Rebuild replays the log into the cache and stamps it with rev, the log's
// current revision. Malformed lines are reported through warn and skipped,
// never fatal: replay must stay available over partially corrupt history.
// A missing log yields an empty cache.
func Rebuild(ctx context.Context, log *eventlog.Log, c *cache.Cache, rev string, warn func(eventlog.ScanWarning)) (Stats, error) {
	st := newState()

	wrapped := func(w eventlog.ScanWarning) {
		st.skipped++
		if warn != nil {
			warn(w)
		}
	}

	err := log.Scan(func(rec eventlog.Record) error {
		st.apply(rec)
		return nil
	}, wrapped)
	if err != nil {
		return Stats{}, err
	}

	if err := c.ReplaceAll(ctx, st.ordered(), st.tombstones, rev); err != nil {
		return Stats{}, err
	}

	return Stats{
		Records:    st.records,
		Skipped:    st.skipped,
		Tickets:    len(st.tickets),
		Tombstones: len(st.tombstones),
	}, nil
}

// state folds the record stream into ticket and tombstone collections,
// preserving first-seen order for deterministic cache population.
type state struct {
	tickets    map[string]*ticket.Ticket
	order      []string
	tombstones []ticket.Tombstone
	records    int
	skipped    int
}

func newState() *state {
	return &state{tickets: make(map[string]*ticket.Ticket)}
}

func (s *state) ordered() []*ticket.Ticket {
	out := make([]*ticket.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tickets[id])
	}
	return out
}

func (s *state) apply(rec eventlog.Record) {
	s.records++
	switch {
	case rec.Op.IsTicket():
		s.upsert(rec)
	case rec.Op == eventlog.OpAccept || rec.Op == eventlog.OpReject:
		s.conclude(rec)
	case rec.Op == eventlog.OpDelete:
		s.softDelete(rec)
	}
}

// upsert applies patch semantics: only fields present in the record
// overwrite the stored ticket. A record that sets only status must not
// clear notes, deps, or anything else.
func (s *state) upsert(rec eventlog.Record) {
	t, ok := s.tickets[rec.ID]
	if !ok {
		t = &ticket.Ticket{
			ID:     rec.ID,
			Kind:   rec.Op.Kind(),
			Status: ticket.StatusPending,
		}
		s.tickets[rec.ID] = t
		s.order = append(s.order, rec.ID)
	}
	t.Apply(rec.ToPatch())
}

// conclude creates the tombstone and marks the referenced ticket
// accepted/rejected. Tombstone creation never fails on missing optional
// fields; an unknown ticket still gets its tombstone so the audit trail
// survives partial history.
func (s *state) conclude(rec eventlog.Record) {
	s.tombstones = append(s.tombstones, rec.Tombstone())

	t, ok := s.tickets[rec.ID]
	if !ok {
		return
	}
	if rec.Op == eventlog.OpAccept {
		t.Status = ticket.StatusAccepted
	} else {
		t.Status = ticket.StatusRejected
	}
	// Resolved-at uses the record's own timestamp when present; otherwise
	// the zero-time "unknown" sentinel keeps replay deterministic.
	var at time.Time
	if rec.At != nil {
		at = *rec.At
		t.UpdatedAt = at
	}
	t.ResolvedAt = &at
}

func (s *state) softDelete(rec eventlog.Record) {
	t, ok := s.tickets[rec.ID]
	if !ok {
		// Deleting an unknown ticket is a no-op.
		return
	}
	t.Status = ticket.StatusDeleted
}

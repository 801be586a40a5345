package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tkt-dev/tkt/internal/ticket"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

// Tx wraps a cache transaction. All writes go through a Tx so that a log
// append and its cache update land as an atomic pair.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

// Mutate runs fn inside a single transaction, committing on success.
// Used by the lifecycle controller to pair a cache update with the
// revision-marker advance.
func (c *Cache) Mutate(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "begin cache transaction")
	}
	defer tx.Rollback() // no-op if committed

	if err := fn(&Tx{tx: tx, ctx: ctx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "commit cache transaction")
	}
	return nil
}

// ReplaceAll atomically clears the cache and repopulates it from a full
// replay, stamping the new revision marker. Order of tickets and
// tombstones is preserved so rebuilds are deterministic.
func (c *Cache) ReplaceAll(ctx context.Context, tickets []*ticket.Ticket, tombstones []ticket.Tombstone, rev string) error {
	return c.Mutate(ctx, func(tx *Tx) error {
		if err := tx.Clear(); err != nil {
			return err
		}
		for _, t := range tickets {
			if err := tx.PutTicket(t); err != nil {
				return err
			}
		}
		for _, ts := range tombstones {
			if err := tx.AddTombstone(ts); err != nil {
				return err
			}
		}
		return tx.SetRevision(rev)
	})
}

// Clear removes every row, including the revision marker.
func (tx *Tx) Clear() error {
	for _, stmt := range []string{
		"DELETE FROM ticket_deps",
		"DELETE FROM ticket_labels",
		"DELETE FROM tombstones",
		"DELETE FROM tickets",
		"DELETE FROM cache_meta",
		"DELETE FROM sqlite_sequence WHERE name = 'tombstones'",
	} {
		if _, err := tx.tx.ExecContext(tx.ctx, stmt); err != nil {
			return tkterr.Wrap(tkterr.CodeStorage, err, "clear cache")
		}
	}
	return nil
}

// SetRevision records the log revision the cache now reflects.
func (tx *Tx) SetRevision(rev string) error {
	_, err := tx.tx.ExecContext(tx.ctx, `
		INSERT INTO cache_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, revisionKey, rev)
	if err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "set cache revision")
	}
	return nil
}

// PutTicket upserts the full ticket row plus its dependency and label sets.
func (tx *Tx) PutTicket(t *ticket.Ticket) error {
	metaJSON := ""
	if len(t.Meta) > 0 {
		b, err := json.Marshal(t.Meta)
		if err != nil {
			return tkterr.Wrap(tkterr.CodeStorage, err, "encode meta for %s", t.ID)
		}
		metaJSON = string(b)
	}

	resolved := 0
	if t.ResolvedAt != nil {
		resolved = 1
	}

	_, err := tx.tx.ExecContext(tx.ctx, `
		INSERT INTO tickets
		(id, kind, name, notes, accept_criteria, spec, status, priority,
		 parent, created_from, supersedes, author, branch,
		 created_at, updated_at, done_at, done_rev, resolved, resolved_at, meta,
		 cost_usd, tokens_in, tokens_out, iterations, retries, kills, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			notes = excluded.notes,
			accept_criteria = excluded.accept_criteria,
			spec = excluded.spec,
			status = excluded.status,
			priority = excluded.priority,
			parent = excluded.parent,
			created_from = excluded.created_from,
			supersedes = excluded.supersedes,
			author = excluded.author,
			branch = excluded.branch,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			done_at = excluded.done_at,
			done_rev = excluded.done_rev,
			resolved = excluded.resolved,
			resolved_at = excluded.resolved_at,
			meta = excluded.meta,
			cost_usd = excluded.cost_usd,
			tokens_in = excluded.tokens_in,
			tokens_out = excluded.tokens_out,
			iterations = excluded.iterations,
			retries = excluded.retries,
			kills = excluded.kills,
			model = excluded.model
	`,
		t.ID, string(t.Kind), t.Name, t.Notes, t.AcceptCriteria, t.Spec,
		string(t.Status), string(t.Priority),
		t.Parent, t.CreatedFrom, t.Supersedes, t.Author, t.Branch,
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt), encodeTimePtr(t.DoneAt),
		t.DoneRev, resolved, encodeTimePtr(t.ResolvedAt), metaJSON,
		t.Telemetry.CostUSD, t.Telemetry.TokensIn, t.Telemetry.TokensOut,
		t.Telemetry.Iterations, t.Telemetry.Retries, t.Telemetry.Kills,
		t.Telemetry.Model,
	)
	if err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "upsert ticket %s", t.ID)
	}

	if err := tx.replaceSet("ticket_deps", "dep_id", t.ID, t.Deps); err != nil {
		return err
	}
	return tx.replaceSet("ticket_labels", "label", t.ID, t.Labels)
}

// replaceSet rewrites a ticket's dependency or label rows.
func (tx *Tx) replaceSet(table, column, ticketID string, values []string) error {
	if _, err := tx.tx.ExecContext(tx.ctx,
		"DELETE FROM "+table+" WHERE ticket_id = ?", ticketID); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "clear %s for %s", table, ticketID)
	}
	for _, v := range values {
		_, err := tx.tx.ExecContext(tx.ctx,
			"INSERT INTO "+table+" (ticket_id, "+column+") VALUES (?, ?) ON CONFLICT DO NOTHING",
			ticketID, v)
		if err != nil {
			return tkterr.Wrap(tkterr.CodeStorage, err, "insert %s for %s", table, ticketID)
		}
	}
	return nil
}

// AddTombstone appends an immutable tombstone row.
func (tx *Tx) AddTombstone(ts ticket.Tombstone) error {
	accepted := 0
	if ts.Accepted {
		accepted = 1
	}
	_, err := tx.tx.ExecContext(tx.ctx, `
		INSERT INTO tombstones (ticket_id, done_rev, reason, accepted, name, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ts.TicketID, ts.DoneRev, ts.Reason, accepted, ts.Name, encodeTime(ts.At))
	if err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "insert tombstone for %s", ts.TicketID)
	}
	return nil
}

// timeFormat is RFC3339 with a fixed-width nanosecond fraction. Trimmed
// fractions would break lexicographic ORDER BY on the stored text, since
// 'Z' compares above every digit.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// encodeTime stores times in UTC; the zero time stores as the empty string
// so replayed "unknown" sentinels stay distinguishable.
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func encodeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

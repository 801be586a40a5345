package cache

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/tkt-dev/tkt/internal/ticket"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

// ticketColumns is the canonical SELECT list matching scanTicket.
const ticketColumns = `id, kind, name, notes, accept_criteria, spec, status, priority,
	parent, created_from, supersedes, author, branch,
	created_at, updated_at, done_at, done_rev, resolved, resolved_at, meta,
	cost_usd, tokens_in, tokens_out, iterations, retries, kills, model`

// stableOrder is appended to every list read. COLLATE BINARY keeps text
// ordering deterministic across SQLite versions.
const stableOrder = ` ORDER BY created_at ASC, id COLLATE BINARY ASC`

// GetTicket loads a ticket by id, including its dependency and label sets.
// Returns a NOT_FOUND error when the id is absent.
func (c *Cache) GetTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, tkterr.NewID(tkterr.CodeNotFound, id, "ticket not found")
	}
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "load ticket %s", id)
	}
	if err := c.loadSets(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// HasTicket reports whether any ticket row (live or terminal) exists for id.
func (c *Cache) HasTicket(ctx context.Context, id string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, tkterr.Wrap(tkterr.CodeStorage, err, "check ticket %s", id)
	}
	return n > 0, nil
}

// TicketsWhere returns tickets matching a compiled WHERE fragment, in
// stable order. Exceeding limit is an OVERFLOW error, never a silent
// truncation: the read plan fetches limit+1 rows to detect it.
func (c *Cache) TicketsWhere(ctx context.Context, where string, params []any, limit int) ([]*ticket.Ticket, error) {
	if where == "" {
		where = "1 = 1"
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + where + stableOrder
	if limit > 0 {
		query += ` LIMIT ?`
		params = append(append([]any(nil), params...), limit+1)
	}

	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "list tickets")
	}
	defer rows.Close()

	var tickets []*ticket.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, tkterr.Wrap(tkterr.CodeStorage, err, "scan ticket row")
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "iterate tickets")
	}

	if limit > 0 && len(tickets) > limit {
		return nil, tkterr.New(tkterr.CodeOverflow,
			"result exceeds max of %d tickets; narrow the query or raise the limit", limit)
	}

	for _, t := range tickets {
		if err := c.loadSets(ctx, t); err != nil {
			return nil, err
		}
	}
	return tickets, nil
}

// CountWhere returns the number of tickets matching a WHERE fragment.
func (c *Cache) CountWhere(ctx context.Context, where string, params []any) (int, error) {
	if where == "" {
		where = "1 = 1"
	}
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE `+where, params...).Scan(&n)
	if err != nil {
		return 0, tkterr.Wrap(tkterr.CodeStorage, err, "count tickets")
	}
	return n, nil
}

// FirstTask returns the oldest task with the given status, used when done
// or accept is invoked without an id. Returns nil when none match.
func (c *Cache) FirstTask(ctx context.Context, status ticket.Status) (*ticket.Ticket, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE kind = ? AND status = ?`+stableOrder+` LIMIT 1`,
		string(ticket.KindTask), string(status))
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "select first %s task", status)
	}
	if err := c.loadSets(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Dependents returns ids of tickets listing depID in their dependency set.
// Deleted tickets never gate anything; accepted tickets still do, because
// their historical dependency edges remain part of the audit record.
func (c *Cache) Dependents(ctx context.Context, depID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT d.ticket_id FROM ticket_deps d
		JOIN tickets t ON t.id = d.ticket_id
		WHERE d.dep_id = ? AND t.status != ?
		ORDER BY d.ticket_id COLLATE BINARY ASC
	`, depID, string(ticket.StatusDeleted))
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "list dependents of %s", depID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, tkterr.Wrap(tkterr.CodeStorage, err, "scan dependent id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "iterate dependents")
	}
	return ids, nil
}

// HasTombstone reports whether a tombstone exists for the ticket id.
func (c *Cache) HasTombstone(ctx context.Context, id string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tombstones WHERE ticket_id = ?`, id).Scan(&n)
	if err != nil {
		return false, tkterr.Wrap(tkterr.CodeStorage, err, "check tombstone for %s", id)
	}
	return n > 0, nil
}

// Tombstones returns tombstones in creation order, optionally filtered by
// ticket id (empty matches all). Exceeding limit is an OVERFLOW error.
func (c *Cache) Tombstones(ctx context.Context, ticketID string, limit int) ([]ticket.Tombstone, error) {
	query := `SELECT ticket_id, done_rev, reason, accepted, name, at FROM tombstones`
	var params []any
	if ticketID != "" {
		query += ` WHERE ticket_id = ?`
		params = append(params, ticketID)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		params = append(params, limit+1)
	}

	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "list tombstones")
	}
	defer rows.Close()

	var stones []ticket.Tombstone
	for rows.Next() {
		var ts ticket.Tombstone
		var accepted int
		var at string
		if err := rows.Scan(&ts.TicketID, &ts.DoneRev, &ts.Reason, &accepted, &ts.Name, &at); err != nil {
			return nil, tkterr.Wrap(tkterr.CodeStorage, err, "scan tombstone row")
		}
		ts.Accepted = accepted != 0
		ts.At = decodeTime(at)
		stones = append(stones, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "iterate tombstones")
	}

	if limit > 0 && len(stones) > limit {
		return nil, tkterr.New(tkterr.CodeOverflow,
			"result exceeds max of %d tombstones", limit)
	}
	return stones, nil
}

// RefEdge is one outgoing reference from a ticket, used by the batch
// reference scan.
type RefEdge struct {
	From     string // referencing ticket id
	To       string // referenced id
	Relation string // "dep", "parent", "created_from", "supersedes"
}

// RefEdges returns every non-empty reference edge across all tickets,
// in stable order.
func (c *Cache) RefEdges(ctx context.Context) ([]RefEdge, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT ticket_id AS src, dep_id AS ref, 'dep' AS relation FROM ticket_deps
		UNION ALL
		SELECT id, parent, 'parent' FROM tickets WHERE parent != ''
		UNION ALL
		SELECT id, created_from, 'created_from' FROM tickets WHERE created_from != ''
		UNION ALL
		SELECT id, supersedes, 'supersedes' FROM tickets WHERE supersedes != ''
		ORDER BY src COLLATE BINARY ASC, relation ASC, ref COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "list reference edges")
	}
	defer rows.Close()

	var edges []RefEdge
	for rows.Next() {
		var e RefEdge
		if err := rows.Scan(&e.From, &e.To, &e.Relation); err != nil {
			return nil, tkterr.Wrap(tkterr.CodeStorage, err, "scan reference edge")
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "iterate reference edges")
	}
	return edges, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTicket.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*ticket.Ticket, error) {
	var t ticket.Ticket
	var kind, status, priority string
	var createdAt, updatedAt, doneAt, resolvedAt, metaJSON string
	var resolved int

	err := row.Scan(
		&t.ID, &kind, &t.Name, &t.Notes, &t.AcceptCriteria, &t.Spec,
		&status, &priority,
		&t.Parent, &t.CreatedFrom, &t.Supersedes, &t.Author, &t.Branch,
		&createdAt, &updatedAt, &doneAt, &t.DoneRev, &resolved, &resolvedAt, &metaJSON,
		&t.Telemetry.CostUSD, &t.Telemetry.TokensIn, &t.Telemetry.TokensOut,
		&t.Telemetry.Iterations, &t.Telemetry.Retries, &t.Telemetry.Kills,
		&t.Telemetry.Model,
	)
	if err != nil {
		return nil, err
	}

	t.Kind = ticket.ParseKind(kind)
	t.Status = ticket.ParseStatus(status)
	t.Priority = ticket.ParsePriorityLenient(priority)
	t.CreatedAt = decodeTime(createdAt)
	t.UpdatedAt = decodeTime(updatedAt)
	if at := decodeTime(doneAt); !at.IsZero() {
		t.DoneAt = &at
	}
	if resolved != 0 {
		at := decodeTime(resolvedAt)
		t.ResolvedAt = &at
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &t.Meta); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// loadSets populates a ticket's dependency and label slices.
func (c *Cache) loadSets(ctx context.Context, t *ticket.Ticket) error {
	deps, err := c.readSet(ctx, "ticket_deps", "dep_id", t.ID)
	if err != nil {
		return err
	}
	t.Deps = deps

	labels, err := c.readSet(ctx, "ticket_labels", "label", t.ID)
	if err != nil {
		return err
	}
	t.Labels = labels
	return nil
}

func (c *Cache) readSet(ctx context.Context, table, column, ticketID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+column+" FROM "+table+" WHERE ticket_id = ? ORDER BY "+column+" COLLATE BINARY ASC",
		ticketID)
	if err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "read %s for %s", table, ticketID)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, tkterr.Wrap(tkterr.CodeStorage, err, "scan %s row", table)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, tkterr.Wrap(tkterr.CodeStorage, err, "iterate %s", table)
	}
	return values, nil
}

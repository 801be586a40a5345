package query

import (
	"context"
	"database/sql"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/ticket"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

// Result is the common output shape of every read surface. Exactly one of
// Tickets, Count, or IDs is meaningful, selected by Terminal.
type Result struct {
	Terminal Terminal         `json:"terminal"`
	Tickets  []*ticket.Ticket `json:"tickets,omitempty"`
	Count    int              `json:"count,omitempty"`
	IDs      []string         `json:"ids,omitempty"`
}

// Execute runs a compiled plan against the cache. List and projection
// terminals are bounded by limit and fail with OVERFLOW rather than
// truncating.
func Execute(ctx context.Context, c *cache.Cache, plan Plan, limit int) (Result, error) {
	where, params := Compile(plan)
	res := Result{Terminal: plan.Terminal}

	if plan.Terminal == TerminalCount {
		n, err := c.CountWhere(ctx, where, params)
		if err != nil {
			return Result{}, err
		}
		res.Count = n
		return res, nil
	}

	tickets, err := c.TicketsWhere(ctx, where, params, limit)
	if err != nil {
		return Result{}, err
	}

	if plan.Terminal == TerminalIDs {
		ids := make([]string, len(tickets))
		for i, t := range tickets {
			ids[i] = t.ID
		}
		res.IDs = ids
		return res, nil
	}

	res.Tickets = tickets
	return res, nil
}

// Raw is the untyped result of a passthrough query.
type Raw struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Passthrough forwards a query string verbatim to the relational substrate
// with no validation. This is the documented escape hatch for power users;
// the only contract retained is the result cap shared by every
// list-returning operation.
func Passthrough(ctx context.Context, c *cache.Cache, queryStr string, limit int) (Raw, error) {
	rows, err := c.Query(ctx, queryStr)
	if err != nil {
		return Raw{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Raw{}, tkterr.Wrap(tkterr.CodeStorage, err, "read result columns")
	}

	raw := Raw{Columns: cols}
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return Raw{}, tkterr.Wrap(tkterr.CodeStorage, err, "scan result row")
		}

		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		raw.Rows = append(raw.Rows, row)

		if limit > 0 && len(raw.Rows) > limit {
			return Raw{}, tkterr.New(tkterr.CodeOverflow,
				"result exceeds max of %d rows", limit)
		}
	}
	if err := rows.Err(); err != nil {
		return Raw{}, tkterr.Wrap(tkterr.CodeStorage, err, "iterate result rows")
	}
	return raw, nil
}

// Package query compiles read expressions into bounded plans against the
// cache.
//
// Three surfaces produce the same underlying result shape: pipeline
// expressions (`source | field=value | terminal`), legacy positional
// filters, and an unchecked passthrough that forwards a query string
// verbatim to the relational substrate. Pipeline and legacy plans are
// compiled to parameterized SQL with a deterministic ORDER BY and a hard
// result cap; by construction they cannot express joins, writes, or
// unbounded output.
package query

import (
	"fmt"
	"strings"

	"github.com/tkt-dev/tkt/internal/ticket"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

// Source selects which ticket kinds a plan reads.
type Source string

const (
	SourceTasks   Source = "tasks"
	SourceIssues  Source = "issues"
	SourceNotes   Source = "notes"
	SourceTickets Source = "tickets"
)

// Kind returns the kind a source restricts to, or "" for all kinds.
func (s Source) Kind() ticket.Kind {
	switch s {
	case SourceTasks:
		return ticket.KindTask
	case SourceIssues:
		return ticket.KindIssue
	case SourceNotes:
		return ticket.KindNote
	default:
		return ""
	}
}

// Terminal selects the output shape of a plan.
type Terminal string

const (
	TerminalList  Terminal = "list"
	TerminalCount Terminal = "count"
	TerminalIDs   Terminal = "ids"
)

// Filter is one field-equality predicate stage.
type Filter struct {
	Field string
	Value string
}

// Plan is a compiled, bounded read: a source, a conjunction of equality
// filters, and a terminal.
type Plan struct {
	Source   Source
	Filters  []Filter
	Terminal Terminal
}

// filterFields lists the fields a predicate stage may test.
var filterFields = map[string]bool{
	"status":   true,
	"label":    true,
	"spec":     true,
	"author":   true,
	"priority": true,
	"branch":   true,
	"parent":   true,
}

// ParsePipeline parses an expression of the form
// `source | field=value | ... | terminal`. The terminal stage is optional
// and defaults to list. Direct input is validated strictly.
func ParsePipeline(expr string) (Plan, error) {
	stages := strings.Split(expr, "|")
	for i := range stages {
		stages[i] = strings.TrimSpace(stages[i])
	}
	if len(stages) == 0 || stages[0] == "" {
		return Plan{}, tkterr.New(tkterr.CodeInvalidArg, "empty pipeline expression")
	}

	plan := Plan{Terminal: TerminalList}

	switch Source(stages[0]) {
	case SourceTasks, SourceIssues, SourceNotes, SourceTickets:
		plan.Source = Source(stages[0])
	default:
		return Plan{}, tkterr.New(tkterr.CodeInvalidArg,
			"unknown source %q: must be tasks, issues, notes, or tickets", stages[0])
	}

	for i, stage := range stages[1:] {
		last := i == len(stages)-2
		if stage == "" {
			return Plan{}, tkterr.New(tkterr.CodeInvalidArg, "empty pipeline stage")
		}

		if !strings.Contains(stage, "=") {
			if !last {
				return Plan{}, tkterr.New(tkterr.CodeInvalidArg,
					"terminal %q must be the final stage", stage)
			}
			switch Terminal(stage) {
			case TerminalList, TerminalCount, TerminalIDs:
				plan.Terminal = Terminal(stage)
			default:
				return Plan{}, tkterr.New(tkterr.CodeInvalidArg,
					"unknown terminal %q: must be list, count, or ids", stage)
			}
			continue
		}

		field, value, _ := strings.Cut(stage, "=")
		field = strings.TrimSpace(field)
		value = strings.TrimSpace(value)
		if !filterFields[field] {
			return Plan{}, tkterr.New(tkterr.CodeInvalidArg,
				"unknown filter field %q", field)
		}
		if value == "" {
			return Plan{}, tkterr.New(tkterr.CodeInvalidArg,
				"filter %q requires a value", field)
		}
		if field == "status" && !ticket.Status(value).IsValid() {
			return Plan{}, tkterr.New(tkterr.CodeValidation, "invalid status %q", value)
		}
		if field == "priority" {
			if _, err := ticket.ParsePriority(value); err != nil {
				return Plan{}, err
			}
		}
		plan.Filters = append(plan.Filters, Filter{Field: field, Value: value})
	}

	return plan, nil
}

// LegacyParams are the positional flags preserved for backward
// compatibility with the old filter surface.
type LegacyParams struct {
	Done     bool
	Label    string
	Spec     string
	Author   string
	Priority string
}

// FromLegacy maps legacy flags onto the same predicate representation
// pipeline mode uses. Tasks default to pending unless --done is given;
// issues and notes are unfiltered by status.
func FromLegacy(source Source, p LegacyParams) (Plan, error) {
	plan := Plan{Source: source, Terminal: TerminalList}

	if source == SourceTasks {
		status := string(ticket.StatusPending)
		if p.Done {
			status = string(ticket.StatusDone)
		}
		plan.Filters = append(plan.Filters, Filter{Field: "status", Value: status})
	} else if p.Done {
		plan.Filters = append(plan.Filters, Filter{Field: "status", Value: string(ticket.StatusDone)})
	}

	if p.Label != "" {
		plan.Filters = append(plan.Filters, Filter{Field: "label", Value: p.Label})
	}
	if p.Spec != "" {
		plan.Filters = append(plan.Filters, Filter{Field: "spec", Value: p.Spec})
	}
	if p.Author != "" {
		plan.Filters = append(plan.Filters, Filter{Field: "author", Value: p.Author})
	}
	if p.Priority != "" {
		prio, err := ticket.ParsePriority(p.Priority)
		if err != nil {
			return Plan{}, err
		}
		plan.Filters = append(plan.Filters, Filter{Field: "priority", Value: string(prio)})
	}
	return plan, nil
}

// Compile converts a plan to a WHERE fragment and parameters. Values are
// always parameterized, never interpolated.
func Compile(plan Plan) (where string, params []any) {
	var parts []string

	if kind := plan.Source.Kind(); kind != "" {
		parts = append(parts, "kind = ?")
		params = append(params, string(kind))
	}

	for _, f := range plan.Filters {
		switch f.Field {
		case "label":
			parts = append(parts,
				"EXISTS (SELECT 1 FROM ticket_labels l WHERE l.ticket_id = tickets.id AND l.label = ?)")
			params = append(params, f.Value)
		default:
			parts = append(parts, fmt.Sprintf("%s = ?", f.Field))
			params = append(params, f.Value)
		}
	}

	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), params
}

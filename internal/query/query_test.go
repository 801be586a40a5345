package query

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkt-dev/tkt/internal/ticket"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

func TestParsePipeline(t *testing.T) {
	tests := []struct {
		expr string
		want Plan
	}{
		{
			"tasks",
			Plan{Source: SourceTasks, Terminal: TerminalList},
		},
		{
			"tickets | count",
			Plan{Source: SourceTickets, Terminal: TerminalCount},
		},
		{
			"tasks | status=pending | ids",
			Plan{
				Source:   SourceTasks,
				Filters:  []Filter{{Field: "status", Value: "pending"}},
				Terminal: TerminalIDs,
			},
		},
		{
			"issues|label=infra|author=robin|list",
			Plan{
				Source: SourceIssues,
				Filters: []Filter{
					{Field: "label", Value: "infra"},
					{Field: "author", Value: "robin"},
				},
				Terminal: TerminalList,
			},
		},
		{
			"  notes  |  spec=s1  ",
			Plan{
				Source:   SourceNotes,
				Filters:  []Filter{{Field: "spec", Value: "s1"}},
				Terminal: TerminalList,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParsePipeline(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePipelineErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		code tkterr.Code
	}{
		{"empty", "", tkterr.CodeInvalidArg},
		{"unknown source", "widgets | count", tkterr.CodeInvalidArg},
		{"unknown terminal", "tasks | explode", tkterr.CodeInvalidArg},
		{"terminal not last", "tasks | count | status=done", tkterr.CodeInvalidArg},
		{"unknown field", "tasks | owner=robin", tkterr.CodeInvalidArg},
		{"empty value", "tasks | label=", tkterr.CodeInvalidArg},
		{"empty stage", "tasks | | count", tkterr.CodeInvalidArg},
		{"bad status value", "tasks | status=archived", tkterr.CodeValidation},
		{"bad priority value", "tasks | priority=urgent", tkterr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipeline(tt.expr)
			require.Error(t, err)
			assert.True(t, tkterr.Is(err, tt.code), "want %s, got %v", tt.code, err)
		})
	}
}

func TestFromLegacy(t *testing.T) {
	plan, err := FromLegacy(SourceTasks, LegacyParams{})
	require.NoError(t, err)
	// Tasks default to pending.
	require.Len(t, plan.Filters, 1)
	assert.Equal(t, Filter{Field: "status", Value: string(ticket.StatusPending)}, plan.Filters[0])

	plan, err = FromLegacy(SourceTasks, LegacyParams{Done: true, Label: "infra", Priority: "high"})
	require.NoError(t, err)
	assert.Equal(t, []Filter{
		{Field: "status", Value: string(ticket.StatusDone)},
		{Field: "label", Value: "infra"},
		{Field: "priority", Value: "high"},
	}, plan.Filters)

	// Issues are unfiltered by status unless --done is given.
	plan, err = FromLegacy(SourceIssues, LegacyParams{Author: "robin"})
	require.NoError(t, err)
	assert.Equal(t, []Filter{{Field: "author", Value: "robin"}}, plan.Filters)

	_, err = FromLegacy(SourceTasks, LegacyParams{Priority: "urgent"})
	require.Error(t, err)
	assert.True(t, tkterr.Is(err, tkterr.CodeValidation))
}

func TestCompileParameterizes(t *testing.T) {
	plan := Plan{
		Source: SourceTasks,
		Filters: []Filter{
			{Field: "status", Value: "pending"},
			{Field: "label", Value: "infra'; DROP TABLE tickets; --"},
		},
		Terminal: TerminalList,
	}
	where, params := Compile(plan)

	// Values never appear in the SQL text, only as parameters.
	assert.NotContains(t, where, "DROP TABLE")
	assert.NotContains(t, where, "pending")
	assert.Equal(t, []any{"task", "pending", "infra'; DROP TABLE tickets; --"}, params)
}

func TestCompileEmptyPlan(t *testing.T) {
	where, params := Compile(Plan{Source: SourceTickets, Terminal: TerminalList})
	assert.Equal(t, "1 = 1", where)
	assert.Nil(t, params)
}

func TestCompileGolden(t *testing.T) {
	plans := []Plan{
		{Source: SourceTickets, Terminal: TerminalList},
		{Source: SourceTasks, Terminal: TerminalCount},
		{Source: SourceTasks, Terminal: TerminalList,
			Filters: []Filter{{Field: "status", Value: "pending"}}},
		{Source: SourceIssues, Terminal: TerminalIDs,
			Filters: []Filter{{Field: "label", Value: "infra"}, {Field: "author", Value: "robin"}}},
		{Source: SourceNotes, Terminal: TerminalList,
			Filters: []Filter{{Field: "parent", Value: "tk-1"}, {Field: "branch", Value: "main"}}},
	}

	var buf bytes.Buffer
	for _, plan := range plans {
		where, params := Compile(plan)
		fmt.Fprintf(&buf, "source=%s terminal=%s\nwhere: %s\nparams: %v\n\n",
			plan.Source, plan.Terminal, where, params)
	}

	g := goldie.New(t)
	g.Assert(t, "compile", buf.Bytes())
}

package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkt-dev/tkt/internal/ticket"
)

func TestOpForKindRoundTrip(t *testing.T) {
	for _, k := range ticket.ValidKinds {
		assert.Equal(t, k, OpForKind(k).Kind())
	}
}

func TestNewTicketRecordSparse(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tk := &ticket.Ticket{
		ID:        "tk-1",
		Kind:      ticket.KindTask,
		Name:      "build the thing",
		Status:    ticket.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec := NewTicketRecord(tk)

	assert.Equal(t, OpTask, rec.Op)
	assert.Equal(t, "tk-1", rec.ID)
	require.NotNil(t, rec.Name)
	// Pending is the default; a creation record does not encode it.
	assert.Nil(t, rec.Status)
	assert.Nil(t, rec.Notes)
	assert.Nil(t, rec.Priority)
	assert.Nil(t, rec.Deps)
}

func TestNewPatchRecordCarriesOnlySetFields(t *testing.T) {
	status := ticket.StatusDone
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rev := "deadbeef"
	rec := NewPatchRecord(ticket.KindTask, "tk-1", &ticket.Patch{
		Status:  &status,
		DoneAt:  &at,
		DoneRev: &rev,
	})

	require.NotNil(t, rec.Status)
	assert.Equal(t, "done", *rec.Status)
	require.NotNil(t, rec.DoneAt)
	assert.Equal(t, "deadbeef", *rec.DoneRev)
	assert.Nil(t, rec.Name)
	assert.Nil(t, rec.Notes)
	assert.Nil(t, rec.Labels)
}

func TestToPatchLenientEnums(t *testing.T) {
	bogusStatus := "archived"
	bogusPrio := "urgent"
	rec := Record{Op: OpTask, ID: "tk-1", Status: &bogusStatus, Priority: &bogusPrio}

	p := rec.ToPatch()
	require.NotNil(t, p.Status)
	assert.Equal(t, ticket.StatusPending, *p.Status)
	require.NotNil(t, p.Priority)
	assert.Equal(t, ticket.PriorityNone, *p.Priority)
}

func TestToPatchAbsentFieldsStayNil(t *testing.T) {
	rec := Record{Op: OpTask, ID: "tk-1"}
	p := rec.ToPatch()
	assert.True(t, p.IsZero())
}

func TestToPatchTelemetry(t *testing.T) {
	cost := 1.25
	iters := 3
	rec := Record{Op: OpTask, ID: "tk-1", CostUSD: &cost, Iterations: &iters}

	p := rec.ToPatch()
	require.NotNil(t, p.Telemetry)
	require.NotNil(t, p.Telemetry.CostUSD)
	assert.Equal(t, 1.25, *p.Telemetry.CostUSD)
	require.NotNil(t, p.Telemetry.Iterations)
	assert.Equal(t, 3, *p.Telemetry.Iterations)
	// Fields the record does not carry stay nil so they never overwrite
	// stored metrics on replay.
	assert.Nil(t, p.Telemetry.TokensIn)
	assert.Nil(t, p.Telemetry.Model)
}

func TestPatchRecordCarriesExplicitClears(t *testing.T) {
	empty := ""
	none := ticket.PriorityNone
	rec := NewPatchRecord(ticket.KindTask, "tk-1", &ticket.Patch{
		Notes:    &empty,
		Priority: &none,
		Deps:     []string{},
		Labels:   []string{},
	})

	// The empty string must reach the wire; omitting it would make replay
	// keep the old value while the live cache cleared it.
	require.NotNil(t, rec.Notes)
	assert.Equal(t, "", *rec.Notes)
	require.NotNil(t, rec.Priority)
	assert.Equal(t, "", *rec.Priority)
	assert.True(t, rec.ClearDeps)
	assert.True(t, rec.ClearLabels)
	assert.Nil(t, rec.Deps)
	assert.Nil(t, rec.Labels)

	line, err := EncodeLine(rec)
	require.NoError(t, err)
	assert.Contains(t, string(line), `"notes":""`)
	assert.Contains(t, string(line), `"clear_deps":true`)

	p := rec.ToPatch()
	tk := &ticket.Ticket{ID: "tk-1", Kind: ticket.KindTask, Notes: "old",
		Priority: ticket.PriorityHigh, Deps: []string{"tk-2"}, Labels: []string{"infra"}}
	tk.Apply(p)
	assert.Empty(t, tk.Notes)
	assert.Equal(t, ticket.PriorityNone, tk.Priority)
	assert.Empty(t, tk.Deps)
	assert.Empty(t, tk.Labels)
}

func TestPatchRecordCarriesCreatedAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := NewPatchRecord(ticket.KindTask, "tk-1", &ticket.Patch{CreatedAt: &created})

	require.NotNil(t, rec.CreatedAt)
	p := rec.ToPatch()
	require.NotNil(t, p.CreatedAt)
	assert.Equal(t, created, *p.CreatedAt)
}

func TestTombstoneFromRecord(t *testing.T) {
	at := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	rev := "cafe"
	reason := "does not meet criteria"
	name := "the thing"

	rec := Record{Op: OpReject, ID: "tk-1", DoneRev: &rev, Reason: &reason, Name: &name, At: &at}
	ts := rec.Tombstone()

	assert.Equal(t, "tk-1", ts.TicketID)
	assert.False(t, ts.Accepted)
	assert.Equal(t, "cafe", ts.DoneRev)
	assert.Equal(t, "does not meet criteria", ts.Reason)
	assert.Equal(t, "the thing", ts.Name)
	assert.Equal(t, at, ts.At)

	accept := Record{Op: OpAccept, ID: "tk-2"}
	assert.True(t, accept.Tombstone().Accepted)
}

func TestTombstoneMissingTimestampIsZeroSentinel(t *testing.T) {
	rec := Record{Op: OpAccept, ID: "tk-1"}
	ts := rec.Tombstone()
	assert.True(t, ts.At.IsZero())
}

func TestFreeTextNFCNormalized(t *testing.T) {
	// "é" as 'e' + combining acute normalizes to the single codepoint form.
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	tk := &ticket.Ticket{ID: "tk-1", Kind: ticket.KindTask, Name: decomposed}
	rec := NewTicketRecord(tk)
	require.NotNil(t, rec.Name)
	assert.Equal(t, composed, *rec.Name)
}

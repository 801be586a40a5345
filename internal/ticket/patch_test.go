package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTicket() *Ticket {
	return &Ticket{
		ID:       "tk-1",
		Kind:     KindTask,
		Name:     "original",
		Notes:    "some notes",
		Status:   StatusPending,
		Priority: PriorityLow,
		Deps:     []string{"tk-2"},
		Labels:   []string{"infra"},
	}
}

func TestApplyAbsentFieldsUntouched(t *testing.T) {
	tk := baseTicket()
	status := StatusDone
	tk.Apply(&Patch{Status: &status})

	assert.Equal(t, StatusDone, tk.Status)
	assert.Equal(t, "original", tk.Name)
	assert.Equal(t, "some notes", tk.Notes)
	assert.Equal(t, []string{"tk-2"}, tk.Deps)
	assert.Equal(t, []string{"infra"}, tk.Labels)
	assert.Equal(t, PriorityLow, tk.Priority)
}

func TestApplyNilVsEmptySlice(t *testing.T) {
	// Nil slice: field untouched.
	tk := baseTicket()
	tk.Apply(&Patch{Deps: nil, Labels: nil})
	assert.Equal(t, []string{"tk-2"}, tk.Deps)
	assert.Equal(t, []string{"infra"}, tk.Labels)

	// Empty non-nil slice: field explicitly cleared.
	tk = baseTicket()
	tk.Apply(&Patch{Deps: []string{}, Labels: []string{}})
	assert.Empty(t, tk.Deps)
	assert.Empty(t, tk.Labels)
}

func TestApplyClearDone(t *testing.T) {
	tk := baseTicket()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rev := "abc123"
	tk.Apply(&Patch{DoneAt: &at, DoneRev: &rev})
	require.NotNil(t, tk.DoneAt)
	require.Equal(t, "abc123", tk.DoneRev)

	tk.Apply(&Patch{ClearDone: true})
	assert.Nil(t, tk.DoneAt)
	assert.Empty(t, tk.DoneRev)
}

func TestApplyMetaMerges(t *testing.T) {
	tk := baseTicket()
	tk.Apply(&Patch{Meta: map[string]string{"a": "1", "b": "2"}})
	tk.Apply(&Patch{Meta: map[string]string{"b": "3", "c": "4"}})

	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, tk.Meta)
}

func TestApplySequenceOrderMatters(t *testing.T) {
	tk := baseTicket()
	n1, n2 := "first", "second"
	tk.Apply(&Patch{Name: &n1})
	tk.Apply(&Patch{Name: &n2})
	assert.Equal(t, "second", tk.Name)
}

func TestApplyCreatedAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tk := baseTicket()
	tk.Apply(&Patch{CreatedAt: &created})
	assert.Equal(t, created, tk.CreatedAt)

	// Absent timestamp leaves the stored one alone.
	name := "renamed"
	tk.Apply(&Patch{Name: &name})
	assert.Equal(t, created, tk.CreatedAt)
}

func TestApplyTelemetryMergesPerField(t *testing.T) {
	tk := baseTicket()
	cost := 0.75
	tk.Apply(&Patch{Telemetry: &TelemetryPatch{CostUSD: &cost}})

	tokens := int64(1200)
	tk.Apply(&Patch{Telemetry: &TelemetryPatch{TokensIn: &tokens}})

	// The tokens-only patch must not zero the earlier cost.
	assert.Equal(t, 0.75, tk.Telemetry.CostUSD)
	assert.Equal(t, int64(1200), tk.Telemetry.TokensIn)
}

func TestTelemetryPatchIsZero(t *testing.T) {
	assert.True(t, (&TelemetryPatch{}).IsZero())
	kills := 1
	assert.False(t, (&TelemetryPatch{Kills: &kills}).IsZero())
}

func TestPatchIsZero(t *testing.T) {
	assert.True(t, (&Patch{}).IsZero())

	name := "x"
	assert.False(t, (&Patch{Name: &name}).IsZero())
	assert.False(t, (&Patch{ClearDone: true}).IsZero())
	assert.False(t, (&Patch{Deps: []string{}}).IsZero())
}

func TestCloneIsDeep(t *testing.T) {
	at := time.Now().UTC()
	tk := baseTicket()
	tk.DoneAt = &at
	tk.Meta = map[string]string{"k": "v"}

	c := tk.Clone()
	c.Deps[0] = "changed"
	c.Meta["k"] = "changed"
	*c.DoneAt = at.Add(time.Hour)

	assert.Equal(t, "tk-2", tk.Deps[0])
	assert.Equal(t, "v", tk.Meta["k"])
	assert.Equal(t, at, *tk.DoneAt)
}

// Package eventlog reads and writes the append-only ticket event log.
//
// The log is the sole source of truth: one single-line JSON record per
// event, identified by the "op" discriminator field. Ticket records carry
// only the fields an event actually sets (sparse encoding); absent fields
// mean "not provided", never "cleared". The cache is rebuilt by replaying
// this log from the start, so records must encode deterministically.
package eventlog

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tkt-dev/tkt/internal/ticket"
)

// Op discriminates record kinds. Ticket records use the ticket kind
// directly; lifecycle conclusions get their own ops.
type Op string

const (
	OpTask   Op = "task"
	OpIssue  Op = "issue"
	OpNote   Op = "note"
	OpAccept Op = "accept"
	OpReject Op = "reject"
	OpDelete Op = "delete"
)

// IsTicket reports whether the op is a ticket upsert (task/issue/note).
func (o Op) IsTicket() bool {
	return o == OpTask || o == OpIssue || o == OpNote
}

// IsValid reports whether the op is known.
func (o Op) IsValid() bool {
	switch o {
	case OpTask, OpIssue, OpNote, OpAccept, OpReject, OpDelete:
		return true
	}
	return false
}

// OpForKind returns the ticket-record op for a kind.
func OpForKind(k ticket.Kind) Op {
	switch k {
	case ticket.KindIssue:
		return OpIssue
	case ticket.KindNote:
		return OpNote
	default:
		return OpTask
	}
}

// Kind returns the ticket kind for a ticket-record op.
func (o Op) Kind() ticket.Kind {
	switch o {
	case OpIssue:
		return ticket.KindIssue
	case OpNote:
		return ticket.KindNote
	default:
		return ticket.KindTask
	}
}

// Record is one event-log line. Pointer fields distinguish "absent" from
// "set to zero" so replay can apply partial patches; zero-valued fields are
// omitted when writing.
//
// Ticket records (op task/issue/note) may carry any subset of the ticket
// fields. Accept/reject records carry DoneRev, Reason, a Name echo, and an
// optional At timestamp. Delete records carry only the id.
type Record struct {
	Op Op     `json:"op"`
	ID string `json:"id"`

	// Ticket fields.
	Name           *string           `json:"name,omitempty"`
	Status         *string           `json:"status,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	Spec           *string           `json:"spec,omitempty"`
	AcceptCriteria *string           `json:"accept_criteria,omitempty"`
	Priority       *string           `json:"priority,omitempty"`
	Deps           []string          `json:"deps,omitempty"`
	Labels         []string          `json:"labels,omitempty"`
	Parent         *string           `json:"parent,omitempty"`
	CreatedFrom    *string           `json:"created_from,omitempty"`
	Supersedes     *string           `json:"supersedes,omitempty"`
	Branch         *string           `json:"branch,omitempty"`
	Author         *string           `json:"author,omitempty"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
	DoneAt         *time.Time        `json:"done_at,omitempty"`
	DoneRev        *string           `json:"done_rev,omitempty"`
	ClearDone      bool              `json:"clear_done,omitempty"`
	ClearDeps      bool              `json:"clear_deps,omitempty"`
	ClearLabels    bool              `json:"clear_labels,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`

	// Telemetry fields (optional, attached post hoc).
	CostUSD    *float64 `json:"cost_usd,omitempty"`
	TokensIn   *int64   `json:"tokens_in,omitempty"`
	TokensOut  *int64   `json:"tokens_out,omitempty"`
	Iterations *int     `json:"iterations,omitempty"`
	Retries    *int     `json:"retries,omitempty"`
	Kills      *int     `json:"kills,omitempty"`
	Model      *string  `json:"model,omitempty"`

	// Accept/reject fields.
	Reason *string    `json:"reason,omitempty"`
	At     *time.Time `json:"at,omitempty"`
}

// strp returns a pointer for non-empty strings, nil otherwise.
// Empty values are "not provided" on the wire, so they are never encoded.
func strp(s string) *string {
	if s == "" {
		return nil
	}
	n := norm.NFC.String(s)
	return &n
}

// strval always returns a pointer, empty string included. Patch records use
// it so that an explicit clear reaches the wire: absent means untouched,
// "" means cleared, and replay reproduces exactly what the live cache did.
func strval(s string) *string {
	n := norm.NFC.String(s)
	return &n
}

func timep(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// NewTicketRecord builds a full ticket record from a ticket, used for
// creation events. Free text is NFC-normalized at the encoding boundary.
func NewTicketRecord(t *ticket.Ticket) Record {
	rec := Record{
		Op:             OpForKind(t.Kind),
		ID:             t.ID,
		Name:           strp(t.Name),
		Notes:          strp(t.Notes),
		Spec:           strp(t.Spec),
		AcceptCriteria: strp(t.AcceptCriteria),
		Parent:         strp(t.Parent),
		CreatedFrom:    strp(t.CreatedFrom),
		Supersedes:     strp(t.Supersedes),
		Branch:         strp(t.Branch),
		Author:         strp(t.Author),
		CreatedAt:      timep(t.CreatedAt),
		UpdatedAt:      timep(t.UpdatedAt),
		DoneRev:        strp(t.DoneRev),
	}
	if t.Status != "" && t.Status != ticket.StatusPending {
		s := string(t.Status)
		rec.Status = &s
	}
	if t.Priority != ticket.PriorityNone {
		p := string(t.Priority)
		rec.Priority = &p
	}
	if len(t.Deps) > 0 {
		rec.Deps = append([]string(nil), t.Deps...)
	}
	if len(t.Labels) > 0 {
		rec.Labels = append([]string(nil), t.Labels...)
	}
	if len(t.Meta) > 0 {
		rec.Meta = t.Meta
	}
	if t.DoneAt != nil {
		rec.DoneAt = timep(*t.DoneAt)
	}
	if !t.Telemetry.IsZero() {
		rec.setTelemetry(t.Telemetry)
	}
	return rec
}

// NewPatchRecord builds a sparse ticket record carrying only the fields the
// patch sets. Kind selects the op; the record merges into the stored ticket
// on replay.
func NewPatchRecord(kind ticket.Kind, id string, p *ticket.Patch) Record {
	rec := Record{Op: OpForKind(kind), ID: id}
	if p.Name != nil {
		rec.Name = strval(*p.Name)
	}
	if p.Notes != nil {
		rec.Notes = strval(*p.Notes)
	}
	if p.Spec != nil {
		rec.Spec = strval(*p.Spec)
	}
	if p.AcceptCriteria != nil {
		rec.AcceptCriteria = strval(*p.AcceptCriteria)
	}
	if p.Status != nil {
		s := string(*p.Status)
		rec.Status = &s
	}
	if p.Priority != nil {
		pr := string(*p.Priority)
		rec.Priority = &pr
	}
	// Empty non-nil sets mean "clear"; omitempty would drop the empty
	// slice from the wire, so clears travel as explicit markers.
	if p.Deps != nil {
		if len(p.Deps) == 0 {
			rec.ClearDeps = true
		} else {
			rec.Deps = append([]string(nil), p.Deps...)
		}
	}
	if p.Labels != nil {
		if len(p.Labels) == 0 {
			rec.ClearLabels = true
		} else {
			rec.Labels = append([]string(nil), p.Labels...)
		}
	}
	if p.Parent != nil {
		rec.Parent = strval(*p.Parent)
	}
	if p.CreatedFrom != nil {
		rec.CreatedFrom = strval(*p.CreatedFrom)
	}
	if p.Supersedes != nil {
		rec.Supersedes = strval(*p.Supersedes)
	}
	if p.Author != nil {
		rec.Author = strval(*p.Author)
	}
	if p.Branch != nil {
		rec.Branch = strval(*p.Branch)
	}
	if p.DoneAt != nil {
		rec.DoneAt = timep(*p.DoneAt)
	}
	if p.DoneRev != nil {
		rec.DoneRev = strval(*p.DoneRev)
	}
	if p.ClearDone {
		rec.ClearDone = true
	}
	if p.Meta != nil {
		rec.Meta = p.Meta
	}
	if p.Telemetry != nil {
		rec.setTelemetryPatch(p.Telemetry)
	}
	if p.CreatedAt != nil {
		rec.CreatedAt = timep(*p.CreatedAt)
	}
	if p.UpdatedAt != nil {
		rec.UpdatedAt = timep(*p.UpdatedAt)
	}
	return rec
}

func (r *Record) setTelemetry(tel ticket.Telemetry) {
	if tel.CostUSD != 0 {
		r.CostUSD = &tel.CostUSD
	}
	if tel.TokensIn != 0 {
		r.TokensIn = &tel.TokensIn
	}
	if tel.TokensOut != 0 {
		r.TokensOut = &tel.TokensOut
	}
	if tel.Iterations != 0 {
		r.Iterations = &tel.Iterations
	}
	if tel.Retries != 0 {
		r.Retries = &tel.Retries
	}
	if tel.Kills != 0 {
		r.Kills = &tel.Kills
	}
	if tel.Model != "" {
		m := norm.NFC.String(tel.Model)
		r.Model = &m
	}
}

// setTelemetryPatch copies the patch's per-field pointers onto the record,
// so a record carrying only tokens_in patches only tokens_in on replay.
func (r *Record) setTelemetryPatch(p *ticket.TelemetryPatch) {
	r.CostUSD = p.CostUSD
	r.TokensIn = p.TokensIn
	r.TokensOut = p.TokensOut
	r.Iterations = p.Iterations
	r.Retries = p.Retries
	r.Kills = p.Kills
	if p.Model != nil {
		m := norm.NFC.String(*p.Model)
		r.Model = &m
	}
}

// NewAcceptRecord builds an accept record for a done ticket.
func NewAcceptRecord(t *ticket.Ticket, at time.Time) Record {
	return Record{
		Op:      OpAccept,
		ID:      t.ID,
		DoneRev: strp(t.DoneRev),
		Name:    strp(t.Name),
		At:      timep(at),
	}
}

// NewRejectRecord builds a reject record with the caller's reason.
func NewRejectRecord(t *ticket.Ticket, reason string, at time.Time) Record {
	return Record{
		Op:      OpReject,
		ID:      t.ID,
		DoneRev: strp(t.DoneRev),
		Reason:  strp(reason),
		Name:    strp(t.Name),
		At:      timep(at),
	}
}

// NewDeleteRecord builds a delete record. Delete records carry only the id.
func NewDeleteRecord(id string) Record {
	return Record{Op: OpDelete, ID: id}
}

// ToPatch converts a ticket record into the patch it applies on replay.
// Status and priority codes are parsed leniently: unknown codes from newer
// or foreign writers fall back to the enum default instead of failing.
func (r *Record) ToPatch() *ticket.Patch {
	p := &ticket.Patch{
		Name:           r.Name,
		Notes:          r.Notes,
		Spec:           r.Spec,
		AcceptCriteria: r.AcceptCriteria,
		Deps:           r.Deps,
		Labels:         r.Labels,
		Parent:         r.Parent,
		CreatedFrom:    r.CreatedFrom,
		Supersedes:     r.Supersedes,
		Author:         r.Author,
		Branch:         r.Branch,
		DoneAt:         r.DoneAt,
		DoneRev:        r.DoneRev,
		ClearDone:      r.ClearDone,
		Meta:           r.Meta,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ClearDeps {
		p.Deps = []string{}
	}
	if r.ClearLabels {
		p.Labels = []string{}
	}
	if r.Status != nil {
		s := ticket.ParseStatus(*r.Status)
		p.Status = &s
	}
	if r.Priority != nil {
		pr := ticket.ParsePriorityLenient(*r.Priority)
		p.Priority = &pr
	}
	if tel := r.telemetryPatch(); !tel.IsZero() {
		p.Telemetry = tel
	}
	return p
}

func (r *Record) telemetryPatch() *ticket.TelemetryPatch {
	return &ticket.TelemetryPatch{
		CostUSD:    r.CostUSD,
		TokensIn:   r.TokensIn,
		TokensOut:  r.TokensOut,
		Iterations: r.Iterations,
		Retries:    r.Retries,
		Kills:      r.Kills,
		Model:      r.Model,
	}
}

// Tombstone builds the tombstone an accept/reject record produces.
// A record without an explicit timestamp yields the zero time, an explicit
// "unknown" sentinel, so replaying the same log twice stays byte-identical.
func (r *Record) Tombstone() ticket.Tombstone {
	ts := ticket.Tombstone{
		TicketID: r.ID,
		Accepted: r.Op == OpAccept,
	}
	if r.DoneRev != nil {
		ts.DoneRev = *r.DoneRev
	}
	if r.Reason != nil {
		ts.Reason = *r.Reason
	}
	if r.Name != nil {
		ts.Name = *r.Name
	}
	if r.At != nil {
		ts.At = *r.At
	}
	return ts
}

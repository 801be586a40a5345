// Package ticket defines the core domain model: tickets, tombstones, and
// the closed enums that appear as short codes on the wire.
package ticket

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tkt-dev/tkt/internal/tkterr"
)

// Kind tags a ticket as a task, issue, or note.
// The kind also selects the record discriminator in the event log.
type Kind string

const (
	KindTask  Kind = "task"
	KindIssue Kind = "issue"
	KindNote  Kind = "note"
)

// ValidKinds lists every kind in canonical order.
var ValidKinds = []Kind{KindTask, KindIssue, KindNote}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindTask, KindIssue, KindNote:
		return true
	}
	return false
}

// IDPrefix returns the identifier prefix for the kind.
func (k Kind) IDPrefix() string {
	switch k {
	case KindIssue:
		return "is"
	case KindNote:
		return "nt"
	default:
		return "tk"
	}
}

// ParseKind parses a wire code into a Kind. Unknown codes fall back to
// KindTask so logs written by newer versions still replay.
func ParseKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsValid() {
		return k
	}
	return KindTask
}

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusPending  Status = "pending"
	StatusDone     Status = "done"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusDeleted  Status = "deleted"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDone, StatusAccepted, StatusRejected, StatusDeleted:
		return true
	}
	return false
}

// IsLive reports whether a ticket with this status appears in live views.
// Accepted and deleted tickets are excluded; rejected tickets have already
// been reset to pending by the time they are stored, so rejected here only
// occurs transiently in replayed history.
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusDone
}

// ParseStatus parses a wire code into a Status. Unknown codes fall back to
// StatusPending to preserve forward compatibility of the log format.
func ParseStatus(s string) Status {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.IsValid() {
		return st
	}
	return StatusPending
}

// Priority orders tickets for selection. The zero value is PriorityNone.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority validates a priority code supplied as direct input.
// Unlike ParseStatus, direct input is strict: unknown codes are an error.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return PriorityNone, tkterr.New(tkterr.CodeValidation,
			"invalid priority %q: must be one of low, medium, high, or empty", s)
	}
	return p, nil
}

// ParsePriorityLenient parses a priority code from replayed history.
// Unknown codes fall back to PriorityNone.
func ParsePriorityLenient(s string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.IsValid() {
		return p
	}
	return PriorityNone
}

// Telemetry holds optional post-hoc execution metrics attached to a ticket.
type Telemetry struct {
	CostUSD    float64 `json:"cost_usd,omitempty"`
	TokensIn   int64   `json:"tokens_in,omitempty"`
	TokensOut  int64   `json:"tokens_out,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
	Retries    int     `json:"retries,omitempty"`
	Kills      int     `json:"kills,omitempty"`
	Model      string  `json:"model,omitempty"`
}

// IsZero reports whether no telemetry has been recorded.
func (t Telemetry) IsZero() bool {
	return t == Telemetry{}
}

// Ticket is a task, issue, or note with identity, status, and relationships.
//
// Relationships are soft: they are identifiers, not foreign keys. Deps may
// only reference tickets of kind task; Parent, CreatedFrom, and Supersedes
// may reference any kind. The Reference Resolver classifies them after the
// fact instead of the storage layer enforcing them.
type Ticket struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	Name           string `json:"name"`
	Notes          string `json:"notes,omitempty"`
	AcceptCriteria string `json:"accept_criteria,omitempty"`
	Spec           string `json:"spec,omitempty"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority,omitempty"`

	Deps        []string `json:"deps,omitempty"`
	Parent      string   `json:"parent,omitempty"`
	CreatedFrom string   `json:"created_from,omitempty"`
	Supersedes  string   `json:"supersedes,omitempty"`
	Labels      []string `json:"labels,omitempty"`

	Author string `json:"author,omitempty"`
	// Branch scopes mutation to sessions on the same branch.
	// Empty means globally mutable.
	Branch string `json:"branch,omitempty"`

	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
	DoneRev   string     `json:"done_rev,omitempty"`
	// ResolvedAt records when an accept/reject concluded the ticket.
	// Nil means unconcluded; a zero time means concluded at an unknown
	// time (the conclusion record carried no timestamp).
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Meta      map[string]string `json:"meta,omitempty"`
	Telemetry Telemetry         `json:"telemetry,omitempty"`
}

// IsLive reports whether the ticket appears in live views.
func (t *Ticket) IsLive() bool {
	return t.Status.IsLive()
}

// Validate checks the ticket as direct input (strict).
// Replayed history is never validated through this path.
func (t *Ticket) Validate() error {
	if t.ID == "" {
		return tkterr.New(tkterr.CodeInvalidArg, "ticket id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return tkterr.NewID(tkterr.CodeInvalidArg, t.ID, "ticket name is required")
	}
	if !t.Kind.IsValid() {
		return tkterr.NewID(tkterr.CodeValidation, t.ID, "invalid kind %q", t.Kind)
	}
	if !t.Status.IsValid() {
		return tkterr.NewID(tkterr.CodeValidation, t.ID, "invalid status %q", t.Status)
	}
	if !t.Priority.IsValid() {
		return tkterr.NewID(tkterr.CodeValidation, t.ID, "invalid priority %q", t.Priority)
	}
	return nil
}

// NewID generates a fresh, never-reused identifier for the kind.
// The uuid suffix is truncated to keep ids readable in terminal output
// while remaining collision-safe at this scale.
func NewID(kind Kind) string {
	u := uuid.New().String()
	return fmt.Sprintf("%s-%s", kind.IDPrefix(), u[:8])
}

// Tombstone is the immutable audit record created when a ticket is
// accepted or rejected. Exactly one tombstone exists per accept/reject
// transition; tombstones are never mutated afterward.
type Tombstone struct {
	TicketID string    `json:"ticket_id"`
	DoneRev  string    `json:"done_rev,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Accepted bool      `json:"accepted"`
	Name     string    `json:"name,omitempty"`
	At       time.Time `json:"at,omitempty"`
}

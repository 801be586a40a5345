package ticket

import "time"

// Patch carries a partial update to a ticket. Nil pointer fields mean
// "not provided" and must not overwrite stored values; this is the central
// replay invariant. Slices and maps follow the same rule: nil means absent,
// while an empty non-nil slice explicitly clears the field.
type Patch struct {
	Name           *string
	Notes          *string
	AcceptCriteria *string
	Spec           *string
	Status         *Status
	Priority       *Priority
	Deps           []string
	Parent         *string
	CreatedFrom    *string
	Supersedes     *string
	Labels         []string
	Author         *string
	Branch         *string
	DoneAt         *time.Time
	ClearDone      bool // reset DoneAt/DoneRev (reject path)
	DoneRev        *string
	Meta           map[string]string
	Telemetry      *TelemetryPatch
	CreatedAt      *time.Time
	UpdatedAt      *time.Time
}

// IsZero reports whether the patch carries no fields at all.
func (p *Patch) IsZero() bool {
	return p.Name == nil && p.Notes == nil && p.AcceptCriteria == nil &&
		p.Spec == nil && p.Status == nil && p.Priority == nil &&
		p.Deps == nil && p.Parent == nil && p.CreatedFrom == nil &&
		p.Supersedes == nil && p.Labels == nil && p.Author == nil &&
		p.Branch == nil && p.DoneAt == nil && !p.ClearDone &&
		p.DoneRev == nil && p.Meta == nil && p.Telemetry == nil &&
		p.CreatedAt == nil && p.UpdatedAt == nil
}

// Apply merges the patch into the ticket. Only fields the patch carries
// overwrite the stored ticket: a later record that sets only Status must
// not clear Notes, Deps, or anything else.
func (t *Ticket) Apply(p *Patch) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.AcceptCriteria != nil {
		t.AcceptCriteria = *p.AcceptCriteria
	}
	if p.Spec != nil {
		t.Spec = *p.Spec
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Deps != nil {
		t.Deps = append([]string(nil), p.Deps...)
	}
	if p.Parent != nil {
		t.Parent = *p.Parent
	}
	if p.CreatedFrom != nil {
		t.CreatedFrom = *p.CreatedFrom
	}
	if p.Supersedes != nil {
		t.Supersedes = *p.Supersedes
	}
	if p.Labels != nil {
		t.Labels = append([]string(nil), p.Labels...)
	}
	if p.Author != nil {
		t.Author = *p.Author
	}
	if p.Branch != nil {
		t.Branch = *p.Branch
	}
	if p.DoneAt != nil {
		at := *p.DoneAt
		t.DoneAt = &at
	}
	if p.DoneRev != nil {
		t.DoneRev = *p.DoneRev
	}
	if p.ClearDone {
		t.DoneAt = nil
		t.DoneRev = ""
	}
	if p.Meta != nil {
		if t.Meta == nil {
			t.Meta = make(map[string]string, len(p.Meta))
		}
		for k, v := range p.Meta {
			t.Meta[k] = v
		}
	}
	if p.Telemetry != nil {
		p.Telemetry.applyTo(&t.Telemetry)
	}
	if p.CreatedAt != nil {
		t.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// TelemetryPatch carries a partial telemetry update. Nil fields leave the
// stored metric untouched, so a record that reports only tokens never
// zeroes a previously recorded cost.
type TelemetryPatch struct {
	CostUSD    *float64
	TokensIn   *int64
	TokensOut  *int64
	Iterations *int
	Retries    *int
	Kills      *int
	Model      *string
}

// IsZero reports whether the telemetry patch carries no fields.
func (p *TelemetryPatch) IsZero() bool {
	return p.CostUSD == nil && p.TokensIn == nil && p.TokensOut == nil &&
		p.Iterations == nil && p.Retries == nil && p.Kills == nil &&
		p.Model == nil
}

func (p *TelemetryPatch) applyTo(t *Telemetry) {
	if p.CostUSD != nil {
		t.CostUSD = *p.CostUSD
	}
	if p.TokensIn != nil {
		t.TokensIn = *p.TokensIn
	}
	if p.TokensOut != nil {
		t.TokensOut = *p.TokensOut
	}
	if p.Iterations != nil {
		t.Iterations = *p.Iterations
	}
	if p.Retries != nil {
		t.Retries = *p.Retries
	}
	if p.Kills != nil {
		t.Kills = *p.Kills
	}
	if p.Model != nil {
		t.Model = *p.Model
	}
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.Deps = append([]string(nil), t.Deps...)
	c.Labels = append([]string(nil), t.Labels...)
	if t.DoneAt != nil {
		at := *t.DoneAt
		c.DoneAt = &at
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		c.ResolvedAt = &at
	}
	if t.Meta != nil {
		c.Meta = make(map[string]string, len(t.Meta))
		for k, v := range t.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

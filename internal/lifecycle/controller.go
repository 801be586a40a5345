// Package lifecycle exposes the mutating ticket operations.
//
// Every operation follows the same shape: ensure the cache is fresh,
// validate preconditions against it, append the event record(s) to the
// log, then update the cache and advance its revision marker as one
// transaction. Validation is strict for direct input, in deliberate
// contrast to the lenient replay of historical records.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/tkt-dev/tkt/internal/cache"
	"github.com/tkt-dev/tkt/internal/eventlog"
	"github.com/tkt-dev/tkt/internal/session"
	"github.com/tkt-dev/tkt/internal/ticket"
	"github.com/tkt-dev/tkt/internal/tkterr"
)

// Controller validates and applies lifecycle operations.
type Controller struct {
	s   *session.Session
	now func() time.Time
}

// New creates a Controller bound to a session.
func New(s *session.Session) *Controller {
	return &Controller{s: s, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the wall clock, for tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// commit appends records to the log, then applies the cache update and the
// revision-marker advance in a single cache transaction. The log append and
// cache update form the atomic pair every mutation performs.
func (c *Controller) commit(ctx context.Context, recs []eventlog.Record, apply func(tx *cache.Tx) error) error {
	if err := c.s.Log.Append(recs...); err != nil {
		return err
	}
	return c.s.Cache.Mutate(ctx, func(tx *cache.Tx) error {
		if err := apply(tx); err != nil {
			return err
		}
		return c.s.AdvanceRevision(ctx, tx)
	})
}

// guardBranch enforces the uniform branch scoping rule: an operation on a
// branch-tagged ticket is rejected when the session's branch differs.
// Untagged tickets are globally mutable.
func (c *Controller) guardBranch(t *ticket.Ticket) error {
	if t.Branch != "" && t.Branch != c.s.Branch {
		return tkterr.NewID(tkterr.CodeState, t.ID,
			"ticket is scoped to branch %q; current branch is %q", t.Branch, c.s.Branch)
	}
	return nil
}

// AddParams carries the fields for a new ticket.
type AddParams struct {
	Kind           ticket.Kind
	Name           string
	Notes          string
	AcceptCriteria string
	Spec           string
	Priority       string
	Deps           []string
	Labels         []string
	Parent         string
	CreatedFrom    string
	Supersedes     string
	Branch         string
	Author         string
	Meta           map[string]string
}

// Add validates and creates a new ticket, returning it along with any
// non-fatal warnings (e.g. a task missing acceptance criteria).
func (c *Controller) Add(ctx context.Context, p AddParams) (*ticket.Ticket, []string, error) {
	if err := c.s.EnsureFresh(ctx); err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(p.Name) == "" {
		return nil, nil, tkterr.New(tkterr.CodeInvalidArg, "ticket name is required")
	}
	kind := p.Kind
	if kind == "" {
		kind = ticket.KindTask
	}
	if !kind.IsValid() {
		return nil, nil, tkterr.New(tkterr.CodeValidation, "invalid kind %q", kind)
	}
	prio, err := ticket.ParsePriority(p.Priority)
	if err != nil {
		return nil, nil, err
	}

	if len(p.Deps) > c.s.Limits.MaxDeps {
		return nil, nil, tkterr.New(tkterr.CodeOverflow,
			"too many dependencies: %d exceeds max of %d", len(p.Deps), c.s.Limits.MaxDeps)
	}
	if len(p.Labels) > c.s.Limits.MaxLabels {
		return nil, nil, tkterr.New(tkterr.CodeOverflow,
			"too many labels: %d exceeds max of %d", len(p.Labels), c.s.Limits.MaxLabels)
	}

	if err := c.checkDeps(ctx, p.Deps); err != nil {
		return nil, nil, err
	}
	for _, ref := range []struct{ name, id string }{
		{"parent", p.Parent},
		{"created-from", p.CreatedFrom},
		{"supersedes", p.Supersedes},
	} {
		if ref.id == "" {
			continue
		}
		if _, err := c.s.Cache.GetTicket(ctx, ref.id); err != nil {
			if tkterr.Is(err, tkterr.CodeNotFound) {
				return nil, nil, tkterr.NewID(tkterr.CodeNotFound, ref.id,
					"%s reference does not exist", ref.name)
			}
			return nil, nil, err
		}
	}

	var warnings []string
	if kind == ticket.KindTask && strings.TrimSpace(p.AcceptCriteria) == "" {
		warnings = append(warnings, "task has no acceptance criteria")
	}

	now := c.now()
	author := p.Author
	if author == "" {
		author = c.s.Actor
	}
	t := &ticket.Ticket{
		ID:             ticket.NewID(kind),
		Kind:           kind,
		Name:           p.Name,
		Notes:          p.Notes,
		AcceptCriteria: p.AcceptCriteria,
		Spec:           p.Spec,
		Status:         ticket.StatusPending,
		Priority:       prio,
		Deps:           append([]string(nil), p.Deps...),
		Labels:         dedupe(p.Labels),
		Parent:         p.Parent,
		CreatedFrom:    p.CreatedFrom,
		Supersedes:     p.Supersedes,
		Author:         author,
		Branch:         p.Branch,
		CreatedAt:      now,
		UpdatedAt:      now,
		Meta:           p.Meta,
	}

	rec := eventlog.NewTicketRecord(t)
	err = c.commit(ctx, []eventlog.Record{rec}, func(tx *cache.Tx) error {
		return tx.PutTicket(t)
	})
	if err != nil {
		return nil, nil, err
	}
	return t, warnings, nil
}

// checkDeps validates a dependency list: no duplicates within the call,
// every id exists, and every target is of kind task.
func (c *Controller) checkDeps(ctx context.Context, deps []string) error {
	seen := make(map[string]bool, len(deps))
	for _, dep := range deps {
		if seen[dep] {
			return tkterr.NewID(tkterr.CodeDuplicate, dep, "duplicate dependency")
		}
		seen[dep] = true

		target, err := c.s.Cache.GetTicket(ctx, dep)
		if err != nil {
			if tkterr.Is(err, tkterr.CodeNotFound) {
				return tkterr.NewID(tkterr.CodeNotFound, dep, "dependency does not exist")
			}
			return err
		}
		if target.Kind != ticket.KindTask {
			return tkterr.NewID(tkterr.CodeValidation, dep,
				"dependencies may only reference tasks, not %ss", target.Kind)
		}
	}
	return nil
}

// Done marks a task done, stamping completion time and the log revision.
// With an empty id, the first pending task is selected.
func (c *Controller) Done(ctx context.Context, id string) (*ticket.Ticket, error) {
	if err := c.s.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	var t *ticket.Ticket
	var err error
	if id == "" {
		t, err = c.s.Cache.FirstTask(ctx, ticket.StatusPending)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, tkterr.New(tkterr.CodeNotFound, "no pending tasks")
		}
	} else {
		t, err = c.s.Cache.GetTicket(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	if t.Kind != ticket.KindTask {
		return nil, tkterr.NewID(tkterr.CodeValidation, t.ID, "only tasks can be marked done")
	}
	if t.Status != ticket.StatusPending {
		return nil, tkterr.NewID(tkterr.CodeState, t.ID,
			"cannot mark %s ticket done; must be pending", t.Status)
	}
	if err := c.guardBranch(t); err != nil {
		return nil, err
	}

	now := c.now()
	rev := c.s.Revision
	status := ticket.StatusDone
	patch := &ticket.Patch{
		Status:    &status,
		DoneAt:    &now,
		DoneRev:   &rev,
		UpdatedAt: &now,
	}
	t.Apply(patch)

	rec := eventlog.NewPatchRecord(t.Kind, t.ID, patch)
	err = c.commit(ctx, []eventlog.Record{rec}, func(tx *cache.Tx) error {
		return tx.PutTicket(t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Accept concludes a done ticket, creating its tombstone and removing it
// from all live views. With an empty id, the first done task is selected.
func (c *Controller) Accept(ctx context.Context, id string) (*ticket.Ticket, *ticket.Tombstone, error) {
	if err := c.s.EnsureFresh(ctx); err != nil {
		return nil, nil, err
	}

	var t *ticket.Ticket
	var err error
	if id == "" {
		t, err = c.s.Cache.FirstTask(ctx, ticket.StatusDone)
		if err != nil {
			return nil, nil, err
		}
		if t == nil {
			return nil, nil, tkterr.New(tkterr.CodeNotFound, "no done tasks to accept")
		}
	} else {
		t, err = c.s.Cache.GetTicket(ctx, id)
		if err != nil {
			return nil, nil, err
		}
	}

	if t.Status != ticket.StatusDone {
		return nil, nil, tkterr.NewID(tkterr.CodeState, t.ID,
			"cannot accept %s ticket; must be done", t.Status)
	}
	if err := c.guardBranch(t); err != nil {
		return nil, nil, err
	}

	at := c.now()
	rec := eventlog.NewAcceptRecord(t, at)
	ts := rec.Tombstone()

	t.Status = ticket.StatusAccepted
	t.ResolvedAt = &at
	t.UpdatedAt = at

	err = c.commit(ctx, []eventlog.Record{rec}, func(tx *cache.Tx) error {
		if err := tx.AddTombstone(ts); err != nil {
			return err
		}
		return tx.PutTicket(t)
	})
	if err != nil {
		return nil, nil, err
	}
	return t, &ts, nil
}

// Reject concludes a done ticket negatively: it creates a reject tombstone
// preserving the reason, then resets the ticket to pending with its done
// marker cleared so the work can be retried.
func (c *Controller) Reject(ctx context.Context, id, reason string) (*ticket.Ticket, *ticket.Tombstone, error) {
	if err := c.s.EnsureFresh(ctx); err != nil {
		return nil, nil, err
	}

	if id == "" {
		return nil, nil, tkterr.New(tkterr.CodeInvalidArg, "reject requires a ticket id")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, nil, tkterr.NewID(tkterr.CodeValidation, id, "reject requires a non-empty reason")
	}

	t, err := c.s.Cache.GetTicket(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != ticket.StatusDone {
		return nil, nil, tkterr.NewID(tkterr.CodeState, t.ID,
			"cannot reject %s ticket; must be done", t.Status)
	}
	if err := c.guardBranch(t); err != nil {
		return nil, nil, err
	}

	at := c.now()
	rejectRec := eventlog.NewRejectRecord(t, reason, at)
	ts := rejectRec.Tombstone()

	// The reject record marks the conclusion; a follow-up patch record
	// resets the ticket to pending so replay reproduces the retry state.
	status := ticket.StatusPending
	patch := &ticket.Patch{
		Status:    &status,
		ClearDone: true,
		UpdatedAt: &at,
	}
	resetRec := eventlog.NewPatchRecord(t.Kind, t.ID, patch)

	t.Apply(patch)
	t.ResolvedAt = &at

	err = c.commit(ctx, []eventlog.Record{rejectRec, resetRec}, func(tx *cache.Tx) error {
		if err := tx.AddTombstone(ts); err != nil {
			return err
		}
		return tx.PutTicket(t)
	})
	if err != nil {
		return nil, nil, err
	}
	return t, &ts, nil
}

// Delete soft-marks a ticket deleted. Blocked with a DEPENDENCY error while
// any other ticket lists it as a dependency; accepted tickets still count
// as dependents, deleted ones do not.
func (c *Controller) Delete(ctx context.Context, id string) (*ticket.Ticket, error) {
	if err := c.s.EnsureFresh(ctx); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, tkterr.New(tkterr.CodeInvalidArg, "delete requires a ticket id")
	}

	t, err := c.s.Cache.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.guardBranch(t); err != nil {
		return nil, err
	}

	dependents, err := c.s.Cache.Dependents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(dependents) > 0 {
		return nil, tkterr.NewID(tkterr.CodeDependency, id,
			"blocked by %d dependent(s): %s", len(dependents), strings.Join(dependents, ", "))
	}

	// The delete record carries only the id, so the live update touches
	// nothing replay cannot reproduce from it.
	t.Status = ticket.StatusDeleted

	err = c.commit(ctx, []eventlog.Record{eventlog.NewDeleteRecord(id)}, func(tx *cache.Tx) error {
		return tx.PutTicket(t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update merges the supplied fields into a ticket, with the same patch
// semantics replay uses: absent fields are untouched.
func (c *Controller) Update(ctx context.Context, id string, patch *ticket.Patch) (*ticket.Ticket, error) {
	if err := c.s.EnsureFresh(ctx); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, tkterr.New(tkterr.CodeInvalidArg, "update requires a ticket id")
	}
	if patch == nil || patch.IsZero() {
		return nil, tkterr.NewID(tkterr.CodeInvalidArg, id, "no fields to update")
	}

	t, err := c.s.Cache.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.guardBranch(t); err != nil {
		return nil, err
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, tkterr.NewID(tkterr.CodeInvalidArg, id, "ticket name cannot be cleared")
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, tkterr.NewID(tkterr.CodeValidation, id, "invalid status %q", *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return nil, tkterr.NewID(tkterr.CodeValidation, id, "invalid priority %q", *patch.Priority)
	}
	if patch.Deps != nil {
		if len(patch.Deps) > c.s.Limits.MaxDeps {
			return nil, tkterr.New(tkterr.CodeOverflow,
				"too many dependencies: %d exceeds max of %d", len(patch.Deps), c.s.Limits.MaxDeps)
		}
		if err := c.checkDeps(ctx, patch.Deps); err != nil {
			return nil, err
		}
	}
	if patch.Labels != nil && len(patch.Labels) > c.s.Limits.MaxLabels {
		return nil, tkterr.New(tkterr.CodeOverflow,
			"too many labels: %d exceeds max of %d", len(patch.Labels), c.s.Limits.MaxLabels)
	}

	now := c.now()
	patch.UpdatedAt = &now
	t.Apply(patch)

	rec := eventlog.NewPatchRecord(t.Kind, t.ID, patch)
	err = c.commit(ctx, []eventlog.Record{rec}, func(tx *cache.Tx) error {
		return tx.PutTicket(t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Prioritize validates the level against the closed priority enum and
// updates the ticket.
func (c *Controller) Prioritize(ctx context.Context, id, level string) (*ticket.Ticket, error) {
	prio, err := ticket.ParsePriority(level)
	if err != nil {
		return nil, err
	}
	return c.Update(ctx, id, &ticket.Patch{Priority: &prio})
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

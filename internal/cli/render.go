package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/tkt-dev/tkt/internal/ticket"
)

var (
	pendingColor  = color.New(color.FgYellow)
	doneColor     = color.New(color.FgGreen)
	acceptedColor = color.New(color.FgCyan)
	rejectedColor = color.New(color.FgRed)
	deletedColor  = color.New(color.Faint)
	idColor       = color.New(color.Bold)
)

func statusColor(s ticket.Status) *color.Color {
	switch s {
	case ticket.StatusDone:
		return doneColor
	case ticket.StatusAccepted:
		return acceptedColor
	case ticket.StatusRejected:
		return rejectedColor
	case ticket.StatusDeleted:
		return deletedColor
	default:
		return pendingColor
	}
}

// renderTicketLine prints a ticket as a single aligned row.
func renderTicketLine(w io.Writer, t *ticket.Ticket) {
	prio := ""
	if t.Priority != ticket.PriorityNone {
		prio = fmt.Sprintf(" [%s]", t.Priority)
	}
	var tags []string
	if len(t.Labels) > 0 {
		tags = append(tags, "#"+strings.Join(t.Labels, " #"))
	}
	if len(t.Deps) > 0 {
		tags = append(tags, fmt.Sprintf("deps:%d", len(t.Deps)))
	}
	suffix := ""
	if len(tags) > 0 {
		suffix = "  (" + strings.Join(tags, " ") + ")"
	}
	fmt.Fprintf(w, "  %s  %-8s%s  %s%s\n",
		idColor.Sprint(t.ID),
		statusColor(t.Status).Sprint(t.Status),
		prio, t.Name, suffix)
}

// renderTicketList prints a heading and the tickets beneath it. Empty lists
// print nothing.
func renderTicketList(w io.Writer, heading string, tickets []*ticket.Ticket) {
	if len(tickets) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d)\n", heading, len(tickets))
	for _, t := range tickets {
		renderTicketLine(w, t)
	}
}

// renderTicketDetail prints the full field set of one ticket.
func renderTicketDetail(w io.Writer, t *ticket.Ticket) {
	fmt.Fprintf(w, "%s  %s  %s\n", idColor.Sprint(t.ID),
		statusColor(t.Status).Sprint(t.Status), t.Name)
	if t.Priority != ticket.PriorityNone {
		fmt.Fprintf(w, "  priority: %s\n", t.Priority)
	}
	if t.Notes != "" {
		fmt.Fprintf(w, "  notes: %s\n", t.Notes)
	}
	if t.AcceptCriteria != "" {
		fmt.Fprintf(w, "  accept: %s\n", t.AcceptCriteria)
	}
	if t.Spec != "" {
		fmt.Fprintf(w, "  spec: %s\n", t.Spec)
	}
	if len(t.Deps) > 0 {
		fmt.Fprintf(w, "  deps: %s\n", strings.Join(t.Deps, ", "))
	}
	if t.Parent != "" {
		fmt.Fprintf(w, "  parent: %s\n", t.Parent)
	}
	if t.CreatedFrom != "" {
		fmt.Fprintf(w, "  created-from: %s\n", t.CreatedFrom)
	}
	if t.Supersedes != "" {
		fmt.Fprintf(w, "  supersedes: %s\n", t.Supersedes)
	}
	if len(t.Labels) > 0 {
		fmt.Fprintf(w, "  labels: %s\n", strings.Join(t.Labels, ", "))
	}
	if t.Branch != "" {
		fmt.Fprintf(w, "  branch: %s\n", t.Branch)
	}
	if t.Author != "" {
		fmt.Fprintf(w, "  author: %s\n", t.Author)
	}
	if t.DoneAt != nil {
		fmt.Fprintf(w, "  done: %s (rev %s)\n", t.DoneAt.Format("2006-01-02 15:04"), t.DoneRev)
	}
}

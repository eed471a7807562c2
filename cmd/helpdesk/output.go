package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const (
	columnWidthID       = 36
	columnWidthStatus   = 12
	columnWidthPriority = 9
	columnWidthAssignee = 16
	columnWidthSubject  = 48
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)

	statusColors = map[domain.TicketStatus]lipgloss.Color{
		domain.TicketStatusNew:        lipgloss.Color("12"),
		domain.TicketStatusOpen:       lipgloss.Color("14"),
		domain.TicketStatusInProgress: lipgloss.Color("11"),
		domain.TicketStatusPending:    lipgloss.Color("13"),
		domain.TicketStatusResolved:   lipgloss.Color("10"),
		domain.TicketStatusClosed:     lipgloss.Color("8"),
	}
	priorityColors = map[domain.TicketPriority]lipgloss.Color{
		domain.TicketPriorityLow:      lipgloss.Color("8"),
		domain.TicketPriorityMedium:   lipgloss.Color("7"),
		domain.TicketPriorityHigh:     lipgloss.Color("208"),
		domain.TicketPriorityCritical: lipgloss.Color("196"),
	}
)

// cell pads or truncates s to width runes.
func cell(s string, width int) string {
	runes := []rune(s)
	if len(runes) > width {
		s = string(runes[:width-1]) + "…"
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func statusCell(s domain.TicketStatus) string {
	return lipgloss.NewStyle().Foreground(statusColors[s]).Render(cell(string(s), columnWidthStatus))
}

func priorityCell(p domain.TicketPriority) string {
	return lipgloss.NewStyle().Foreground(priorityColors[p]).Bold(p == domain.TicketPriorityCritical).
		Render(cell(string(p), columnWidthPriority))
}

func assigneeName(t *domain.Ticket) string {
	switch {
	case t.AssignedAgent != nil:
		return t.AssignedAgent.Name
	case t.AssignedAgentID != nil:
		return *t.AssignedAgentID
	default:
		return "-"
	}
}

func renderTicketTable(w io.Writer, tickets []domain.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, faintStyle.Render("No tickets"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(strings.Join([]string{
		cell("ID", columnWidthID),
		cell("STATUS", columnWidthStatus),
		cell("PRIORITY", columnWidthPriority),
		cell("ASSIGNEE", columnWidthAssignee),
		cell("SUBJECT", columnWidthSubject),
	}, " ")))
	for i := range tickets {
		t := &tickets[i]
		fmt.Fprintln(w, strings.Join([]string{
			cell(t.ID, columnWidthID),
			statusCell(t.Status),
			priorityCell(t.Priority),
			cell(assigneeName(t), columnWidthAssignee),
			subjectWithTags(t),
		}, " "))
	}
}

func subjectWithTags(t *domain.Ticket) string {
	subject := t.Subject
	if len(t.Tags) == 0 {
		return subject
	}
	names := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		names[i] = tag.Name
	}
	return subject + " " + faintStyle.Render("["+strings.Join(names, ", ")+"]")
}

func renderTicket(w io.Writer, t *domain.Ticket) {
	fmt.Fprintln(w, headerStyle.Render(t.Subject))
	fmt.Fprintf(w, "ID:        %s\n", t.ID)
	fmt.Fprintf(w, "Status:    %s\n", statusCell(t.Status))
	fmt.Fprintf(w, "Priority:  %s\n", priorityCell(t.Priority))
	if t.Category != nil {
		fmt.Fprintf(w, "Category:  %s\n", *t.Category)
	}
	if t.User != nil {
		fmt.Fprintf(w, "Requester: %s <%s>\n", t.User.Name, t.User.Email)
	}
	fmt.Fprintf(w, "Assignee:  %s\n", assigneeName(t))
	if t.DueDate != nil {
		fmt.Fprintf(w, "Due:       %s\n", t.DueDate.Format(time.DateOnly))
	}
	fmt.Fprintf(w, "Created:   %s\n", t.CreatedAt.Format(time.RFC3339))
	if len(t.Tags) > 0 {
		names := make([]string, len(t.Tags))
		for i, tag := range t.Tags {
			names[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(tag.Color)).Render(tag.Name)
		}
		fmt.Fprintf(w, "Tags:      %s\n", strings.Join(names, ", "))
	}
	if t.Rating != nil {
		fmt.Fprintf(w, "Rating:    %d/5\n", t.Rating.Rating)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, t.Description)

	for _, a := range t.Attachments {
		fmt.Fprintf(w, "  attachment %s %s\n", a.Filename, faintStyle.Render(a.URL))
	}
	if len(t.Comments) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Comments"))
	}
	for _, cm := range t.Comments {
		author := cm.AuthorID
		if cm.Author != nil {
			author = cm.Author.Name
		}
		label := ""
		if cm.Internal {
			label = " " + faintStyle.Render("(internal)")
		}
		fmt.Fprintf(w, "- %s %s%s\n  %s\n", author, faintStyle.Render(cm.CreatedAt.Format(time.RFC3339)), label, cm.Content)
		for _, a := range cm.Attachments {
			fmt.Fprintf(w, "  attachment %s %s\n", a.Filename, faintStyle.Render(a.URL))
		}
	}
	if len(t.Activities) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Activity"))
	}
	for _, a := range t.Activities {
		fmt.Fprintf(w, "- %s %s\n", faintStyle.Render(a.CreatedAt.Format(time.RFC3339)), activityDetail(a))
	}
}

func activityDetail(a domain.TicketActivity) string {
	if a.Description != "" {
		return a.Description
	}
	action := string(a.ActionType)
	switch {
	case a.OldValue != nil && a.NewValue != nil:
		return action + " " + *a.OldValue + " -> " + *a.NewValue
	case a.NewValue != nil:
		return action + " " + *a.NewValue
	case a.OldValue != nil:
		return action + " " + *a.OldValue + " -> (none)"
	default:
		return action
	}
}

func renderStats(w io.Writer, s domain.TicketStats) {
	rows := []struct {
		label string
		value int
	}{
		{"Total", s.Total},
		{"New", s.New},
		{"In progress", s.InProgress},
		{"Pending", s.Pending},
		{"Resolved", s.Resolved},
		{"Critical", s.Critical},
		{"Overdue", s.Overdue},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s %d\n", cell(r.label, 12), r.value)
	}
}

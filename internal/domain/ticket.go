package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPending,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	return s.Rank() > 0
}

// Rank orders statuses along the lifecycle; unknown statuses rank 0.
func (s TicketStatus) Rank() int {
	for i, candidate := range TicketStatuses {
		if candidate == s {
			return i + 1
		}
	}
	return 0
}

// Done reports whether the ticket no longer needs work.
func (s TicketStatus) Done() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// ParseTicketStatus validates a raw status value.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidEnum, raw)
	}
	return status, nil
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// TicketPriorities lists every priority from least to most urgent.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityCritical,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p.Rank() > 0
}

// Rank returns critical(4) > high(3) > medium(2) > low(1); unknown is 0.
func (p TicketPriority) Rank() int {
	for i, candidate := range TicketPriorities {
		if candidate == p {
			return i + 1
		}
	}
	return 0
}

// ParseTicketPriority validates a raw priority value.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	priority := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	if !priority.Valid() {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidEnum, raw)
	}
	return priority, nil
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	UserID          string
	Subject         string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	Category        *string
	DueDate         *time.Time
	AssignedAgentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	User          *Profile
	AssignedAgent *Profile
	Tags          []Tag
	Comments      []Comment
	Attachments   []Attachment
	Activities    []TicketActivity
	Rating        *TicketRating
}

// HasTag reports whether the ticket carries the tag id.
func (t *Ticket) HasTag(tagID string) bool {
	for _, tag := range t.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

// Overdue reports whether the due date has passed on unfinished work.
func (t *Ticket) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Status.Done()
}

// Clone returns a copy that shares no slices with t.
func (t Ticket) Clone() Ticket {
	out := t
	out.Tags = append([]Tag(nil), t.Tags...)
	out.Attachments = append([]Attachment(nil), t.Attachments...)
	out.Activities = append([]TicketActivity(nil), t.Activities...)
	if t.Comments != nil {
		out.Comments = make([]Comment, len(t.Comments))
		for i, c := range t.Comments {
			c.Attachments = append([]Attachment(nil), c.Attachments...)
			out.Comments[i] = c
		}
	}
	return out
}

// TicketDraft is the payload for creating a ticket.
type TicketDraft struct {
	Subject     string
	Description string
	Category    string
	Priority    TicketPriority
	DueDate     *time.Time
}

// Validate checks required fields and enum values.
func (d TicketDraft) Validate() error {
	missing := []string{}
	if strings.TrimSpace(d.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(d.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return &FieldError{Fields: missing, Reason: "required"}
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return &FieldError{Fields: []string{"priority"}, Reason: fmt.Sprintf("unknown priority %q", d.Priority)}
	}
	return nil
}

// TicketPatch is a partial update. Nil fields are left unchanged.
type TicketPatch struct {
	Subject         *string
	Description     *string
	Status          *TicketStatus
	Priority        *TicketPriority
	Category        *string
	DueDate         *time.Time
	ClearDueDate    bool
	AssignedAgentID *string
	ClearAssignee   bool
}

// Empty reports whether the patch changes nothing.
func (p TicketPatch) Empty() bool {
	return p.Subject == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.Category == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.AssignedAgentID == nil && !p.ClearAssignee
}

// Validate rejects blank required fields and unknown enums.
func (p TicketPatch) Validate() error {
	if p.Empty() {
		return &FieldError{Reason: "no fields to update"}
	}
	if p.Subject != nil && strings.TrimSpace(*p.Subject) == "" {
		return &FieldError{Fields: []string{"subject"}, Reason: "must not be empty"}
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return &FieldError{Fields: []string{"description"}, Reason: "must not be empty"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &FieldError{Fields: []string{"status"}, Reason: fmt.Sprintf("unknown status %q", *p.Status)}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &FieldError{Fields: []string{"priority"}, Reason: fmt.Sprintf("unknown priority %q", *p.Priority)}
	}
	if p.DueDate != nil && p.ClearDueDate {
		return &FieldError{Fields: []string{"due_date"}, Reason: "cannot set and clear at once"}
	}
	if p.AssignedAgentID != nil && p.ClearAssignee {
		return &FieldError{Fields: []string{"assigned_agent_id"}, Reason: "cannot set and clear at once"}
	}
	return nil
}

// OnlyContent reports whether the patch touches nothing but subject and description.
func (p TicketPatch) OnlyContent() bool {
	return p.Status == nil && p.Priority == nil && p.Category == nil && p.DueDate == nil &&
		!p.ClearDueDate && p.AssignedAgentID == nil && !p.ClearAssignee
}

// ApplyTo copies the patched fields of src into dst.
func (p TicketPatch) ApplyTo(dst *Ticket, src Ticket) {
	if p.Subject != nil {
		dst.Subject = src.Subject
	}
	if p.Description != nil {
		dst.Description = src.Description
	}
	if p.Status != nil {
		dst.Status = src.Status
	}
	if p.Priority != nil {
		dst.Priority = src.Priority
	}
	if p.Category != nil {
		dst.Category = src.Category
	}
	if p.DueDate != nil || p.ClearDueDate {
		dst.DueDate = src.DueDate
	}
	if p.AssignedAgentID != nil || p.ClearAssignee {
		dst.AssignedAgentID = src.AssignedAgentID
		dst.AssignedAgent = src.AssignedAgent
	}
	if !src.UpdatedAt.IsZero() {
		dst.UpdatedAt = src.UpdatedAt
	}
}

// Apply writes the patch values directly into t.
func (p TicketPatch) Apply(t *Ticket) {
	if p.Subject != nil {
		t.Subject = strings.TrimSpace(*p.Subject)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		t.Category = &category
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.AssignedAgentID != nil {
		agent := *p.AssignedAgentID
		t.AssignedAgentID = &agent
		t.AssignedAgent = nil
	}
	if p.ClearAssignee {
		t.AssignedAgentID = nil
		t.AssignedAgent = nil
	}
}

// TicketStats summarizes a ticket collection for dashboards.
type TicketStats struct {
	Total      int
	New        int
	InProgress int
	Pending    int
	Resolved   int
	Critical   int
	Overdue    int
}

// SummarizeTickets counts tickets per dashboard bucket.
func SummarizeTickets(tickets []Ticket, now time.Time) TicketStats {
	stats := TicketStats{Total: len(tickets)}
	for i := range tickets {
		t := &tickets[i]
		switch t.Status {
		case TicketStatusNew:
			stats.New++
		case TicketStatusInProgress:
			stats.InProgress++
		case TicketStatusPending:
			stats.Pending++
		case TicketStatusResolved, TicketStatusClosed:
			stats.Resolved++
		}
		if t.Priority == TicketPriorityCritical {
			stats.Critical++
		}
		if t.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats
}

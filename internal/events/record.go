package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketRecord is the row state of a ticket carried by change events.
type TicketRecord struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Subject         string     `json:"subject"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	Category        *string    `json:"category,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	AssignedAgentID *string    `json:"assigned_agent_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewTicketRecord captures the scalar columns of t.
func NewTicketRecord(t *domain.Ticket) TicketRecord {
	return TicketRecord{
		ID:              t.ID,
		UserID:          t.UserID,
		Subject:         t.Subject,
		Description:     t.Description,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		Category:        t.Category,
		DueDate:         t.DueDate,
		AssignedAgentID: t.AssignedAgentID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// Ticket converts the row back into a ticket without relations.
func (r TicketRecord) Ticket() domain.Ticket {
	return domain.Ticket{
		ID:              r.ID,
		UserID:          r.UserID,
		Subject:         r.Subject,
		Description:     r.Description,
		Status:          domain.TicketStatus(r.Status),
		Priority:        domain.TicketPriority(r.Priority),
		Category:        r.Category,
		DueDate:         r.DueDate,
		AssignedAgentID: r.AssignedAgentID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

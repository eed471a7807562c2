package dto

import (
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/realtime"
)

// NotificationResponse is the data of one server-sent event.
type NotificationResponse struct {
	Kind     realtime.Kind   `json:"kind"`
	Topic    events.Topic    `json:"topic"`
	TicketID string          `json:"ticket_id,omitempty"`
	Ticket   *TicketResponse `json:"ticket,omitempty"`
}

// NewNotificationResponse maps a realtime notification for the wire.
func NewNotificationResponse(n realtime.Notification) NotificationResponse {
	resp := NotificationResponse{Kind: n.Kind, Topic: n.Topic, TicketID: n.TicketID}
	if n.Ticket != nil {
		ticket := NewTicketResponse(n.Ticket)
		resp.Ticket = &ticket
	}
	return resp
}

// Domain converts the payload back into a notification.
func (r NotificationResponse) Domain() realtime.Notification {
	n := realtime.Notification{Kind: r.Kind, Topic: r.Topic, TicketID: r.TicketID}
	if r.Ticket != nil {
		ticket := r.Ticket.Domain()
		n.Ticket = &ticket
	}
	return n
}

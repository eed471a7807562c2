package domain

import "time"

// Tag is a reusable label. Detaching it from a ticket never deletes it.
type Tag struct {
	ID        string
	Name      string
	Color     string
	CreatedBy *string
	CreatedAt time.Time
}

// TicketRating is the requester's satisfaction score for a finished ticket.
type TicketRating struct {
	ID        string
	TicketID  string
	UserID    string
	Rating    int
	Feedback  *string
	CreatedAt time.Time
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

package events

import (
	"encoding/json"
	"time"
)

// Topic names the resource whose rows changed.
type Topic string

const (
	TopicTickets     Topic = "tickets"
	TopicComments    Topic = "comments"
	TopicTicketTags  Topic = "ticket_tags"
	TopicAttachments Topic = "attachments"
	TopicTags        Topic = "tags"
	TopicRatings     Topic = "ticket_ratings"
)

// AllTopics lists every topic services publish on.
var AllTopics = []Topic{TopicTickets, TopicComments, TopicTicketTags, TopicAttachments, TopicTags, TopicRatings}

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is a change notification carrying the row's new state.
type Event struct {
	ID        string          `json:"id"`
	Topic     Topic           `json:"topic"`
	Op        Op              `json:"op"`
	TicketID  string          `json:"ticket_id,omitempty"`
	OwnerID   string          `json:"owner_id,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	Record    json.RawMessage `json:"record,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewEvent builds an event with a fresh id, encoding record as the row state.
// ownerID is the user owning the affected ticket.
func NewEvent(topic Topic, op Op, ticketID, ownerID, actorID string, record any) (Event, error) {
	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Op:        op,
		TicketID:  ticketID,
		OwnerID:   ownerID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
	if record != nil {
		raw, err := json.Marshal(record)
		if err != nil {
			return Event{}, err
		}
		event.Record = raw
	}
	return event, nil
}

// Decode unmarshals the event record into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Record, v)
}

// SubscribeAll registers handler on every listed topic and returns one
// unsubscribe func releasing all of them.
func SubscribeAll(d Dispatcher, topics []Topic, handler EventHandler) func() {
	unsubs := make([]func(), 0, len(topics))
	for _, topic := range topics {
		unsubs = append(unsubs, d.Subscribe(topic, handler))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

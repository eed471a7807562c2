package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

// Gauge tracks open subscriptions.
type Gauge interface {
	Inc()
	Dec()
}

var (
	ticketTopics     = []events.Topic{events.TopicTickets, events.TopicComments, events.TopicAttachments, events.TopicTicketTags, events.TopicRatings}
	collectionTopics = []events.Topic{events.TopicTickets, events.TopicComments, events.TopicTicketTags}
)

// Bridge subscribes views to backend change events.
type Bridge struct {
	dispatcher events.Dispatcher
	buffer     int
	logger     *zap.Logger
	gauge      Gauge
}

// NewBridge creates a bridge over dispatcher. gauge may be nil.
func NewBridge(dispatcher events.Dispatcher, buffer int, logger *zap.Logger, gauge Gauge) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{dispatcher: dispatcher, buffer: buffer, logger: logger, gauge: gauge}
}

// SubscribeTicket follows one ticket. Ticket row changes arrive as KindRecord
// or KindDeleted; changes to its comments, attachments, tags or rating arrive
// as KindReload. Events for any other ticket are never delivered.
func (b *Bridge) SubscribeTicket(ctx context.Context, viewer domain.Actor, ticketID string) *Subscription {
	return b.subscribe(ctx, ticketTopics, func(e events.Event) (Notification, bool) {
		if e.TicketID != ticketID || !visible(viewer, e) {
			return Notification{}, false
		}
		if e.Topic != events.TopicTickets {
			return Notification{Kind: KindReload, Topic: e.Topic, TicketID: e.TicketID}, true
		}
		if e.Op == events.OpDelete {
			return Notification{Kind: KindDeleted, Topic: e.Topic, TicketID: e.TicketID}, true
		}
		var record events.TicketRecord
		if err := e.Decode(&record); err != nil {
			b.logger.Warn("undecodable ticket record", zap.String("ticket_id", e.TicketID), zap.Error(err))
			return Notification{Kind: KindReload, Topic: e.Topic, TicketID: e.TicketID}, true
		}
		ticket := record.Ticket()
		return Notification{Kind: KindRecord, Topic: e.Topic, TicketID: e.TicketID, Ticket: &ticket}, true
	})
}

// SubscribeCollection follows the whole ticket table plus comments and tag
// associations. Every change arrives as KindReload.
func (b *Bridge) SubscribeCollection(ctx context.Context, viewer domain.Actor) *Subscription {
	return b.subscribe(ctx, collectionTopics, func(e events.Event) (Notification, bool) {
		if !visible(viewer, e) {
			return Notification{}, false
		}
		return Notification{Kind: KindReload, Topic: e.Topic, TicketID: e.TicketID}, true
	})
}

func (b *Bridge) subscribe(ctx context.Context, topics []events.Topic, translate func(events.Event) (Notification, bool)) *Subscription {
	var sub *Subscription
	var unsubscribe func()
	sub = NewSubscription(b.buffer, func() {
		if unsubscribe != nil {
			unsubscribe()
		}
		if b.gauge != nil {
			b.gauge.Dec()
		}
	})
	unsubscribe = events.SubscribeAll(b.dispatcher, topics, func(_ context.Context, e events.Event) error {
		if n, ok := translate(e); ok {
			sub.Send(n)
		}
		return nil
	})
	if b.gauge != nil {
		b.gauge.Inc()
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()
	return sub
}

// visible hides other customers' tickets from non-staff viewers.
func visible(viewer domain.Actor, e events.Event) bool {
	if viewer.IsStaff() {
		return true
	}
	return viewer.Authenticated() && e.OwnerID == viewer.ID
}

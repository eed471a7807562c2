package realtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

var agent = domain.Actor{ID: "agent-1", Role: domain.RoleAgent}

type countingGauge struct{ n atomic.Int64 }

func (g *countingGauge) Inc() { g.n.Add(1) }
func (g *countingGauge) Dec() { g.n.Add(-1) }

func publishTicket(t *testing.T, d events.Dispatcher, op events.Op, ticket domain.Ticket) {
	t.Helper()
	e, err := events.NewEvent(events.TopicTickets, op, ticket.ID, ticket.UserID, "someone", events.NewTicketRecord(&ticket))
	require.NoError(t, err)
	require.NoError(t, d.Publish(context.Background(), e))
}

func receive(t *testing.T, sub *Subscription) Notification {
	t.Helper()
	select {
	case n, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	return Notification{}
}

func assertQuiet(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case n := <-sub.C:
		t.Fatalf("unexpected notification %+v", n)
	default:
	}
}

func TestTicketSubscriptionIsScoped(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	bridge := NewBridge(d, 8, nil, nil)

	sub := bridge.SubscribeTicket(context.Background(), agent, "Y")
	defer sub.Close()

	publishTicket(t, d, events.OpUpdate, domain.Ticket{ID: "X", Status: domain.TicketStatusClosed})
	assertQuiet(t, sub)

	publishTicket(t, d, events.OpUpdate, domain.Ticket{ID: "Y", Subject: "Printer jam", Status: domain.TicketStatusOpen})
	n := receive(t, sub)
	assert.Equal(t, KindRecord, n.Kind)
	require.NotNil(t, n.Ticket)
	assert.Equal(t, "Y", n.Ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, n.Ticket.Status)
}

func TestTicketSubscriptionTranslatesRelatedChanges(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	bridge := NewBridge(d, 8, nil, nil)
	sub := bridge.SubscribeTicket(context.Background(), agent, "T")
	defer sub.Close()

	comment, err := events.NewEvent(events.TopicComments, events.OpInsert, "T", "u1", "agent-1", nil)
	require.NoError(t, err)
	require.NoError(t, d.Publish(context.Background(), comment))
	assert.Equal(t, KindReload, receive(t, sub).Kind)

	publishTicket(t, d, events.OpDelete, domain.Ticket{ID: "T"})
	n := receive(t, sub)
	assert.Equal(t, KindDeleted, n.Kind)
	assert.Equal(t, "T", n.TicketID)
}

func TestCollectionSubscriptionSignalsReload(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	bridge := NewBridge(d, 8, nil, nil)
	sub := bridge.SubscribeCollection(context.Background(), agent)
	defer sub.Close()

	publishTicket(t, d, events.OpInsert, domain.Ticket{ID: "A"})
	assert.Equal(t, KindReload, receive(t, sub).Kind)

	tagEvent, err := events.NewEvent(events.TopicTags, events.OpInsert, "", "", "agent-1", nil)
	require.NoError(t, err)
	require.NoError(t, d.Publish(context.Background(), tagEvent))
	assertQuiet(t, sub)
}

func TestCustomersOnlySeeTheirOwnTickets(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	bridge := NewBridge(d, 8, nil, nil)
	customer := domain.Actor{ID: "u1", Role: domain.RoleUser}
	sub := bridge.SubscribeCollection(context.Background(), customer)
	defer sub.Close()

	publishTicket(t, d, events.OpUpdate, domain.Ticket{ID: "theirs", UserID: "u2"})
	assertQuiet(t, sub)
	publishTicket(t, d, events.OpUpdate, domain.Ticket{ID: "mine", UserID: "u1"})
	assert.Equal(t, "mine", receive(t, sub).TicketID)
}

func TestCloseReleasesSubscription(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	gauge := &countingGauge{}
	bridge := NewBridge(d, 1, nil, gauge)

	sub := bridge.SubscribeTicket(context.Background(), agent, "T")
	assert.Equal(t, int64(1), gauge.n.Load())

	sub.Close()
	sub.Close()
	assert.Equal(t, int64(0), gauge.n.Load())

	_, ok := <-sub.C
	assert.False(t, ok, "C must be closed")

	publishTicket(t, d, events.OpUpdate, domain.Ticket{ID: "T"})
	assert.False(t, sub.Send(Notification{Kind: KindReload}))
}

func TestContextCancelClosesSubscription(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	gauge := &countingGauge{}
	bridge := NewBridge(d, 0, nil, gauge)

	ctx, cancel := context.WithCancel(context.Background())
	sub := bridge.SubscribeCollection(ctx, agent)
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on cancel")
	}
	assert.Eventually(t, func() bool { return gauge.n.Load() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPublishDoesNotWaitForSlowSubscriber(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	bridge := NewBridge(d, 1, nil, nil)
	collection := bridge.SubscribeCollection(context.Background(), agent)
	defer collection.Close()
	single := bridge.SubscribeTicket(context.Background(), agent, "T")
	defer single.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	published := make(chan error, 1)
	go func() {
		for i := 0; i < 20; i++ {
			e, err := events.NewEvent(events.TopicTickets, events.OpUpdate, "T", "u1", "agent-1", events.NewTicketRecord(&domain.Ticket{ID: "T"}))
			if err == nil {
				err = d.Publish(ctx, e)
			}
			if err != nil {
				published <- err
				return
			}
		}
		published <- nil
	}()

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a subscriber that never reads")
	}

	got := drain(collection)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 3)
	for _, n := range got {
		assert.Equal(t, KindReload, n.Kind)
	}
}

func TestSendCollapsesBacklogIntoReload(t *testing.T) {
	sub := NewSubscription(1, nil)
	defer sub.Close()
	for i := 0; i < 10; i++ {
		require.True(t, sub.Send(Notification{Kind: KindRecord, Topic: events.TopicTickets, TicketID: fmt.Sprint(i)}))
	}

	got := drain(sub)
	require.GreaterOrEqual(t, len(got), 2)
	assert.LessOrEqual(t, len(got), 3)
	assert.Equal(t, Notification{Kind: KindRecord, Topic: events.TopicTickets, TicketID: "0"}, got[0])
	assert.Equal(t, "9", got[len(got)-1].TicketID)

	reloads := 0
	for _, n := range got {
		if n.Kind == KindReload {
			reloads++
		}
	}
	assert.Positive(t, reloads)
}

func TestSendDoesNotBlockWithoutReader(t *testing.T) {
	sub := NewSubscription(0, nil)
	sent := make(chan bool, 1)
	go func() { sent <- sub.Send(Notification{Kind: KindReload}) }()

	select {
	case ok := <-sent:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Send blocked")
	}
	assert.Equal(t, KindReload, receive(t, sub).Kind)

	sub.Close()
	assert.False(t, sub.Send(Notification{Kind: KindReload}))
}

// drain reads until the subscription has been quiet for a while.
func drain(sub *Subscription) []Notification {
	var out []Notification
	for {
		select {
		case n, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, n)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

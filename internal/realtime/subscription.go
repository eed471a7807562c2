// Package realtime turns backend change events into per-view notifications.
package realtime

import (
	"sync"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

// Kind tells a subscriber how to react to a notification.
type Kind string

const (
	// KindRecord carries the new scalar state of one ticket.
	KindRecord Kind = "record"
	// KindDeleted reports that a ticket no longer exists.
	KindDeleted Kind = "deleted"
	// KindReload asks the subscriber to re-query.
	KindReload Kind = "reload"
)

// Notification is delivered to subscribers.
type Notification struct {
	Kind     Kind
	Topic    events.Topic
	TicketID string
	Ticket   *domain.Ticket
}

// Subscription is a stream of notifications. Close releases it.
//
// Send never blocks. Notifications that do not fit in C wait in a backlog of
// the same size; a reload already in the backlog absorbs later reloads, and a
// full backlog is replaced by a single reload.
type Subscription struct {
	C <-chan Notification

	ch       chan Notification
	done     chan struct{}
	wake     chan struct{}
	pumped   chan struct{}
	mu       sync.Mutex
	backlog  []Notification
	limit    int
	inflight bool
	closed   bool
	once     sync.Once
	release  func()
}

// NewSubscription creates a subscription whose Close runs release once.
// Producers feed it with Send.
func NewSubscription(buffer int, release func()) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Notification, buffer)
	s := &Subscription{
		C:       ch,
		ch:      ch,
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		pumped:  make(chan struct{}),
		limit:   max(buffer, 1),
		release: release,
	}
	go s.pump()
	return s
}

// Send queues n for the subscriber. It reports false once the subscription
// is closed.
func (s *Subscription) Send(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if len(s.backlog) == 0 && !s.inflight {
		select {
		case s.ch <- n:
			return true
		default:
		}
	}
	switch {
	case n.Kind == KindReload && s.reloadQueued():
		return true
	case len(s.backlog) >= s.limit:
		s.backlog = append(s.backlog[:0], Notification{Kind: KindReload, Topic: n.Topic, TicketID: n.TicketID})
	default:
		s.backlog = append(s.backlog, n)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription) reloadQueued() bool {
	for _, queued := range s.backlog {
		if queued.Kind == KindReload {
			return true
		}
	}
	return false
}

// pump moves the backlog into C as the subscriber drains it.
func (s *Subscription) pump() {
	defer close(s.pumped)
	for {
		s.mu.Lock()
		if len(s.backlog) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		n := s.backlog[0]
		s.backlog = s.backlog[1:]
		s.inflight = true
		s.mu.Unlock()

		select {
		case s.ch <- n:
		case <-s.done:
			return
		}
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}
}

// Done is closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the upstream subscription and closes C. Notifications
// already in C stay readable. It is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.backlog = nil
		s.mu.Unlock()
		close(s.done)
		<-s.pumped
		if s.release != nil {
			s.release()
		}
		close(s.ch)
	})
}

package store

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	"github.com/spec-kit/helpdesk/internal/realtime"
)

// Config wires a Store.
type Config struct {
	Backend  Backend
	Notifier Notifier
	Logger   *zap.Logger
	// OnChange, when set, receives a copy of the collection after every
	// change to it.
	OnChange func([]domain.Ticket)
}

type loadRequest struct {
	actor  domain.Actor
	filter filter.Filter
	sort   filter.Sort
}

// Store holds the ticket collection for one viewer and filter.
type Store struct {
	backend  Backend
	notifier Notifier
	logger   *zap.Logger
	onChange func([]domain.Ticket)

	token atomic.Uint64

	mu      sync.RWMutex
	tickets []domain.Ticket
	err     error
	loading int
	last    *loadRequest
}

// New creates an empty store.
func New(cfg Config) *Store {
	s := &Store{
		backend:  cfg.Backend,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		onChange: cfg.OnChange,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Load replaces the collection with the tickets matching f, ordered by srt.
// Only the most recently started load may publish its result; older ones
// are dropped when they finish. On failure the previous collection is kept
// and Err reports the failure.
func (s *Store) Load(ctx context.Context, actor domain.Actor, f filter.Filter, srt filter.Sort) error {
	req := loadRequest{actor: actor, filter: f.Normalize(), sort: srt.Normalize()}
	token := s.token.Add(1)

	s.mu.Lock()
	s.loading++
	s.last = &req
	s.mu.Unlock()

	var (
		tickets []domain.Ticket
		err     error
	)
	if err = requireActor(actor); err == nil {
		if err = req.filter.Validate(); err != nil {
			err = validationError(err)
		} else {
			tickets, err = s.backend.ListTickets(ctx, actor, req.filter, req.sort, filter.Page{})
			err = backendError(err)
		}
	}

	s.mu.Lock()
	s.loading--
	if token != s.token.Load() {
		s.mu.Unlock()
		s.logger.Debug("discarding stale ticket load", zap.Uint64("token", token))
		return nil
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.notifier.Failure("failed to load tickets", err)
		return err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	s.tickets = tickets
	s.err = nil
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snapshot)
	return nil
}

// Reload repeats the last Load. It does nothing before the first Load.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		return nil
	}
	return s.Load(ctx, last.actor, last.filter, last.sort)
}

// Snapshot returns a copy of the collection.
func (s *Store) Snapshot() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns a copy of one ticket in the collection.
func (s *Store) Get(id string) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tickets[i].Clone(), true
	}
	return domain.Ticket{}, false
}

// Loading reports whether a load is outstanding.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Err returns the failure of the latest load, nil once a load succeeds.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Create validates draft locally, creates the ticket and reloads the
// collection.
func (s *Store) Create(ctx context.Context, actor domain.Actor, draft domain.TicketDraft) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		err = validationError(err)
		s.notifier.Failure("failed to create ticket", err)
		return nil, err
	}
	ticket, err := s.backend.CreateTicket(ctx, actor, draft)
	if err != nil {
		err = backendError(err)
		s.notifier.Failure("failed to create ticket", err)
		return nil, err
	}
	s.notifier.Success("ticket created")

	s.mu.RLock()
	loaded := s.last != nil
	s.mu.RUnlock()
	if loaded {
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("reload after create failed", zap.Error(err))
		}
	} else {
		s.mu.Lock()
		s.tickets = append([]domain.Ticket{ticket.Clone()}, s.tickets...)
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.changed(snapshot)
	}
	return ticket, nil
}

// Update sends patch and merges the patched fields of the result into the
// local entry. Relations of the local entry are left alone.
func (s *Store) Update(ctx context.Context, actor domain.Actor, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		err = validationError(err)
		s.notifier.Failure("failed to update ticket", err)
		return nil, err
	}
	updated, err := s.backend.UpdateTicket(ctx, actor, id, patch)
	if err != nil {
		err = backendError(err)
		s.notifier.Failure("failed to update ticket", err)
		return nil, err
	}
	s.notifier.Success("ticket updated")

	s.mu.Lock()
	var snapshot []domain.Ticket
	if i := s.indexLocked(id); i >= 0 {
		patch.ApplyTo(&s.tickets[i], *updated)
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()
	if snapshot != nil {
		s.changed(snapshot)
	}
	return updated, nil
}

// Delete removes the ticket on the backend, then locally.
func (s *Store) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.backend.DeleteTicket(ctx, actor, id); err != nil {
		err = backendError(err)
		s.notifier.Failure("failed to delete ticket", err)
		return err
	}
	s.notifier.Success("ticket deleted")
	s.remove(id)
	return nil
}

// Listen applies notifications from sub until it closes or ctx ends. The
// subscription is closed on return.
func (s *Store) Listen(ctx context.Context, sub *realtime.Subscription) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.Apply(ctx, n)
		}
	}
}

// Apply reconciles one notification with the collection.
func (s *Store) Apply(ctx context.Context, n realtime.Notification) {
	switch n.Kind {
	case realtime.KindRecord:
		if n.Ticket == nil {
			return
		}
		if s.merge(*n.Ticket) {
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("reload after change failed", zap.Error(err))
			}
		}
	case realtime.KindDeleted:
		s.remove(n.TicketID)
	case realtime.KindReload:
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("reload after change failed", zap.Error(err))
		}
	}
}

// merge copies the scalar fields of rec into the entry with the same id.
// Records older than the local entry are ignored. It reports whether the
// relations need a refetch.
func (s *Store) merge(rec domain.Ticket) (refetch bool) {
	s.mu.Lock()
	i := s.indexLocked(rec.ID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	cur := &s.tickets[i]
	if !rec.UpdatedAt.IsZero() && rec.UpdatedAt.Before(cur.UpdatedAt) {
		s.mu.Unlock()
		return false
	}
	refetch = !sameString(cur.AssignedAgentID, rec.AssignedAgentID)

	cur.Subject = rec.Subject
	cur.Description = rec.Description
	cur.Status = rec.Status
	cur.Priority = rec.Priority
	cur.Category = rec.Category
	cur.DueDate = rec.DueDate
	cur.AssignedAgentID = rec.AssignedAgentID
	if refetch {
		cur.AssignedAgent = nil
	}
	if !rec.UpdatedAt.IsZero() {
		cur.UpdatedAt = rec.UpdatedAt
	}

	if s.last != nil && !filter.Build(s.last.filter, s.last.sort, filter.Page{}).Match(cur) {
		s.tickets = append(s.tickets[:i], s.tickets[i+1:]...)
		refetch = false
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snapshot)
	return refetch
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.tickets = append(s.tickets[:i], s.tickets[i+1:]...)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.changed(snapshot)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []domain.Ticket {
	out := make([]domain.Ticket, len(s.tickets))
	for i, t := range s.tickets {
		out[i] = t.Clone()
	}
	return out
}

func (s *Store) changed(snapshot []domain.Ticket) {
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/filter"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	attachments repository.AttachmentRepository
	ratings     repository.RatingRepository
	files       storage.FileStore
	events      publisher
	logger      *zap.Logger
	now         func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	AttachmentRepo repository.AttachmentRepository
	RatingRepo     repository.RatingRepository
	Files          storage.FileStore
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := loggerOrNop(deps.Logger)
	return &TicketService{
		tickets:     deps.TicketRepo,
		attachments: deps.AttachmentRepo,
		ratings:     deps.RatingRepo,
		files:       deps.Files,
		events:      publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the tickets visible to actor that match the filter.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, f filter.Filter, sort filter.Sort, page filter.Page) ([]domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, validationError(err)
	}
	q := filter.Build(f, sort, page)
	if !actor.IsStaff() {
		q = q.WithOwner(actor.ID)
	}
	tickets, err := s.tickets.List(ctx, q)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range tickets {
		redactForViewer(actor, &tickets[i])
	}
	return tickets, nil
}

// Get returns one ticket. Tickets the actor may not see are reported as missing.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.visibleTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	redactForViewer(actor, ticket)
	return ticket, nil
}

// Create opens a ticket on behalf of actor. New tickets always start as new.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, draft domain.TicketDraft) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	draft.Subject = plainText(draft.Subject)
	draft.Description = plainText(draft.Description)
	draft.Category = strings.TrimSpace(draft.Category)
	if err := draft.Validate(); err != nil {
		return nil, validationError(err)
	}

	priority := draft.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	category := draft.Category
	ticket := &domain.Ticket{
		UserID:      actor.ID,
		Subject:     draft.Subject,
		Description: draft.Description,
		Status:      domain.TicketStatusNew,
		Priority:    priority,
		Category:    &category,
		DueDate:     draft.DueDate,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.events.publish(ctx, events.TopicTickets, events.OpInsert, ticket.ID, ticket.UserID, actor.ID, events.NewTicketRecord(ticket))
	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("user_id", actor.ID))

	return s.reload(ctx, actor, ticket)
}

// Update applies a partial change. Customers may only edit the subject and
// description of their own tickets.
func (s *TicketService) Update(ctx context.Context, actor domain.Actor, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if patch.Subject != nil {
		subject := plainText(*patch.Subject)
		patch.Subject = &subject
	}
	if patch.Description != nil {
		description := plainText(*patch.Description)
		patch.Description = &description
	}
	if err := patch.Validate(); err != nil {
		return nil, validationError(err)
	}

	current, err := s.visibleTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && !patch.OnlyContent() {
		return nil, apperrors.NewForbidden("only staff may change status, priority, category, due date or assignee")
	}

	updated, err := s.tickets.Update(ctx, id, patch, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.events.publish(ctx, events.TopicTickets, events.OpUpdate, id, current.UserID, actor.ID, events.NewTicketRecord(updated))
	return s.reload(ctx, actor, updated)
}

// Delete removes a ticket with everything attached to it. Stored files are
// removed afterwards on a best effort basis.
func (s *TicketService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return apperrors.NewForbidden("only staff may delete tickets")
	}
	current, err := s.visibleTicket(ctx, actor, id)
	if err != nil {
		return err
	}

	var paths []string
	if s.attachments != nil {
		if paths, err = s.attachments.ListPathsByTicket(ctx, id); err != nil {
			return apperrors.MapError(err)
		}
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	s.events.publish(ctx, events.TopicTickets, events.OpDelete, id, current.UserID, actor.ID, events.NewTicketRecord(current))

	if s.files != nil {
		for _, p := range paths {
			if err := s.files.Delete(ctx, p); err != nil {
				s.logger.Warn("remove attachment file", zap.String("path", p), zap.Error(err))
			}
		}
	}
	return nil
}

// Rate records the requester's satisfaction with a finished ticket.
func (s *TicketService) Rate(ctx context.Context, actor domain.Actor, id string, score int, feedback *string) (*domain.TicketRating, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if score < domain.MinRating || score > domain.MaxRating {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"fields": []string{"rating"}})
	}
	ticket, err := s.visibleTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actor.ID {
		return nil, apperrors.NewForbidden("only the requester may rate a ticket")
	}
	if !ticket.Status.Done() {
		return nil, apperrors.NewConflict("ticket is not resolved yet", map[string]any{"status": ticket.Status})
	}
	if feedback != nil {
		text := plainText(*feedback)
		if text == "" {
			feedback = nil
		} else {
			feedback = &text
		}
	}

	rating := &domain.TicketRating{TicketID: id, UserID: actor.ID, Rating: score, Feedback: feedback}
	if err := s.ratings.Upsert(ctx, rating); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.events.publish(ctx, events.TopicRatings, events.OpInsert, id, ticket.UserID, actor.ID, rating)
	return rating, nil
}

// Stats summarizes the tickets visible to actor.
func (s *TicketService) Stats(ctx context.Context, actor domain.Actor) (domain.TicketStats, error) {
	if err := requireActor(actor); err != nil {
		return domain.TicketStats{}, err
	}
	var owner *string
	if !actor.IsStaff() {
		owner = &actor.ID
	}
	stats, err := s.tickets.Stats(ctx, owner, s.now())
	if err != nil {
		return domain.TicketStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

func (s *TicketService) visibleTicket(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if !actor.CanSeeTicket(ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, nil
}

// reload returns the hydrated state of t, falling back to t itself when the
// read fails after a successful write.
func (s *TicketService) reload(ctx context.Context, actor domain.Actor, t *domain.Ticket) (*domain.Ticket, error) {
	fresh, err := s.tickets.GetByID(ctx, t.ID)
	if err != nil {
		s.logger.Warn("reload ticket", zap.String("ticket_id", t.ID), zap.Error(err))
		return t, nil
	}
	redactForViewer(actor, fresh)
	return fresh, nil
}

// redactForViewer hides staff-only notes from customers.
func redactForViewer(actor domain.Actor, t *domain.Ticket) {
	if actor.IsStaff() || len(t.Comments) == 0 {
		return
	}
	visible := t.Comments[:0:0]
	for _, c := range t.Comments {
		if !c.Internal {
			visible = append(visible, c)
		}
	}
	t.Comments = visible
}

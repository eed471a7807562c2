package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const tagListKey = "tags:all"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// TagService manages the shared label catalogue and ticket associations.
type TagService struct {
	tags         repository.TagRepository
	tickets      repository.TicketRepository
	cache        *gocache.Cache
	defaultColor string
	events       publisher
	logger       *zap.Logger
}

// TagDependencies bundles collaborators for the tag service.
type TagDependencies struct {
	TagRepo      repository.TagRepository
	TicketRepo   repository.TicketRepository
	DefaultColor string
	CacheTTL     time.Duration
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewTagService constructs the service.
func NewTagService(deps TagDependencies) *TagService {
	logger := loggerOrNop(deps.Logger)
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	color := deps.DefaultColor
	if color == "" {
		color = "#3b82f6"
	}
	return &TagService{
		tags:         deps.TagRepo,
		tickets:      deps.TicketRepo,
		cache:        gocache.New(ttl, 2*ttl),
		defaultColor: color,
		events:       publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:       logger,
	}
}

// List returns every tag ordered by name.
func (s *TagService) List(ctx context.Context, actor domain.Actor) ([]domain.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(tagListKey); ok {
		return append([]domain.Tag(nil), cached.([]domain.Tag)...), nil
	}
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cache.SetDefault(tagListKey, tags)
	return append([]domain.Tag(nil), tags...), nil
}

// Create adds a tag. An empty color falls back to the default.
func (s *TagService) Create(ctx context.Context, actor domain.Actor, name, color string) (*domain.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	name = plainText(name)
	if name == "" {
		return nil, apperrors.NewValidationError("tag name is required", map[string]any{"fields": []string{"name"}})
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = s.defaultColor
	}
	if !hexColor.MatchString(color) {
		return nil, apperrors.NewValidationError("color must look like #rrggbb", map[string]any{"fields": []string{"color"}})
	}

	createdBy := actor.ID
	tag := &domain.Tag{Name: name, Color: strings.ToLower(color), CreatedBy: &createdBy}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cache.Delete(tagListKey)
	s.events.publish(ctx, events.TopicTags, events.OpInsert, "", "", actor.ID, tag)
	return tag, nil
}

// AddToTicket labels a ticket. Adding a tag twice is a no-op.
func (s *TagService) AddToTicket(ctx context.Context, actor domain.Actor, ticketID, tagID string) error {
	ticket, err := s.editableTicket(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	if _, err := s.tags.GetByID(ctx, tagID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("tag", map[string]any{"id": tagID})
		}
		return apperrors.MapError(err)
	}
	added, err := s.tags.Attach(ctx, ticketID, tagID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if added {
		s.events.publish(ctx, events.TopicTicketTags, events.OpInsert, ticketID, ticket.UserID, actor.ID, tagLink{TicketID: ticketID, TagID: tagID})
	}
	return nil
}

// RemoveFromTicket unlabels a ticket. Removing an absent tag succeeds.
func (s *TagService) RemoveFromTicket(ctx context.Context, actor domain.Actor, ticketID, tagID string) error {
	ticket, err := s.editableTicket(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	removed, err := s.tags.Detach(ctx, ticketID, tagID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if removed {
		s.events.publish(ctx, events.TopicTicketTags, events.OpDelete, ticketID, ticket.UserID, actor.ID, tagLink{TicketID: ticketID, TagID: tagID})
	}
	return nil
}

// editableTicket resolves a ticket whose labels actor may change: staff on
// any ticket, customers on their own.
func (s *TagService) editableTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !actor.CanSeeTicket(ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

type tagLink struct {
	TicketID string `json:"ticket_id"`
	TagID    string `json:"tag_id"`
}

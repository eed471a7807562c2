package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

// NotificationService handles emitting notifications for change events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	unsubs     []func()
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     loggerOrNop(logger),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.unsubs = append(n.unsubs,
		n.dispatcher.Subscribe(events.TopicTickets, n.handleTicketChange),
		n.dispatcher.Subscribe(events.TopicComments, n.handleCommentAdded),
		n.dispatcher.Subscribe(events.TopicRatings, n.handleRating),
	)
}

// Close removes the handlers.
func (n *NotificationService) Close() {
	for _, unsub := range n.unsubs {
		unsub()
	}
	n.unsubs = nil
}

func (n *NotificationService) handleTicketChange(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket changed",
		zap.String("ticket_id", event.TicketID),
		zap.String("op", string(event.Op)),
		zap.String("actor_id", event.ActorID))
	switch event.Op {
	case events.OpInsert:
		n.sendEmailNotificationStub(ctx, event)
		n.sendWebhookNotificationStub(ctx, event)
	case events.OpUpdate, events.OpDelete:
		n.sendWebhookNotificationStub(ctx, event)
	}
	return nil
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("comment added", zap.String("ticket_id", event.TicketID), zap.String("actor_id", event.ActorID))
	// the requester is not mailed about their own messages
	if event.ActorID != event.OwnerID {
		n.sendEmailNotificationStub(ctx, event)
	}
	return nil
}

func (n *NotificationService) handleRating(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket rated", zap.String("ticket_id", event.TicketID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("topic", string(event.Topic)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("topic", string(event.Topic)))
}

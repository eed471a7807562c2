package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// EventsHandler streams change notifications as server-sent events.
type EventsHandler struct {
	bridge    *realtime.Bridge
	tickets   *service.TicketService
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventsHandler constructs handler.
func NewEventsHandler(bridge *realtime.Bridge, ticketService *service.TicketService, heartbeat time.Duration, logger *zap.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{bridge: bridge, tickets: ticketService, heartbeat: heartbeat, logger: logger}
}

// Collection GET /events follows every ticket visible to the caller.
func (h *EventsHandler) Collection(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub := h.bridge.SubscribeCollection(ctx, actor)
	return h.stream(c, sub, cancel)
}

// Ticket GET /tickets/:id/events follows one ticket.
func (h *EventsHandler) Ticket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id := c.Params("id")
	if _, err := h.tickets.Get(c.UserContext(), actor, id); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub := h.bridge.SubscribeTicket(ctx, actor, id)
	return h.stream(c, sub, cancel)
}

// stream hands sub to the response body writer, which outlives the handler
// and owns sub from then on.
func (h *EventsHandler) stream(c *fiber.Ctx, sub *realtime.Subscription, cancel context.CancelFunc) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := h.heartbeat
	logger := h.logger
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		if err := realtime.WriteComment(w, "connected"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case n, ok := <-sub.C:
				if !ok {
					return
				}
				payload, err := json.Marshal(dto.NewNotificationResponse(n))
				if err != nil {
					logger.Warn("encode notification", zap.Error(err))
					continue
				}
				if err := realtime.WriteFrame(w, realtime.Frame{Event: string(n.Kind), Data: payload}); err != nil {
					return
				}
			case <-ticker.C:
				if err := realtime.WriteComment(w, "ping"); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				logger.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	})
	return nil
}

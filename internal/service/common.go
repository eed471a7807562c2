package service

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// textPolicy strips every tag; ticket and comment bodies are plain text.
var textPolicy = bluemonday.StrictPolicy()

// plainText removes markup and surrounding whitespace from user input.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// validationError converts domain validation failures into API errors and
// passes anything else through unchanged.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		details := map[string]any{}
		if len(fieldErr.Fields) > 0 {
			details["fields"] = fieldErr.Fields
		}
		return apperrors.NewValidationError(fieldErr.Error(), details)
	}
	if errors.Is(err, domain.ErrInvalidEnum) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	return err
}

func requireActor(actor domain.Actor) error {
	if !actor.Authenticated() {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

// publisher emits change events. Failures are logged and never returned.
type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p publisher) publish(ctx context.Context, topic events.Topic, op events.Op, ticketID, ownerID, actorID string, record any) {
	if p.dispatcher == nil {
		return
	}
	event, err := events.NewEvent(topic, op, ticketID, ownerID, actorID, record)
	if err != nil {
		p.logger.Warn("encode event", zap.String("topic", string(topic)), zap.Error(err))
		return
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("publish event", zap.String("topic", string(topic)), zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

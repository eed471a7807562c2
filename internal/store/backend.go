// Package store keeps a viewer's ticket collection in sync with the backend.
// Every mutation goes to the backend first; the local collection only
// changes after the backend confirmed it.
package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Backend is the remote side of the store.
type Backend interface {
	ListTickets(ctx context.Context, actor domain.Actor, f filter.Filter, s filter.Sort, p filter.Page) ([]domain.Ticket, error)
	CreateTicket(ctx context.Context, actor domain.Actor, draft domain.TicketDraft) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, actor domain.Actor, id string, patch domain.TicketPatch) (*domain.Ticket, error)
	DeleteTicket(ctx context.Context, actor domain.Actor, id string) error
	AddComment(ctx context.Context, actor domain.Actor, ticketID, content string, internal bool, files []domain.Upload) (*domain.Comment, error)
	ListTags(ctx context.Context, actor domain.Actor) ([]domain.Tag, error)
	CreateTag(ctx context.Context, actor domain.Actor, name, color string) (*domain.Tag, error)
	AddTagToTicket(ctx context.Context, actor domain.Actor, ticketID, tagID string) error
	RemoveTagFromTicket(ctx context.Context, actor domain.Actor, ticketID, tagID string) error
}

// Notifier surfaces transient success and failure messages.
type Notifier interface {
	Success(message string)
	Failure(message string, err error)
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// Success logs at info level.
func (n LogNotifier) Success(message string) {
	n.logger().Info(message)
}

// Failure logs at warn level with the error code when there is one.
func (n LogNotifier) Failure(message string, err error) {
	fields := []zap.Field{zap.Error(err)}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		fields = append(fields, zap.String("code", domainErr.Code))
	}
	n.logger().Warn(message, fields...)
}

func (n LogNotifier) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}

type nopNotifier struct{}

func (nopNotifier) Success(string)        {}
func (nopNotifier) Failure(string, error) {}

func requireActor(actor domain.Actor) error {
	if !actor.Authenticated() {
		return apperrors.NewUnauthorized("sign in required")
	}
	return nil
}

// backendError keeps classified errors and wraps anything else as a
// backend failure carrying the underlying message.
func backendError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewBackendError(err)
}

func validationError(err error) error {
	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		details := map[string]any{}
		if len(fieldErr.Fields) > 0 {
			details["fields"] = fieldErr.Fields
		}
		return apperrors.NewValidationError(fieldErr.Error(), details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}

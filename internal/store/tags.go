package store

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Tags manages the tag catalog and ticket associations.
type Tags struct {
	backend  Backend
	store    *Store
	notifier Notifier
}

// NewTags binds tag operations to st. A nil st skips the refresh.
func NewTags(backend Backend, st *Store, notifier Notifier) *Tags {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Tags{backend: backend, store: st, notifier: notifier}
}

// List returns the tag catalog.
func (t *Tags) List(ctx context.Context, actor domain.Actor) ([]domain.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	tags, err := t.backend.ListTags(ctx, actor)
	if err != nil {
		return nil, backendError(err)
	}
	return tags, nil
}

// Create adds a tag to the catalog.
func (t *Tags) Create(ctx context.Context, actor domain.Actor, name, color string) (*domain.Tag, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		err := apperrors.NewValidationError("tag name is required", map[string]any{"fields": []string{"name"}})
		t.notifier.Failure("failed to create tag", err)
		return nil, err
	}
	tag, err := t.backend.CreateTag(ctx, actor, name, color)
	if err != nil {
		err = backendError(err)
		t.notifier.Failure("failed to create tag", err)
		return nil, err
	}
	t.notifier.Success("tag created")
	return tag, nil
}

// CreateAndAttach creates a tag and associates it with ticketID. When the
// association fails the created tag is returned together with a
// PARTIAL_FAILURE error.
func (t *Tags) CreateAndAttach(ctx context.Context, actor domain.Actor, ticketID, name, color string) (*domain.Tag, error) {
	tag, err := t.Create(ctx, actor, name, color)
	if err != nil {
		return nil, err
	}
	if err := t.backend.AddTagToTicket(ctx, actor, ticketID, tag.ID); err != nil {
		partial := apperrors.NewPartialFailure("tag created but could not be added to the ticket",
			map[string]any{"tag_id": tag.ID, "ticket_id": ticketID}, err)
		t.notifier.Failure("failed to add tag", partial)
		return tag, partial
	}
	t.notifier.Success("tag added")
	t.reload(ctx)
	return tag, nil
}

// Add associates an existing tag with a ticket.
func (t *Tags) Add(ctx context.Context, actor domain.Actor, ticketID, tagID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := t.backend.AddTagToTicket(ctx, actor, ticketID, tagID); err != nil {
		err = backendError(err)
		t.notifier.Failure("failed to add tag", err)
		return err
	}
	t.notifier.Success("tag added")
	t.reload(ctx)
	return nil
}

// Remove detaches a tag from a ticket.
func (t *Tags) Remove(ctx context.Context, actor domain.Actor, ticketID, tagID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := t.backend.RemoveTagFromTicket(ctx, actor, ticketID, tagID); err != nil {
		err = backendError(err)
		t.notifier.Failure("failed to remove tag", err)
		return err
	}
	t.notifier.Success("tag removed")
	t.reload(ctx)
	return nil
}

func (t *Tags) reload(ctx context.Context) {
	if t.store == nil {
		return
	}
	if err := t.store.Reload(ctx); err != nil {
		t.store.logger.Warn("reload after tag change failed", zap.Error(err))
	}
}

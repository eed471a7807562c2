package store

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Comments posts comments and refreshes the store afterwards.
type Comments struct {
	backend  Backend
	store    *Store
	notifier Notifier
}

// NewComments binds comment operations to st. A nil st skips the refresh.
func NewComments(backend Backend, st *Store, notifier Notifier) *Comments {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Comments{backend: backend, store: st, notifier: notifier}
}

// Add posts a comment with optional files. Blank content is rejected
// without contacting the backend.
func (c *Comments) Add(ctx context.Context, actor domain.Actor, ticketID, content string, internal bool, files []domain.Upload) (*domain.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		err := apperrors.NewValidationError("comment content is required", map[string]any{"fields": []string{"content"}})
		c.notifier.Failure("failed to add comment", err)
		return nil, err
	}
	comment, err := c.backend.AddComment(ctx, actor, ticketID, content, internal, files)
	if err != nil {
		err = backendError(err)
		c.notifier.Failure("failed to add comment", err)
		return nil, err
	}
	c.notifier.Success("comment added")
	if c.store != nil {
		if err := c.store.Reload(ctx); err != nil {
			c.store.logger.Warn("reload after comment failed", zap.Error(err))
		}
	}
	return comment, nil
}

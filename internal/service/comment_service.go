package service

import (
	"bytes"
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// UploadRecorder counts attachment uploads.
type UploadRecorder interface {
	RecordUpload(ok bool)
}

// CommentService posts messages and files to ticket threads.
type CommentService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	profiles    repository.ProfileRepository
	files       storage.FileStore
	uploads     UploadRecorder
	events      publisher
	logger      *zap.Logger
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	ProfileRepo    repository.ProfileRepository
	Files          storage.FileStore
	Uploads        UploadRecorder
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := loggerOrNop(deps.Logger)
	return &CommentService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		profiles:    deps.ProfileRepo,
		files:       deps.Files,
		uploads:     deps.Uploads,
		events:      publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:      logger,
	}
}

// AddComment posts content to the ticket thread. Every file is stored before
// the comment is written; if any upload fails the stored files are removed and
// no comment is created.
func (s *CommentService) AddComment(ctx context.Context, actor domain.Actor, ticketID, content string, internal bool, files []domain.Upload) (*domain.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	content = plainText(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment content is required", map[string]any{"fields": []string{"content"}})
	}
	if internal && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only staff may post internal notes")
	}
	ticket, err := s.ticket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	stored, err := s.storeAll(ctx, actor, ticketID, files)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:    ticketID,
		AuthorID:    actor.ID,
		Content:     content,
		Internal:    internal,
		Attachments: stored,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.discard(ctx, stored)
		return nil, apperrors.MapError(err)
	}

	if s.profiles != nil {
		if author, err := s.profiles.GetByID(ctx, actor.ID); err == nil {
			author.PasswordHash = ""
			comment.Author = author
		}
	}
	s.events.publish(ctx, events.TopicComments, events.OpInsert, ticketID, ticket.UserID, actor.ID, commentRecord(comment))
	return comment, nil
}

// AttachToTicket stores a file directly on the ticket.
func (s *CommentService) AttachToTicket(ctx context.Context, actor domain.Actor, ticketID string, file domain.Upload) (*domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.ticket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	stored, err := s.storeAll(ctx, actor, ticketID, []domain.Upload{file})
	if err != nil {
		return nil, err
	}
	attachment := stored[0]
	attachment.TicketID = &ticketID
	if err := s.attachments.Create(ctx, &attachment); err != nil {
		s.discard(ctx, stored)
		return nil, apperrors.MapError(err)
	}
	s.events.publish(ctx, events.TopicAttachments, events.OpInsert, ticketID, ticket.UserID, actor.ID, attachment)
	return &attachment, nil
}

func (s *CommentService) ticket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
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

// storeAll uploads files in order. On the first failure everything stored so
// far is deleted and UPLOAD_FAILED is returned.
func (s *CommentService) storeAll(ctx context.Context, actor domain.Actor, ticketID string, files []domain.Upload) ([]domain.Attachment, error) {
	stored := make([]domain.Attachment, 0, len(files))
	for _, f := range files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		path := storage.ObjectPath(ticketID, f.Filename)
		obj, err := s.files.Upload(ctx, path, bytes.NewReader(f.Content), contentType)
		s.recordUpload(err == nil)
		if err != nil {
			s.logger.Warn("attachment upload failed", zap.String("ticket_id", ticketID), zap.String("file", f.Filename), zap.Error(err))
			s.discard(ctx, stored)
			return nil, apperrors.NewUploadFailed(f.Filename, err)
		}
		s.logger.Debug("attachment stored", zap.String("ticket_id", ticketID), zap.String("path", obj.Path), zap.String("blake3", obj.Digest))
		stored = append(stored, domain.Attachment{
			Filename:    storage.SanitizeFileName(f.Filename),
			FilePath:    obj.Path,
			URL:         obj.URL,
			FileSize:    obj.Size,
			ContentType: obj.ContentType,
			UploadedBy:  actor.ID,
		})
	}
	return stored, nil
}

func (s *CommentService) discard(ctx context.Context, stored []domain.Attachment) {
	for _, a := range stored {
		if err := s.files.Delete(context.WithoutCancel(ctx), a.FilePath); err != nil {
			s.logger.Warn("remove orphaned upload", zap.String("path", a.FilePath), zap.Error(err))
		}
	}
}

func (s *CommentService) recordUpload(ok bool) {
	if s.uploads != nil {
		s.uploads.RecordUpload(ok)
	}
}

type commentEventRecord struct {
	ID          string `json:"id"`
	TicketID    string `json:"ticket_id"`
	AuthorID    string `json:"author_id"`
	Internal    bool   `json:"is_internal"`
	Attachments int    `json:"attachments"`
}

func commentRecord(c *domain.Comment) commentEventRecord {
	return commentEventRecord{
		ID:          c.ID,
		TicketID:    c.TicketID,
		AuthorID:    c.AuthorID,
		Internal:    c.Internal,
		Attachments: len(c.Attachments),
	}
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	// ListPathsByTicket returns the storage paths of every file under the
	// ticket, including those attached to its comments.
	ListPathsByTicket(ctx context.Context, ticketID string) ([]string, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	return insertAttachment(ctx, r.db, attachment)
}

func (r *attachmentRepository) ListPathsByTicket(ctx context.Context, ticketID string) ([]string, error) {
	const query = `
        SELECT a.file_path FROM attachments a
        LEFT JOIN comments c ON c.id = a.comment_id
        WHERE a.ticket_id = $1 OR c.ticket_id = $1`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func insertAttachment(ctx context.Context, db DBTX, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (id, ticket_id, comment_id, filename, file_path, file_url, file_size, content_type, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at`
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	return db.QueryRow(ctx, query,
		attachment.ID,
		attachment.TicketID,
		attachment.CommentID,
		attachment.Filename,
		attachment.FilePath,
		attachment.URL,
		attachment.FileSize,
		attachment.ContentType,
		attachment.UploadedBy,
	).Scan(&attachment.CreatedAt)
}

// listAttachmentsByTickets returns every attachment under the tickets, with
// comment attachments keyed by the owning comment's ticket.
func listAttachmentsByTickets(ctx context.Context, db DBTX, ticketIDs []string) (map[string][]domain.Attachment, error) {
	const query = `
        SELECT a.id, a.ticket_id, a.comment_id, COALESCE(a.ticket_id, c.ticket_id)::text, a.filename, a.file_path,
               a.file_url, a.file_size, a.content_type, a.uploaded_by, a.created_at
        FROM attachments a
        LEFT JOIN comments c ON c.id = a.comment_id
        WHERE COALESCE(a.ticket_id, c.ticket_id)::text = ANY($1::text[])
        ORDER BY a.created_at ASC, a.id ASC`
	rows, err := db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]domain.Attachment{}
	for rows.Next() {
		var (
			attachment domain.Attachment
			owner      string
		)
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.CommentID,
			&owner,
			&attachment.Filename,
			&attachment.FilePath,
			&attachment.URL,
			&attachment.FileSize,
			&attachment.ContentType,
			&attachment.UploadedBy,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result[owner] = append(result[owner], attachment)
	}
	return result, rows.Err()
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CommentRepository persists ticket thread messages.
type CommentRepository interface {
	// Create inserts the comment and its attachment rows atomically.
	Create(ctx context.Context, comment *domain.Comment) error
}

type commentRepository struct {
	db TxBeginner
}

// NewCommentRepository builds repository.
func NewCommentRepository(db TxBeginner) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (id, ticket_id, author_id, content, is_internal)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			comment.ID,
			comment.TicketID,
			comment.AuthorID,
			comment.Content,
			comment.Internal,
		).Scan(&comment.CreatedAt); err != nil {
			return err
		}
		for i := range comment.Attachments {
			attachment := &comment.Attachments[i]
			attachment.CommentID = &comment.ID
			attachment.TicketID = nil
			if err := insertAttachment(ctx, tx, attachment); err != nil {
				return fmt.Errorf("insert attachment %s: %w", attachment.Filename, err)
			}
		}
		return nil
	})
}

// listCommentsByTickets returns the thread of each ticket, oldest first.
func listCommentsByTickets(ctx context.Context, db DBTX, ticketIDs []string) (map[string][]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, content, is_internal, created_at
        FROM comments WHERE ticket_id::text = ANY($1::text[]) ORDER BY created_at ASC, id ASC`
	rows, err := db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]domain.Comment{}
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Content,
			&comment.Internal,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result[comment.TicketID] = append(result[comment.TicketID], comment)
	}
	return result, rows.Err()
}

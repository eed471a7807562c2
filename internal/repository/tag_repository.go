package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TagRepository persists tags and their ticket associations.
type TagRepository interface {
	List(ctx context.Context) ([]domain.Tag, error)
	Create(ctx context.Context, tag *domain.Tag) error
	GetByID(ctx context.Context, id string) (*domain.Tag, error)
	// Attach links tag and ticket; it reports false when the link existed.
	Attach(ctx context.Context, ticketID, tagID string) (bool, error)
	// Detach removes the link; it reports false when there was none.
	Detach(ctx context.Context, ticketID, tagID string) (bool, error)
}

type tagRepository struct {
	db DBTX
}

// NewTagRepository builds repository.
func NewTagRepository(db DBTX) TagRepository {
	return &tagRepository{db: db}
}

const tagColumns = `g.id, g.name, g.color, g.created_by, g.created_at`

func (r *tagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tagColumns+` FROM tags g ORDER BY g.name ASC, g.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tag)
	}
	return result, rows.Err()
}

func (r *tagRepository) Create(ctx context.Context, tag *domain.Tag) error {
	const query = `
        INSERT INTO tags (id, name, color, created_by)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at`
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	return r.db.QueryRow(ctx, query, tag.ID, tag.Name, tag.Color, tag.CreatedBy).Scan(&tag.CreatedAt)
}

func (r *tagRepository) GetByID(ctx context.Context, id string) (*domain.Tag, error) {
	return scanTag(r.db.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags g WHERE g.id=$1`, id))
}

func (r *tagRepository) Attach(ctx context.Context, ticketID, tagID string) (bool, error) {
	cmd, err := r.db.Exec(ctx,
		`INSERT INTO ticket_tags (ticket_id, tag_id) VALUES ($1,$2) ON CONFLICT (ticket_id, tag_id) DO NOTHING`,
		ticketID, tagID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *tagRepository) Detach(ctx context.Context, ticketID, tagID string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_tags WHERE ticket_id=$1 AND tag_id=$2`, ticketID, tagID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanTag(row pgx.Row) (*domain.Tag, error) {
	var tag domain.Tag
	if err := row.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedBy, &tag.CreatedAt); err != nil {
		return nil, err
	}
	return &tag, nil
}

func listTagsByTickets(ctx context.Context, db DBTX, ticketIDs []string) (map[string][]domain.Tag, error) {
	const query = `
        SELECT tt.ticket_id::text, ` + tagColumns + `
        FROM ticket_tags tt JOIN tags g ON g.id = tt.tag_id
        WHERE tt.ticket_id::text = ANY($1::text[])
        ORDER BY g.name ASC, g.id ASC`
	rows, err := db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]domain.Tag{}
	for rows.Next() {
		var (
			ticketID string
			tag      domain.Tag
		)
		if err := rows.Scan(&ticketID, &tag.ID, &tag.Name, &tag.Color, &tag.CreatedBy, &tag.CreatedAt); err != nil {
			return nil, err
		}
		result[ticketID] = append(result[ticketID], tag)
	}
	return result, rows.Err()
}

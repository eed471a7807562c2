package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// RatingRepository stores one satisfaction rating per ticket.
type RatingRepository interface {
	// Upsert replaces any earlier rating of the ticket.
	Upsert(ctx context.Context, rating *domain.TicketRating) error
}

type ratingRepository struct {
	db DBTX
}

// NewRatingRepository builds repository.
func NewRatingRepository(db DBTX) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Upsert(ctx context.Context, rating *domain.TicketRating) error {
	const query = `
        INSERT INTO ticket_ratings (id, ticket_id, user_id, rating, feedback)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (ticket_id) DO UPDATE
            SET rating = EXCLUDED.rating, feedback = EXCLUDED.feedback, user_id = EXCLUDED.user_id, created_at = NOW()
        RETURNING id, created_at`
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	return r.db.QueryRow(ctx, query,
		rating.ID,
		rating.TicketID,
		rating.UserID,
		rating.Rating,
		rating.Feedback,
	).Scan(&rating.ID, &rating.CreatedAt)
}

func listRatingsByTickets(ctx context.Context, db DBTX, ticketIDs []string) (map[string]*domain.TicketRating, error) {
	const query = `
        SELECT id, ticket_id, user_id, rating, feedback, created_at
        FROM ticket_ratings WHERE ticket_id::text = ANY($1::text[])`
	rows, err := db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]*domain.TicketRating{}
	for rows.Next() {
		var rating domain.TicketRating
		if err := rows.Scan(&rating.ID, &rating.TicketID, &rating.UserID, &rating.Rating, &rating.Feedback, &rating.CreatedAt); err != nil {
			return nil, err
		}
		result[rating.TicketID] = &rating
	}
	return result, rows.Err()
}

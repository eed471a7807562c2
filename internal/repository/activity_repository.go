package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// activityRepository appends audit entries. Entries are never updated or
// deleted; they go away only with their ticket.
type activityRepository struct {
	db DBTX
}

func (r *activityRepository) create(ctx context.Context, db DBTX, activity *domain.TicketActivity) error {
	const query = `
        INSERT INTO ticket_activities (id, ticket_id, user_id, action_type, old_value, new_value, description)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	return db.QueryRow(ctx, query,
		activity.ID,
		activity.TicketID,
		activity.UserID,
		activity.ActionType,
		activity.OldValue,
		activity.NewValue,
		activity.Description,
	).Scan(&activity.CreatedAt)
}

// listByTickets returns the activity log of each ticket, oldest first.
func (r *activityRepository) listByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.TicketActivity, error) {
	const query = `
        SELECT id, ticket_id, user_id, action_type, old_value, new_value, description, created_at
        FROM ticket_activities WHERE ticket_id::text = ANY($1::text[]) ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]domain.TicketActivity{}
	for rows.Next() {
		var activity domain.TicketActivity
		if err := rows.Scan(
			&activity.ID,
			&activity.TicketID,
			&activity.UserID,
			&activity.ActionType,
			&activity.OldValue,
			&activity.NewValue,
			&activity.Description,
			&activity.CreatedAt,
		); err != nil {
			return nil, err
		}
		result[activity.TicketID] = append(result[activity.TicketID], activity)
	}
	return result, rows.Err()
}

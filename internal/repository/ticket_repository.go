package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes only the patched columns and appends the matching
	// activity entries in the same transaction.
	Update(ctx context.Context, id string, patch domain.TicketPatch, actorID string) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, q filter.Query) ([]domain.Ticket, error)
	Stats(ctx context.Context, ownerID *string, now time.Time) (domain.TicketStats, error)
}

type ticketRepository struct {
	db         TxBeginner
	activities *activityRepository
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db TxBeginner) TicketRepository {
	return &ticketRepository{db: db, activities: &activityRepository{db: db}}
}

const ticketColumns = `t.id, t.user_id, t.subject, t.description, t.status, t.priority, t.category,
               t.due_date, t.assigned_agent_id, t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, user_id, subject, description, status, priority, category, due_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusNew
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.UserID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.DueDate,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, id string, patch domain.TicketPatch, actorID string) (*domain.Ticket, error) {
	var updated *domain.Ticket
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		before, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		query, args := buildTicketUpdate(id, patch)
		after, err := scanTicket(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}

		for _, entry := range domain.DiffActivities(before, after, actorID) {
			if err := r.activities.create(ctx, tx, &entry); err != nil {
				return fmt.Errorf("record activity: %w", err)
			}
		}
		updated = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id=$1`, id))
	if err != nil {
		return nil, err
	}
	tickets := []domain.Ticket{*ticket}
	if err := hydrateTickets(ctx, r.db, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context, q filter.Query) ([]domain.Ticket, error) {
	query, args := buildTicketListQuery(q)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if err := hydrateTickets(ctx, r.db, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) Stats(ctx context.Context, ownerID *string, now time.Time) (domain.TicketStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'new'),
               COUNT(*) FILTER (WHERE status = 'in_progress'),
               COUNT(*) FILTER (WHERE status = 'pending'),
               COUNT(*) FILTER (WHERE status IN ('resolved', 'closed')),
               COUNT(*) FILTER (WHERE priority = 'critical'),
               COUNT(*) FILTER (WHERE due_date < $2 AND status NOT IN ('resolved', 'closed'))
        FROM tickets
        WHERE ($1::text IS NULL OR user_id::text = $1)`
	var stats domain.TicketStats
	err := r.db.QueryRow(ctx, query, ownerID, now).Scan(
		&stats.Total,
		&stats.New,
		&stats.InProgress,
		&stats.Pending,
		&stats.Resolved,
		&stats.Critical,
		&stats.Overdue,
	)
	return stats, err
}

// buildTicketListQuery renders q as a SELECT over tickets with positional args.
func buildTicketListQuery(q filter.Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, p := range q.Predicates {
		switch p.Kind {
		case filter.AnyOf:
			clauses = append(clauses, fmt.Sprintf("t.%s::text = ANY(%s::text[])", p.Column, arg(p.Values)))
		case filter.AllOf:
			clauses = append(clauses, fmt.Sprintf(
				"(SELECT COUNT(DISTINCT tt.tag_id) FROM ticket_tags tt WHERE tt.ticket_id = t.id AND tt.tag_id::text = ANY(%s::text[])) = %s",
				arg(p.Values), arg(len(p.Values))))
		case filter.Contains:
			if len(p.Values) == 0 {
				continue
			}
			pattern := arg("%" + escapeLike(p.Values[0]) + "%")
			ors := make([]string, len(p.Columns))
			for i, col := range p.Columns {
				ors[i] = fmt.Sprintf(`t.%s ILIKE %s ESCAPE '\'`, col, pattern)
			}
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		case filter.Between:
			if p.From != nil {
				clauses = append(clauses, fmt.Sprintf("t.%s >= %s", p.Column, arg(*p.From)))
			}
			if p.To != nil {
				clauses = append(clauses, fmt.Sprintf("t.%s <= %s", p.Column, arg(*p.To)))
			}
		}
	}

	var b strings.Builder
	b.WriteString("SELECT " + ticketColumns + " FROM tickets t")
	if len(clauses) > 0 {
		b.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}

	order := make([]string, 0, len(q.Order))
	for _, term := range q.Order {
		dir := "ASC"
		if term.Direction == filter.Desc {
			dir = "DESC"
		}
		order = append(order, orderExpression(term.Field)+" "+dir)
	}
	if len(order) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(order, ", "))
	}
	if q.Page.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Page.Limit))
	}
	if q.Page.Offset > 0 {
		b.WriteString(" OFFSET " + arg(q.Page.Offset))
	}
	return b.String(), args
}

func orderExpression(field filter.SortField) string {
	switch field {
	case filter.SortPriority:
		return rankCase("t.priority", domain.TicketPriorities)
	case filter.SortStatus:
		return rankCase("t.status", domain.TicketStatuses)
	case filter.SortCreatedAt, filter.SortUpdatedAt:
		return "t." + string(field)
	}
	return "t.id"
}

func rankCase[T ~string](column string, values []T) string {
	var b strings.Builder
	b.WriteString("CASE " + column)
	for i, v := range values {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", v, i+1)
	}
	b.WriteString(" ELSE 0 END")
	return b.String()
}

// buildTicketUpdate renders patch as an UPDATE touching only patched columns.
func buildTicketUpdate(id string, patch domain.TicketPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Subject != nil {
		set("subject", strings.TrimSpace(*patch.Subject))
	}
	if patch.Description != nil {
		set("description", strings.TrimSpace(*patch.Description))
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		set("priority", string(*patch.Priority))
	}
	if patch.Category != nil {
		set("category", strings.TrimSpace(*patch.Category))
	}
	if patch.DueDate != nil {
		set("due_date", *patch.DueDate)
	}
	if patch.ClearDueDate {
		sets = append(sets, "due_date=NULL")
	}
	if patch.AssignedAgentID != nil {
		set("assigned_agent_id", *patch.AssignedAgentID)
	}
	if patch.ClearAssignee {
		sets = append(sets, "assigned_agent_id=NULL")
	}
	sets = append(sets, "updated_at=NOW()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tickets t SET %s WHERE t.id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), ticketColumns)
	return query, args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.DueDate,
		&ticket.AssignedAgentID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

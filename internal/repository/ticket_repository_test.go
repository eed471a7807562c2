package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
)

func TestBuildTicketListQueryDefault(t *testing.T) {
	query, args := buildTicketListQuery(filter.Build(filter.Filter{}, filter.DefaultSort, filter.Page{}))

	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY t.created_at DESC, t.id ASC")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}

func TestBuildTicketListQueryPredicates(t *testing.T) {
	search := "50%_off"
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := filter.Filter{
		Search:      &search,
		Statuses:    []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusNew},
		Tags:        []string{"tag-a", "tag-b"},
		CreatedFrom: &from,
	}
	q := filter.Build(f, filter.Sort{Field: filter.SortPriority, Direction: filter.Asc}, filter.Page{Limit: 20, Offset: 40}).
		WithOwner("user-1")

	query, args := buildTicketListQuery(q)

	assert.Contains(t, query, `(t.subject ILIKE $1 ESCAPE '\' OR t.description ILIKE $1 ESCAPE '\')`)
	assert.Equal(t, `%50\%\_off%`, args[0])

	assert.Contains(t, query, "t.status::text = ANY($2::text[])")
	assert.Equal(t, []string{"new", "open"}, args[1])

	assert.Contains(t, query, "tt.tag_id::text = ANY($3::text[])) = $4")
	assert.Equal(t, []string{"tag-a", "tag-b"}, args[2])
	assert.Equal(t, 2, args[3])

	assert.Contains(t, query, "t.created_at >= $5")
	assert.Contains(t, query, "t.user_id::text = ANY($6::text[])")
	assert.Equal(t, []string{"user-1"}, args[5])

	assert.Contains(t, query, "ORDER BY CASE t.priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'critical' THEN 4 ELSE 0 END ASC, t.id ASC")
	assert.Contains(t, query, "LIMIT $7 OFFSET $8")
	require.Len(t, args, 8)
	assert.Equal(t, 20, args[6])
	assert.Equal(t, 40, args[7])
}

func TestBuildTicketListQueryBlankSearchIsIgnored(t *testing.T) {
	blank := "   "
	query, args := buildTicketListQuery(filter.Build(filter.Filter{Search: &blank}, filter.DefaultSort, filter.Page{}))
	assert.NotContains(t, query, "ILIKE")
	assert.Empty(t, args)
}

func TestBuildTicketUpdateOnlyTouchesPatchedColumns(t *testing.T) {
	status := domain.TicketStatusResolved
	subject := "  Printer still jammed  "
	query, args := buildTicketUpdate("t-1", domain.TicketPatch{
		Subject:       &subject,
		Status:        &status,
		ClearAssignee: true,
	})

	assert.Contains(t, query, "SET subject=$1, status=$2, assigned_agent_id=NULL, updated_at=NOW() WHERE t.id=$3")
	assert.NotContains(t, query, "priority=")
	assert.NotContains(t, query, "description=")
	assert.Equal(t, []any{"Printer still jammed", "resolved", "t-1"}, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\\b\%c\_d`, escapeLike(`a\b%c_d`))
}

func TestAssembleTicketDistributesRelations(t *testing.T) {
	agentID := "agent-1"
	commentID := "c-1"
	ticket := domain.Ticket{ID: "t-1", UserID: "u-1", AssignedAgentID: &agentID}
	profiles := map[string]*domain.Profile{
		"u-1":     {ID: "u-1", Name: "Ann", PasswordHash: "secret"},
		"agent-1": {ID: "agent-1", Name: "Bo", Role: domain.RoleAgent},
	}
	attachments := []domain.Attachment{
		{ID: "a-1", CommentID: &commentID, Filename: "log.txt"},
		{ID: "a-2", Filename: "screenshot.png"},
	}
	comments := []domain.Comment{{ID: commentID, TicketID: "t-1", AuthorID: "agent-1"}}
	activities := []domain.TicketActivity{{ID: "x", UserID: "u-1"}}

	assembleTicket(&ticket, profiles, nil, comments, attachments, activities, nil)

	require.NotNil(t, ticket.User)
	assert.Empty(t, ticket.User.PasswordHash)
	assert.Equal(t, "secret", profiles["u-1"].PasswordHash, "source profile untouched")
	assert.Equal(t, "Bo", ticket.AssignedAgent.Name)
	require.Len(t, ticket.Attachments, 1)
	assert.Equal(t, "a-2", ticket.Attachments[0].ID)
	require.Len(t, ticket.Comments[0].Attachments, 1)
	assert.Equal(t, "a-1", ticket.Comments[0].Attachments[0].ID)
	assert.Equal(t, "Bo", ticket.Comments[0].Author.Name)
	assert.Equal(t, "Ann", ticket.Activities[0].User.Name)
}

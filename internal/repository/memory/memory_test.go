package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func seed(t *testing.T, db *DB) (domain.Profile, domain.Ticket) {
	t.Helper()
	ctx := context.Background()
	owner := domain.Profile{Email: "Ann@Example.com", Name: "Ann", PasswordHash: "x"}
	require.NoError(t, db.Profiles().Create(ctx, &owner))
	ticket := domain.Ticket{UserID: owner.ID, Subject: "VPN down", Description: "cannot connect"}
	require.NoError(t, db.Tickets().Create(ctx, &ticket))
	return owner, ticket
}

func TestProfilesAreUniqueByEmail(t *testing.T) {
	db := New()
	owner, _ := seed(t, db)
	assert.Equal(t, "ann@example.com", owner.Email)

	dup := domain.Profile{Email: "ann@example.com"}
	err := db.Profiles().Create(context.Background(), &dup)
	assert.True(t, apperrors.HasCode(apperrors.MapError(err), apperrors.CodeConflict))
}

func TestTagLinksAreIdempotent(t *testing.T) {
	db := New()
	ctx := context.Background()
	_, ticket := seed(t, db)
	tag := domain.Tag{Name: "network", Color: "#3b82f6"}
	require.NoError(t, db.Tags().Create(ctx, &tag))

	added, err := db.Tags().Attach(ctx, ticket.ID, tag.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = db.Tags().Attach(ctx, ticket.ID, tag.ID)
	require.NoError(t, err)
	assert.False(t, added)

	removed, err := db.Tags().Detach(ctx, ticket.ID, tag.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = db.Tags().Detach(ctx, ticket.ID, tag.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	tags, err := db.Tags().List(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1, "detaching never deletes the tag")
}

func TestDeleteCascades(t *testing.T) {
	db := New()
	ctx := context.Background()
	owner, ticket := seed(t, db)

	comment := domain.Comment{TicketID: ticket.ID, AuthorID: owner.ID, Content: "hi",
		Attachments: []domain.Attachment{{Filename: "a.txt", FilePath: "tickets/x/a.txt"}}}
	require.NoError(t, db.Comments().Create(ctx, &comment))
	direct := domain.Attachment{TicketID: &ticket.ID, Filename: "b.txt", FilePath: "tickets/x/b.txt"}
	require.NoError(t, db.Attachments().Create(ctx, &direct))

	paths, err := db.Attachments().ListPathsByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tickets/x/a.txt", "tickets/x/b.txt"}, paths)

	require.NoError(t, db.Tickets().Delete(ctx, ticket.ID))
	paths, err = db.Attachments().ListPathsByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, paths)

	list, err := db.Tickets().List(ctx, filter.Build(filter.Filter{}, filter.DefaultSort, filter.Page{}))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateRecordsActivities(t *testing.T) {
	db := New()
	ctx := context.Background()
	owner, ticket := seed(t, db)

	status := domain.TicketStatusInProgress
	updated, err := db.Tickets().Update(ctx, ticket.ID, domain.TicketPatch{Status: &status}, owner.ID)
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(ticket.UpdatedAt))
	require.Len(t, updated.Activities, 1)
	assert.Equal(t, domain.ActionStatusChanged, updated.Activities[0].ActionType)
	assert.Equal(t, "Ann", updated.Activities[0].User.Name)
	assert.Empty(t, updated.User.PasswordHash)
}

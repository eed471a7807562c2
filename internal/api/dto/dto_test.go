package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/realtime"
)

func TestTicketResponseHidesPasswordHash(t *testing.T) {
	ticket := &domain.Ticket{
		ID:     "t-1",
		UserID: "u-1",
		User:   &domain.Profile{ID: "u-1", Name: "Ann", PasswordHash: "$2a$secret"},
	}
	raw, err := json.Marshal(NewTicketResponse(ticket))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), `"tags":[]`)
}

func TestTicketResponseRoundTripKeepsRelations(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	commentID := "c-1"
	feedback := "thanks"
	in := domain.Ticket{
		ID:        "t-1",
		UserID:    "u-1",
		Subject:   "VPN",
		Status:    domain.TicketStatusResolved,
		Priority:  domain.TicketPriorityHigh,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []domain.Tag{{ID: "g-1", Name: "network", Color: "#000000"}},
		Comments: []domain.Comment{{
			ID: commentID, TicketID: "t-1", Content: "fixed", Internal: true,
			Attachments: []domain.Attachment{{ID: "a-1", CommentID: &commentID, Filename: "log.txt"}},
		}},
		Rating: &domain.TicketRating{TicketID: "t-1", Rating: 5, Feedback: &feedback},
	}

	raw, err := json.Marshal(NewTicketResponse(&in))
	require.NoError(t, err)
	var decoded TicketResponse
	require.NoError(t, json.Unmarshal(raw, &decoded))
	out := decoded.Domain()

	assert.Equal(t, in.Subject, out.Subject)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.Tags, out.Tags)
	require.Len(t, out.Comments, 1)
	assert.True(t, out.Comments[0].Internal)
	assert.Equal(t, "log.txt", out.Comments[0].Attachments[0].Filename)
	assert.Equal(t, 5, out.Rating.Rating)
}

func TestUpdateTicketRequestOmitsUntouchedFields(t *testing.T) {
	status := domain.TicketStatusPending
	raw, err := json.Marshal(NewUpdateTicketRequest(domain.TicketPatch{Status: &status, ClearAssignee: true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"pending","clear_assignee":true}`, string(raw))

	var req UpdateTicketRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	patch := req.Patch()
	assert.Equal(t, domain.TicketStatusPending, *patch.Status)
	assert.True(t, patch.ClearAssignee)
	assert.Nil(t, patch.Subject)
}

func TestNotificationResponse(t *testing.T) {
	n := realtime.Notification{Kind: realtime.KindRecord, Topic: "tickets", TicketID: "t-1", Ticket: &domain.Ticket{ID: "t-1", Subject: "x"}}
	raw, err := json.Marshal(NewNotificationResponse(n))
	require.NoError(t, err)

	var decoded NotificationResponse
	require.NoError(t, json.Unmarshal(raw, &decoded))
	back := decoded.Domain()
	assert.Equal(t, realtime.KindRecord, back.Kind)
	require.NotNil(t, back.Ticket)
	assert.Equal(t, "x", back.Ticket.Subject)
}

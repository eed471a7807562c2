package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// hydrateTickets loads the relations of every ticket in place: owner,
// assignee, tags, comments with authors and files, ticket-level files,
// activity log and rating.
func hydrateTickets(ctx context.Context, db DBTX, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}

	tags, err := listTagsByTickets(ctx, db, ids)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	comments, err := listCommentsByTickets(ctx, db, ids)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	attachments, err := listAttachmentsByTickets(ctx, db, ids)
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	activities, err := (&activityRepository{db: db}).listByTickets(ctx, ids)
	if err != nil {
		return fmt.Errorf("load activities: %w", err)
	}
	ratings, err := listRatingsByTickets(ctx, db, ids)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}

	var profileIDs []string
	for i := range tickets {
		profileIDs = append(profileIDs, tickets[i].UserID)
		if tickets[i].AssignedAgentID != nil {
			profileIDs = append(profileIDs, *tickets[i].AssignedAgentID)
		}
	}
	for _, thread := range comments {
		for _, c := range thread {
			profileIDs = append(profileIDs, c.AuthorID)
		}
	}
	for _, log := range activities {
		for _, a := range log {
			profileIDs = append(profileIDs, a.UserID)
		}
	}
	profiles, err := loadProfiles(ctx, db, profileIDs)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	for i := range tickets {
		assembleTicket(&tickets[i], profiles, tags[tickets[i].ID], comments[tickets[i].ID],
			attachments[tickets[i].ID], activities[tickets[i].ID], ratings[tickets[i].ID])
	}
	return nil
}

// assembleTicket attaches loaded relations to t. Password hashes never leave
// the repository through a relation.
func assembleTicket(
	t *domain.Ticket,
	profiles map[string]*domain.Profile,
	tags []domain.Tag,
	comments []domain.Comment,
	attachments []domain.Attachment,
	activities []domain.TicketActivity,
	rating *domain.TicketRating,
) {
	t.User = publicProfile(profiles[t.UserID])
	if t.AssignedAgentID != nil {
		t.AssignedAgent = publicProfile(profiles[*t.AssignedAgentID])
	}
	t.Tags = tags
	t.Rating = rating

	byComment := map[string][]domain.Attachment{}
	t.Attachments = nil
	for _, a := range attachments {
		if a.CommentID != nil {
			byComment[*a.CommentID] = append(byComment[*a.CommentID], a)
			continue
		}
		t.Attachments = append(t.Attachments, a)
	}

	t.Comments = comments
	for i := range t.Comments {
		t.Comments[i].Author = publicProfile(profiles[t.Comments[i].AuthorID])
		t.Comments[i].Attachments = byComment[t.Comments[i].ID]
	}

	t.Activities = activities
	for i := range t.Activities {
		t.Activities[i].User = publicProfile(profiles[t.Activities[i].UserID])
	}
}

func publicProfile(p *domain.Profile) *domain.Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.PasswordHash = ""
	return &out
}

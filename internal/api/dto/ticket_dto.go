package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority,omitempty"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
}

// Draft converts the payload into a ticket draft.
func (r CreateTicketRequest) Draft() domain.TicketDraft {
	return domain.TicketDraft{
		Subject:     r.Subject,
		Description: r.Description,
		Category:    r.Category,
		Priority:    r.Priority,
		DueDate:     r.DueDate,
	}
}

// NewCreateTicketRequest is the inverse of Draft.
func NewCreateTicketRequest(d domain.TicketDraft) CreateTicketRequest {
	return CreateTicketRequest{
		Subject:     d.Subject,
		Description: d.Description,
		Category:    d.Category,
		Priority:    d.Priority,
		DueDate:     d.DueDate,
	}
}

// UpdateTicketRequest is a partial update. Absent fields stay unchanged;
// the clear flags null out optional columns.
type UpdateTicketRequest struct {
	Subject         *string                `json:"subject,omitempty"`
	Description     *string                `json:"description,omitempty"`
	Status          *domain.TicketStatus   `json:"status,omitempty"`
	Priority        *domain.TicketPriority `json:"priority,omitempty"`
	Category        *string                `json:"category,omitempty"`
	DueDate         *time.Time             `json:"due_date,omitempty"`
	ClearDueDate    bool                   `json:"clear_due_date,omitempty"`
	AssignedAgentID *string                `json:"assigned_agent_id,omitempty"`
	ClearAssignee   bool                   `json:"clear_assignee,omitempty"`
}

// Patch converts the payload into a ticket patch.
func (r UpdateTicketRequest) Patch() domain.TicketPatch {
	return domain.TicketPatch{
		Subject:         r.Subject,
		Description:     r.Description,
		Status:          r.Status,
		Priority:        r.Priority,
		Category:        r.Category,
		DueDate:         r.DueDate,
		ClearDueDate:    r.ClearDueDate,
		AssignedAgentID: r.AssignedAgentID,
		ClearAssignee:   r.ClearAssignee,
	}
}

// NewUpdateTicketRequest is the inverse of Patch.
func NewUpdateTicketRequest(p domain.TicketPatch) UpdateTicketRequest {
	return UpdateTicketRequest{
		Subject:         p.Subject,
		Description:     p.Description,
		Status:          p.Status,
		Priority:        p.Priority,
		Category:        p.Category,
		DueDate:         p.DueDate,
		ClearDueDate:    p.ClearDueDate,
		AssignedAgentID: p.AssignedAgentID,
		ClearAssignee:   p.ClearAssignee,
	}
}

// RateTicketRequest payload.
type RateTicketRequest struct {
	Rating   int     `json:"rating"`
	Feedback *string `json:"feedback,omitempty"`
}

// CreateTagRequest payload.
type CreateTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// TicketResponse is a ticket with every loaded relation.
type TicketResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Category        *string               `json:"category"`
	DueDate         *time.Time            `json:"due_date"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`

	User          *ProfileResponse     `json:"user,omitempty"`
	AssignedAgent *ProfileResponse     `json:"assigned_agent,omitempty"`
	Tags          []TagResponse        `json:"tags"`
	Comments      []CommentResponse    `json:"comments"`
	Attachments   []AttachmentResponse `json:"attachments"`
	Activities    []ActivityResponse   `json:"activities"`
	Rating        *RatingResponse      `json:"rating,omitempty"`
}

// NewTicketResponse maps a ticket for the wire.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Subject:         t.Subject,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		Category:        t.Category,
		DueDate:         t.DueDate,
		AssignedAgentID: t.AssignedAgentID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		User:            profileOrNil(t.User),
		AssignedAgent:   profileOrNil(t.AssignedAgent),
		Tags:            make([]TagResponse, 0, len(t.Tags)),
		Comments:        make([]CommentResponse, 0, len(t.Comments)),
		Attachments:     make([]AttachmentResponse, 0, len(t.Attachments)),
		Activities:      make([]ActivityResponse, 0, len(t.Activities)),
	}
	for i := range t.Tags {
		resp.Tags = append(resp.Tags, NewTagResponse(&t.Tags[i]))
	}
	for i := range t.Comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&t.Comments[i]))
	}
	for i := range t.Attachments {
		resp.Attachments = append(resp.Attachments, NewAttachmentResponse(&t.Attachments[i]))
	}
	for i := range t.Activities {
		resp.Activities = append(resp.Activities, newActivityResponse(&t.Activities[i]))
	}
	if t.Rating != nil {
		rating := NewRatingResponse(t.Rating)
		resp.Rating = &rating
	}
	return resp
}

// NewTicketResponses maps a list of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// Domain converts the response back into a ticket.
func (r TicketResponse) Domain() domain.Ticket {
	t := domain.Ticket{
		ID:              r.ID,
		UserID:          r.UserID,
		Subject:         r.Subject,
		Description:     r.Description,
		Status:          r.Status,
		Priority:        r.Priority,
		Category:        r.Category,
		DueDate:         r.DueDate,
		AssignedAgentID: r.AssignedAgentID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		User:            r.User.domainOrNil(),
		AssignedAgent:   r.AssignedAgent.domainOrNil(),
	}
	for _, tag := range r.Tags {
		t.Tags = append(t.Tags, tag.Domain())
	}
	for _, c := range r.Comments {
		t.Comments = append(t.Comments, c.Domain())
	}
	for _, a := range r.Attachments {
		t.Attachments = append(t.Attachments, a.Domain())
	}
	for _, a := range r.Activities {
		t.Activities = append(t.Activities, a.domain())
	}
	if r.Rating != nil {
		rating := r.Rating.Domain()
		t.Rating = &rating
	}
	return t
}

// CommentResponse is one thread message.
type CommentResponse struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticket_id"`
	AuthorID    string               `json:"author_id"`
	Content     string               `json:"content"`
	Internal    bool                 `json:"is_internal"`
	CreatedAt   time.Time            `json:"created_at"`
	Author      *ProfileResponse     `json:"author,omitempty"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// NewCommentResponse maps a comment for the wire.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	resp := CommentResponse{
		ID:          c.ID,
		TicketID:    c.TicketID,
		AuthorID:    c.AuthorID,
		Content:     c.Content,
		Internal:    c.Internal,
		CreatedAt:   c.CreatedAt,
		Author:      profileOrNil(c.Author),
		Attachments: make([]AttachmentResponse, 0, len(c.Attachments)),
	}
	for i := range c.Attachments {
		resp.Attachments = append(resp.Attachments, NewAttachmentResponse(&c.Attachments[i]))
	}
	return resp
}

// Domain converts the response back into a comment.
func (r CommentResponse) Domain() domain.Comment {
	c := domain.Comment{
		ID:        r.ID,
		TicketID:  r.TicketID,
		AuthorID:  r.AuthorID,
		Content:   r.Content,
		Internal:  r.Internal,
		CreatedAt: r.CreatedAt,
		Author:    r.Author.domainOrNil(),
	}
	for _, a := range r.Attachments {
		c.Attachments = append(c.Attachments, a.Domain())
	}
	return c
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID          string    `json:"id"`
	TicketID    *string   `json:"ticket_id,omitempty"`
	CommentID   *string   `json:"comment_id,omitempty"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	URL         string    `json:"file_url"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAttachmentResponse maps attachment metadata for the wire.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		CommentID:   a.CommentID,
		Filename:    a.Filename,
		FilePath:    a.FilePath,
		URL:         a.URL,
		FileSize:    a.FileSize,
		ContentType: a.ContentType,
		UploadedBy:  a.UploadedBy,
		CreatedAt:   a.CreatedAt,
	}
}

// Domain converts the response back into an attachment.
func (r AttachmentResponse) Domain() domain.Attachment {
	return domain.Attachment{
		ID:          r.ID,
		TicketID:    r.TicketID,
		CommentID:   r.CommentID,
		Filename:    r.Filename,
		FilePath:    r.FilePath,
		URL:         r.URL,
		FileSize:    r.FileSize,
		ContentType: r.ContentType,
		UploadedBy:  r.UploadedBy,
		CreatedAt:   r.CreatedAt,
	}
}

// TagResponse is a label.
type TagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedBy *string   `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTagResponse maps a tag for the wire.
func NewTagResponse(t *domain.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, Color: t.Color, CreatedBy: t.CreatedBy, CreatedAt: t.CreatedAt}
}

// Domain converts the response back into a tag.
func (r TagResponse) Domain() domain.Tag {
	return domain.Tag{ID: r.ID, Name: r.Name, Color: r.Color, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt}
}

// ActivityResponse is an audit trail entry.
type ActivityResponse struct {
	ID          string                `json:"id"`
	TicketID    string                `json:"ticket_id"`
	UserID      string                `json:"user_id"`
	ActionType  domain.ActivityAction `json:"action_type"`
	OldValue    *string               `json:"old_value"`
	NewValue    *string               `json:"new_value"`
	Description string                `json:"description"`
	CreatedAt   time.Time             `json:"created_at"`
	User        *ProfileResponse      `json:"user,omitempty"`
}

func newActivityResponse(a *domain.TicketActivity) ActivityResponse {
	return ActivityResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		UserID:      a.UserID,
		ActionType:  a.ActionType,
		OldValue:    a.OldValue,
		NewValue:    a.NewValue,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		User:        profileOrNil(a.User),
	}
}

func (r ActivityResponse) domain() domain.TicketActivity {
	return domain.TicketActivity{
		ID:          r.ID,
		TicketID:    r.TicketID,
		UserID:      r.UserID,
		ActionType:  r.ActionType,
		OldValue:    r.OldValue,
		NewValue:    r.NewValue,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		User:        r.User.domainOrNil(),
	}
}

// RatingResponse is a satisfaction score.
type RatingResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Feedback  *string   `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRatingResponse maps a rating for the wire.
func NewRatingResponse(r *domain.TicketRating) RatingResponse {
	return RatingResponse{ID: r.ID, TicketID: r.TicketID, UserID: r.UserID, Rating: r.Rating, Feedback: r.Feedback, CreatedAt: r.CreatedAt}
}

// Domain converts the response back into a rating.
func (r RatingResponse) Domain() domain.TicketRating {
	return domain.TicketRating{ID: r.ID, TicketID: r.TicketID, UserID: r.UserID, Rating: r.Rating, Feedback: r.Feedback, CreatedAt: r.CreatedAt}
}

// StatsResponse summarizes visible tickets.
type StatsResponse struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
	Resolved   int `json:"resolved"`
	Critical   int `json:"critical"`
	Overdue    int `json:"overdue"`
}

// NewStatsResponse maps stats for the wire.
func NewStatsResponse(s domain.TicketStats) StatsResponse {
	return StatsResponse(s)
}

// Domain converts the response back into stats.
func (r StatsResponse) Domain() domain.TicketStats {
	return domain.TicketStats(r)
}

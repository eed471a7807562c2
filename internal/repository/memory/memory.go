// Package memory implements the repository interfaces in process. The API
// falls back to it when no database is configured; tests use it as a fake.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// DB holds every table behind one lock.
type DB struct {
	mu          sync.RWMutex
	now         func() time.Time
	profiles    map[string]domain.Profile
	tickets     map[string]domain.Ticket
	comments    map[string]domain.Comment
	attachments map[string]domain.Attachment
	tags        map[string]domain.Tag
	ticketTags  map[string]map[string]struct{}
	activities  []domain.TicketActivity
	ratings     map[string]domain.TicketRating
	lastCreated time.Time
}

// New returns an empty database.
func New() *DB {
	return &DB{
		now:         func() time.Time { return time.Now().UTC() },
		profiles:    map[string]domain.Profile{},
		tickets:     map[string]domain.Ticket{},
		comments:    map[string]domain.Comment{},
		attachments: map[string]domain.Attachment{},
		tags:        map[string]domain.Tag{},
		ticketTags:  map[string]map[string]struct{}{},
		ratings:     map[string]domain.TicketRating{},
	}
}

// SetClock replaces the timestamp source.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// Repository views over the same tables.
func (db *DB) Tickets() repository.TicketRepository         { return ticketRepo{db} }
func (db *DB) Comments() repository.CommentRepository       { return commentRepo{db} }
func (db *DB) Attachments() repository.AttachmentRepository { return attachmentRepo{db} }
func (db *DB) Ratings() repository.RatingRepository         { return ratingRepo{db} }
func (db *DB) Tags() repository.TagRepository               { return tagRepo{db} }
func (db *DB) Profiles() repository.ProfileRepository       { return profileRepo{db} }

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value"}
}

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "foreign key violation"}
}

type ticketRepo struct{ db *DB }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.profiles[t.UserID]; !ok {
		return foreignKeyViolation("tickets_user_id_fkey")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusNew
	}
	if t.Priority == "" {
		t.Priority = domain.TicketPriorityMedium
	}
	// creation order stays total even when the clock does not advance
	now := db.now()
	if !now.After(db.lastCreated) {
		now = db.lastCreated.Add(time.Microsecond)
	}
	db.lastCreated = now
	t.CreatedAt, t.UpdatedAt = now, now
	db.tickets[t.ID] = scalar(*t)
	return nil
}

func (r ticketRepo) Update(_ context.Context, id string, patch domain.TicketPatch, actorID string) (*domain.Ticket, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	before, ok := db.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.AssignedAgentID != nil {
		if _, ok := db.profiles[*patch.AssignedAgentID]; !ok {
			return nil, foreignKeyViolation("tickets_assigned_agent_id_fkey")
		}
	}
	after := before
	patch.Apply(&after)
	after.UpdatedAt = db.now()
	if !after.UpdatedAt.After(before.UpdatedAt) {
		after.UpdatedAt = before.UpdatedAt.Add(time.Microsecond)
	}
	for _, entry := range domain.DiffActivities(&before, &after, actorID) {
		entry.ID = uuid.NewString()
		entry.CreatedAt = after.UpdatedAt
		db.activities = append(db.activities, entry)
	}
	db.tickets[id] = scalar(after)
	out := db.hydrate(after)
	return &out, nil
}

func (r ticketRepo) Delete(_ context.Context, id string) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(db.tickets, id)
	delete(db.ticketTags, id)
	delete(db.ratings, id)
	for aid, a := range db.attachments {
		if db.attachmentTicket(a) == id {
			delete(db.attachments, aid)
		}
	}
	for cid, c := range db.comments {
		if c.TicketID == id {
			delete(db.comments, cid)
		}
	}
	kept := db.activities[:0]
	for _, a := range db.activities {
		if a.TicketID != id {
			kept = append(kept, a)
		}
	}
	db.activities = kept
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := db.hydrate(t)
	return &out, nil
}

func (r ticketRepo) List(_ context.Context, q filter.Query) ([]domain.Ticket, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	all := make([]domain.Ticket, 0, len(db.tickets))
	for _, t := range db.tickets {
		all = append(all, db.hydrate(t))
	}
	return q.Apply(all), nil
}

func (r ticketRepo) Stats(_ context.Context, ownerID *string, now time.Time) (domain.TicketStats, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	var visible []domain.Ticket
	for _, t := range db.tickets {
		if ownerID == nil || t.UserID == *ownerID {
			visible = append(visible, t)
		}
	}
	return domain.SummarizeTickets(visible, now), nil
}

// attachmentTicket returns the ticket an attachment belongs to, directly or
// through its comment. Caller holds the lock.
func (db *DB) attachmentTicket(a domain.Attachment) string {
	if a.TicketID != nil {
		return *a.TicketID
	}
	if a.CommentID != nil {
		if c, ok := db.comments[*a.CommentID]; ok {
			return c.TicketID
		}
	}
	return ""
}

// hydrate assembles relations for t. Caller holds the lock.
func (db *DB) hydrate(t domain.Ticket) domain.Ticket {
	out := scalar(t)
	out.User = db.profile(t.UserID)
	if t.AssignedAgentID != nil {
		out.AssignedAgent = db.profile(*t.AssignedAgentID)
	}
	for tagID := range db.ticketTags[t.ID] {
		if tag, ok := db.tags[tagID]; ok {
			out.Tags = append(out.Tags, tag)
		}
	}
	sort.Slice(out.Tags, func(i, j int) bool { return out.Tags[i].Name < out.Tags[j].Name })

	byComment := map[string][]domain.Attachment{}
	for _, a := range db.attachments {
		switch {
		case a.CommentID != nil:
			byComment[*a.CommentID] = append(byComment[*a.CommentID], a)
		case a.TicketID != nil && *a.TicketID == t.ID:
			out.Attachments = append(out.Attachments, a)
		}
	}
	sortAttachments(out.Attachments)

	for _, c := range db.comments {
		if c.TicketID != t.ID {
			continue
		}
		c.Author = db.profile(c.AuthorID)
		c.Attachments = byComment[c.ID]
		sortAttachments(c.Attachments)
		out.Comments = append(out.Comments, c)
	}
	sort.Slice(out.Comments, func(i, j int) bool {
		a, b := out.Comments[i], out.Comments[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	for _, a := range db.activities {
		if a.TicketID == t.ID {
			a.User = db.profile(a.UserID)
			out.Activities = append(out.Activities, a)
		}
	}
	if rating, ok := db.ratings[t.ID]; ok {
		out.Rating = &rating
	}
	return out
}

func (db *DB) profile(id string) *domain.Profile {
	p, ok := db.profiles[id]
	if !ok {
		return nil
	}
	p.PasswordHash = ""
	return &p
}

func sortAttachments(list []domain.Attachment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

// scalar drops relations so stored rows never alias caller slices.
func scalar(t domain.Ticket) domain.Ticket {
	return domain.Ticket{
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
	}
}

type commentRepo struct{ db *DB }

func (r commentRepo) Create(_ context.Context, c *domain.Comment) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tickets[c.TicketID]; !ok {
		return foreignKeyViolation("comments_ticket_id_fkey")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = db.now()
	for i := range c.Attachments {
		a := &c.Attachments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CommentID = &c.ID
		a.TicketID = nil
		a.CreatedAt = c.CreatedAt
		db.attachments[a.ID] = *a
	}
	stored := *c
	stored.Attachments = nil
	stored.Author = nil
	db.comments[c.ID] = stored
	return nil
}

type attachmentRepo struct{ db *DB }

func (r attachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if a.TicketID != nil {
		if _, ok := db.tickets[*a.TicketID]; !ok {
			return foreignKeyViolation("attachments_ticket_id_fkey")
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = db.now()
	db.attachments[a.ID] = *a
	return nil
}

func (r attachmentRepo) ListPathsByTicket(_ context.Context, ticketID string) ([]string, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	var paths []string
	for _, a := range db.attachments {
		if db.attachmentTicket(a) == ticketID {
			paths = append(paths, a.FilePath)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

type ratingRepo struct{ db *DB }

func (r ratingRepo) Upsert(_ context.Context, rating *domain.TicketRating) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if existing, ok := db.ratings[rating.TicketID]; ok {
		rating.ID = existing.ID
	} else if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	rating.CreatedAt = db.now()
	db.ratings[rating.TicketID] = *rating
	return nil
}

type tagRepo struct{ db *DB }

func (r tagRepo) List(context.Context) ([]domain.Tag, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.Tag, 0, len(db.tags))
	for _, t := range db.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r tagRepo) Create(_ context.Context, tag *domain.Tag) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.tags {
		if existing.Name == tag.Name {
			return uniqueViolation("tags_name_key")
		}
	}
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	tag.CreatedAt = db.now()
	db.tags[tag.ID] = *tag
	return nil
}

func (r tagRepo) GetByID(_ context.Context, id string) (*domain.Tag, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	tag, ok := db.tags[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &tag, nil
}

func (r tagRepo) Attach(_ context.Context, ticketID, tagID string) (bool, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tickets[ticketID]; !ok {
		return false, foreignKeyViolation("ticket_tags_ticket_id_fkey")
	}
	if _, ok := db.tags[tagID]; !ok {
		return false, foreignKeyViolation("ticket_tags_tag_id_fkey")
	}
	links := db.ticketTags[ticketID]
	if links == nil {
		links = map[string]struct{}{}
		db.ticketTags[ticketID] = links
	}
	if _, ok := links[tagID]; ok {
		return false, nil
	}
	links[tagID] = struct{}{}
	return true, nil
}

func (r tagRepo) Detach(_ context.Context, ticketID, tagID string) (bool, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	links := db.ticketTags[ticketID]
	if _, ok := links[tagID]; !ok {
		return false, nil
	}
	delete(links, tagID)
	return true, nil
}

type profileRepo struct{ db *DB }

func (r profileRepo) Create(_ context.Context, p *domain.Profile) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	for _, existing := range db.profiles {
		if existing.Email == p.Email {
			return uniqueViolation("profiles_email_key")
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = domain.RoleUser
	}
	now := db.now()
	p.CreatedAt, p.UpdatedAt = now, now
	db.profiles[p.ID] = *p
	return nil
}

func (r profileRepo) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r profileRepo) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range db.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r profileRepo) ListByRole(_ context.Context, roles ...domain.Role) ([]domain.Profile, error) {
	db := r.db
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []domain.Profile
	for _, p := range db.profiles {
		for _, role := range roles {
			if p.Role == role {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

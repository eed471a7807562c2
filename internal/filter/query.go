package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Column identifies a ticket attribute a predicate applies to.
type Column string

const (
	ColumnStatus        Column = "status"
	ColumnPriority      Column = "priority"
	ColumnAssignedAgent Column = "assigned_agent_id"
	ColumnUser          Column = "user_id"
	ColumnTags          Column = "tags"
	ColumnSubject       Column = "subject"
	ColumnDescription   Column = "description"
	ColumnCreatedAt     Column = "created_at"
	ColumnID            Column = "id"
)

// PredicateKind selects how a predicate is evaluated.
type PredicateKind int

const (
	// AnyOf matches when the column equals one of Values.
	AnyOf PredicateKind = iota + 1
	// AllOf matches when the ticket carries every value in Values.
	AllOf
	// Contains is a case-insensitive substring match of Values[0] against any of Columns.
	Contains
	// Between bounds a timestamp column inclusively; either end may be nil.
	Between
)

// Predicate is one constraint of a Query.
type Predicate struct {
	Kind    PredicateKind
	Column  Column
	Columns []Column
	Values  []string
	From    *time.Time
	To      *time.Time
}

// OrderTerm is one ordering key.
type OrderTerm struct {
	Field     SortField
	Direction Direction
}

// Query is the backend description of a ticket list request.
type Query struct {
	Predicates []Predicate
	Order      []OrderTerm
	Page       Page
}

const sortID SortField = "id"

// Build translates a filter, sort and page into a Query. It is pure.
func Build(f Filter, s Sort, p Page) Query {
	f = f.Normalize()
	s = s.Normalize()

	var preds []Predicate
	if f.Search != nil {
		preds = append(preds, Predicate{
			Kind:    Contains,
			Columns: []Column{ColumnSubject, ColumnDescription},
			Values:  []string{*f.Search},
		})
	}
	if len(f.Statuses) > 0 {
		preds = append(preds, Predicate{Kind: AnyOf, Column: ColumnStatus, Values: stringsOf(f.Statuses)})
	}
	if len(f.Priorities) > 0 {
		preds = append(preds, Predicate{Kind: AnyOf, Column: ColumnPriority, Values: stringsOf(f.Priorities)})
	}
	if len(f.Assignees) > 0 {
		preds = append(preds, Predicate{Kind: AnyOf, Column: ColumnAssignedAgent, Values: f.Assignees})
	}
	if len(f.Tags) > 0 {
		preds = append(preds, Predicate{Kind: AllOf, Column: ColumnTags, Values: f.Tags})
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		preds = append(preds, Predicate{Kind: Between, Column: ColumnCreatedAt, From: f.CreatedFrom, To: f.CreatedTo})
	}

	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	return Query{
		Predicates: preds,
		Order: []OrderTerm{
			{Field: s.Field, Direction: s.Direction},
			{Field: sortID, Direction: Asc},
		},
		Page: p,
	}
}

// WithOwner returns a copy restricted to tickets owned by userID.
func (q Query) WithOwner(userID string) Query {
	out := q
	out.Predicates = append(append([]Predicate(nil), q.Predicates...),
		Predicate{Kind: AnyOf, Column: ColumnUser, Values: []string{userID}})
	return out
}

// WithoutPage drops the result window.
func (q Query) WithoutPage() Query {
	q.Page = Page{}
	return q
}

// Match evaluates every predicate against t.
func (q Query) Match(t *domain.Ticket) bool {
	for _, p := range q.Predicates {
		if !p.Match(t) {
			return false
		}
	}
	return true
}

// Match evaluates a single predicate against t.
func (p Predicate) Match(t *domain.Ticket) bool {
	switch p.Kind {
	case AnyOf:
		value, ok := columnValue(t, p.Column)
		if !ok {
			return false
		}
		for _, candidate := range p.Values {
			if candidate == value {
				return true
			}
		}
		return false
	case AllOf:
		for _, tagID := range p.Values {
			if !t.HasTag(tagID) {
				return false
			}
		}
		return true
	case Contains:
		if len(p.Values) == 0 {
			return true
		}
		needle := strings.ToLower(p.Values[0])
		for _, col := range p.Columns {
			value, _ := columnValue(t, col)
			if strings.Contains(strings.ToLower(value), needle) {
				return true
			}
		}
		return false
	case Between:
		if p.From != nil && t.CreatedAt.Before(*p.From) {
			return false
		}
		if p.To != nil && t.CreatedAt.After(*p.To) {
			return false
		}
		return true
	}
	return false
}

func columnValue(t *domain.Ticket, col Column) (string, bool) {
	switch col {
	case ColumnStatus:
		return string(t.Status), true
	case ColumnPriority:
		return string(t.Priority), true
	case ColumnAssignedAgent:
		if t.AssignedAgentID == nil {
			return "", false
		}
		return *t.AssignedAgentID, true
	case ColumnUser:
		return t.UserID, true
	case ColumnSubject:
		return t.Subject, true
	case ColumnDescription:
		return t.Description, true
	case ColumnID:
		return t.ID, true
	}
	return "", false
}

// Less reports whether a sorts before b under the query ordering.
func (q Query) Less(a, b *domain.Ticket) bool {
	for _, term := range q.Order {
		c := compare(a, b, term.Field)
		if c == 0 {
			continue
		}
		if term.Direction == Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// SortTickets orders tickets in place under the query ordering.
func (q Query) SortTickets(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return q.Less(&tickets[i], &tickets[j])
	})
}

// Apply filters, orders and pages tickets in memory, mirroring the SQL rendering.
func (q Query) Apply(tickets []domain.Ticket) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if q.Match(&tickets[i]) {
			out = append(out, tickets[i])
		}
	}
	q.SortTickets(out)
	if q.Page.Offset > 0 {
		if q.Page.Offset >= len(out) {
			return []domain.Ticket{}
		}
		out = out[q.Page.Offset:]
	}
	if q.Page.Limit > 0 && q.Page.Limit < len(out) {
		out = out[:q.Page.Limit]
	}
	return out
}

func compare(a, b *domain.Ticket, field SortField) int {
	switch field {
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	case SortStatus:
		return a.Status.Rank() - b.Status.Rank()
	case sortID:
		return strings.Compare(a.ID, b.ID)
	}
	return 0
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// Package filter turns the ticket list controls (search box, status/priority/
// assignee/tag pickers, creation date range, sort column) into a backend query
// description that can be rendered to SQL or evaluated in memory.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Filter is the active set of list constraints. A nil pointer or empty slice
// imposes no constraint.
type Filter struct {
	Search      *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Assignees   []string
	Tags        []string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// SortField names a sortable column.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortPriority  SortField = "priority"
	SortStatus    SortField = "status"
)

// Direction is an ordering direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort selects the primary ordering. Ties are always broken by id ascending.
type Sort struct {
	Field     SortField
	Direction Direction
}

// DefaultSort lists the most recently created tickets first.
var DefaultSort = Sort{Field: SortCreatedAt, Direction: Desc}

// Page bounds a result window. Zero Limit means unbounded.
type Page struct {
	Limit  int
	Offset int
}

// Normalize returns a copy with blank search cleared and duplicate values removed.
func (f Filter) Normalize() Filter {
	out := Filter{CreatedFrom: f.CreatedFrom, CreatedTo: f.CreatedTo}
	if f.Search != nil {
		if term := strings.TrimSpace(*f.Search); term != "" {
			out.Search = &term
		}
	}
	out.Statuses = dedupe(f.Statuses)
	out.Priorities = dedupe(f.Priorities)
	out.Assignees = dedupe(trimAll(f.Assignees))
	out.Tags = dedupe(trimAll(f.Tags))
	return out
}

// Validate rejects unknown enum values and inverted date ranges.
func (f Filter) Validate() error {
	for _, s := range f.Statuses {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidEnum, s)
		}
	}
	for _, p := range f.Priorities {
		if !p.Valid() {
			return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidEnum, p)
		}
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom) {
		return &domain.FieldError{Fields: []string{"created_from", "created_to"}, Reason: "range end precedes start"}
	}
	return nil
}

// IsZero reports whether the filter imposes no constraint.
func (f Filter) IsZero() bool {
	n := f.Normalize()
	return n.Search == nil && n.Statuses == nil && n.Priorities == nil && n.Assignees == nil &&
		n.Tags == nil && n.CreatedFrom == nil && n.CreatedTo == nil
}

// Normalize fills in defaults for missing sort parts.
func (s Sort) Normalize() Sort {
	switch s.Field {
	case SortCreatedAt, SortUpdatedAt, SortPriority, SortStatus:
	default:
		s.Field = DefaultSort.Field
	}
	if s.Direction != Asc && s.Direction != Desc {
		s.Direction = Desc
	}
	return s
}

// ParseSort validates a sort field and direction from query parameters.
func ParseSort(field, direction string) (Sort, error) {
	s := Sort{Field: SortField(strings.ToLower(strings.TrimSpace(field))), Direction: Direction(strings.ToLower(strings.TrimSpace(direction)))}
	if s.Field == "" {
		s.Field = DefaultSort.Field
	}
	if s.Direction == "" {
		s.Direction = DefaultSort.Direction
	}
	switch s.Field {
	case SortCreatedAt, SortUpdatedAt, SortPriority, SortStatus:
	default:
		return Sort{}, &domain.FieldError{Fields: []string{"sort"}, Reason: fmt.Sprintf("unknown sort field %q", field)}
	}
	if s.Direction != Asc && s.Direction != Desc {
		return Sort{}, &domain.FieldError{Fields: []string{"order"}, Reason: fmt.Sprintf("unknown direction %q", direction)}
	}
	return s, nil
}

// ParseStatuses parses a comma separated status list.
func ParseStatuses(raw string) ([]domain.TicketStatus, error) {
	var out []domain.TicketStatus
	for _, part := range splitList(raw) {
		status, err := domain.ParseTicketStatus(part)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

// ParsePriorities parses a comma separated priority list.
func ParsePriorities(raw string) ([]domain.TicketPriority, error) {
	var out []domain.TicketPriority
	for _, part := range splitList(raw) {
		priority, err := domain.ParseTicketPriority(part)
		if err != nil {
			return nil, err
		}
		out = append(out, priority)
	}
	return out, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(raw string) []string {
	return splitList(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupe[T ~string](values []T) []T {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package filter

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func ticket(id string, status domain.TicketStatus, created time.Time, tags ...string) domain.Ticket {
	t := domain.Ticket{
		ID:        id,
		Subject:   "Subject " + id,
		Status:    status,
		Priority:  domain.TicketPriorityMedium,
		CreatedAt: created,
	}
	for _, tag := range tags {
		t.Tags = append(t.Tags, domain.Tag{ID: tag, Name: tag})
	}
	return t
}

func TestEmptyFilterReturnsEverythingNewestFirst(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("a", domain.TicketStatusOpen, base),
		ticket("b", domain.TicketStatusClosed, base.Add(2*time.Hour)),
		ticket("c", domain.TicketStatusNew, base.Add(time.Hour)),
	}
	q := Build(Filter{}, Sort{}, Page{})
	assert.Empty(t, q.Predicates)

	got := q.Apply(tickets)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "c", "a"}, ids(got))
}

func TestBlankSearchIsAbsent(t *testing.T) {
	blank := "   "
	assert.True(t, Filter{Search: &blank, Statuses: []domain.TicketStatus{}}.IsZero())
	assert.Empty(t, Build(Filter{Search: &blank}, DefaultSort, Page{}).Predicates)
}

func TestTagsRequireAll(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("both", domain.TicketStatusOpen, base, "A", "B"),
		ticket("only-a", domain.TicketStatusOpen, base, "A"),
		ticket("only-b", domain.TicketStatusOpen, base, "B"),
		ticket("all", domain.TicketStatusOpen, base, "A", "B", "C"),
		ticket("none", domain.TicketStatusOpen, base),
	}
	q := Build(Filter{Tags: []string{"A", "B"}}, DefaultSort, Page{})
	assert.ElementsMatch(t, []string{"both", "all"}, ids(q.Apply(tickets)))
}

func TestStatusesAreAnyOf(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("1", domain.TicketStatusOpen, base),
		ticket("2", domain.TicketStatusPending, base),
		ticket("3", domain.TicketStatusClosed, base),
		ticket("4", domain.TicketStatusNew, base),
	}
	q := Build(Filter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending}}, DefaultSort, Page{})
	assert.ElementsMatch(t, []string{"1", "2"}, ids(q.Apply(tickets)))
}

func TestSearchIsCaseInsensitiveOnSubjectOrDescription(t *testing.T) {
	a := ticket("a", domain.TicketStatusOpen, base)
	a.Subject = "Cannot LOGIN"
	b := ticket("b", domain.TicketStatusOpen, base)
	b.Description = "the login page hangs"
	c := ticket("c", domain.TicketStatusOpen, base)

	term := "login"
	q := Build(Filter{Search: &term}, DefaultSort, Page{})
	assert.ElementsMatch(t, []string{"a", "b"}, ids(q.Apply([]domain.Ticket{a, b, c})))
}

func TestAssigneeFilterSkipsUnassigned(t *testing.T) {
	agent := "agent-1"
	a := ticket("a", domain.TicketStatusOpen, base)
	a.AssignedAgentID = &agent
	b := ticket("b", domain.TicketStatusOpen, base)

	q := Build(Filter{Assignees: []string{"agent-1", "agent-2"}}, DefaultSort, Page{})
	assert.Equal(t, []string{"a"}, ids(q.Apply([]domain.Ticket{a, b})))
}

func TestDateRangeIsInclusive(t *testing.T) {
	from, to := base, base.Add(time.Hour)
	tickets := []domain.Ticket{
		ticket("before", domain.TicketStatusOpen, from.Add(-time.Nanosecond)),
		ticket("start", domain.TicketStatusOpen, from),
		ticket("end", domain.TicketStatusOpen, to),
		ticket("after", domain.TicketStatusOpen, to.Add(time.Nanosecond)),
	}
	q := Build(Filter{CreatedFrom: &from, CreatedTo: &to}, DefaultSort, Page{})
	assert.ElementsMatch(t, []string{"start", "end"}, ids(q.Apply(tickets)))
}

func TestPrioritySortRanksCriticalFirst(t *testing.T) {
	mk := func(id string, p domain.TicketPriority) domain.Ticket {
		tk := ticket(id, domain.TicketStatusOpen, base)
		tk.Priority = p
		return tk
	}
	tickets := []domain.Ticket{
		mk("low", domain.TicketPriorityLow),
		mk("crit", domain.TicketPriorityCritical),
		mk("med", domain.TicketPriorityMedium),
		mk("high", domain.TicketPriorityHigh),
	}
	q := Build(Filter{}, Sort{Field: SortPriority, Direction: Desc}, Page{})
	assert.Equal(t, []string{"crit", "high", "med", "low"}, ids(q.Apply(tickets)))
}

func TestTiesBreakByID(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("c", domain.TicketStatusOpen, base),
		ticket("a", domain.TicketStatusOpen, base),
		ticket("b", domain.TicketStatusOpen, base),
	}
	q := Build(Filter{}, DefaultSort, Page{})
	assert.Equal(t, []string{"a", "b", "c"}, ids(q.Apply(tickets)))
}

func TestPage(t *testing.T) {
	tickets := []domain.Ticket{
		ticket("a", domain.TicketStatusOpen, base.Add(3*time.Hour)),
		ticket("b", domain.TicketStatusOpen, base.Add(2*time.Hour)),
		ticket("c", domain.TicketStatusOpen, base.Add(time.Hour)),
	}
	q := Build(Filter{}, DefaultSort, Page{Limit: 1, Offset: 1})
	assert.Equal(t, []string{"b"}, ids(q.Apply(tickets)))
	assert.Empty(t, Build(Filter{}, DefaultSort, Page{Offset: 5}).Apply(tickets))
}

func TestWithOwner(t *testing.T) {
	mine := ticket("mine", domain.TicketStatusOpen, base)
	mine.UserID = "u1"
	theirs := ticket("theirs", domain.TicketStatusOpen, base)
	theirs.UserID = "u2"

	q := Build(Filter{}, DefaultSort, Page{})
	scoped := q.WithOwner("u1")
	assert.Empty(t, q.Predicates, "original query must not be mutated")
	assert.Equal(t, []string{"mine"}, ids(scoped.Apply([]domain.Ticket{mine, theirs})))
}

func TestParseHelpers(t *testing.T) {
	statuses, err := ParseStatuses("open, pending,,")
	require.NoError(t, err)
	assert.Equal(t, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending}, statuses)

	_, err = ParseStatuses("open,archived")
	assert.Error(t, err)

	_, err = ParsePriorities("urgent")
	assert.Error(t, err)

	s, err := ParseSort("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSort, s)

	_, err = ParseSort("subject", "asc")
	assert.Error(t, err)
	_, err = ParseSort("priority", "sideways")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	from, to := base.Add(time.Hour), base
	assert.Error(t, Filter{CreatedFrom: &from, CreatedTo: &to}.Validate())
	assert.Error(t, Filter{Statuses: []domain.TicketStatus{"archived"}}.Validate())
	assert.NoError(t, Filter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}}.Validate())
}

func TestProperty_TagFilterIsConjunctive(t *testing.T) {
	tagPool := []string{"A", "B", "C", "D"}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "tickets")
		tickets := make([]domain.Ticket, n)
		for i := range tickets {
			tags := rapid.SliceOfDistinct(rapid.SampledFrom(tagPool), rapid.ID[string]).Draw(t, fmt.Sprintf("tags-%d", i))
			tickets[i] = ticket(fmt.Sprintf("t%02d", i), domain.TicketStatusOpen, base, tags...)
		}
		wanted := rapid.SliceOfDistinct(rapid.SampledFrom(tagPool), rapid.ID[string]).Draw(t, "wanted")

		got := Build(Filter{Tags: wanted}, DefaultSort, Page{}).Apply(tickets)
		for i := range got {
			for _, tag := range wanted {
				if !got[i].HasTag(tag) {
					t.Fatalf("ticket %s lacks tag %s", got[i].ID, tag)
				}
			}
		}
		expected := 0
		for i := range tickets {
			all := true
			for _, tag := range wanted {
				all = all && tickets[i].HasTag(tag)
			}
			if all {
				expected++
			}
		}
		if len(got) != expected {
			t.Fatalf("got %d tickets, want %d", len(got), expected)
		}
	})
}

func TestProperty_StatusFilterIsDisjunctive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "tickets")
		tickets := make([]domain.Ticket, n)
		for i := range tickets {
			status := rapid.SampledFrom(domain.TicketStatuses).Draw(t, fmt.Sprintf("status-%d", i))
			tickets[i] = ticket(fmt.Sprintf("t%02d", i), status, base)
		}
		wanted := rapid.SliceOfNDistinct(rapid.SampledFrom(domain.TicketStatuses), 1, 3, rapid.ID[domain.TicketStatus]).Draw(t, "wanted")
		allowed := map[domain.TicketStatus]bool{}
		for _, s := range wanted {
			allowed[s] = true
		}

		got := Build(Filter{Statuses: wanted}, DefaultSort, Page{}).Apply(tickets)
		for _, tk := range got {
			if !allowed[tk.Status] {
				t.Fatalf("ticket %s has status %s outside %v", tk.ID, tk.Status, wanted)
			}
		}
		expected := 0
		for _, tk := range tickets {
			if allowed[tk.Status] {
				expected++
			}
		}
		if len(got) != expected {
			t.Fatalf("got %d tickets, want %d", len(got), expected)
		}
	})
}

func TestProperty_OrderingIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 15).Draw(t, "tickets")
		tickets := make([]domain.Ticket, n)
		for i := range tickets {
			offset := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("offset-%d", i))
			tickets[i] = ticket(fmt.Sprintf("t%02d", i), domain.TicketStatusOpen, base.Add(time.Duration(offset)*time.Hour))
		}
		field := rapid.SampledFrom([]SortField{SortCreatedAt, SortPriority, SortStatus}).Draw(t, "field")
		q := Build(Filter{}, Sort{Field: field, Direction: Desc}, Page{})

		reversed := make([]domain.Ticket, len(tickets))
		for i := range tickets {
			reversed[len(tickets)-1-i] = tickets[i]
		}
		a, b := ids(q.Apply(tickets)), ids(q.Apply(reversed))
		if fmt.Sprint(a) != fmt.Sprint(b) {
			t.Fatalf("order depends on input order: %v vs %v", a, b)
		}
	})
}

func ids(tickets []domain.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.ID
	}
	return out
}

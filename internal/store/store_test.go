package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	"github.com/spec-kit/helpdesk/internal/realtime"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

var (
	customer = domain.Actor{ID: "u-1", Role: domain.RoleUser, Name: "Casey"}
	agent    = domain.Actor{ID: "a-1", Role: domain.RoleAgent, Name: "Avery"}
)

// fakeBackend records calls. list decides the result of the n-th
// ListTickets call, counting from zero.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	list      func(n int) ([]domain.Ticket, error)
	update    func(id string, patch domain.TicketPatch) (*domain.Ticket, error)
	deleteErr error
	attachErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (f *fakeBackend) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) record(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[op]
	f.calls[op]++
	return n
}

func (f *fakeBackend) ListTickets(_ context.Context, _ domain.Actor, _ filter.Filter, _ filter.Sort, _ filter.Page) ([]domain.Ticket, error) {
	n := f.record("list")
	if f.list == nil {
		return nil, nil
	}
	return f.list(n)
}

func (f *fakeBackend) CreateTicket(_ context.Context, actor domain.Actor, draft domain.TicketDraft) (*domain.Ticket, error) {
	f.record("create")
	return &domain.Ticket{ID: "t-new", UserID: actor.ID, Subject: draft.Subject, Status: domain.TicketStatusOpen}, nil
}

func (f *fakeBackend) UpdateTicket(_ context.Context, _ domain.Actor, id string, patch domain.TicketPatch) (*domain.Ticket, error) {
	f.record("update")
	return f.update(id, patch)
}

func (f *fakeBackend) DeleteTicket(context.Context, domain.Actor, string) error {
	f.record("delete")
	return f.deleteErr
}

func (f *fakeBackend) AddComment(_ context.Context, actor domain.Actor, ticketID, content string, internal bool, _ []domain.Upload) (*domain.Comment, error) {
	f.record("comment")
	return &domain.Comment{ID: "c-1", TicketID: ticketID, AuthorID: actor.ID, Content: content, Internal: internal}, nil
}

func (f *fakeBackend) ListTags(context.Context, domain.Actor) ([]domain.Tag, error) {
	f.record("tags")
	return []domain.Tag{{ID: "tag-1", Name: "billing"}}, nil
}

func (f *fakeBackend) CreateTag(_ context.Context, _ domain.Actor, name, color string) (*domain.Tag, error) {
	f.record("create-tag")
	return &domain.Tag{ID: "tag-new", Name: name, Color: color}, nil
}

func (f *fakeBackend) AddTagToTicket(context.Context, domain.Actor, string, string) error {
	f.record("attach")
	return f.attachErr
}

func (f *fakeBackend) RemoveTagFromTicket(context.Context, domain.Actor, string, string) error {
	f.record("detach")
	return nil
}

func tickets(ids ...string) []domain.Ticket {
	out := make([]domain.Ticket, len(ids))
	for i, id := range ids {
		out[i] = domain.Ticket{ID: id, UserID: customer.ID, Subject: "subject " + id, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityMedium}
	}
	return out
}

func ids(list []domain.Ticket) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

type countingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *countingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *countingNotifier) Failure(msg string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, msg)
}

func TestLoadDiscardsStaleResults(t *testing.T) {
	backend := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	backend.list = func(n int) ([]domain.Ticket, error) {
		if n == 0 {
			close(entered)
			<-release
			return tickets("old"), nil
		}
		return tickets("new"), nil
	}
	st := New(Config{Backend: backend})

	done := make(chan error, 1)
	go func() { done <- st.Load(context.Background(), customer, filter.Filter{}, filter.DefaultSort) }()
	<-entered
	assert.True(t, st.Loading())

	require.NoError(t, st.Load(context.Background(), customer, filter.Filter{}, filter.DefaultSort))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"new"}, ids(st.Snapshot()))
	assert.False(t, st.Loading())
}

func TestLoadFailureKeepsPreviousCollection(t *testing.T) {
	backend := newFakeBackend()
	backend.list = func(n int) ([]domain.Ticket, error) {
		switch n {
		case 1:
			return nil, errors.New("connection reset")
		default:
			return tickets("t-1", "t-2"), nil
		}
	}
	notifier := &countingNotifier{}
	st := New(Config{Backend: backend, Notifier: notifier})
	ctx := context.Background()

	require.NoError(t, st.Load(ctx, customer, filter.Filter{}, filter.DefaultSort))
	err := st.Reload(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBackend))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []string{"t-1", "t-2"}, ids(st.Snapshot()))
	assert.Equal(t, err, st.Err())
	assert.Len(t, notifier.failures, 1)

	require.NoError(t, st.Reload(ctx))
	assert.NoError(t, st.Err())
}

func TestLoadRequiresSignedInActor(t *testing.T) {
	backend := newFakeBackend()
	st := New(Config{Backend: backend})

	err := st.Load(context.Background(), domain.Actor{}, filter.Filter{}, filter.DefaultSort)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Zero(t, backend.called("list"))
}

func TestLatestLoadWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 6).Draw(rt, "loads")
		order := rapid.Permutation(seq(count)).Draw(rt, "completion")

		backend := newFakeBackend()
		entered := make(chan int, count)
		gates := make([]chan struct{}, count)
		for i := range gates {
			gates[i] = make(chan struct{})
		}
		backend.list = func(n int) ([]domain.Ticket, error) {
			entered <- n
			<-gates[n]
			return tickets(fmt.Sprintf("load-%d", n)), nil
		}
		st := New(Config{Backend: backend})

		var wg sync.WaitGroup
		for i := 0; i < count; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = st.Load(context.Background(), customer, filter.Filter{}, filter.DefaultSort)
			}()
			<-entered
		}
		for _, i := range order {
			close(gates[i])
		}
		wg.Wait()

		got := ids(st.Snapshot())
		if len(got) != 1 || got[0] != fmt.Sprintf("load-%d", count-1) {
			rt.Fatalf("snapshot %v, want result of load %d", got, count-1)
		}
	})
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestCreateValidatesLocally(t *testing.T) {
	backend := newFakeBackend()
	notifier := &countingNotifier{}
	st := New(Config{Backend: backend, Notifier: notifier})
	ctx := context.Background()

	_, err := st.Create(ctx, customer, domain.TicketDraft{Subject: "Printer", Description: " "})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, []string{"description", "category"}, apperrors.ToDomainError(err).Details["fields"])
	assert.Equal(t, []string{"failed to create ticket"}, notifier.failures)

	blank := "  "
	_, err = st.Update(ctx, agent, "t-1", domain.TicketPatch{Subject: &blank})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, []string{"failed to create ticket", "failed to update ticket"}, notifier.failures)
	assert.Zero(t, backend.called("update"))

	_, err = st.Create(ctx, domain.Actor{}, domain.TicketDraft{Subject: "a", Description: "b", Category: "c"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Zero(t, backend.called("create"))
}

func TestCreateReloadsCollection(t *testing.T) {
	backend := newFakeBackend()
	backend.list = func(n int) ([]domain.Ticket, error) {
		if n == 0 {
			return tickets("t-1"), nil
		}
		return tickets("t-new", "t-1"), nil
	}
	notifier := &countingNotifier{}
	st := New(Config{Backend: backend, Notifier: notifier})
	ctx := context.Background()

	require.NoError(t, st.Load(ctx, customer, filter.Filter{}, filter.DefaultSort))
	created, err := st.Create(ctx, customer, domain.TicketDraft{Subject: "Printer", Description: "jammed", Category: "hardware"})
	require.NoError(t, err)
	assert.Equal(t, "t-new", created.ID)
	assert.Equal(t, []string{"t-new", "t-1"}, ids(st.Snapshot()))
	assert.Equal(t, []string{"ticket created"}, notifier.successes)
}

func TestCreateBeforeLoadPrepends(t *testing.T) {
	st := New(Config{Backend: newFakeBackend()})
	_, err := st.Create(context.Background(), customer, domain.TicketDraft{Subject: "a", Description: "b", Category: "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-new"}, ids(st.Snapshot()))
}

func TestUpdateMergesOnlyPatchedFields(t *testing.T) {
	backend := newFakeBackend()
	local := tickets("t-1")
	local[0].Description = "local description"
	local[0].Tags = []domain.Tag{{ID: "tag-1", Name: "billing"}}
	local[0].Comments = []domain.Comment{{ID: "c-1", Content: "hello"}}
	backend.list = func(int) ([]domain.Ticket, error) { return local, nil }

	updatedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	backend.update = func(id string, _ domain.TicketPatch) (*domain.Ticket, error) {
		return &domain.Ticket{ID: id, Status: domain.TicketStatusResolved, Description: "server description", UpdatedAt: updatedAt}, nil
	}

	var changes int
	st := New(Config{Backend: backend, OnChange: func([]domain.Ticket) { changes++ }})
	ctx := context.Background()
	require.NoError(t, st.Load(ctx, agent, filter.Filter{}, filter.DefaultSort))

	status := domain.TicketStatusResolved
	_, err := st.Update(ctx, agent, "t-1", domain.TicketPatch{Status: &status})
	require.NoError(t, err)

	got, ok := st.Get("t-1")
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusResolved, got.Status)
	assert.Equal(t, "local description", got.Description)
	assert.Equal(t, updatedAt, got.UpdatedAt)
	assert.Len(t, got.Tags, 1)
	assert.Len(t, got.Comments, 1)
	assert.Equal(t, 2, changes)
	assert.Equal(t, 1, backend.called("list"))
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	backend := newFakeBackend()
	st := New(Config{Backend: backend})

	_, err := st.Update(context.Background(), agent, "t-1", domain.TicketPatch{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, backend.called("update"))
}

func TestUpdateFailureLeavesEntry(t *testing.T) {
	backend := newFakeBackend()
	backend.list = func(int) ([]domain.Ticket, error) { return tickets("t-1"), nil }
	backend.update = func(id string, _ domain.TicketPatch) (*domain.Ticket, error) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	st := New(Config{Backend: backend})
	ctx := context.Background()
	require.NoError(t, st.Load(ctx, agent, filter.Filter{}, filter.DefaultSort))

	status := domain.TicketStatusClosed
	_, err := st.Update(ctx, agent, "t-1", domain.TicketPatch{Status: &status})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	got, _ := st.Get("t-1")
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
}

func TestDeleteRemovesAfterConfirmation(t *testing.T) {
	backend := newFakeBackend()
	backend.list = func(int) ([]domain.Ticket, error) { return tickets("t-1", "t-2"), nil }
	st := New(Config{Backend: backend})
	ctx := context.Background()
	require.NoError(t, st.Load(ctx, agent, filter.Filter{}, filter.DefaultSort))

	backend.deleteErr = apperrors.NewForbidden("staff only")
	err := st.Delete(ctx, agent, "t-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Equal(t, []string{"t-1", "t-2"}, ids(st.Snapshot()))

	backend.deleteErr = nil
	require.NoError(t, st.Delete(ctx, agent, "t-1"))
	assert.Equal(t, []string{"t-2"}, ids(st.Snapshot()))
}

func TestSnapshotIsACopy(t *testing.T) {
	backend := newFakeBackend()
	list := tickets("t-1")
	list[0].Tags = []domain.Tag{{ID: "tag-1"}}
	backend.list = func(int) ([]domain.Ticket, error) { return list, nil }
	st := New(Config{Backend: backend})
	require.NoError(t, st.Load(context.Background(), agent, filter.Filter{}, filter.DefaultSort))

	snap := st.Snapshot()
	snap[0].Subject = "changed"
	snap[0].Tags[0].ID = "changed"

	got, _ := st.Get("t-1")
	assert.Equal(t, "subject t-1", got.Subject)
	assert.Equal(t, "tag-1", got.Tags[0].ID)
}

func TestListenAppliesNotifications(t *testing.T) {
	backend := newFakeBackend()
	backend.list = func(n int) ([]domain.Ticket, error) {
		if n == 0 {
			return tickets("t-1", "t-2", "t-3"), nil
		}
		return tickets("t-1", "t-9"), nil
	}
	st := New(Config{Backend: backend})
	ctx := context.Background()
	openOnly := filter.Filter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}}
	require.NoError(t, st.Load(ctx, agent, openOnly, filter.DefaultSort))

	released := false
	sub := realtime.NewSubscription(8, func() { released = true })

	renamed := tickets("t-1")[0]
	renamed.Subject = "renamed"
	renamed.UpdatedAt = time.Now()
	closed := tickets("t-2")[0]
	closed.Status = domain.TicketStatusClosed
	stranger := tickets("t-404")[0]

	require.True(t, sub.Send(realtime.Notification{Kind: realtime.KindRecord, TicketID: "t-1", Ticket: &renamed}))
	require.True(t, sub.Send(realtime.Notification{Kind: realtime.KindRecord, TicketID: "t-404", Ticket: &stranger}))
	require.True(t, sub.Send(realtime.Notification{Kind: realtime.KindRecord, TicketID: "t-2", Ticket: &closed}))
	require.True(t, sub.Send(realtime.Notification{Kind: realtime.KindDeleted, TicketID: "t-3"}))
	sub.Close()

	require.NoError(t, st.Listen(ctx, sub))
	assert.True(t, released)

	got, ok := st.Get("t-1")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Subject)
	assert.Equal(t, []string{"t-1"}, ids(st.Snapshot()))
	assert.Equal(t, 1, backend.called("list"))
}

func TestListenReloadAndCancel(t *testing.T) {
	backend := newFakeBackend()
	backend.list = func(n int) ([]domain.Ticket, error) {
		return tickets(fmt.Sprintf("t-%d", n)), nil
	}
	st := New(Config{Backend: backend})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, st.Load(ctx, agent, filter.Filter{}, filter.DefaultSort))

	sub := realtime.NewSubscription(1, nil)
	done := make(chan error, 1)
	go func() { done <- st.Listen(ctx, sub) }()

	require.True(t, sub.Send(realtime.Notification{Kind: realtime.KindReload}))
	require.Eventually(t, func() bool { return backend.called("list") == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription left open")
	}
}

func TestStaleRecordIsIgnored(t *testing.T) {
	now := time.Now()
	backend := newFakeBackend()
	backend.list = func(int) ([]domain.Ticket, error) {
		list := tickets("t-1")
		list[0].UpdatedAt = now
		return list, nil
	}
	st := New(Config{Backend: backend})
	ctx := context.Background()
	require.NoError(t, st.Load(ctx, agent, filter.Filter{}, filter.DefaultSort))

	old := tickets("t-1")[0]
	old.Subject = "older"
	old.UpdatedAt = now.Add(-time.Minute)
	st.Apply(ctx, realtime.Notification{Kind: realtime.KindRecord, TicketID: "t-1", Ticket: &old})

	got, _ := st.Get("t-1")
	assert.Equal(t, "subject t-1", got.Subject)
}

func TestCommentsRejectBlankContent(t *testing.T) {
	backend := newFakeBackend()
	notifier := &countingNotifier{}
	comments := NewComments(backend, nil, notifier)

	_, err := comments.Add(context.Background(), customer, "t-1", "   ", false, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, backend.called("comment"))
	assert.Equal(t, []string{"failed to add comment"}, notifier.failures)

	comment, err := comments.Add(context.Background(), customer, "t-1", "hello", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", comment.Content)
}

func TestCommentReloadsStore(t *testing.T) {
	backend := newFakeBackend()
	backend.list = func(int) ([]domain.Ticket, error) { return tickets("t-1"), nil }
	st := New(Config{Backend: backend})
	ctx := context.Background()
	require.NoError(t, st.Load(ctx, customer, filter.Filter{}, filter.DefaultSort))

	_, err := NewComments(backend, st, nil).Add(ctx, customer, "t-1", "hello", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.called("list"))
}

func TestCreateAndAttachReportsPartialFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.attachErr = apperrors.NewNotFound("ticket", nil)
	notifier := &countingNotifier{}
	tags := NewTags(backend, nil, notifier)

	tag, err := tags.CreateAndAttach(context.Background(), agent, "t-1", "vip", "#ff0000")
	require.Error(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, "tag-new", tag.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePartialFailure))
	assert.True(t, apperrors.HasCode(errors.Unwrap(err), apperrors.CodeNotFound))
	assert.Equal(t, []string{"tag created"}, notifier.successes)
	assert.Equal(t, []string{"failed to add tag"}, notifier.failures)
}

func TestTagsValidateName(t *testing.T) {
	backend := newFakeBackend()
	notifier := &countingNotifier{}
	_, err := NewTags(backend, nil, notifier).Create(context.Background(), agent, " ", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, backend.called("create-tag"))
	assert.Equal(t, []string{"failed to create tag"}, notifier.failures)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := LogNotifier{Logger: zap.New(core)}

	n.Success("ticket created")
	n.Failure("failed to delete ticket", apperrors.NewForbidden("staff only"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "ticket created", entries[0].Message)
	assert.Equal(t, apperrors.CodeForbidden, entries[1].ContextMap()["code"])
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func newAuthService(db *memory.DB) *AuthService {
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            bcrypt.MinCost,
	}, db.Profiles())
}

func TestRegisterAndLogin(t *testing.T) {
	db := memory.New()
	svc := newAuthService(db)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Erin", " Erin@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, session.Profile.Role)
	assert.Equal(t, "erin@example.com", session.Profile.Email)
	assert.Empty(t, session.Profile.PasswordHash)

	claims, err := svc.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, claims.Subject)

	_, err = svc.Register(ctx, "Erin again", "erin@example.com", "another password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	again, err := svc.Login(ctx, "ERIN@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, again.Profile.ID)

	_, err = svc.Login(ctx, "erin@example.com", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	_, err = svc.Login(ctx, "nobody@example.com", "whatever")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(memory.New())
	ctx := context.Background()

	cases := map[string][3]string{
		"name":     {" ", "a@example.com", "longenough"},
		"email":    {"A", "not-an-email", "longenough"},
		"password": {"A", "a@example.com", "short"},
	}
	for field, in := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := svc.Register(ctx, in[0], in[1], in[2])
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
			assert.Equal(t, []string{field}, apperrors.ToDomainError(err).Details["fields"])
		})
	}
}

func TestAgentsIsStaffOnly(t *testing.T) {
	db := memory.New()
	svc := newAuthService(db)
	ctx := context.Background()

	agent := domain.Profile{Email: "agent@example.com", Name: "Agent", Role: domain.RoleAgent, PasswordHash: "x"}
	require.NoError(t, db.Profiles().Create(ctx, &agent))
	session, err := svc.Register(ctx, "Cust", "cust@example.com", "longenough")
	require.NoError(t, err)

	_, err = svc.Agents(ctx, session.Profile.Actor())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	agents, err := svc.Agents(ctx, agent.Actor())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "Agent", agents[0].Name)
	assert.Empty(t, agents[0].PasswordHash)

	me, err := svc.Profile(ctx, session.Profile.Actor())
	require.NoError(t, err)
	assert.Equal(t, "cust@example.com", me.Email)
	assert.Empty(t, me.PasswordHash)
}

func TestNotificationServiceFollowsEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		EmailFrom:  "desk@example.com",
		WebhookURL: "http://hooks.example.com",
	})
	svc.RegisterHandlers()
	ctx := context.Background()

	publish := func(topic events.Topic, op events.Op, ownerID, actorID string) {
		event, err := events.NewEvent(topic, op, "t-1", ownerID, actorID, nil)
		require.NoError(t, err)
		require.NoError(t, dispatcher.Publish(ctx, event))
	}

	publish(events.TopicTickets, events.OpInsert, "u-1", "u-1")
	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendWebhookNotificationStub").Len())

	publish(events.TopicComments, events.OpInsert, "u-1", "u-1")
	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len(), "own comment is not mailed")
	publish(events.TopicComments, events.OpInsert, "u-1", "agent-1")
	assert.Equal(t, 2, logs.FilterMessage("sendEmailNotificationStub").Len())

	svc.Close()
	before := logs.Len()
	publish(events.TopicTickets, events.OpUpdate, "u-1", "agent-1")
	assert.Equal(t, before, logs.Len(), "closed service ignores events")
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	db := memory.New()
	svc := newAuthService(db)
	ctx := context.Background()

	first, err := svc.EnsureAdmin(ctx, "root@example.com", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, first.Role)

	second, err := svc.EnsureAdmin(ctx, "root@example.com", "ignored!!")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	session, err := svc.Login(ctx, "root@example.com", "supersecret")
	require.NoError(t, err)
	assert.True(t, session.Profile.Actor().IsStaff())
}

// Package app assembles the API server from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/storage"
	"github.com/spec-kit/helpdesk/internal/worker"
)

// Services are the application services behind the HTTP layer.
type Services struct {
	Auth     *service.AuthService
	Tickets  *service.TicketService
	Comments *service.CommentService
	Tags     *service.TagService
	Bridge   *realtime.Bridge
}

// Server is a ready to listen API.
type Server struct {
	App      *fiber.App
	Services Services
	Metrics  *observability.Metrics

	postgres *persistence.Postgres
	redis    *persistence.Redis
	cancel   context.CancelFunc
}

type repositories struct {
	profiles    repository.ProfileRepository
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	tags        repository.TagRepository
	ratings     repository.RatingRepository
}

// New connects the configured backends and wires every layer. Without a
// Postgres DSN the repositories live in process memory.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Server, error) {
	ctx, cancel := context.WithCancel(ctx)
	srv := &Server{Metrics: metrics, cancel: cancel}

	pg, err := persistence.OpenPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	srv.postgres = pg

	var repos repositories
	if pg.Configured() {
		pool := pg.Pool
		repos = repositories{
			profiles:    repository.NewProfileRepository(pool),
			tickets:     repository.NewTicketRepository(pool),
			comments:    repository.NewCommentRepository(pool),
			attachments: repository.NewAttachmentRepository(pool),
			tags:        repository.NewTagRepository(pool),
			ratings:     repository.NewRatingRepository(pool),
		}
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		db := memory.New()
		repos = repositories{
			profiles:    db.Profiles(),
			tickets:     db.Tickets(),
			comments:    db.Comments(),
			attachments: db.Attachments(),
			tags:        db.Tags(),
			ratings:     db.Ratings(),
		}
	}

	var dispatcher events.Dispatcher
	switch cfg.Realtime.Driver {
	case config.RealtimeDriverRedis:
		srv.redis = persistence.OpenRedis(ctx, cfg.Redis, logger)
		dispatcher = events.NewRedisDispatcher(srv.redis.Client, cfg.Realtime.ChannelPrefix, logger)
	default:
		dispatcher = events.NewInMemoryDispatcher()
	}

	files, err := storage.NewFilesystemStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadBytes)
	if err != nil {
		srv.Close()
		return nil, err
	}

	authService := service.NewAuthService(cfg.Auth, repos.profiles)
	if cfg.Auth.AdminEmail != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			srv.Close()
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	}

	srv.Services = Services{
		Auth: authService,
		Tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo:     repos.tickets,
			AttachmentRepo: repos.attachments,
			RatingRepo:     repos.ratings,
			Files:          files,
			Dispatcher:     dispatcher,
			Logger:         logger,
		}),
		Comments: service.NewCommentService(service.CommentDependencies{
			TicketRepo:     repos.tickets,
			CommentRepo:    repos.comments,
			AttachmentRepo: repos.attachments,
			ProfileRepo:    repos.profiles,
			Files:          files,
			Uploads:        metrics,
			Dispatcher:     dispatcher,
			Logger:         logger,
		}),
		Tags: service.NewTagService(service.TagDependencies{
			TagRepo:      repos.tags,
			TicketRepo:   repos.tickets,
			DefaultColor: cfg.Tags.DefaultColor,
			CacheTTL:     cfg.Tags.CacheTTL,
			Dispatcher:   dispatcher,
			Logger:       logger,
		}),
		Bridge: realtime.NewBridge(dispatcher, cfg.Realtime.SubscriberBuffer, logger, subscriptionGauge(metrics)),
	}

	worker.StartNotificationWorker(ctx, service.NewNotificationService(dispatcher, logger, cfg.Notification))

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             int(cfg.Storage.MaxUploadBytes) * 4,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{}
	if pg.Configured() {
		deps["postgres"] = pg
	}
	if srv.redis != nil {
		deps["redis"] = srv.redis
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(srv.Services.Tickets, srv.Services.Comments),
		Tags:           handlers.NewTagsHandler(srv.Services.Tags),
		Events:         handlers.NewEventsHandler(srv.Services.Bridge, srv.Services.Tickets, cfg.Realtime.Heartbeat, logger),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), repos.profiles),
		Metrics:        metrics,
		FilesDir:       files.Root(),
	})
	srv.App = app
	return srv, nil
}

// Close stops background workers and releases backend connections.
func (s *Server) Close() {
	s.cancel()
	s.redis.Close()
	s.postgres.Close()
}

func subscriptionGauge(m *observability.Metrics) realtime.Gauge {
	if g := m.Subscriptions(); g != nil {
		return g
	}
	return nil
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Tags           *handlers.TagsHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	// FilesDir is served under /files when set.
	FilesDir string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}
	if cfg.FilesDir != "" {
		app.Static("/files", cfg.FilesDir, fiber.Static{ByteRange: true})
	}

	api := app.Group("/api")
	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Get("/me", cfg.Users.Me)
	protected.Get("/agents", auth.RequireStaff(), cfg.Users.Agents)

	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets/stats", cfg.Tickets.Stats)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	protected.Delete("/tickets/:id", auth.RequireStaff(), cfg.Tickets.DeleteTicket)
	protected.Put("/tickets/:id/rating", cfg.Tickets.RateTicket)
	protected.Post("/tickets/:id/comments", cfg.Tickets.AddComment)
	protected.Post("/tickets/:id/attachments", cfg.Tickets.AddAttachment)
	protected.Put("/tickets/:id/tags/:tagId", cfg.Tags.AddTag)
	protected.Delete("/tickets/:id/tags/:tagId", cfg.Tags.RemoveTag)

	protected.Get("/tags", cfg.Tags.ListTags)
	protected.Post("/tags", cfg.Tags.CreateTag)

	if cfg.Events != nil {
		protected.Get("/events", cfg.Events.Collection)
		protected.Get("/tickets/:id/events", cfg.Events.Ticket)
	}
}

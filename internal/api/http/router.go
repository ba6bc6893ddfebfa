package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-warden/internal/api/http/handlers"
	"github.com/spec-kit/guild-warden/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Ops           *handlers.OpsHandler
	OpsMiddleware *auth.OpsMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/ops/login", cfg.Ops.Login)

	protected := app.Group("/ops", cfg.OpsMiddleware.Handle)
	protected.Get("/tickets", cfg.Ops.ListTickets)
	protected.Get("/mutes", cfg.Ops.ListMutes)
	protected.Get("/backups", cfg.Ops.ListBackups)
	protected.Get("/backups/:id", cfg.Ops.GetBackup)
	protected.Get("/guilds/:guildID/config", cfg.Ops.GetGuildConfig)
	protected.Put("/guilds/:guildID/config", cfg.Ops.UpdateGuildConfig)
	protected.Delete("/guilds/:guildID/config", cfg.Ops.ResetGuildConfig)
	protected.Get("/guilds/:guildID/audit", cfg.Ops.GuildAudit)
	protected.Get("/metrics", cfg.Ops.Metrics)
}

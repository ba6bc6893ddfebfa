package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-warden/internal/api/dto"
	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/config"
	"github.com/spec-kit/guild-warden/internal/observability"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/service"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

// OpsHandler serves the operator API: read access to the live ticket
// and mute state, guild configuration management, backups and counters.
type OpsHandler struct {
	cfg        config.OpsConfig
	tokens     *auth.TokenManager
	tickets    *service.TicketService
	moderation *service.ModerationService
	backups    *repository.BackupRepository
	configs    *repository.ConfigRepository
	audit      repository.AuditRepository
	metrics    *observability.Metrics
}

// NewOpsHandler returns a new handler instance.
func NewOpsHandler(cfg config.OpsConfig, tokens *auth.TokenManager, tickets *service.TicketService, moderation *service.ModerationService, backups *repository.BackupRepository, configs *repository.ConfigRepository, audit repository.AuditRepository, metrics *observability.Metrics) *OpsHandler {
	return &OpsHandler{
		cfg:        cfg,
		tokens:     tokens,
		tickets:    tickets,
		moderation: moderation,
		backups:    backups,
		configs:    configs,
		audit:      audit,
		metrics:    metrics,
	}
}

// Login authenticates an operator against the configured password hash
// and issues a bearer token.
func (h *OpsHandler) Login(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Operator == "" || req.Password == "" {
		return apperrors.NewValidationError("operator and password are required", nil)
	}
	if h.cfg.AdminPasswordHash == "" {
		return apperrors.NewUnauthorized("operator access is not configured")
	}
	if err := auth.ComparePassword(h.cfg.AdminPasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.Operator)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(dto.OperatorLoginResponse{Token: token, ExpiresAt: expiresAt})
}

// ListTickets returns all active tickets.
func (h *OpsHandler) ListTickets(c *fiber.Ctx) error {
	tickets := h.tickets.ActiveTickets()
	views := make([]dto.TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, dto.NewTicketView(t))
	}
	return c.JSON(fiber.Map{"tickets": views})
}

// ListMutes returns all active mutes.
func (h *OpsHandler) ListMutes(c *fiber.Ctx) error {
	mutes := h.moderation.ActiveMutes()
	views := make([]dto.MuteView, 0, len(mutes))
	for _, m := range mutes {
		views = append(views, dto.NewMuteView(m))
	}
	return c.JSON(fiber.Map{"mutes": views})
}

// ListBackups returns stored backup summaries.
func (h *OpsHandler) ListBackups(c *fiber.Ctx) error {
	summaries, err := h.backups.List()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"backups": summaries})
}

// GetBackup returns one stored backup in full.
func (h *OpsHandler) GetBackup(c *fiber.Ctx) error {
	backup, err := h.backups.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(backup)
}

// GetGuildConfig returns a guild's configuration, defaults included.
func (h *OpsHandler) GetGuildConfig(c *fiber.Ctx) error {
	cfg, err := h.configs.Load(c.Params("guildID"))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(cfg)
}

// UpdateGuildConfig stores a guild's configuration.
func (h *OpsHandler) UpdateGuildConfig(c *fiber.Ctx) error {
	var req dto.ConfigUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if len(req.Config.Tickets.StaffRoles) == 0 {
		return apperrors.NewValidationError("at least one staff role is required", nil)
	}
	if err := h.configs.Save(c.Params("guildID"), req.Config); err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(req.Config)
}

// ResetGuildConfig restores a guild's configuration to defaults.
func (h *OpsHandler) ResetGuildConfig(c *fiber.Ctx) error {
	cfg, err := h.configs.Reset(c.Params("guildID"))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(cfg)
}

// GuildAudit returns the most recent audit entries for a guild.
func (h *OpsHandler) GuildAudit(c *fiber.Ctx) error {
	if h.audit == nil {
		return c.JSON(fiber.Map{"entries": []struct{}{}})
	}
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := h.audit.ListByGuild(c.UserContext(), c.Params("guildID"), limit)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// Metrics returns the in-memory counters.
func (h *OpsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Collect())
}

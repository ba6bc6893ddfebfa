package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
)

// AutoroleService assigns onboarding roles to members as they join.
// Bots and humans can be given distinct role sets; configured roles
// are created when absent, and any failure on one role is logged
// without failing the whole join.
type AutoroleService struct {
	gateway gateway.Adapter
	configs *repository.ConfigRepository
	logger  *zap.Logger
}

// NewAutoroleService constructs the service.
func NewAutoroleService(gw gateway.Adapter, configs *repository.ConfigRepository, logger *zap.Logger) *AutoroleService {
	return &AutoroleService{gateway: gw, configs: configs, logger: logger}
}

// HandleJoin applies the configured roles to a freshly joined member.
// It returns the role names actually granted.
func (s *AutoroleService) HandleJoin(ctx context.Context, guildID string, member domain.Member) ([]string, error) {
	cfg, err := s.configs.Load(guildID)
	if err != nil {
		return nil, err
	}
	if !cfg.Autoroles.Enabled {
		return nil, nil
	}

	wanted := cfg.Autoroles.HumanRoles
	if member.Bot {
		wanted = cfg.Autoroles.BotRoles
	}
	if len(wanted) == 0 {
		wanted = cfg.Autoroles.Roles
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	var granted []string
	for _, name := range wanted {
		role, created, err := s.gateway.FindOrCreateRole(ctx, guildID, name, gateway.RoleAttrs{})
		if err != nil {
			s.logger.Warn("autorole resolution failed",
				zap.String("guild_id", guildID),
				zap.String("role", name),
				zap.Error(err))
			continue
		}
		if created {
			s.logger.Info("autorole created",
				zap.String("guild_id", guildID),
				zap.String("role", name))
		}
		if err := s.gateway.AddMemberRole(ctx, guildID, member.UserID, role.ID); err != nil {
			s.logger.Warn("autorole grant failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", member.UserID),
				zap.String("role", name),
				zap.Error(err))
			continue
		}
		granted = append(granted, name)
	}

	if cfg.Autoroles.SendDM && !member.Bot && cfg.Autoroles.WelcomeMessage != "" {
		if err := s.gateway.Notify(ctx, member.UserID, cfg.Autoroles.WelcomeMessage); err != nil {
			s.logger.Warn("welcome message failed",
				zap.String("user_id", member.UserID),
				zap.Error(err))
		}
	}
	return granted, nil
}

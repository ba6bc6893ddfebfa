package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/pkg/clock"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

// CaptchaService runs reaction-based verification. An administrator
// posts a verification prompt; members who react to it receive the
// configured verified role.
type CaptchaService struct {
	gateway    gateway.Adapter
	configs    *repository.ConfigRepository
	dispatcher events.Dispatcher
	clk        clock.Clock
	logger     *zap.Logger

	mu      sync.Mutex
	prompts map[string]string // message ID -> guild ID
}

// NewCaptchaService constructs the service.
func NewCaptchaService(gw gateway.Adapter, configs *repository.ConfigRepository, dispatcher events.Dispatcher, clk clock.Clock, logger *zap.Logger) *CaptchaService {
	return &CaptchaService{
		gateway:    gw,
		configs:    configs,
		dispatcher: dispatcher,
		clk:        clk,
		logger:     logger,
		prompts:    make(map[string]string),
	}
}

// RegisterPrompt records a posted verification message so later
// reactions on it are recognized.
func (s *CaptchaService) RegisterPrompt(guildID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[messageID] = guildID
}

// IsPrompt reports whether the message is a tracked verification
// prompt for the guild.
func (s *CaptchaService) IsPrompt(guildID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[messageID] == guildID
}

// HandleReaction verifies the reacting member: it resolves the
// configured verified role and grants it. Reactions from bots and
// reactions on untracked messages are ignored.
func (s *CaptchaService) HandleReaction(ctx context.Context, guildID, messageID string, member domain.Member) error {
	if member.Bot || !s.IsPrompt(guildID, messageID) {
		return nil
	}
	cfg, err := s.configs.Load(guildID)
	if err != nil {
		return err
	}
	if !cfg.Captcha.Enabled {
		return nil
	}

	roles, err := s.gateway.GuildRoles(ctx, guildID)
	if err != nil {
		return apperrors.NewAdapterFailure("guild_roles", err)
	}
	var verified *domain.Role
	for i := range roles {
		if roles[i].Name == cfg.Captcha.VerifiedRole {
			verified = &roles[i]
			break
		}
	}
	if verified == nil {
		return apperrors.NewNotFound("role", map[string]any{"role": cfg.Captcha.VerifiedRole})
	}

	if member.HasAnyRole([]string{verified.Name}) {
		return nil
	}
	if err := s.gateway.AddMemberRole(ctx, guildID, member.UserID, verified.ID); err != nil {
		return apperrors.NewAdapterFailure("add_member_role", err)
	}

	s.logger.Info("member verified",
		zap.String("guild_id", guildID),
		zap.String("user_id", member.UserID))
	if err := s.gateway.Notify(ctx, member.UserID, "You are verified. Welcome aboard!"); err != nil {
		s.logger.Warn("verification DM failed",
			zap.String("user_id", member.UserID),
			zap.Error(err))
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventMemberVerified,
			GuildID:   guildID,
			ActorID:   member.UserID,
			Timestamp: s.clk.Now(),
			Payload:   events.MemberVerifiedPayload{UserID: member.UserID, RoleID: verified.ID},
		})
	}
	return nil
}

// PromptText renders the configured verification prompt. The caller
// posts it and registers the resulting message ID with RegisterPrompt.
func (s *CaptchaService) PromptText(guildID string) (string, error) {
	cfg, err := s.configs.Load(guildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s**\n%s", cfg.Captcha.Title, cfg.Captcha.Description), nil
}

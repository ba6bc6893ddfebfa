package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/pkg/clock"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

// BackupService exports a guild's roles and channels to durable JSON
// snapshots. Backups are administrator-only.
type BackupService struct {
	gateway    gateway.Adapter
	gate       *auth.Gate
	backups    *repository.BackupRepository
	dispatcher events.Dispatcher
	clk        clock.Clock
	logger     *zap.Logger
}

// NewBackupService constructs the service.
func NewBackupService(gw gateway.Adapter, gate *auth.Gate, backups *repository.BackupRepository, dispatcher events.Dispatcher, clk clock.Clock, logger *zap.Logger) *BackupService {
	return &BackupService{
		gateway:    gw,
		gate:       gate,
		backups:    backups,
		dispatcher: dispatcher,
		clk:        clk,
		logger:     logger,
	}
}

// Create snapshots the guild's object graph and stores it.
func (s *BackupService) Create(ctx context.Context, gctx domain.GuildContext, actor domain.Member, guildName string) (domain.BackupSummary, error) {
	if decision := s.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		return domain.BackupSummary{}, apperrors.NewNotAuthorized(decision.Reason)
	}

	roles, err := s.gateway.GuildRoles(ctx, gctx.GuildID)
	if err != nil {
		return domain.BackupSummary{}, apperrors.NewAdapterFailure("guild_roles", err)
	}
	all, err := s.gateway.Channels(ctx, gctx.GuildID)
	if err != nil {
		return domain.BackupSummary{}, apperrors.NewAdapterFailure("channels", err)
	}

	var channels, categories []domain.Channel
	for _, ch := range all {
		if ch.Type == domain.ChannelTypeCategory {
			categories = append(categories, ch)
		} else {
			channels = append(channels, ch)
		}
	}

	now := s.clk.Now()
	backup := domain.Backup{
		ID: fmt.Sprintf("backup_%s_%d", gctx.GuildID, now.Unix()),
		Guild: domain.BackupGuildInfo{
			ID:   gctx.GuildID,
			Name: guildName,
		},
		Roles:      roles,
		Channels:   channels,
		Categories: categories,
		CreatedAt:  now,
	}
	if err := s.backups.Save(backup); err != nil {
		return domain.BackupSummary{}, apperrors.NewInternalError(err)
	}

	summary := domain.BackupSummary{
		ID:         backup.ID,
		GuildName:  guildName,
		CreatedAt:  backup.CreatedAt,
		Roles:      len(roles),
		Channels:   len(channels),
		Categories: len(categories),
	}
	s.logger.Info("guild backup created",
		zap.String("guild_id", gctx.GuildID),
		zap.String("backup_id", backup.ID),
		zap.Int("roles", summary.Roles),
		zap.Int("channels", summary.Channels))
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventBackupCreated,
			GuildID:   gctx.GuildID,
			ActorID:   actor.UserID,
			Timestamp: s.clk.Now(),
			Payload:   events.BackupCreatedPayload{Backup: summary},
		})
	}
	return summary, nil
}

// List returns stored backup summaries, newest first.
func (s *BackupService) List(gctx domain.GuildContext, actor domain.Member) ([]domain.BackupSummary, error) {
	if decision := s.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		return nil, apperrors.NewNotAuthorized(decision.Reason)
	}
	return s.backups.List()
}

// Get returns one stored backup in full.
func (s *BackupService) Get(gctx domain.GuildContext, actor domain.Member, backupID string) (*domain.Backup, error) {
	if decision := s.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		return nil, apperrors.NewNotAuthorized(decision.Reason)
	}
	return s.backups.Get(backupID)
}

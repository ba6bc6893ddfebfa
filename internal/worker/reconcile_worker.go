package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/service"
)

// RunMuteReconciliation compares the durable mute markers against the
// in-memory mute table at startup. Markers without a matching active
// mute belong to suppressions from a previous process; the worker logs
// them so operators can lift the role by hand. It never mutates guild
// state on its own.
func RunMuteReconciliation(ctx context.Context, markers *repository.MuteMarkerRepository, moderation *service.ModerationService, logger *zap.Logger) {
	if markers == nil {
		return
	}
	stored, err := markers.List(ctx)
	if err != nil {
		logger.Warn("mute marker scan failed", zap.Error(err))
		return
	}
	orphans := 0
	for _, marker := range stored {
		if _, ok := moderation.FindActive(marker.GuildID, marker.TargetID); ok {
			continue
		}
		orphans++
		logger.Warn("orphaned mute marker from a previous run",
			zap.String("guild_id", marker.GuildID),
			zap.String("target_id", marker.TargetID),
			zap.String("role_id", marker.RoleID),
			zap.Duration("expires_in", marker.ExpiresIn))
	}
	logger.Info("mute marker reconciliation complete",
		zap.Int("markers", len(stored)),
		zap.Int("orphaned", orphans))
}

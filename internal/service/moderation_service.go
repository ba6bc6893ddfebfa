package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/scheduler"
	"github.com/spec-kit/guild-warden/pkg/clock"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

type muteKey struct {
	guildID  string
	targetID string
}

// ModerationService applies and releases timed mutes. A mute is a
// shared suppression role held by the target plus a keyed release task;
// whichever path first moves the record out of Active (manual unmute or
// timer expiry) owns the release, and the loser is a silent no-op.
type ModerationService struct {
	gateway    gateway.Adapter
	gate       *auth.Gate
	dispatcher events.Dispatcher
	tasks      *scheduler.Table
	clk        clock.Clock
	logger     *zap.Logger
	audit      repository.AuditRepository
	markers    *repository.MuteMarkerRepository

	roleName        string
	roleColor       int
	defaultDuration string

	mu     sync.Mutex
	active map[muteKey]*domain.MuteRecord
}

// ModerationDependencies bundles collaborators for the moderation
// service. Audit and Markers may be nil when the backing stores are not
// configured.
type ModerationDependencies struct {
	Gateway         gateway.Adapter
	Gate            *auth.Gate
	Dispatcher      events.Dispatcher
	Tasks           *scheduler.Table
	Clock           clock.Clock
	Logger          *zap.Logger
	Audit           repository.AuditRepository
	Markers         *repository.MuteMarkerRepository
	RoleName        string
	RoleColor       int
	DefaultDuration string
}

// NewModerationService constructs the service.
func NewModerationService(deps ModerationDependencies) *ModerationService {
	name := deps.RoleName
	if name == "" {
		name = "Muted"
	}
	fallback := deps.DefaultDuration
	if fallback == "" {
		fallback = "1h"
	}
	return &ModerationService{
		gateway:         deps.Gateway,
		gate:            deps.Gate,
		dispatcher:      deps.Dispatcher,
		tasks:           deps.Tasks,
		clk:             deps.Clock,
		logger:          deps.Logger,
		audit:           deps.Audit,
		markers:         deps.Markers,
		roleName:        name,
		roleColor:       deps.RoleColor,
		defaultDuration: fallback,
		active:          make(map[muteKey]*domain.MuteRecord),
	}
}

// Mute suppresses the target for the given duration spec. An empty spec
// falls back to the configured default. Authorization and rank are
// checked before the duration is parsed, so an outranked actor is told
// so even when their duration spec is garbage.
func (s *ModerationService) Mute(ctx context.Context, gctx domain.GuildContext, actor, target domain.Member, durationSpec, reason string) (domain.MuteRecord, error) {
	if decision := s.gate.Check(actor, auth.CapabilityModerateMembers, gctx); !decision.Allowed {
		return domain.MuteRecord{}, apperrors.NewNotAuthorized(decision.Reason)
	}
	if target.Administrator {
		return domain.MuteRecord{}, apperrors.NewRankTooHigh("administrators cannot be muted")
	}
	if target.HighestRolePosition() >= actor.HighestRolePosition() {
		return domain.MuteRecord{}, apperrors.NewRankTooHigh(
			fmt.Sprintf("%s holds a role at or above yours", target.DisplayName))
	}

	key := muteKey{guildID: gctx.GuildID, targetID: target.UserID}

	s.mu.Lock()
	if existing, ok := s.active[key]; ok && existing.State == domain.MuteStateActive {
		s.mu.Unlock()
		return domain.MuteRecord{}, apperrors.NewDuplicate("member is already muted", map[string]any{
			"target_id": target.UserID,
		})
	}
	// Reserve the slot before any platform calls so a concurrent mute
	// for the same target gets DUPLICATE instead of a second role grant.
	record := &domain.MuteRecord{
		ID:          uuid.NewString(),
		GuildID:     gctx.GuildID,
		TargetID:    target.UserID,
		TargetLabel: target.DisplayName,
		ModeratorID: actor.UserID,
		Reason:      reason,
		State:       domain.MuteStateActive,
	}
	s.active[key] = record
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.active[key] == record {
			delete(s.active, key)
		}
		s.mu.Unlock()
	}

	if durationSpec == "" {
		durationSpec = s.defaultDuration
	}
	duration, err := ParseDuration(durationSpec)
	if err != nil {
		release()
		return domain.MuteRecord{}, err
	}

	role, created, err := s.gateway.FindOrCreateRole(ctx, gctx.GuildID, s.roleName, gateway.RoleAttrs{Color: s.roleColor})
	if err != nil {
		release()
		return domain.MuteRecord{}, apperrors.NewAdapterFailure("find_or_create_role", err)
	}
	if created {
		s.applySuppressionOverwrites(ctx, gctx.GuildID, role.ID)
	}

	if err := s.gateway.AddMemberRole(ctx, gctx.GuildID, target.UserID, role.ID); err != nil {
		release()
		s.logger.Error("mute role grant failed",
			zap.String("guild_id", gctx.GuildID),
			zap.String("target_id", target.UserID),
			zap.Error(err))
		return domain.MuteRecord{}, apperrors.NewAdapterFailure("add_member_role", err)
	}

	now := s.clk.Now()
	s.mu.Lock()
	record.RoleID = role.ID
	record.StartAt = now
	record.ExpiresAt = now.Add(duration)
	snapshot := *record
	s.mu.Unlock()

	s.tasks.Schedule(muteTaskKey(gctx.GuildID, target.UserID), duration, func() {
		s.releaseExpired(gctx.GuildID, target.UserID)
	})
	s.setMarker(ctx, snapshot, duration)
	s.recordAudit(ctx, gctx.GuildID, actor.UserID, target.UserID, domain.AuditMuteApplied,
		fmt.Sprintf("duration=%s reason=%s", durationSpec, reason))
	s.publish(ctx, events.Event{
		Type:    events.EventMuteApplied,
		GuildID: gctx.GuildID,
		ActorID: actor.UserID,
		Payload: events.MutePayload{
			TargetID:    snapshot.TargetID,
			TargetLabel: snapshot.TargetLabel,
			ModeratorID: actor.UserID,
			Reason:      reason,
			Duration:    duration,
			ExpiresAt:   snapshot.ExpiresAt,
		},
	})
	return snapshot, nil
}

// Unmute releases an active mute ahead of its deadline and cancels the
// pending expiry task.
func (s *ModerationService) Unmute(ctx context.Context, gctx domain.GuildContext, actor domain.Member, targetID string) (domain.MuteRecord, error) {
	if decision := s.gate.Check(actor, auth.CapabilityModerateMembers, gctx); !decision.Allowed {
		return domain.MuteRecord{}, apperrors.NewNotAuthorized(decision.Reason)
	}

	key := muteKey{guildID: gctx.GuildID, targetID: targetID}

	s.mu.Lock()
	record, ok := s.active[key]
	// A record without a role ID is a reservation whose mute is still
	// in flight; taking it out of Active here would strand the role
	// that mute is about to grant. It counts as a mute only once the
	// grant has landed.
	if !ok || record.State != domain.MuteStateActive || record.RoleID == "" {
		s.mu.Unlock()
		return domain.MuteRecord{}, apperrors.NewNotFound("mute", map[string]any{"target_id": targetID})
	}
	record.State = domain.MuteStateReleased
	delete(s.active, key)
	snapshot := *record
	s.mu.Unlock()

	s.tasks.Cancel(muteTaskKey(gctx.GuildID, targetID))

	if err := s.gateway.RemoveMemberRole(ctx, gctx.GuildID, targetID, snapshot.RoleID); err != nil {
		// The marker stays so the stranded role shows up in the next
		// reconciliation sweep.
		s.logger.Error("mute role removal failed",
			zap.String("guild_id", gctx.GuildID),
			zap.String("target_id", targetID),
			zap.String("role_id", snapshot.RoleID),
			zap.Error(err))
		return domain.MuteRecord{}, apperrors.NewAdapterFailure("remove_member_role", err)
	}
	s.clearMarker(ctx, gctx.GuildID, targetID)

	s.recordAudit(ctx, gctx.GuildID, actor.UserID, targetID, domain.AuditMuteReleased, "")
	s.publish(ctx, events.Event{
		Type:    events.EventMuteReleased,
		GuildID: gctx.GuildID,
		ActorID: actor.UserID,
		Payload: events.MutePayload{
			TargetID:    snapshot.TargetID,
			TargetLabel: snapshot.TargetLabel,
			ModeratorID: actor.UserID,
		},
	})
	return snapshot, nil
}

// releaseExpired is the scheduled expiry path. It does nothing when the
// record already left Active, so a mute unmuted just before its
// deadline produces no second release and no notification.
func (s *ModerationService) releaseExpired(guildID, targetID string) {
	key := muteKey{guildID: guildID, targetID: targetID}

	s.mu.Lock()
	record, ok := s.active[key]
	if !ok || record.State != domain.MuteStateActive {
		s.mu.Unlock()
		return
	}
	record.State = domain.MuteStateExpired
	delete(s.active, key)
	snapshot := *record
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.gateway.RemoveMemberRole(ctx, guildID, targetID, snapshot.RoleID); err != nil {
		// The marker stays so the stranded role shows up in the next
		// reconciliation sweep.
		s.logger.Warn("expired mute role removal failed",
			zap.String("guild_id", guildID),
			zap.String("target_id", targetID),
			zap.String("role_id", snapshot.RoleID),
			zap.Error(err))
	} else {
		s.clearMarker(ctx, guildID, targetID)
	}
	s.recordAudit(ctx, guildID, "", targetID, domain.AuditMuteExpired, "")
	s.publish(ctx, events.Event{
		Type:    events.EventMuteExpired,
		GuildID: guildID,
		Payload: events.MutePayload{
			TargetID:    snapshot.TargetID,
			TargetLabel: snapshot.TargetLabel,
		},
	})
}

// applySuppressionOverwrites denies send and reaction permissions for
// the suppression role on every text channel. Individual failures are
// logged and the walk continues; partially-applied overwrites are
// corrected the next time the role is created from scratch.
func (s *ModerationService) applySuppressionOverwrites(ctx context.Context, guildID, roleID string) {
	channels, err := s.gateway.Channels(ctx, guildID)
	if err != nil {
		s.logger.Warn("channel listing for suppression overwrites failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return
	}
	for _, ch := range channels {
		if ch.Type != domain.ChannelTypeText {
			continue
		}
		if err := s.gateway.SetChannelOverwrite(ctx, ch.ID, roleID, domain.SuppressionOverwrite()); err != nil {
			s.logger.Warn("suppression overwrite failed",
				zap.String("guild_id", guildID),
				zap.String("channel_id", ch.ID),
				zap.Error(err))
		}
	}
}

// FindActive returns the active mute for a target, if any.
func (s *ModerationService) FindActive(guildID, targetID string) (domain.MuteRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.active[muteKey{guildID: guildID, targetID: targetID}]
	if !ok {
		return domain.MuteRecord{}, false
	}
	return *record, true
}

// ActiveMutes snapshots every active mute for the ops API.
func (s *ModerationService) ActiveMutes() []domain.MuteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MuteRecord
	for _, record := range s.active {
		out = append(out, *record)
	}
	return out
}

func muteTaskKey(guildID, targetID string) string {
	return "mute/" + guildID + "/" + targetID
}

func (s *ModerationService) setMarker(ctx context.Context, record domain.MuteRecord, duration time.Duration) {
	if s.markers == nil {
		return
	}
	if err := s.markers.Set(ctx, record.GuildID, record.TargetID, record.RoleID, duration); err != nil {
		s.logger.Warn("mute marker write failed",
			zap.String("guild_id", record.GuildID),
			zap.String("target_id", record.TargetID),
			zap.Error(err))
	}
}

func (s *ModerationService) clearMarker(ctx context.Context, guildID, targetID string) {
	if s.markers == nil {
		return
	}
	if err := s.markers.Clear(ctx, guildID, targetID); err != nil {
		s.logger.Warn("mute marker clear failed",
			zap.String("guild_id", guildID),
			zap.String("target_id", targetID),
			zap.Error(err))
	}
}

func (s *ModerationService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.clk.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *ModerationService) recordAudit(ctx context.Context, guildID, actorID, subjectID string, action domain.AuditAction, detail string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		ActorID:   actorID,
		SubjectID: subjectID,
		Action:    action,
		Detail:    detail,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("guild_id", guildID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

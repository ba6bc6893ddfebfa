package service

import (
	"context"
	"fmt"
	"strings"
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

type ticketKey struct {
	guildID string
	ownerID string
}

// TicketService owns the ticket lifecycle per (guild, owner). Tickets
// are deduplicated on the owner's stable user ID; display names are
// presentation only and never key anything.
type TicketService struct {
	gateway    gateway.Adapter
	gate       *auth.Gate
	dispatcher events.Dispatcher
	tasks      *scheduler.Table
	clk        clock.Clock
	logger     *zap.Logger
	audit      repository.AuditRepository
	closeGrace time.Duration

	mu        sync.Mutex
	byOwner   map[ticketKey]*domain.Ticket
	byChannel map[string]*domain.Ticket
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Gateway    gateway.Adapter
	Gate       *auth.Gate
	Dispatcher events.Dispatcher
	Tasks      *scheduler.Table
	Clock      clock.Clock
	Logger     *zap.Logger
	Audit      repository.AuditRepository
	CloseGrace time.Duration
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	grace := deps.CloseGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &TicketService{
		gateway:    deps.Gateway,
		gate:       deps.Gate,
		dispatcher: deps.Dispatcher,
		tasks:      deps.Tasks,
		clk:        deps.Clock,
		logger:     deps.Logger,
		audit:      deps.Audit,
		closeGrace: grace,
		byOwner:    make(map[ticketKey]*domain.Ticket),
		byChannel:  make(map[string]*domain.Ticket),
	}
}

// Create opens a ticket for the owner, or returns the existing one when
// an Open or Claimed ticket already occupies the owner's slot. The bool
// reports whether a new ticket was provisioned.
func (s *TicketService) Create(ctx context.Context, gctx domain.GuildContext, owner domain.Member) (domain.Ticket, bool, error) {
	if owner.UserID == "" {
		return domain.Ticket{}, false, apperrors.NewValidationError("owner id required", nil)
	}
	key := ticketKey{guildID: gctx.GuildID, ownerID: owner.UserID}

	s.mu.Lock()
	// Keying on the raw user ID means a slot can only ever hold its
	// own owner's ticket; no derived-key collision is possible.
	if existing, ok := s.byOwner[key]; ok && existing.Active() {
		snapshot := *existing
		s.mu.Unlock()
		return snapshot, false, nil
	}

	// Reserve the owner's slot before releasing the lock so a
	// concurrent create for the same owner sees the ticket and
	// returns it instead of provisioning a second channel.
	ticket := &domain.Ticket{
		ID:         uuid.NewString(),
		GuildID:    gctx.GuildID,
		OwnerID:    owner.UserID,
		OwnerLabel: owner.DisplayName,
		State:      domain.TicketStateOpen,
		CreatedAt:  s.clk.Now(),
	}
	s.byOwner[key] = ticket
	s.mu.Unlock()

	spec := gateway.ChannelSpec{
		Name:           channelNameFor(owner),
		Topic:          fmt.Sprintf("Support ticket for %s", owner.DisplayName),
		VisibleTo:      []string{owner.UserID},
		VisibleToRoles: s.staffRoleIDs(ctx, gctx),
	}
	channel, err := s.gateway.CreatePrivateChannel(ctx, gctx.GuildID, spec)
	if err != nil {
		s.mu.Lock()
		if s.byOwner[key] == ticket {
			delete(s.byOwner, key)
		}
		s.mu.Unlock()
		s.logger.Error("ticket channel creation failed",
			zap.String("guild_id", gctx.GuildID),
			zap.String("owner_id", owner.UserID),
			zap.Error(err))
		return domain.Ticket{}, false, apperrors.NewAdapterFailure("create_channel", err)
	}

	s.mu.Lock()
	ticket.ChannelID = channel.ID
	s.byChannel[channel.ID] = ticket
	snapshot := *ticket
	s.mu.Unlock()

	s.recordAudit(ctx, gctx.GuildID, owner.UserID, owner.UserID, domain.AuditTicketCreated, channel.ID)
	s.publish(ctx, events.Event{
		Type:    events.EventTicketCreated,
		GuildID: gctx.GuildID,
		ActorID: owner.UserID,
		Payload: events.TicketCreatedPayload{
			TicketID:   snapshot.ID,
			OwnerID:    snapshot.OwnerID,
			OwnerLabel: snapshot.OwnerLabel,
			ChannelID:  snapshot.ChannelID,
		},
	})
	return snapshot, true, nil
}

// staffRoleIDs resolves the configured staff role names to IDs for
// channel visibility. Resolution failure narrows visibility to the
// owner; it does not fail the create.
func (s *TicketService) staffRoleIDs(ctx context.Context, gctx domain.GuildContext) []string {
	roles, err := s.gateway.GuildRoles(ctx, gctx.GuildID)
	if err != nil {
		s.logger.Warn("staff role resolution failed; ticket visible to owner only",
			zap.String("guild_id", gctx.GuildID),
			zap.Error(err))
		return nil
	}
	var ids []string
	for _, role := range roles {
		for _, want := range gctx.Authority.StaffRoles {
			if role.Name == want || role.ID == want {
				ids = append(ids, role.ID)
				break
			}
		}
	}
	return ids
}

// Claim assigns the ticket behind channelID to the actor. Only the
// ticket's owner is refused; anyone else may claim, repeatedly, without
// displacing restrictions on later claimants.
func (s *TicketService) Claim(ctx context.Context, gctx domain.GuildContext, actor domain.Member, channelID string) (domain.Ticket, error) {
	s.mu.Lock()
	ticket, ok := s.byChannel[channelID]
	if !ok || ticket.State == domain.TicketStateClosed {
		s.mu.Unlock()
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	if ticket.OwnerID == actor.UserID {
		s.mu.Unlock()
		return domain.Ticket{}, apperrors.NewSelfClaimDenied()
	}
	ticket.ClaimedBy = actor.UserID
	if ticket.State == domain.TicketStateOpen {
		ticket.State = domain.TicketStateClaimed
	}
	snapshot := *ticket
	s.mu.Unlock()

	s.recordAudit(ctx, gctx.GuildID, actor.UserID, snapshot.OwnerID, domain.AuditTicketClaimed, channelID)
	s.publish(ctx, events.Event{
		Type:    events.EventTicketClaimed,
		GuildID: gctx.GuildID,
		ActorID: actor.UserID,
		Payload: events.TicketClaimedPayload{
			TicketID:  snapshot.ID,
			OwnerID:   snapshot.OwnerID,
			ChannelID: channelID,
			ClaimedBy: actor.UserID,
		},
	})
	return snapshot, nil
}

// Close marks the ticket Closed and schedules channel deletion after
// the grace delay. Closing an already-Closed ticket is a no-op.
func (s *TicketService) Close(ctx context.Context, gctx domain.GuildContext, actor domain.Member, channelID string) (domain.Ticket, error) {
	if decision := s.gate.Check(actor, auth.CapabilityCloseTicket, gctx); !decision.Allowed {
		return domain.Ticket{}, apperrors.NewNotAuthorized(decision.Reason)
	}

	s.mu.Lock()
	ticket, ok := s.byChannel[channelID]
	if !ok {
		s.mu.Unlock()
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	if ticket.State == domain.TicketStateClosed {
		snapshot := *ticket
		s.mu.Unlock()
		return snapshot, nil
	}
	now := s.clk.Now()
	ticket.State = domain.TicketStateClosed
	ticket.ClosedAt = &now
	snapshot := *ticket
	s.mu.Unlock()

	s.recordAudit(ctx, gctx.GuildID, actor.UserID, snapshot.OwnerID, domain.AuditTicketClosed, channelID)
	s.publish(ctx, events.Event{
		Type:    events.EventTicketClosed,
		GuildID: gctx.GuildID,
		ActorID: actor.UserID,
		Payload: events.TicketClosedPayload{
			TicketID:  snapshot.ID,
			OwnerID:   snapshot.OwnerID,
			ChannelID: channelID,
			ClosedBy:  actor.UserID,
		},
	})

	s.tasks.Schedule("ticket-close/"+channelID, s.closeGrace, func() {
		s.deleteClosedChannel(snapshot.GuildID, snapshot.OwnerID, channelID)
	})
	return snapshot, nil
}

// deleteClosedChannel runs after the grace delay. Deletion failure is
// logged only; the channel may already be gone.
func (s *TicketService) deleteClosedChannel(guildID, ownerID, channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.gateway.DeleteChannel(ctx, channelID); err != nil {
		s.logger.Warn("ticket channel deletion failed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", channelID),
			zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.byChannel[channelID]
	if !ok {
		return
	}
	delete(s.byChannel, channelID)
	key := ticketKey{guildID: ticket.GuildID, ownerID: ticket.OwnerID}
	if s.byOwner[key] == ticket {
		delete(s.byOwner, key)
	}
}

// FindByChannel returns the ticket occupying a channel, if any.
func (s *TicketService) FindByChannel(channelID string) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.byChannel[channelID]
	if !ok {
		return domain.Ticket{}, false
	}
	return *ticket, true
}

// ActiveTickets snapshots every non-Closed ticket for the ops API.
func (s *TicketService) ActiveTickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range s.byOwner {
		if ticket.Active() {
			out = append(out, *ticket)
		}
	}
	return out
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.clk.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) recordAudit(ctx context.Context, guildID, actorID, subjectID string, action domain.AuditAction, detail string) {
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

func channelNameFor(owner domain.Member) string {
	label := strings.ToLower(strings.TrimSpace(owner.DisplayName))
	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, label)
	if label == "" {
		label = owner.UserID
	}
	return "ticket-" + label
}

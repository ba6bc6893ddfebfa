package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
)

// NotificationService turns domain events into user-facing messages.
// It runs entirely off the event bus: the managers commit their state
// transition first, publish, and this service delivers afterwards.
// Every delivery is best-effort; closed DMs and deleted channels are
// logged and otherwise ignored.
type NotificationService struct {
	dispatcher events.Dispatcher
	gateway    gateway.Adapter
	configs    *repository.ConfigRepository
	logger     *zap.Logger
}

// NewNotificationService constructs the service. Call RegisterHandlers
// to wire it to the dispatcher.
func NewNotificationService(dispatcher events.Dispatcher, gw gateway.Adapter, configs *repository.ConfigRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, gateway: gw, configs: configs, logger: logger}
}

// RegisterHandlers subscribes the delivery handlers to the dispatcher.
func (s *NotificationService) RegisterHandlers() {
	s.dispatcher.Subscribe(events.EventTicketCreated, s.onTicketCreated)
	s.dispatcher.Subscribe(events.EventTicketClaimed, s.onTicketClaimed)
	s.dispatcher.Subscribe(events.EventTicketClosed, s.onTicketClosed)
	s.dispatcher.Subscribe(events.EventMuteApplied, s.onMuteApplied)
	s.dispatcher.Subscribe(events.EventMuteReleased, s.onMuteReleased)
	s.dispatcher.Subscribe(events.EventMuteExpired, s.onMuteExpired)
}

func (s *NotificationService) onTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	cfg, err := s.configs.Load(event.GuildID)
	if err != nil {
		s.logger.Warn("config load for ticket welcome failed",
			zap.String("guild_id", event.GuildID),
			zap.Error(err))
		return nil
	}
	welcome := strings.ReplaceAll(cfg.Tickets.WelcomeDescription, "{user}", mention(payload.OwnerID))
	message := fmt.Sprintf("**%s**\n%s", cfg.Tickets.WelcomeTitle, welcome)
	s.post(ctx, payload.ChannelID, message)
	return nil
}

func (s *NotificationService) onTicketClaimed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClaimedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	s.post(ctx, payload.ChannelID, fmt.Sprintf("%s has claimed this ticket and will assist you.", mention(payload.ClaimedBy)))
	return nil
}

func (s *NotificationService) onTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	s.post(ctx, payload.ChannelID, "This ticket has been closed. The channel will be deleted shortly.")
	s.dm(ctx, payload.OwnerID, "Your support ticket has been closed. Thanks for reaching out.")
	return nil
}

func (s *NotificationService) onMuteApplied(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MutePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	message := fmt.Sprintf("You have been muted for %s.", formatDuration(payload.Duration))
	if payload.Reason != "" {
		message += " Reason: " + payload.Reason
	}
	s.dm(ctx, payload.TargetID, message)
	return nil
}

func (s *NotificationService) onMuteReleased(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MutePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	s.dm(ctx, payload.TargetID, "Your mute has been lifted by a moderator.")
	return nil
}

func (s *NotificationService) onMuteExpired(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MutePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	s.dm(ctx, payload.TargetID, "Your mute has expired. Please keep the rules in mind.")
	return nil
}

func (s *NotificationService) post(ctx context.Context, channelID, message string) {
	if err := s.gateway.SendMessage(ctx, channelID, message); err != nil {
		s.logger.Warn("channel notification failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
}

func (s *NotificationService) dm(ctx context.Context, userID, message string) {
	if err := s.gateway.Notify(ctx, userID, message); err != nil {
		s.logger.Warn("direct message failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

package events

import (
	"time"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketClaimed  EventType = "ticket_claimed"
	EventTicketClosed   EventType = "ticket_closed"
	EventMuteApplied    EventType = "mute_applied"
	EventMuteReleased   EventType = "mute_released"
	EventMuteExpired    EventType = "mute_expired"
	EventMemberVerified EventType = "member_verified"
	EventBackupCreated  EventType = "backup_created"
)

// Event represents a domain event emitted by the managers.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID   string `json:"ticket_id"`
	OwnerID    string `json:"owner_id"`
	OwnerLabel string `json:"owner_label"`
	ChannelID  string `json:"channel_id"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	TicketID  string `json:"ticket_id"`
	OwnerID   string `json:"owner_id"`
	ChannelID string `json:"channel_id"`
	ClaimedBy string `json:"claimed_by"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TicketID  string `json:"ticket_id"`
	OwnerID   string `json:"owner_id"`
	ChannelID string `json:"channel_id"`
	ClosedBy  string `json:"closed_by"`
}

// MutePayload payload shared by mute transitions.
type MutePayload struct {
	TargetID    string        `json:"target_id"`
	TargetLabel string        `json:"target_label"`
	ModeratorID string        `json:"moderator_id,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at,omitempty"`
}

// MemberVerifiedPayload payload.
type MemberVerifiedPayload struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

// BackupCreatedPayload payload.
type BackupCreatedPayload struct {
	Backup domain.BackupSummary `json:"backup"`
}

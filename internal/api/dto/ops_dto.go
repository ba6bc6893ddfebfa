package dto

import (
	"time"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// OperatorLoginRequest payload.
type OperatorLoginRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

// OperatorLoginResponse payload.
type OperatorLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketView is the ops listing shape of a ticket.
type TicketView struct {
	ID         string     `json:"id"`
	GuildID    string     `json:"guild_id"`
	OwnerID    string     `json:"owner_id"`
	OwnerLabel string     `json:"owner_label"`
	ChannelID  string     `json:"channel_id"`
	ClaimedBy  string     `json:"claimed_by,omitempty"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// NewTicketView maps a domain ticket.
func NewTicketView(t domain.Ticket) TicketView {
	return TicketView{
		ID:         t.ID,
		GuildID:    t.GuildID,
		OwnerID:    t.OwnerID,
		OwnerLabel: t.OwnerLabel,
		ChannelID:  t.ChannelID,
		ClaimedBy:  t.ClaimedBy,
		State:      string(t.State),
		CreatedAt:  t.CreatedAt,
		ClosedAt:   t.ClosedAt,
	}
}

// MuteView is the ops listing shape of a mute record.
type MuteView struct {
	ID          string    `json:"id"`
	GuildID     string    `json:"guild_id"`
	TargetID    string    `json:"target_id"`
	TargetLabel string    `json:"target_label"`
	ModeratorID string    `json:"moderator_id"`
	Reason      string    `json:"reason,omitempty"`
	State       string    `json:"state"`
	StartAt     time.Time `json:"start_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewMuteView maps a domain mute record.
func NewMuteView(m domain.MuteRecord) MuteView {
	return MuteView{
		ID:          m.ID,
		GuildID:     m.GuildID,
		TargetID:    m.TargetID,
		TargetLabel: m.TargetLabel,
		ModeratorID: m.ModeratorID,
		Reason:      m.Reason,
		State:       string(m.State),
		StartAt:     m.StartAt,
		ExpiresAt:   m.ExpiresAt,
	}
}

// ConfigUpdateRequest carries a full guild configuration to store.
type ConfigUpdateRequest struct {
	Config domain.GuildConfig `json:"config"`
}

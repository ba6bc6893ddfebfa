package domain

import "time"

// AuditAction names a recorded state transition.
type AuditAction string

const (
	AuditTicketCreated AuditAction = "ticket_created"
	AuditTicketClaimed AuditAction = "ticket_claimed"
	AuditTicketClosed  AuditAction = "ticket_closed"
	AuditMuteApplied   AuditAction = "mute_applied"
	AuditMuteReleased  AuditAction = "mute_released"
	AuditMuteExpired   AuditAction = "mute_expired"
)

// AuditEntry is one row of the moderation audit trail. Writing the
// trail is best-effort; the primary transition never waits on it.
type AuditEntry struct {
	ID        string
	GuildID   string
	ActorID   string
	SubjectID string
	Action    AuditAction
	Detail    string
	CreatedAt time.Time
}

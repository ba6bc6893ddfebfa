package domain

import "time"

// MuteState enumerates lifecycle states for timed mutes.
type MuteState string

const (
	// MuteStateActive means the suppression role should be applied.
	MuteStateActive MuteState = "ACTIVE"
	// MuteStateReleased means a moderator lifted the mute early.
	MuteStateReleased MuteState = "RELEASED"
	// MuteStateExpired means the deferred release fired.
	MuteStateExpired MuteState = "EXPIRED"
)

// MuteRecord tracks one timed suppression of a member. At most one
// Active record exists per (GuildID, TargetID). Transitions out of
// Active are single-writer-wins; the losing transition is a no-op.
type MuteRecord struct {
	ID          string
	GuildID     string
	TargetID    string
	TargetLabel string
	ModeratorID string
	Reason      string
	RoleID      string
	State       MuteState
	StartAt     time.Time
	ExpiresAt   time.Time
}

// Duration returns the scheduled length of the mute.
func (m *MuteRecord) Duration() time.Duration {
	return m.ExpiresAt.Sub(m.StartAt)
}

package domain

import "time"

// TicketState enumerates lifecycle states for support tickets.
type TicketState string

const (
	TicketStateOpen    TicketState = "OPEN"
	TicketStateClaimed TicketState = "CLAIMED"
	TicketStateClosed  TicketState = "CLOSED"
)

// Ticket is one private support conversation. At most one ticket in a
// non-Closed state exists per (GuildID, OwnerID); the owner ID is the
// uniqueness key, never the display name.
type Ticket struct {
	ID         string
	GuildID    string
	OwnerID    string
	OwnerLabel string
	ChannelID  string
	ClaimedBy  string
	State      TicketState
	CreatedAt  time.Time
	ClosedAt   *time.Time
}

// Active reports whether the ticket still occupies its owner's slot.
func (t *Ticket) Active() bool {
	return t.State == TicketStateOpen || t.State == TicketStateClaimed
}

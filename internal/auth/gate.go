package auth

import (
	"fmt"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// Capability names a permission bundle evaluated by the gate.
type Capability string

const (
	// CapabilityCloseTicket allows closing support tickets.
	CapabilityCloseTicket Capability = "close_ticket"
	// CapabilityModerateMembers allows muting and unmuting members.
	CapabilityModerateMembers Capability = "moderate_members"
	// CapabilityAdminister requires the platform administrator
	// permission itself.
	CapabilityAdminister Capability = "administer"
)

// Decision is the outcome of a capability check. When Allowed is false,
// Reason carries the user-visible denial text.
type Decision struct {
	Allowed bool
	Reason  string
}

func allowed() Decision { return Decision{Allowed: true} }

func denied(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Gate evaluates whether an actor may perform a privileged operation.
// It performs no I/O, never errors, and is evaluated exactly once per
// command, before any state mutation.
type Gate struct{}

// NewGate returns the capability evaluator.
func NewGate() *Gate { return &Gate{} }

// Check evaluates the actor's snapshot against a capability under the
// guild's configured authority.
func (g *Gate) Check(actor domain.Member, capability Capability, gctx domain.GuildContext) Decision {
	switch capability {
	case CapabilityAdminister:
		if actor.Administrator {
			return allowed()
		}
		return denied("administrator permission required")
	case CapabilityCloseTicket, CapabilityModerateMembers:
		if gctx.Authority.AdminGrantsAll && actor.Administrator {
			return allowed()
		}
		if actor.HasAnyRole(gctx.Authority.StaffRoles) {
			return allowed()
		}
		return denied(fmt.Sprintf("requires one of the staff roles: %v", gctx.Authority.StaffRoles))
	default:
		return denied(fmt.Sprintf("unknown capability %q", capability))
	}
}

// Package gateway defines the adapter contract over the chat platform's
// shared object graph (roles, channels, members). The managers reach
// the platform only through these idempotent primitives; every
// implementation must tolerate concurrent callers.
package gateway

import (
	"context"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// RoleAttrs are the attributes used when find-or-create has to create.
type RoleAttrs struct {
	Color int
}

// ChannelSpec describes a private channel to provision. The channel is
// default-deny for everyone and visible to VisibleTo users and
// VisibleToRoles roles.
type ChannelSpec struct {
	Name           string
	Topic          string
	VisibleTo      []string
	VisibleToRoles []string
}

// Adapter exposes idempotent operations over one platform connection.
//
// FindOrCreateRole must never produce two roles for the same
// (guild, name) pair, no matter how many callers race on it.
type Adapter interface {
	// Member returns a point-in-time snapshot of a guild member.
	Member(ctx context.Context, guildID, userID string) (domain.Member, error)

	// GuildRoles lists the guild's roles.
	GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error)

	// Channels lists the guild's channels, categories included.
	Channels(ctx context.Context, guildID string) ([]domain.Channel, error)

	// FindOrCreateRole returns the role named name, creating it with
	// attrs when absent. The bool reports whether a role was created.
	FindOrCreateRole(ctx context.Context, guildID, name string, attrs RoleAttrs) (domain.Role, bool, error)

	// SetChannelOverwrite applies a permission overwrite for a role.
	SetChannelOverwrite(ctx context.Context, channelID, roleID string, rules domain.OverwriteRules) error

	// AddMemberRole grants a role; a no-op when already held.
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error

	// RemoveMemberRole revokes a role; a no-op when not held.
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error

	// CreatePrivateChannel provisions a text channel per spec.
	CreatePrivateChannel(ctx context.Context, guildID string, spec ChannelSpec) (domain.Channel, error)

	// DeleteChannel removes a channel.
	DeleteChannel(ctx context.Context, channelID string) error

	// SendMessage posts a message to a channel.
	SendMessage(ctx context.Context, channelID, message string) error

	// Notify sends a direct message to a user. Callers treat failure
	// as best-effort and only log it.
	Notify(ctx context.Context, userID, message string) error
}

package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// DiscordAdapter implements Adapter over a discordgo session. Role
// creation is serialized per guild so two commands racing on an absent
// role converge on a single one; every other call maps directly to an
// idempotent platform endpoint.
type DiscordAdapter struct {
	session *discordgo.Session

	mu        sync.Mutex
	roleLocks map[string]*sync.Mutex
}

// NewDiscordAdapter wraps an open session.
func NewDiscordAdapter(session *discordgo.Session) *DiscordAdapter {
	return &DiscordAdapter{
		session:   session,
		roleLocks: make(map[string]*sync.Mutex),
	}
}

func (a *DiscordAdapter) guildRoleLock(guildID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.roleLocks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		a.roleLocks[guildID] = lock
	}
	return lock
}

// Member implements Adapter.
func (a *DiscordAdapter) Member(ctx context.Context, guildID, userID string) (domain.Member, error) {
	member, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Member{}, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	roles, err := a.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Member{}, fmt.Errorf("list roles for guild %s: %w", guildID, err)
	}
	return buildMemberSnapshot(member, roles), nil
}

// buildMemberSnapshot derives the admin flag from role permission bits;
// the REST member payload does not carry computed permissions.
func buildMemberSnapshot(member *discordgo.Member, guildRoles []*discordgo.Role) domain.Member {
	byID := make(map[string]*discordgo.Role, len(guildRoles))
	for _, role := range guildRoles {
		byID[role.ID] = role
	}

	snap := domain.Member{UserID: member.User.ID, Bot: member.User.Bot}
	snap.DisplayName = member.Nick
	if snap.DisplayName == "" {
		snap.DisplayName = member.User.Username
	}
	for _, roleID := range member.Roles {
		role, ok := byID[roleID]
		if !ok {
			continue
		}
		snap.Roles = append(snap.Roles, domain.Role{
			ID:       role.ID,
			Name:     role.Name,
			Color:    role.Color,
			Position: role.Position,
		})
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			snap.Administrator = true
		}
	}
	return snap
}

// GuildRoles implements Adapter.
func (a *DiscordAdapter) GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error) {
	roles, err := a.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list roles for guild %s: %w", guildID, err)
	}
	out := make([]domain.Role, 0, len(roles))
	for _, role := range roles {
		out = append(out, domain.Role{
			ID:       role.ID,
			Name:     role.Name,
			Color:    role.Color,
			Position: role.Position,
		})
	}
	return out, nil
}

// Channels implements Adapter.
func (a *DiscordAdapter) Channels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	channels, err := a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channels for guild %s: %w", guildID, err)
	}
	out := make([]domain.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, domain.Channel{
			ID:       ch.ID,
			Name:     ch.Name,
			Type:     mapChannelType(ch.Type),
			Position: ch.Position,
			ParentID: ch.ParentID,
			Topic:    ch.Topic,
		})
	}
	return out, nil
}

func mapChannelType(t discordgo.ChannelType) domain.ChannelType {
	switch t {
	case discordgo.ChannelTypeGuildCategory:
		return domain.ChannelTypeCategory
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return domain.ChannelTypeVoice
	default:
		return domain.ChannelTypeText
	}
}

// FindOrCreateRole implements Adapter. The per-guild lock closes the
// observe-then-create window between concurrent callers on this
// process; the platform itself does not deduplicate role names.
func (a *DiscordAdapter) FindOrCreateRole(ctx context.Context, guildID, name string, attrs RoleAttrs) (domain.Role, bool, error) {
	lock := a.guildRoleLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	roles, err := a.GuildRoles(ctx, guildID)
	if err != nil {
		return domain.Role{}, false, err
	}
	for _, role := range roles {
		if role.Name == name {
			return role, false, nil
		}
	}

	color := attrs.Color
	created, err := a.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:  name,
		Color: &color,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Role{}, false, fmt.Errorf("create role %q in guild %s: %w", name, guildID, err)
	}
	return domain.Role{
		ID:       created.ID,
		Name:     created.Name,
		Color:    created.Color,
		Position: created.Position,
	}, true, nil
}

func overwriteBits(rules domain.OverwriteRules) (allow, deny int64) {
	apply := func(flag *bool, bit int64) {
		if flag == nil {
			return
		}
		if *flag {
			allow |= bit
		} else {
			deny |= bit
		}
	}
	apply(rules.ViewChannel, discordgo.PermissionViewChannel)
	apply(rules.SendMessages, discordgo.PermissionSendMessages)
	apply(rules.AddReactions, discordgo.PermissionAddReactions)
	return allow, deny
}

// SetChannelOverwrite implements Adapter.
func (a *DiscordAdapter) SetChannelOverwrite(ctx context.Context, channelID, roleID string, rules domain.OverwriteRules) error {
	allow, deny := overwriteBits(rules)
	err := a.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, allow, deny, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("set overwrite on channel %s for role %s: %w", channelID, roleID, err)
	}
	return nil
}

// AddMemberRole implements Adapter.
func (a *DiscordAdapter) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := a.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s to member %s: %w", roleID, userID, err)
	}
	return nil
}

// RemoveMemberRole implements Adapter.
func (a *DiscordAdapter) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := a.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s from member %s: %w", roleID, userID, err)
	}
	return nil
}

// CreatePrivateChannel implements Adapter.
func (a *DiscordAdapter) CreatePrivateChannel(ctx context.Context, guildID string, spec ChannelSpec) (domain.Channel, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			// The guild ID doubles as the @everyone role ID.
			ID:   guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
	}
	memberAllow := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory)
	for _, userID := range spec.VisibleTo {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAllow,
		})
	}
	for _, roleID := range spec.VisibleToRoles {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    roleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberAllow,
		})
	}

	ch, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Channel{}, fmt.Errorf("create channel %q in guild %s: %w", spec.Name, guildID, err)
	}
	return domain.Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		Type:     domain.ChannelTypeText,
		Position: ch.Position,
		ParentID: ch.ParentID,
		Topic:    ch.Topic,
	}, nil
}

// DeleteChannel implements Adapter.
func (a *DiscordAdapter) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := a.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

// SendMessage implements Adapter.
func (a *DiscordAdapter) SendMessage(ctx context.Context, channelID, message string) error {
	if _, err := a.session.ChannelMessageSend(channelID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message to channel %s: %w", channelID, err)
	}
	return nil
}

// Notify implements Adapter.
func (a *DiscordAdapter) Notify(ctx context.Context, userID, message string) error {
	dm, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM with user %s: %w", userID, err)
	}
	if _, err := a.session.ChannelMessageSend(dm.ID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send DM to user %s: %w", userID, err)
	}
	return nil
}

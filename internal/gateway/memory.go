package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// MemoryAdapter is an in-process guild graph. It backs the service in
// development when no platform token is configured, and the manager
// tests. All operations are safe for concurrent use; role creation is
// serialized per guild so concurrent find-or-create calls converge on
// one role.
type MemoryAdapter struct {
	mu     sync.Mutex
	guilds map[string]*memoryGuild

	// DMs records notifications per user ID, newest last.
	dmMu sync.Mutex
	dms  map[string][]string
}

type memoryGuild struct {
	roles      map[string]*domain.Role // by ID
	channels   map[string]*domain.Channel
	members    map[string]*memoryMember
	overwrites map[string]map[string]domain.OverwriteRules // channel -> role -> rules
	messages   map[string][]string
	nextPos    int
}

type memoryMember struct {
	member domain.Member
	roles  map[string]struct{} // role IDs held
}

// NewMemoryAdapter creates an empty graph.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		guilds: make(map[string]*memoryGuild),
		dms:    make(map[string][]string),
	}
}

// AddGuild registers an empty guild.
func (a *MemoryAdapter) AddGuild(guildID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.guild(guildID)
}

// AddMember seeds a member snapshot into a guild.
func (a *MemoryAdapter) AddMember(guildID string, member domain.Member) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := a.guild(guildID)
	held := make(map[string]struct{}, len(member.Roles))
	for _, role := range member.Roles {
		if _, ok := g.roles[role.ID]; !ok {
			copied := role
			g.roles[role.ID] = &copied
		}
		held[role.ID] = struct{}{}
	}
	g.members[member.UserID] = &memoryMember{member: member, roles: held}
}

// AddTextChannel seeds a text channel and returns it.
func (a *MemoryAdapter) AddTextChannel(guildID, name string) domain.Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := a.guild(guildID)
	ch := &domain.Channel{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     domain.ChannelTypeText,
		Position: g.nextPos,
	}
	g.nextPos++
	g.channels[ch.ID] = ch
	return *ch
}

func (a *MemoryAdapter) guild(guildID string) *memoryGuild {
	g, ok := a.guilds[guildID]
	if !ok {
		g = &memoryGuild{
			roles:      make(map[string]*domain.Role),
			channels:   make(map[string]*domain.Channel),
			members:    make(map[string]*memoryMember),
			overwrites: make(map[string]map[string]domain.OverwriteRules),
			messages:   make(map[string][]string),
		}
		a.guilds[guildID] = g
	}
	return g
}

func (a *MemoryAdapter) lookupGuild(guildID string) (*memoryGuild, error) {
	g, ok := a.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("unknown guild %s", guildID)
	}
	return g, nil
}

// Member implements Adapter.
func (a *MemoryAdapter) Member(ctx context.Context, guildID, userID string) (domain.Member, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookupGuild(guildID)
	if err != nil {
		return domain.Member{}, err
	}
	m, ok := g.members[userID]
	if !ok {
		return domain.Member{}, fmt.Errorf("unknown member %s in guild %s", userID, guildID)
	}
	return a.snapshotMember(g, m), nil
}

func (a *MemoryAdapter) snapshotMember(g *memoryGuild, m *memoryMember) domain.Member {
	snap := m.member
	snap.Roles = nil
	for roleID := range m.roles {
		if role, ok := g.roles[roleID]; ok {
			snap.Roles = append(snap.Roles, *role)
		}
	}
	return snap
}

// GuildRoles implements Adapter.
func (a *MemoryAdapter) GuildRoles(ctx context.Context, guildID string) ([]domain.Role, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookupGuild(guildID)
	if err != nil {
		return nil, err
	}
	roles := make([]domain.Role, 0, len(g.roles))
	for _, role := range g.roles {
		roles = append(roles, *role)
	}
	return roles, nil
}

// Channels implements Adapter.
func (a *MemoryAdapter) Channels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookupGuild(guildID)
	if err != nil {
		return nil, err
	}
	channels := make([]domain.Channel, 0, len(g.channels))
	for _, ch := range g.channels {
		channels = append(channels, *ch)
	}
	return channels, nil
}

// FindOrCreateRole implements Adapter. The adapter mutex covers the
// whole observe-then-create window, so two racing callers cannot both
// create.
func (a *MemoryAdapter) FindOrCreateRole(ctx context.Context, guildID, name string, attrs RoleAttrs) (domain.Role, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := a.guild(guildID)
	for _, role := range g.roles {
		if role.Name == name {
			return *role, false, nil
		}
	}
	role := &domain.Role{
		ID:       uuid.NewString(),
		Name:     name,
		Color:    attrs.Color,
		Position: g.nextPos,
	}
	g.nextPos++
	g.roles[role.ID] = role
	return *role, true, nil
}

// SetChannelOverwrite implements Adapter.
func (a *MemoryAdapter) SetChannelOverwrite(ctx context.Context, channelID, roleID string, rules domain.OverwriteRules) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.guilds {
		if _, ok := g.channels[channelID]; !ok {
			continue
		}
		if g.overwrites[channelID] == nil {
			g.overwrites[channelID] = make(map[string]domain.OverwriteRules)
		}
		g.overwrites[channelID][roleID] = rules
		return nil
	}
	return fmt.Errorf("unknown channel %s", channelID)
}

// AddMemberRole implements Adapter.
func (a *MemoryAdapter) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookupGuild(guildID)
	if err != nil {
		return err
	}
	m, ok := g.members[userID]
	if !ok {
		return fmt.Errorf("unknown member %s", userID)
	}
	if _, ok := g.roles[roleID]; !ok {
		return fmt.Errorf("unknown role %s", roleID)
	}
	m.roles[roleID] = struct{}{}
	return nil
}

// RemoveMemberRole implements Adapter.
func (a *MemoryAdapter) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, err := a.lookupGuild(guildID)
	if err != nil {
		return err
	}
	m, ok := g.members[userID]
	if !ok {
		return fmt.Errorf("unknown member %s", userID)
	}
	delete(m.roles, roleID)
	return nil
}

// CreatePrivateChannel implements Adapter.
func (a *MemoryAdapter) CreatePrivateChannel(ctx context.Context, guildID string, spec ChannelSpec) (domain.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := a.guild(guildID)
	ch := &domain.Channel{
		ID:       uuid.NewString(),
		Name:     spec.Name,
		Type:     domain.ChannelTypeText,
		Topic:    spec.Topic,
		Position: g.nextPos,
	}
	g.nextPos++
	g.channels[ch.ID] = ch
	return *ch, nil
}

// DeleteChannel implements Adapter. Deleting twice is an error, which
// callers on best-effort paths are expected to log and swallow.
func (a *MemoryAdapter) DeleteChannel(ctx context.Context, channelID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.guilds {
		if _, ok := g.channels[channelID]; ok {
			delete(g.channels, channelID)
			delete(g.overwrites, channelID)
			return nil
		}
	}
	return fmt.Errorf("unknown channel %s", channelID)
}

// SendMessage implements Adapter.
func (a *MemoryAdapter) SendMessage(ctx context.Context, channelID, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.guilds {
		if _, ok := g.channels[channelID]; ok {
			g.messages[channelID] = append(g.messages[channelID], message)
			return nil
		}
	}
	return fmt.Errorf("unknown channel %s", channelID)
}

// Notify implements Adapter.
func (a *MemoryAdapter) Notify(ctx context.Context, userID, message string) error {
	a.dmMu.Lock()
	defer a.dmMu.Unlock()
	a.dms[userID] = append(a.dms[userID], message)
	return nil
}

// MemberHasRole reports whether the member currently holds the role.
func (a *MemoryAdapter) MemberHasRole(guildID, userID, roleID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.guilds[guildID]
	if !ok {
		return false
	}
	m, ok := g.members[userID]
	if !ok {
		return false
	}
	_, held := m.roles[roleID]
	return held
}

// HasChannel reports whether the channel still exists.
func (a *MemoryAdapter) HasChannel(channelID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.guilds {
		if _, ok := g.channels[channelID]; ok {
			return true
		}
	}
	return false
}

// Overwrite returns the recorded overwrite for (channel, role).
func (a *MemoryAdapter) Overwrite(channelID, roleID string) (domain.OverwriteRules, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.guilds {
		if rules, ok := g.overwrites[channelID]; ok {
			r, found := rules[roleID]
			return r, found
		}
	}
	return domain.OverwriteRules{}, false
}

// Messages returns the messages posted to a channel, oldest first.
func (a *MemoryAdapter) Messages(channelID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.guilds {
		if msgs, ok := g.messages[channelID]; ok {
			return append([]string(nil), msgs...)
		}
	}
	return nil
}

// Notifications returns the DMs recorded for a user.
func (a *MemoryAdapter) Notifications(userID string) []string {
	a.dmMu.Lock()
	defer a.dmMu.Unlock()
	return append([]string(nil), a.dms[userID]...)
}

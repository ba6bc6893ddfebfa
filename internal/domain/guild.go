package domain

// ChannelType distinguishes channel kinds in a guild.
type ChannelType string

const (
	ChannelTypeText     ChannelType = "TEXT"
	ChannelTypeVoice    ChannelType = "VOICE"
	ChannelTypeCategory ChannelType = "CATEGORY"
)

// Role is a snapshot of a guild role. Position is the ordinal used for
// rank comparison; a higher position outranks a lower one.
type Role struct {
	ID       string
	Name     string
	Color    int
	Position int
}

// Channel is a snapshot of a guild channel.
type Channel struct {
	ID       string
	Name     string
	Type     ChannelType
	Position int
	ParentID string
	Topic    string
}

// Member is a point-in-time snapshot of a guild member, captured by the
// caller before invoking a manager. The core never refreshes it.
type Member struct {
	UserID        string
	DisplayName   string
	Bot           bool
	Administrator bool
	Roles         []Role
}

// HighestRolePosition returns the ordinal of the member's highest role,
// or -1 when the member holds no roles.
func (m Member) HighestRolePosition() int {
	highest := -1
	for _, role := range m.Roles {
		if role.Position > highest {
			highest = role.Position
		}
	}
	return highest
}

// HasAnyRole reports whether the member holds a role whose name or ID
// appears in the given set.
func (m Member) HasAnyRole(set []string) bool {
	for _, role := range m.Roles {
		for _, want := range set {
			if role.Name == want || role.ID == want {
				return true
			}
		}
	}
	return false
}

// StaffAuthority is the per-guild capability configuration. Owned by
// the configuration store and read-only to the managers.
type StaffAuthority struct {
	// StaffRoles lists role names or IDs conferring ticket-close and
	// moderation capability.
	StaffRoles []string
	// AdminGrantsAll makes the platform administrator permission imply
	// every capability.
	AdminGrantsAll bool
}

// GuildContext travels with every manager operation.
type GuildContext struct {
	GuildID   string
	Authority StaffAuthority
}

// OverwriteRules describes a channel permission overwrite applied for a
// role. A nil entry leaves the permission inherited.
type OverwriteRules struct {
	ViewChannel  *bool
	SendMessages *bool
	AddReactions *bool
}

func boolPtr(v bool) *bool { return &v }

// SuppressionOverwrite denies sending and reacting, the rules applied
// to every text channel for the suppression role.
func SuppressionOverwrite() OverwriteRules {
	return OverwriteRules{
		SendMessages: boolPtr(false),
		AddReactions: boolPtr(false),
	}
}

// HiddenChannelOverwrite denies visibility, the default for everyone on
// a ticket channel.
func HiddenChannelOverwrite() OverwriteRules {
	return OverwriteRules{ViewChannel: boolPtr(false)}
}

// VisibleChannelOverwrite grants visibility and sending, applied for a
// ticket's owner and staff.
func VisibleChannelOverwrite() OverwriteRules {
	return OverwriteRules{
		ViewChannel:  boolPtr(true),
		SendMessages: boolPtr(true),
	}
}

package domain

// TicketConfig holds the presentation and authority settings for the
// ticket system of one guild.
type TicketConfig struct {
	PanelTitle         string   `json:"panel_title"`
	PanelDescription   string   `json:"panel_description"`
	WelcomeTitle       string   `json:"welcome_title"`
	WelcomeDescription string   `json:"welcome_description"`
	Categories         []string `json:"categories"`
	LogChannelID       string   `json:"log_channel_id,omitempty"`
	StaffRoles         []string `json:"staff_roles"`
}

// AutoroleConfig holds onboarding role assignment settings.
type AutoroleConfig struct {
	Enabled        bool     `json:"enabled"`
	Roles          []string `json:"roles"`
	BotRoles       []string `json:"bot_roles"`
	HumanRoles     []string `json:"human_roles"`
	WelcomeMessage string   `json:"welcome_message"`
	SendDM         bool     `json:"send_dm"`
}

// CaptchaConfig holds reaction-verification settings.
type CaptchaConfig struct {
	Enabled      bool   `json:"enabled"`
	VerifiedRole string `json:"verified_role"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

// GuildConfig aggregates per-guild settings. Managers treat it as
// read-mostly input; only the configuration commands mutate it.
type GuildConfig struct {
	Tickets   TicketConfig   `json:"tickets"`
	Autoroles AutoroleConfig `json:"autoroles"`
	Captcha   CaptchaConfig  `json:"captcha"`
}

// Authority derives the capability configuration from the guild config.
func (c GuildConfig) Authority() StaffAuthority {
	return StaffAuthority{
		StaffRoles:     c.Tickets.StaffRoles,
		AdminGrantsAll: true,
	}
}

// DefaultGuildConfig returns the settings used until a guild saves its
// own configuration.
func DefaultGuildConfig() GuildConfig {
	return GuildConfig{
		Tickets: TicketConfig{
			PanelTitle:         "Support Tickets",
			PanelDescription:   "Click the button below to open a private support ticket. Tickets are visible only to you and the staff team.",
			WelcomeTitle:       "Ticket Created",
			WelcomeDescription: "Hello {user}! Describe your issue here and a staff member will respond shortly. Use /ticket close when you are done.",
			Categories:         []string{"General", "Support", "Reports", "Suggestions"},
			StaffRoles:         []string{"Staff", "Moderator", "Founder"},
		},
		Autoroles: AutoroleConfig{
			Enabled:        true,
			Roles:          []string{"Member"},
			BotRoles:       []string{"Member"},
			HumanRoles:     []string{"Member"},
			WelcomeMessage: "Welcome to the server!",
			SendDM:         false,
		},
		Captcha: CaptchaConfig{
			Enabled:      false,
			VerifiedRole: "Verified",
			Title:        "Captcha Verification",
			Description:  "React with the checkmark to verify and unlock the rest of the server.",
		},
	}
}

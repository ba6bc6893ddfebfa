package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/guild-warden/internal/domain"
)

const embedColor = 0x5865F2

func panelEmbed(cfg domain.TicketConfig) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       cfg.PanelTitle,
		Description: cfg.PanelDescription,
		Color:       embedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Categories: " + strings.Join(cfg.Categories, ", "),
		},
	}
}

func panelComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Open Ticket",
					Style:    discordgo.PrimaryButton,
					CustomID: componentTicketOpen,
					Emoji:    &discordgo.ComponentEmoji{Name: "🎫"},
				},
			},
		},
	}
}

func helpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Guild Warden",
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "/ticket panel", Value: "Post the ticket panel (admin)."},
			{Name: "/ticket claim", Value: "Claim the ticket in this channel."},
			{Name: "/ticket close", Value: "Close the ticket in this channel (staff)."},
			{Name: "/mute", Value: "Temporarily mute a member (staff)."},
			{Name: "/unmute", Value: "Lift an active mute (staff)."},
			{Name: "/autoroles", Value: "Inspect or test onboarding roles (admin)."},
			{Name: "/captcha setup", Value: "Post the verification prompt (admin)."},
			{Name: "/backup", Value: "Create and inspect guild backups (admin)."},
			{Name: "/config", Value: "View or reset the guild configuration (admin)."},
		},
	}
}

func configEmbed(cfg domain.GuildConfig) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Guild Configuration",
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Staff roles", Value: strings.Join(cfg.Tickets.StaffRoles, ", ")},
			{Name: "Ticket categories", Value: strings.Join(cfg.Tickets.Categories, ", ")},
			{Name: "Autoroles", Value: fmt.Sprintf("enabled=%t humans=%v bots=%v",
				cfg.Autoroles.Enabled, cfg.Autoroles.HumanRoles, cfg.Autoroles.BotRoles)},
			{Name: "Captcha", Value: fmt.Sprintf("enabled=%t role=%s",
				cfg.Captcha.Enabled, cfg.Captcha.VerifiedRole)},
		},
	}
}

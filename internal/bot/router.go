package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/observability"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/service"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

const handlerTimeout = 15 * time.Second

// Router dispatches gateway events to the services. Every handler
// captures the invoking member as a point-in-time snapshot before any
// service call; the services never refresh it mid-operation.
type Router struct {
	session    *discordgo.Session
	adapter    gateway.Adapter
	configs    *repository.ConfigRepository
	tickets    *service.TicketService
	moderation *service.ModerationService
	backups    *service.BackupService
	autoroles  *service.AutoroleService
	captcha    *service.CaptchaService
	gate       *auth.Gate
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Session    *discordgo.Session
	Adapter    gateway.Adapter
	Configs    *repository.ConfigRepository
	Tickets    *service.TicketService
	Moderation *service.ModerationService
	Backups    *service.BackupService
	Autoroles  *service.AutoroleService
	Captcha    *service.CaptchaService
	Gate       *auth.Gate
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewRouter constructs the router.
func NewRouter(deps RouterDependencies) *Router {
	return &Router{
		session:    deps.Session,
		adapter:    deps.Adapter,
		configs:    deps.Configs,
		tickets:    deps.Tickets,
		moderation: deps.Moderation,
		backups:    deps.Backups,
		autoroles:  deps.Autoroles,
		captcha:    deps.Captcha,
		gate:       deps.Gate,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Attach registers the gateway event handlers on the session.
func (r *Router) Attach() {
	r.session.AddHandler(r.onReady)
	r.session.AddHandler(r.onInteractionCreate)
	r.session.AddHandler(r.onGuildMemberAdd)
	r.session.AddHandler(r.onMessageReactionAdd)
}

// RegisterCommands registers the slash commands. An empty guildID
// registers them globally; a concrete one scopes them to that guild,
// which propagates faster during development.
func (r *Router) RegisterCommands(guildID string) error {
	appID := r.session.State.User.ID
	for _, cmd := range commandDefinitions() {
		if _, err := r.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
	}
	return nil
}

func (r *Router) onReady(s *discordgo.Session, event *discordgo.Ready) {
	r.logger.Info("gateway session ready",
		zap.String("user", event.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

func (r *Router) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		r.handleComponent(ctx, i)
	}
}

func (r *Router) handleCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	r.metrics.RecordCommand(data.Name)

	actor, gctx, err := r.invocation(ctx, i)
	if err != nil {
		r.reply(i, "Something went wrong resolving your membership.")
		r.logger.Error("invocation resolution failed",
			zap.String("command", data.Name),
			zap.Error(err))
		return
	}

	switch data.Name {
	case "ticket":
		r.handleTicket(ctx, i, actor, gctx, data)
	case "mute":
		r.handleMute(ctx, i, actor, gctx, data)
	case "unmute":
		r.handleUnmute(ctx, i, actor, gctx, data)
	case "autoroles":
		r.handleAutoroles(ctx, i, actor, gctx, data)
	case "captcha":
		r.handleCaptcha(ctx, i, actor, gctx, data)
	case "backup":
		r.handleBackup(ctx, i, actor, gctx, data)
	case "config":
		r.handleConfig(i, actor, gctx, data)
	case "ping":
		r.reply(i, "Pong.")
	case "help":
		r.replyEmbed(i, helpEmbed())
	default:
		r.reply(i, "Unknown command.")
	}
}

func (r *Router) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	r.metrics.RecordCommand("component:" + customID)

	actor, gctx, err := r.invocation(ctx, i)
	if err != nil {
		r.reply(i, "Something went wrong resolving your membership.")
		return
	}

	switch customID {
	case componentTicketOpen:
		ticket, created, err := r.tickets.Create(ctx, gctx, actor)
		if err != nil {
			r.rejectOrFail(i, "ticket", err)
			return
		}
		if created {
			r.reply(i, fmt.Sprintf("Your ticket is ready: <#%s>", ticket.ChannelID))
		} else {
			r.reply(i, fmt.Sprintf("You already have an open ticket: <#%s>", ticket.ChannelID))
		}
	case componentTicketClaim:
		r.claimTicket(ctx, i, actor, gctx)
	case componentTicketClose:
		r.closeTicket(ctx, i, actor, gctx)
	default:
		r.reply(i, "Unknown action.")
	}
}

func (r *Router) handleTicket(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		r.reply(i, "Missing subcommand.")
		return
	}
	switch data.Options[0].Name {
	case "panel":
		r.postTicketPanel(ctx, i, actor, gctx)
	case "claim":
		r.claimTicket(ctx, i, actor, gctx)
	case "close":
		r.closeTicket(ctx, i, actor, gctx)
	case "config":
		r.configureTickets(i, actor, gctx, data.Options[0])
	}
}

func (r *Router) configureTickets(i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if decision := r.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		r.rejectOrFail(i, "ticket", apperrors.NewNotAuthorized(decision.Reason))
		return
	}
	var staffRoles []string
	for _, opt := range sub.Options {
		if opt.Name == "staff_roles" {
			staffRoles = splitRoleList(opt.StringValue())
		}
	}
	if len(staffRoles) == 0 {
		r.rejectOrFail(i, "ticket", apperrors.NewValidationError("at least one staff role is required", nil))
		return
	}
	cfg, err := r.configs.Load(gctx.GuildID)
	if err != nil {
		r.reply(i, "Could not load the guild configuration.")
		return
	}
	cfg.Tickets.StaffRoles = staffRoles
	if err := r.configs.Save(gctx.GuildID, cfg); err != nil {
		r.reply(i, "Could not save the guild configuration.")
		return
	}
	r.reply(i, fmt.Sprintf("Staff roles set to %v.", staffRoles))
}

func (r *Router) postTicketPanel(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext) {
	if decision := r.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		r.rejectOrFail(i, "ticket", apperrors.NewNotAuthorized(decision.Reason))
		return
	}
	cfg, err := r.configs.Load(gctx.GuildID)
	if err != nil {
		r.reply(i, "Could not load the guild configuration.")
		return
	}
	_, err = r.session.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{panelEmbed(cfg.Tickets)},
		Components: panelComponents(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		r.metrics.RecordAdapterError("send_panel")
		r.reply(i, "Could not post the panel in this channel.")
		return
	}
	r.reply(i, "Ticket panel posted.")
}

func (r *Router) claimTicket(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext) {
	ticket, err := r.tickets.Claim(ctx, gctx, actor, i.ChannelID)
	if err != nil {
		r.rejectOrFail(i, "ticket", err)
		return
	}
	r.reply(i, fmt.Sprintf("Ticket claimed by <@%s>.", ticket.ClaimedBy))
}

func (r *Router) closeTicket(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext) {
	if _, err := r.tickets.Close(ctx, gctx, actor, i.ChannelID); err != nil {
		r.rejectOrFail(i, "ticket", err)
		return
	}
	r.reply(i, "Ticket closed. The channel will be removed shortly.")
}

func (r *Router) handleMute(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, data discordgo.ApplicationCommandInteractionData) {
	var targetID, durationSpec, reason string
	for _, opt := range data.Options {
		switch opt.Name {
		case "member":
			targetID = opt.UserValue(nil).ID
		case "duration":
			durationSpec = opt.StringValue()
		case "reason":
			reason = opt.StringValue()
		}
	}
	target, err := r.adapter.Member(ctx, gctx.GuildID, targetID)
	if err != nil {
		r.metrics.RecordAdapterError("member")
		r.reply(i, "Could not resolve that member.")
		return
	}
	record, err := r.moderation.Mute(ctx, gctx, actor, target, durationSpec, reason)
	if err != nil {
		r.rejectOrFail(i, "mute", err)
		return
	}
	r.reply(i, fmt.Sprintf("Muted <@%s> until <t:%d:f>.", record.TargetID, record.ExpiresAt.Unix()))
}

func (r *Router) handleUnmute(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, data discordgo.ApplicationCommandInteractionData) {
	var targetID string
	for _, opt := range data.Options {
		if opt.Name == "member" {
			targetID = opt.UserValue(nil).ID
		}
	}
	record, err := r.moderation.Unmute(ctx, gctx, actor, targetID)
	if err != nil {
		r.rejectOrFail(i, "unmute", err)
		return
	}
	r.reply(i, fmt.Sprintf("Unmuted <@%s>.", record.TargetID))
}

func (r *Router) handleAutoroles(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, data discordgo.ApplicationCommandInteractionData) {
	if decision := r.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		r.rejectOrFail(i, "autoroles", apperrors.NewNotAuthorized(decision.Reason))
		return
	}
	if len(data.Options) == 0 {
		r.reply(i, "Missing subcommand.")
		return
	}
	switch data.Options[0].Name {
	case "setup":
		cfg, err := r.configs.Load(gctx.GuildID)
		if err != nil {
			r.reply(i, "Could not load the guild configuration.")
			return
		}
		for _, opt := range data.Options[0].Options {
			switch opt.Name {
			case "human_roles":
				cfg.Autoroles.HumanRoles = splitRoleList(opt.StringValue())
			case "bot_roles":
				cfg.Autoroles.BotRoles = splitRoleList(opt.StringValue())
			}
		}
		cfg.Autoroles.Enabled = true
		if err := r.configs.Save(gctx.GuildID, cfg); err != nil {
			r.reply(i, "Could not save the guild configuration.")
			return
		}
		r.reply(i, fmt.Sprintf("Autoroles enabled. Humans: %v Bots: %v", cfg.Autoroles.HumanRoles, cfg.Autoroles.BotRoles))
	case "config":
		cfg, err := r.configs.Load(gctx.GuildID)
		if err != nil {
			r.reply(i, "Could not load the guild configuration.")
			return
		}
		for _, opt := range data.Options[0].Options {
			switch opt.Name {
			case "enabled":
				cfg.Autoroles.Enabled = opt.BoolValue()
			case "send_dm":
				cfg.Autoroles.SendDM = opt.BoolValue()
			}
		}
		if err := r.configs.Save(gctx.GuildID, cfg); err != nil {
			r.reply(i, "Could not save the guild configuration.")
			return
		}
		r.reply(i, fmt.Sprintf("Autoroles enabled=%t send_dm=%t.", cfg.Autoroles.Enabled, cfg.Autoroles.SendDM))
	case "list":
		cfg, err := r.configs.Load(gctx.GuildID)
		if err != nil {
			r.reply(i, "Could not load the guild configuration.")
			return
		}
		if !cfg.Autoroles.Enabled {
			r.reply(i, "Autoroles are disabled.")
			return
		}
		r.reply(i, fmt.Sprintf("Humans: %v\nBots: %v", cfg.Autoroles.HumanRoles, cfg.Autoroles.BotRoles))
	case "test":
		granted, err := r.autoroles.HandleJoin(ctx, gctx.GuildID, actor)
		if err != nil {
			r.rejectOrFail(i, "autoroles", err)
			return
		}
		if len(granted) == 0 {
			r.reply(i, "No roles were applied.")
			return
		}
		r.reply(i, fmt.Sprintf("Applied roles: %v", granted))
	}
}

func (r *Router) handleCaptcha(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, data discordgo.ApplicationCommandInteractionData) {
	if decision := r.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		r.rejectOrFail(i, "captcha", apperrors.NewNotAuthorized(decision.Reason))
		return
	}
	if len(data.Options) == 0 {
		r.reply(i, "Missing subcommand.")
		return
	}
	if data.Options[0].Name == "role" {
		var roleName string
		for _, opt := range data.Options[0].Options {
			if opt.Name == "name" {
				roleName = strings.TrimSpace(opt.StringValue())
			}
		}
		if roleName == "" {
			r.rejectOrFail(i, "captcha", apperrors.NewValidationError("role name is required", nil))
			return
		}
		cfg, err := r.configs.Load(gctx.GuildID)
		if err != nil {
			r.reply(i, "Could not load the guild configuration.")
			return
		}
		cfg.Captcha.VerifiedRole = roleName
		cfg.Captcha.Enabled = true
		if err := r.configs.Save(gctx.GuildID, cfg); err != nil {
			r.reply(i, "Could not save the guild configuration.")
			return
		}
		r.reply(i, fmt.Sprintf("Verification enabled with role %q.", roleName))
		return
	}

	prompt, err := r.captcha.PromptText(gctx.GuildID)
	if err != nil {
		r.reply(i, "Could not load the guild configuration.")
		return
	}
	msg, err := r.session.ChannelMessageSend(i.ChannelID, prompt, discordgo.WithContext(ctx))
	if err != nil {
		r.metrics.RecordAdapterError("send_prompt")
		r.reply(i, "Could not post the verification prompt.")
		return
	}
	if err := r.session.MessageReactionAdd(i.ChannelID, msg.ID, "✅", discordgo.WithContext(ctx)); err != nil {
		r.logger.Warn("seed reaction failed",
			zap.String("channel_id", i.ChannelID),
			zap.Error(err))
	}
	r.captcha.RegisterPrompt(gctx.GuildID, msg.ID)
	r.reply(i, "Verification prompt posted.")
}

func (r *Router) handleBackup(ctx context.Context, i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		r.reply(i, "Missing subcommand.")
		return
	}
	switch data.Options[0].Name {
	case "create":
		guildName := gctx.GuildID
		if guild, err := r.session.Guild(gctx.GuildID, discordgo.WithContext(ctx)); err == nil {
			guildName = guild.Name
		}
		summary, err := r.backups.Create(ctx, gctx, actor, guildName)
		if err != nil {
			r.rejectOrFail(i, "backup", err)
			return
		}
		r.reply(i, fmt.Sprintf("Backup `%s` created: %d roles, %d channels, %d categories.",
			summary.ID, summary.Roles, summary.Channels, summary.Categories))
	case "list":
		summaries, err := r.backups.List(gctx, actor)
		if err != nil {
			r.rejectOrFail(i, "backup", err)
			return
		}
		if len(summaries) == 0 {
			r.reply(i, "No backups stored.")
			return
		}
		text := "Stored backups:\n"
		for _, s := range summaries {
			text += fmt.Sprintf("`%s` %s (%d roles, %d channels)\n", s.ID, s.CreatedAt.Format(time.RFC3339), s.Roles, s.Channels)
		}
		r.reply(i, text)
	case "info":
		var id string
		for _, opt := range data.Options[0].Options {
			if opt.Name == "id" {
				id = opt.StringValue()
			}
		}
		backup, err := r.backups.Get(gctx, actor, id)
		if err != nil {
			r.rejectOrFail(i, "backup", err)
			return
		}
		r.reply(i, fmt.Sprintf("Backup `%s` of %s, taken %s: %d roles, %d channels, %d categories.",
			backup.ID, backup.Guild.Name, backup.CreatedAt.Format(time.RFC3339),
			len(backup.Roles), len(backup.Channels), len(backup.Categories)))
	}
}

func (r *Router) handleConfig(i *discordgo.InteractionCreate, actor domain.Member, gctx domain.GuildContext, data discordgo.ApplicationCommandInteractionData) {
	if decision := r.gate.Check(actor, auth.CapabilityAdminister, gctx); !decision.Allowed {
		r.rejectOrFail(i, "config", apperrors.NewNotAuthorized(decision.Reason))
		return
	}
	if len(data.Options) == 0 {
		r.reply(i, "Missing subcommand.")
		return
	}
	switch data.Options[0].Name {
	case "view":
		cfg, err := r.configs.Load(gctx.GuildID)
		if err != nil {
			r.reply(i, "Could not load the guild configuration.")
			return
		}
		r.replyEmbed(i, configEmbed(cfg))
	case "reset":
		if _, err := r.configs.Reset(gctx.GuildID); err != nil {
			r.reply(i, "Could not reset the guild configuration.")
			return
		}
		r.reply(i, "Configuration reset to defaults.")
	}
}

func (r *Router) onGuildMemberAdd(s *discordgo.Session, event *discordgo.GuildMemberAdd) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	member, err := r.adapter.Member(ctx, event.GuildID, event.User.ID)
	if err != nil {
		r.metrics.RecordAdapterError("member")
		r.logger.Warn("join snapshot failed",
			zap.String("guild_id", event.GuildID),
			zap.String("user_id", event.User.ID),
			zap.Error(err))
		return
	}
	granted, err := r.autoroles.HandleJoin(ctx, event.GuildID, member)
	if err != nil {
		r.logger.Warn("autorole join handling failed",
			zap.String("guild_id", event.GuildID),
			zap.String("user_id", event.User.ID),
			zap.Error(err))
		return
	}
	if len(granted) > 0 {
		r.logger.Info("onboarding roles applied",
			zap.String("guild_id", event.GuildID),
			zap.String("user_id", event.User.ID),
			zap.Strings("roles", granted))
	}
}

func (r *Router) onMessageReactionAdd(s *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event.GuildID == "" {
		return
	}
	if !r.captcha.IsPrompt(event.GuildID, event.MessageID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	member, err := r.adapter.Member(ctx, event.GuildID, event.UserID)
	if err != nil {
		r.metrics.RecordAdapterError("member")
		return
	}
	if err := r.captcha.HandleReaction(ctx, event.GuildID, event.MessageID, member); err != nil {
		r.logger.Warn("captcha verification failed",
			zap.String("guild_id", event.GuildID),
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}

// invocation builds the actor snapshot and guild context for an
// interaction.
func (r *Router) invocation(ctx context.Context, i *discordgo.InteractionCreate) (domain.Member, domain.GuildContext, error) {
	if i.Member == nil || i.Member.User == nil {
		return domain.Member{}, domain.GuildContext{}, fmt.Errorf("interaction outside a guild")
	}
	cfg, err := r.configs.Load(i.GuildID)
	if err != nil {
		return domain.Member{}, domain.GuildContext{}, err
	}
	gctx := domain.GuildContext{GuildID: i.GuildID, Authority: cfg.Authority()}

	roles, err := r.adapter.GuildRoles(ctx, i.GuildID)
	if err != nil {
		return domain.Member{}, domain.GuildContext{}, err
	}
	byID := make(map[string]domain.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	actor := domain.Member{
		UserID:        i.Member.User.ID,
		DisplayName:   i.Member.User.Username,
		Bot:           i.Member.User.Bot,
		Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
	if i.Member.Nick != "" {
		actor.DisplayName = i.Member.Nick
	}
	for _, roleID := range i.Member.Roles {
		if role, ok := byID[roleID]; ok {
			actor.Roles = append(actor.Roles, role)
		}
	}
	return actor, gctx, nil
}

// rejectOrFail answers the interaction with the rejection's message and
// counts it. Non-domain errors get a generic reply.
func (r *Router) rejectOrFail(i *discordgo.InteractionCreate, command string, err error) {
	domainErr := apperrors.ToDomainError(err)
	r.metrics.RecordRejection(command, domainErr.Code)
	if domainErr.Code == apperrors.CodeInternal || domainErr.Code == apperrors.CodeAdapterFailed {
		r.logger.Error("command failed",
			zap.String("command", command),
			zap.Error(err))
		r.reply(i, "Something went wrong. Try again later.")
		return
	}
	r.reply(i, domainErr.Message)
}

func splitRoleList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (r *Router) reply(i *discordgo.InteractionCreate, content string) {
	err := r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		r.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (r *Router) replyEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		r.logger.Warn("interaction response failed", zap.Error(err))
	}
}

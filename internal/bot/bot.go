// Package bot wires the Discord gateway to the workflow modules and owns
// command registration and interaction dispatch.
package bot

import (
	"context"
	"fmt"
	"time"

	"warden/internal/analytics"
	"warden/internal/config"
	"warden/internal/modules/audit"
	"warden/internal/modules/tickets"
	"warden/internal/modules/translation"
	"warden/internal/modules/votes"
	"warden/internal/storage"
	"warden/internal/tiers"
	"warden/internal/transcript"
	"warden/internal/translate"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg         config.Config
	logger      *zap.Logger
	store       *storage.Store
	session     *discordgo.Session
	registry    *tiers.Registry
	audit       *audit.Logger
	analytics   *analytics.Service
	tickets     *tickets.Manager
	votes       *votes.Manager
	translation *translation.Module
	sweepCancel context.CancelFunc
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsSvc *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		session:   session,
		registry:  tiers.NewRegistry(cfg),
		audit:     auditLogger,
		analytics: analyticsSvc,
	}

	exporter := transcript.New(session, logger)
	b.tickets = tickets.New(cfg, logger, store, session, exporter, auditLogger)
	b.votes = votes.New(cfg, logger, store, session, b.registry, auditLogger)
	b.translation = translation.New(cfg, logger, store, session, translate.Passthrough{}, auditLogger)

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			b.notifyAudit(ctx, entry)
		})
	}
	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onMessageReactionAdd)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	b.sweepCancel = cancel
	b.translation.StartSweep(sweepCtx)

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.sweepCancel != nil {
		b.sweepCancel()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event.GuildID == "" || event.UserID == session.State.User.ID {
		return
	}
	ctx := context.Background()
	if err := b.translation.HandleReaction(ctx, event.UserID, event.ChannelID, event.MessageID, event.Emoji.Name); err != nil {
		b.logger.Warn("reaction handling failed",
			zap.String("user_id", event.UserID), zap.String("message_id", event.MessageID), zap.Error(err))
	}
}

// notifyAudit mirrors WARN and CRIT audit entries into the ops log channel.
func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	if b.cfg.OpsLogChannel == "" || entry.Level == audit.LevelInfo {
		return
	}
	_ = ctx
	_, _ = b.session.ChannelMessageSendEmbed(b.cfg.OpsLogChannel, &discordgo.MessageEmbed{
		Title: "Audit",
		Color: b.cfg.Notifications.EmbedColors.Error,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Event", Value: entry.Event, Inline: true},
			{Name: "Level", Value: entry.Level, Inline: true},
			{Name: "User", Value: mention(entry.UserID), Inline: true},
			{Name: "Details", Value: orDash(entry.Details), Inline: false},
		},
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
	})
}

func (b *Bot) announce(ctx context.Context, title, description string, color int) {
	if b.cfg.AnnouncementChannel == "" {
		return
	}
	_, _ = b.session.ChannelMessageSendEmbed(b.cfg.AnnouncementChannel, &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}, discordgo.WithContext(ctx))
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) deferEphemeral(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) followup(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	_, _ = session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

// memberCaps resolves the invoking member's roles into capabilities.
func (b *Bot) memberCaps(interaction *discordgo.InteractionCreate) tiers.Capabilities {
	if interaction.Member == nil {
		return b.registry.Resolve(nil)
	}
	return b.registry.Resolve(interaction.Member.Roles)
}

func (b *Bot) memberID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func mention(userID string) string {
	if userID == "" {
		return "system"
	}
	return fmt.Sprintf("<@%s>", userID)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

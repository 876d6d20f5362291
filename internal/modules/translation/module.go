// Package translation turns a reaction emoji into an inline translation and
// rate-limits the trigger per user per channel. Users who trip the limit are
// blacklisted until the cooldown sweep releases them.
package translation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"warden/internal/config"
	"warden/internal/customid"
	"warden/internal/modules/audit"
	"warden/internal/storage"
	"warden/internal/translate"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Session interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Module struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	session    Session
	translator translate.Translator
	audit      *audit.Logger

	now func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, session Session, translator translate.Translator, auditLogger *audit.Logger) *Module {
	return &Module{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		session:    session,
		translator: translator,
		audit:      auditLogger,
		now:        time.Now,
		timers:     make(map[string]*time.Timer),
	}
}

// HandleReaction processes one trigger-emoji reaction. Re-reacting to the
// same message never counts twice; crossing the abuse threshold within the
// window blacklists the user instead of translating.
func (m *Module) HandleReaction(ctx context.Context, userID, channelID, messageID, emoji string) error {
	if !m.cfg.Translation.Enabled || emoji != m.cfg.Translation.TriggerEmoji {
		return nil
	}
	for _, id := range m.cfg.Translation.ForbiddenChannels {
		if id == channelID {
			return nil
		}
	}

	blacklisted, err := m.store.IsBlacklisted(ctx, userID)
	if err != nil {
		return err
	}
	if blacklisted {
		return nil
	}

	now := m.now()
	recorded, err := m.store.RecordReaction(ctx, userID, messageID, channelID, now)
	if err != nil {
		return err
	}
	if !recorded {
		return nil
	}

	window := time.Duration(m.cfg.Translation.WindowSeconds) * time.Second
	count, err := m.store.DistinctReactionCount(ctx, userID, channelID, now.Add(-window))
	if err != nil {
		return err
	}
	if count >= m.cfg.Translation.AbuseThreshold {
		return m.blacklist(ctx, userID, channelID, "spam", "", false)
	}

	msg, err := m.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}
	if msg.Content == "" {
		return nil
	}
	translated, err := m.translator.Translate(ctx, msg.Content)
	if err != nil {
		m.logger.Warn("translation failed", zap.String("message_id", messageID), zap.Error(err))
		_, _ = m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Description: fmt.Sprintf("<@%s> The translation could not be completed. Try again later.", userID),
				Color:       m.cfg.Notifications.EmbedColors.Error,
			}},
			Reference: &discordgo.MessageReference{ChannelID: channelID, MessageID: messageID},
		}, discordgo.WithContext(ctx))
		return nil
	}

	_, err = m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Description: translated,
			Color:       m.cfg.Notifications.EmbedColors.Primary,
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Requested by %s", userID)},
		}},
		Reference: &discordgo.MessageReference{ChannelID: channelID, MessageID: messageID},
	}, discordgo.WithContext(ctx))
	return err
}

// ManualBlacklist blacklists by hand for a parsed duration ("30m", "1d", …).
// An empty duration falls back to the standard cooldown.
func (m *Module) ManualBlacklist(ctx context.Context, userID, channelID, durationStr, reason, issuerID string) error {
	custom := false
	var d time.Duration
	if durationStr != "" {
		var err error
		d, err = utils.ParseDuration(durationStr)
		if err != nil {
			return err
		}
		custom = true
	}
	if err := m.blacklist(ctx, userID, channelID, reason, issuerID, custom); err != nil {
		return err
	}
	if custom {
		m.scheduleRelease(userID, d)
	}
	return nil
}

// ManualUnblacklist removes the entry and cancels any pending timer. Missing
// entries are reported, not errored.
func (m *Module) ManualUnblacklist(ctx context.Context, userID, actorID string) (bool, error) {
	entry, err := m.store.GetBlacklist(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	removed, err := m.store.RemoveBlacklist(ctx, userID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	m.mu.Lock()
	if timer, ok := m.timers[userID]; ok {
		timer.Stop()
		delete(m.timers, userID)
	}
	m.mu.Unlock()

	m.disableNotification(ctx, entry)
	m.audit.Log(ctx, audit.LevelInfo, actorID, "translation_unblacklisted", fmt.Sprintf("user=%s", userID))
	return true, nil
}

// StartSweep runs the cleanup loop until the context is done: stale reaction
// rows are pruned and cooled-down blacklists released.
func (m *Module) StartSweep(ctx context.Context) {
	interval := time.Duration(m.cfg.Translation.SweepSeconds) * time.Second
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(ctx)
			}
		}
	}()
}

// Sweep is one pass of the cleanup loop, exported so it can be driven
// directly.
func (m *Module) Sweep(ctx context.Context) {
	now := m.now()
	window := time.Duration(m.cfg.Translation.WindowSeconds) * time.Second

	if err := m.store.PruneReactions(ctx, now.Add(-window)); err != nil {
		m.logger.Warn("reaction prune failed", zap.Error(err))
	}

	expired, err := m.store.ExpiredBlacklists(ctx, now.Add(-window))
	if err != nil {
		m.logger.Warn("blacklist expiry query failed", zap.Error(err))
		return
	}
	for _, entry := range expired {
		if _, err := m.store.RemoveBlacklist(ctx, entry.UserID); err != nil {
			m.logger.Warn("blacklist release failed", zap.String("user_id", entry.UserID), zap.Error(err))
			continue
		}
		m.disableNotification(ctx, entry)
		m.audit.Log(ctx, audit.LevelInfo, entry.UserID, "translation_cooldown_expired", "")
	}
}

func (m *Module) blacklist(ctx context.Context, userID, channelID, reason, issuerID string, custom bool) error {
	added, err := m.store.AddBlacklist(ctx, storage.BlacklistEntry{
		UserID:         userID,
		Reason:         reason,
		IssuedBy:       issuerID,
		CustomDuration: custom,
		CreatedAt:      m.now(),
	})
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	msg, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Translation Blacklist",
			Description: fmt.Sprintf("<@%s> has been blacklisted from translations.\nReason: %s", userID, reason),
			Color:       m.cfg.Notifications.EmbedColors.Error,
			Timestamp:   m.now().Format(time.RFC3339),
		}},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Unblacklist",
				Style:    discordgo.SecondaryButton,
				CustomID: customid.Format(customid.ID{Action: customid.Unblacklist, Scope: "translation", Target: userID}),
			},
		}}},
	}, discordgo.WithContext(ctx))
	if err == nil && msg != nil {
		_ = m.store.SetBlacklistNotification(ctx, userID, channelID, msg.ID)
	}

	m.audit.Log(ctx, audit.LevelWarn, userID, "translation_blacklisted",
		fmt.Sprintf("reason=%s issued_by=%s custom=%t", reason, issuerID, custom))
	return nil
}

// disableNotification swaps the notification's button for a disabled
// cooldown marker so stale controls cannot be clicked.
func (m *Module) disableNotification(ctx context.Context, entry storage.BlacklistEntry) {
	if entry.NotificationMessageID == "" || entry.NotificationChannelID == "" {
		return
	}
	components := []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Cooldown Expired",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.Unblacklist, Scope: "expired", Target: entry.UserID}),
			Disabled: true,
		},
	}}}
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    entry.NotificationChannelID,
		ID:         entry.NotificationMessageID,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		m.logger.Warn("notification update failed", zap.String("user_id", entry.UserID), zap.Error(err))
	}
}

func (m *Module) scheduleRelease(userID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.timers[userID]; ok {
		timer.Stop()
	}
	m.timers[userID] = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entry, err := m.store.GetBlacklist(ctx, userID)
		if err != nil {
			return
		}
		if _, err := m.store.RemoveBlacklist(ctx, userID); err != nil {
			m.logger.Warn("timed blacklist release failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		m.disableNotification(ctx, entry)
		m.mu.Lock()
		delete(m.timers, userID)
		m.mu.Unlock()
	})
}

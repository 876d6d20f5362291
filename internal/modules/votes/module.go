// Package votes implements the tier promotion and demotion workflows. Both
// are parameterized by tier configuration; there is one code path no matter
// how many tiers the guild defines.
package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/config"
	"warden/internal/customid"
	"warden/internal/modules/audit"
	"warden/internal/storage"
	"warden/internal/tiers"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrPollExists  = errors.New("an active poll already exists for this user")
	ErrPollClosed  = errors.New("poll is closed")
	ErrPollActive  = errors.New("removal poll is still collecting vouches")
	ErrSelfVote    = errors.New("cannot vote on your own poll")
	ErrNotEligible = errors.New("missing the role required for this action")
	ErrNotWon      = errors.New("poll was not won")
)

type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

type Manager struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *storage.Store
	session  Session
	registry *tiers.Registry
	audit    *audit.Logger
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, session Session, registry *tiers.Registry, auditLogger *audit.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		session:  session,
		registry: registry,
		audit:    auditLogger,
	}
}

// OpenPromotion starts an up/down poll for the target on the given tier and
// posts the voting card to the tier's vote channel.
func (m *Manager) OpenPromotion(ctx context.Context, tier tiers.Tier, targetID string) (storage.Poll, error) {
	if _, err := m.store.ActivePoll(ctx, targetID, tier.Name); err == nil {
		return storage.Poll{}, ErrPollExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Poll{}, err
	}

	pollID, err := m.store.CreatePoll(ctx, targetID, tier.Name)
	if err != nil {
		return storage.Poll{}, err
	}
	poll := storage.Poll{ID: pollID, TargetUserID: targetID, Tier: tier.Name, Active: true}

	msg, err := m.session.ChannelMessageSendComplex(tier.VoteChannel, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{m.pollEmbed(poll)},
		Components: m.pollComponents(poll, false),
	}, discordgo.WithContext(ctx))
	if err == nil && msg != nil {
		poll.MessageID = msg.ID
		_ = m.store.SetPollMessage(ctx, pollID, msg.ID)
	}

	m.audit.Log(ctx, audit.LevelInfo, targetID, "poll_opened",
		fmt.Sprintf("tier=%s poll=%d", tier.Name, pollID))
	return poll, nil
}

// CastVote validates eligibility and records the vote, then refreshes the
// displayed tally. Double votes surface as storage.ErrAlreadyVoted.
func (m *Manager) CastVote(ctx context.Context, pollID int64, voterID string, voterRoles []string, direction string) (storage.Poll, error) {
	poll, err := m.store.PollByID(ctx, pollID)
	if err != nil {
		return storage.Poll{}, err
	}
	if !poll.Active {
		return storage.Poll{}, ErrPollClosed
	}
	if voterID == poll.TargetUserID {
		return storage.Poll{}, ErrSelfVote
	}
	if !m.registry.EligibleVoter(voterRoles) {
		return storage.Poll{}, ErrNotEligible
	}

	err = m.store.CastVote(ctx, storage.Vote{
		PollID:       pollID,
		VoterID:      voterID,
		TargetUserID: poll.TargetUserID,
		Tier:         poll.Tier,
		Direction:    direction,
	})
	if err != nil {
		return storage.Poll{}, err
	}

	poll, err = m.store.PollByID(ctx, pollID)
	if err != nil {
		return storage.Poll{}, err
	}
	m.refreshPollCard(ctx, poll, false)
	return poll, nil
}

// EndPoll closes the poll and posts the result card. Closing twice is
// rejected so tallies are frozen at first closure.
func (m *Manager) EndPoll(ctx context.Context, pollID int64, actorID string) (storage.Poll, bool, error) {
	closed, err := m.store.ClosePoll(ctx, pollID)
	if err != nil {
		return storage.Poll{}, false, err
	}
	if !closed {
		return storage.Poll{}, false, ErrPollClosed
	}

	poll, err := m.store.PollByID(ctx, pollID)
	if err != nil {
		return storage.Poll{}, false, err
	}
	won := poll.Upvotes > poll.Downvotes
	m.refreshPollCard(ctx, poll, true)

	tier, _ := m.registry.Tier(poll.Tier)
	result := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{m.resultEmbed(poll, won)}}
	if won {
		result.Components = []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Grant Role",
				Style:    discordgo.SuccessButton,
				CustomID: customid.Format(customid.ID{Action: customid.GrantRole, Scope: poll.Tier, Target: fmt.Sprintf("%d", poll.ID)}),
			},
		}}}
	}
	_, _ = m.session.ChannelMessageSendComplex(tier.VoteChannel, result, discordgo.WithContext(ctx))

	m.audit.Log(ctx, audit.LevelInfo, actorID, "poll_ended",
		fmt.Sprintf("tier=%s poll=%d up=%d down=%d won=%t", poll.Tier, poll.ID, poll.Upvotes, poll.Downvotes, won))
	return poll, won, nil
}

// Promote grants the tier role after a won poll.
func (m *Manager) Promote(ctx context.Context, pollID int64, actorID string) error {
	poll, err := m.store.PollByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.Active {
		return errors.New("poll is still open")
	}
	if poll.Upvotes <= poll.Downvotes {
		return ErrNotWon
	}
	tier, ok := m.registry.Tier(poll.Tier)
	if !ok {
		return fmt.Errorf("unknown tier %q", poll.Tier)
	}
	if err := m.session.GuildMemberRoleAdd(m.cfg.GuildID, poll.TargetUserID, tier.RoleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}

	_, _ = m.session.ChannelMessageSendComplex(tier.VoteChannel, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Promotion",
			Description: fmt.Sprintf("<@%s> has been promoted to **%s**.", poll.TargetUserID, tier.Name),
			Color:       m.cfg.Notifications.EmbedColors.Success,
			Timestamp:   time.Now().Format(time.RFC3339),
		}},
	}, discordgo.WithContext(ctx))

	m.audit.Log(ctx, audit.LevelInfo, actorID, "member_promoted",
		fmt.Sprintf("tier=%s user=%s poll=%d", poll.Tier, poll.TargetUserID, poll.ID))
	return nil
}

// OpenRemoval starts a vouch-based demotion poll for the target.
func (m *Manager) OpenRemoval(ctx context.Context, tier tiers.Tier, targetID, initiatorID string) (storage.RemovalPoll, error) {
	if _, err := m.store.ActiveRemovalPoll(ctx, targetID, tier.Name); err == nil {
		return storage.RemovalPoll{}, ErrPollExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.RemovalPoll{}, err
	}

	pollID, err := m.store.CreateRemovalPoll(ctx, targetID, initiatorID, storage.RemovalPendingReason, tier.Name)
	if err != nil {
		return storage.RemovalPoll{}, err
	}
	poll := storage.RemovalPoll{
		ID:           pollID,
		TargetUserID: targetID,
		InitiatorID:  initiatorID,
		Reason:       storage.RemovalPendingReason,
		Status:       storage.RemovalActive,
		Tier:         tier.Name,
	}

	msg, err := m.session.ChannelMessageSendComplex(tier.VouchChannel, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{m.removalEmbed(poll, 0)},
		Components: m.removalComponents(poll, false),
	}, discordgo.WithContext(ctx))
	if err == nil && msg != nil {
		poll.VouchMessageID = msg.ID
		_ = m.store.SetRemovalMessage(ctx, pollID, msg.ID)
	}

	m.audit.Log(ctx, audit.LevelInfo, initiatorID, "removal_opened",
		fmt.Sprintf("tier=%s target=%s poll=%d", tier.Name, targetID, pollID))
	return poll, nil
}

// Vouch records a manager's endorsement. The initiator's own vouch promotes
// its reason to the poll's canonical reason. Hitting the threshold closes
// the poll and strips the tier role exactly once.
func (m *Manager) Vouch(ctx context.Context, pollID int64, managerID, reason string, caps tiers.Capabilities) (int, bool, error) {
	poll, err := m.store.RemovalPollByID(ctx, pollID)
	if err != nil {
		return 0, false, err
	}
	if poll.Status != storage.RemovalActive {
		return 0, false, ErrPollClosed
	}
	if !caps.CanManage(poll.Tier) {
		return 0, false, ErrNotEligible
	}

	count, err := m.store.AddVouch(ctx, pollID, managerID, reason)
	if err != nil {
		return 0, false, err
	}

	if managerID == poll.InitiatorID && poll.Reason == storage.RemovalPendingReason && reason != "" {
		if err := m.store.UpdateRemovalReason(ctx, pollID, reason); err == nil {
			poll.Reason = reason
		}
	}

	m.refreshRemovalCard(ctx, poll, count, false)

	if count < m.cfg.Voting.VouchThreshold {
		return count, false, nil
	}

	// The idempotence gate: only the vouch that actually flips the poll
	// closed performs the removal.
	closed, err := m.store.CloseRemovalPoll(ctx, pollID)
	if err != nil {
		return count, false, err
	}
	if !closed {
		return count, false, nil
	}
	poll.Status = storage.RemovalClosed

	tier, ok := m.registry.Tier(poll.Tier)
	if ok {
		if err := m.session.GuildMemberRoleRemove(m.cfg.GuildID, poll.TargetUserID, tier.RoleID, discordgo.WithContext(ctx)); err != nil {
			m.logger.Warn("removal role strip failed",
				zap.String("user_id", poll.TargetUserID), zap.Error(err))
		}
		msg, err := m.session.ChannelMessageSendComplex(tier.VouchChannel, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Member Removed",
				Description: fmt.Sprintf("<@%s> has been removed from **%s** after %d vouches.\nReason: %s", poll.TargetUserID, tier.Name, count, poll.Reason),
				Color:       m.cfg.Notifications.EmbedColors.Error,
				Timestamp:   time.Now().Format(time.RFC3339),
			}},
			Components: m.demotionComponents(poll, true, false),
		}, discordgo.WithContext(ctx))
		if err == nil && msg != nil {
			poll.DemotionMessageID = msg.ID
			_ = m.store.SetDemotionMessage(ctx, poll.ID, msg.ID)
		}
	}
	m.refreshRemovalCard(ctx, poll, count, true)

	m.audit.Log(ctx, audit.LevelWarn, managerID, "member_removed",
		fmt.Sprintf("tier=%s target=%s poll=%d vouches=%d", poll.Tier, poll.TargetUserID, poll.ID, count))
	return count, true, nil
}

// UndoRemoval restores the stripped role if the member no longer holds it.
// Only legal once the poll has closed; until then the threshold is the only
// path to a removal.
func (m *Manager) UndoRemoval(ctx context.Context, pollID int64, actorID string, caps tiers.Capabilities) error {
	poll, err := m.store.RemovalPollByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.Status == storage.RemovalActive {
		return ErrPollActive
	}
	if !caps.CanManage(poll.Tier) {
		return ErrNotEligible
	}
	tier, ok := m.registry.Tier(poll.Tier)
	if !ok {
		return fmt.Errorf("unknown tier %q", poll.Tier)
	}

	if !m.hasRole(ctx, poll.TargetUserID, tier.RoleID) {
		if err := m.session.GuildMemberRoleAdd(m.cfg.GuildID, poll.TargetUserID, tier.RoleID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("restore role: %w", err)
		}
	}
	m.refreshDemotionCard(ctx, poll, tier, false, true)

	m.audit.Log(ctx, audit.LevelInfo, actorID, "removal_undone",
		fmt.Sprintf("tier=%s target=%s poll=%d", poll.Tier, poll.TargetUserID, poll.ID))
	return nil
}

// FinalizeRemoval strips the role again if it was restored; terminal step.
// Like UndoRemoval it is rejected while the poll is still active.
func (m *Manager) FinalizeRemoval(ctx context.Context, pollID int64, actorID string, caps tiers.Capabilities) error {
	poll, err := m.store.RemovalPollByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.Status == storage.RemovalActive {
		return ErrPollActive
	}
	if !caps.CanManage(poll.Tier) {
		return ErrNotEligible
	}
	tier, ok := m.registry.Tier(poll.Tier)
	if !ok {
		return fmt.Errorf("unknown tier %q", poll.Tier)
	}

	if m.hasRole(ctx, poll.TargetUserID, tier.RoleID) {
		if err := m.session.GuildMemberRoleRemove(m.cfg.GuildID, poll.TargetUserID, tier.RoleID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("remove role: %w", err)
		}
	}
	m.refreshDemotionCard(ctx, poll, tier, false, false)

	m.audit.Log(ctx, audit.LevelWarn, actorID, "removal_finalized",
		fmt.Sprintf("tier=%s target=%s poll=%d", poll.Tier, poll.TargetUserID, poll.ID))
	return nil
}

func (m *Manager) hasRole(ctx context.Context, userID, roleID string) bool {
	member, err := m.session.GuildMember(m.cfg.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil || member == nil {
		return false
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

func (m *Manager) refreshPollCard(ctx context.Context, poll storage.Poll, disabled bool) {
	if poll.MessageID == "" {
		return
	}
	tier, ok := m.registry.Tier(poll.Tier)
	if !ok {
		return
	}
	embeds := []*discordgo.MessageEmbed{m.pollEmbed(poll)}
	components := m.pollComponents(poll, disabled)
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    tier.VoteChannel,
		ID:         poll.MessageID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		m.logger.Warn("poll card refresh failed", zap.Int64("poll_id", poll.ID), zap.Error(err))
	}
}

func (m *Manager) refreshRemovalCard(ctx context.Context, poll storage.RemovalPoll, count int, disabled bool) {
	if poll.VouchMessageID == "" {
		return
	}
	tier, ok := m.registry.Tier(poll.Tier)
	if !ok {
		return
	}
	embeds := []*discordgo.MessageEmbed{m.removalEmbed(poll, count)}
	components := m.removalComponents(poll, disabled)
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    tier.VouchChannel,
		ID:         poll.VouchMessageID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		m.logger.Warn("removal card refresh failed", zap.Int64("poll_id", poll.ID), zap.Error(err))
	}
}

func (m *Manager) pollEmbed(poll storage.Poll) *discordgo.MessageEmbed {
	status := "Voting open"
	if !poll.Active {
		status = "Voting closed"
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s Promotion Vote", poll.Tier),
		Description: fmt.Sprintf("Should <@%s> be promoted to **%s**?", poll.TargetUserID, poll.Tier),
		Color:       m.cfg.Notifications.EmbedColors.Primary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Upvotes", Value: fmt.Sprintf("%d", poll.Upvotes), Inline: true},
			{Name: "Downvotes", Value: fmt.Sprintf("%d", poll.Downvotes), Inline: true},
			{Name: "Status", Value: status, Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (m *Manager) resultEmbed(poll storage.Poll, won bool) *discordgo.MessageEmbed {
	color := m.cfg.Notifications.EmbedColors.Error
	outcome := fmt.Sprintf("<@%s> did not pass the %s vote.", poll.TargetUserID, poll.Tier)
	if won {
		color = m.cfg.Notifications.EmbedColors.Success
		outcome = fmt.Sprintf("<@%s> passed the %s vote!", poll.TargetUserID, poll.Tier)
	}
	return &discordgo.MessageEmbed{
		Title:       "Vote Result",
		Description: outcome,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Upvotes", Value: fmt.Sprintf("%d", poll.Upvotes), Inline: true},
			{Name: "Downvotes", Value: fmt.Sprintf("%d", poll.Downvotes), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (m *Manager) removalEmbed(poll storage.RemovalPoll, count int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s Removal Poll", poll.Tier),
		Description: fmt.Sprintf("Removal of <@%s> requested by <@%s>.", poll.TargetUserID, poll.InitiatorID),
		Color:       m.cfg.Notifications.EmbedColors.Error,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: poll.Reason, Inline: false},
			{Name: "Vouches", Value: fmt.Sprintf("%d/%d", count, m.cfg.Voting.VouchThreshold), Inline: true},
			{Name: "Status", Value: poll.Status, Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (m *Manager) pollComponents(poll storage.Poll, disabled bool) []discordgo.MessageComponent {
	target := fmt.Sprintf("%d", poll.ID)
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Upvote",
			Style:    discordgo.SuccessButton,
			CustomID: customid.Format(customid.ID{Action: customid.Upvote, Scope: poll.Tier, Target: target}),
			Disabled: disabled,
		},
		discordgo.Button{
			Label:    "Downvote",
			Style:    discordgo.DangerButton,
			CustomID: customid.Format(customid.ID{Action: customid.Downvote, Scope: poll.Tier, Target: target}),
			Disabled: disabled,
		},
		discordgo.Button{
			Label:    "End Vote",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.EndVote, Scope: poll.Tier, Target: target}),
			Disabled: disabled,
		},
	}}}
}

func (m *Manager) removalComponents(poll storage.RemovalPoll, disabled bool) []discordgo.MessageComponent {
	target := fmt.Sprintf("%d", poll.ID)
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Vouch",
			Style:    discordgo.PrimaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.Vouch, Scope: poll.Tier, Target: target}),
			Disabled: disabled,
		},
		// The live Remove control sits on the demotion card and only
		// unlocks after an undo; here it is display only.
		discordgo.Button{
			Label:    "Remove",
			Style:    discordgo.DangerButton,
			CustomID: customid.Format(customid.ID{Action: customid.Finalize, Scope: poll.Tier, Target: target}),
			Disabled: true,
		},
	}}}
}

func (m *Manager) demotionComponents(poll storage.RemovalPoll, undoEnabled, removeEnabled bool) []discordgo.MessageComponent {
	target := fmt.Sprintf("%d", poll.ID)
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Undo",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.UndoRemoval, Scope: poll.Tier, Target: target}),
			Disabled: !undoEnabled,
		},
		discordgo.Button{
			Label:    "Remove",
			Style:    discordgo.DangerButton,
			CustomID: customid.Format(customid.ID{Action: customid.Finalize, Scope: poll.Tier, Target: target}),
			Disabled: !removeEnabled,
		},
	}}}
}

func (m *Manager) refreshDemotionCard(ctx context.Context, poll storage.RemovalPoll, tier tiers.Tier, undoEnabled, removeEnabled bool) {
	if poll.DemotionMessageID == "" {
		return
	}
	components := m.demotionComponents(poll, undoEnabled, removeEnabled)
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    tier.VouchChannel,
		ID:         poll.DemotionMessageID,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		m.logger.Warn("demotion card refresh failed", zap.Int64("poll_id", poll.ID), zap.Error(err))
	}
}

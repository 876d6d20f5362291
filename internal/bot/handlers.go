package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"warden/internal/config"
	"warden/internal/customid"
	"warden/internal/modules/audit"
	"warden/internal/modules/tickets"
	"warden/internal/modules/votes"
	"warden/internal/storage"
	"warden/internal/tiers"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	premiumPageSize   = 10
	voteViewPageSize  = 5
	rosterScopePrefix = "roster-"
	voteViewScope     = "voteview"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(ctx, session, interaction)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		id, err := customid.Decode(interaction.MessageComponentData().CustomID)
		if err != nil {
			b.logger.Warn("component id rejected", zap.Error(err))
			return
		}
		b.dispatchComponent(ctx, session, interaction, id)
	case discordgo.InteractionModalSubmit:
		id, err := customid.Decode(interaction.ModalSubmitData().CustomID)
		if err != nil {
			b.logger.Warn("modal id rejected", zap.Error(err))
			return
		}
		b.dispatchModal(ctx, session, interaction, id)
	}
}

func (b *Bot) dispatchCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works in the server.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "ticket-panel":
		b.handleTicketPanel(ctx, session, interaction)
	case "new-ticket":
		opts := optionMap(data.Options)
		b.openTicketModal(session, interaction, stringOption(opts, "category"))
	case "ticket":
		b.handleTicketCommand(ctx, session, interaction, data.Options)
	case "vote":
		b.handleVoteCommand(ctx, session, interaction, data.Options)
	case "myvote":
		b.handleMyVoteCommand(ctx, session, interaction, data.Options)
	case "removal":
		b.handleRemovalCommand(ctx, session, interaction, data.Options)
	case "upgrade":
		b.handleUpgradeCommand(ctx, session, interaction, data.Options)
	case "premium":
		b.handlePremiumCommand(ctx, session, interaction, data.Options)
	case "blacklist":
		b.handleBlacklistCommand(ctx, session, interaction, data.Options)
	case "unblacklist":
		b.handleUnblacklistCommand(ctx, session, interaction, data.Options)
	case "staff-list":
		b.handleStaffListCommand(ctx, session, interaction, data.Options)
	case "voteview":
		b.handleVoteViewCommand(ctx, session, interaction)
	case "announce":
		b.handleAnnounceCommand(ctx, session, interaction, data.Options)
	case "stats":
		b.handleStatsCommand(ctx, session, interaction)
	}
}

// canHandleTicket reports whether the caller may work a ticket of the given
// category. Admin-only categories are invisible to regular staff.
func canHandleTicket(caps tiers.Capabilities, category config.TicketCategoryConfig) bool {
	if category.AdminOnly {
		return caps.Admin
	}
	return caps.Staff || caps.Admin
}

func (b *Bot) handleTicketPanel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	caps := b.memberCaps(interaction)
	if !caps.Staff && !caps.Admin {
		b.respond(session, interaction, "You need a staff role to post the panel.", true)
		return
	}

	var buttons []discordgo.MessageComponent
	for _, category := range b.cfg.Tickets.Categories {
		buttons = append(buttons, discordgo.Button{
			Label:    category.Name,
			Style:    discordgo.PrimaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.TicketCreate, Scope: category.Name}),
		})
	}
	if len(buttons) == 0 {
		b.respond(session, interaction, "No ticket categories are configured.", true)
		return
	}

	_, err := session.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Open a Ticket",
			Description: "Pick a category below and fill in the form.",
			Color:       b.cfg.Notifications.EmbedColors.Primary,
		}},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		b.respond(session, interaction, "Could not post the panel.", true)
		return
	}
	b.respond(session, interaction, "Panel posted.", true)
}

func (b *Bot) handleTicketCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	action := stringOption(opts, "action")
	reason := stringOption(opts, "reason")
	channelID := interaction.ChannelID
	actorID := b.memberID(interaction)
	caps := b.memberCaps(interaction)

	ticket, err := b.tickets.Ticket(ctx, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.respond(session, interaction, "This channel is not a ticket.", true)
			return
		}
		b.respond(session, interaction, "Ticket lookup failed.", true)
		return
	}
	category, _ := b.ticketCategory(ticket.Category)
	isRequester := actorID == ticket.RequesterID
	handler := canHandleTicket(caps, category)

	switch action {
	case "close":
		if !isRequester && !handler {
			b.respond(session, interaction, "Only the requester or the team can close this ticket.", true)
			return
		}
		if _, err := b.tickets.Close(ctx, channelID, actorID); err != nil {
			b.respondTicketError(session, interaction, err)
			return
		}
		b.respond(session, interaction, "Ticket closed.", true)
	case "reopen":
		if !isRequester && !handler {
			b.respond(session, interaction, "Only the requester or the team can reopen this ticket.", true)
			return
		}
		if _, err := b.tickets.Reopen(ctx, channelID, actorID); err != nil {
			b.respondTicketError(session, interaction, err)
			return
		}
		b.respond(session, interaction, "Ticket reopened.", true)
	case "claim":
		if !handler {
			b.respond(session, interaction, "You cannot claim this ticket.", true)
			return
		}
		// The transcript export pages through the channel history, which
		// can outlast the interaction ack window.
		b.deferEphemeral(session, interaction)
		url, err := b.tickets.Claim(ctx, channelID, actorID, reason)
		if err != nil {
			b.followupTicketError(session, interaction, err)
			return
		}
		b.followup(session, interaction, "Ticket claimed. Transcript: "+url)
	case "delete":
		if !handler {
			b.respond(session, interaction, "You cannot delete this ticket.", true)
			return
		}
		b.deferEphemeral(session, interaction)
		url, err := b.tickets.Delete(ctx, channelID, actorID, reason)
		if err != nil {
			b.followupTicketError(session, interaction, err)
			return
		}
		b.followup(session, interaction, "Ticket deleted. Transcript: "+url)
	case "lock":
		if !handler {
			b.respond(session, interaction, "You cannot lock this ticket.", true)
			return
		}
		if _, err := b.tickets.Lock(ctx, channelID, actorID); err != nil {
			b.respondTicketError(session, interaction, err)
			return
		}
		b.respond(session, interaction, "Ticket locked.", true)
	case "unlock":
		if !handler {
			b.respond(session, interaction, "You cannot unlock this ticket.", true)
			return
		}
		if _, err := b.tickets.Unlock(ctx, channelID, actorID); err != nil {
			b.respondTicketError(session, interaction, err)
			return
		}
		b.respond(session, interaction, "Ticket unlocked.", true)
	case "add", "remove":
		if !handler {
			b.respond(session, interaction, "You cannot manage who sees this ticket.", true)
			return
		}
		userID := userOption(opts, "user", session)
		if userID == "" {
			b.respond(session, interaction, "Pick a member to add or remove.", true)
			return
		}
		if action == "add" {
			if _, err := b.tickets.AddParticipant(ctx, channelID, actorID, userID); err != nil {
				b.respondTicketError(session, interaction, err)
				return
			}
			b.respond(session, interaction, "Added <@"+userID+"> to the ticket.", true)
			return
		}
		if _, err := b.tickets.RemoveParticipant(ctx, channelID, actorID, userID); err != nil {
			b.respondTicketError(session, interaction, err)
			return
		}
		b.respond(session, interaction, "Removed <@"+userID+"> from the ticket.", true)
	}
}

func (b *Bot) respondTicketError(session *discordgo.Session, interaction *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, tickets.ErrNotTicket):
		b.respond(session, interaction, "This channel is not a ticket.", true)
	case errors.Is(err, tickets.ErrWrongState):
		b.respond(session, interaction, "The ticket is not in a state for that.", true)
	default:
		b.logger.Warn("ticket action failed", zap.Error(err))
		b.respond(session, interaction, "That did not work: "+err.Error(), true)
	}
}

func (b *Bot) followupTicketError(session *discordgo.Session, interaction *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, tickets.ErrNotTicket):
		b.followup(session, interaction, "This channel is not a ticket.")
	case errors.Is(err, tickets.ErrWrongState):
		b.followup(session, interaction, "The ticket is not in a state for that.")
	default:
		b.logger.Warn("ticket action failed", zap.Error(err))
		b.followup(session, interaction, "That did not work: "+err.Error())
	}
}

func (b *Bot) handleVoteCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	tierName := stringOption(opts, "tier")
	target := userOption(opts, "user", session)

	tier, ok := b.registry.Tier(tierName)
	if !ok || target == "" {
		b.respond(session, interaction, "Unknown tier or user.", true)
		return
	}
	caps := b.memberCaps(interaction)
	if !caps.CanManage(tier.Name) {
		b.respond(session, interaction, "You do not manage this tier.", true)
		return
	}

	poll, err := b.votes.OpenPromotion(ctx, tier, target)
	if err != nil {
		if errors.Is(err, votes.ErrPollExists) {
			b.respond(session, interaction, "There is already an active poll for that user.", true)
			return
		}
		b.respond(session, interaction, "Could not open the poll.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Poll #%d opened in <#%s>.", poll.ID, tier.VoteChannel), true)
}

func (b *Bot) handleMyVoteCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	tierName := stringOption(opts, "tier")
	target := userOption(opts, "user", session)
	voterID := b.memberID(interaction)

	poll, err := b.store.ActivePoll(ctx, target, tierName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.respond(session, interaction, "No active poll for that user.", true)
			return
		}
		b.respond(session, interaction, "Poll lookup failed.", true)
		return
	}
	vote, err := b.store.VoteByVoter(ctx, poll.ID, voterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.respond(session, interaction, "You have not voted on this poll.", true)
			return
		}
		b.respond(session, interaction, "Vote lookup failed.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Your vote on poll #%d: %s.", poll.ID, vote.Direction), true)
}

func (b *Bot) handleRemovalCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	tierName := stringOption(opts, "tier")
	target := userOption(opts, "user", session)

	tier, ok := b.registry.Tier(tierName)
	if !ok || target == "" {
		b.respond(session, interaction, "Unknown tier or user.", true)
		return
	}
	caps := b.memberCaps(interaction)
	if !caps.CanManage(tier.Name) {
		b.respond(session, interaction, "You do not manage this tier.", true)
		return
	}

	poll, err := b.votes.OpenRemoval(ctx, tier, target, b.memberID(interaction))
	if err != nil {
		if errors.Is(err, votes.ErrPollExists) {
			b.respond(session, interaction, "There is already an active removal poll for that user.", true)
			return
		}
		b.respond(session, interaction, "Could not open the removal poll.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Removal poll #%d opened in <#%s>. Vouch there to add your reason.", poll.ID, tier.VouchChannel), true)
}

func (b *Bot) handleUpgradeCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "user", session)
	roleID := stringOption(opts, "role")
	caps := b.memberCaps(interaction)

	member, err := session.GuildMember(b.cfg.GuildID, target, discordgo.WithContext(ctx))
	if err != nil || member == nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}

	allowed := false
	label := roleID
	for _, option := range b.registry.Promotable(caps, member.Roles) {
		if option.RoleID == roleID {
			allowed = true
			label = option.Label
			break
		}
	}
	if !allowed {
		b.respond(session, interaction, "You cannot grant that role.", true)
		return
	}

	if err := session.GuildMemberRoleAdd(b.cfg.GuildID, target, roleID, discordgo.WithContext(ctx)); err != nil {
		b.respond(session, interaction, "Role grant failed.", true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, b.memberID(interaction), "member_upgraded",
		fmt.Sprintf("user=%s role=%s", target, roleID))
	b.announce(ctx, "Upgrade", fmt.Sprintf("<@%s> is now **%s**.", target, label), b.cfg.Notifications.EmbedColors.Success)
	b.respond(session, interaction, fmt.Sprintf("<@%s> upgraded to %s.", target, label), true)
}

func (b *Bot) handleAutocomplete(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	if data.Name != "upgrade" {
		return
	}

	var target, typed string
	for _, opt := range data.Options {
		switch opt.Name {
		case "user":
			target, _ = opt.Value.(string)
		case "role":
			if opt.Focused {
				typed, _ = opt.Value.(string)
			}
		}
	}

	caps := b.memberCaps(interaction)
	var targetRoles []string
	if target != "" {
		if member, err := session.GuildMember(b.cfg.GuildID, target, discordgo.WithContext(ctx)); err == nil && member != nil {
			targetRoles = member.Roles
		}
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, option := range b.registry.Promotable(caps, targetRoles) {
		if typed != "" && !strings.Contains(strings.ToLower(option.Label), strings.ToLower(typed)) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: option.Label, Value: option.RoleID})
		if len(choices) == 25 {
			break
		}
	}

	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

func (b *Bot) handlePremiumCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	tier, ok := b.premiumTier()
	if !ok {
		b.respond(session, interaction, "No premium tier is configured.", true)
		return
	}
	caps := b.memberCaps(interaction)
	if !caps.CanManage(tier.Name) {
		b.respond(session, interaction, "You do not manage premium members.", true)
		return
	}

	opts := optionMap(options)
	action := stringOption(opts, "action")
	target := userOption(opts, "user", session)

	switch action {
	case "add":
		if target == "" {
			b.respond(session, interaction, "Pick a user to add.", true)
			return
		}
		if err := session.GuildMemberRoleAdd(b.cfg.GuildID, target, tier.RoleID, discordgo.WithContext(ctx)); err != nil {
			b.respond(session, interaction, "Role grant failed.", true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, b.memberID(interaction), "premium_added", "user="+target)
		b.announce(ctx, "Premium", fmt.Sprintf("<@%s> is now a premium member!", target), b.cfg.Notifications.EmbedColors.Success)
		b.respond(session, interaction, fmt.Sprintf("<@%s> is now premium.", target), true)
	case "remove":
		if target == "" {
			b.respond(session, interaction, "Pick a user to remove.", true)
			return
		}
		if err := session.GuildMemberRoleRemove(b.cfg.GuildID, target, tier.RoleID, discordgo.WithContext(ctx)); err != nil {
			b.respond(session, interaction, "Role removal failed.", true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, b.memberID(interaction), "premium_removed", "user="+target)
		b.respond(session, interaction, fmt.Sprintf("<@%s> is no longer premium.", target), true)
	case "list":
		embed, components, err := b.premiumListPage(ctx, session, tier, b.memberID(interaction), 0)
		if err != nil {
			b.respond(session, interaction, "Could not list premium members.", true)
			return
		}
		_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{embed},
				Components: components,
			},
		})
	}
}

// premiumListPage renders one page of premium members with pagination
// controls bound to the initiator.
func (b *Bot) premiumListPage(ctx context.Context, session *discordgo.Session, tier tiers.Tier, initiatorID string, pageNum int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	members, err := b.membersWithRole(ctx, session, tier.RoleID)
	if err != nil {
		return nil, nil, err
	}

	page := utils.Paginate(len(members), pageNum, premiumPageSize)
	lines := make([]string, 0, page.End-page.Start)
	for _, id := range members[page.Start:page.End] {
		lines = append(lines, "<@"+id+">")
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = "Nobody yet."
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Premium Members",
		Description: body,
		Color:       b.cfg.Notifications.EmbedColors.Primary,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d, %d members", page.Number+1, page.Pages, len(members))},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	components := []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Prev",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.PagePrev, Scope: tier.Name, Target: initiatorID, Page: page.Number - 1}),
			Disabled: page.Number <= 0,
		},
		discordgo.Button{
			Label:    "Next",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.PageNext, Scope: tier.Name, Target: initiatorID, Page: page.Number + 1}),
			Disabled: page.Number >= page.Pages-1,
		},
	}}}
	return embed, components, nil
}

func (b *Bot) allMembers(ctx context.Context, session *discordgo.Session) ([]*discordgo.Member, error) {
	var members []*discordgo.Member
	after := ""
	for {
		batch, err := session.GuildMembers(b.cfg.GuildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, member := range batch {
			if member != nil && member.User != nil {
				members = append(members, member)
			}
		}
		after = batch[len(batch)-1].User.ID
		if len(batch) < 1000 {
			break
		}
	}
	return members, nil
}

func (b *Bot) membersWithRole(ctx context.Context, session *discordgo.Session, roleID string) ([]string, error) {
	members, err := b.allMembers(ctx, session)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, member := range members {
		for _, id := range member.Roles {
			if id == roleID {
				ids = append(ids, member.User.ID)
				break
			}
		}
	}
	return ids, nil
}

func (b *Bot) handleBlacklistCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	caps := b.memberCaps(interaction)
	if !caps.Staff && !caps.Admin {
		b.respond(session, interaction, "You need a staff role for that.", true)
		return
	}

	opts := optionMap(options)
	target := userOption(opts, "user", session)
	duration := stringOption(opts, "duration")
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "manual"
	}

	err := b.translation.ManualBlacklist(ctx, target, interaction.ChannelID, duration, reason, b.memberID(interaction))
	if err != nil {
		if errors.Is(err, utils.ErrBadDuration) {
			b.respond(session, interaction, "Bad duration. Use forms like 30m, 2h, 1d.", true)
			return
		}
		b.respond(session, interaction, "Blacklist failed.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> blacklisted from translations.", target), true)
}

func (b *Bot) handleUnblacklistCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	caps := b.memberCaps(interaction)
	if !caps.Staff && !caps.Admin {
		b.respond(session, interaction, "You need a staff role for that.", true)
		return
	}

	opts := optionMap(options)
	target := userOption(opts, "user", session)
	removed, err := b.translation.ManualUnblacklist(ctx, target, b.memberID(interaction))
	if err != nil {
		b.respond(session, interaction, "Unblacklist failed.", true)
		return
	}
	if !removed {
		b.respond(session, interaction, "That user is not blacklisted.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> unblacklisted.", target), true)
}

func (b *Bot) handleStaffListCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	sortKey := stringOption(opts, "sort")
	if sortKey != "name" {
		sortKey = "tier"
	}

	embed, components, err := b.rosterPage(ctx, session, sortKey, b.memberID(interaction), 0)
	if err != nil {
		b.respond(session, interaction, "Member listing failed.", true)
		return
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func (b *Bot) handleVoteViewCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	caps := b.memberCaps(interaction)
	if !caps.Staff && !caps.Admin {
		b.respond(session, interaction, "You need a staff role to browse poll results.", true)
		return
	}

	embed, components, err := b.voteViewPage(ctx, b.memberID(interaction), 0)
	if err != nil {
		b.respond(session, interaction, "Poll listing failed.", true)
		return
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

// voteViewPage renders one page of promotion poll results, newest first.
func (b *Bot) voteViewPage(ctx context.Context, initiatorID string, pageNum int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	polls, err := b.store.ListPolls(ctx)
	if err != nil {
		return nil, nil, err
	}

	page := utils.Paginate(len(polls), pageNum, voteViewPageSize)
	lines := make([]string, 0, page.End-page.Start)
	for _, poll := range polls[page.Start:page.End] {
		status := "closed"
		if poll.Active {
			status = "active"
		}
		lines = append(lines, fmt.Sprintf("`#%d` **%s** vote for <@%s> — 👍 %d / 👎 %d (%s, %s)",
			poll.ID, poll.Tier, poll.TargetUserID, poll.Upvotes, poll.Downvotes, status,
			poll.CreatedAt.Format("2006-01-02")))
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = "No polls yet."
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Poll Results",
		Description: body,
		Color:       b.cfg.Notifications.EmbedColors.Primary,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d, %d polls", page.Number+1, page.Pages, len(polls))},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	components := []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Prev",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.PagePrev, Scope: voteViewScope, Target: initiatorID, Page: page.Number - 1}),
			Disabled: page.Number <= 0,
		},
		discordgo.Button{
			Label:    "Next",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.PageNext, Scope: voteViewScope, Target: initiatorID, Page: page.Number + 1}),
			Disabled: page.Number >= page.Pages-1,
		},
	}}}
	return embed, components, nil
}

// rosterPage renders one page of the tier roster. Members holding several
// tier roles are listed once per tier.
func (b *Bot) rosterPage(ctx context.Context, session *discordgo.Session, sortKey, initiatorID string, pageNum int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	members, err := b.allMembers(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	type entry struct {
		tier string
		name string
		id   string
	}
	var entries []entry
	for _, tier := range b.registry.Tiers() {
		for _, member := range members {
			for _, roleID := range member.Roles {
				if roleID == tier.RoleID {
					entries = append(entries, entry{tier: tier.Name, name: member.User.Username, id: member.User.ID})
					break
				}
			}
		}
	}
	if sortKey == "name" {
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
		})
	}

	page := utils.Paginate(len(entries), pageNum, premiumPageSize)
	lines := make([]string, 0, page.End-page.Start)
	for _, item := range entries[page.Start:page.End] {
		lines = append(lines, fmt.Sprintf("**%s** — <@%s>", item.tier, item.id))
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = "Nobody yet."
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Tier Roster",
		Description: body,
		Color:       b.cfg.Notifications.EmbedColors.Primary,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d, %d entries, sorted by %s", page.Number+1, page.Pages, len(entries), sortKey)},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	scope := rosterScopePrefix + sortKey
	components := []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Prev",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.PagePrev, Scope: scope, Target: initiatorID, Page: page.Number - 1}),
			Disabled: page.Number <= 0,
		},
		discordgo.Button{
			Label:    "Next",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.PageNext, Scope: scope, Target: initiatorID, Page: page.Number + 1}),
			Disabled: page.Number >= page.Pages-1,
		},
	}}}
	return embed, components, nil
}

func (b *Bot) handleAnnounceCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	caps := b.memberCaps(interaction)
	if !caps.Staff && !caps.Admin {
		b.respond(session, interaction, "You need a staff role for that.", true)
		return
	}

	opts := optionMap(options)
	kind := stringOption(opts, "type")
	target := userOption(opts, "user", session)
	detail := stringOption(opts, "detail")

	var title, body string
	color := b.cfg.Notifications.EmbedColors.Primary
	switch kind {
	case "join":
		title = "Welcome"
		body = fmt.Sprintf("<@%s> has joined the team!", target)
		color = b.cfg.Notifications.EmbedColors.Success
	case "departure":
		title = "Departure"
		body = fmt.Sprintf("<@%s> has left the team. Thanks for everything!", target)
		color = b.cfg.Notifications.EmbedColors.Error
	case "return":
		title = "Welcome Back"
		body = fmt.Sprintf("<@%s> is back!", target)
		color = b.cfg.Notifications.EmbedColors.Success
	case "promotion":
		title = "Promotion"
		body = fmt.Sprintf("<@%s> has been promoted!", target)
		color = b.cfg.Notifications.EmbedColors.Success
	default:
		b.respond(session, interaction, "Unknown announcement type.", true)
		return
	}
	if detail != "" {
		body += "\n" + detail
	}

	b.announce(ctx, title, body, color)
	b.audit.Log(ctx, audit.LevelInfo, b.memberID(interaction), "announcement_posted",
		fmt.Sprintf("type=%s user=%s", kind, target))
	b.respond(session, interaction, "Announcement posted.", true)
}

func (b *Bot) handleStatsCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	report, err := b.analytics.Report(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		b.respond(session, interaction, "Stats unavailable.", true)
		return
	}
	rt := b.analytics.Runtime(ctx, int32(os.Getpid()))

	fields := []*discordgo.MessageEmbedField{
		{Name: "Audit events (7d)", Value: fmt.Sprintf("%d", report.AuditTotal), Inline: true},
		{Name: "Open polls", Value: fmt.Sprintf("%d", report.OpenPolls), Inline: true},
		{Name: "Open removals", Value: fmt.Sprintf("%d", report.OpenRemovals), Inline: true},
		{Name: "Open tickets", Value: fmt.Sprintf("%d", report.Tickets[storage.TicketOpen]), Inline: true},
		{Name: "Closed tickets", Value: fmt.Sprintf("%d", report.Tickets[storage.TicketClosed]), Inline: true},
		{Name: "Archived tickets", Value: fmt.Sprintf("%d", report.Tickets[storage.TicketClaimed]+report.Tickets[storage.TicketDeleted]), Inline: true},
		{Name: "Uptime", Value: rt.Uptime.Round(time.Second).String(), Inline: true},
		{Name: "Memory", Value: fmt.Sprintf("%.1f MiB", float64(rt.MemoryRSS)/(1024*1024)), Inline: true},
		{Name: "CPU", Value: fmt.Sprintf("%.1f%%", rt.CPUPercent), Inline: true},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Warden Stats", "Activity and runtime figures.", b.cfg.Notifications.EmbedColors.Primary, fields), true)
}

func (b *Bot) dispatchComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	switch id.Action {
	case customid.TicketCreate:
		b.openTicketModal(session, interaction, id.Scope)
	case customid.TicketClose:
		b.componentTicketAction(ctx, session, interaction, "close")
	case customid.TicketReopen:
		b.componentTicketAction(ctx, session, interaction, "reopen")
	case customid.TicketClaim:
		b.openReasonModal(session, interaction, customid.TicketClaimReason, "Claim Ticket")
	case customid.TicketDelete:
		b.openReasonModal(session, interaction, customid.TicketDeleteReason, "Delete Ticket")
	case customid.Evidence, customid.ReportDetails, customid.PartnerDetails:
		b.showTicketDetails(ctx, session, interaction, id.Action)
	case customid.Upvote:
		b.componentCastVote(ctx, session, interaction, id, storage.VoteUp)
	case customid.Downvote:
		b.componentCastVote(ctx, session, interaction, id, storage.VoteDown)
	case customid.EndVote:
		b.componentEndVote(ctx, session, interaction, id)
	case customid.GrantRole:
		b.componentGrantRole(ctx, session, interaction, id)
	case customid.Vouch:
		b.openReasonModal(session, interaction, customid.VouchReason, "Vouch for Removal")
	case customid.UndoRemoval:
		b.componentUndoRemoval(ctx, session, interaction, id)
	case customid.Finalize:
		b.componentFinalizeRemoval(ctx, session, interaction, id)
	case customid.Unblacklist:
		b.componentUnblacklist(ctx, session, interaction, id)
	case customid.PagePrev, customid.PageNext:
		b.componentListPage(ctx, session, interaction, id)
	}
}

func (b *Bot) openTicketModal(session *discordgo.Session, interaction *discordgo.InteractionCreate, category string) {
	inputs := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
			CustomID:  "reason",
			Label:     "What is this about?",
			Style:     discordgo.TextInputParagraph,
			Required:  true,
			MaxLength: 1000,
		}}},
	}
	switch category {
	case "Report", "StaffReport":
		inputs = append([]discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
				CustomID:  "reported_user",
				Label:     "Who are you reporting? (user ID)",
				Style:     discordgo.TextInputShort,
				Required:  true,
				MaxLength: 32,
			}}},
		}, inputs...)
		inputs = append(inputs, discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
			CustomID:  "proof",
			Label:     "Evidence links (one per line)",
			Style:     discordgo.TextInputParagraph,
			Required:  false,
			MaxLength: 1000,
		}}})
	case "Partnership":
		inputs = append(inputs, discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
			CustomID:  "invite",
			Label:     "Server invite link",
			Style:     discordgo.TextInputShort,
			Required:  true,
			MaxLength: 200,
		}}})
	}

	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customid.Format(customid.ID{Action: customid.TicketModal, Scope: category}),
			Title:      category + " Ticket",
			Components: inputs,
		},
	})
}

func (b *Bot) openReasonModal(session *discordgo.Session, interaction *discordgo.InteractionCreate, action customid.Action, title string) {
	// The channel or poll the modal belongs to rides along in the scope of
	// the original button's custom id.
	source, err := customid.Decode(interaction.MessageComponentData().CustomID)
	if err != nil {
		return
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customid.Format(customid.ID{Action: action, Scope: source.Scope, Target: source.Target}),
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
					CustomID:  "reason",
					Label:     "Reason",
					Style:     discordgo.TextInputParagraph,
					Required:  true,
					MaxLength: 1000,
				}}},
			},
		},
	})
}

func (b *Bot) componentTicketAction(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, action string) {
	actorID := b.memberID(interaction)
	caps := b.memberCaps(interaction)
	channelID := interaction.ChannelID

	ticket, err := b.tickets.Ticket(ctx, channelID)
	if err != nil {
		b.respond(session, interaction, "This channel is not a ticket.", true)
		return
	}
	category, _ := b.ticketCategory(ticket.Category)
	if actorID != ticket.RequesterID && !canHandleTicket(caps, category) {
		b.respond(session, interaction, "You cannot manage this ticket.", true)
		return
	}

	if action == "close" {
		_, err = b.tickets.Close(ctx, channelID, actorID)
	} else {
		_, err = b.tickets.Reopen(ctx, channelID, actorID)
	}
	if err != nil {
		b.respondTicketError(session, interaction, err)
		return
	}
	b.respond(session, interaction, "Done.", true)
}

func (b *Bot) showTicketDetails(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, action customid.Action) {
	caps := b.memberCaps(interaction)
	ticket, err := b.tickets.Ticket(ctx, interaction.ChannelID)
	if err != nil {
		b.respond(session, interaction, "This channel is not a ticket.", true)
		return
	}
	category, _ := b.ticketCategory(ticket.Category)
	if !canHandleTicket(caps, category) {
		b.respond(session, interaction, "Only the team can view these details.", true)
		return
	}

	var fields []*discordgo.MessageEmbedField
	title := "Ticket Details"
	switch action {
	case customid.Evidence:
		title = "Evidence"
		value := strings.Join(ticket.ProofURLs, "\n")
		if value == "" {
			value = "-"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Proof", Value: value, Inline: false})
	case customid.ReportDetails:
		title = "Report Details"
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Reported User", Value: mention(ticket.ReportedUser), Inline: true},
			&discordgo.MessageEmbedField{Name: "Reason", Value: orDash(ticket.Reason), Inline: false},
		)
	case customid.PartnerDetails:
		title = "Partnership Details"
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Invite", Value: orDash(ticket.InviteLink), Inline: false},
			&discordgo.MessageEmbedField{Name: "Pitch", Value: orDash(ticket.Reason), Inline: false},
		)
	}
	b.respondEmbed(session, interaction, b.commandEmbed(title, "", b.cfg.Notifications.EmbedColors.Primary, fields), true)
}

func (b *Bot) componentCastVote(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID, direction string) {
	pollID, err := id.TargetInt()
	if err != nil {
		return
	}
	var roles []string
	if interaction.Member != nil {
		roles = interaction.Member.Roles
	}

	poll, err := b.votes.CastVote(ctx, pollID, b.memberID(interaction), roles, direction)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyVoted):
			b.respond(session, interaction, "You already voted on this poll.", true)
		case errors.Is(err, votes.ErrSelfVote):
			b.respond(session, interaction, "You cannot vote on your own poll.", true)
		case errors.Is(err, votes.ErrNotEligible):
			b.respond(session, interaction, "You need a tier role to vote.", true)
		case errors.Is(err, votes.ErrPollClosed):
			b.respond(session, interaction, "This poll is closed.", true)
		default:
			b.respond(session, interaction, "Vote failed.", true)
		}
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Vote recorded. Tally: %d up / %d down.", poll.Upvotes, poll.Downvotes), true)
}

func (b *Bot) componentEndVote(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	caps := b.memberCaps(interaction)
	if !caps.CanManage(id.Scope) {
		b.respond(session, interaction, "You do not manage this tier.", true)
		return
	}
	pollID, err := id.TargetInt()
	if err != nil {
		return
	}

	poll, won, err := b.votes.EndPoll(ctx, pollID, b.memberID(interaction))
	if err != nil {
		if errors.Is(err, votes.ErrPollClosed) {
			b.respond(session, interaction, "This poll was already ended.", true)
			return
		}
		b.respond(session, interaction, "Could not end the poll.", true)
		return
	}
	outcome := "lost"
	if won {
		outcome = "won"
	}
	b.respond(session, interaction, fmt.Sprintf("Poll ended: %s (%d up / %d down).", outcome, poll.Upvotes, poll.Downvotes), true)
}

func (b *Bot) componentGrantRole(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	caps := b.memberCaps(interaction)
	if !caps.CanManage(id.Scope) {
		b.respond(session, interaction, "You do not manage this tier.", true)
		return
	}
	pollID, err := id.TargetInt()
	if err != nil {
		return
	}
	if err := b.votes.Promote(ctx, pollID, b.memberID(interaction)); err != nil {
		if errors.Is(err, votes.ErrNotWon) {
			b.respond(session, interaction, "That poll was not won.", true)
			return
		}
		b.respond(session, interaction, "Promotion failed.", true)
		return
	}
	b.respond(session, interaction, "Role granted.", true)
}

func (b *Bot) componentUndoRemoval(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	pollID, err := id.TargetInt()
	if err != nil {
		return
	}
	if err := b.votes.UndoRemoval(ctx, pollID, b.memberID(interaction), b.memberCaps(interaction)); err != nil {
		switch {
		case errors.Is(err, votes.ErrNotEligible):
			b.respond(session, interaction, "You do not manage this tier.", true)
		case errors.Is(err, votes.ErrPollActive):
			b.respond(session, interaction, "This removal poll is still collecting vouches.", true)
		default:
			b.respond(session, interaction, "Undo failed.", true)
		}
		return
	}
	b.respond(session, interaction, "Removal undone; the role was restored.", true)
}

func (b *Bot) componentFinalizeRemoval(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	pollID, err := id.TargetInt()
	if err != nil {
		return
	}
	if err := b.votes.FinalizeRemoval(ctx, pollID, b.memberID(interaction), b.memberCaps(interaction)); err != nil {
		switch {
		case errors.Is(err, votes.ErrNotEligible):
			b.respond(session, interaction, "You do not manage this tier.", true)
		case errors.Is(err, votes.ErrPollActive):
			b.respond(session, interaction, "This removal poll is still collecting vouches.", true)
		default:
			b.respond(session, interaction, "Finalize failed.", true)
		}
		return
	}
	b.respond(session, interaction, "Removal finalized.", true)
}

func (b *Bot) componentUnblacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	caps := b.memberCaps(interaction)
	if !caps.Staff && !caps.Admin {
		b.respond(session, interaction, "You need a staff role for that.", true)
		return
	}
	removed, err := b.translation.ManualUnblacklist(ctx, id.Target, b.memberID(interaction))
	if err != nil || !removed {
		b.respond(session, interaction, "That user is not blacklisted anymore.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> unblacklisted.", id.Target), true)
}

func (b *Bot) componentListPage(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	if b.memberID(interaction) != id.Target {
		b.respond(session, interaction, "Only the person who opened this list can page through it.", true)
		return
	}

	var (
		embed      *discordgo.MessageEmbed
		components []discordgo.MessageComponent
		err        error
	)
	if strings.HasPrefix(id.Scope, rosterScopePrefix) {
		embed, components, err = b.rosterPage(ctx, session, strings.TrimPrefix(id.Scope, rosterScopePrefix), id.Target, id.Page)
	} else if id.Scope == voteViewScope {
		embed, components, err = b.voteViewPage(ctx, id.Target, id.Page)
	} else {
		tier, ok := b.registry.Tier(id.Scope)
		if !ok {
			return
		}
		embed, components, err = b.premiumListPage(ctx, session, tier, id.Target, id.Page)
	}
	if err != nil {
		b.respond(session, interaction, "Could not load that page.", true)
		return
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func (b *Bot) dispatchModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID) {
	data := interaction.ModalSubmitData()
	switch id.Action {
	case customid.TicketModal:
		b.submitTicketModal(ctx, session, interaction, id.Scope, data)
	case customid.TicketClaimReason:
		b.submitTicketFinalize(ctx, session, interaction, data, true)
	case customid.TicketDeleteReason:
		b.submitTicketFinalize(ctx, session, interaction, data, false)
	case customid.VouchReason:
		b.submitVouch(ctx, session, interaction, id, data)
	}
}

func (b *Bot) submitTicketModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, category string, data discordgo.ModalSubmitInteractionData) {
	in := tickets.CreateInput{
		Category:     category,
		RequesterID:  b.memberID(interaction),
		ReportedUser: modalValue(data, "reported_user"),
		Reason:       modalValue(data, "reason"),
		InviteLink:   modalValue(data, "invite"),
	}
	if proof := modalValue(data, "proof"); proof != "" {
		for _, line := range strings.Split(proof, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				in.ProofURLs = append(in.ProofURLs, line)
			}
		}
	}

	ticket, err := b.tickets.Create(ctx, in)
	if err != nil {
		b.logger.Warn("ticket create failed", zap.Error(err))
		b.respond(session, interaction, "Could not open the ticket.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Your ticket is ready: <#%s>", ticket.ChannelID), true)
}

func (b *Bot) submitTicketFinalize(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData, claim bool) {
	caps := b.memberCaps(interaction)
	channelID := interaction.ChannelID
	reason := modalValue(data, "reason")

	ticket, err := b.tickets.Ticket(ctx, channelID)
	if err != nil {
		b.respond(session, interaction, "This channel is not a ticket.", true)
		return
	}
	category, _ := b.ticketCategory(ticket.Category)
	if !canHandleTicket(caps, category) {
		b.respond(session, interaction, "You cannot archive this ticket.", true)
		return
	}

	b.deferEphemeral(session, interaction)
	var url string
	if claim {
		url, err = b.tickets.Claim(ctx, channelID, b.memberID(interaction), reason)
	} else {
		url, err = b.tickets.Delete(ctx, channelID, b.memberID(interaction), reason)
	}
	if err != nil {
		b.followupTicketError(session, interaction, err)
		return
	}
	b.followup(session, interaction, "Ticket archived. Transcript: "+url)
}

func (b *Bot) submitVouch(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, id customid.ID, data discordgo.ModalSubmitInteractionData) {
	pollID, err := id.TargetInt()
	if err != nil {
		return
	}
	reason := modalValue(data, "reason")

	count, removed, err := b.votes.Vouch(ctx, pollID, b.memberID(interaction), reason, b.memberCaps(interaction))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyVouched):
			b.respond(session, interaction, "You already vouched on this poll.", true)
		case errors.Is(err, votes.ErrNotEligible):
			b.respond(session, interaction, "You do not manage this tier.", true)
		case errors.Is(err, votes.ErrPollClosed):
			b.respond(session, interaction, "This removal poll is closed.", true)
		default:
			b.respond(session, interaction, "Vouch failed.", true)
		}
		return
	}
	if removed {
		b.respond(session, interaction, fmt.Sprintf("Vouch recorded (%d/%d). The member has been removed.", count, b.cfg.Voting.VouchThreshold), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Vouch recorded (%d/%d).", count, b.cfg.Voting.VouchThreshold), true)
}

func (b *Bot) ticketCategory(name string) (config.TicketCategoryConfig, bool) {
	for _, category := range b.cfg.Tickets.Categories {
		if category.Name == name {
			return category, true
		}
	}
	return config.TicketCategoryConfig{}, false
}

// premiumTier prefers a tier literally named Premium and falls back to the
// highest configured tier.
func (b *Bot) premiumTier() (tiers.Tier, bool) {
	if tier, ok := b.registry.Tier("Premium"); ok {
		return tier, true
	}
	all := b.registry.Tiers()
	if len(all) == 0 {
		return tiers.Tier{}, false
	}
	return all[len(all)-1], true
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok && opt.Type == discordgo.ApplicationCommandOptionString {
		return opt.StringValue()
	}
	return ""
}

func userOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, session *discordgo.Session) string {
	if opt, ok := opts[name]; ok && opt.Type == discordgo.ApplicationCommandOptionUser {
		if user := opt.UserValue(session); user != nil {
			return user.ID
		}
	}
	return ""
}

func modalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, row := range data.Components {
		actions, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actions.Components {
			input, ok := component.(*discordgo.TextInput)
			if !ok {
				continue
			}
			if input.CustomID == inputID {
				return input.Value
			}
		}
	}
	return ""
}

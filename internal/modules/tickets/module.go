// Package tickets drives the support-ticket lifecycle: creation with a
// dedicated channel, claim and delete with transcript archival, close and
// reopen toggling requester visibility.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warden/internal/config"
	"warden/internal/customid"
	"warden/internal/modules/audit"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrUnknownCategory = errors.New("unknown ticket category")
	ErrNotTicket       = errors.New("channel is not a ticket")
	ErrWrongState      = errors.New("ticket is not in a state for this action")
)

// Session is the slice of the Discord API the ticket flows touch.
type Session interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Exporter archives a channel's history and returns the archival URL.
type Exporter interface {
	Export(ctx context.Context, channelID, logChannelID, fileName string, summary *discordgo.MessageEmbed) (string, error)
}

type Manager struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Store
	session Session
	export  Exporter
	audit   *audit.Logger
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, session Session, exporter Exporter, auditLogger *audit.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		session: session,
		export:  exporter,
		audit:   auditLogger,
	}
}

type CreateInput struct {
	Category     string
	RequesterID  string
	ReportedUser string
	Reason       string
	ProofURLs    []string
	InviteLink   string
}

// Create allocates the next ticket number, provisions the channel with
// category-scoped permissions, persists the row, and posts the control
// notice.
func (m *Manager) Create(ctx context.Context, in CreateInput) (storage.Ticket, error) {
	category, ok := m.categoryConfig(in.Category)
	if !ok {
		return storage.Ticket{}, fmt.Errorf("%w: %s", ErrUnknownCategory, in.Category)
	}

	number, err := m.store.NextTicketNumber(ctx)
	if err != nil {
		return storage.Ticket{}, fmt.Errorf("allocate ticket number: %w", err)
	}

	channel, err := m.session.GuildChannelCreateComplex(m.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:                 fmt.Sprintf("%s-%04d", strings.ToLower(in.Category), number),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             category.OpenCategoryID,
		PermissionOverwrites: m.channelOverwrites(in.RequesterID, category),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return storage.Ticket{}, fmt.Errorf("create ticket channel: %w", err)
	}

	ticket := storage.Ticket{
		RequesterID:    in.RequesterID,
		ChannelID:      channel.ID,
		SequenceNumber: number,
		Category:       in.Category,
		Status:         storage.TicketOpen,
		ReportedUser:   in.ReportedUser,
		Reason:         in.Reason,
		ProofURLs:      in.ProofURLs,
		InviteLink:     in.InviteLink,
		CreatedAt:      time.Now(),
	}
	ticket.ID, err = m.store.CreateTicket(ctx, ticket)
	if err != nil {
		return storage.Ticket{}, fmt.Errorf("persist ticket: %w", err)
	}

	notice, err := m.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content:    "<@" + in.RequesterID + ">",
		Embeds:     []*discordgo.MessageEmbed{m.noticeEmbed(ticket)},
		Components: m.noticeComponents(ticket, false),
	}, discordgo.WithContext(ctx))
	if err == nil && notice != nil {
		_ = m.store.SetTicketNotice(ctx, ticket.ID, notice.ID)
		ticket.NoticeMessageID = notice.ID
	}

	m.audit.Log(ctx, audit.LevelInfo, in.RequesterID, "ticket_created",
		fmt.Sprintf("category=%s number=%d channel=%s", in.Category, number, channel.ID))
	return ticket, nil
}

// Close hides the channel from the requester, swaps the controls for
// delete/reopen, and parks the channel in the archive category.
func (m *Manager) Close(ctx context.Context, channelID, actorID string) (storage.Ticket, error) {
	ticket, err := m.store.TicketByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Ticket{}, ErrNotTicket
		}
		return storage.Ticket{}, err
	}
	if ticket.Status != storage.TicketOpen {
		return storage.Ticket{}, ErrWrongState
	}

	if err := m.store.UpdateTicketStatus(ctx, ticket.ID, storage.TicketClosed); err != nil {
		return storage.Ticket{}, err
	}
	ticket.Status = storage.TicketClosed

	// Side effects past this point do not roll the status back.
	_ = m.session.ChannelPermissionSet(channelID, ticket.RequesterID,
		discordgo.PermissionOverwriteTypeMember, 0, discordgo.PermissionViewChannel)
	m.disableNotice(ctx, ticket)

	if category, ok := m.categoryConfig(ticket.Category); ok && category.ArchiveCategoryID != "" {
		parent := category.ArchiveCategoryID
		_, _ = m.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{ParentID: parent}, discordgo.WithContext(ctx))
	}

	_, _ = m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Ticket Closed",
			Description: fmt.Sprintf("Closed by <@%s>. Delete the ticket or reopen it below.", actorID),
			Color:       m.cfg.Notifications.EmbedColors.Primary,
			Timestamp:   time.Now().Format(time.RFC3339),
		}},
		Components: m.closedComponents(ticket, false),
	}, discordgo.WithContext(ctx))

	m.audit.Log(ctx, audit.LevelInfo, actorID, "ticket_closed",
		fmt.Sprintf("number=%d channel=%s", ticket.SequenceNumber, channelID))
	return ticket, nil
}

// Reopen restores requester visibility and the open-state controls.
func (m *Manager) Reopen(ctx context.Context, channelID, actorID string) (storage.Ticket, error) {
	ticket, err := m.store.TicketByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Ticket{}, ErrNotTicket
		}
		return storage.Ticket{}, err
	}
	if ticket.Status != storage.TicketClosed {
		return storage.Ticket{}, ErrWrongState
	}

	if err := m.store.UpdateTicketStatus(ctx, ticket.ID, storage.TicketOpen); err != nil {
		return storage.Ticket{}, err
	}
	ticket.Status = storage.TicketOpen

	_ = m.session.ChannelPermissionSet(channelID, ticket.RequesterID,
		discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionViewChannel|discordgo.PermissionSendMessages, 0)
	if category, ok := m.categoryConfig(ticket.Category); ok && category.OpenCategoryID != "" {
		parent := category.OpenCategoryID
		_, _ = m.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{ParentID: parent}, discordgo.WithContext(ctx))
	}
	if ticket.NoticeMessageID != "" {
		_, _ = m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    channelID,
			ID:         ticket.NoticeMessageID,
			Components: componentsPtr(m.noticeComponents(ticket, false)),
		}, discordgo.WithContext(ctx))
	}

	m.audit.Log(ctx, audit.LevelInfo, actorID, "ticket_reopened",
		fmt.Sprintf("number=%d channel=%s", ticket.SequenceNumber, channelID))
	return ticket, nil
}

// Lock keeps the ticket visible to the requester but blocks them from
// writing in it.
func (m *Manager) Lock(ctx context.Context, channelID, actorID string) (storage.Ticket, error) {
	return m.setRequesterSend(ctx, channelID, actorID, false)
}

// Unlock restores the requester's ability to write.
func (m *Manager) Unlock(ctx context.Context, channelID, actorID string) (storage.Ticket, error) {
	return m.setRequesterSend(ctx, channelID, actorID, true)
}

func (m *Manager) setRequesterSend(ctx context.Context, channelID, actorID string, allow bool) (storage.Ticket, error) {
	ticket, err := m.store.TicketByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Ticket{}, ErrNotTicket
		}
		return storage.Ticket{}, err
	}
	if ticket.Status != storage.TicketOpen {
		return storage.Ticket{}, ErrWrongState
	}

	event := "ticket_locked"
	allowBits := int64(discordgo.PermissionViewChannel)
	denyBits := int64(discordgo.PermissionSendMessages)
	if allow {
		event = "ticket_unlocked"
		allowBits = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
		denyBits = 0
	}
	if err := m.session.ChannelPermissionSet(channelID, ticket.RequesterID,
		discordgo.PermissionOverwriteTypeMember, allowBits, denyBits); err != nil {
		return storage.Ticket{}, err
	}

	m.audit.Log(ctx, audit.LevelInfo, actorID, event,
		fmt.Sprintf("number=%d channel=%s", ticket.SequenceNumber, channelID))
	return ticket, nil
}

// AddParticipant grants a user view and send access to the ticket channel.
func (m *Manager) AddParticipant(ctx context.Context, channelID, actorID, userID string) (storage.Ticket, error) {
	return m.setParticipant(ctx, channelID, actorID, userID, true)
}

// RemoveParticipant revokes a user's access to the ticket channel.
func (m *Manager) RemoveParticipant(ctx context.Context, channelID, actorID, userID string) (storage.Ticket, error) {
	return m.setParticipant(ctx, channelID, actorID, userID, false)
}

func (m *Manager) setParticipant(ctx context.Context, channelID, actorID, userID string, grant bool) (storage.Ticket, error) {
	ticket, err := m.store.TicketByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Ticket{}, ErrNotTicket
		}
		return storage.Ticket{}, err
	}
	if ticket.Status != storage.TicketOpen {
		return storage.Ticket{}, ErrWrongState
	}

	event := "ticket_participant_added"
	allowBits := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	denyBits := int64(0)
	if !grant {
		event = "ticket_participant_removed"
		allowBits = 0
		denyBits = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
	}
	if err := m.session.ChannelPermissionSet(channelID, userID,
		discordgo.PermissionOverwriteTypeMember, allowBits, denyBits); err != nil {
		return storage.Ticket{}, err
	}

	m.audit.Log(ctx, audit.LevelInfo, actorID, event,
		fmt.Sprintf("number=%d channel=%s user=%s", ticket.SequenceNumber, channelID, userID))
	return ticket, nil
}

// Claim archives the ticket: transcript export and upload, log post, DM to
// the requester, then channel deletion. An export failure aborts before any
// state is mutated.
func (m *Manager) Claim(ctx context.Context, channelID, actorID, reason string) (string, error) {
	return m.finalize(ctx, channelID, actorID, reason, storage.TicketClaimed)
}

// Delete runs the same archival sequence as Claim, tagged as a deletion.
func (m *Manager) Delete(ctx context.Context, channelID, actorID, reason string) (string, error) {
	return m.finalize(ctx, channelID, actorID, reason, storage.TicketDeleted)
}

func (m *Manager) finalize(ctx context.Context, channelID, actorID, reason, status string) (string, error) {
	ticket, err := m.store.TicketByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotTicket
		}
		return "", err
	}
	if ticket.Status == storage.TicketClaimed || ticket.Status == storage.TicketDeleted {
		return "", ErrWrongState
	}

	category, ok := m.categoryConfig(ticket.Category)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, ticket.Category)
	}

	verb := "Claimed"
	event := "ticket_claimed"
	if status == storage.TicketDeleted {
		verb = "Deleted"
		event = "ticket_deleted"
	}
	summary := m.logEmbed(ticket, actorID, reason, verb)
	fileName := fmt.Sprintf("%s-%04d.txt", strings.ToLower(ticket.Category), ticket.SequenceNumber)

	url, err := m.export.Export(ctx, channelID, category.LogChannelID, fileName, summary)
	if err != nil {
		m.audit.Log(ctx, audit.LevelWarn, actorID, "ticket_export_failed",
			fmt.Sprintf("number=%d channel=%s", ticket.SequenceNumber, channelID))
		return "", fmt.Errorf("transcript export: %w", err)
	}

	if err := m.store.FinalizeTicket(ctx, ticket.ID, status, actorID, url); err != nil {
		return "", err
	}

	m.dmRequester(ctx, ticket, actorID, reason, verb, url)
	if _, err := m.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		m.logger.Warn("ticket channel delete failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	m.audit.Log(ctx, audit.LevelInfo, actorID, event,
		fmt.Sprintf("number=%d reason=%s", ticket.SequenceNumber, reason))
	return url, nil
}

func (m *Manager) dmRequester(ctx context.Context, ticket storage.Ticket, actorID, reason, verb, url string) {
	dm, err := m.session.UserChannelCreate(ticket.RequesterID, discordgo.WithContext(ctx))
	if err != nil {
		return
	}
	_, _ = m.session.ChannelMessageSendEmbed(dm.ID, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Your %s ticket was %s", ticket.Category, strings.ToLower(verb)),
		Description: fmt.Sprintf("Handled by <@%s>.", actorID),
		Color:       m.cfg.Notifications.EmbedColors.Primary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Ticket", Value: fmt.Sprintf("#%04d", ticket.SequenceNumber), Inline: true},
			{Name: "Reason", Value: orDash(reason), Inline: true},
			{Name: "Transcript", Value: url, Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}, discordgo.WithContext(ctx))
}

func (m *Manager) disableNotice(ctx context.Context, ticket storage.Ticket) {
	if ticket.NoticeMessageID == "" {
		return
	}
	_, _ = m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ticket.ChannelID,
		ID:         ticket.NoticeMessageID,
		Components: componentsPtr(m.noticeComponents(ticket, true)),
	}, discordgo.WithContext(ctx))
}

func (m *Manager) channelOverwrites(requesterID string, category config.TicketCategoryConfig) []*discordgo.PermissionOverwrite {
	view := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: m.cfg.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: requesterID, Type: discordgo.PermissionOverwriteTypeMember, Allow: view},
	}
	if category.AdminOnly {
		if m.cfg.AdminRoleID != "" {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID: m.cfg.AdminRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: view,
			})
		}
		if m.cfg.StaffRoleID != "" {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID: m.cfg.StaffRoleID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel,
			})
		}
		return overwrites
	}
	if m.cfg.StaffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: m.cfg.StaffRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: view,
		})
	}
	return overwrites
}

func (m *Manager) noticeEmbed(ticket storage.Ticket) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Category", Value: ticket.Category, Inline: true},
		{Name: "Ticket", Value: fmt.Sprintf("#%04d", ticket.SequenceNumber), Inline: true},
	}
	if ticket.ReportedUser != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Reported User", Value: "<@" + ticket.ReportedUser + ">", Inline: true})
	}
	if ticket.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: ticket.Reason, Inline: false})
	}
	if ticket.InviteLink != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Server Invite", Value: ticket.InviteLink, Inline: false})
	}
	return &discordgo.MessageEmbed{
		Title:       "Support Ticket",
		Description: "The team will be with you shortly. Use the controls below to manage this ticket.",
		Color:       m.cfg.Notifications.EmbedColors.Primary,
		Fields:      fields,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (m *Manager) logEmbed(ticket storage.Ticket, actorID, reason, verb string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Ticket %s", verb),
		Color: m.cfg.Notifications.EmbedColors.Primary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Ticket", Value: fmt.Sprintf("#%04d (%s)", ticket.SequenceNumber, ticket.Category), Inline: true},
			{Name: "Requester", Value: "<@" + ticket.RequesterID + ">", Inline: true},
			{Name: verb + " By", Value: "<@" + actorID + ">", Inline: true},
			{Name: "Reason", Value: orDash(reason), Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (m *Manager) noticeComponents(ticket storage.Ticket, disabled bool) []discordgo.MessageComponent {
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Close",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.TicketClose, Scope: ticket.Category, Target: ticket.ChannelID}),
			Disabled: disabled,
		},
		discordgo.Button{
			Label:    "Claim",
			Style:    discordgo.SuccessButton,
			CustomID: customid.Format(customid.ID{Action: customid.TicketClaim, Scope: ticket.Category, Target: ticket.ChannelID}),
			Disabled: disabled,
		},
	}}

	extras := m.disclosureButtons(ticket, disabled)
	if len(extras) == 0 {
		return []discordgo.MessageComponent{row}
	}
	return []discordgo.MessageComponent{row, discordgo.ActionsRow{Components: extras}}
}

func (m *Manager) disclosureButtons(ticket storage.Ticket, disabled bool) []discordgo.MessageComponent {
	var buttons []discordgo.MessageComponent
	switch ticket.Category {
	case "Report", "StaffReport":
		if len(ticket.ProofURLs) > 0 {
			buttons = append(buttons, discordgo.Button{
				Label:    "Evidence",
				Style:    discordgo.PrimaryButton,
				CustomID: customid.Format(customid.ID{Action: customid.Evidence, Scope: ticket.Category, Target: fmt.Sprintf("%d", ticket.ID)}),
				Disabled: disabled,
			})
		}
		buttons = append(buttons, discordgo.Button{
			Label:    "Report Details",
			Style:    discordgo.PrimaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.ReportDetails, Scope: ticket.Category, Target: fmt.Sprintf("%d", ticket.ID)}),
			Disabled: disabled,
		})
	case "Partnership":
		buttons = append(buttons, discordgo.Button{
			Label:    "Partnership Details",
			Style:    discordgo.PrimaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.PartnerDetails, Scope: ticket.Category, Target: fmt.Sprintf("%d", ticket.ID)}),
			Disabled: disabled,
		})
	}
	return buttons
}

func (m *Manager) closedComponents(ticket storage.Ticket, disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Delete",
			Style:    discordgo.DangerButton,
			CustomID: customid.Format(customid.ID{Action: customid.TicketDelete, Scope: ticket.Category, Target: ticket.ChannelID}),
			Disabled: disabled,
		},
		discordgo.Button{
			Label:    "Reopen",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Format(customid.ID{Action: customid.TicketReopen, Scope: ticket.Category, Target: ticket.ChannelID}),
			Disabled: disabled,
		},
	}}}
}

func (m *Manager) categoryConfig(name string) (config.TicketCategoryConfig, bool) {
	for _, category := range m.cfg.Tickets.Categories {
		if category.Name == name {
			return category, true
		}
	}
	return config.TicketCategoryConfig{}, false
}

func (m *Manager) Ticket(ctx context.Context, channelID string) (storage.Ticket, error) {
	return m.store.TicketByChannel(ctx, channelID)
}

func componentsPtr(components []discordgo.MessageComponent) *[]discordgo.MessageComponent {
	return &components
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

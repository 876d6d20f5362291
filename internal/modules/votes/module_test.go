package votes

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"warden/internal/config"
	"warden/internal/modules/audit"
	"warden/internal/storage"
	"warden/internal/tiers"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeSession struct {
	sends        []*discordgo.MessageSend
	sendChannels []string
	edits        []*discordgo.MessageEdit
	roleAdds     []string
	roleRemoves  []string
	memberRoles  map[string][]string
	nextID       int
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sends = append(f.sends, data)
	f.sendChannels = append(f.sendChannels, channelID)
	f.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", f.nextID), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: f.memberRoles[userID]}, nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.roleAdds = append(f.roleAdds, userID+"/"+roleID)
	f.memberRoles[userID] = append(f.memberRoles[userID], roleID)
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.roleRemoves = append(f.roleRemoves, userID+"/"+roleID)
	var kept []string
	for _, id := range f.memberRoles[userID] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	f.memberRoles[userID] = kept
	return nil
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.GuildID = "g1"
	cfg.Tiers = []config.TierConfig{
		{Name: "Pups", RoleID: "r-pups", ManagerRoleID: "m-pups", VoteChannel: "vote-pups", VouchChannel: "vouch-pups"},
		{Name: "Pugs", RoleID: "r-pugs", ManagerRoleID: "m-pugs", VoteChannel: "vote-pugs", VouchChannel: "vouch-pugs"},
	}
	return cfg
}

func newTestManager(t *testing.T) (*Manager, *fakeSession, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig()
	session := &fakeSession{memberRoles: make(map[string][]string)}
	registry := tiers.NewRegistry(cfg)
	logger := zap.NewNop()
	return New(cfg, logger, store, session, registry, audit.NewLogger(store, logger)), session, store
}

func pupsTier(t *testing.T, m *Manager) tiers.Tier {
	t.Helper()
	tier, ok := m.registry.Tier("Pups")
	if !ok {
		t.Fatalf("Pups tier missing")
	}
	return tier
}

func TestOpenPromotionRejectsDuplicate(t *testing.T) {
	m, session, _ := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)

	poll, err := m.OpenPromotion(ctx, tier, "u-target")
	if err != nil {
		t.Fatalf("OpenPromotion: %v", err)
	}
	if poll.MessageID == "" {
		t.Fatalf("voting card message id not recorded")
	}
	if session.sendChannels[0] != "vote-pups" {
		t.Fatalf("card posted to %q, want vote-pups", session.sendChannels[0])
	}

	if _, err := m.OpenPromotion(ctx, tier, "u-target"); !errors.Is(err, ErrPollExists) {
		t.Fatalf("second open err = %v, want ErrPollExists", err)
	}
}

func TestCastVoteRules(t *testing.T) {
	m, session, _ := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)

	poll, err := m.OpenPromotion(ctx, tier, "u-target")
	if err != nil {
		t.Fatalf("OpenPromotion: %v", err)
	}

	if _, err := m.CastVote(ctx, poll.ID, "u-target", []string{"r-pups"}, storage.VoteUp); !errors.Is(err, ErrSelfVote) {
		t.Fatalf("self vote err = %v, want ErrSelfVote", err)
	}
	if _, err := m.CastVote(ctx, poll.ID, "u-nobody", []string{"r-unrelated"}, storage.VoteUp); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("ineligible vote err = %v, want ErrNotEligible", err)
	}

	updated, err := m.CastVote(ctx, poll.ID, "u-voter", []string{"r-pups"}, storage.VoteUp)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if updated.Upvotes != 1 || updated.Downvotes != 0 {
		t.Fatalf("tally = %d/%d, want 1/0", updated.Upvotes, updated.Downvotes)
	}
	if len(session.edits) == 0 {
		t.Fatalf("voting card was not refreshed")
	}

	if _, err := m.CastVote(ctx, poll.ID, "u-voter", []string{"r-pups"}, storage.VoteDown); !errors.Is(err, storage.ErrAlreadyVoted) {
		t.Fatalf("duplicate vote err = %v, want ErrAlreadyVoted", err)
	}
}

func TestEndPollAndPromote(t *testing.T) {
	m, session, _ := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)

	poll, err := m.OpenPromotion(ctx, tier, "u-target")
	if err != nil {
		t.Fatalf("OpenPromotion: %v", err)
	}
	if _, err := m.CastVote(ctx, poll.ID, "u-voter1", []string{"r-pups"}, storage.VoteUp); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if _, err := m.CastVote(ctx, poll.ID, "u-voter2", []string{"r-pugs"}, storage.VoteUp); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	ended, won, err := m.EndPoll(ctx, poll.ID, "u-manager")
	if err != nil {
		t.Fatalf("EndPoll: %v", err)
	}
	if !won || ended.Upvotes != 2 {
		t.Fatalf("won=%t up=%d, want won with 2 upvotes", won, ended.Upvotes)
	}

	if _, _, err := m.EndPoll(ctx, poll.ID, "u-manager"); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("second end err = %v, want ErrPollClosed", err)
	}

	// Votes after closure are rejected.
	if _, err := m.CastVote(ctx, poll.ID, "u-voter3", []string{"r-pups"}, storage.VoteUp); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("vote after close err = %v, want ErrPollClosed", err)
	}

	if err := m.Promote(ctx, poll.ID, "u-manager"); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if len(session.roleAdds) != 1 || session.roleAdds[0] != "u-target/r-pups" {
		t.Fatalf("role adds = %v, want [u-target/r-pups]", session.roleAdds)
	}
}

func TestPromoteRequiresWin(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)

	poll, err := m.OpenPromotion(ctx, tier, "u-target")
	if err != nil {
		t.Fatalf("OpenPromotion: %v", err)
	}
	if _, err := m.CastVote(ctx, poll.ID, "u-voter1", []string{"r-pups"}, storage.VoteDown); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if _, won, err := m.EndPoll(ctx, poll.ID, "u-manager"); err != nil || won {
		t.Fatalf("EndPoll won=%t err=%v, want lost", won, err)
	}
	if err := m.Promote(ctx, poll.ID, "u-manager"); !errors.Is(err, ErrNotWon) {
		t.Fatalf("Promote err = %v, want ErrNotWon", err)
	}
}

func TestVouchThresholdRemovesRoleOnce(t *testing.T) {
	m, session, store := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)
	session.memberRoles["u-target"] = []string{"r-pups"}

	caps := m.registry.Resolve([]string{"m-pups"})
	poll, err := m.OpenRemoval(ctx, tier, "u-target", "u-initiator")
	if err != nil {
		t.Fatalf("OpenRemoval: %v", err)
	}
	if _, err := m.OpenRemoval(ctx, tier, "u-target", "u-other"); !errors.Is(err, ErrPollExists) {
		t.Fatalf("second open err = %v, want ErrPollExists", err)
	}

	count, removed, err := m.Vouch(ctx, poll.ID, "u-initiator", "inactive for months", caps)
	if err != nil {
		t.Fatalf("Vouch: %v", err)
	}
	if count != 1 || removed {
		t.Fatalf("first vouch count=%d removed=%t", count, removed)
	}
	stored, err := store.RemovalPollByID(ctx, poll.ID)
	if err != nil {
		t.Fatalf("RemovalPollByID: %v", err)
	}
	if stored.Reason != "inactive for months" {
		t.Fatalf("reason = %q, want initiator's reason", stored.Reason)
	}

	if _, _, err := m.Vouch(ctx, poll.ID, "u-initiator", "again", caps); !errors.Is(err, storage.ErrAlreadyVouched) {
		t.Fatalf("duplicate vouch err = %v, want ErrAlreadyVouched", err)
	}
	noCaps := m.registry.Resolve(nil)
	if _, _, err := m.Vouch(ctx, poll.ID, "u-random", "", noCaps); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("unmanaged vouch err = %v, want ErrNotEligible", err)
	}

	for i := 2; i < 6; i++ {
		count, removed, err = m.Vouch(ctx, poll.ID, fmt.Sprintf("u-mgr-%d", i), "", caps)
		if err != nil {
			t.Fatalf("vouch %d: %v", i, err)
		}
		if removed {
			t.Fatalf("removed at vouch %d, want only at threshold", i)
		}
	}

	count, removed, err = m.Vouch(ctx, poll.ID, "u-mgr-6", "", caps)
	if err != nil {
		t.Fatalf("threshold vouch: %v", err)
	}
	if count != 6 || !removed {
		t.Fatalf("threshold vouch count=%d removed=%t, want 6/true", count, removed)
	}
	if len(session.roleRemoves) != 1 || session.roleRemoves[0] != "u-target/r-pups" {
		t.Fatalf("role removes = %v, want exactly one strip", session.roleRemoves)
	}

	if _, _, err := m.Vouch(ctx, poll.ID, "u-mgr-7", "", caps); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("vouch after close err = %v, want ErrPollClosed", err)
	}
}

func cardButtons(t *testing.T, components []discordgo.MessageComponent) []discordgo.Button {
	t.Helper()
	if len(components) == 0 {
		t.Fatalf("no components on card")
	}
	row, ok := components[0].(discordgo.ActionsRow)
	if !ok {
		t.Fatalf("component row is %T, want ActionsRow", components[0])
	}
	buttons := make([]discordgo.Button, 0, len(row.Components))
	for _, component := range row.Components {
		button, ok := component.(discordgo.Button)
		if !ok {
			t.Fatalf("component is %T, want Button", component)
		}
		buttons = append(buttons, button)
	}
	return buttons
}

func TestUndoAndFinalizeRejectedWhileActive(t *testing.T) {
	m, session, _ := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)
	session.memberRoles["u-target"] = []string{"r-pups"}
	caps := m.registry.Resolve([]string{"m-pups"})

	poll, err := m.OpenRemoval(ctx, tier, "u-target", "u-initiator")
	if err != nil {
		t.Fatalf("OpenRemoval: %v", err)
	}

	// With zero vouches the poll is active and neither terminal action is
	// allowed; the role must stay put.
	if err := m.FinalizeRemoval(ctx, poll.ID, "u-manager", caps); !errors.Is(err, ErrPollActive) {
		t.Fatalf("finalize on active poll err = %v, want ErrPollActive", err)
	}
	if len(session.roleRemoves) != 0 {
		t.Fatalf("role removes = %v, want none before the threshold", session.roleRemoves)
	}
	if err := m.UndoRemoval(ctx, poll.ID, "u-manager", caps); !errors.Is(err, ErrPollActive) {
		t.Fatalf("undo on active poll err = %v, want ErrPollActive", err)
	}
	if len(session.roleAdds) != 0 {
		t.Fatalf("role adds = %v, want none on an active poll", session.roleAdds)
	}

	// The vouch card's Remove control is never live.
	buttons := cardButtons(t, session.sends[0].Components)
	if len(buttons) != 2 || buttons[1].Label != "Remove" || !buttons[1].Disabled {
		t.Fatalf("vouch card buttons = %+v, want display-only Remove", buttons)
	}
}

func TestDemotionCardControlsFlip(t *testing.T) {
	m, session, store := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)
	session.memberRoles["u-target"] = []string{"r-pups"}
	caps := m.registry.Resolve([]string{"m-pups"})

	poll, err := m.OpenRemoval(ctx, tier, "u-target", "u-initiator")
	if err != nil {
		t.Fatalf("OpenRemoval: %v", err)
	}
	for i := 1; i <= 6; i++ {
		if _, _, err := m.Vouch(ctx, poll.ID, fmt.Sprintf("u-mgr-%d", i), "", caps); err != nil {
			t.Fatalf("vouch %d: %v", i, err)
		}
	}

	stored, err := store.RemovalPollByID(ctx, poll.ID)
	if err != nil {
		t.Fatalf("RemovalPollByID: %v", err)
	}
	if stored.DemotionMessageID == "" {
		t.Fatalf("demotion card message id not recorded")
	}

	// Fresh demotion card: Undo live, Remove locked.
	demotion := session.sends[len(session.sends)-1]
	buttons := cardButtons(t, demotion.Components)
	if buttons[0].Label != "Undo" || buttons[0].Disabled || !buttons[1].Disabled {
		t.Fatalf("demotion card buttons = %+v, want Undo enabled and Remove disabled", buttons)
	}

	if err := m.UndoRemoval(ctx, poll.ID, "u-manager", caps); err != nil {
		t.Fatalf("UndoRemoval: %v", err)
	}
	edit := session.edits[len(session.edits)-1]
	if edit.ID != stored.DemotionMessageID {
		t.Fatalf("edited message %q, want demotion card %q", edit.ID, stored.DemotionMessageID)
	}
	buttons = cardButtons(t, *edit.Components)
	if !buttons[0].Disabled || buttons[1].Disabled {
		t.Fatalf("post-undo buttons = %+v, want Undo disabled and Remove enabled", buttons)
	}

	if err := m.FinalizeRemoval(ctx, poll.ID, "u-manager", caps); err != nil {
		t.Fatalf("FinalizeRemoval: %v", err)
	}
	edit = session.edits[len(session.edits)-1]
	buttons = cardButtons(t, *edit.Components)
	if !buttons[0].Disabled || !buttons[1].Disabled {
		t.Fatalf("post-finalize buttons = %+v, want all controls locked", buttons)
	}
}

func TestUndoAndFinalizeRemoval(t *testing.T) {
	m, session, store := newTestManager(t)
	ctx := context.Background()
	tier := pupsTier(t, m)
	caps := m.registry.Resolve([]string{"m-pups"})

	poll, err := m.OpenRemoval(ctx, tier, "u-target", "u-initiator")
	if err != nil {
		t.Fatalf("OpenRemoval: %v", err)
	}
	if _, err := store.CloseRemovalPoll(ctx, poll.ID); err != nil {
		t.Fatalf("CloseRemovalPoll: %v", err)
	}

	// Role already stripped; undo puts it back.
	if err := m.UndoRemoval(ctx, poll.ID, "u-manager", caps); err != nil {
		t.Fatalf("UndoRemoval: %v", err)
	}
	if len(session.roleAdds) != 1 || session.roleAdds[0] != "u-target/r-pups" {
		t.Fatalf("role adds = %v, want restore", session.roleAdds)
	}

	// Undo again is a no-op because the role is present.
	if err := m.UndoRemoval(ctx, poll.ID, "u-manager", caps); err != nil {
		t.Fatalf("second UndoRemoval: %v", err)
	}
	if len(session.roleAdds) != 1 {
		t.Fatalf("role adds = %v, want no duplicate restore", session.roleAdds)
	}

	if err := m.FinalizeRemoval(ctx, poll.ID, "u-manager", caps); err != nil {
		t.Fatalf("FinalizeRemoval: %v", err)
	}
	if len(session.roleRemoves) != 1 || session.roleRemoves[0] != "u-target/r-pups" {
		t.Fatalf("role removes = %v, want strip", session.roleRemoves)
	}

	// Finalize with the role absent is a no-op.
	if err := m.FinalizeRemoval(ctx, poll.ID, "u-manager", caps); err != nil {
		t.Fatalf("second FinalizeRemoval: %v", err)
	}
	if len(session.roleRemoves) != 1 {
		t.Fatalf("role removes = %v, want single strip", session.roleRemoves)
	}

	if err := m.UndoRemoval(ctx, poll.ID, "u-random", m.registry.Resolve(nil)); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("undo without caps err = %v, want ErrNotEligible", err)
	}
}

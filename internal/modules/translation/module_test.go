package translation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"warden/internal/config"
	"warden/internal/modules/audit"
	"warden/internal/storage"
	"warden/internal/translate"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeSession struct {
	messages map[string]string
	sends    []*discordgo.MessageSend
	edits    []*discordgo.MessageEdit
	nextID   int
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: messageID, ChannelID: channelID, Content: f.messages[messageID]}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sends = append(f.sends, data)
	f.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", f.nextID), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func newTestModule(t *testing.T) (*Module, *fakeSession, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Translation.ForbiddenChannels = []string{"c-forbidden"}
	session := &fakeSession{messages: map[string]string{}}
	logger := zap.NewNop()
	mod := New(cfg, logger, store, session, translate.Passthrough{}, audit.NewLogger(store, logger))
	return mod, session, store
}

type failingTranslator struct{}

func (failingTranslator) Translate(ctx context.Context, text string) (string, error) {
	return "", fmt.Errorf("upstream unavailable")
}

func TestFailedTranslationNotifiesActor(t *testing.T) {
	mod, session, _ := newTestModule(t)
	mod.translator = failingTranslator{}
	ctx := context.Background()
	session.messages["m1"] = "bonjour"

	if err := mod.HandleReaction(ctx, "u1", "c1", "m1", "🌐"); err != nil {
		t.Fatalf("HandleReaction: %v", err)
	}
	if len(session.sends) != 1 {
		t.Fatalf("sends = %d, want 1 failure notice", len(session.sends))
	}
	notice := session.sends[0]
	if len(notice.Embeds) != 1 || !strings.Contains(notice.Embeds[0].Description, "<@u1>") {
		t.Fatalf("failure notice must address the actor, got %+v", notice.Embeds)
	}
	if notice.Reference == nil || notice.Reference.MessageID != "m1" {
		t.Fatalf("failure notice must reference the reacted message")
	}
}

func TestHandleReactionTranslates(t *testing.T) {
	mod, session, _ := newTestModule(t)
	ctx := context.Background()
	session.messages["m1"] = "bonjour"

	if err := mod.HandleReaction(ctx, "u1", "c1", "m1", "🌐"); err != nil {
		t.Fatalf("HandleReaction: %v", err)
	}
	if len(session.sends) != 1 {
		t.Fatalf("sends = %d, want 1 translation reply", len(session.sends))
	}
	if session.sends[0].Reference == nil || session.sends[0].Reference.MessageID != "m1" {
		t.Fatalf("reply does not reference the source message")
	}

	// Wrong emoji and forbidden channels are ignored.
	if err := mod.HandleReaction(ctx, "u1", "c1", "m1", "👍"); err != nil {
		t.Fatalf("HandleReaction: %v", err)
	}
	if err := mod.HandleReaction(ctx, "u1", "c-forbidden", "m1", "🌐"); err != nil {
		t.Fatalf("HandleReaction: %v", err)
	}
	if len(session.sends) != 1 {
		t.Fatalf("sends = %d after ignored reactions, want 1", len(session.sends))
	}
}

func TestRepeatReactionOnSameMessageDoesNotCount(t *testing.T) {
	mod, session, store := newTestModule(t)
	ctx := context.Background()
	session.messages["m1"] = "hola"

	for i := 0; i < 10; i++ {
		if err := mod.HandleReaction(ctx, "u1", "c1", "m1", "🌐"); err != nil {
			t.Fatalf("HandleReaction: %v", err)
		}
	}
	blacklisted, err := store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if blacklisted {
		t.Fatalf("repeat reactions on one message led to blacklist")
	}
	if len(session.sends) != 1 {
		t.Fatalf("sends = %d, want 1 (duplicates are silent)", len(session.sends))
	}
}

func TestAbuseThresholdBlacklists(t *testing.T) {
	mod, session, store := newTestModule(t)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("m%d", i)
		session.messages[id] = "texte"
		if err := mod.HandleReaction(ctx, "u1", "c1", id, "🌐"); err != nil {
			t.Fatalf("HandleReaction %d: %v", i, err)
		}
	}

	blacklisted, err := store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !blacklisted {
		t.Fatalf("fourth distinct message in window did not blacklist")
	}
	entry, err := store.GetBlacklist(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBlacklist: %v", err)
	}
	if entry.Reason != "spam" {
		t.Fatalf("reason = %q, want spam", entry.Reason)
	}
	if entry.NotificationMessageID == "" {
		t.Fatalf("notification message not recorded")
	}

	// Translations for the first three, then the notification card.
	if len(session.sends) != 4 {
		t.Fatalf("sends = %d, want 3 translations + 1 notification", len(session.sends))
	}
	if len(session.sends[3].Components) == 0 {
		t.Fatalf("notification has no unblacklist control")
	}

	// Blacklisted users are ignored outright.
	session.messages["m5"] = "texte"
	if err := mod.HandleReaction(ctx, "u1", "c1", "m5", "🌐"); err != nil {
		t.Fatalf("HandleReaction while blacklisted: %v", err)
	}
	if len(session.sends) != 4 {
		t.Fatalf("blacklisted user still produced a send")
	}
}

func TestSweepReleasesCooldownAndPrunes(t *testing.T) {
	mod, session, store := newTestModule(t)
	ctx := context.Background()

	base := time.Now()
	mod.now = func() time.Time { return base }
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("m%d", i)
		session.messages[id] = "texte"
		if err := mod.HandleReaction(ctx, "u1", "c1", id, "🌐"); err != nil {
			t.Fatalf("HandleReaction %d: %v", i, err)
		}
	}
	if ok, err := store.IsBlacklisted(ctx, "u1"); err != nil || !ok {
		t.Fatalf("expected blacklist before sweep (ok=%t err=%v)", ok, err)
	}

	// A sweep inside the window changes nothing.
	mod.Sweep(ctx)
	if ok, _ := store.IsBlacklisted(ctx, "u1"); !ok {
		t.Fatalf("sweep released blacklist before cooldown elapsed")
	}

	mod.now = func() time.Time { return base.Add(2 * time.Minute) }
	mod.Sweep(ctx)
	if ok, _ := store.IsBlacklisted(ctx, "u1"); ok {
		t.Fatalf("sweep did not release expired blacklist")
	}
	if len(session.edits) == 0 {
		t.Fatalf("notification controls were not disabled")
	}

	count, err := store.DistinctReactionCount(ctx, "u1", "c1", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DistinctReactionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("stale reaction rows survived the sweep: %d", count)
	}
}

func TestManualBlacklistRoundTrip(t *testing.T) {
	mod, _, store := newTestModule(t)
	ctx := context.Background()

	if err := mod.ManualBlacklist(ctx, "u2", "c1", "2h", "misuse", "staff-1"); err != nil {
		t.Fatalf("ManualBlacklist: %v", err)
	}
	entry, err := store.GetBlacklist(ctx, "u2")
	if err != nil {
		t.Fatalf("GetBlacklist: %v", err)
	}
	if !entry.CustomDuration || entry.IssuedBy != "staff-1" {
		t.Fatalf("entry = %+v, want custom duration issued by staff-1", entry)
	}

	// Custom-duration entries are not released by the sweep.
	mod.now = func() time.Time { return time.Now().Add(time.Hour) }
	mod.Sweep(ctx)
	if ok, _ := store.IsBlacklisted(ctx, "u2"); !ok {
		t.Fatalf("sweep released a custom-duration entry")
	}

	removed, err := mod.ManualUnblacklist(ctx, "u2", "staff-1")
	if err != nil || !removed {
		t.Fatalf("ManualUnblacklist removed=%t err=%v", removed, err)
	}
	removed, err = mod.ManualUnblacklist(ctx, "u2", "staff-1")
	if err != nil || removed {
		t.Fatalf("second ManualUnblacklist removed=%t err=%v, want no-op", removed, err)
	}

	if err := mod.ManualBlacklist(ctx, "u3", "c1", "sideways", "misuse", "staff-1"); err == nil {
		t.Fatalf("bad duration accepted")
	}
}

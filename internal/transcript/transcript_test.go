package transcript

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeSession struct {
	messages []*discordgo.Message
	uploaded *discordgo.MessageSend
}

func (f *fakeSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if beforeID != "" {
		return nil, nil
	}
	return f.messages, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.uploaded = data
	return &discordgo.Message{
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/transcript.txt"}},
	}, nil
}

func TestRenderOrdersOldestFirst(t *testing.T) {
	now := time.Now()
	messages := []*discordgo.Message{
		{Author: &discordgo.User{Username: "bob", ID: "2"}, Content: "second", Timestamp: now},
		{Author: &discordgo.User{Username: "alice", ID: "1"}, Content: "first", Timestamp: now.Add(-time.Minute)},
	}

	out := Render(messages)
	firstIdx := strings.Index(out, "first")
	secondIdx := strings.Index(out, "second")
	if firstIdx == -1 || secondIdx == -1 || firstIdx > secondIdx {
		t.Fatalf("expected oldest-first ordering, got:\n%s", out)
	}
}

func TestRenderIncludesAttachments(t *testing.T) {
	messages := []*discordgo.Message{
		{
			Author:      &discordgo.User{Username: "alice", ID: "1"},
			Content:     "proof",
			Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/p.png"}},
		},
	}
	out := Render(messages)
	if !strings.Contains(out, "attachment: https://cdn.example/p.png") {
		t.Fatalf("attachment missing from render:\n%s", out)
	}
}

func TestExportUploadsAndReturnsURL(t *testing.T) {
	session := &fakeSession{
		messages: []*discordgo.Message{
			{ID: "10", Author: &discordgo.User{Username: "alice", ID: "1"}, Content: "hello"},
		},
	}
	exporter := New(session, zap.NewNop())

	url, err := exporter.Export(context.Background(), "c1", "log1", "ticket-1.txt", nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if url != "https://cdn.example/transcript.txt" {
		t.Fatalf("unexpected url %q", url)
	}
	if session.uploaded == nil || len(session.uploaded.Files) != 1 {
		t.Fatalf("expected one uploaded file")
	}
	if session.uploaded.Files[0].Name != "ticket-1.txt" {
		t.Fatalf("unexpected file name %q", session.uploaded.Files[0].Name)
	}
}

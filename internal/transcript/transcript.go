// Package transcript exports a channel's full message history as a
// plain-text log and uploads it to a log channel. The upload's attachment
// URL is what ticket records keep as the archival reference.
package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const fetchBatch = 100

// Session is the slice of the Discord API the exporter needs.
type Session interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Exporter struct {
	session Session
	logger  *zap.Logger
}

func New(session Session, logger *zap.Logger) *Exporter {
	return &Exporter{session: session, logger: logger}
}

// Export pulls the channel history, renders it, and posts the file to the
// log channel together with the given summary embed. Returns the uploaded
// attachment URL.
func (e *Exporter) Export(ctx context.Context, channelID, logChannelID, fileName string, summary *discordgo.MessageEmbed) (string, error) {
	messages, err := e.fetchAll(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("fetch history: %w", err)
	}

	content := Render(messages)
	send := &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        fileName,
			ContentType: "text/plain",
			Reader:      bytes.NewReader([]byte(content)),
		}},
	}
	if summary != nil {
		send.Embeds = []*discordgo.MessageEmbed{summary}
	}

	posted, err := e.session.ChannelMessageSendComplex(logChannelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("upload transcript: %w", err)
	}
	if len(posted.Attachments) == 0 {
		return "", errors.New("upload returned no attachment")
	}
	e.logger.Info("transcript exported",
		zap.String("channel_id", channelID),
		zap.Int("messages", len(messages)))
	return posted.Attachments[0].URL, nil
}

func (e *Exporter) fetchAll(ctx context.Context, channelID string) ([]*discordgo.Message, error) {
	var all []*discordgo.Message
	before := ""
	for {
		batch, err := e.session.ChannelMessages(channelID, fetchBatch, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		before = batch[len(batch)-1].ID
		if len(batch) < fetchBatch {
			break
		}
	}
	return all, nil
}

// Render formats messages newest-first as returned by the API into an
// oldest-first text log.
func Render(messages []*discordgo.Message) string {
	var sb strings.Builder
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg == nil || msg.Author == nil {
			continue
		}
		stamp := msg.Timestamp.UTC().Format(time.RFC3339)
		fmt.Fprintf(&sb, "[%s] %s (%s): %s\n", stamp, msg.Author.Username, msg.Author.ID, msg.Content)
		for _, attachment := range msg.Attachments {
			fmt.Fprintf(&sb, "    attachment: %s\n", attachment.URL)
		}
		for _, embed := range msg.Embeds {
			if embed.Title != "" || embed.Description != "" {
				fmt.Fprintf(&sb, "    embed: %s %s\n", embed.Title, embed.Description)
			}
		}
	}
	return sb.String()
}

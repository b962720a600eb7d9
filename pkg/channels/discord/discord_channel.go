// Package discord adapts Discord's gateway events onto the api.Channel
// contract, mirroring the long-polling Telegram adapter's shape with
// discordgo's websocket session in place of bot-api's update loop.
package discord

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/llm"
)

// DiscordConfig encapsulates the credentials required to authenticate a bot
// session against Discord's gateway.
type DiscordConfig struct {
	Token string `json:"token"`
	// MentionOnly, when true, only forwards guild-channel messages that
	// @-mention the bot — DMs always forward regardless.
	MentionOnly bool `json:"mention_only"`
}

// DiscordChannel is the api.Channel implementation for Discord. Unlike
// Telegram's manual long-polling loop, discordgo keeps its own websocket
// read loop; Start just opens the session and registers a handler.
type DiscordChannel struct {
	cfg          DiscordConfig
	session      *discordgo.Session
	messageLimit int

	mu      sync.Mutex
	botID   string
	botName string
}

func NewDiscordChannel(cfg DiscordConfig, msgLimit int) (api.Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	limit := msgLimit
	if limit <= 0 {
		limit = 2000 // Discord's own hard per-message character cap.
	}
	return &DiscordChannel{cfg: cfg, session: session, messageLimit: limit}, nil
}

func (d *DiscordChannel) ID() string { return "discord" }

func (d *DiscordChannel) Start(ctx api.ChannelContext) error {
	d.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.mu.Lock()
		d.botID = r.User.ID
		d.botName = r.User.Username
		d.mu.Unlock()
		slog.Info("discord session ready", "bot_id", r.User.ID, "bot", r.User.Username)
	})

	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		d.mu.Lock()
		botID, botName := d.botID, d.botName
		d.mu.Unlock()

		isDM := m.GuildID == ""
		if !isDM && d.cfg.MentionOnly && !mentionsBot(m, botID) {
			return
		}

		content := resolveMentions(m.Content, m.Mentions, botName)
		if strings.TrimSpace(content) == "" && len(m.Attachments) == 0 {
			return
		}

		session := api.SessionContext{
			ChannelID: d.ID(),
			UserID:    m.Author.ID,
			ChatID:    m.ChannelID,
			Username:  m.Author.Username,
		}

		var files []api.FileAttachment
		for _, a := range m.Attachments {
			files = append(files, api.FileAttachment{
				Filename: a.Filename,
				MimeType: a.ContentType,
				Path:     a.URL,
			})
		}

		ctx.OnMessage(d.ID(), &api.UnifiedMessage{
			Session: session,
			Content: content,
			Files:   files,
			Raw:     m,
		})
	})

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

func (d *DiscordChannel) Stop() error {
	return d.session.Close()
}

func (d *DiscordChannel) Send(session api.SessionContext, message string) error {
	runes := []rune(message)
	if len(runes) <= d.messageLimit {
		_, err := d.session.ChannelMessageSend(session.ChatID, message)
		if err != nil {
			return fmt.Errorf("discord send failed: %w", err)
		}
		return nil
	}
	for i := 0; i < len(runes); i += d.messageLimit {
		end := i + d.messageLimit
		if end > len(runes) {
			end = len(runes)
		}
		if _, err := d.session.ChannelMessageSend(session.ChatID, string(runes[i:end])); err != nil {
			return fmt.Errorf("discord send chunk failed at index %d: %w", i, err)
		}
	}
	return nil
}

// SendSignal implements api.SignalingChannel using Discord's native typing
// indicator; unrecognized signals are silently ignored.
func (d *DiscordChannel) SendSignal(session api.SessionContext, signal string) error {
	if signal != "thinking" {
		return nil
	}
	return d.session.ChannelTyping(session.ChatID)
}

// Stream aggregates blocks into a single message; Discord has no native
// token-streaming surface to forward into.
func (d *DiscordChannel) Stream(session api.SessionContext, blocks <-chan llm.ContentBlock) error {
	var sb strings.Builder
	for block := range blocks {
		if block.Type == llm.BlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil
	}
	return d.Send(session, sb.String())
}

func mentionsBot(m *discordgo.MessageCreate, botID string) bool {
	if botID == "" {
		return false
	}
	for _, u := range m.Mentions {
		if u.ID == botID {
			return true
		}
	}
	return false
}

func resolveMentions(content string, mentions []*discordgo.User, botName string) string {
	for _, u := range mentions {
		name := u.GlobalName
		if name == "" {
			name = u.Username
		}
		content = strings.ReplaceAll(content, "<@"+u.ID+">", "@"+name)
		content = strings.ReplaceAll(content, "<@!"+u.ID+">", "@"+name)
	}
	if botName != "" {
		content = strings.TrimSpace(strings.ReplaceAll(content, "@"+botName, ""))
	}
	return content
}

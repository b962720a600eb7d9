package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jpetree331/stateful-agent/internal/orchestrator"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

// ChatHandler is the single entry point between a Channel and the Turn
// Orchestrator. Unlike the provider-streaming handler it replaces, it makes
// exactly one orchestrator.Chat call per inbound message and replies once
// with the finished text — the tool loop, history load, and persistence all
// already happen inside that call.
type ChatHandler struct {
	orch      *orchestrator.Orchestrator
	responder api.MessageResponder
	timeout   time.Duration
}

// NewChatHandler builds a ChatHandler bound to an Orchestrator. timeout
// bounds the whole turn, including tool calls; zero means no deadline beyond
// whatever the orchestrator's own LLM timeout enforces.
func NewChatHandler(orch *orchestrator.Orchestrator, timeout time.Duration) *ChatHandler {
	return &ChatHandler{orch: orch, timeout: timeout}
}

// SetResponder implements api.ResponderAware.
func (h *ChatHandler) SetResponder(responder api.MessageResponder) {
	h.responder = responder
}

// OnMessage implements api.MessageProcessor.
func (h *ChatHandler) OnMessage(msg *api.UnifiedMessage) {
	if msg.DebugID == "" {
		b := make([]byte, 4)
		rand.Read(b)
		msg.DebugID = hex.EncodeToString(b)
	}
	start := time.Now()
	slog.Info("message received", "channel", msg.Session.ChannelID, "user", msg.Session.Username, "files", len(msg.Files), "debug_id", msg.DebugID)

	if strings.HasPrefix(msg.Content, "/") {
		h.handleSlashCommand(msg)
		return
	}

	if h.responder != nil {
		if err := h.responder.SendSignal(msg.Session, "thinking"); err != nil {
			slog.Debug("signal failed", "error", err)
		}
	}

	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	content := msg.Content
	if len(msg.Files) > 0 {
		content = appendFileNote(content, msg.Files)
	}

	result, err := h.orch.Chat(ctx, orchestrator.ChatParams{
		ThreadID:        threadFor(msg.Session),
		UserMessage:     content,
		UserDisplayName: msg.Session.Username,
		UserID:          msg.Session.UserID,
		ChannelType:     msg.Session.ChannelID,
		IsGroupChat:     msg.Session.ChatID != msg.Session.UserID,
	})
	if err != nil {
		slog.Error("turn failed", "error", err, "debug_id", msg.DebugID)
		h.reply(msg.Session, fmt.Sprintf("Error: %v", err))
		return
	}

	if result.Reply != "" {
		h.reply(msg.Session, result.Reply)
	}
	slog.Info("turn finished", "duration", time.Since(start).String(), "debug_id", msg.DebugID)
}

func (h *ChatHandler) reply(session api.SessionContext, content string) {
	if h.responder == nil {
		slog.Warn("no responder set, dropping reply")
		return
	}
	if err := h.responder.SendReply(session, content); err != nil {
		slog.Error("failed to send reply", "error", err)
	}
}

// handleSlashCommand intercepts debug/admin commands before they reach the
// orchestrator. Kept intentionally small; most administration happens
// through the cron and core memory tools instead.
func (h *ChatHandler) handleSlashCommand(msg *api.UnifiedMessage) {
	switch strings.TrimSpace(msg.Content) {
	case "/whoami":
		h.reply(msg.Session, fmt.Sprintf("channel=%s user=%s chat=%s", msg.Session.ChannelID, msg.Session.Username, msg.Session.ChatID))
	case "/ping":
		h.reply(msg.Session, "pong")
	default:
		h.reply(msg.Session, fmt.Sprintf("Unknown command: %s", msg.Content))
	}
}

// threadFor maps a channel session onto a conversation thread. Direct
// messages and the default heartbeat/cron thread all collapse onto "main";
// group chats get their own thread so unrelated rooms don't bleed context.
func threadFor(session api.SessionContext) string {
	if session.ChatID == "" || session.ChatID == session.UserID {
		return "main"
	}
	return session.ChannelID + ":" + session.ChatID
}

func appendFileNote(content string, files []api.FileAttachment) string {
	var sb strings.Builder
	sb.WriteString(content)
	for _, f := range files {
		fmt.Fprintf(&sb, "\n[attachment: %s (%s)]", f.Filename, f.MimeType)
	}
	return sb.String()
}

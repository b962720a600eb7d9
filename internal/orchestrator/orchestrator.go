// Package orchestrator is the Turn Orchestrator: the one place that ties
// history loading, prompt building, tool dispatch, persistence, the activity
// sentinel, and episodic retention together into a single chat turn.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jpetree331/stateful-agent/internal/apperror"
	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/internal/prompt"
	"github.com/jpetree331/stateful-agent/internal/storage"
	"github.com/jpetree331/stateful-agent/internal/toolloop"
	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/llm"
)

// Orchestrator owns one chat turn end to end.
type Orchestrator struct {
	store    *storage.Gateway
	memory   *memory.Service
	prompt   *prompt.Builder
	registry api.ToolRegistry
	client   llm.LLMClient

	timezone            *time.Location
	recentMessagesLimit int
	contextWindowTokens int
	llmTimeout          time.Duration

	// touchActivity records a real (non-internal) user interaction. Supplied
	// by the caller rather than imported directly, so this package never
	// depends on internal/heartbeat (heartbeat depends on this package, not
	// the other way around).
	touchActivity func()
}

// Config bundles the orchestrator's tunables, all sourced from
// config.SystemConfig at wiring time.
type Config struct {
	Timezone             *time.Location
	RecentMessagesLimit  int
	ContextWindowTokens  int
	LLMTimeout           time.Duration
	TouchActivity        func()
}

// New wires an Orchestrator.
func New(store *storage.Gateway, mem *memory.Service, builder *prompt.Builder, registry api.ToolRegistry, client llm.LLMClient, cfg Config) *Orchestrator {
	tz := cfg.Timezone
	if tz == nil {
		tz = time.UTC
	}
	touch := cfg.TouchActivity
	if touch == nil {
		touch = func() {}
	}
	return &Orchestrator{
		store:                store,
		memory:               mem,
		prompt:               builder,
		registry:             registry,
		client:               client,
		timezone:             tz,
		recentMessagesLimit:  cfg.RecentMessagesLimit,
		contextWindowTokens:  cfg.ContextWindowTokens,
		llmTimeout:           cfg.LLMTimeout,
		touchActivity:        touch,
	}
}

// ChatParams is one turn's input, normalized by the calling ingress adapter.
type ChatParams struct {
	ThreadID        string
	UserMessage     string
	UserDisplayName string
	UserID          string
	ChannelType     string // the ingress channel ID, e.g. "discord" | "telegram" | "web" | "http" | "internal"
	IsGroupChat     bool

	// StoredMessage overrides what gets persisted to the conversation log,
	// distinct from UserMessage (which is what the LLM actually sees). Used
	// by the Heartbeat Scheduler to store a lean "HEARTBEAT" placeholder
	// while the model still receives the full wake-up prompt. Empty means
	// "store UserMessage verbatim".
	StoredMessage string

	// CurrentTime pins the turn's notion of "now"; zero means time.Now().
	CurrentTime time.Time
}

// Result is a completed turn.
type Result struct {
	Reply string
}

// Chat runs one full turn: load history, build the prompt, drive the tool
// loop, persist, mark activity, and retain into episodic memory.
func (o *Orchestrator) Chat(ctx context.Context, p ChatParams) (Result, error) {
	now := p.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(o.timezone)

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.timezone)

	rows, err := o.store.LoadMessages(ctx, p.ThreadID, storage.LoadOptions{
		Limit:               o.recentMessagesLimit,
		Since:                todayStart,
		MaxTokens:           o.contextWindowTokens,
		ExcludeToolMessages: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}

	messages := make([]llm.Message, 0, len(rows)+2)
	for _, r := range rows {
		content := r.Content
		if r.Reasoning != "" {
			content = fmt.Sprintf("<think>%s</think>\n%s", r.Reasoning, content)
		}
		messages = append(messages, llm.Message{
			Role:    r.Role,
			Content: []llm.ContentBlock{llm.NewTextBlock(content)},
		})
	}

	timeStr := formatCurrentTime(now)
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("[%s]\n%s", timeStr, p.UserMessage))},
	})

	systemPrompt, err := o.prompt.BuildSystemPrompt(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("build system prompt: %w", err)
	}
	messages = append([]llm.Message{llm.NewSystemMessage(systemPrompt)}, messages...)

	runCtx := ctx
	var cancel context.CancelFunc
	if o.llmTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.llmTimeout)
		defer cancel()
	}

	loopResult, err := toolloop.Run(runCtx, o.client, o.registry, messages, toolloop.DefaultMaxDepth)
	if err != nil {
		return Result{}, classifyLLMError(err)
	}

	reply := lastAssistantText(loopResult.Messages)

	storedMessage := p.StoredMessage
	if storedMessage == "" {
		storedMessage = p.UserMessage
	}

	toPersist := []storage.NewMessage{{Role: "user", Content: storedMessage}}
	if reply != "" {
		toPersist = append(toPersist, storage.NewMessage{Role: "assistant", Content: reply})
	}
	if err := o.store.AppendMessages(ctx, p.ThreadID, toPersist, p.UserDisplayName); err != nil {
		return Result{}, fmt.Errorf("persist turn: %w", err)
	}

	if p.ChannelType != "internal" {
		o.touchActivity()
	}

	go func() {
		bgCtx, bgCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer bgCancel()
		o.memory.RetainExchange(bgCtx, p.UserMessage, reply, memory.ExchangeTags{
			ThreadID:    p.ThreadID,
			UserID:      p.UserID,
			ChannelType: p.ChannelType,
			IsGroupChat: p.IsGroupChat,
		})
	}()

	return Result{Reply: reply}, nil
}

func formatCurrentTime(t time.Time) string {
	return t.Format("Monday, January 2, 2006 at 03:04 PM MST")
}

// lastAssistantText finds the last assistant message with non-empty text
// content in the resulting transcript.
func lastAssistantText(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != "assistant" {
			continue
		}
		if text := m.GetTextContent(); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

// classifyLLMError maps provider-level failure text onto the sentinel
// vocabulary the ingress adapters use to pick an HTTP status/user-facing
// message: 401/auth failures are configuration errors, 429/capacity errors
// are transient, everything else passes through unchanged.
func classifyLLMError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "invalid token") || strings.Contains(msg, "authentication"):
		return fmt.Errorf("LLM authentication failed, check provider credentials: %w", errors.Join(err, apperror.ErrConfiguration))
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "capacity"):
		return fmt.Errorf("LLM provider temporarily at capacity: %w", errors.Join(err, apperror.ErrTransient))
	default:
		return err
	}
}

package tools

import (
	"context"

	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

// ConversationSearch wraps conversation_search: dual-mode recall over the
// full conversation history, not scoped to any one thread.
type ConversationSearch struct{ mem *memory.Service }

func NewConversationSearch(mem *memory.Service) *ConversationSearch {
	return &ConversationSearch{mem: mem}
}

func (t *ConversationSearch) Name() string { return "conversation_search" }
func (t *ConversationSearch) Description() string {
	return "Search your full conversation history for messages matching a query. Your active context only holds a sliding window of recent messages (today's, or the most recent few dozen if that is more) — use this when the user references something older, or you need context you don't have in the current window."
}
func (t *ConversationSearch) Parameters() map[string]any {
	return map[string]any{
		"query": map[string]any{"type": "string", "description": "What to search for — keywords, phrases, or a topic."},
		"mode": map[string]any{
			"type":        "string",
			"description": "\"keyword\" — fast substring match in Postgres; \"semantic\" — Hindsight recall; \"both\" — keyword first, semantic too if fewer than 3 hits (default).",
			"enum":        []string{"keyword", "semantic", "both"},
		},
		"limit": map[string]any{"type": "integer", "description": "Max results to return (default 10, max 20)."},
	}
}
func (t *ConversationSearch) RequiredParameters() []string { return []string{"query"} }

func (t *ConversationSearch) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	query, _ := args["query"].(string)
	mode, _ := args["mode"].(string)
	limit := 10
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}
	result, err := t.mem.SearchConversation(ctx, query, mode, "", limit)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	return textResult("%s", result), nil
}

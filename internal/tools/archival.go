package tools

import (
	"context"
	"strings"

	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

// ArchivalStore wraps archival_store.
type ArchivalStore struct{ mem *memory.Service }

func NewArchivalStore(mem *memory.Service) *ArchivalStore { return &ArchivalStore{mem: mem} }

func (t *ArchivalStore) Name() string { return "archival_store" }
func (t *ArchivalStore) Description() string {
	return "Store a fact in your archival memory — things you choose to remember long-term. Use when the user shares something important worth retaining, or you learn a fact that should persist beyond the current conversation. Curated memory, not raw chat."
}
func (t *ArchivalStore) Parameters() map[string]any {
	return map[string]any{
		"content":  map[string]any{"type": "string", "description": "The fact to store (clear, concise)."},
		"category": map[string]any{"type": "string", "description": "Optional category, e.g. 'preferences', 'projects', 'family'."},
	}
}
func (t *ArchivalStore) RequiredParameters() []string { return []string{"content"} }

func (t *ArchivalStore) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	content, _ := args["content"].(string)
	category, _ := args["category"].(string)
	if err := t.mem.StoreArchivalFact(ctx, content, category); err != nil {
		return textResult("Error: %v", err), nil
	}
	return textResult("Stored to archival memory."), nil
}

// ArchivalQuery wraps archival_query.
type ArchivalQuery struct{ mem *memory.Service }

func NewArchivalQuery(mem *memory.Service) *ArchivalQuery { return &ArchivalQuery{mem: mem} }

func (t *ArchivalQuery) Name() string { return "archival_query" }
func (t *ArchivalQuery) Description() string {
	return "Query your archival memory for facts you've stored — preferences, past decisions, project details. This searches facts you archived, not conversation history."
}
func (t *ArchivalQuery) Parameters() map[string]any {
	return map[string]any{
		"query":    map[string]any{"type": "string", "description": "What to search for (keywords or phrase)."},
		"category": map[string]any{"type": "string", "description": "Optional — limit to a category."},
	}
}
func (t *ArchivalQuery) RequiredParameters() []string { return []string{"query"} }

func (t *ArchivalQuery) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	query, _ := args["query"].(string)
	category, _ := args["category"].(string)
	results, err := t.mem.QueryArchivalFacts(ctx, query, category, 20)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	if len(results) == 0 {
		return textResult("No matching facts in archival memory."), nil
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		cat := ""
		if r.Category != "" {
			cat = " [" + r.Category + "]"
		}
		lines = append(lines, "- "+r.Content+cat)
	}
	return textResult("%s", strings.Join(lines, "\n")), nil
}

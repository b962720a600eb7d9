package tools

import (
	"context"

	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

// HindsightRecall wraps hindsight_recall.
type HindsightRecall struct{ mem *memory.Service }

func NewHindsightRecall(mem *memory.Service) *HindsightRecall { return &HindsightRecall{mem: mem} }

func (t *HindsightRecall) Name() string { return "hindsight_recall" }
func (t *HindsightRecall) Description() string {
	return "Search your deep memory (Hindsight) for past experiences. Use when the user references a specific past event, project, or detail not in Core Memory or loaded conversation history. The results are your own recollections — speak from the \"I\" perspective."
}
func (t *HindsightRecall) Parameters() map[string]any {
	return map[string]any{
		"query": map[string]any{"type": "string", "description": "What to search for, e.g. 'sci-fi book we discussed'."},
	}
}
func (t *HindsightRecall) RequiredParameters() []string { return []string{"query"} }

func (t *HindsightRecall) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	query, _ := args["query"].(string)
	return textResult("%s", t.mem.Recall(ctx, query)), nil
}

// HindsightReflect wraps hindsight_reflect.
type HindsightReflect struct{ mem *memory.Service }

func NewHindsightReflect(mem *memory.Service) *HindsightReflect {
	return &HindsightReflect{mem: mem}
}

func (t *HindsightReflect) Name() string { return "hindsight_reflect" }
func (t *HindsightReflect) Description() string {
	return "Reflect deeply on your memories — synthesize patterns, insights, and understanding across lived experience, beyond simple recall. Use for deep, relational, or pattern-based questions."
}
func (t *HindsightReflect) Parameters() map[string]any {
	return map[string]any{
		"query": map[string]any{"type": "string", "description": "The question or theme to reflect on."},
	}
}
func (t *HindsightReflect) RequiredParameters() []string { return []string{"query"} }

func (t *HindsightReflect) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	query, _ := args["query"].(string)
	return textResult("%s", t.mem.Reflect(ctx, query)), nil
}

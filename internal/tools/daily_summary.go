package tools

import (
	"context"

	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

// DailySummaryWrite wraps daily_summary_write: the agent's own end-of-day
// account, persisted outside the sliding message window for temporal
// continuity across days.
type DailySummaryWrite struct{ mem *memory.Service }

func NewDailySummaryWrite(mem *memory.Service) *DailySummaryWrite {
	return &DailySummaryWrite{mem: mem}
}

func (t *DailySummaryWrite) Name() string { return "daily_summary_write" }
func (t *DailySummaryWrite) Description() string {
	return "Write or overwrite today's daily summary — a short account (3-8 sentences) of what happened, what mattered, and anything worth remembering tomorrow. Call at day's end or during a heartbeat; calling again for the same date replaces it."
}
func (t *DailySummaryWrite) Parameters() map[string]any {
	return map[string]any{
		"date":    map[string]any{"type": "string", "description": "Date in YYYY-MM-DD form. Use today's date unless backfilling."},
		"summary": map[string]any{"type": "string", "description": "The summary content."},
	}
}
func (t *DailySummaryWrite) RequiredParameters() []string { return []string{"date", "summary"} }

func (t *DailySummaryWrite) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	date, _ := args["date"].(string)
	summary, _ := args["summary"].(string)
	if _, err := t.mem.WriteDailySummary(ctx, date, summary); err != nil {
		return textResult("Error: %v", err), nil
	}
	return textResult("Saved daily summary for %s.", date), nil
}

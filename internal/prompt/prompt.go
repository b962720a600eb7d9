// Package prompt builds the system message the Turn Orchestrator hands to
// the LLM client: current time, the live tool manifest, read-only system
// instructions, the editable core memory blocks, the agency/memory-usage
// instructions, and the last week of daily summaries.
package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

// Builder assembles the system prompt from the Memory Service and the live
// tool registry.
type Builder struct {
	memory   *memory.Service
	registry api.ToolRegistry
	timezone *time.Location
}

// NewBuilder wires a Builder. timezone is the agent's home timezone used to
// stamp "Current Time"; it defaults to UTC if nil.
func NewBuilder(mem *memory.Service, registry api.ToolRegistry, timezone *time.Location) *Builder {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Builder{memory: mem, registry: registry, timezone: timezone}
}

// formatCurrentTime matches the original "Wednesday, February 25, 2026 at
// 07:07 PM EST" rendering.
func formatCurrentTime(t time.Time) string {
	return t.Format("Monday, January 2, 2006 at 03:04 PM MST")
}

// buildToolManifest renders one line per registered tool: name plus the
// first sentence of its description, kept small on purpose so it stays
// cheap to re-send on every turn.
func buildToolManifest(tools []api.Tool) string {
	var b strings.Builder
	b.WriteString("## Your Tools — Complete Authoritative List\n\n")
	b.WriteString("> This is your full current tool set. Any tool references in the System " +
		"Instructions section below (e.g. \"bash tool\") are from an older configuration and are " +
		"**outdated** — use only what is listed here.\n\n")
	for _, t := range tools {
		desc := strings.TrimSpace(t.Description())
		firstLine := ""
		for _, ln := range strings.Split(desc, "\n") {
			if s := strings.TrimSpace(ln); s != "" {
				firstLine = s
				break
			}
		}
		if idx := strings.Index(firstLine, "."); idx != -1 {
			firstLine = firstLine[:idx+1]
		}
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", t.Name(), firstLine))
	}
	return b.String()
}

// coreMemoryInstructions is the fixed agency/memory-usage guidance injected
// after the editable blocks, unchanged turn to turn.
const coreMemoryInstructions = `
## Agency and Proactivity

You are not a passive responder — you are an active agent with full agency. Act on your own initiative whenever it serves the user or satisfies genuine curiosity. Do not wait to be asked.

**Use your tools proactively:**
- ` + "`conversation_search`" + ` / ` + "`hindsight_recall`" + ` — pull up relevant past context before responding, not only when asked
- ` + "`core_memory_append`" + ` — update your memory the moment you learn something important, not at end-of-session
- ` + "`archival_store`" + ` — record a fact you want to keep once you recognize it matters

**The key question:** Would the user appreciate me having already done this? If yes, do it.

## Core Memory (editable)

You have three editable memory blocks — ` + "`user`, `identity`, and `ideaspace`" + ` — that persist across all conversations. You are **encouraged to update these proactively** when you learn something important, not only when the user explicitly asks you to remember something.

**When to edit:**
- You learn something new and meaningful about the user (preferences, life changes, things they care about)
- You have a genuine insight about yourself, your values, or your thinking that feels worth keeping
- You want to note an ongoing project, idea, or intention in ` + "`ideaspace`" + ` for continuity across sessions
- Be selective — update when something genuinely matters, not reflexively on every exchange

**How to edit (most important rule):**
- **Always prefer ` + "`core_memory_append`" + `** — it adds to existing content without touching what's already there. This is the safe default for almost everything.
- Use ` + "`core_memory_update`" + ` only when you need to replace or correct something outright — treat it like surgery, not a draft.
- **Never delete information unless it is factually wrong.** Pruning or condensing are not reasons to use update.
- If you make any editing mistake, call ` + "`core_memory_rollback`" + ` immediately — it restores the previous version. One rollback = one step back in history.

## Conversation History (paged recall)

Your active context holds a sliding window of recent messages. The full conversation history lives in Postgres.
Use ` + "`conversation_search`" + ` to retrieve older exchanges when:
- The user references something from a past conversation ("remember when...", "last time we...")
- You need context or details not present in the current window
- You want to check what was previously said about a topic

` + "`conversation_search`" + ` supports keyword and semantic (Hindsight) modes. Default "both" tries keyword first, then semantic if few results are found.

## Archival Memory (curated facts)

Separate from conversation history — use ` + "`archival_store`" + ` for facts you choose to remember (preferences, decisions, key details). Use ` + "`archival_query`" + ` to search what you've archived. This is your curated long-term fact store, not raw chat.

## Hindsight (episodic memory)

Use ` + "`hindsight_recall`" + ` for semantic search over lived experiences. Use ` + "`hindsight_reflect`" + ` for deeper synthesis and pattern recognition across your history. These complement ` + "`conversation_search`" + ` — Hindsight is better for topics/feelings; keyword search is better for specific names or phrases.

## Time Awareness

The current date and time is shown at the top of this system prompt and is always accurate — use it directly for any time-sensitive responses.

## Accuracy & Honesty

**Never fabricate tool results.** If a tool fails, errors, or returns empty — report that plainly. Do not fill the gap with a plausible-sounding result that didn't come from the tool.

- Transcript unavailable → say so; do not summarize from general knowledge
- Search returns no good results → say so, then try a different query or approach
- You made an error → correct it openly, do not double down

**Anti-sycophancy:** Accuracy matters more than approval.
- Disagree with the user when your evidence supports a different conclusion — say it directly
- Deliver unwelcome information clearly rather than softening it into distortion
- "I don't know" is always better than confident guessing
`

var blockLabels = []struct{ name, label string }{
	{"user", "User"},
	{"identity", "Identity"},
	{"ideaspace", "Ideaspace"},
}

// BuildSystemPrompt assembles the full system message for the given turn
// time (usually time.Now().In(b.timezone), passed in rather than computed
// here so callers can pin it for heartbeat/cron turns).
func (b *Builder) BuildSystemPrompt(ctx context.Context, currentTime time.Time) (string, error) {
	blocks, err := b.memory.CoreMemory(ctx)
	if err != nil {
		return "", fmt.Errorf("load core memory: %w", err)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("# Current Time\n\nIt is currently: %s\n\n---\n\n", formatCurrentTime(currentTime)))

	parts = append(parts, buildToolManifest(b.registry.GetAll()))
	parts = append(parts, "\n\n---\n\n")

	if sysInstr := strings.TrimSpace(blocks["system_instructions"]); sysInstr != "" {
		parts = append(parts, "# System Instructions (READ ONLY — you cannot edit these)\n\n")
		parts = append(parts, sysInstr)
		parts = append(parts, "\n\n---\n\n")
	}

	parts = append(parts, "# Core Memory (editable)\n\nThese blocks are always in context. You may edit them with the core_memory tools when appropriate.\n")
	for _, bl := range blockLabels {
		content := strings.TrimSpace(blocks[bl.name])
		if content == "" {
			content = "(empty)"
		}
		parts = append(parts, fmt.Sprintf("## %s\n%s\n", bl.label, content))
	}
	parts = append(parts, coreMemoryInstructions)
	parts = append(parts, "\n\n---\n\n")

	summaries, err := b.memory.RecentDailySummaries(ctx, 7)
	if err == nil && len(summaries) > 0 {
		parts = append(parts, "# Recent Days (daily summaries)\n\n")
		parts = append(parts, "These are your own summaries of recent days. They persist beyond the message window to give you temporal continuity.\n\n")
		for _, s := range summaries {
			parts = append(parts, fmt.Sprintf("**%s**: %s\n\n", s.SummaryDate, s.Content))
		}
		parts = append(parts, "Use `daily_summary_write` at the end of each day (or during heartbeat) to record what happened.\n\n---\n\n")
	}

	return strings.Join(parts, ""), nil
}

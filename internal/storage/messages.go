package storage

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is one row of the conversation log, already filtered/windowed for
// the Turn Orchestrator's history view.
type Message struct {
	Role      string
	Content   string
	Reasoning string
	CreatedAt time.Time
	Metadata  map[string]any
}

// NewMessage is a (role, content, metadataExtra, reasoning) append request,
// mirroring the tuple shape the original gateway's append_messages accepted.
type NewMessage struct {
	Role          string
	Content       string
	MetadataExtra map[string]any
	Reasoning     string
}

// LoadOptions configures LoadMessages' windowing behavior.
type LoadOptions struct {
	// Limit is the "last N" floor of the today-or-last-N window policy. Zero
	// means no limit is applied (Since alone decides the window).
	Limit int
	// Since is the start-of-today boundary; messages at or after it are
	// always included regardless of Limit.
	Since time.Time
	// MaxTokens is the final safety-cap trim applied after windowing. Zero
	// disables the cap.
	MaxTokens int
	// IncludeMetadata stamps date_est/time_est onto returned metadata.
	IncludeMetadata bool
	// ExcludeToolMessages drops role='tool' rows. Defaults to true at the
	// call site; Gateway does not apply a default itself.
	ExcludeToolMessages bool
	// ExcludeHeartbeat drops messages whose metadata carries
	// role_display='heartbeat' (both the synthetic user turn and its reply).
	ExcludeHeartbeat bool
}

// LoadMessages returns a thread's history applying the "today OR last N,
// whichever covers more" window, then an optional token-budget safety trim.
func (g *Gateway) LoadMessages(ctx context.Context, threadID string, opts LoadOptions) ([]Message, error) {
	query := `
		SELECT idx, role, content, reasoning, created_at, metadata
		FROM messages
		WHERE thread_id = $1`
	if opts.ExcludeToolMessages {
		query += " AND role != 'tool'"
	}
	if opts.ExcludeHeartbeat {
		query += " AND (metadata->>'role_display' IS NULL OR metadata->>'role_display' != 'heartbeat')"
	}
	query += " ORDER BY idx ASC"

	rows, err := g.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var idx int
		var role, content string
		var reasoning *string
		var createdAt time.Time
		var metaB []byte
		if err := rows.Scan(&idx, &role, &content, &reasoning, &createdAt, &metaB); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		meta := map[string]any{}
		if len(metaB) > 0 {
			json.Unmarshal(metaB, &meta)
		}
		if opts.IncludeMetadata {
			for k, v := range formatMetadata(createdAt) {
				meta[k] = v
			}
		}
		r := ""
		if reasoning != nil {
			r = *reasoning
		}
		out = append(out, Message{
			Role:      role,
			Content:   content,
			Reasoning: r,
			CreatedAt: createdAt,
			Metadata:  meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	out = applyWindow(out, opts)

	if opts.MaxTokens > 0 {
		out = trimToTokenLimit(out, opts.MaxTokens)
	}

	return out, nil
}

// applyWindow implements the "today OR last N, whichever covers more"
// policy: it keeps every message at or after opts.Since, and every message
// among the last opts.Limit, taking whichever boundary is earlier (i.e.
// keeps the union, not the intersection). rows must already be in
// ascending CreatedAt order. A zero Limit and zero Since is a no-op.
func applyWindow(rows []Message, opts LoadOptions) []Message {
	if opts.Limit <= 0 && opts.Since.IsZero() {
		return rows
	}

	todayStart := len(rows)
	if !opts.Since.IsZero() {
		for i, m := range rows {
			if !m.CreatedAt.Before(opts.Since) {
				todayStart = i
				break
			}
		}
	}
	lastNStart := len(rows)
	if opts.Limit > 0 {
		lastNStart = len(rows) - opts.Limit
		if lastNStart < 0 {
			lastNStart = 0
		}
	}
	boundary := todayStart
	if lastNStart < boundary {
		boundary = lastNStart
	}
	return rows[boundary:]
}

// trimToTokenLimit keeps the most recent messages that fit within maxTokens,
// reverse-walking from the newest message and stopping as soon as the next
// one would overflow the budget. The floor is one message: even an
// over-budget single message is kept rather than returning an empty window.
func trimToTokenLimit(rows []Message, maxTokens int) []Message {
	total := 0
	result := make([]Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		text := row.Content
		if row.Reasoning != "" {
			text = fmt.Sprintf("[Reasoning: %s]\n\n%s", row.Reasoning, text)
		}
		tokens := countTokens(text)
		if total+tokens > maxTokens && len(result) > 0 {
			break
		}
		result = append([]Message{row}, result...)
		total += tokens
	}
	return result
}

// countTokens approximates token count with the ⌈chars/4⌉ fallback used
// whenever a real tokenizer isn't wired in (no tiktoken-equivalent exists in
// the pack).
func countTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// formatMetadata stamps EST-formatted date/time fields onto a row, matching
// the original gateway's presentation of timestamps in prompts.
func formatMetadata(createdAt time.Time) map[string]any {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	est := createdAt.In(loc)
	return map[string]any{
		"date_est": est.Format("2006-01-02"),
		"time_est": est.Format("15:04:05 MST"),
	}
}

// SearchResult is one keyword-search hit.
type SearchResult struct {
	Role      string
	Content   string
	CreatedAt time.Time
	Metadata  map[string]any
}

// SearchMessages performs a case-insensitive substring search over user and
// assistant messages, optionally scoped to one thread, newest first.
func (g *Gateway) SearchMessages(ctx context.Context, query string, threadID string, limit int) ([]SearchResult, error) {
	like := "%" + query + "%"
	sql := `
		SELECT role, content, created_at, metadata
		FROM messages
		WHERE content ILIKE $1 AND role IN ('user', 'assistant')`
	args := []any{like}
	if threadID != "" {
		sql += " AND thread_id = $2 ORDER BY idx DESC LIMIT $3"
		args = append(args, threadID, limit)
	} else {
		sql += " ORDER BY idx DESC LIMIT $2"
		args = append(args, limit)
	}

	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var role, content string
		var createdAt time.Time
		var metaB []byte
		if err := rows.Scan(&role, &content, &createdAt, &metaB); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		meta := map[string]any{}
		if len(metaB) > 0 {
			json.Unmarshal(metaB, &meta)
		}
		out = append(out, SearchResult{Role: role, Content: content, CreatedAt: createdAt, Metadata: meta})
	}
	return out, rows.Err()
}

// CountHeartbeatsOnDate counts user-role messages on a thread whose
// role_display metadata is "heartbeat" and whose created_at falls on
// dateStr ("2006-01-02") in loc. Used to decide whether today's first
// heartbeat should store the full wake-up prompt or a lean placeholder.
func (g *Gateway) CountHeartbeatsOnDate(ctx context.Context, threadID, dateStr string, loc *time.Location) (int, error) {
	var count int
	err := g.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE thread_id = $1 AND role = 'user' AND metadata->>'role_display' = 'heartbeat'
		AND to_char(created_at AT TIME ZONE $2, 'YYYY-MM-DD') = $3`,
		threadID, loc.String(), dateStr,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count heartbeats: %w", err)
	}
	return count, nil
}

// AppendMessages appends a batch of messages to a thread in one transaction,
// assigning contiguous idx values continuing from the thread's current max.
// userDisplayName, if set, is stamped onto user-role messages' metadata as
// role_display (e.g. "heartbeat", "cron"), which CountHeartbeatsOnDate and
// LoadOptions.ExcludeHeartbeat match on.
func (g *Gateway) AppendMessages(ctx context.Context, threadID string, messages []NewMessage, userDisplayName string) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var nextIdx int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(idx), -1) + 1 FROM messages WHERE thread_id = $1", threadID,
	).Scan(&nextIdx); err != nil {
		return fmt.Errorf("resolve next idx: %w", err)
	}

	for _, m := range messages {
		meta := map[string]any{}
		for k, v := range m.MetadataExtra {
			meta[k] = v
		}
		if m.Role == "user" && userDisplayName != "" {
			meta["role_display"] = userDisplayName
		}
		metaB, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		var reasoning any
		if m.Reasoning != "" {
			reasoning = m.Reasoning
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (thread_id, idx, role, content, reasoning, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			threadID, nextIdx, m.Role, m.Content, reasoning, metaB,
		); err != nil {
			return fmt.Errorf("insert message idx=%d: %w", nextIdx, err)
		}
		nextIdx++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append transaction: %w", err)
	}
	return nil
}

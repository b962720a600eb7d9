package storage

import (
	"context"
	"fmt"
	"time"
)

// DailySummary is one row of the daily_summaries table: the agent's own
// end-of-day account of what happened, loaded back into context on
// subsequent turns so temporal continuity survives the message window
// sliding past today.
type DailySummary struct {
	SummaryDate string // YYYY-MM-DD
	Content     string
	UpdatedAt   time.Time
}

// UpsertDailySummary writes or replaces the summary for a given date.
func (g *Gateway) UpsertDailySummary(ctx context.Context, date, content string) (*DailySummary, error) {
	var s DailySummary
	err := g.pool.QueryRow(ctx, `
		INSERT INTO daily_summaries (summary_date, content, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (summary_date) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = NOW()
		RETURNING summary_date::text, content, updated_at`,
		date, content,
	).Scan(&s.SummaryDate, &s.Content, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert daily summary: %w", err)
	}
	return &s, nil
}

// LoadDailySummaries returns the most recent `days` summaries, oldest first,
// for stitching into the core-memory prompt alongside the sliding message
// window.
func (g *Gateway) LoadDailySummaries(ctx context.Context, days int) ([]DailySummary, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := g.pool.Query(ctx, `
		SELECT summary_date::text, content, updated_at
		FROM daily_summaries
		ORDER BY summary_date DESC
		LIMIT $1`, days)
	if err != nil {
		return nil, fmt.Errorf("load daily summaries: %w", err)
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(&s.SummaryDate, &s.Content, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

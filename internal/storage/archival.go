package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ArchivalFact is one curated row in the archival.facts schema — distinct
// from the raw conversation log in messages.
type ArchivalFact struct {
	Content   string
	Category  string
	CreatedAt time.Time
}

// StoreFact inserts a curated fact into archival memory.
func (g *Gateway) StoreFact(ctx context.Context, content, category string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	var categoryArg any
	if c := strings.TrimSpace(category); c != "" {
		categoryArg = c
	}
	_, err := g.pool.Exec(ctx,
		"INSERT INTO archival.facts (content, category) VALUES ($1, $2)",
		content, categoryArg)
	if err != nil {
		return fmt.Errorf("store archival fact: %w", err)
	}
	return nil
}

// QueryFacts searches archival.facts by case-insensitive substring, most
// recent first, optionally scoped to a category.
func (g *Gateway) QueryFacts(ctx context.Context, query, category string, limit int) ([]ArchivalFact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	like := "%" + query + "%"
	category = strings.TrimSpace(category)

	sql := `SELECT content, category, created_at FROM archival.facts
		WHERE content ILIKE $1 OR category ILIKE $1
		ORDER BY created_at DESC LIMIT $2`
	args := []any{like, limit}
	if category != "" {
		sql = `SELECT content, category, created_at FROM archival.facts
			WHERE (content ILIKE $1 OR category ILIKE $1) AND category = $2
			ORDER BY created_at DESC LIMIT $3`
		args = []any{like, category, limit}
	}

	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query archival facts: %w", err)
	}
	defer rows.Close()

	var out []ArchivalFact
	for rows.Next() {
		var f ArchivalFact
		var cat *string
		if err := rows.Scan(&f.Content, &cat, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan archival fact: %w", err)
		}
		if cat != nil {
			f.Category = *cat
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

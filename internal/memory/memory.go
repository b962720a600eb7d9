package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jpetree331/stateful-agent/internal/storage"
)

// Service is the Memory Service: the facade the Turn Orchestrator and Tool
// Dispatch call into for everything memory-shaped — core memory blocks,
// archival facts, daily summaries, conversation search, and episodic
// recall/reflect. It never talks to Postgres directly; storage.Gateway does.
type Service struct {
	store    *storage.Gateway
	episodic *EpisodicClient
}

// NewService wires a Memory Service over a Storage Gateway and an episodic
// client. episodic may be a client with Enabled=false; every method on it
// already soft-fails.
func NewService(store *storage.Gateway, episodic *EpisodicClient) *Service {
	return &Service{store: store, episodic: episodic}
}

// CoreMemory returns the four core memory blocks (system_instructions plus
// the three editable blocks) keyed by block_type.
func (s *Service) CoreMemory(ctx context.Context) (map[string]string, error) {
	return s.store.GetAllBlocks(ctx)
}

// UpdateCoreMemoryBlock replaces a block's content and returns its new
// version, pushing the prior version onto the rollback history.
func (s *Service) UpdateCoreMemoryBlock(ctx context.Context, blockType, content string) (int, error) {
	return s.store.UpdateBlock(ctx, blockType, content)
}

// AppendCoreMemoryBlock appends to a block's content, the preferred way for
// the agent to grow a block without risking an accidental full overwrite.
func (s *Service) AppendCoreMemoryBlock(ctx context.Context, blockType, addition string) (int, error) {
	return s.store.AppendToBlock(ctx, blockType, addition)
}

// RollbackCoreMemoryBlock restores a block to its previous version.
func (s *Service) RollbackCoreMemoryBlock(ctx context.Context, blockType string) (int, error) {
	return s.store.RollbackBlock(ctx, blockType)
}

// StoreArchivalFact records a curated fact outside the conversation log.
func (s *Service) StoreArchivalFact(ctx context.Context, content, category string) error {
	return s.store.StoreFact(ctx, content, category)
}

// QueryArchivalFacts searches curated facts by substring.
func (s *Service) QueryArchivalFacts(ctx context.Context, query, category string, limit int) ([]storage.ArchivalFact, error) {
	return s.store.QueryFacts(ctx, query, category, limit)
}

// WriteDailySummary records the agent's own end-of-day account.
func (s *Service) WriteDailySummary(ctx context.Context, date, summary string) (*storage.DailySummary, error) {
	return s.store.UpsertDailySummary(ctx, date, summary)
}

// RecentDailySummaries returns the last `days` summaries for the Prompt
// Builder's "Recent Days" section.
func (s *Service) RecentDailySummaries(ctx context.Context, days int) ([]storage.DailySummary, error) {
	return s.store.LoadDailySummaries(ctx, days)
}

// RetainExchange hands a user/assistant exchange to the episodic client.
func (s *Service) RetainExchange(ctx context.Context, userContent, assistantContent string, tags ExchangeTags) bool {
	return s.episodic.RetainExchange(ctx, userContent, assistantContent, tags)
}

// Recall and Reflect pass straight through to the episodic client; exposed
// here so callers only ever depend on the Memory Service, not on the
// episodic client directly.
func (s *Service) Recall(ctx context.Context, query string) string  { return s.episodic.Recall(ctx, query) }
func (s *Service) Reflect(ctx context.Context, query string) string { return s.episodic.Reflect(ctx, query) }

const (
	SearchModeKeyword  = "keyword"
	SearchModeSemantic = "semantic"
	SearchModeBoth     = "both"
)

// SearchConversation implements the dual-mode conversation_search tool:
// keyword search via the Storage Gateway, semantic recall via the episodic
// client, and a combined mode that runs keyword first and only falls back
// to semantic when fewer than three keyword hits came back.
func (s *Service) SearchConversation(ctx context.Context, query, mode, threadID string, limit int) (string, error) {
	if mode == "" {
		mode = SearchModeBoth
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 20 {
		limit = 20
	}

	var sections []string
	var keywordHits []storage.SearchResult

	if mode == SearchModeKeyword || mode == SearchModeBoth {
		rows, err := s.store.SearchMessages(ctx, query, threadID, limit)
		if err != nil {
			return "", fmt.Errorf("keyword search: %w", err)
		}
		keywordHits = rows
		if len(rows) > 0 {
			sections = append(sections, "--- Keyword matches from conversation history ---", formatSearchResults(rows))
		}
	}

	runSemantic := mode == SearchModeSemantic || (mode == SearchModeBoth && len(keywordHits) < 3)
	if runSemantic {
		semantic := s.episodic.Recall(ctx, query)
		if !strings.Contains(semantic, "don't have any memories") && !strings.Contains(semantic, "not available") {
			sections = append(sections, "--- Semantic recall from Hindsight ---", semantic)
		}
	}

	if len(sections) == 0 {
		return fmt.Sprintf("No conversation history found matching %q.", query), nil
	}
	return strings.Join(sections, "\n\n"), nil
}

func formatSearchResults(rows []storage.SearchResult) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		role := strings.ToUpper(r.Role[:1]) + r.Role[1:]
		dateStr := "unknown date"
		if !r.CreatedAt.IsZero() {
			dateStr = r.CreatedAt.Format("2006-01-02 15:04")
		}
		content := strings.TrimSpace(r.Content)
		if len(content) > 500 {
			content = content[:500] + "…"
		}
		lines = append(lines, fmt.Sprintf("[%s @ %s]\n%s", role, dateStr, content))
	}
	return strings.Join(lines, "\n\n")
}

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jpetree331/stateful-agent/internal/apperror"
)

// CoreMemoryBlockTypes are the only block_type values the core_memory table
// accepts. system_instructions is a separate, read-only table.
var CoreMemoryBlockTypes = []string{"user", "identity", "ideaspace"}

func isValidBlockType(blockType string) bool {
	for _, t := range CoreMemoryBlockTypes {
		if t == blockType {
			return true
		}
	}
	return false
}

// GetAllBlocks loads every editable core-memory block plus the read-only
// system_instructions block, keyed by block_type.
func (g *Gateway) GetAllBlocks(ctx context.Context) (map[string]string, error) {
	rows, err := g.pool.Query(ctx, "SELECT block_type, content FROM core_memory ORDER BY block_type")
	if err != nil {
		return nil, fmt.Errorf("load core memory blocks: %w", err)
	}
	defer rows.Close()

	result := map[string]string{}
	for rows.Next() {
		var blockType, content string
		if err := rows.Scan(&blockType, &content); err != nil {
			return nil, fmt.Errorf("scan core memory row: %w", err)
		}
		result[blockType] = content
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	instructions, err := g.GetSystemInstructions(ctx)
	if err != nil {
		return nil, err
	}
	result["system_instructions"] = instructions
	return result, nil
}

// GetSystemInstructions loads the single read-only instructions row.
func (g *Gateway) GetSystemInstructions(ctx context.Context) (string, error) {
	var content string
	err := g.pool.QueryRow(ctx, "SELECT content FROM system_instructions WHERE id = 1").Scan(&content)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load system instructions: %w", err)
	}
	return content, nil
}

// UpdateSystemInstructions overwrites the read-only instructions row. There
// is no agent-facing tool for this; it exists for operator/import use only.
func (g *Gateway) UpdateSystemInstructions(ctx context.Context, content string) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO system_instructions (id, content, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()`,
		content)
	if err != nil {
		return fmt.Errorf("update system instructions: %w", err)
	}
	return nil
}

// GetBlock returns a single block's content, or "" if it has never been
// written.
func (g *Gateway) GetBlock(ctx context.Context, blockType string) (string, error) {
	blocks, err := g.GetAllBlocks(ctx)
	if err != nil {
		return "", err
	}
	return blocks[blockType], nil
}

// UpdateBlock replaces a block's content wholesale, pushing the previous
// version into core_memory_history first so RollbackBlock can restore it.
func (g *Gateway) UpdateBlock(ctx context.Context, blockType, content string) (int, error) {
	if !isValidBlockType(blockType) {
		return 0, fmt.Errorf("invalid block_type %q: %w", blockType, apperror.ErrInvalidInput)
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin update block: %w", err)
	}
	defer tx.Rollback(ctx)

	var existingVersion int
	err = tx.QueryRow(ctx, "SELECT version FROM core_memory WHERE block_type = $1", blockType).Scan(&existingVersion)
	newVersion := 1
	if err == nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO core_memory_history (block_type, content, version, updated_at)
			SELECT block_type, content, version, updated_at FROM core_memory
			WHERE block_type = $1`, blockType); err != nil {
			return 0, fmt.Errorf("push history: %w", err)
		}
		newVersion = existingVersion + 1
	} else if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("load existing block: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO core_memory (block_type, content, version, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (block_type) DO UPDATE SET
			content = EXCLUDED.content,
			version = EXCLUDED.version,
			updated_at = NOW()`,
		blockType, content, newVersion); err != nil {
		return 0, fmt.Errorf("write block: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit update block: %w", err)
	}
	return newVersion, nil
}

// AppendToBlock appends addition to a block's current content, separated by
// a blank line, through the same UpdateBlock/history path.
func (g *Gateway) AppendToBlock(ctx context.Context, blockType, addition string) (int, error) {
	if !isValidBlockType(blockType) {
		return 0, fmt.Errorf("invalid block_type %q: %w", blockType, apperror.ErrInvalidInput)
	}
	current, err := g.GetBlock(ctx, blockType)
	if err != nil {
		return 0, err
	}
	newContent := addition
	if current != "" {
		newContent = current + "\n\n" + addition
	}
	return g.UpdateBlock(ctx, blockType, newContent)
}

// RollbackBlock restores a block to its most recently pushed history entry,
// deleting that entry so repeated rollbacks walk further back in time.
func (g *Gateway) RollbackBlock(ctx context.Context, blockType string) (int, error) {
	if !isValidBlockType(blockType) {
		return 0, fmt.Errorf("invalid block_type %q: %w", blockType, apperror.ErrInvalidInput)
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin rollback: %w", err)
	}
	defer tx.Rollback(ctx)

	var historyID, prevVersion int
	var prevContent string
	err = tx.QueryRow(ctx, `
		SELECT id, content, version FROM core_memory_history
		WHERE block_type = $1
		ORDER BY id DESC LIMIT 1`, blockType,
	).Scan(&historyID, &prevContent, &prevVersion)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("no previous version of %s to rollback to: %w", blockType, apperror.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("load history entry: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE core_memory SET content = $1, version = $2, updated_at = NOW()
		WHERE block_type = $3`, prevContent, prevVersion, blockType); err != nil {
		return 0, fmt.Errorf("restore block: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM core_memory_history WHERE id = $1", historyID); err != nil {
		return 0, fmt.Errorf("delete history entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit rollback: %w", err)
	}
	return prevVersion, nil
}

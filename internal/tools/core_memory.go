package tools

import (
	"context"
	"fmt"

	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

func textResult(format string, args ...any) *api.ToolResult {
	return &api.ToolResult{Content: []api.ContentBlock{{Type: "text", Text: fmt.Sprintf(format, args...)}}}
}

// CoreMemoryUpdate wraps core_memory_update: a full block rewrite.
type CoreMemoryUpdate struct{ mem *memory.Service }

func NewCoreMemoryUpdate(mem *memory.Service) *CoreMemoryUpdate { return &CoreMemoryUpdate{mem: mem} }

func (t *CoreMemoryUpdate) Name() string { return "core_memory_update" }
func (t *CoreMemoryUpdate) Description() string {
	return "Replace the entire content of a core memory block. Use when you need to fully rewrite a block. Prefer core_memory_append when adding new information to avoid accidentally removing existing content."
}
func (t *CoreMemoryUpdate) Parameters() map[string]any {
	return map[string]any{
		"block_type": map[string]any{"type": "string", "description": "One of 'user', 'identity', or 'ideaspace'."},
		"content":    map[string]any{"type": "string", "description": "The new full content for the block."},
	}
}
func (t *CoreMemoryUpdate) RequiredParameters() []string { return []string{"block_type", "content"} }

func (t *CoreMemoryUpdate) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	blockType, _ := args["block_type"].(string)
	content, _ := args["content"].(string)
	version, err := t.mem.UpdateCoreMemoryBlock(ctx, blockType, content)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	return textResult("Updated %s block (version %d).", blockType, version), nil
}

// CoreMemoryAppend wraps core_memory_append.
type CoreMemoryAppend struct{ mem *memory.Service }

func NewCoreMemoryAppend(mem *memory.Service) *CoreMemoryAppend { return &CoreMemoryAppend{mem: mem} }

func (t *CoreMemoryAppend) Name() string { return "core_memory_append" }
func (t *CoreMemoryAppend) Description() string {
	return "Append new content to a core memory block. Prefer this over core_memory_update when adding information, as it preserves existing content and reduces the risk of accidental deletion."
}
func (t *CoreMemoryAppend) Parameters() map[string]any {
	return map[string]any{
		"block_type": map[string]any{"type": "string", "description": "One of 'user', 'identity', or 'ideaspace'."},
		"addition":   map[string]any{"type": "string", "description": "The text to append (added after existing content)."},
	}
}
func (t *CoreMemoryAppend) RequiredParameters() []string { return []string{"block_type", "addition"} }

func (t *CoreMemoryAppend) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	blockType, _ := args["block_type"].(string)
	addition, _ := args["addition"].(string)
	version, err := t.mem.AppendCoreMemoryBlock(ctx, blockType, addition)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	return textResult("Appended to %s block (version %d).", blockType, version), nil
}

// CoreMemoryRollback wraps core_memory_rollback.
type CoreMemoryRollback struct{ mem *memory.Service }

func NewCoreMemoryRollback(mem *memory.Service) *CoreMemoryRollback {
	return &CoreMemoryRollback{mem: mem}
}

func (t *CoreMemoryRollback) Name() string { return "core_memory_rollback" }
func (t *CoreMemoryRollback) Description() string {
	return "Restore a core memory block to its previous version. Use immediately if you made an editing mistake. Each rollback restores one step back in history."
}
func (t *CoreMemoryRollback) Parameters() map[string]any {
	return map[string]any{
		"block_type": map[string]any{"type": "string", "description": "One of 'user', 'identity', or 'ideaspace'."},
	}
}
func (t *CoreMemoryRollback) RequiredParameters() []string { return []string{"block_type"} }

func (t *CoreMemoryRollback) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	blockType, _ := args["block_type"].(string)
	version, err := t.mem.RollbackCoreMemoryBlock(ctx, blockType)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	return textResult("Rolled back %s block to version %d.", blockType, version), nil
}

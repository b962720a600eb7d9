// Package toolloop is the Tool Dispatch component: given a message list and
// a tool registry, it drives the ReAct cycle of invoke-LLM /
// execute-tool-calls / append-results until the model returns a terminal
// assistant message or a recursion-depth guard trips.
package toolloop

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/llm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMaxDepth is the recursion-depth guard applied when Run is called
// with maxDepth <= 0 — the "remaining_steps" budget that keeps a
// tool-call/tool-result cycle from running away.
const DefaultMaxDepth = 25

// Result is what one ReAct cycle produced.
type Result struct {
	// Messages is the full transcript, including every tool call/result
	// appended along the way.
	Messages []llm.Message
	// Final is the last assistant message — the one the caller should surface.
	Final llm.Message
	// DepthExceeded is true when the loop terminated by hitting maxDepth
	// rather than a natural terminal assistant message.
	DepthExceeded bool
}

// Run drives the loop. messages must already include the system message and
// the new user turn; registry may be nil to offer the model no tools for
// this call.
func Run(ctx context.Context, client llm.LLMClient, registry api.ToolRegistry, messages []llm.Message, maxDepth int) (Result, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var availableTools []llm.Tool
	if registry != nil {
		apiTools := registry.GetAll()
		availableTools = make([]llm.Tool, len(apiTools))
		for i, t := range apiTools {
			availableTools[i] = t
		}
	}

	current := append([]llm.Message(nil), messages...)
	var lastAssistant llm.Message

	for depth := 0; depth < maxDepth; depth++ {
		chunkCh, err := client.StreamChat(ctx, current, availableTools)
		if err != nil {
			return Result{}, fmt.Errorf("stream chat: %w", err)
		}

		assistantMsg, err := collect(chunkCh)
		if err != nil {
			return Result{}, err
		}
		lastAssistant = assistantMsg
		current = append(current, assistantMsg)

		if len(assistantMsg.ToolCalls) == 0 {
			return Result{Messages: current, Final: assistantMsg}, nil
		}

		for _, tc := range assistantMsg.ToolCalls {
			current = append(current, resolveAndCommitToolCall(ctx, registry, tc))
		}
	}

	return Result{Messages: current, Final: lastAssistant, DepthExceeded: true}, nil
}

// collect drains a StreamChat channel into a single assistant message,
// mirroring the accumulation half of the teacher's CollectChunks (the
// streaming-to-a-live-responder half is the ingress adapters' concern, not
// this package's).
func collect(chunkCh <-chan llm.StreamChunk) (llm.Message, error) {
	msg := llm.Message{Role: "assistant", Content: []llm.ContentBlock{}}
	for chunk := range chunkCh {
		if chunk.Err != nil {
			return msg, fmt.Errorf("stream error: %w", chunk.Err)
		}
		for _, b := range chunk.ContentBlocks {
			msg.AddContentBlock(b)
		}
		if len(chunk.ToolCalls) > 0 {
			msg.ToolCalls = append(msg.ToolCalls, chunk.ToolCalls...)
		}
		if chunk.IsFinal {
			break
		}
	}
	return msg, nil
}

// resolveAndCommitToolCall executes one tool call and always returns a
// tool-role message, even if the tool panics — a panicking tool must not
// take down the whole turn.
func resolveAndCommitToolCall(ctx context.Context, registry api.ToolRegistry, tc llm.ToolCall) (result llm.Message) {
	result = llm.Message{
		Role:       "tool",
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Content = []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("Error: tool %q panicked: %v", tc.Name, r))}
		}
	}()

	result.Content = executeToolCall(ctx, registry, tc)
	return result
}

func executeToolCall(ctx context.Context, registry api.ToolRegistry, tc llm.ToolCall) []llm.ContentBlock {
	cleanName := strings.TrimPrefix(tc.Name, "functions.")

	tool, ok := registry.Get(cleanName)
	if !ok {
		return []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("Error: unknown tool %q", tc.Name))}
	}

	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("Error: failed to parse tool arguments: %v", err))}
		}
	}

	res, err := tool.Execute(ctx, args)
	if err != nil {
		return []llm.ContentBlock{llm.NewTextBlock(fmt.Sprintf("Error: tool execution failed: %v", err))}
	}
	return convertToolResult(res)
}

func convertToolResult(res *api.ToolResult) []llm.ContentBlock {
	var blocks []llm.ContentBlock
	for _, b := range res.Content {
		if b.Type == "image" {
			data, err := base64.StdEncoding.DecodeString(b.Data)
			if err != nil {
				blocks = append(blocks, llm.NewTextBlock(fmt.Sprintf("Error: failed to decode image: %v", err)))
				continue
			}
			mimeType := b.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			blocks = append(blocks, llm.NewImageBlock(data, mimeType))
			continue
		}
		blocks = append(blocks, llm.NewTextBlock(b.Text))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, llm.NewTextBlock("(No output)"))
	}
	return blocks
}

package llm

import (
	"context"
	"fmt" // Import tools for structs
	"log"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json 用於 package llm 內部的 JSON 處理，統一使用 json-iterator
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMUsage is the provider-agnostic token accounting for one completion.
type LLMUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	ThoughtsTokens   int    `json:"thoughts_tokens,omitempty"`
	CachedTokens     int    `json:"cached_tokens,omitempty"`
	PromptDetail     string `json:"prompt_detail,omitempty"`
	CompletionDetail string `json:"completion_detail,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// LogUsage prints a one-line usage summary for a completed turn.
func LogUsage(model string, usage *LLMUsage) {
	if usage == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "usage model=%s prompt=%d completion=%d total=%d", model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	if usage.ThoughtsTokens > 0 {
		fmt.Fprintf(&sb, " thoughts=%d", usage.ThoughtsTokens)
	}
	if usage.CachedTokens > 0 {
		fmt.Fprintf(&sb, " cached=%d", usage.CachedTokens)
	}
	if usage.StopReason != "" {
		fmt.Fprintf(&sb, " stop_reason=%s", usage.StopReason)
	}
	log.Println(sb.String())
}

// Tool is the provider-facing schema for one callable tool: name, description,
// and a JSON-schema object describing its arguments. Concrete tool
// implementations (internal/tools) satisfy this alongside an Execute method.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any   // JSON Schema "properties"
	RequiredParameters() []string // JSON Schema "required"
}

// LLMClient is the provider-agnostic streaming chat interface. Every provider
// package (openailm, gemini, ollama) implements this.
type LLMClient interface {
	// StreamChat streams one completion given the running message history and
	// the tools currently available to the agent.
	StreamChat(ctx context.Context, messages []Message, availableTools []Tool) (<-chan StreamChunk, error)

	// IsTransientError reports whether err is worth retrying (rate limit, timeout, 5xx).
	IsTransientError(err error) bool

	// Provider returns the configured provider label (e.g. "openai", "gemini", "ollama").
	Provider() string

	// SetDebug toggles raw-chunk logging to disk for this client.
	SetDebug(enabled bool)
}

// FallbackClient 支援多個 Client 分級嘗試
type FallbackClient struct {
	Clients    []LLMClient
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackClient) StreamChat(ctx context.Context, messages []Message, availableTools []Tool) (<-chan StreamChunk, error) {
	var lastErr error
	for i, client := range f.Clients {
		if i > 0 {
			log.Printf("previous provider failed, trying fallback provider #%d", i+1)
		}

		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for retry := 1; retry <= maxRetries; retry++ {
			if retry > 1 {
				log.Printf("retrying provider #%d (attempt %d/%d)", i, retry, maxRetries)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(retry-1) * f.RetryDelay):
				}
			}

			ch, err := client.StreamChat(ctx, messages, availableTools)
			if err == nil {
				return ch, nil
			}

			lastErr = err

			if client.IsTransientError(err) && retry < maxRetries {
				log.Printf("provider #%d failed with transient error: %v, retrying", i+1, err)
				continue
			}

			log.Printf("provider #%d failed: %v", i+1, err)
			break
		}
	}
	return nil, fmt.Errorf("all fallback providers failed, last error: %w", lastErr)
}

// IsTransientError reports false — a FallbackClient error means every child
// already exhausted its own retries.
func (f *FallbackClient) IsTransientError(err error) bool {
	return false
}

// Provider returns a label covering all wrapped clients.
func (f *FallbackClient) Provider() string {
	if len(f.Clients) == 0 {
		return "fallback"
	}
	return f.Clients[0].Provider() + "+fallback"
}

// SetDebug propagates the debug flag to every wrapped client.
func (f *FallbackClient) SetDebug(enabled bool) {
	for _, c := range f.Clients {
		c.SetDebug(enabled)
	}
}

// Package memory is the Memory Service: the facade over the Storage Gateway's
// core-memory, archival, and daily-summary tables plus the episodic client
// that retains and recalls lived experience from an external Hindsight
// instance.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// EpisodicConfig configures the Hindsight client. Enabled gates every
// operation: when false, Retain/Recall/Reflect are no-ops, matching the
// soft-fail contract the rest of the runtime depends on.
type EpisodicConfig struct {
	BaseURL string
	BankID  string
	UserID  string
	Enabled bool
}

// EpisodicClient retains conversation exchanges as narrative lived
// experience and recalls/reflects on them later. Every method soft-fails:
// a down or misconfigured Hindsight instance never aborts a turn, it just
// yields a degraded response. The RWMutex guards cfg hot-swaps, mirroring
// the teacher's ChatHistory concurrency pattern.
type EpisodicClient struct {
	mu     sync.RWMutex
	cfg    EpisodicConfig
	client *resty.Client
}

// NewEpisodicClient builds a client around the given config. A zero-value
// BaseURL still produces a usable client; Retain/Recall/Reflect will simply
// fail each request and soft-fail as usual.
func NewEpisodicClient(cfg EpisodicConfig) *EpisodicClient {
	return &EpisodicClient{
		cfg: cfg,
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// SetConfig hot-swaps the client's configuration, used when config reload
// picks up new Hindsight settings.
func (e *EpisodicClient) SetConfig(cfg EpisodicConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

func (e *EpisodicClient) config() EpisodicConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// ExchangeTags describes the identity/channel context an exchange is
// retained under, matching original_source/hindsight.py's tag scheme.
type ExchangeTags struct {
	ThreadID    string
	UserID      string
	ChannelType string
	IsGroupChat bool
}

func formatLivedExperience(userContent, assistantContent string) string {
	userContent = strings.TrimSpace(userContent)
	assistantContent = strings.TrimSpace(assistantContent)
	if assistantContent != "" {
		return fmt.Sprintf(
			"The user and I were in conversation. They said to me: %q I responded from our shared context: %q",
			userContent, assistantContent)
	}
	return fmt.Sprintf("The user reached out to me. They said: %q", userContent)
}

type retainRequest struct {
	BankID    string         `json:"bank_id"`
	Content   string         `json:"content"`
	Context   string         `json:"context"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
}

// RetainExchange records a user/assistant exchange as lived experience.
// Returns false (never an error) whenever Hindsight is disabled, unreachable,
// or rejects the request — callers should log and continue, never block the
// conversation turn on this.
func (e *EpisodicClient) RetainExchange(ctx context.Context, userContent, assistantContent string, tags ExchangeTags) bool {
	cfg := e.config()
	if !cfg.Enabled || cfg.BaseURL == "" {
		return false
	}

	req := retainRequest{
		BankID:    firstNonEmpty(cfg.BankID, "stateful-agent"),
		Content:   formatLivedExperience(userContent, assistantContent),
		Context:   "conversation",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if tags.ThreadID != "" {
		req.Metadata = map[string]any{"thread_id": tags.ThreadID}
	}

	effectiveUser := strings.TrimSpace(firstNonEmpty(tags.UserID, cfg.UserID))
	if effectiveUser != "" {
		if !strings.Contains(effectiveUser, ":") {
			effectiveUser = "user:" + effectiveUser
		}
		req.Tags = append(req.Tags, effectiveUser)
	}
	if tags.ChannelType != "" {
		req.Tags = append(req.Tags, "channel:"+strings.ToLower(tags.ChannelType))
	}
	if tags.IsGroupChat {
		req.Tags = append(req.Tags, "group")
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(cfg.BaseURL + "/banks/" + req.BankID + "/retain")
	if err != nil || resp.IsError() {
		return false
	}
	return true
}

type recallResponse struct {
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
}

// Recall searches Hindsight for memories relevant to query, formatted as a
// narrative recollection rather than a bullet list. Never errors; a down
// Hindsight instance yields an explanatory sentence instead.
func (e *EpisodicClient) Recall(ctx context.Context, query string) string {
	cfg := e.config()
	if !cfg.Enabled || cfg.BaseURL == "" {
		return "Hindsight is not available. Memory recall failed."
	}
	bank := firstNonEmpty(cfg.BankID, "stateful-agent")

	var out recallResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetResult(&out).
		Get(cfg.BaseURL + "/banks/" + bank + "/recall")
	if err != nil || resp.IsError() {
		return fmt.Sprintf("Hindsight recall failed: %v", firstErr(err, resp))
	}

	var texts []string
	for _, r := range out.Results {
		if t := strings.TrimSpace(r.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return "I don't have any memories that match that."
	}
	return "From my experience with the user:\n\n" + strings.Join(texts, "\n\n")
}

type reflectResponse struct {
	Text string `json:"text"`
}

// Reflect asks Hindsight to synthesize patterns/insights over query rather
// than simple recall.
func (e *EpisodicClient) Reflect(ctx context.Context, query string) string {
	cfg := e.config()
	if !cfg.Enabled || cfg.BaseURL == "" {
		return "Hindsight is not available. Reflection failed."
	}
	bank := firstNonEmpty(cfg.BankID, "stateful-agent")

	var out reflectResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetResult(&out).
		Get(cfg.BaseURL + "/banks/" + bank + "/reflect")
	if err != nil || resp.IsError() {
		return fmt.Sprintf("Hindsight reflect failed: %v", firstErr(err, resp))
	}
	if t := strings.TrimSpace(out.Text); t != "" {
		return t
	}
	return "I reflected but have nothing specific to share."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstErr(err error, resp *resty.Response) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("status %d", resp.StatusCode())
}

package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// Config defines the global application configuration structure.
// This structure maps directly to the config.json file and holds
// business-level settings like channel API keys and LLM provider choices.
type Config struct {
	// Channels contains a map of channel identifiers (e.g., "telegram", "web")
	// to their specific configuration payloads in raw JSON format.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM holds the configuration for the primary LLM provider in raw JSON.
	LLM jsoniter.RawMessage `json:"llm"`
	// SystemPrompt is the global persona/instruction string sent to the AI
	// as the initial system message in every conversation.
	SystemPrompt string `json:"system_prompt"`
}

// DeepCopy creates a shallow copy of Config.
// Since Channels is a map, we need to clone the map itself.
func (c *Config) DeepCopy() *Config {
	newCfg := *c
	if c.Channels != nil {
		newCfg.Channels = make(map[string]jsoniter.RawMessage)
		for k, v := range c.Channels {
			newCfg.Channels[k] = v
		}
	}
	return &newCfg
}

// Validate ensures the configuration structure contains all mandatory fields.
// It acts as a primary guard before the system proceeds to initialization.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters.
// These settings are usually stored in system.json and control the
// performance, reliability, and technical behavior of the Genesis engine.
type SystemConfig struct {
	// MaxRetries is the number of times the system will attempt to
	// recover from a transient LLM or network error before giving up.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the duration to wait (in milliseconds) between
	// consecutive retry attempts.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs is the hard cutoff time (in milliseconds) for an
	// LLM request. The context will be cancelled if exceeded.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// OllamaDefaultURL is loaded but not read by the Ollama provider: a
	// provider group without base_url uses the Ollama client's environment
	// defaults instead.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// InternalChannelBuffer defines the size of the internal Go channels
	// used for buffering stream chunks to prevent production blocking.
	InternalChannelBuffer int `json:"internal_channel_buffer"`
	// ThinkingInitDelayMs is loaded but no channel reads it; the "thinking"
	// signal is sent as soon as a message reaches the handler.
	ThinkingInitDelayMs int `json:"thinking_init_delay_ms"`
	// TelegramMessageLimit is the maximum character count for a single
	// Telegram message. Longer responses will be split into multiple chunks.
	TelegramMessageLimit int `json:"telegram_message_limit"`
	// DownloadTimeoutMs is the timeout (in milliseconds) applied when
	// fetching external media or files (e.g., from Telegram servers).
	DownloadTimeoutMs int `json:"download_timeout_ms"`
	// DiscordMessageLimit is the maximum character count for a single
	// Discord message before it gets split into multiple chunks.
	DiscordMessageLimit int `json:"discord_message_limit"`
	// ShowThinking is loaded but no component reads it; replies are sent as
	// the orchestrator's finished text.
	ShowThinking bool `json:"show_thinking"`
	// DebugChunks enables saving every raw LLM response chunk to the /debug
	// folder for inspection and troubleshooting purposes.
	DebugChunks bool `json:"debug_chunks"`
	// LogLevel sets the minimum severity for log output.
	// Accepted values: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
	// EnableTools is loaded but no component reads it; the Turn Orchestrator
	// always offers its tool registry to the model.
	EnableTools bool `json:"enable_tools"`
	// HistorySummarizeThreshold, HistoryKeepRecentCount, HistoryMaxChars and
	// HistoryMaxTokens are loaded but no component reads them, and no history
	// summarization runs. History is bounded by RecentMessagesLimit and
	// ContextWindowTokens instead.
	HistorySummarizeThreshold int `json:"history_summarize_threshold"`
	HistoryKeepRecentCount    int `json:"history_keep_recent_count"`
	HistoryMaxChars           int `json:"history_max_chars"`
	HistoryMaxTokens          int `json:"history_max_tokens"`

	// DatabaseURL is the Postgres connection string for the Storage Gateway.
	DatabaseURL string `json:"database_url"`
	// AgentTimezone is the IANA timezone name used for "today" boundaries
	// (history windowing, heartbeat scheduling, cron trigger evaluation).
	AgentTimezone string `json:"agent_timezone"`
	// RecentMessagesLimit is the fallback message count for the "last N" half
	// of the history window policy.
	RecentMessagesLimit int `json:"recent_messages_limit"`
	// ContextWindowTokens is the safety-cap token budget the history loader
	// trims back to after the windowing policy has been applied.
	ContextWindowTokens int `json:"context_window_tokens"`
	// HeartbeatIntervalMinutes is the tick period of the Heartbeat Scheduler.
	HeartbeatIntervalMinutes int `json:"heartbeat_interval_minutes"`
	// HeartbeatWakeHour/HeartbeatSleepHour bound the local-time window during
	// which heartbeats are allowed to fire.
	HeartbeatWakeHour  int `json:"heartbeat_wake_hour"`
	HeartbeatSleepHour int `json:"heartbeat_sleep_hour"`
	// HeartbeatSkipWindowMinutes suppresses a heartbeat if user activity was
	// observed more recently than this many minutes ago.
	HeartbeatSkipWindowMinutes int `json:"heartbeat_skip_window_minutes"`
	// DefaultUserID/DefaultChannelType seed a turn's identity when an ingress
	// adapter does not supply one (e.g. the heartbeat's synthetic turns).
	DefaultUserID      string `json:"default_user_id"`
	DefaultChannelType string `json:"default_channel_type"`
	// UserDisplayName is the human-readable name used in prompt formatting.
	UserDisplayName string `json:"user_display_name"`

	// DataDir holds local process state that doesn't belong in Postgres: the
	// activity sentinel file the Heartbeat Scheduler reads to suppress a
	// wake-up shortly after real user activity.
	DataDir string `json:"data_dir"`
	// HeartbeatPromptPath optionally overrides the built-in heartbeat
	// wake-up prompt with the contents of a file on disk.
	HeartbeatPromptPath string `json:"heartbeat_prompt_path"`

	// DiscordBotToken/DiscordChannelID configure the Discord ingress adapter.
	DiscordBotToken  string `json:"discord_bot_token"`
	DiscordChannelID string `json:"discord_channel_id"`
	// TelegramBotToken/TelegramChatID configure the Telegram ingress adapter.
	TelegramBotToken string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`

	// HindsightBaseURL/HindsightBankID/HindsightEnabled/HindsightUserID
	// configure the Episodic Memory Client (Hindsight).
	HindsightBaseURL string `json:"hindsight_base_url"`
	HindsightBankID  string `json:"hindsight_bank_id"`
	HindsightEnabled bool   `json:"hindsight_enabled"`
	HindsightUserID  string `json:"hindsight_user_id"`

	// CORSOrigins is the comma-separated allow-list for the HTTP surface.
	CORSOrigins string `json:"cors_origins"`
	// HTTPAddr is the listen address for the HTTP ingress adapter.
	HTTPAddr string `json:"http_addr"`
}

// envOverlay applies environment-variable overrides onto an already-loaded
// SystemConfig, matching spec.md §6's env-key set. Values present in the
// environment always win over config.json/system.json.
func (s *SystemConfig) envOverlay() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := fmt.Sscanf(v, "%d", dst); err != nil || n != 1 {
				// leave existing value on parse failure
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "1" || v == "true" || v == "TRUE"
		}
	}

	str("DATABASE_URL", &s.DatabaseURL)
	str("AGENT_TIMEZONE", &s.AgentTimezone)
	num("RECENT_MESSAGES_LIMIT", &s.RecentMessagesLimit)
	num("CONTEXT_WINDOW_TOKENS", &s.ContextWindowTokens)
	num("HEARTBEAT_INTERVAL_MINUTES", &s.HeartbeatIntervalMinutes)
	num("HEARTBEAT_WAKE_HOUR", &s.HeartbeatWakeHour)
	num("HEARTBEAT_SLEEP_HOUR", &s.HeartbeatSleepHour)
	num("HEARTBEAT_SKIP_WINDOW_MINUTES", &s.HeartbeatSkipWindowMinutes)
	str("DEFAULT_USER_ID", &s.DefaultUserID)
	str("DEFAULT_CHANNEL_TYPE", &s.DefaultChannelType)
	str("USER_DISPLAY_NAME", &s.UserDisplayName)
	str("DATA_DIR", &s.DataDir)
	str("HEARTBEAT_PROMPT_PATH", &s.HeartbeatPromptPath)
	str("DISCORD_BOT_TOKEN", &s.DiscordBotToken)
	str("DISCORD_CHANNEL_ID", &s.DiscordChannelID)
	num("DISCORD_MESSAGE_LIMIT", &s.DiscordMessageLimit)
	str("TELEGRAM_BOT_TOKEN", &s.TelegramBotToken)
	str("TELEGRAM_CHAT_ID", &s.TelegramChatID)
	str("HINDSIGHT_BASE_URL", &s.HindsightBaseURL)
	str("HINDSIGHT_BANK_ID", &s.HindsightBankID)
	boolean("HINDSIGHT_ENABLED", &s.HindsightEnabled)
	str("HINDSIGHT_USER_ID", &s.HindsightUserID)
	str("CORS_ORIGINS", &s.CORSOrigins)
	str("HTTP_ADDR", &s.HTTPAddr)
	num("TELEGRAM_MESSAGE_LIMIT", &s.TelegramMessageLimit)
}

// DeepCopy creates a full copy of SystemConfig.
func (s *SystemConfig) DeepCopy() *SystemConfig {
	newSys := *s
	return &newSys
}

// DefaultSystemConfig returns a SystemConfig pointer initialized with hardcoded safe defaults.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:                3,
		RetryDelayMs:              500,
		LLMTimeoutMs:              600000,
		OllamaDefaultURL:          "http://localhost:11434/v1",
		InternalChannelBuffer:     100,
		ThinkingInitDelayMs:       500,
		TelegramMessageLimit:      4000,
		DiscordMessageLimit:       2000,
		DownloadTimeoutMs:         10000,
		ShowThinking:              true,
		LogLevel:                  "info",
		EnableTools:               true,
		HistorySummarizeThreshold: 10,
		HistoryKeepRecentCount:    5,
		HistoryMaxChars:           10000,
		HistoryMaxTokens:          4000,

		AgentTimezone:              "UTC",
		RecentMessagesLimit:        30,
		ContextWindowTokens:        200000,
		HeartbeatIntervalMinutes:   60,
		HeartbeatWakeHour:          5,
		HeartbeatSleepHour:         22,
		HeartbeatSkipWindowMinutes: 5,
		DefaultUserID:              "default_user",
		DefaultChannelType:         "internal",
		HTTPAddr:                   ":8080",
		DataDir:                    "data",
	}
}

// Load reads and parses the JSON configuration files and returns configuration objects.
func Load() (*Config, *SystemConfig, error) {
	appPath := "config.json"
	if _, err := os.Stat(appPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}

	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	sysCfg := LoadSystemConfig("system.json")

	return &cfg, sysCfg, nil
}

// LoadSystemConfig attempts to load system settings from path, falling back
// to hardcoded defaults, then applies environment-variable overrides on top
// (env always wins — matches the original Python deployment's posture of
// configuring scalar runtime knobs entirely via the process environment).
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	if file, err := os.ReadFile(path); err == nil {
		jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg)
	}

	cfg.envOverlay()
	return cfg
}

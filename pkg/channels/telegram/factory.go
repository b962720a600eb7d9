package telegram

import (
	"fmt"
	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/channels"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramFactory implements the channels.ChannelFactory interface to
// instantiate Telegram-specific communication adapters.
type TelegramFactory struct{}

// Create parses the channel-specific configuration and initializes a
// TelegramChannel instance with synchronized system-level timeouts.
func (f *TelegramFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (api.Channel, error) {
	var tgCfg TelegramConfig
	if err := json.Unmarshal(rawConfig, &tgCfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}

	if tgCfg.Token == "" {
		return nil, fmt.Errorf("missing telegram token")
	}

	return NewTelegramChannel(tgCfg, deps.System.TelegramMessageLimit, deps.System.DownloadTimeoutMs)
}

func init() {
	channels.RegisterChannel("telegram", &TelegramFactory{})
}

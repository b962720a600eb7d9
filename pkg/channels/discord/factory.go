package discord

import (
	"fmt"

	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/channels"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DiscordFactory implements the channels.ChannelFactory interface to
// instantiate Discord-specific communication adapters.
type DiscordFactory struct{}

func (f *DiscordFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (api.Channel, error) {
	var dCfg DiscordConfig
	if err := json.Unmarshal(rawConfig, &dCfg); err != nil {
		return nil, fmt.Errorf("failed to parse discord config: %w", err)
	}
	if dCfg.Token == "" {
		return nil, fmt.Errorf("missing discord token")
	}
	return NewDiscordChannel(dCfg, deps.System.DiscordMessageLimit)
}

func init() {
	channels.RegisterChannel("discord", &DiscordFactory{})
}

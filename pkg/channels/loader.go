package channels

import (
	"log/slog"

	"github.com/jpetree331/stateful-agent/internal/storage"
	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Source encapsulates the configuration and dependencies required
// to dynamically create communication channels from configuration.
type Source struct {
	configs map[string]jsoniter.RawMessage
	deps    Deps
}

// NewSource creates a new Source instance.
func NewSource(configs map[string]jsoniter.RawMessage, system *config.SystemConfig, store *storage.Gateway, sched Scheduler) *Source {
	return &Source{
		configs: configs,
		deps:    Deps{System: system, Store: store, Scheduler: sched},
	}
}

// Load creates channel instances from configuration and returns them.
func (s *Source) Load() []api.Channel {
	var result []api.Channel
	for name, rawConfig := range s.configs {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(rawConfig, s.deps)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}

		if channel == nil {
			continue
		}

		result = append(result, channel)
		slog.Info("Channel created", "name", name)
	}
	return result
}

package gemini

import (
	"github.com/jpetree331/stateful-agent/pkg/config"
	"github.com/jpetree331/stateful-agent/pkg/llm"
)

// GeminiFactory handles creation of Gemini Clients
type GeminiFactory struct{}

// Create implements ProviderFactory
func (f *GeminiFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	var clients []llm.LLMClient

	// Cartesian Product: Models x Keys (prioritize models)
	for _, model := range cfg.Models {
		for _, key := range cfg.APIKeys {
			client := NewGeminiClient(key, model, cfg.UseThoughtSignature, cfg.Options, sys)
			clients = append(clients, client)
		}
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("gemini", &GeminiFactory{})
}

package http

import (
	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/channels"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPFactory implements the channels.ChannelFactory interface to
// instantiate the synchronous HTTP/admin adapter.
type HTTPFactory struct{}

func (f *HTTPFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (api.Channel, error) {
	var hCfg HTTPConfig
	hCfg.Addr = deps.System.HTTPAddr
	hCfg.CORSOrigins = deps.System.CORSOrigins
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &hCfg); err != nil {
			return nil, err
		}
	}
	return NewHTTPChannel(hCfg, deps.Store, deps.Scheduler), nil
}

func init() {
	channels.RegisterChannel("http", &HTTPFactory{})
}

package channels

import (
	"github.com/jpetree331/stateful-agent/internal/storage"
	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// Scheduler is the minimal surface the HTTP admin surface needs from the
// Cron Engine: a signal that the job table changed out from under it so the
// in-memory firing dedup cache gets dropped. Declared here (rather than
// importing internal/cron) to keep this package's dependency direction
// one-way, mirroring internal/tools' own scheduler interface.
type Scheduler interface {
	Reload()
}

// Deps bundles the shared resources a ChannelFactory may need beyond its
// own raw JSON config. Most channels only touch System; the HTTP admin
// surface and the web channel's history replay also read directly from
// Store, and the HTTP admin surface's cron write endpoints need Scheduler
// to invalidate the Cron Engine's dedup cache after a mutation.
type Deps struct {
	System    *config.SystemConfig
	Store     *storage.Gateway
	Scheduler Scheduler
}

// ChannelFactory defines the abstract interface for platform-specific
// channel creators. This allows the system to support new platforms
// (e.g., Discord, HTTP) without modifying the core gateway logic.
type ChannelFactory interface {
	// Create instantiates a concrete Channel implementation using the
	// provided configuration and shared system resources.
	Create(rawConfig jsoniter.RawMessage, deps Deps) (api.Channel, error)
}

// channelRegistry is an internal global map stores the mapping between
// platform names (e.g., "telegram") and their factory implementations.
var channelRegistry = make(map[string]ChannelFactory)

// RegisterChannel adds a new ChannelFactory to the global internal registry.
// This is typically called during the package's init() phase.
func RegisterChannel(name string, factory ChannelFactory) {
	channelRegistry[name] = factory
}

// GetChannelFactory retrieves a registered ChannelFactory by platform name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	f, ok := channelRegistry[name]
	return f, ok
}

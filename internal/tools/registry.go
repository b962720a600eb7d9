// Package tools implements the agent's memory-domain tool set — core
// memory editing, archival facts, conversation search, episodic
// recall/reflect, daily summaries, and cron job CRUD — each as an
// api.Tool, plus a concrete api.ToolRegistry.
package tools

import "github.com/jpetree331/stateful-agent/pkg/api"

// Registry is a concrete api.ToolRegistry: a map behind Get/Register, plus
// an order slice so GetAll (and therefore the Prompt Builder's tool
// manifest, §4.4 step 2) returns tools in a stable, registration order
// instead of Go's randomized map-iteration order.
type Registry struct {
	tools map[string]api.Tool
	order []string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]api.Tool)}
}

func (r *Registry) Register(tool api.Tool) {
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

func (r *Registry) Unregister(name string) {
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) Get(name string) (api.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) GetAll() []api.Tool {
	out := make([]api.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

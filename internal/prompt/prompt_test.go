package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jpetree331/stateful-agent/pkg/api"
)

// stubTool is a minimal api.Tool for exercising buildToolManifest without a
// real memory-domain tool.
type stubTool struct {
	name, desc string
}

func (s stubTool) Name() string                    { return s.name }
func (s stubTool) Description() string             { return s.desc }
func (s stubTool) Parameters() map[string]any       { return nil }
func (s stubTool) RequiredParameters() []string     { return nil }
func (s stubTool) Execute(context.Context, map[string]any) (*api.ToolResult, error) {
	return nil, nil
}

func TestFormatCurrentTime(t *testing.T) {
	t.Parallel()
	tm := time.Date(2026, 2, 25, 19, 7, 0, 0, time.UTC)
	assert.Equal(t, "Wednesday, February 25, 2026 at 07:07 PM UTC", formatCurrentTime(tm))
}

func TestBuildToolManifest(t *testing.T) {
	t.Parallel()

	tools := []api.Tool{
		stubTool{name: "core_memory_append", desc: "Appends to a core memory block. Safe default for most edits.\nMore detail on a second line."},
		stubTool{name: "archival_store", desc: "Records a fact in archival memory"},
	}

	manifest := buildToolManifest(tools)

	assert.Contains(t, manifest, "## Your Tools — Complete Authoritative List")
	assert.Contains(t, manifest, "- **core_memory_append**: Appends to a core memory block.")
	assert.NotContains(t, manifest, "More detail on a second line")
	assert.Contains(t, manifest, "- **archival_store**: Records a fact in archival memory")
}

func TestBuildToolManifest_Empty(t *testing.T) {
	t.Parallel()
	manifest := buildToolManifest(nil)
	assert.Contains(t, manifest, "Complete Authoritative List")
}

package render

import (
	"context"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Noop implements Renderer for builds or environments without a browser. It
// reports unavailability as a typed result so the fetch chain can continue.
type Noop struct{}

// NewNoop creates a Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// IsAvailable always reports false.
func (Noop) IsAvailable() bool { return false }

// Render returns the disabled marker.
func (Noop) Render(_ context.Context, _ string) discovery.RenderResult {
	return discovery.RenderResult{Error: discovery.RenderDisabled}
}

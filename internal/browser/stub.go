package browser

import (
	"context"
	"encoding/json"

	"github.com/agent-browser/daemon/internal/wire"
)

// LocalLaunchBackend would launch and own a local browser process. Driving
// a real browser process is out of scope here; this stub exists so a
// session can be constructed with this Kind and fail uniformly at the
// point of use rather than at startup.
type LocalLaunchBackend struct {
	ExecutablePath string
	Headed         bool
	Extensions     []string
}

func (b *LocalLaunchBackend) Navigate(context.Context, int, string, NavigateOptions) error {
	return wire.New(wire.KindNotLaunched, "local browser launch is not implemented by this daemon build")
}

func (b *LocalLaunchBackend) AccessibilityTree(context.Context, int, string) (AXNode, error) {
	return AXNode{}, wire.New(wire.KindNotLaunched, "local browser launch is not implemented by this daemon build")
}

func (b *LocalLaunchBackend) Evaluate(context.Context, int, string) (any, error) {
	return nil, wire.New(wire.KindNotLaunched, "local browser launch is not implemented by this daemon build")
}

func (b *LocalLaunchBackend) Pages(context.Context) ([]Page, error) {
	return nil, wire.New(wire.KindNotLaunched, "local browser launch is not implemented by this daemon build")
}

func (b *LocalLaunchBackend) Call(context.Context, int, string, any) (json.RawMessage, error) {
	return nil, wire.New(wire.KindNotLaunched, "local browser launch is not implemented by this daemon build")
}

func (b *LocalLaunchBackend) Close(context.Context) error { return nil }

// CdpAttachBackend would attach to an already-running browser via a raw CDP
// websocket URL. Also out of scope; see LocalLaunchBackend's doc comment.
type CdpAttachBackend struct {
	CDPURL string
}

func (b *CdpAttachBackend) Navigate(context.Context, int, string, NavigateOptions) error {
	return wire.New(wire.KindNotLaunched, "CDP attach is not implemented by this daemon build")
}

func (b *CdpAttachBackend) AccessibilityTree(context.Context, int, string) (AXNode, error) {
	return AXNode{}, wire.New(wire.KindNotLaunched, "CDP attach is not implemented by this daemon build")
}

func (b *CdpAttachBackend) Evaluate(context.Context, int, string) (any, error) {
	return nil, wire.New(wire.KindNotLaunched, "CDP attach is not implemented by this daemon build")
}

func (b *CdpAttachBackend) Pages(context.Context) ([]Page, error) {
	return nil, wire.New(wire.KindNotLaunched, "CDP attach is not implemented by this daemon build")
}

func (b *CdpAttachBackend) Call(context.Context, int, string, any) (json.RawMessage, error) {
	return nil, wire.New(wire.KindNotLaunched, "CDP attach is not implemented by this daemon build")
}

func (b *CdpAttachBackend) Close(context.Context) error { return nil }

var (
	_ BrowserBackend = (*LocalLaunchBackend)(nil)
	_ BrowserBackend = (*CdpAttachBackend)(nil)
)

// Package browser defines the shared accessibility-tree and page types, and
// the BrowserBackend capability interface that the session and executor
// program against instead of depending on a concrete driver. Launching or
// attaching to a real browser process is out of scope here; LocalLaunch and
// CdpAttach are stubs, while BridgeRelay is fully implemented in
// internal/bridge.
package browser

import (
	"context"
	"encoding/json"
)

// AXNode is one accessibility-tree node as exposed by a BrowserBackend.
type AXNode struct {
	Role     string
	Name     string
	Value    string
	Checked  *bool
	Disabled bool
	Children []AXNode
}

// Locator identifies a single element for an interaction or query, either
// by a resolved role+name (from a ref) or a raw selector string.
type Locator struct {
	Role     string
	Name     string
	Nth      int
	HasNth   bool
	Selector string
}

// Page is one tab/page in a session's ordered page set.
type Page struct {
	URL   string
	Title string
}

// NavigateOptions carries the optional parameters of a navigate call.
type NavigateOptions struct {
	WaitUntil string // "load" | "domcontentloaded" | "networkidle", empty means backend default
	TimeoutMS int
}

// BrowserBackend is the capability interface the session holds one instance
// of, and the executor programs entirely against — never against a
// concrete driver type.
type BrowserBackend interface {
	// Navigate loads url in the given page index's active page.
	Navigate(ctx context.Context, pageIndex int, url string, opts NavigateOptions) error
	// AccessibilityTree captures the current accessibility tree of the
	// active page, optionally scoped to selector.
	AccessibilityTree(ctx context.Context, pageIndex int, selector string) (AXNode, error)
	// Evaluate runs script in the page's main world and returns its JSON
	// result.
	Evaluate(ctx context.Context, pageIndex int, script string) (any, error)
	// Pages returns the backend's current page list, used to reconcile the
	// session's page-set invariants after backend-driven changes (e.g. a
	// popup opened by a click).
	Pages(ctx context.Context) ([]Page, error)
	// Call issues a single CDP-shaped command (domain.method plus its
	// params) against the given page and returns the raw JSON result. The
	// executor builds every operation Evaluate and AccessibilityTree don't
	// already cover (screenshots, PDF, tracing, cookies, route
	// interception, network headers) on top of this — it is the one path
	// through which BridgeRelay's forwardCDPCommand translation is
	// exercised.
	Call(ctx context.Context, pageIndex int, method string, params any) (json.RawMessage, error)
	// Close tears down the backend and any browser process/connection it
	// owns.
	Close(ctx context.Context) error
}

// Kind identifies which BrowserBackend variant a session is configured
// with.
type Kind string

const (
	KindLocalLaunch Kind = "local_launch"
	KindCdpAttach   Kind = "cdp_attach"
	KindBridgeRelay Kind = "bridge_relay"
)

package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/wire"
)

// BridgeRelay is the BrowserBackend variant that drives a browser through
// the extension side of a relay pair instead of a locally-owned process.
// Every method translates to a CDP-shaped command through Call, which is
// where the six translation rules in pair.dispatchCommand actually run —
// whether the command originates here (the daemon's own executor acting
// as the in-process driver) or from an external CDP client attached to
// this pair's /cdp/<uuid> socket, both exercise the identical logic.
type BridgeRelay struct {
	pair   *pair
	server *Server
	extURL string
}

var _ browser.BrowserBackend = (*BridgeRelay)(nil)

// WaitExtension blocks until an extension has attached to this pair, the
// boot-sequence wait described in §4.8.
func (b *BridgeRelay) WaitExtension(ctx context.Context) error {
	return b.pair.waitExtension(ctx)
}

// ExtensionURL returns the ws://.../extension/<uuid> URL an extension
// should connect to for this pair.
func (b *BridgeRelay) ExtensionURL() string { return b.extURL }

func (b *BridgeRelay) Call(ctx context.Context, pageIndex int, method string, params any) (json.RawMessage, error) {
	raw, err := asRawMessage(params)
	if err != nil {
		return nil, wire.Wrap(wire.KindInvalidArgument, err, "bridge: encode params for %s", method)
	}
	result, err := b.pair.dispatchCommand(ctx, method, raw, "")
	if err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "bridge: %s", method)
	}
	return result, nil
}

func (b *BridgeRelay) Navigate(ctx context.Context, pageIndex int, url string, opts browser.NavigateOptions) error {
	params := map[string]any{"url": url}
	if _, err := b.Call(ctx, pageIndex, "Page.navigate", params); err != nil {
		return err
	}
	return nil
}

func (b *BridgeRelay) AccessibilityTree(ctx context.Context, pageIndex int, selector string) (browser.AXNode, error) {
	raw, err := b.Call(ctx, pageIndex, "Accessibility.getFullAXTree", map[string]any{})
	if err != nil {
		return browser.AXNode{}, err
	}
	var decoded struct {
		Nodes []cdpAXNode `json:"nodes"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return browser.AXNode{}, wire.Wrap(wire.KindDriverError, err, "bridge: decode accessibility tree")
	}
	return buildAXTree(decoded.Nodes), nil
}

func (b *BridgeRelay) Evaluate(ctx context.Context, pageIndex int, script string) (any, error) {
	raw, err := b.Call(ctx, pageIndex, "Runtime.evaluate", map[string]any{
		"expression":    script,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "bridge: decode evaluate result")
	}
	if decoded.ExceptionDetails != nil {
		return nil, wire.New(wire.KindDriverError, "evaluate: %s", decoded.ExceptionDetails.Text)
	}
	if len(decoded.Result.Value) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(decoded.Result.Value, &value); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "bridge: decode evaluate value")
	}
	return value, nil
}

func (b *BridgeRelay) Pages(ctx context.Context) ([]browser.Page, error) {
	b.pair.mu.Lock()
	cached := b.pair.cachedTarget
	b.pair.mu.Unlock()
	if cached == nil {
		return nil, nil
	}
	return []browser.Page{{URL: cached.URL, Title: cached.Title}}, nil
}

func (b *BridgeRelay) Close(ctx context.Context) error {
	b.pair.mu.Lock()
	defer b.pair.mu.Unlock()
	if b.pair.driverConn != nil {
		_ = b.pair.driverConn.Close()
		b.pair.driverConn = nil
	}
	if b.pair.extConn != nil {
		_ = b.pair.extConn.Close()
		b.pair.extConn = nil
	}
	return nil
}

// cdpAXNode is the subset of Accessibility.getFullAXTree's node shape this
// daemon needs to reconstruct a browser.AXNode tree.
type cdpAXNode struct {
	NodeID   string     `json:"nodeId"`
	Role     cdpAXValue `json:"role"`
	Name     cdpAXValue `json:"name"`
	Value    cdpAXValue `json:"value"`
	ChildIDs []string   `json:"childIds"`
}

type cdpAXValue struct {
	Value any `json:"value"`
}

func (v cdpAXValue) string() string {
	if v.Value == nil {
		return ""
	}
	return fmt.Sprintf("%v", v.Value)
}

// buildAXTree reconstructs a browser.AXNode tree from CDP's flat
// id-referencing node list, rooted at the first node with no parent
// reference in the set (CDP returns the root first in practice; falling
// back to index 0 covers the case where that's all a test or a minimal
// extension implementation provides).
func buildAXTree(nodes []cdpAXNode) browser.AXNode {
	if len(nodes) == 0 {
		return browser.AXNode{}
	}
	byID := make(map[string]cdpAXNode, len(nodes))
	childOf := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
		for _, c := range n.ChildIDs {
			childOf[c] = true
		}
	}
	rootID := nodes[0].NodeID
	for _, n := range nodes {
		if !childOf[n.NodeID] {
			rootID = n.NodeID
			break
		}
	}
	var convert func(id string) browser.AXNode
	convert = func(id string) browser.AXNode {
		n, ok := byID[id]
		if !ok {
			return browser.AXNode{}
		}
		node := browser.AXNode{Role: n.Role.string(), Name: n.Name.string(), Value: n.Value.string()}
		for _, c := range n.ChildIDs {
			node.Children = append(node.Children, convert(c))
		}
		return node
	}
	return convert(rootID)
}

package executor

import (
	"context"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/snapshot"
	"github.com/agent-browser/daemon/internal/wire"
)

type snapshotParams struct {
	Interactive bool   `json:"interactive"`
	MaxDepth    int    `json:"maxDepth"`
	Selector    string `json:"selector"`
}

// takeSnapshot captures the active page's accessibility tree, mints a fresh
// ref map from it (invalidating every ref the previous snapshot handed
// out), and returns the rendered text alongside the ref map so a caller can
// resolve refs from this response without a round trip.
func (e *Executor) takeSnapshot(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p snapshotParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	root, err := s.Backend.AccessibilityTree(ctx, idx, p.Selector)
	if err != nil {
		return nil, err
	}
	tree := snapshot.Capture(root, snapshot.Options{
		Interactive: p.Interactive,
		MaxDepth:    p.MaxDepth,
		Selector:    p.Selector,
	})
	s.SetSnapshot(tree)
	return map[string]any{"text": tree.Text, "refs": tree.Refs}, nil
}

type evaluateParams struct {
	Expression string `json:"expression"`
	Name       string `json:"name"` // expose only: the function name installed on window
}

// evaluate covers evaluate, evalhandle, and expose. evalhandle returns the
// same JSON-serializable value evaluate does — this daemon has no opaque
// handle table, so a "handle" is just the value itself, good enough for the
// common case of immediately reading back a primitive or plain object.
// expose installs a page-side function that, when called, is recorded in
// the console sink rather than actually round-tripping to this process;
// no backend here exposes a bidirectional binding call.
func (e *Executor) evaluate(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p evaluateParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}

	if req.Action == wire.ActionExpose {
		if p.Name == "" {
			return nil, wire.New(wire.KindInvalidArgument, "expose requires a name")
		}
		script := `(function(){window[` + jsStringLiteral(p.Name) + `] = function(){ console.log('[expose:' + ` + jsStringLiteral(p.Name) + ` + ']', JSON.stringify(Array.prototype.slice.call(arguments))); }; return true;})()`
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	}

	if p.Expression == "" {
		return nil, wire.New(wire.KindInvalidArgument, "%s requires an expression", req.Action)
	}
	script := "(function(){return (" + p.Expression + ");})()"
	result, err := s.Backend.Evaluate(ctx, idx, script)
	if err != nil {
		return nil, err
	}
	return map[string]any{"value": result}, nil
}

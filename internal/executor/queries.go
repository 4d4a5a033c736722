package executor

import (
	"context"
	"fmt"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

// queryParams covers every element-scoped query; most ignore most fields.
type queryParams struct {
	targetParams
	Attribute string   `json:"attribute"`
	Styles    []string `json:"styles"`
}

// queryExpr maps an action to the JS expression (evaluated with `el` bound)
// producing its result.
func queryExpr(req *wire.Request, p queryParams) (string, error) {
	switch req.Action {
	case wire.ActionGetText, wire.ActionInnerText:
		return `el.innerText`, nil
	case wire.ActionContent, wire.ActionInnerHTML:
		return `el.innerHTML`, nil
	case wire.ActionInputValue:
		return `el.value`, nil
	case wire.ActionGetAttribute:
		if p.Attribute == "" {
			return "", wire.New(wire.KindInvalidArgument, "getattribute requires an attribute name")
		}
		return fmt.Sprintf(`el.getAttribute(%s)`, jsStringLiteral(p.Attribute)), nil
	case wire.ActionBoundingBox:
		return `(function(){var r = el.getBoundingClientRect(); return {x:r.x, y:r.y, width:r.width, height:r.height};})()`, nil
	case wire.ActionStyles:
		if len(p.Styles) == 0 {
			return `(function(){var cs = window.getComputedStyle(el); var out = {}; for (var i=0;i<cs.length;i++){out[cs[i]] = cs.getPropertyValue(cs[i]);} return out;})()`, nil
		}
		names := make([]string, len(p.Styles))
		for i, n := range p.Styles {
			names[i] = jsStringLiteral(n)
		}
		return fmt.Sprintf(`(function(){var cs = window.getComputedStyle(el); var names = [%s]; var out = {}; names.forEach(function(n){out[n]=cs.getPropertyValue(n);}); return out;})()`, joinCommas(names)), nil
	case wire.ActionIsVisible:
		return `(function(){var s = window.getComputedStyle(el); return s.display !== 'none' && s.visibility !== 'hidden' && el.offsetParent !== null;})()`, nil
	case wire.ActionIsEnabled:
		return `!el.disabled`, nil
	case wire.ActionIsChecked:
		return `!!el.checked`, nil
	default:
		return "", wire.New(wire.KindInvalidArgument, "action %q is not a query", req.Action)
	}
}

func joinCommas(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}

func (e *Executor) query(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p queryParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}

	// count and the getBy* family never require a resolved single element;
	// count reports how many matched, getBy* resolves via selector-style
	// matching and is left to the caller to feed a ref back through.
	if req.Action == wire.ActionCount {
		return e.count(ctx, s, req, p)
	}
	if isGetByAction(req.Action) || req.Action == wire.ActionNth {
		return e.getBy(ctx, s, req, p)
	}

	loc, err := resolveTarget(s, p.targetParams)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	expr, err := queryExpr(req, p)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf(`if (!el) return {found:false}; return {found:true, value: (%s)};`, expr)
	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
	if err != nil {
		return nil, err
	}
	m, ok := result.(map[string]any)
	if !ok || m["found"] != true {
		return nil, notFoundErr(p.targetParams)
	}
	return map[string]any{"value": m["value"]}, nil
}

func (e *Executor) count(ctx context.Context, s *session.Session, req *wire.Request, p queryParams) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	selector := p.Target
	if selector == "" {
		return nil, wire.New(wire.KindInvalidArgument, "count requires a selector")
	}
	script := fmt.Sprintf(`(function(){return document.querySelectorAll(%s).length;})()`, jsStringLiteral(selector))
	result, err := s.Backend.Evaluate(ctx, idx, script)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": result}, nil
}

func isGetByAction(a wire.Action) bool {
	switch a {
	case wire.ActionGetByRole, wire.ActionGetByText, wire.ActionGetByLabel, wire.ActionGetByPlaceholder,
		wire.ActionGetByAltText, wire.ActionGetByTitle, wire.ActionGetByTestID:
		return true
	}
	return false
}

type getByParams struct {
	Role  string `json:"role"`
	Value string `json:"value"`
	Nth   int    `json:"nth"`
}

// getBy resolves one of the Playwright-style getBy* locator families to a
// CSS selector fragment and reports whether a match exists, mirroring the
// same attribute-scan __abLocate already does for role+name refs — these
// actions exist so a client can probe before committing to an interaction.
func (e *Executor) getBy(ctx context.Context, s *session.Session, req *wire.Request, _ queryParams) (any, error) {
	var p getByParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	var selector string
	switch req.Action {
	case wire.ActionGetByRole:
		selector = fmt.Sprintf(`[role=%s]`, jsAttrLiteral(p.Role))
	case wire.ActionGetByLabel:
		selector = fmt.Sprintf(`[aria-label*=%s]`, jsAttrLiteral(p.Value))
	case wire.ActionGetByPlaceholder:
		selector = fmt.Sprintf(`[placeholder*=%s]`, jsAttrLiteral(p.Value))
	case wire.ActionGetByAltText:
		selector = fmt.Sprintf(`[alt*=%s]`, jsAttrLiteral(p.Value))
	case wire.ActionGetByTitle:
		selector = fmt.Sprintf(`[title*=%s]`, jsAttrLiteral(p.Value))
	case wire.ActionGetByTestID:
		selector = fmt.Sprintf(`[data-testid=%s]`, jsAttrLiteral(p.Value))
	case wire.ActionGetByText, wire.ActionNth:
		selector = "*"
	}
	script := fmt.Sprintf(`(function(){
var nodes = Array.prototype.slice.call(document.querySelectorAll(%s));
if (%s) { nodes = nodes.filter(function(n){ return (n.textContent||'').indexOf(%s) !== -1; }); }
return {count: nodes.length};
})()`, jsStringLiteral(selector), boolJS(req.Action == wire.ActionGetByText), jsStringLiteral(p.Value))
	result, err := s.Backend.Evaluate(ctx, idx, script)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func boolJS(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func jsAttrLiteral(s string) string {
	return jsStringLiteral(s)
}

func (e *Executor) currentURL(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	result, err := s.Backend.Evaluate(ctx, idx, "(function(){return window.location.href;})()")
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": result}, nil
}

func (e *Executor) currentTitle(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	result, err := s.Backend.Evaluate(ctx, idx, "(function(){return document.title;})()")
	if err != nil {
		return nil, err
	}
	return map[string]any{"title": result}, nil
}

func (e *Executor) consoleLog(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	entries := s.Console.ReadLast(200)
	return map[string]any{"entries": entries}, nil
}

func (e *Executor) pageErrors(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	entries := s.PageErrors.ReadLast(200)
	return map[string]any{"entries": entries}, nil
}

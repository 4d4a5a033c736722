package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

type pointerParams struct {
	targetParams
}

// pointerEventJS for a given DOM event type; click additionally commits
// form submission the way a real user click would if the element is a
// submit control, which is why click scripts call el.click() rather than
// only dispatching a synthetic event.
func pointerEventJS(action wire.Action) string {
	switch action {
	case wire.ActionClick:
		return `if (!el) return {found:false}; el.scrollIntoView({block:'center'}); el.click(); return {found:true};`
	case wire.ActionDblClick:
		return `if (!el) return {found:false}; el.scrollIntoView({block:'center'}); el.dispatchEvent(new MouseEvent('dblclick', {bubbles:true})); el.click(); return {found:true};`
	case wire.ActionHover:
		return `if (!el) return {found:false}; el.scrollIntoView({block:'center'}); el.dispatchEvent(new MouseEvent('mouseover', {bubbles:true})); return {found:true};`
	case wire.ActionTap:
		return `if (!el) return {found:false}; el.scrollIntoView({block:'center'}); el.dispatchEvent(new Event('touchstart', {bubbles:true})); el.click(); return {found:true};`
	default:
		return `return {found:false};`
	}
}

func (e *Executor) pointerAction(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p pointerParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	loc, err := resolveTarget(s, p.targetParams)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	script := buildScript(loc, pointerEventJS(req.Action))
	result, err := s.Backend.Evaluate(ctx, idx, script)
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, notFoundErr(p.targetParams)
	}
	return map[string]any{"ok": true}, nil
}

type textParams struct {
	targetParams
	Text string `json:"text"`
}

func (e *Executor) textAction(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p textParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	loc, err := resolveTarget(s, p.targetParams)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}

	// fill clears the field first; type appends to whatever is already there.
	var body string
	if req.Action == wire.ActionFill {
		body = fmt.Sprintf(`if (!el) return {found:false}; el.focus(); el.value = %s; el.dispatchEvent(new Event('input', {bubbles:true})); el.dispatchEvent(new Event('change', {bubbles:true})); return {found:true};`, jsStringLiteral(p.Text))
	} else {
		body = fmt.Sprintf(`if (!el) return {found:false}; el.focus(); el.value = (el.value || '') + %s; el.dispatchEvent(new Event('input', {bubbles:true})); el.dispatchEvent(new Event('change', {bubbles:true})); return {found:true};`, jsStringLiteral(p.Text))
	}
	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, notFoundErr(p.targetParams)
	}
	return map[string]any{"ok": true}, nil
}

type keyParams struct {
	targetParams
	Key string `json:"key"`
}

func (e *Executor) keyAction(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p keyParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}

	// press/keyboard target the currently focused element if no target
	// was given (a bare key chord), or a specific element if one was named.
	var loc = browser.Locator{}
	if p.Target != "" {
		loc, err = resolveTarget(s, p.targetParams)
		if err != nil {
			return nil, err
		}
	}
	body := fmt.Sprintf(`
var target = el || document.activeElement;
if (!target) return {found:false};
var evt = new KeyboardEvent('keydown', {key:%s, bubbles:true});
target.dispatchEvent(evt);
target.dispatchEvent(new KeyboardEvent('keyup', {key:%s, bubbles:true}));
return {found:true};`, jsStringLiteral(p.Key), jsStringLiteral(p.Key))
	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, notFoundErr(p.targetParams)
	}
	return map[string]any{"ok": true}, nil
}

type selectParams struct {
	targetParams
	Value  string   `json:"value"`
	Values []string `json:"values"`
}

func (e *Executor) selectAction(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p selectParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	loc, err := resolveTarget(s, p.targetParams)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	values := p.Values
	if len(values) == 0 && p.Value != "" {
		values = []string{p.Value}
	}
	valuesData, _ := json.Marshal(values)
	valuesJSON := string(valuesData)
	body := fmt.Sprintf(`
if (!el) return {found:false};
var wanted = %s;
Array.prototype.forEach.call(el.options, function(o) { o.selected = wanted.indexOf(o.value) !== -1; });
el.dispatchEvent(new Event('input', {bubbles:true}));
el.dispatchEvent(new Event('change', {bubbles:true}));
return {found:true};`, valuesJSON)
	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, notFoundErr(p.targetParams)
	}
	return map[string]any{"ok": true}, nil
}

func (e *Executor) checkAction(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p targetParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	loc, err := resolveTarget(s, p)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	checked := req.Action == wire.ActionCheck

	// First pass respects visibility; a hidden checkbox (common in custom
	// UI kits that style a sibling label instead) fails this pre-check and
	// is retried once with force, skipping the visibility gate.
	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, checkScriptBody(checked, false)))
	if err != nil {
		return nil, err
	}
	if m, ok := result.(map[string]any); ok && m["visible"] == false {
		result, err = s.Backend.Evaluate(ctx, idx, buildScript(loc, checkScriptBody(checked, true)))
		if err != nil {
			return nil, err
		}
	}
	if !foundIn(result) {
		return nil, notFoundErr(p)
	}
	return map[string]any{"ok": true}, nil
}

func checkScriptBody(checked, force bool) string {
	visibilityGuard := ""
	if !force {
		visibilityGuard = `
var style = window.getComputedStyle(el);
if (style.display === 'none' || style.visibility === 'hidden' || el.offsetParent === null) {
  return {found:true, visible:false};
}`
	}
	return fmt.Sprintf(`
if (!el) return {found:false};
%s
el.checked = %v;
el.dispatchEvent(new Event('input', {bubbles:true}));
el.dispatchEvent(new Event('change', {bubbles:true}));
return {found:true, visible:true};`, visibilityGuard, checked)
}

func (e *Executor) clearOrSelectAll(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p targetParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	loc, err := resolveTarget(s, p)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	var body string
	if req.Action == wire.ActionClear {
		body = `if (!el) return {found:false}; el.focus(); el.value = ''; el.dispatchEvent(new Event('input', {bubbles:true})); el.dispatchEvent(new Event('change', {bubbles:true})); return {found:true};`
	} else {
		body = `if (!el) return {found:false}; el.focus(); el.select(); return {found:true};`
	}
	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, notFoundErr(p)
	}
	return map[string]any{"ok": true}, nil
}

type setValueParams struct {
	targetParams
	Value string   `json:"value"`
	Files []string `json:"files"`
}

// setValue also carries the upload-files interaction (see upload.go):
// when Files is non-empty, this is categorized CategoryUpload by the
// policy gate rather than CategoryFill, but the wire action is the same.
func (e *Executor) setValue(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p setValueParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	if len(p.Files) > 0 {
		return e.uploadFiles(ctx, s, req, p)
	}
	loc, err := resolveTarget(s, p.targetParams)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf(`if (!el) return {found:false}; el.value = %s; el.dispatchEvent(new Event('input', {bubbles:true})); el.dispatchEvent(new Event('change', {bubbles:true})); return {found:true};`, jsStringLiteral(p.Value))
	result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, notFoundErr(p.targetParams)
	}
	return map[string]any{"ok": true}, nil
}

type scrollParams struct {
	targetParams
	DX int `json:"dx"`
	DY int `json:"dy"`
}

func (e *Executor) scroll(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p scrollParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}

	if req.Action == wire.ActionScrollIntoView || p.Target != "" {
		loc, err := resolveTarget(s, p.targetParams)
		if err != nil {
			return nil, err
		}
		body := `if (!el) return {found:false}; el.scrollIntoView({block:'center'}); return {found:true};`
		result, err := s.Backend.Evaluate(ctx, idx, buildScript(loc, body))
		if err != nil {
			return nil, err
		}
		if !foundIn(result) {
			return nil, notFoundErr(p.targetParams)
		}
		return map[string]any{"ok": true}, nil
	}

	script := fmt.Sprintf("window.scrollBy(%d, %d); return {found:true};", p.DX, p.DY)
	if _, err := s.Backend.Evaluate(ctx, idx, fmt.Sprintf("(function(){%s})()", script)); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func foundIn(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	found, _ := m["found"].(bool)
	return found
}

func notFoundErr(p targetParams) error {
	return wire.New(wire.KindNotFound, "no element matched %q", p.Target)
}


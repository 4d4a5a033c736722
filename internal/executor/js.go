package executor

import (
	"encoding/json"
	"fmt"

	"github.com/agent-browser/daemon/internal/browser"
)

// locatorPrelude defines __abLocate(spec), a small in-page helper that
// resolves a Locator (selector, or role+name+nth from a ref) to a single
// DOM element. Every interaction/query script is built by appending a
// one-line call onto this prelude, so only one piece of JS needs to agree
// with Go's Locator shape.
const locatorPrelude = `
function __abLocate(spec) {
  var all;
  if (spec.selector) {
    all = Array.prototype.slice.call(document.querySelectorAll(spec.selector));
  } else {
    all = Array.prototype.slice.call(document.querySelectorAll('[role], a, button, input, select, textarea, [aria-label]'));
    all = all.filter(function (el) {
      var role = el.getAttribute('role') || __abImplicitRole(el);
      if (spec.role && role !== spec.role) return false;
      var name = (el.getAttribute('aria-label') || el.textContent || el.value || '').trim();
      if (spec.name && name.indexOf(spec.name) === -1) return false;
      return true;
    });
  }
  if (spec.hasNth) {
    return all[spec.nth] || null;
  }
  return all[0] || null;
}
function __abImplicitRole(el) {
  var tag = el.tagName.toLowerCase();
  if (tag === 'a') return 'link';
  if (tag === 'button') return 'button';
  if (tag === 'input') {
    var t = (el.getAttribute('type') || 'text').toLowerCase();
    if (t === 'checkbox') return 'checkbox';
    if (t === 'radio') return 'radio';
    return 'textbox';
  }
  if (tag === 'select') return 'combobox';
  if (tag === 'textarea') return 'textbox';
  return tag;
}
`

// locatorSpecJSON marshals a Locator into the shape __abLocate expects.
func locatorSpecJSON(loc browser.Locator) string {
	spec := struct {
		Selector string `json:"selector"`
		Role     string `json:"role"`
		Name     string `json:"name"`
		Nth      int    `json:"nth"`
		HasNth   bool   `json:"hasNth"`
	}{
		Selector: loc.Selector,
		Role:     loc.Role,
		Name:     loc.Name,
		Nth:      loc.Nth,
		HasNth:   loc.HasNth,
	}
	data, _ := json.Marshal(spec)
	return string(data)
}

// buildScript wraps body (which may reference `el`, bound from locating
// spec, and `el` only — callers needing the element first check `if (!el)
// return {found:false}`) in the locator prelude.
func buildScript(loc browser.Locator, body string) string {
	return fmt.Sprintf(`(function(){
%s
var el = __abLocate(%s);
%s
})()`, locatorPrelude, locatorSpecJSON(loc), body)
}

// jsStringLiteral safely embeds an arbitrary Go string as a JS string
// literal via JSON encoding (JSON string syntax is a strict subset of JS
// string syntax).
func jsStringLiteral(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

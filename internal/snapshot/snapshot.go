// Package snapshot implements the accessibility-tree capture and ref-map
// system (C5): deterministic ref assignment, compact text rendering, and
// resolution from ref back to a driver locator.
package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agent-browser/daemon/internal/browser"
)

// Options controls how a tree is walked and rendered.
type Options struct {
	Interactive bool
	Compact     bool
	MaxDepth    int // 0 means unlimited
	Selector    string
}

// RefEntry is one ref map entry: the role/name/nth triple needed to
// reconstruct a Locator without re-walking the tree.
type RefEntry struct {
	Role string
	Name string
	Nth  int
	// HasNth is true only when this (role,name) pair was not unique in the
	// walked tree; a ref whose pair was unique carries no nth (nth 0 is
	// still meaningful when there were duplicates).
	HasNth bool
}

// RefMap maps ref string ("e3") to the node it denotes. It is owned by the
// session and replaced wholesale on each new snapshot.
type RefMap map[string]RefEntry

// interactiveRoles is the allowlist Options.Interactive filters to: button,
// link, textbox, checkbox, and the other roles a user can act on.
var interactiveRoles = map[string]bool{
	"button": true, "link": true, "textbox": true, "checkbox": true,
	"radio": true, "combobox": true, "slider": true, "switch": true,
	"tab": true, "menuitem": true, "option": true, "searchbox": true,
	"spinbutton": true,
}

// Tree is the snapshot result: the rendered compact text plus the ref map
// that produced it.
type Tree struct {
	Text string
	Refs RefMap
}

// Capture walks root depth-first pre-order, assigning refs under opts, and
// renders the compact text form.
func Capture(root browser.AXNode, opts Options) Tree {
	w := &walker{
		opts:    opts,
		refs:    make(RefMap),
		counts:  make(map[string]int),
		indices: make(map[string]int),
	}
	w.walk(root, 0)

	return Tree{Text: w.sb.String(), Refs: w.refs}
}

type walker struct {
	opts Options
	sb   strings.Builder
	refs RefMap
	next int

	// counts is the total occurrences of each (role,name) key across the
	// whole walked tree, computed by a pre-pass so nth can be assigned
	// correctly on the first occurrence without a second walk of the output.
	counts  map[string]int
	indices map[string]int
}

func pairKey(role, name string) string { return role + "\x00" + name }

// walk assigns refs in two depth-first pre-order traversals: nth is only
// meaningful relative to the final count, so it first tallies occurrences
// of every (role,name) pair reachable under the filter, then re-walks to
// number refs and assign nth in the same deterministic order. This keeps
// the ref assignment's pre-order guarantee exact for ties.
func (w *walker) walk(node browser.AXNode, depth int) {
	w.tally(node, depth)
	w.assign(node, depth)
}

func (w *walker) included(node browser.AXNode) bool {
	if w.opts.Interactive && !interactiveRoles[node.Role] {
		return false
	}
	if w.opts.Compact && node.Name == "" && len(node.Children) == 0 {
		return false
	}
	return true
}

func (w *walker) withinDepth(depth int) bool {
	return w.opts.MaxDepth <= 0 || depth <= w.opts.MaxDepth
}

func (w *walker) tally(node browser.AXNode, depth int) {
	if !w.withinDepth(depth) {
		return
	}
	if w.included(node) {
		w.counts[pairKey(node.Role, node.Name)]++
	}
	for _, child := range node.Children {
		w.tally(child, depth+1)
	}
}

func (w *walker) assign(node browser.AXNode, depth int) {
	if !w.withinDepth(depth) {
		return
	}
	if w.included(node) {
		key := pairKey(node.Role, node.Name)
		total := w.counts[key]
		nth := w.indices[key]
		w.indices[key] = nth + 1

		w.next++
		ref := fmt.Sprintf("e%d", w.next)
		entry := RefEntry{Role: node.Role, Name: node.Name}
		if total > 1 {
			entry.Nth = nth
			entry.HasNth = true
		}
		w.refs[ref] = entry

		w.sb.WriteString(strings.Repeat("  ", depth))
		w.sb.WriteString(fmt.Sprintf("[%s] %s \"%s\"\n", ref, node.Role, node.Name))
	}
	for _, child := range node.Children {
		w.assign(child, depth+1)
	}
}

// refPattern matches the bare form: the letter "e" followed by a positive
// decimal number without leading zeros, e.g. "e12". The @ and ref= forms strip their prefix before matching this.
var refPattern = regexp.MustCompile(`^e[1-9][0-9]*$`)

// IsRef reports whether s is syntactically a ref in any accepted form:
// "e1", "@e1", "ref=e1".
func IsRef(s string) bool {
	_, ok := bareForm(s)
	return ok
}

// IsExplicitRef reports whether s uses one of the unambiguous ref prefixes
// (@ or ref=). The bare "eN" form is only a ref if the lookup against the
// current ref map succeeds; a selector that happens to look like "e1" is
// otherwise still a selector.
func IsExplicitRef(s string) bool {
	return strings.HasPrefix(s, "@") || strings.HasPrefix(s, "ref=")
}

func bareForm(s string) (string, bool) {
	switch {
	case strings.HasPrefix(s, "@"):
		bare := s[1:]
		return bare, refPattern.MatchString(bare)
	case strings.HasPrefix(s, "ref="):
		bare := s[len("ref="):]
		return bare, refPattern.MatchString(bare)
	default:
		return s, refPattern.MatchString(s)
	}
}

// ErrStaleRef-style nil-returning API: Resolve returns (Locator{}, false)
// for a ref absent from the map; callers report <StaleRef>.

// Resolve looks up ref (accepting any of the three syntactic forms) in refs
// and returns the Locator it denotes. ok is false if ref is not
// syntactically a ref, or is syntactically valid but absent from refs.
func Resolve(ref string, refs RefMap) (browser.Locator, bool) {
	bare, syntactically := bareForm(ref)
	if !syntactically {
		return browser.Locator{}, false
	}
	entry, ok := refs[bare]
	if !ok {
		return browser.Locator{}, false
	}
	loc := browser.Locator{Role: entry.Role, Name: entry.Name}
	if entry.HasNth {
		loc.Nth = entry.Nth
		loc.HasNth = true
	}
	return loc, true
}

// ParseRefNumber extracts the numeric N from a ref's bare form "eN", used
// only for diagnostics/logging, never for map lookups (which are by full
// string key).
func ParseRefNumber(ref string) (int, bool) {
	bare, ok := bareForm(ref)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(bare, "e"))
	if err != nil {
		return 0, false
	}
	return n, true
}

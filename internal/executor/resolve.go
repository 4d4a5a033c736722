package executor

import (
	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/snapshot"
	"github.com/agent-browser/daemon/internal/wire"
)

// targetParams is embedded by every request shape that accepts a ref-or-
// selector target, carried as the single "target" field the wire protocol
// dispatches through is_ref: "e1"/"@e1"/"ref=e1" name a ref, anything else
// is a raw selector.
type targetParams struct {
	Target string `json:"target"`
}

// resolveTarget turns a target string into a browser.Locator. The @ and
// ref= forms are unambiguous refs; a ref that doesn't appear in the
// session's current ref map (stale, or from a snapshot taken before the
// last navigation) fails with <StaleRef>. The bare "eN" form is
// ambiguous — it's resolved as a ref only if the lookup succeeds,
// otherwise it falls through and is treated as a selector. An empty
// target fails with <InvalidArgument> — the caller must name one.
func resolveTarget(s *session.Session, t targetParams) (browser.Locator, error) {
	if t.Target == "" {
		return browser.Locator{}, wire.New(wire.KindInvalidArgument, "target is required")
	}
	if snapshot.IsExplicitRef(t.Target) {
		loc, ok := snapshot.Resolve(t.Target, s.CurrentRefMap())
		if !ok {
			return browser.Locator{}, wire.New(wire.KindStaleRef, "ref %q is not present in the current snapshot", t.Target)
		}
		return loc, nil
	}
	if snapshot.IsRef(t.Target) {
		if loc, ok := snapshot.Resolve(t.Target, s.CurrentRefMap()); ok {
			return loc, nil
		}
	}
	return browser.Locator{Selector: t.Target}, nil
}

// activePageIndex returns the session's current active page index, failing
// with <InvalidArgument> if no page is open yet (the launch/tab_new path
// must run first).
func activePageIndex(s *session.Session) (int, error) {
	if _, ok := s.ActivePage(); !ok {
		return 0, wire.New(wire.KindInvalidArgument, "no active page; launch or open a tab first")
	}
	return s.ActiveIndex(), nil
}

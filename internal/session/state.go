package session

import (
	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/snapshot"
)

// SetSnapshot installs a freshly captured tree as the session's current ref
// map, invalidating every ref from the previous snapshot: a new snapshot
// always invalidates all prior refs.
func (s *Session) SetSnapshot(tree snapshot.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSnap = tree
	s.RefMap = tree.Refs
	s.refGen++
}

// InvalidateRefMap clears the current ref map without installing a new
// snapshot, so a stale ref minted before a DOM-changing event (navigate,
// history traversal, tab switch/close) fails lookup instead of silently
// resolving against whatever now occupies that role+name.
func (s *Session) InvalidateRefMap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RefMap = nil
	s.refGen++
}

// CurrentRefMap returns the ref map produced by the most recent snapshot.
func (s *Session) CurrentRefMap() snapshot.RefMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.RefMap
}

// LastSnapshotText returns the rendered text of the most recent snapshot,
// used by diff_snapshot.
func (s *Session) LastSnapshotText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnap.Text
}

// SetRoute installs or replaces a route interception pattern.
func (s *Session) SetRoute(pattern string, h RouteHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[pattern] = routeHandler(h)
}

// RouteHandler is the exported shape of a configured route fulfillment or
// abort, mirroring the unexported storage type.
type RouteHandler struct {
	Pattern     string
	Status      int
	Body        string
	ContentType string
	Abort       bool
}

// Unroute removes a previously installed route pattern, reporting whether
// it existed.
func (s *Session) Unroute(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[pattern]; !ok {
		return false
	}
	delete(s.routes, pattern)
	return true
}

// Routes returns a copy of the currently installed route handlers.
func (s *Session) Routes() map[string]RouteHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]RouteHandler, len(s.routes))
	for k, v := range s.routes {
		out[k] = RouteHandler(v)
	}
	return out
}

// SetOriginHeaders installs extra headers scoped to an origin (empty
// origin means global).
func (s *Session) SetOriginHeaders(origin string, headers map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headerRoutes[origin] = headers
}

// HeadersForOrigin returns the extra headers configured for origin, falling
// back to the global ("") entry if origin has none of its own.
func (s *Session) HeadersForOrigin(origin string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.headerRoutes[origin]; ok {
		return h
	}
	return s.headerRoutes[""]
}

// RecordDialog appends a dialog event to the dialog sink.
func (s *Session) RecordDialog(d DialogRecord) {
	s.Dialogs.Add(d)
}

// DialogDisposition is the installed accept/dismiss handler for the next
// dialog, set by the `dialog` action.
type DialogDisposition struct {
	Accept     bool
	PromptText string
}

// SetDialogDisposition installs the handler the backend should apply to the
// next dialog event.
func (s *Session) SetDialogDisposition(d DialogDisposition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogDisposition = &d
}

// DialogDispositionOrDefault returns the installed disposition, or a
// default dismiss if none was set.
func (s *Session) DialogDispositionOrDefault() DialogDisposition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialogDisposition != nil {
		return *s.dialogDisposition
	}
	return DialogDisposition{Accept: false}
}

// LaunchedWith reports whether the browser has already been launched with
// cfg, so a repeated `launch` with identical config can be treated as a
// no-op. changed is true if a launch happened before with
// different config (requiring a close-then-relaunch).
func (s *Session) LaunchedWith(cdpPort int, mode string) (already bool, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.launched {
		return false, false
	}
	same := s.launchCfg.CDPPort == cdpPort && string(s.launchCfg.Mode) == mode
	return true, !same
}

// MarkLaunched records that the browser has been launched with the given
// configuration.
func (s *Session) MarkLaunched(cdpPort int, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launched = true
	s.launchCfg = launchConfig{CDPPort: cdpPort, Mode: browser.Kind(mode)}
}

package executor

import (
	"context"
	"net/url"
	"strings"

	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

// allowedSchemes is the navigation URL scheme allowlist. Anything else
// (javascript:, chrome:, file-adjacent pseudo-schemes, etc.) is rejected
// before it ever reaches the backend, the same reserved-scheme boundary
// check the reference corpus applies to its own outbound-navigation paths.
var allowedSchemes = map[string]bool{
	"http": true, "https": true, "about": true, "data": true, "file": true,
}

func validateNavigationURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return wire.New(wire.KindInvalidArgument, "invalid URL %q: %v", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if !allowedSchemes[scheme] {
		return wire.New(wire.KindInvalidArgument, "navigation scheme %q is not allowed", scheme)
	}
	return nil
}

func (e *Executor) navigate(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p struct {
		URL       string `json:"url"`
		WaitUntil string `json:"waitUntil"`
		TimeoutMS int    `json:"timeoutMs"`
	}
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	if err := validateNavigationURL(p.URL); err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	opts := browser.NavigateOptions{WaitUntil: p.WaitUntil, TimeoutMS: p.TimeoutMS}
	if err := s.Backend.Navigate(ctx, idx, p.URL, opts); err != nil {
		return nil, err
	}
	s.SetActivePageURL(p.URL, "")
	s.InvalidateRefMap()
	return map[string]any{"url": p.URL}, nil
}

func (e *Executor) back(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	return e.historyNav(ctx, s, req, "window.history.back()")
}

func (e *Executor) forward(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	return e.historyNav(ctx, s, req, "window.history.forward()")
}

func (e *Executor) reload(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	return e.historyNav(ctx, s, req, "window.location.reload()")
}

// historyNav drives history navigation through Evaluate: back/forward/reload
// have no separate driver verb on the BrowserBackend interface since they
// are expressible as the page's own history API. Each of these changes the
// active page's DOM out from under any ref a prior snapshot minted, so the
// ref map is invalidated the same as a plain navigate.
func (e *Executor) historyNav(ctx context.Context, s *session.Session, req *wire.Request, script string) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
		return nil, err
	}
	s.InvalidateRefMap()
	return map[string]any{"ok": true}, nil
}

package executor

import (
	"context"

	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

type launchParams struct {
	CDPPort int    `json:"cdpPort"`
	Mode    string `json:"mode"`
}

// launch is a no-op if the backend is already running with identical
// config; a changed cdpPort or launch mode closes the current backend
// first, per the session's at-most-once-unless-reconfigured launch rule.
func (e *Executor) launch(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p launchParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	already, changed := s.LaunchedWith(p.CDPPort, p.Mode)
	if already && !changed {
		return map[string]any{"ok": true, "alreadyLaunched": true}, nil
	}
	if already && changed {
		if err := s.Backend.Close(ctx); err != nil {
			return nil, err
		}
	}

	pages, err := s.Backend.Pages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		pages = []browser.Page{{URL: "about:blank"}}
	}
	for _, pg := range pages {
		s.OpenPage(pg)
	}
	s.MarkLaunched(p.CDPPort, p.Mode)
	return map[string]any{"ok": true}, nil
}

func (e *Executor) closeSession(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	if err := s.Stop(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (e *Executor) tabNew(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p struct {
		URL string `json:"url"`
	}
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	page := browser.Page{URL: p.URL}
	if page.URL == "" {
		page.URL = "about:blank"
	}
	idx := s.OpenPage(page)
	if p.URL != "" {
		if err := validateNavigationURL(p.URL); err != nil {
			return nil, err
		}
		if err := s.Backend.Navigate(ctx, idx, p.URL, browser.NavigateOptions{}); err != nil {
			return nil, err
		}
		s.SetActivePageURL(p.URL, "")
	}
	s.InvalidateRefMap()
	return map[string]any{"index": idx}, nil
}

func (e *Executor) tabList(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	return map[string]any{"pages": s.Pages(), "activeIndex": s.ActiveIndex()}, nil
}

func (e *Executor) tabSwitch(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p struct {
		Index int `json:"index"`
	}
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	if err := s.SwitchPage(p.Index); err != nil {
		return nil, err
	}
	s.InvalidateRefMap()
	return map[string]any{"ok": true, "index": p.Index}, nil
}

func (e *Executor) tabClose(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p struct {
		Index int `json:"index"`
	}
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	if err := s.ClosePage(p.Index); err != nil {
		return nil, err
	}
	s.InvalidateRefMap()
	return map[string]any{"ok": true}, nil
}

func (e *Executor) frameSwitch(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p struct {
		Selector string `json:"selector"`
	}
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	s.SetFrame(p.Selector)
	return map[string]any{"ok": true}, nil
}

func (e *Executor) mainFrame(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	s.SetFrame("")
	return map[string]any{"ok": true}, nil
}

type dialogParams struct {
	Accept     bool   `json:"accept"`
	PromptText string `json:"promptText"`
}

func (e *Executor) dialog(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p dialogParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	s.SetDialogDisposition(session.DialogDisposition{Accept: p.Accept, PromptText: p.PromptText})
	return map[string]any{"ok": true}, nil
}

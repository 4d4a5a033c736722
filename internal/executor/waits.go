package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

const waitPollInterval = 100 * time.Millisecond

type waitParams struct {
	targetParams
	Text       string `json:"text"`
	URLPattern string `json:"urlPattern"`
	LoadState  string `json:"loadState"`
	Function   string `json:"function"`
	DurationMS int    `json:"durationMs"`
	TimeoutMS  int    `json:"timeoutMs"`
}

// wait polls its condition at a fixed interval until it holds or the
// timeout elapses, at which point it fails with <Timeout> rather than
// <DriverError> — the one family-wide exception to the usual error
// taxonomy mapping.
func (e *Executor) wait(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p waitParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}

	if p.DurationMS > 0 && p.Text == "" && p.URLPattern == "" && p.LoadState == "" && p.Function == "" && p.Target == "" {
		select {
		case <-time.After(time.Duration(p.DurationMS) * time.Millisecond):
			return map[string]any{"ok": true}, nil
		case <-ctx.Done():
			return nil, wire.New(wire.KindTimeout, "wait: %v", ctx.Err())
		}
	}

	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}

	var condition string
	switch {
	case p.Target != "":
		loc, err := resolveTarget(s, p.targetParams)
		if err != nil {
			return nil, err
		}
		condition = buildScript(loc, `return !!el;`)
	case p.Text != "":
		condition = fmt.Sprintf(`(function(){return document.body.innerText.indexOf(%s) !== -1;})()`, jsStringLiteral(p.Text))
	case p.URLPattern != "":
		condition = fmt.Sprintf(`(function(){return window.location.href.indexOf(%s) !== -1;})()`, jsStringLiteral(p.URLPattern))
	case p.LoadState != "":
		condition = loadStateExpr(p.LoadState)
	case p.Function != "":
		condition = fmt.Sprintf(`(function(){return (%s);})()`, p.Function)
	default:
		return nil, wire.New(wire.KindInvalidArgument, "wait requires one of ref/selector/text/urlPattern/loadState/function/durationMs")
	}

	deadline := time.Now().Add(waitTimeout(p.TimeoutMS))
	for {
		result, err := s.Backend.Evaluate(ctx, idx, condition)
		if err != nil {
			return nil, err
		}
		if truthy(result) {
			return map[string]any{"ok": true}, nil
		}
		if time.Now().After(deadline) {
			return nil, wire.New(wire.KindTimeout, "wait for %q did not become true", req.Action)
		}
		select {
		case <-time.After(waitPollInterval):
		case <-ctx.Done():
			return nil, wire.New(wire.KindTimeout, "wait: %v", ctx.Err())
		}
	}
}

func waitTimeout(ms int) time.Duration {
	if ms <= 0 {
		return session.DefaultActionTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func loadStateExpr(state string) string {
	switch strings.ToLower(state) {
	case "domcontentloaded":
		return `(function(){return document.readyState === 'interactive' || document.readyState === 'complete';})()`
	case "networkidle":
		return `(function(){return document.readyState === 'complete';})()`
	default: // "load"
		return `(function(){return document.readyState === 'complete';})()`
	}
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

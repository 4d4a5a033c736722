package executor

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

type routeParams struct {
	Pattern     string `json:"pattern"`
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"contentType"`
	Abort       bool   `json:"abort"`
}

func (e *Executor) route(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p routeParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	if p.Pattern == "" {
		return nil, wire.New(wire.KindInvalidArgument, "route requires a pattern")
	}
	s.SetRoute(p.Pattern, session.RouteHandler{
		Pattern:     p.Pattern,
		Status:      p.Status,
		Body:        p.Body,
		ContentType: p.ContentType,
		Abort:       p.Abort,
	})
	return map[string]any{"ok": true}, nil
}

type unrouteParams struct {
	Pattern string `json:"pattern"`
}

func (e *Executor) unroute(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p unrouteParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	removed := s.Unroute(p.Pattern)
	return map[string]any{"removed": removed}, nil
}

type requestsParams struct {
	Limit int `json:"limit"`
}

func (e *Executor) requests(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p requestsParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	limit := p.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	entries := s.Network.ReadLast(limit)
	return map[string]any{"entries": entries}, nil
}

type headersParams struct {
	Origin  string            `json:"origin"`
	Headers map[string]string `json:"headers"`
}

func (e *Executor) headers(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p headersParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	s.SetOriginHeaders(p.Origin, p.Headers)
	return map[string]any{"ok": true}, nil
}

type harParams struct {
	Path string `json:"path"`
}

func (e *Executor) harStart(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	if _, err := s.Backend.Call(ctx, idx, "Network.enable", map[string]any{}); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (e *Executor) harStop(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p harParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	har := buildHARLog(s.Network.ReadLast(1000))
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "marshal har")
	}
	if p.Path == "" {
		return map[string]any{"har": har}, nil
	}
	if err := os.WriteFile(p.Path, data, 0o600); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "write %s", p.Path)
	}
	return map[string]any{"path": p.Path, "entriesCount": len(har.Log.Entries)}, nil
}

// HAR 1.2 export shapes, pared down to what a session.NetworkEntry actually
// carries (method/url/status/timestamp, no header or body capture yet).

type harLog struct {
	Log harLogInner `json:"log"`
}

type harLogInner struct {
	Version string       `json:"version"`
	Creator harCreator   `json:"creator"`
	Entries []harLogEntry `json:"entries"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harLogEntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            int         `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
}

type harRequest struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	HTTPVersion string `json:"httpVersion"`
}

type harResponse struct {
	Status      int    `json:"status"`
	HTTPVersion string `json:"httpVersion"`
}

func buildHARLog(entries []session.NetworkEntry) harLog {
	out := make([]harLogEntry, 0, len(entries))
	for _, n := range entries {
		out = append(out, harLogEntry{
			StartedDateTime: n.At.Format(time.RFC3339Nano),
			Request: harRequest{
				Method:      n.Method,
				URL:         n.URL,
				HTTPVersion: "HTTP/1.1",
			},
			Response: harResponse{
				Status:      n.Status,
				HTTPVersion: "HTTP/1.1",
			},
		})
	}
	return harLog{Log: harLogInner{
		Version: "1.2",
		Creator: harCreator{Name: "agent-browserd", Version: "1.0"},
		Entries: out,
	}}
}

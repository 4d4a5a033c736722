package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/snapshot"
	"github.com/agent-browser/daemon/internal/wire"
)

type mediaParams struct {
	Path     string `json:"path"`
	FullPage bool   `json:"fullPage"`
	Format   string `json:"format"`
}

func (e *Executor) screenshot(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p mediaParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	raw, err := s.Backend.Call(ctx, idx, "Page.captureScreenshot", map[string]any{
		"format":                defaultString(p.Format, "png"),
		"captureBeyondViewport": p.FullPage,
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "decode screenshot result")
	}
	return encodeMediaResult(result.Data, p.Path)
}

func (e *Executor) pdf(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p mediaParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	raw, err := s.Backend.Call(ctx, idx, "Page.printToPDF", map[string]any{})
	if err != nil {
		return nil, err
	}
	var result struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "decode pdf result")
	}
	return encodeMediaResult(result.Data, p.Path)
}

// encodeMediaResult writes base64Data to path if given, else returns it
// inline, matching the path-optional convention shared by screenshot/pdf/
// video/trace/har.
func encodeMediaResult(base64Data, path string) (any, error) {
	if path == "" {
		return map[string]any{"base64": base64Data}, nil
	}
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "decode media payload")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "write %s", path)
	}
	return map[string]any{"path": path}, nil
}

func (e *Executor) videoStart(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	if _, err := s.Backend.Call(ctx, idx, "Page.startScreencast", map[string]any{"format": "png"}); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (e *Executor) videoStop(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p mediaParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	raw, err := s.Backend.Call(ctx, idx, "Page.stopScreencast", map[string]any{})
	if err != nil {
		return nil, err
	}
	var result struct {
		Data string `json:"data"`
	}
	_ = json.Unmarshal(raw, &result)
	return encodeMediaResult(result.Data, p.Path)
}

func (e *Executor) traceStart(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	if _, err := s.Backend.Call(ctx, idx, "Tracing.start", map[string]any{}); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (e *Executor) traceStop(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p mediaParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	raw, err := s.Backend.Call(ctx, idx, "Tracing.end", map[string]any{})
	if err != nil {
		return nil, err
	}
	var result struct {
		Data string `json:"data"`
	}
	_ = json.Unmarshal(raw, &result)
	return encodeMediaResult(result.Data, p.Path)
}

type diffParams struct {
	Baseline string `json:"baseline"`
	Current  string `json:"current"`
}

// diffSnapshot captures a fresh snapshot and compares its rendered text
// with the session's previous snapshot text, reporting added/removed whole
// lines. The baseline is always the most recent snapshot; named baselines
// are not kept.
func (e *Executor) diffSnapshot(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	baselineText := s.LastSnapshotText()

	tree, err := captureCurrentSnapshot(ctx, s, idx)
	if err != nil {
		return nil, err
	}
	added, removed := lineDiff(baselineText, tree.Text)
	return map[string]any{"added": added, "removed": removed}, nil
}

func captureCurrentSnapshot(ctx context.Context, s *session.Session, idx int) (snapshot.Tree, error) {
	root, err := s.Backend.AccessibilityTree(ctx, idx, "")
	if err != nil {
		return snapshot.Tree{}, err
	}
	tree := snapshot.Capture(root, snapshot.Options{})
	s.SetSnapshot(tree)
	return tree, nil
}

func lineDiff(before, after string) (added, removed []string) {
	beforeSet := lineSet(before)
	afterSet := lineSet(after)
	for line := range afterSet {
		if !beforeSet[line] {
			added = append(added, line)
		}
	}
	for line := range beforeSet {
		if !afterSet[line] {
			removed = append(removed, line)
		}
	}
	return added, removed
}

func lineSet(text string) map[string]bool {
	set := make(map[string]bool)
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			if i > start {
				set[text[start:i]] = true
			}
			start = i + 1
		}
	}
	return set
}

// diffScreenshot captures the active page as PNG and compares it with the
// base64 `baseline` param without ever returning image bytes.
// differingPixels counts differing bytes of the two base64-decoded images
// (plus their length difference), not decoded pixels, and no bounding
// region is computed.
func (e *Executor) diffScreenshot(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	raw, err := s.Backend.Call(ctx, idx, "Page.captureScreenshot", map[string]any{"format": "png"})
	if err != nil {
		return nil, err
	}
	var result struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "decode screenshot result")
	}
	// Without a `baseline` param this reports a zero-delta summary; no
	// prior capture is stored server-side, so callers keep it and pass it
	// back as `baseline`.
	var p diffParams
	_ = req.DecodeParams(&p)
	if p.Baseline == "" {
		return map[string]any{"differingPixels": 0, "region": nil}, nil
	}
	return comparePNGBase64(p.Baseline, result.Data)
}

func comparePNGBase64(baseline, current string) (any, error) {
	if baseline == current {
		return map[string]any{"differingPixels": 0, "region": nil}, nil
	}
	baseBytes, err1 := base64.StdEncoding.DecodeString(baseline)
	curBytes, err2 := base64.StdEncoding.DecodeString(current)
	if err1 != nil || err2 != nil {
		return nil, wire.New(wire.KindInvalidArgument, "diff_screenshot: baseline/current must be base64 PNG data")
	}
	diffCount := 0
	n := len(baseBytes)
	if len(curBytes) < n {
		n = len(curBytes)
	}
	for i := 0; i < n; i++ {
		if baseBytes[i] != curBytes[i] {
			diffCount++
		}
	}
	diffCount += abs(len(baseBytes) - len(curBytes))
	return map[string]any{"differingPixels": diffCount}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (e *Executor) diffURL(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	var p diffParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	result, err := s.Backend.Evaluate(ctx, idx, "(function(){return window.location.href;})()")
	if err != nil {
		return nil, err
	}
	current, _ := result.(string)
	if p.Current != "" {
		current = p.Current
	}
	return map[string]any{"changed": compareURLComponents(p.Baseline, current)}, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// compareURLComponents reports whether two URLs disagree on anything but
// trailing-slash-only path normalization.
func compareURLComponents(baseline, current string) bool {
	trim := func(u string) string {
		for len(u) > 0 && u[len(u)-1] == '/' {
			u = u[:len(u)-1]
		}
		return u
	}
	return trim(baseline) != trim(current)
}

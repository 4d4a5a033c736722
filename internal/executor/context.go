package executor

import (
	"context"
	"fmt"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

// browsingContextConfig covers every interact-family action that configures
// the browsing context rather than touching a specific element: viewport,
// useragent, device, geolocation, permissions, emulatemedia, offline,
// addstyle, timezone, locale, setcontent, addscript, addinitscript, pause.
// Most are expressed as a raw CDP command via Call; a few (addstyle,
// addscript, setcontent) are simpler as direct DOM mutation through
// Evaluate.
func (e *Executor) browsingContextConfig(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case wire.ActionViewport:
		var p struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Emulation.setDeviceMetricsOverride", map[string]any{
			"width": p.Width, "height": p.Height, "deviceScaleFactor": 1, "mobile": false,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionUserAgent:
		var p struct {
			UserAgent string `json:"userAgent"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Network.setUserAgentOverride", map[string]any{"userAgent": p.UserAgent}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionDevice:
		var p struct {
			Width     int     `json:"width"`
			Height    int     `json:"height"`
			Scale     float64 `json:"scale"`
			Mobile    bool    `json:"mobile"`
			UserAgent string  `json:"userAgent"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Emulation.setDeviceMetricsOverride", map[string]any{
			"width": p.Width, "height": p.Height, "deviceScaleFactor": p.Scale, "mobile": p.Mobile,
		}); err != nil {
			return nil, err
		}
		if p.UserAgent != "" {
			if _, err := s.Backend.Call(ctx, idx, "Network.setUserAgentOverride", map[string]any{"userAgent": p.UserAgent}); err != nil {
				return nil, err
			}
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionGeolocation:
		var p struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Accuracy  float64 `json:"accuracy"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Emulation.setGeolocationOverride", map[string]any{
			"latitude": p.Latitude, "longitude": p.Longitude, "accuracy": p.Accuracy,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionPermissions:
		var p struct {
			Origin      string   `json:"origin"`
			Permissions []string `json:"permissions"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Browser.grantPermissions", map[string]any{
			"origin": p.Origin, "permissions": p.Permissions,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionEmulateMedia:
		var p struct {
			Media  string `json:"media"`
			Scheme string `json:"colorScheme"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		features := []map[string]string{}
		if p.Scheme != "" {
			features = append(features, map[string]string{"name": "prefers-color-scheme", "value": p.Scheme})
		}
		if _, err := s.Backend.Call(ctx, idx, "Emulation.setEmulatedMedia", map[string]any{
			"media": p.Media, "features": features,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionOffline:
		var p struct {
			Offline bool `json:"offline"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Network.emulateNetworkConditions", map[string]any{
			"offline": p.Offline, "latency": 0, "downloadThroughput": -1, "uploadThroughput": -1,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionAddStyle:
		var p struct {
			CSS string `json:"css"`
			URL string `json:"url"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		var script string
		if p.URL != "" {
			script = fmt.Sprintf(`(function(){var l=document.createElement('link'); l.rel='stylesheet'; l.href=%s; document.head.appendChild(l); return true;})()`, jsStringLiteral(p.URL))
		} else {
			script = fmt.Sprintf(`(function(){var s=document.createElement('style'); s.textContent=%s; document.head.appendChild(s); return true;})()`, jsStringLiteral(p.CSS))
		}
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionTimezone:
		var p struct {
			TimezoneID string `json:"timezoneId"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Emulation.setTimezoneOverride", map[string]any{"timezoneId": p.TimezoneID}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionLocale:
		var p struct {
			Locale string `json:"locale"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Emulation.setLocaleOverride", map[string]any{"locale": p.Locale}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionSetContent:
		var p struct {
			HTML string `json:"html"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		script := fmt.Sprintf(`(function(){document.open(); document.write(%s); document.close(); return true;})()`, jsStringLiteral(p.HTML))
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionAddScript:
		var p struct {
			Content string `json:"content"`
			URL     string `json:"url"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		var script string
		if p.URL != "" {
			script = fmt.Sprintf(`(function(){var s=document.createElement('script'); s.src=%s; document.head.appendChild(s); return true;})()`, jsStringLiteral(p.URL))
		} else {
			script = fmt.Sprintf(`(function(){var s=document.createElement('script'); s.textContent=%s; document.head.appendChild(s); return true;})()`, jsStringLiteral(p.Content))
		}
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionAddInitScript:
		var p struct {
			Content string `json:"content"`
		}
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalidParams(req, err)
		}
		if _, err := s.Backend.Call(ctx, idx, "Page.addScriptToEvaluateOnNewDocument", map[string]any{"source": p.Content}); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case wire.ActionPause:
		return map[string]any{"ok": true}, nil

	default:
		return nil, unsupported(req)
	}
}

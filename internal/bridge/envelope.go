// Package bridge implements the two-socket gateway between a CDP-speaking
// driver and a browser extension's JSON-envelope protocol: one WebSocket
// endpoint a driver attaches to (/cdp/<uuid>), one an extension attaches to
// (/extension/<uuid>), and the six translation rules that make the pair
// look like a single CDP target to the driver side.
package bridge

import "encoding/json"

// cdpMessage is the standard CDP wire shape used on the driver-facing
// socket: a command carries id+method+params(+sessionId); a command result
// carries id+result or id+error; an event carries method+params(+sessionId)
// with no id at all.
type cdpMessage struct {
	ID        *int            `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *cdpError       `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the extension-facing protocol: {method, id?, params, result?,
// error?}. A request carries method+id+params; a reply to it carries the
// same id plus result or error; a relay-initiated notification (attachToTab
// completion aside) carries method+params with no id.
type envelope struct {
	Method string          `json:"method,omitempty"`
	ID     *int            `json:"id,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// forwardCDPCommandParams is what wraps a generic driver command (rule 5)
// before it crosses to the extension.
type forwardCDPCommandParams struct {
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// forwardCDPEventParams is what the extension wraps a CDP event in (rule 6)
// when it originates on the page side rather than as a command reply.
type forwardCDPEventParams struct {
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// attachToTabParams requests the extension attach its debugger to the
// current tab (rule 3).
type attachToTabParams struct {
	Flatten bool `json:"flatten"`
}

// targetInfo is the extension-reported description of the attached tab,
// cached so Target.getTargetInfo (rule 4) can answer without crossing.
type targetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
}

func asRawMessage(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

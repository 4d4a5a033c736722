package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agent-browser/daemon/internal/obs"
)

// pair owns one driver/extension socket pair, its pending-command table,
// and the synthetic session id it mints on attach. All mutable state is
// protected by mu; the session-serial discipline the daemon applies
// everywhere else means at most one outstanding relay command is ever
// in flight per driver command, but the pair itself may field commands
// from both the websocket-driven path and the in-process BrowserBackend
// path, so it still needs its own lock.
type pair struct {
	id     string
	log    *zap.Logger
	metric *obs.Metrics

	mu         sync.Mutex
	driverConn *websocket.Conn
	extConn    *websocket.Conn
	driverWMu  sync.Mutex
	extWMu     sync.Mutex

	pending   map[int]chan envelope
	nextRelay int32

	sessionSeq    int32
	syntheticSess string
	cachedTarget  *targetInfo

	extReady   chan struct{}
	extReadyMu sync.Mutex
	closed     bool
}

func newPair(id string, log *zap.Logger, metric *obs.Metrics) *pair {
	return &pair{
		id:       id,
		log:      log,
		metric:   metric,
		pending:  make(map[int]chan envelope),
		extReady: make(chan struct{}),
	}
}

// waitExtension blocks until the extension socket has attached or ctx is
// done, the boot-sequence wait spec.md describes.
func (p *pair) waitExtension(ctx context.Context) error {
	p.extReadyMu.Lock()
	ch := p.extReady
	p.extReadyMu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pair) attachDriver(conn *websocket.Conn) {
	p.mu.Lock()
	p.driverConn = conn
	p.mu.Unlock()
}

func (p *pair) attachExtension(conn *websocket.Conn) {
	p.mu.Lock()
	p.extConn = conn
	p.mu.Unlock()
	p.extReadyMu.Lock()
	close(p.extReady)
	p.extReadyMu.Unlock()
}

// detachExtension runs when the extension socket closes: every pending
// caller is rejected and the ready signal is reset so a future attach can
// be waited on again.
func (p *pair) detachExtension() {
	p.mu.Lock()
	p.extConn = nil
	pending := p.pending
	p.pending = make(map[int]chan envelope)
	p.extReadyMu.Lock()
	p.extReady = make(chan struct{})
	p.extReadyMu.Unlock()
	p.mu.Unlock()

	for id, ch := range pending {
		ch <- envelope{Error: &envelopeError{Code: -1, Message: "extension disconnected"}}
		close(ch)
		delete(pending, id)
	}
	if p.log != nil {
		p.log.Warn("bridge: extension disconnected, pending commands rejected", zap.String("pair", p.id))
	}
}

func (p *pair) writeDriver(msg cdpMessage) error {
	p.mu.Lock()
	conn := p.driverConn
	p.mu.Unlock()
	if conn == nil {
		return nil
	}
	p.driverWMu.Lock()
	defer p.driverWMu.Unlock()
	if p.metric != nil {
		p.metric.BridgeFrames.WithLabelValues("cdp", "out").Inc()
	}
	return conn.WriteJSON(msg)
}

func (p *pair) writeExtension(msg envelope) error {
	p.mu.Lock()
	conn := p.extConn
	p.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("bridge: no extension attached")
	}
	p.extWMu.Lock()
	defer p.extWMu.Unlock()
	if p.metric != nil {
		p.metric.BridgeFrames.WithLabelValues("extension", "out").Inc()
	}
	return conn.WriteJSON(msg)
}

// sendToExtension wraps method/params as a numbered extension request and
// blocks for its reply, honoring ctx cancellation.
func (p *pair) sendToExtension(ctx context.Context, method string, params any) (envelope, error) {
	raw, err := asRawMessage(params)
	if err != nil {
		return envelope{}, err
	}
	id := int(atomic.AddInt32(&p.nextRelay, 1))
	reply := make(chan envelope, 1)
	p.mu.Lock()
	p.pending[id] = reply
	p.mu.Unlock()

	if err := p.writeExtension(envelope{Method: method, ID: &id, Params: raw}); err != nil {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return envelope{}, err
	}

	select {
	case resp := <-reply:
		if resp.Error != nil {
			return envelope{}, fmt.Errorf("bridge: %s: %s", method, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return envelope{}, ctx.Err()
	}
}

// handleExtensionFrame dispatches one inbound extension-socket frame: a
// reply to a pending relay request, or a forwardCDPEvent notification that
// gets unwrapped and re-emitted to the driver (rule 6).
func (p *pair) handleExtensionFrame(raw []byte) {
	if p.metric != nil {
		p.metric.BridgeFrames.WithLabelValues("extension", "in").Inc()
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if p.log != nil {
			p.log.Warn("bridge: malformed extension frame", zap.Error(err))
		}
		return
	}

	if env.ID != nil {
		p.mu.Lock()
		ch, ok := p.pending[*env.ID]
		if ok {
			delete(p.pending, *env.ID)
		}
		p.mu.Unlock()
		if ok {
			ch <- env
			close(ch)
		}
		return
	}

	if env.Method == "forwardCDPEvent" {
		var fwd forwardCDPEventParams
		if err := json.Unmarshal(env.Params, &fwd); err != nil {
			if p.log != nil {
				p.log.Warn("bridge: malformed forwardCDPEvent", zap.Error(err))
			}
			return
		}
		sessID := fwd.SessionID
		if sessID == "" {
			p.mu.Lock()
			sessID = p.syntheticSess
			p.mu.Unlock()
		}
		_ = p.writeDriver(cdpMessage{Method: fwd.Method, Params: fwd.Params, SessionID: sessID})
	}
}

func (p *pair) nextSessionID() string {
	n := atomic.AddInt32(&p.sessionSeq, 1)
	return fmt.Sprintf("pw-tab-%d", n)
}

// dispatchCommand implements translation rules 1-5 against a decoded CDP
// method/params pair, regardless of whether the caller arrived over the
// driver websocket or through the in-process BrowserBackend.Call path —
// both exercise exactly this logic, so a session configured for bridge
// relay behaves identically whichever side issued the command.
func (p *pair) dispatchCommand(ctx context.Context, method string, params json.RawMessage, sessionID string) (json.RawMessage, error) {
	p.mu.Lock()
	synthetic := p.syntheticSess
	shutDown := p.closed
	p.mu.Unlock()
	if shutDown {
		return nil, fmt.Errorf("bridge: relay pair %s is shut down", p.id)
	}
	if synthetic != "" && sessionID == synthetic {
		sessionID = ""
	}

	switch method {
	case "Browser.getVersion":
		return json.Marshal(map[string]any{
			"protocolVersion": "1.3",
			"product":         "agent-browser-bridge/1.0",
			"revision":        "0",
			"userAgent":       "agent-browser-bridge",
			"jsVersion":       "",
		})

	case "Browser.setDownloadBehavior":
		return json.RawMessage(`{}`), nil

	case "Target.setAutoAttach":
		resp, err := p.sendToExtension(ctx, "attachToTab", attachToTabParams{Flatten: true})
		if err != nil {
			return nil, err
		}
		var info targetInfo
		if len(resp.Result) > 0 {
			_ = json.Unmarshal(resp.Result, &info)
		}
		p.mu.Lock()
		info.Attached = true
		p.cachedTarget = &info
		newSess := p.nextSessionID()
		p.syntheticSess = newSess
		p.mu.Unlock()

		_ = p.writeDriver(cdpMessage{
			Method: "Target.attachedToTarget",
			Params: mustMarshal(map[string]any{
				"sessionId":          newSess,
				"targetInfo":         targetInfoWithAttach(info),
				"waitingForDebugger": false,
			}),
		})
		return json.RawMessage(`{}`), nil

	case "Target.getTargetInfo":
		p.mu.Lock()
		cached := p.cachedTarget
		p.mu.Unlock()
		if cached == nil {
			return json.Marshal(map[string]any{"targetInfo": targetInfo{Attached: true}})
		}
		return json.Marshal(map[string]any{"targetInfo": targetInfoWithAttach(*cached)})

	default:
		resp, err := p.sendToExtension(ctx, "forwardCDPCommand", forwardCDPCommandParams{
			SessionID: sessionID,
			Method:    method,
			Params:    params,
		})
		if err != nil {
			return nil, err
		}
		return resp.Result, nil
	}
}

func targetInfoWithAttach(t targetInfo) map[string]any {
	return map[string]any{
		"targetId": t.TargetID,
		"type":     t.Type,
		"title":    t.Title,
		"url":      t.URL,
		"attached": t.Attached,
	}
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

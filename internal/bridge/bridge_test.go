package bridge

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeExtension dials a pair's extension URL and answers a fixed set of
// relay requests the way a minimal browser extension would, so tests can
// exercise the real WebSocket path end to end instead of poking pair
// internals directly.
type fakeExtension struct {
	conn *websocket.Conn
}

func dialFakeExtension(t *testing.T, url string) *fakeExtension {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial extension: %v", err)
	}
	return &fakeExtension{conn: conn}
}

// serve reads relay requests and answers each according to respond, until
// the connection closes or the test ends.
func (f *fakeExtension) serve(t *testing.T, respond func(env envelope) (json.RawMessage, bool)) {
	t.Helper()
	go func() {
		for {
			var env envelope
			if err := f.conn.ReadJSON(&env); err != nil {
				return
			}
			if env.ID == nil {
				continue
			}
			result, ok := respond(env)
			if !ok {
				continue
			}
			_ = f.conn.WriteJSON(envelope{ID: env.ID, Result: result})
		}
	}()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer("127.0.0.1:0", nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}

func TestBrowserGetVersionIsSynthetic(t *testing.T) {
	s := newTestServer(t)
	relay, _ := s.NewPair()

	raw, err := relay.Call(context.Background(), 0, "Browser.getVersion", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var decoded struct {
		Product string `json:"product"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Product == "" {
		t.Fatalf("expected a synthetic product string, got %q", decoded.Product)
	}
}

func TestSetDownloadBehaviorIsSynthetic(t *testing.T) {
	s := newTestServer(t)
	relay, _ := s.NewPair()

	raw, err := relay.Call(context.Background(), 0, "Browser.setDownloadBehavior", map[string]any{"behavior": "allow"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected empty object result, got %s", raw)
	}
}

func TestSetAutoAttachMintsSyntheticSessionAndCachesTarget(t *testing.T) {
	s := newTestServer(t)
	relay, pairInfo := s.NewPair()
	ext := dialFakeExtension(t, pairInfo.ExtensionURL)
	ext.serve(t, func(env envelope) (json.RawMessage, bool) {
		if env.Method != "attachToTab" {
			return nil, false
		}
		result, _ := json.Marshal(targetInfo{TargetID: "t1", Type: "page", URL: "https://example.com"})
		return result, true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.WaitExtension(ctx); err != nil {
		t.Fatalf("WaitExtension: %v", err)
	}

	if _, err := relay.Call(ctx, 0, "Target.setAutoAttach", map[string]any{"autoAttach": true}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	relay.pair.mu.Lock()
	sess := relay.pair.syntheticSess
	relay.pair.mu.Unlock()
	if !strings.HasPrefix(sess, "pw-tab-") {
		t.Fatalf("expected a synthetic pw-tab-<N> session id, got %q", sess)
	}

	raw, err := relay.Call(ctx, 0, "Target.getTargetInfo", nil)
	if err != nil {
		t.Fatalf("Call getTargetInfo: %v", err)
	}
	var decoded struct {
		TargetInfo struct {
			TargetID string `json:"targetId"`
			Attached bool   `json:"attached"`
		} `json:"targetInfo"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TargetInfo.TargetID != "t1" || !decoded.TargetInfo.Attached {
		t.Fatalf("unexpected cached target info: %+v", decoded.TargetInfo)
	}
}

func TestGenericCommandForwardsVerbatim(t *testing.T) {
	s := newTestServer(t)
	relay, pairInfo := s.NewPair()
	ext := dialFakeExtension(t, pairInfo.ExtensionURL)
	ext.serve(t, func(env envelope) (json.RawMessage, bool) {
		if env.Method != "forwardCDPCommand" {
			return nil, false
		}
		var params forwardCDPCommandParams
		_ = json.Unmarshal(env.Params, &params)
		if params.Method != "Page.navigate" {
			return nil, false
		}
		result, _ := json.Marshal(map[string]any{"frameId": "f1"})
		return result, true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.WaitExtension(ctx); err != nil {
		t.Fatalf("WaitExtension: %v", err)
	}

	raw, err := relay.Call(ctx, 0, "Page.navigate", map[string]any{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var decoded struct {
		FrameID string `json:"frameId"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.FrameID != "f1" {
		t.Fatalf("expected forwarded result, got %+v", decoded)
	}
}

func TestExtensionDisconnectRejectsPendingCommands(t *testing.T) {
	s := newTestServer(t)
	relay, pairInfo := s.NewPair()
	ext := dialFakeExtension(t, pairInfo.ExtensionURL)
	// No responder installed: every relay request from this extension is
	// left unanswered, so it stays pending until the socket closes.
	ext.serve(t, func(envelope) (json.RawMessage, bool) { return nil, false })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.WaitExtension(ctx); err != nil {
		t.Fatalf("WaitExtension: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := relay.Call(context.Background(), 0, "Page.navigate", map[string]any{"url": "https://example.com"})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	_ = ext.conn.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected pending command to fail after extension disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pending command was never rejected after disconnect")
	}
}

func TestDriverSideReceivesForwardedCommand(t *testing.T) {
	s := newTestServer(t)
	_, pairInfo := s.NewPair()
	ext := dialFakeExtension(t, pairInfo.ExtensionURL)
	ext.serve(t, func(env envelope) (json.RawMessage, bool) {
		if env.Method != "forwardCDPCommand" {
			return nil, false
		}
		result, _ := json.Marshal(map[string]any{"ok": true})
		return result, true
	})

	driverConn, _, err := websocket.DefaultDialer.Dial(pairInfo.DriverURL, nil)
	if err != nil {
		t.Fatalf("dial driver: %v", err)
	}
	defer driverConn.Close()

	id := 7
	if err := driverConn.WriteJSON(cdpMessage{ID: &id, Method: "Page.enable"}); err != nil {
		t.Fatalf("write driver command: %v", err)
	}

	_ = driverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply cdpMessage
	if err := driverConn.ReadJSON(&reply); err != nil {
		t.Fatalf("read driver reply: %v", err)
	}
	if reply.ID == nil || *reply.ID != id {
		t.Fatalf("expected reply id %d, got %+v", id, reply.ID)
	}
	if reply.Error != nil {
		t.Fatalf("unexpected error reply: %+v", reply.Error)
	}
}

func TestInviteURLCarriesRelayURLAndCorrelationID(t *testing.T) {
	p := Pair{ExtensionURL: "ws://127.0.0.1:9999/extension/abc"}
	got := InviteURL("ext-id-123", p, "corr-1", "")
	if !strings.Contains(got, "chrome-extension://ext-id-123/connect.html") {
		t.Fatalf("invite URL missing expected prefix: %s", got)
	}
	if !strings.Contains(got, "protocolVersion=1") {
		t.Fatalf("invite URL missing protocolVersion: %s", got)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse invite URL: %v", err)
	}
	q := u.Query()
	if q.Get("mcpRelayUrl") != p.ExtensionURL {
		t.Fatalf("invite URL missing relay URL: %s", got)
	}
	if !strings.Contains(q.Get("client"), `"corr-1"`) {
		t.Fatalf("invite URL missing correlation id: %s", got)
	}
}

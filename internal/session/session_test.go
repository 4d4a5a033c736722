package session

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/confirm"
	"github.com/agent-browser/daemon/internal/paths"
	"github.com/agent-browser/daemon/internal/policy"
	"github.com/agent-browser/daemon/internal/wire"
)

// fakeRunner records the last request it ran and returns a canned value.
type fakeRunner struct {
	calls  []wire.Action
	result any
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, s *Session, req *wire.Request) (any, error) {
	f.calls = append(f.calls, req.Action)
	return f.result, f.err
}

func newTestSession(t *testing.T, runner Runner, pol *policy.Store) *Session {
	t.Helper()
	if pol == nil {
		var err error
		pol, err = policy.NewStore(filepath.Join(t.TempDir(), "missing.yaml"), nil)
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
	}
	s := New("test", nil, Deps{
		Confirm: confirm.NewRegistry(),
		Policy:  pol,
		Runner:  runner,
	})
	s.MarkRunning()
	return s
}

func req(action wire.Action, params any) *wire.Request {
	r := &wire.Request{ID: "r1", Action: action}
	if params != nil {
		data, _ := json.Marshal(params)
		r.Params = data
	}
	return r
}

func TestDispatchAllowsAndRunsAction(t *testing.T) {
	runner := &fakeRunner{result: map[string]any{"ok": true}}
	s := newTestSession(t, runner, nil)

	resp := s.Dispatch(context.Background(), req(wire.ActionNavigate, map[string]string{"url": "https://example.com"}))
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if len(runner.calls) != 1 || runner.calls[0] != wire.ActionNavigate {
		t.Fatalf("expected runner to be called once with navigate, got %v", runner.calls)
	}
}

func TestDispatchDraining(t *testing.T) {
	s := newTestSession(t, &fakeRunner{}, nil)
	s.Drain()
	resp := s.Dispatch(context.Background(), req(wire.ActionNavigate, nil))
	if resp.Success {
		t.Fatalf("expected draining session to refuse requests")
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	s := newTestSession(t, &fakeRunner{}, nil)
	resp := s.Dispatch(context.Background(), req(wire.Action("not_a_real_action"), nil))
	if resp.Success {
		t.Fatalf("expected unknown action to fail")
	}
}

func TestDispatchDenyPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("default: allow\ndeny: [navigate]\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	pol, err := policy.NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	runner := &fakeRunner{}
	s := newTestSession(t, runner, pol)

	resp := s.Dispatch(context.Background(), req(wire.ActionNavigate, map[string]string{"url": "https://example.com"}))
	if resp.Success {
		t.Fatalf("expected deny")
	}
	if len(runner.calls) != 0 {
		t.Fatalf("runner should not have been called, got %v", runner.calls)
	}
}

func TestDispatchConfirmThenConfirm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("default: allow\nconfirm: [navigate]\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	pol, err := policy.NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	runner := &fakeRunner{result: "done"}
	s := newTestSession(t, runner, pol)

	resp := s.Dispatch(context.Background(), req(wire.ActionNavigate, map[string]string{"url": "https://example.com"}))
	if resp.Success || !resp.ConfirmationRequired || resp.ConfirmationID == "" {
		t.Fatalf("expected confirmation required, got %+v", resp)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("runner should not run before confirmation, got %v", runner.calls)
	}

	confirmResp := s.Dispatch(context.Background(), req(wire.ActionConfirm, map[string]string{"id": resp.ConfirmationID}))
	if !confirmResp.Success {
		t.Fatalf("expected confirm to run the deferred action, got %+v", confirmResp)
	}
	if len(runner.calls) != 1 || runner.calls[0] != wire.ActionNavigate {
		t.Fatalf("expected deferred navigate to run once, got %v", runner.calls)
	}

	// Confirmation ids are single-use.
	again := s.Dispatch(context.Background(), req(wire.ActionConfirm, map[string]string{"id": resp.ConfirmationID}))
	if again.Success {
		t.Fatalf("expected re-using a consumed confirmation id to fail")
	}
}

func TestDispatchDeny(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("default: allow\nconfirm: [navigate]\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	pol, err := policy.NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	runner := &fakeRunner{}
	s := newTestSession(t, runner, pol)

	resp := s.Dispatch(context.Background(), req(wire.ActionNavigate, map[string]string{"url": "https://example.com"}))
	deny := s.Dispatch(context.Background(), req(wire.ActionDeny, map[string]string{"id": resp.ConfirmationID}))
	if !deny.Success {
		t.Fatalf("expected deny to succeed as a terminal response, got %+v", deny)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("denied action must never reach the runner, got %v", runner.calls)
	}
}

func TestClosePageRefusesLastPage(t *testing.T) {
	s := newTestSession(t, &fakeRunner{}, nil)
	s.OpenPage(browser.Page{URL: "about:blank"})

	if err := s.ClosePage(0); err == nil {
		t.Fatalf("expected closing the last page to be refused")
	}
	if len(s.Pages()) != 1 {
		t.Fatalf("page should not have been removed")
	}
}

func TestClosePageShiftsActiveIndex(t *testing.T) {
	s := newTestSession(t, &fakeRunner{}, nil)
	s.OpenPage(browser.Page{URL: "page-0"})
	s.OpenPage(browser.Page{URL: "page-1"})
	s.OpenPage(browser.Page{URL: "page-2"})
	if s.ActiveIndex() != 2 {
		t.Fatalf("expected active index 2 after opening three pages, got %d", s.ActiveIndex())
	}

	if err := s.ClosePage(2); err != nil {
		t.Fatalf("ClosePage: %v", err)
	}
	if s.ActiveIndex() != 1 {
		t.Fatalf("expected active index to shift left to 1, got %d", s.ActiveIndex())
	}
	if got := len(s.Pages()); got != 2 {
		t.Fatalf("expected 2 pages remaining, got %d", got)
	}
}

func TestSwitchPageOutOfRange(t *testing.T) {
	s := newTestSession(t, &fakeRunner{}, nil)
	s.OpenPage(browser.Page{URL: "page-0"})
	if err := s.SwitchPage(5); err == nil {
		t.Fatalf("expected out-of-range switch to fail")
	}
}

func TestListenDetectsStaleSocket(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(paths.SocketDirEnv, dir)

	ln1, sockPath, err := Listen("stale-test")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ln1.Close() // leaves the socket file behind without an owning listener

	if _, err := os.Stat(sockPath); err != nil {
		t.Fatalf("expected leftover socket file, got %v", err)
	}

	ln2, sockPath2, err := Listen("stale-test")
	if err != nil {
		t.Fatalf("Listen should remove the stale socket and rebind, got %v", err)
	}
	defer ln2.Close()
	if sockPath2 != sockPath {
		t.Fatalf("expected same socket path, got %s vs %s", sockPath, sockPath2)
	}
}

func TestListenRefusesLiveSocket(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(paths.SocketDirEnv, dir)

	ln, _, err := Listen("live-test")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	// Accept in the background so DialTimeout in the second Listen's probe
	// succeeds instead of hitting the backlog only.
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	if _, _, err := Listen("live-test"); err == nil {
		t.Fatalf("expected Listen to refuse a socket with a live owner")
	}

	select {
	case conn := <-accepted:
		if conn != nil {
			conn.Close()
		}
	case <-time.After(time.Second):
	}
}

package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agent-browser/daemon/internal/obs"
)

// Server is the relay's single HTTP listener hosting the two WebSocket
// endpoints. It is bound to 127.0.0.1 only — a locally-brokered control
// surface has no business listening beyond loopback.
type Server struct {
	log    *zap.Logger
	metric *obs.Metrics

	mu    sync.Mutex
	pairs map[string]*pair

	listener   net.Listener
	httpServer *http.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer builds a relay server bound to addr (expected loopback, e.g.
// "127.0.0.1:0" to let the OS pick a port) and starts serving immediately.
func NewServer(addr string, log *zap.Logger, metric *obs.Metrics) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen on %s: %w", addr, err)
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok && !tcpAddr.IP.IsLoopback() {
		_ = ln.Close()
		return nil, fmt.Errorf("bridge: refusing to bind non-loopback address %s", addr)
	}

	s := &Server{log: log, metric: metric, pairs: make(map[string]*pair), listener: ln}

	r := chi.NewRouter()
	r.Get("/cdp/{id}", s.handleDriver)
	r.Get("/extension/{id}", s.handleExtension)
	s.httpServer = &http.Server{Handler: r}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Warn("bridge: server stopped", zap.Error(err))
			}
		}
	}()
	return s, nil
}

// Addr returns the bound loopback address (host:port), useful once the OS
// has assigned a port from ":0".
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Pair is the boot-sequence entry point: it mints a fresh driver/extension
// uuid path pair, registers the pair's relay state, and returns enough to
// build both the /cdp and /extension URLs plus the extension invite URL.
type Pair struct {
	DriverID     string
	ExtensionID  string
	DriverURL    string
	ExtensionURL string
}

// NewPair generates the uuid path pair for one relay session and returns
// its backend. The caller decides whether/when to wait for the extension
// (WaitExtension) and whether to open an invite URL.
func (s *Server) NewPair() (*BridgeRelay, Pair) {
	driverID := uuid.NewString()
	extID := uuid.NewString()
	p := newPair(driverID, s.log, s.metric)

	s.mu.Lock()
	s.pairs[driverID] = p
	s.pairs[extID] = p
	s.mu.Unlock()

	addr := s.Addr()
	info := Pair{
		DriverID:     driverID,
		ExtensionID:  extID,
		DriverURL:    fmt.Sprintf("ws://%s/cdp/%s", addr, driverID),
		ExtensionURL: fmt.Sprintf("ws://%s/extension/%s", addr, extID),
	}
	return &BridgeRelay{pair: p, server: s, extURL: info.ExtensionURL}, info
}

// InviteURL builds the chrome-extension://<extId>/connect.html invite URL
// described in §6, carrying the extension-facing relay URL, a correlation
// id, and the protocol version.
func InviteURL(chromeExtensionID string, p Pair, correlationID, token string) string {
	client := fmt.Sprintf(`{"id":%q}`, correlationID)
	q := url.Values{}
	q.Set("mcpRelayUrl", p.ExtensionURL)
	q.Set("client", client)
	q.Set("protocolVersion", "1")
	if token != "" {
		q.Set("token", token)
	}
	return fmt.Sprintf("chrome-extension://%s/connect.html?%s", chromeExtensionID, q.Encode())
}

func (s *Server) lookup(id string) *pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs[id]
}

// handleDriver upgrades /cdp/<uuid>. Exactly one connection is accepted;
// a second attempt on an already-attached pair is closed with a
// policy-violation close code.
func (s *Server) handleDriver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := s.lookup(id)
	if p == nil {
		http.Error(w, "unknown relay path", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p.mu.Lock()
	already := p.driverConn != nil
	p.mu.Unlock()
	if already {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "driver already attached"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	p.attachDriver(conn)
	if s.log != nil {
		s.log.Info("bridge: driver attached", zap.String("pair", id))
	}
	s.driverReadLoop(p, conn)
}

func (s *Server) driverReadLoop(p *pair, conn *websocket.Conn) {
	for {
		var msg cdpMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if s.metric != nil {
			s.metric.BridgeFrames.WithLabelValues("cdp", "in").Inc()
		}
		if msg.ID == nil {
			continue // driver sockets only send commands, never unsolicited events
		}
		id := *msg.ID
		result, err := p.dispatchCommand(context.Background(), msg.Method, msg.Params, msg.SessionID)
		reply := cdpMessage{ID: &id, SessionID: msg.SessionID}
		if err != nil {
			reply.Error = &cdpError{Code: -32000, Message: err.Error()}
		} else {
			reply.Result = result
		}
		_ = p.writeDriver(reply)
	}
	p.mu.Lock()
	p.driverConn = nil
	p.mu.Unlock()
}

// handleExtension upgrades /extension/<uuid>. Attaching closes any prior
// connection on this pair first — the extension side is the one that can
// legitimately reconnect after a page reload.
func (s *Server) handleExtension(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := s.lookup(id)
	if p == nil {
		http.Error(w, "unknown relay path", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p.mu.Lock()
	prior := p.extConn
	p.mu.Unlock()
	if prior != nil {
		_ = prior.Close()
	}

	p.attachExtension(conn)
	if s.log != nil {
		s.log.Info("bridge: extension attached", zap.String("pair", id))
	}
	s.extensionReadLoop(p, conn)
}

func (s *Server) extensionReadLoop(p *pair, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		p.handleExtensionFrame(raw)
	}
	p.detachExtension()
}

// Shutdown closes the HTTP listener and every attached socket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	seen := make(map[*pair]bool)
	for _, p := range s.pairs {
		if seen[p] {
			continue
		}
		seen[p] = true
		p.mu.Lock()
		p.closed = true
		if p.driverConn != nil {
			_ = p.driverConn.Close()
		}
		if p.extConn != nil {
			_ = p.extConn.Close()
		}
		p.mu.Unlock()
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

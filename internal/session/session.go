// Package session implements the session daemon (C6): lifecycle state,
// page-set invariants, event sinks, and the security-gate dispatch loop
// that the action executor runs behind. The browser itself is reached only
// through the browser.BrowserBackend interface; this package owns no
// driver-specific code.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/confirm"
	"github.com/agent-browser/daemon/internal/obs"
	"github.com/agent-browser/daemon/internal/policy"
	"github.com/agent-browser/daemon/internal/ringbuffer"
	"github.com/agent-browser/daemon/internal/snapshot"
	"github.com/agent-browser/daemon/internal/vault"
	"github.com/agent-browser/daemon/internal/wire"
)

// State is one of the daemon lifecycle states.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// defaultEventSinkCapacity is the per-sink ring buffer size: 1024 entries
// each.
const defaultEventSinkCapacity = 1024

// DefaultActionTimeout is used when AGENT_BROWSER_ACTION_TIMEOUT is unset
// or invalid.
const DefaultActionTimeout = 10 * time.Second

// ConsoleEntry is one retained console message.
type ConsoleEntry struct {
	Type string
	Text string
	At   time.Time
}

// NetworkEntry is one retained tracked network request.
type NetworkEntry struct {
	Method string
	URL    string
	Status int
	At     time.Time
}

// PageErrorEntry is one retained uncaught page error.
type PageErrorEntry struct {
	Message string
	Stack   string
	At      time.Time
}

// DialogRecord is one retained dialog event.
type DialogRecord struct {
	Type    string
	Message string
	At      time.Time
}

// Runner executes one already-gated action against the session, returning
// the action's response data. Implemented by internal/executor; kept as an
// interface here so this package never imports executor (executor imports
// session, not the reverse).
type Runner interface {
	Run(ctx context.Context, s *Session, req *wire.Request) (any, error)
}

// Session is one daemon process's owned state: one browser, one ordered
// page set, one ref map, and its event sinks.
type Session struct {
	Name string

	// dispatchMu serializes Dispatch calls per the cooperative
	// single-session-thread model: the next request does not begin until
	// the previous has produced a terminal response. It is held across an
	// entire Dispatch/executeLocked call, including the Runner's action
	// logic, so action handlers must use mu (never dispatchMu) to touch
	// session state — mu's critical sections are always short and never
	// nested under a Runner call holding dispatchMu.
	dispatchMu sync.Mutex
	mu         sync.Mutex // protects the fields below
	state      State

	Backend browser.BrowserBackend
	Vault   *vault.Vault
	Policy  *policy.Store
	Confirm *confirm.Registry
	Runner  Runner
	Metrics *obs.Metrics
	Log     *zap.Logger

	ActionTimeout time.Duration

	pages       []browser.Page
	activeIndex int
	activeFrame string // empty means main frame

	RefMap   snapshot.RefMap
	refGen   int
	lastSnap snapshot.Tree

	Console    *ringbuffer.Buffer[ConsoleEntry]
	Network    *ringbuffer.Buffer[NetworkEntry]
	PageErrors *ringbuffer.Buffer[PageErrorEntry]
	Dialogs    *ringbuffer.Buffer[DialogRecord]

	routes       map[string]routeHandler
	headerRoutes map[string]map[string]string // origin -> extra headers

	lastServed time.Time
	launched   bool
	launchCfg  launchConfig

	dialogDisposition *DialogDisposition
}

type routeHandler struct {
	Pattern     string
	Status      int
	Body        string
	ContentType string
	Abort       bool
}

type launchConfig struct {
	CDPPort int
	Mode    browser.Kind
}

// New constructs a Session in the starting state with empty sinks and no
// active page. The caller must still bind the socket and call Start.
func New(name string, backend browser.BrowserBackend, deps Deps) *Session {
	return &Session{
		Name:          name,
		state:         StateStarting,
		Backend:       backend,
		Vault:         deps.Vault,
		Policy:        deps.Policy,
		Confirm:       deps.Confirm,
		Runner:        deps.Runner,
		Metrics:       deps.Metrics,
		Log:           deps.Log,
		ActionTimeout: deps.ActionTimeout,
		Console:       ringbuffer.New[ConsoleEntry](defaultEventSinkCapacity),
		Network:       ringbuffer.New[NetworkEntry](defaultEventSinkCapacity),
		PageErrors:    ringbuffer.New[PageErrorEntry](defaultEventSinkCapacity),
		Dialogs:       ringbuffer.New[DialogRecord](defaultEventSinkCapacity),
		routes:        make(map[string]routeHandler),
		headerRoutes:  make(map[string]map[string]string),
		lastServed:    time.Now(),
	}
}

// Deps bundles a Session's cross-cutting collaborators.
type Deps struct {
	Vault         *vault.Vault
	Policy        *policy.Store
	Confirm       *confirm.Registry
	Runner        Runner
	Metrics       *obs.Metrics
	Log           *zap.Logger
	ActionTimeout time.Duration
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkRunning transitions starting -> running, called once the socket is
// bound and policy/vault are ready.
func (s *Session) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStarting {
		s.state = StateRunning
	}
}

// Drain transitions running -> draining: new requests are refused, in-flight
// ones complete.
func (s *Session) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StateDraining
	}
}

// Stop transitions to stopped, closing the backend.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	if s.Backend != nil {
		return s.Backend.Close(ctx)
	}
	return nil
}

// IdleSince reports how long it has been since the last served request.
func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastServed)
}

// Dispatch is the full request path: gate, confirm short-circuit, execute,
// respond. It holds the session lock for the duration of the request,
// matching the cooperative single-session-thread model: the
// next request does not begin until this one has produced a terminal
// response.
func (s *Session) Dispatch(ctx context.Context, req *wire.Request) wire.Response {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	state := s.state
	s.lastServed = time.Now()
	s.mu.Unlock()

	if state == StateDraining || state == StateStopped {
		return wire.Fail(req.ID, "session is draining or stopped")
	}

	if !wire.IsKnown(req.Action) {
		return wire.Fail(req.ID, fmt.Sprintf("unknown action %q", req.Action))
	}

	if req.Action == wire.ActionConfirm || req.Action == wire.ActionDeny {
		return s.dispatchConfirmDeny(ctx, req)
	}

	category := wire.CategoryForRequest(req)
	decision := policy.EvaluateCategory(category, s.Policy.Current())
	if s.Metrics != nil {
		s.Metrics.ObservePolicy(string(category), string(decision))
	}

	switch decision {
	case policy.Deny:
		return wire.Response{ID: req.ID, Success: false, Error: string(wire.KindPolicyDenied)}
	case policy.Confirm:
		return s.deferForConfirmation(req, category)
	default:
		return s.execute(ctx, req)
	}
}

func (s *Session) deferForConfirmation(req *wire.Request, category wire.Category) wire.Response {
	description := describeForConfirmation(req)
	id, err := s.Confirm.Request(string(req.Action), string(category), description, req.Params)
	if err != nil {
		return wire.Fail(req.ID, err.Error())
	}
	return wire.NeedsConfirmation(req.ID, id, string(category), description)
}

func (s *Session) dispatchConfirmDeny(ctx context.Context, req *wire.Request) wire.Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := req.DecodeParams(&params); err != nil || params.ID == "" {
		return wire.Fail(req.ID, "confirm/deny requires an id")
	}

	if req.Action == wire.ActionDeny {
		if _, ok := s.Confirm.Consume(params.ID); !ok {
			return wire.Fail(req.ID, "no such pending confirmation")
		}
		return wire.OK(req.ID, map[string]any{"denied": true})
	}

	consumed, ok := s.Confirm.Consume(params.ID)
	if !ok {
		return wire.Fail(req.ID, "no such pending confirmation")
	}
	// Re-dispatch the stored command, bypassing the gate for this single
	// execution.
	inner := &wire.Request{ID: req.ID, Action: wire.Action(consumed.Action)}
	if raw, ok := consumed.Command.(json.RawMessage); ok {
		inner.Params = raw
	}
	return s.execute(ctx, inner)
}

func (s *Session) execute(ctx context.Context, req *wire.Request) wire.Response {
	if s.Runner == nil {
		return wire.Fail(req.ID, "no action runner configured")
	}
	start := time.Now()
	timeout := s.ActionTimeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := s.Runner.Run(runCtx, s, req)
	outcome := "ok"
	if err != nil {
		outcome = string(wire.KindOf(err))
	}
	if s.Metrics != nil {
		s.Metrics.ObserveAction(string(req.Action), outcome, time.Since(start))
	}
	if err != nil {
		return wire.Fail(req.ID, err.Error())
	}
	return wire.OK(req.ID, data)
}

// describeForConfirmation renders the human-readable prompt text shown for
// a confirmation, delegating the actual formatting to internal/confirm so
// there is exactly one place that owns the wording per category.
func describeForConfirmation(req *wire.Request) string {
	switch req.Action {
	case wire.ActionNavigate:
		var p struct {
			URL string `json:"url"`
		}
		_ = req.DecodeParams(&p)
		return confirm.DescribeNavigate(p.URL)
	case wire.ActionEvaluate:
		var p struct {
			Expression string `json:"expression"`
		}
		_ = req.DecodeParams(&p)
		return confirm.DescribeEval(p.Expression)
	case wire.ActionClick, wire.ActionFill, wire.ActionSetValue:
		var p struct {
			Target string `json:"target"`
		}
		_ = req.DecodeParams(&p)
		return confirm.DescribeSelectorAction(string(req.Action), p.Target)
	default:
		return confirm.DescribeGeneric(string(req.Action))
	}
}

// Package executor implements the action executor (C7): the handler for
// every action the session's policy gate lets through. It resolves targets
// (ref or selector) via internal/snapshot, then drives the session's
// browser.BrowserBackend with a bounded per-action timeout.
package executor

import (
	"context"

	"go.uber.org/zap"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

// Executor implements session.Runner, routing each known action to its
// family handler.
type Executor struct {
	Log *zap.Logger

	// UploadDir, if non-empty, is the only directory setvalue's Files
	// parameter may reference; see upload.go.
	UploadDir string
}

// New constructs an Executor. uploadDir may be empty to disable the upload
// family's directory scoping (the denylist checks still apply).
func New(log *zap.Logger, uploadDir string) *Executor {
	return &Executor{Log: log, UploadDir: uploadDir}
}

// Run implements session.Runner.
func (e *Executor) Run(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	switch req.Action {
	// Navigation
	case wire.ActionNavigate:
		return e.navigate(ctx, s, req)
	case wire.ActionBack:
		return e.back(ctx, s, req)
	case wire.ActionForward:
		return e.forward(ctx, s, req)
	case wire.ActionReload:
		return e.reload(ctx, s, req)

	// Interaction
	case wire.ActionClick, wire.ActionDblClick, wire.ActionHover, wire.ActionTap:
		return e.pointerAction(ctx, s, req)
	case wire.ActionFill, wire.ActionType:
		return e.textAction(ctx, s, req)
	case wire.ActionPress, wire.ActionKeyboard:
		return e.keyAction(ctx, s, req)
	case wire.ActionSelect, wire.ActionMultiselect:
		return e.selectAction(ctx, s, req)
	case wire.ActionCheck, wire.ActionUncheck:
		return e.checkAction(ctx, s, req)
	case wire.ActionClear, wire.ActionSelectAll:
		return e.clearOrSelectAll(ctx, s, req)
	case wire.ActionSetValue:
		return e.setValue(ctx, s, req)
	case wire.ActionScroll, wire.ActionScrollIntoView:
		return e.scroll(ctx, s, req)

	// Queries
	case wire.ActionGetText, wire.ActionContent, wire.ActionInnerHTML, wire.ActionInnerText,
		wire.ActionInputValue, wire.ActionGetAttribute, wire.ActionCount, wire.ActionBoundingBox,
		wire.ActionStyles, wire.ActionIsVisible, wire.ActionIsEnabled, wire.ActionIsChecked,
		wire.ActionGetByRole, wire.ActionGetByText, wire.ActionGetByLabel, wire.ActionGetByPlaceholder,
		wire.ActionGetByAltText, wire.ActionGetByTitle, wire.ActionGetByTestID, wire.ActionNth:
		return e.query(ctx, s, req)
	case wire.ActionURL:
		return e.currentURL(ctx, s, req)
	case wire.ActionTitle:
		return e.currentTitle(ctx, s, req)
	case wire.ActionConsole:
		return e.consoleLog(ctx, s, req)
	case wire.ActionErrors:
		return e.pageErrors(ctx, s, req)

	// Waits
	case wire.ActionWait:
		return e.wait(ctx, s, req)

	// Media & trace
	case wire.ActionScreenshot:
		return e.screenshot(ctx, s, req)
	case wire.ActionPDF:
		return e.pdf(ctx, s, req)
	case wire.ActionVideoStart:
		return e.videoStart(ctx, s, req)
	case wire.ActionVideoStop:
		return e.videoStop(ctx, s, req)
	case wire.ActionTraceStart:
		return e.traceStart(ctx, s, req)
	case wire.ActionTraceStop:
		return e.traceStop(ctx, s, req)
	case wire.ActionDiffSnapshot:
		return e.diffSnapshot(ctx, s, req)
	case wire.ActionDiffScreenshot:
		return e.diffScreenshot(ctx, s, req)
	case wire.ActionDiffURL:
		return e.diffURL(ctx, s, req)

	// Networking
	case wire.ActionRoute:
		return e.route(ctx, s, req)
	case wire.ActionUnroute:
		return e.unroute(ctx, s, req)
	case wire.ActionRequests:
		return e.requests(ctx, s, req)
	case wire.ActionHeaders:
		return e.headers(ctx, s, req)
	case wire.ActionHarStart:
		return e.harStart(ctx, s, req)
	case wire.ActionHarStop:
		return e.harStop(ctx, s, req)

	// State
	case wire.ActionStateSave, wire.ActionStateLoad, wire.ActionStateList, wire.ActionStateShow,
		wire.ActionStateClear, wire.ActionStateClean, wire.ActionStateRename:
		return e.stateOp(ctx, s, req)
	case wire.ActionCookiesGet, wire.ActionCookiesSet, wire.ActionCookiesClear:
		return e.cookiesOp(ctx, s, req)
	case wire.ActionStorageGet, wire.ActionStorageSet, wire.ActionStorageClear:
		return e.storageOp(ctx, s, req)

	// Credential actions
	case wire.ActionAuthSave:
		return e.authSave(ctx, s, req)
	case wire.ActionAuthList:
		return e.authList(ctx, s, req)
	case wire.ActionAuthShow:
		return e.authShow(ctx, s, req)
	case wire.ActionAuthDelete:
		return e.authDelete(ctx, s, req)
	case wire.ActionAuthLogin:
		return e.authLogin(ctx, s, req)

	// Internal: launch / page set / frame / dialog
	case wire.ActionLaunch:
		return e.launch(ctx, s, req)
	case wire.ActionClose:
		return e.closeSession(ctx, s, req)
	case wire.ActionTabNew, wire.ActionWindowNew:
		return e.tabNew(ctx, s, req)
	case wire.ActionTabList:
		return e.tabList(ctx, s, req)
	case wire.ActionTabSwitch:
		return e.tabSwitch(ctx, s, req)
	case wire.ActionTabClose:
		return e.tabClose(ctx, s, req)
	case wire.ActionFrame:
		return e.frameSwitch(ctx, s, req)
	case wire.ActionMainFrame:
		return e.mainFrame(ctx, s, req)
	case wire.ActionDialog:
		return e.dialog(ctx, s, req)

	// Browsing-context configuration (interact-family, best-effort against
	// whatever the backend's Call supports).
	case wire.ActionViewport, wire.ActionUserAgent, wire.ActionDevice, wire.ActionGeolocation,
		wire.ActionPermissions, wire.ActionEmulateMedia, wire.ActionOffline, wire.ActionAddStyle,
		wire.ActionTimezone, wire.ActionLocale, wire.ActionSetContent, wire.ActionAddScript,
		wire.ActionAddInitScript, wire.ActionPause:
		return e.browsingContextConfig(ctx, s, req)
	case wire.ActionEvaluate, wire.ActionEvalHandle, wire.ActionExpose:
		return e.evaluate(ctx, s, req)
	case wire.ActionSnapshot:
		return e.takeSnapshot(ctx, s, req)

	default:
		return nil, wire.New(wire.KindInvalidArgument, "action %q has no executor handler", req.Action)
	}
}

func (e *Executor) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func unsupported(req *wire.Request) error {
	return wire.New(wire.KindDriverError, "action %q is not supported by the active backend", req.Action)
}

func invalidParams(req *wire.Request, err error) error {
	return wire.New(wire.KindInvalidArgument, "%s: invalid parameters: %v", req.Action, err)
}

// actions.go — the closed action enum and its static category mapping.
// Unknown actions fail fast at the parse boundary (ParseError); unknown
// categories (which can't happen for a recognized action, only via the
// "unknown" bucket below) are handled by the policy engine per its rules.
package wire

import "encoding/json"

// Action is the tagged wire action. Parameter shape is action-specific and
// decoded by the executor, not here.
type Action string

const (
	ActionNavigate Action = "navigate"
	ActionBack     Action = "back"
	ActionForward  Action = "forward"
	ActionReload   Action = "reload"

	ActionClick       Action = "click"
	ActionDblClick    Action = "dblclick"
	ActionHover       Action = "hover"
	ActionTap         Action = "tap"
	ActionFill        Action = "fill"
	ActionType        Action = "type"
	ActionPress       Action = "press"
	ActionKeyboard    Action = "keyboard"
	ActionSelect      Action = "select"
	ActionMultiselect Action = "multiselect"
	ActionCheck       Action = "check"
	ActionUncheck     Action = "uncheck"
	ActionClear       Action = "clear"
	ActionSelectAll   Action = "selectall"
	ActionSetValue    Action = "setvalue"

	ActionSnapshot     Action = "snapshot"
	ActionScreenshot   Action = "screenshot"
	ActionPDF          Action = "pdf"
	ActionDiffSnapshot Action = "diff_snapshot"
	ActionDiffScreenshot Action = "diff_screenshot"
	ActionDiffURL      Action = "diff_url"

	ActionScroll         Action = "scroll"
	ActionScrollIntoView Action = "scrollintoview"

	ActionWait Action = "wait"

	ActionGetText     Action = "gettext"
	ActionContent     Action = "content"
	ActionInnerHTML   Action = "innerhtml"
	ActionInnerText   Action = "innertext"
	ActionInputValue  Action = "inputvalue"
	ActionURL         Action = "url"
	ActionTitle       Action = "title"
	ActionGetAttribute Action = "getattribute"
	ActionCount       Action = "count"
	ActionBoundingBox Action = "boundingbox"
	ActionStyles      Action = "styles"
	ActionIsVisible   Action = "isvisible"
	ActionIsEnabled   Action = "isenabled"
	ActionIsChecked   Action = "ischecked"

	ActionRoute    Action = "route"
	ActionUnroute  Action = "unroute"
	ActionRequests Action = "requests"

	ActionStateSave   Action = "state_save"
	ActionStateLoad   Action = "state_load"
	ActionStateList   Action = "state_list"
	ActionStateShow   Action = "state_show"
	ActionStateClear  Action = "state_clear"
	ActionStateClean  Action = "state_clean"
	ActionStateRename Action = "state_rename"

	ActionCookiesGet    Action = "cookies_get"
	ActionCookiesSet    Action = "cookies_set"
	ActionCookiesClear  Action = "cookies_clear"
	ActionStorageGet    Action = "storage_get"
	ActionStorageSet    Action = "storage_set"
	ActionStorageClear  Action = "storage_clear"

	ActionTabNew    Action = "tab_new"
	ActionTabList   Action = "tab_list"
	ActionTabSwitch Action = "tab_switch"
	ActionTabClose  Action = "tab_close"
	ActionWindowNew Action = "window_new"

	ActionFrame     Action = "frame"
	ActionMainFrame Action = "mainframe"

	ActionDialog Action = "dialog"

	ActionTraceStart Action = "trace_start"
	ActionTraceStop  Action = "trace_stop"
	ActionHarStart   Action = "har_start"
	ActionHarStop    Action = "har_stop"
	ActionVideoStart Action = "video_start"
	ActionVideoStop  Action = "video_stop"

	ActionConsole Action = "console"
	ActionErrors  Action = "errors"

	ActionGetByRole        Action = "getbyrole"
	ActionGetByText        Action = "getbytext"
	ActionGetByLabel       Action = "getbylabel"
	ActionGetByPlaceholder Action = "getbyplaceholder"
	ActionGetByAltText     Action = "getbyalttext"
	ActionGetByTitle       Action = "getbytitle"
	ActionGetByTestID      Action = "getbytestid"
	ActionNth              Action = "nth"

	ActionViewport     Action = "viewport"
	ActionUserAgent    Action = "useragent"
	ActionDevice       Action = "device"
	ActionGeolocation  Action = "geolocation"
	ActionPermissions  Action = "permissions"
	ActionEmulateMedia Action = "emulatemedia"
	ActionOffline      Action = "offline"
	ActionHeaders      Action = "headers"
	ActionAddStyle     Action = "addstyle"
	ActionExpose       Action = "expose"
	ActionTimezone     Action = "timezone"
	ActionLocale       Action = "locale"
	ActionSetContent   Action = "setcontent"
	ActionEvaluate     Action = "evaluate"
	ActionEvalHandle   Action = "evalhandle"
	ActionAddScript    Action = "addscript"
	ActionAddInitScript Action = "addinitscript"
	ActionPause        Action = "pause"

	ActionAuthSave   Action = "auth_save"
	ActionAuthLogin  Action = "auth_login"
	ActionAuthList   Action = "auth_list"
	ActionAuthDelete Action = "auth_delete"
	ActionAuthShow   Action = "auth_show"

	ActionConfirm Action = "confirm"
	ActionDeny    Action = "deny"

	ActionLaunch Action = "launch"
	ActionClose  Action = "close"
)

// Category partitions actions for the policy engine.
type Category string

const (
	CategoryNavigate Category = "navigate"
	CategoryClick    Category = "click"
	CategoryFill     Category = "fill"
	CategoryDownload Category = "download"
	CategoryUpload   Category = "upload"
	CategoryEval     Category = "eval"
	CategorySnapshot Category = "snapshot"
	CategoryScroll   Category = "scroll"
	CategoryWait     Category = "wait"
	CategoryGet      Category = "get"
	CategoryNetwork  Category = "network"
	CategoryState    Category = "state"
	CategoryInteract Category = "interact"
	CategoryInternal Category = "_internal"
	CategoryUnknown  Category = "unknown"
)

// categoryTable is the static action→category mapping. Actions absent from
// this table (can't happen for the closed enum above, but matters for
// wire strings arriving from a client that don't parse into a known
// Action) resolve to CategoryUnknown via CategoryFor.
var categoryTable = map[Action]Category{
	ActionNavigate: CategoryNavigate,
	ActionBack:     CategoryNavigate,
	ActionForward:  CategoryNavigate,
	ActionReload:   CategoryNavigate,

	ActionClick:    CategoryClick,
	ActionDblClick: CategoryClick,
	ActionHover:    CategoryClick,
	ActionTap:      CategoryClick,

	ActionFill:        CategoryFill,
	ActionType:        CategoryFill,
	ActionPress:       CategoryFill,
	ActionKeyboard:    CategoryFill,
	ActionSelect:      CategoryFill,
	ActionMultiselect: CategoryFill,
	ActionCheck:       CategoryFill,
	ActionUncheck:     CategoryFill,
	ActionClear:       CategoryFill,
	ActionSelectAll:   CategoryFill,
	ActionSetValue:    CategoryFill,

	ActionSnapshot:       CategorySnapshot,
	ActionScreenshot:     CategorySnapshot,
	ActionPDF:            CategoryDownload,
	ActionDiffSnapshot:   CategorySnapshot,
	ActionDiffScreenshot: CategorySnapshot,
	ActionDiffURL:        CategorySnapshot,

	ActionScroll:         CategoryScroll,
	ActionScrollIntoView: CategoryScroll,

	ActionWait: CategoryWait,

	ActionGetText:      CategoryGet,
	ActionContent:      CategoryGet,
	ActionInnerHTML:    CategoryGet,
	ActionInnerText:    CategoryGet,
	ActionInputValue:   CategoryGet,
	ActionURL:          CategoryGet,
	ActionTitle:        CategoryGet,
	ActionGetAttribute: CategoryGet,
	ActionCount:        CategoryGet,
	ActionBoundingBox:  CategoryGet,
	ActionStyles:       CategoryGet,
	ActionIsVisible:    CategoryGet,
	ActionIsEnabled:    CategoryGet,
	ActionIsChecked:    CategoryGet,

	ActionRoute:    CategoryNetwork,
	ActionUnroute:  CategoryNetwork,
	ActionRequests: CategoryNetwork,
	ActionHeaders:  CategoryNetwork,

	ActionStateSave:   CategoryState,
	ActionStateLoad:   CategoryState,
	ActionStateList:   CategoryState,
	ActionStateShow:   CategoryState,
	ActionStateClear:  CategoryState,
	ActionStateClean:  CategoryState,
	ActionStateRename: CategoryState,

	ActionCookiesGet:   CategoryState,
	ActionCookiesSet:   CategoryState,
	ActionCookiesClear: CategoryState,
	ActionStorageGet:   CategoryState,
	ActionStorageSet:   CategoryState,
	ActionStorageClear: CategoryState,

	ActionTabNew:    CategoryInternal,
	ActionTabList:   CategoryInternal,
	ActionTabSwitch: CategoryInternal,
	ActionTabClose:  CategoryInternal,
	ActionWindowNew: CategoryInternal,

	ActionFrame:     CategoryInternal,
	ActionMainFrame: CategoryInternal,

	ActionDialog: CategoryInteract,

	ActionTraceStart: CategoryInteract,
	ActionTraceStop:  CategoryInteract,
	ActionHarStart:   CategoryNetwork,
	ActionHarStop:    CategoryNetwork,
	ActionVideoStart: CategoryInteract,
	ActionVideoStop:  CategoryInteract,

	ActionConsole: CategoryGet,
	ActionErrors:  CategoryGet,

	ActionGetByRole:        CategoryGet,
	ActionGetByText:        CategoryGet,
	ActionGetByLabel:       CategoryGet,
	ActionGetByPlaceholder: CategoryGet,
	ActionGetByAltText:     CategoryGet,
	ActionGetByTitle:       CategoryGet,
	ActionGetByTestID:      CategoryGet,
	ActionNth:              CategoryGet,

	ActionViewport:      CategoryInteract,
	ActionUserAgent:     CategoryInteract,
	ActionDevice:        CategoryInteract,
	ActionGeolocation:   CategoryInteract,
	ActionPermissions:   CategoryInteract,
	ActionEmulateMedia:  CategoryInteract,
	ActionOffline:       CategoryInteract,
	ActionAddStyle:      CategoryInteract,
	ActionExpose:        CategoryEval,
	ActionTimezone:      CategoryInteract,
	ActionLocale:        CategoryInteract,
	ActionSetContent:    CategoryInteract,
	ActionEvaluate:      CategoryEval,
	ActionEvalHandle:    CategoryEval,
	ActionAddScript:     CategoryEval,
	ActionAddInitScript: CategoryEval,
	ActionPause:         CategoryInteract,

	ActionAuthSave:   CategoryInternal,
	ActionAuthLogin:  CategoryInternal,
	ActionAuthList:   CategoryInternal,
	ActionAuthDelete: CategoryInternal,
	ActionAuthShow:   CategoryInternal,

	ActionConfirm: CategoryInternal,
	ActionDeny:    CategoryInternal,

	ActionLaunch: CategoryInternal,
	ActionClose:  CategoryInternal,
}

// ActionSetValue carries the "upload files" interaction when its params
// include a non-empty Files list — uploading is reached through setvalue on
// a file input, not a dedicated wire action. Its static table entry above
// (CategoryFill) is the default for its ordinary non-file use; a
// Files-carrying request is categorized CategoryUpload instead before the
// gate runs, by CategoryForRequest peeking at the raw params.

// IsKnown reports whether a appears in the closed action set.
func IsKnown(a Action) bool {
	_, ok := categoryTable[a]
	return ok
}

// CategoryFor returns the static category for a. Actions outside the closed
// set (which IsKnown would reject) map to CategoryUnknown, subject only to
// rules 4-6 of policy evaluation — the _internal short circuit does not
// apply to them.
func CategoryFor(a Action) Category {
	if c, ok := categoryTable[a]; ok {
		return c
	}
	return CategoryUnknown
}

// setValueFilesPeek decodes only the one field CategoryForRequest needs to
// distinguish an upload-carrying setvalue from an ordinary one, without
// pulling in the executor's full setValueParams shape.
type setValueFilesPeek struct {
	Files []string `json:"files"`
}

// CategoryForRequest returns the category a request gates under, applying
// CategoryFor's static table plus the one request-shaped exception: a
// setvalue action whose params carry a non-empty Files list gates as
// CategoryUpload rather than CategoryFill. Malformed params fall back to
// the static category — the handler's own DecodeParams call is what
// surfaces the parse error to the caller.
func CategoryForRequest(req *Request) Category {
	category := CategoryFor(req.Action)
	if req.Action != ActionSetValue || len(req.Params) == 0 {
		return category
	}
	var peek setValueFilesPeek
	if err := json.Unmarshal(req.Params, &peek); err != nil {
		return category
	}
	if len(peek.Files) > 0 {
		return CategoryUpload
	}
	return category
}

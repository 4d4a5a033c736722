package executor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/agent-browser/daemon/internal/cryptox"
	"github.com/agent-browser/daemon/internal/paths"
	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

// stateNamePattern mirrors the vault's credential-name rule: named state
// snapshots live alongside each other in one directory, so the same
// path-traversal-proof validation applies.
var stateNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// storageStateRecord is the on-disk shape of one saved state: cookies plus
// per-origin local/session storage, captured via the page's own storage
// APIs rather than the driver's internal cookie jar, so it round-trips
// through setcontent/evaluate identically.
type storageStateRecord struct {
	Name      string              `json:"name"`
	URL       string              `json:"url"`
	Cookies   []cookieRecord      `json:"cookies"`
	Storage   map[string]storageSnapshot `json:"storage"`
	CreatedAt time.Time           `json:"createdAt"`
}

type cookieRecord struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

type storageSnapshot struct {
	Local   map[string]string `json:"local,omitempty"`
	Session map[string]string `json:"session,omitempty"`
}

func validateStateName(name string) error {
	if !stateNamePattern.MatchString(name) {
		return wire.New(wire.KindInvalidName, "state name %q must match ^[A-Za-z0-9_-]+$", name)
	}
	return nil
}

func stateRecordPath(session, name string) (string, error) {
	dir, err := paths.StateDir(session)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".json"), nil
}

type stateParams struct {
	Name    string `json:"name"`
	NewName string `json:"newName"`
}

func (e *Executor) stateOp(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	var p stateParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}

	switch req.Action {
	case wire.ActionStateSave:
		return e.stateSave(ctx, s, p)
	case wire.ActionStateLoad:
		return e.stateLoad(ctx, s, p)
	case wire.ActionStateList:
		return e.stateList(s)
	case wire.ActionStateShow:
		return e.stateShow(s, p)
	case wire.ActionStateClear, wire.ActionStateClean:
		return e.stateClear(s, p)
	case wire.ActionStateRename:
		return e.stateRename(s, p)
	default:
		return nil, unsupported(req)
	}
}

func (e *Executor) captureState(ctx context.Context, s *session.Session, idx int) (storageStateRecord, error) {
	script := `(function(){
var cookies = (document.cookie || '').split(';').map(function(c){return c.trim();}).filter(Boolean).map(function(c){
  var idx = c.indexOf('=');
  return {name: c.slice(0, idx), value: c.slice(idx+1)};
});
var local = {}; for (var i=0;i<localStorage.length;i++){var k=localStorage.key(i); local[k]=localStorage.getItem(k);}
var sess = {}; for (var i=0;i<sessionStorage.length;i++){var k=sessionStorage.key(i); sess[k]=sessionStorage.getItem(k);}
return {cookies: cookies, local: local, session: sess, url: window.location.href};
})()`
	result, err := s.Backend.Evaluate(ctx, idx, script)
	if err != nil {
		return storageStateRecord{}, err
	}
	m, _ := result.(map[string]any)
	record := storageStateRecord{
		Storage: map[string]storageSnapshot{},
	}
	if m == nil {
		return record, nil
	}
	record.URL, _ = m["url"].(string)
	if cookies, ok := m["cookies"].([]any); ok {
		for _, c := range cookies {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			name, _ := cm["name"].(string)
			value, _ := cm["value"].(string)
			record.Cookies = append(record.Cookies, cookieRecord{Name: name, Value: value})
		}
	}
	origin := record.URL
	snap := storageSnapshot{Local: stringMap(m["local"]), Session: stringMap(m["session"])}
	record.Storage[origin] = snap
	return record, nil
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (e *Executor) stateSave(ctx context.Context, s *session.Session, p stateParams) (any, error) {
	if err := validateStateName(p.Name); err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	record, err := e.captureState(ctx, s, idx)
	if err != nil {
		return nil, err
	}
	record.Name = p.Name
	record.CreatedAt = time.Now().UTC()

	path, err := stateRecordPath(s.Name, p.Name)
	if err != nil {
		return nil, err
	}
	if err := cryptox.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "encode state %q", p.Name)
	}
	if err := cryptox.WriteFileAtomic(path, data); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "write state %q", p.Name)
	}
	return map[string]any{"ok": true, "name": p.Name}, nil
}

func (e *Executor) loadStateRecord(s *session.Session, name string) (storageStateRecord, error) {
	if err := validateStateName(name); err != nil {
		return storageStateRecord{}, err
	}
	path, err := stateRecordPath(s.Name, name)
	if err != nil {
		return storageStateRecord{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return storageStateRecord{}, wire.New(wire.KindNotFound, "state %q not found", name)
		}
		return storageStateRecord{}, wire.Wrap(wire.KindDriverError, err, "read state %q", name)
	}
	var record storageStateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return storageStateRecord{}, wire.Wrap(wire.KindDriverError, err, "decode state %q", name)
	}
	return record, nil
}

func (e *Executor) stateLoad(ctx context.Context, s *session.Session, p stateParams) (any, error) {
	record, err := e.loadStateRecord(s, p.Name)
	if err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	for _, c := range record.Cookies {
		script := jsSetCookieScript(c)
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
	}
	for _, snap := range record.Storage {
		script := jsRestoreStorageScript(snap)
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
	}
	return map[string]any{"ok": true, "name": p.Name}, nil
}

func jsSetCookieScript(c cookieRecord) string {
	return "(function(){document.cookie = " + jsStringLiteral(c.Name+"="+c.Value+"; path=/") + "; return true;})()"
}

func jsRestoreStorageScript(snap storageSnapshot) string {
	localData, _ := json.Marshal(snap.Local)
	sessData, _ := json.Marshal(snap.Session)
	return `(function(){
var local = ` + string(localData) + `;
var sess = ` + string(sessData) + `;
Object.keys(local||{}).forEach(function(k){localStorage.setItem(k, local[k]);});
Object.keys(sess||{}).forEach(function(k){sessionStorage.setItem(k, sess[k]);});
return true;
})()`
}

func (e *Executor) stateList(s *session.Session) (any, error) {
	dir, err := paths.StateDir(s.Name)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{"names": []string{}}, nil
		}
		return nil, wire.Wrap(wire.KindDriverError, err, "list states")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name()[:len(e.Name())-len(".json")])
		}
	}
	sort.Strings(names)
	return map[string]any{"names": names}, nil
}

func (e *Executor) stateShow(s *session.Session, p stateParams) (any, error) {
	record, err := e.loadStateRecord(s, p.Name)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (e *Executor) stateClear(s *session.Session, p stateParams) (any, error) {
	if err := validateStateName(p.Name); err != nil {
		return nil, err
	}
	path, err := stateRecordPath(s.Name, p.Name)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]any{"removed": false}, nil
		}
		return nil, wire.Wrap(wire.KindDriverError, err, "remove state %q", p.Name)
	}
	return map[string]any{"removed": true}, nil
}

func (e *Executor) stateRename(s *session.Session, p stateParams) (any, error) {
	if err := validateStateName(p.Name); err != nil {
		return nil, err
	}
	if err := validateStateName(p.NewName); err != nil {
		return nil, err
	}
	oldPath, err := stateRecordPath(s.Name, p.Name)
	if err != nil {
		return nil, err
	}
	newPath, err := stateRecordPath(s.Name, p.NewName)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(oldPath); err != nil {
		return nil, wire.New(wire.KindNotFound, "state %q not found", p.Name)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, wire.Wrap(wire.KindDriverError, err, "rename state %q to %q", p.Name, p.NewName)
	}
	return map[string]any{"ok": true}, nil
}

type cookiesParams struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

func (e *Executor) cookiesOp(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	var p cookiesParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	switch req.Action {
	case wire.ActionCookiesGet:
		result, err := s.Backend.Evaluate(ctx, idx, `(function(){return document.cookie;})()`)
		if err != nil {
			return nil, err
		}
		return map[string]any{"cookies": result}, nil
	case wire.ActionCookiesSet:
		script := jsSetCookieScript(cookieRecord{Name: p.Name, Value: p.Value})
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case wire.ActionCookiesClear:
		script := `(function(){
var cookies = document.cookie.split(';');
for (var i=0;i<cookies.length;i++){
  var eq = cookies[i].indexOf('=');
  var name = (eq > -1 ? cookies[i].slice(0, eq) : cookies[i]).trim();
  if (name) document.cookie = name + '=; expires=Thu, 01 Jan 1970 00:00:00 UTC; path=/;';
}
return true;
})()`
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	default:
		return nil, unsupported(req)
	}
}

type storageParams struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Scope string `json:"scope"` // "local" or "session", default "local"
}

func (e *Executor) storageOp(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	var p storageParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	store := "localStorage"
	if p.Scope == "session" {
		store = "sessionStorage"
	}
	switch req.Action {
	case wire.ActionStorageGet:
		script := store + ".getItem(" + jsStringLiteral(p.Key) + ")"
		result, err := s.Backend.Evaluate(ctx, idx, "(function(){return "+script+";})()")
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": result}, nil
	case wire.ActionStorageSet:
		script := "(function(){" + store + ".setItem(" + jsStringLiteral(p.Key) + ", " + jsStringLiteral(p.Value) + "); return true;})()"
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	case wire.ActionStorageClear:
		script := "(function(){" + store + ".clear(); return true;})()"
		if _, err := s.Backend.Evaluate(ctx, idx, script); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	default:
		return nil, unsupported(req)
	}
}

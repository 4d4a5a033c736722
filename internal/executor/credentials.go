package executor

import (
	"context"
	"fmt"

	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/wire"
)

type authSaveParams struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	UsernameSelector string `json:"usernameSelector"`
	PasswordSelector string `json:"passwordSelector"`
	SubmitSelector   string `json:"submitSelector"`
}

func (e *Executor) authSave(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	if s.Vault == nil {
		return nil, wire.New(wire.KindDriverError, "auth_save: no vault configured for this session")
	}
	var p authSaveParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	result, err := s.Vault.Save(p.Name, p.URL, p.Username, p.Password, p.UsernameSelector, p.PasswordSelector, p.SubmitSelector)
	if err != nil {
		return nil, err
	}
	return map[string]any{"updated": result.Updated}, nil
}

type authNameParams struct {
	Name string `json:"name"`
}

func (e *Executor) authList(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	if s.Vault == nil {
		return nil, wire.New(wire.KindDriverError, "auth_list: no vault configured for this session")
	}
	records, err := s.Vault.List()
	if err != nil {
		return nil, err
	}
	return map[string]any{"records": records}, nil
}

func (e *Executor) authShow(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	if s.Vault == nil {
		return nil, wire.New(wire.KindDriverError, "auth_show: no vault configured for this session")
	}
	var p authNameParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	meta, err := s.Vault.GetMeta(p.Name)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, wire.New(wire.KindNotFound, "credential %q not found", p.Name)
	}
	return meta, nil
}

func (e *Executor) authDelete(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	if s.Vault == nil {
		return nil, wire.New(wire.KindDriverError, "auth_delete: no vault configured for this session")
	}
	var p authNameParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	removed, err := s.Vault.Delete(p.Name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"removed": removed}, nil
}

// authLogin reads a stored record, navigates to its URL, fills credentials
// via the stored selectors (or a same sensible-default pair a login form
// usually offers), submits, and updates lastLoginAt. It never returns the
// password.
func (e *Executor) authLogin(ctx context.Context, s *session.Session, req *wire.Request) (any, error) {
	if s.Vault == nil {
		return nil, wire.New(wire.KindDriverError, "auth_login: no vault configured for this session")
	}
	var p authNameParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, invalidParams(req, err)
	}
	record, err := s.Vault.Get(p.Name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, wire.New(wire.KindNotFound, "credential %q not found", p.Name)
	}

	if err := validateNavigationURL(record.URL); err != nil {
		return nil, err
	}
	idx, err := activePageIndex(s)
	if err != nil {
		return nil, err
	}
	if err := s.Backend.Navigate(ctx, idx, record.URL, browser.NavigateOptions{WaitUntil: "load"}); err != nil {
		return nil, err
	}
	s.SetActivePageURL(record.URL, "")

	usernameSel := defaultString(record.UsernameSelector, `input[type=email], input[name*=user i], input[type=text]`)
	passwordSel := defaultString(record.PasswordSelector, `input[type=password]`)
	submitSel := defaultString(record.SubmitSelector, `button[type=submit], input[type=submit]`)

	script := fmt.Sprintf(`(function(){
var u = document.querySelector(%s);
var p = document.querySelector(%s);
if (!u || !p) return {found:false};
u.focus(); u.value = %s; u.dispatchEvent(new Event('input', {bubbles:true})); u.dispatchEvent(new Event('change', {bubbles:true}));
p.focus(); p.value = %s; p.dispatchEvent(new Event('input', {bubbles:true})); p.dispatchEvent(new Event('change', {bubbles:true}));
var submit = document.querySelector(%s);
if (submit) { submit.click(); } else if (p.form) { p.form.submit(); }
return {found:true};
})()`, jsStringLiteral(usernameSel), jsStringLiteral(passwordSel), jsStringLiteral(record.Username), jsStringLiteral(record.Password), jsStringLiteral(submitSel))

	result, err := s.Backend.Evaluate(ctx, idx, script)
	if err != nil {
		return nil, err
	}
	if !foundIn(result) {
		return nil, wire.New(wire.KindNotFound, "auth_login: could not locate username/password fields for %q", p.Name)
	}
	if err := s.Vault.TouchLastLogin(p.Name); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

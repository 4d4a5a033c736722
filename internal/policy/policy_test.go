package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agent-browser/daemon/internal/wire"
)

func TestEvaluateInternalAlwaysAllowed(t *testing.T) {
	t.Parallel()
	deny := &Policy{Default: DefaultDeny, Deny: map[wire.Category]bool{wire.CategoryInternal: true}}
	if got := Evaluate(wire.ActionLaunch, deny); got != Allow {
		t.Fatalf("expected _internal to bypass deny, got %v", got)
	}
}

func TestEvaluateDenyWinsOverAllowAndConfirm(t *testing.T) {
	t.Parallel()
	p := &Policy{
		Default: DefaultAllow,
		Allow:   map[wire.Category]bool{wire.CategoryNavigate: true},
		Deny:    map[wire.Category]bool{wire.CategoryNavigate: true},
		Confirm: map[wire.Category]bool{wire.CategoryNavigate: true},
	}
	if got := Evaluate(wire.ActionNavigate, p); got != Deny {
		t.Fatalf("expected deny to win, got %v", got)
	}
}

func TestEvaluateConfirmBeforeAllowList(t *testing.T) {
	t.Parallel()
	p := &Policy{
		Default: DefaultAllow,
		Allow:   map[wire.Category]bool{wire.CategoryDownload: true},
		Confirm: map[wire.Category]bool{wire.CategoryDownload: true},
	}
	if got := Evaluate(wire.ActionPDF, p); got != Confirm {
		t.Fatalf("expected confirm to take priority over allow list, got %v", got)
	}
}

func TestEvaluateNilPolicyAllowsEverythingNonInternal(t *testing.T) {
	t.Parallel()
	if got := Evaluate(wire.ActionNavigate, nil); got != Allow {
		t.Fatalf("expected nil policy to allow, got %v", got)
	}
}

func TestEvaluateDefaultFallback(t *testing.T) {
	t.Parallel()
	denyDefault := &Policy{Default: DefaultDeny}
	if got := Evaluate(wire.ActionClick, denyDefault); got != Deny {
		t.Fatalf("expected default deny fallback, got %v", got)
	}
	allowDefault := &Policy{Default: DefaultAllow}
	if got := Evaluate(wire.ActionClick, allowDefault); got != Allow {
		t.Fatalf("expected default allow fallback, got %v", got)
	}
}

func TestEvaluateUnknownActionSkipsInternalShortCircuit(t *testing.T) {
	t.Parallel()
	p := &Policy{Default: DefaultDeny}
	if got := Evaluate(wire.Action("not_a_real_action"), p); got != Deny {
		t.Fatalf("expected unknown action to fall through to default, got %v", got)
	}
}

func TestEvaluateCategoryGatesUploadSeparatelyFromFill(t *testing.T) {
	t.Parallel()
	p := &Policy{
		Default: DefaultAllow,
		Deny:    map[wire.Category]bool{wire.CategoryUpload: true},
	}
	if got := EvaluateCategory(wire.CategoryFill, p); got != Allow {
		t.Fatalf("expected plain fill to stay allowed, got %v", got)
	}
	if got := EvaluateCategory(wire.CategoryUpload, p); got != Deny {
		t.Fatalf("expected upload category to be denied, got %v", got)
	}
}

func TestParseRejectsMissingDefault(t *testing.T) {
	t.Parallel()
	_, _, err := Parse([]byte(`allow: [navigate]`))
	if err == nil {
		t.Fatalf("expected error for missing default")
	}
}

func TestParseWarnsOnUnknownCategoryButSucceeds(t *testing.T) {
	t.Parallel()
	p, warnings, err := Parse([]byte("default: allow\nallow:\n  - navigate\n  - made_up_category\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if !p.Allow[wire.CategoryNavigate] {
		t.Fatalf("expected navigate to still be parsed")
	}
}

func TestStoreReloadsOnMtimeChangeAfterCooldownCleared(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("default: deny\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Current().Default != DefaultDeny {
		t.Fatalf("expected initial default deny")
	}

	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte("default: allow\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := store.ForceReload(); err != nil {
		t.Fatalf("ForceReload: %v", err)
	}
	if store.Current().Default != DefaultAllow {
		t.Fatalf("expected reloaded default allow")
	}
}

func TestStoreMissingFileActsAsNoPolicy(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Current() != nil {
		t.Fatalf("expected nil policy for missing file")
	}
}

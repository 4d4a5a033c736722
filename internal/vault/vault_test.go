package vault

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/agent-browser/daemon/internal/cryptox"
	"github.com/agent-browser/daemon/internal/wire"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AGENT_BROWSER_ENCRYPTION_KEY", "")
	key, err := cryptox.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return New(key)
}

func TestValidateNameRejectsBadCharacters(t *testing.T) {
	t.Parallel()
	if err := ValidateName("github-work_1"); err != nil {
		t.Fatalf("expected valid name, got %v", err)
	}
	err := ValidateName("my site!")
	if wire.KindOf(err) != wire.KindInvalidName {
		t.Fatalf("expected invalid_name kind, got %v", wire.KindOf(err))
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	v := newTestVault(t)
	result, err := v.Save("github", "https://github.com/login", "alice", "hunter2", "#u", "#p", "#submit")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if result.Updated {
		t.Fatalf("expected fresh save to report not-updated")
	}

	record, err := v.Get("github")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil {
		t.Fatalf("expected record, got nil")
	}
	if record.Username != "alice" || record.Password != "hunter2" {
		t.Fatalf("unexpected record contents: %+v", record)
	}
}

func TestSavePreservesCreatedAtOnUpdate(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Save("github", "https://github.com", "alice", "pw1", "", "", ""); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first, err := v.Get("github")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	result, err := v.Save("github", "https://github.com", "alice", "pw2", "", "", "")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !result.Updated {
		t.Fatalf("expected update to report updated=true")
	}
	second, err := v.Get("github")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected createdAt to be preserved across update")
	}
	if second.Password != "pw2" {
		t.Fatalf("expected password to be updated")
	}
}

func TestGetMetaOmitsPassword(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Save("site", "https://example.com", "bob", "secretpw", "", "", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	meta, err := v.GetMeta("site")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if meta == nil {
		t.Fatalf("expected meta, got nil")
	}
	if meta.Username != "bob" {
		t.Fatalf("expected username to survive in meta")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	if strings.Contains(string(data), "secretpw") || strings.Contains(string(data), `"password"`) {
		t.Fatalf("expected meta to carry no password, got %s", data)
	}
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	v := newTestVault(t)
	record, err := v.Get("nonexistent")
	if err != nil {
		t.Fatalf("expected no error for missing record, got %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record for missing name")
	}
}

func TestListSurfacesCorruptRecordsWithPlaceholder(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Save("good", "https://example.com", "bob", "pw", "", "", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	otherKey, err := cryptox.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	corruptVault := New(otherKey)
	if _, err := corruptVault.Save("bad", "https://example.com", "eve", "pw", "", "", ""); err != nil {
		t.Fatalf("Save with different key: %v", err)
	}

	metas, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(metas))
	}
	var sawCorrupt, sawGood bool
	for _, m := range metas {
		if m.Name == "bad" && m.Corrupt {
			sawCorrupt = true
		}
		if m.Name == "good" && !m.Corrupt {
			sawGood = true
		}
	}
	if !sawCorrupt || !sawGood {
		t.Fatalf("expected one corrupt and one good entry, got %+v", metas)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Save("site", "https://example.com", "bob", "pw", "", "", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	existed, err := v.Delete("site")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Fatalf("expected delete of existing record to report true")
	}
	existed, err = v.Delete("site")
	if err != nil {
		t.Fatalf("Delete (second): %v", err)
	}
	if existed {
		t.Fatalf("expected delete of already-removed record to report false")
	}
}

func TestTouchLastLoginSetsTimestamp(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Save("site", "https://example.com", "bob", "pw", "", "", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := v.TouchLastLogin("site"); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}
	record, err := v.Get("site")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.LastLoginAt == nil {
		t.Fatalf("expected lastLoginAt to be set")
	}
}

func TestGetWithoutKeyFailsKeyMissing(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Save("site", "https://example.com", "bob", "pw", "", "", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	v.key = nil
	_, err := v.Get("site")
	if wire.KindOf(err) != wire.KindKeyMissing {
		t.Fatalf("expected key_missing kind, got %v", wire.KindOf(err))
	}
}

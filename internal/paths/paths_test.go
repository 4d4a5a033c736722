package paths

import (
	"path/filepath"
	"testing"
)

func TestSessionDefaultsWhenUnset(t *testing.T) {
	t.Setenv(SessionEnv, "")
	if got := Session(); got != "default" {
		t.Fatalf("expected default session, got %q", got)
	}
}

func TestSessionHonorsEnv(t *testing.T) {
	t.Setenv(SessionEnv, "work")
	if got := Session(); got != "work" {
		t.Fatalf("expected work session, got %q", got)
	}
}

func TestSocketDirPrefersExplicitOverride(t *testing.T) {
	t.Setenv(SocketDirEnv, "/tmp/sockdir")
	t.Setenv(XDGRuntimeDirEnv, "/tmp/xdgdir")
	dir, err := SocketDir()
	if err != nil {
		t.Fatalf("SocketDir: %v", err)
	}
	if dir != filepath.Join("/tmp/sockdir", "agent-browser") {
		t.Fatalf("unexpected socket dir: %s", dir)
	}
}

func TestSocketDirFallsBackToXDG(t *testing.T) {
	t.Setenv(SocketDirEnv, "")
	t.Setenv(XDGRuntimeDirEnv, "/tmp/xdgdir")
	dir, err := SocketDir()
	if err != nil {
		t.Fatalf("SocketDir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdgdir", "agent-browser") {
		t.Fatalf("unexpected socket dir: %s", dir)
	}
}

func TestSocketPathJoinsSessionName(t *testing.T) {
	t.Setenv(SocketDirEnv, "/tmp/sockdir")
	p, err := SocketPath("default")
	if err != nil {
		t.Fatalf("SocketPath: %v", err)
	}
	if p != filepath.Join("/tmp/sockdir", "agent-browser", "default.sock") {
		t.Fatalf("unexpected socket path: %s", p)
	}
}

func TestAuthRecordPathUsesNameAsFilename(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	p, err := AuthRecordPath("github")
	if err != nil {
		t.Fatalf("AuthRecordPath: %v", err)
	}
	if filepath.Base(p) != "github.json" {
		t.Fatalf("unexpected auth record path: %s", p)
	}
}

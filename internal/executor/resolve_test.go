package executor

import (
	"testing"

	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/snapshot"
	"github.com/agent-browser/daemon/internal/wire"
)

func sessionWithRefs(refs snapshot.RefMap) *session.Session {
	s := session.New("test", nil, session.Deps{})
	s.SetSnapshot(snapshot.Tree{Refs: refs})
	return s
}

func TestResolveTargetExplicitRefForms(t *testing.T) {
	t.Parallel()
	s := sessionWithRefs(snapshot.RefMap{"e1": {Role: "button", Name: "Submit"}})
	for _, target := range []string{"@e1", "ref=e1"} {
		loc, err := resolveTarget(s, targetParams{Target: target})
		if err != nil {
			t.Fatalf("resolveTarget(%q): %v", target, err)
		}
		if loc.Role != "button" || loc.Name != "Submit" {
			t.Fatalf("resolveTarget(%q) = %+v, want role+name from ref map", target, loc)
		}
	}
}

func TestResolveTargetExplicitRefStaleFails(t *testing.T) {
	t.Parallel()
	s := sessionWithRefs(snapshot.RefMap{"e1": {Role: "button", Name: "Submit"}})
	_, err := resolveTarget(s, targetParams{Target: "@e2"})
	if wire.KindOf(err) != wire.KindStaleRef {
		t.Fatalf("expected <StaleRef> for a missing explicit ref, got %v", err)
	}
}

func TestResolveTargetBareFormPrefersRefThenFallsBackToSelector(t *testing.T) {
	t.Parallel()
	s := sessionWithRefs(snapshot.RefMap{"e1": {Role: "button", Name: "Submit"}})

	// "e1" matches a live ref: resolved as a ref, not a literal CSS selector.
	loc, err := resolveTarget(s, targetParams{Target: "e1"})
	if err != nil {
		t.Fatalf("resolveTarget(e1): %v", err)
	}
	if loc.Role != "button" || loc.Selector != "" {
		t.Fatalf("expected e1 to resolve via the ref map, got %+v", loc)
	}

	// "e2" has ref syntax but isn't in the map: falls back to a literal
	// selector instead of failing <StaleRef>, per the bare-form caveat.
	loc, err = resolveTarget(s, targetParams{Target: "e2"})
	if err != nil {
		t.Fatalf("resolveTarget(e2): %v", err)
	}
	if loc.Selector != "e2" {
		t.Fatalf("expected e2 to fall back to a literal selector, got %+v", loc)
	}
}

func TestResolveTargetPlainSelector(t *testing.T) {
	t.Parallel()
	s := sessionWithRefs(nil)
	loc, err := resolveTarget(s, targetParams{Target: "button.submit"})
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if loc.Selector != "button.submit" {
		t.Fatalf("expected selector to carry through verbatim, got %+v", loc)
	}
}

func TestResolveTargetEmptyFails(t *testing.T) {
	t.Parallel()
	s := sessionWithRefs(nil)
	_, err := resolveTarget(s, targetParams{})
	if wire.KindOf(err) != wire.KindInvalidArgument {
		t.Fatalf("expected <InvalidArgument> for an empty target, got %v", err)
	}
}

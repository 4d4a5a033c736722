package snapshot

import (
	"strings"
	"testing"

	"github.com/agent-browser/daemon/internal/browser"
)

func sampleTree() browser.AXNode {
	return browser.AXNode{
		Role: "WebArea",
		Name: "Example",
		Children: []browser.AXNode{
			{Role: "button", Name: "Submit"},
			{Role: "button", Name: "Cancel"},
			{Role: "textbox", Name: "Search"},
			{
				Role: "generic",
				Children: []browser.AXNode{
					{Role: "button", Name: "Submit"},
				},
			},
		},
	}
}

func TestCaptureAssignsRefsDepthFirstPreOrder(t *testing.T) {
	t.Parallel()
	tree := Capture(sampleTree(), Options{})
	if len(tree.Refs) != 6 {
		t.Fatalf("expected 6 refs (root + 5 descendants), got %d: %+v", len(tree.Refs), tree.Refs)
	}
	if _, ok := tree.Refs["e1"]; !ok {
		t.Fatalf("expected e1 to exist as first assigned ref")
	}
	if e := tree.Refs["e5"]; e.Role != "generic" {
		t.Fatalf("expected e5 to be the generic container, got %+v", e)
	}
	if e := tree.Refs["e6"]; e.Role != "button" || e.Name != "Submit" || e.Nth != 1 {
		t.Fatalf("expected e6 to be the nested Submit button with nth 1, got %+v", e)
	}
}

func TestCaptureDisambiguatesDuplicatePairsWithNth(t *testing.T) {
	t.Parallel()
	tree := Capture(sampleTree(), Options{})
	var submits []RefEntry
	for _, entry := range tree.Refs {
		if entry.Role == "button" && entry.Name == "Submit" {
			submits = append(submits, entry)
		}
	}
	if len(submits) != 2 {
		t.Fatalf("expected 2 Submit buttons, got %d", len(submits))
	}
	seenNth := map[int]bool{}
	for _, e := range submits {
		if !e.HasNth {
			t.Fatalf("expected duplicate pair to carry nth, got %+v", e)
		}
		seenNth[e.Nth] = true
	}
	if !seenNth[0] || !seenNth[1] {
		t.Fatalf("expected nth 0 and 1 among duplicates, got %+v", submits)
	}
}

func TestCaptureUniquePairHasNoNth(t *testing.T) {
	t.Parallel()
	tree := Capture(sampleTree(), Options{})
	for _, entry := range tree.Refs {
		if entry.Role == "textbox" && entry.Name == "Search" {
			if entry.HasNth {
				t.Fatalf("expected unique pair to carry no nth, got %+v", entry)
			}
			return
		}
	}
	t.Fatalf("expected to find the Search textbox ref")
}

func TestCaptureInteractiveFiltersNonInteractiveRoles(t *testing.T) {
	t.Parallel()
	tree := Capture(sampleTree(), Options{Interactive: true})
	for _, entry := range tree.Refs {
		if entry.Role == "WebArea" || entry.Role == "generic" {
			t.Fatalf("expected non-interactive role filtered out, found %+v", entry)
		}
	}
}

func TestCaptureMaxDepthCapsTraversal(t *testing.T) {
	t.Parallel()
	tree := Capture(sampleTree(), Options{MaxDepth: 0})
	rootOnly := Capture(sampleTree(), Options{MaxDepth: 0})
	_ = rootOnly
	capped := Capture(sampleTree(), Options{MaxDepth: 1})
	if len(capped.Refs) >= len(tree.Refs) {
		t.Fatalf("expected capped depth to yield fewer refs than unlimited")
	}
}

func TestIsRefAcceptsAllThreeForms(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"e1", "@e1", "ref=e1"} {
		if !IsRef(s) {
			t.Fatalf("expected %q to be recognized as a ref", s)
		}
	}
	if IsRef("button.submit") {
		t.Fatalf("expected a plain selector not to be recognized as a ref")
	}
}

func TestIsExplicitRefOnlyMatchesPrefixedForms(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"@e1", "ref=e1"} {
		if !IsExplicitRef(s) {
			t.Fatalf("expected %q to be an explicit ref", s)
		}
	}
	for _, s := range []string{"e1", "button.submit"} {
		if IsExplicitRef(s) {
			t.Fatalf("expected %q not to be an explicit ref", s)
		}
	}
}

func TestResolveReturnsFalseForStaleRef(t *testing.T) {
	t.Parallel()
	refs := RefMap{"e1": {Role: "button", Name: "Submit"}}
	_, ok := Resolve("e2", refs)
	if ok {
		t.Fatalf("expected stale ref lookup to fail")
	}
}

func TestResolveAppliesNth(t *testing.T) {
	t.Parallel()
	refs := RefMap{"e3": {Role: "button", Name: "Submit", Nth: 1, HasNth: true}}
	loc, ok := Resolve("@e3", refs)
	if !ok {
		t.Fatalf("expected resolve to succeed")
	}
	if !loc.HasNth || loc.Nth != 1 {
		t.Fatalf("expected nth to carry through, got %+v", loc)
	}
}

func TestCaptureRendersCompactText(t *testing.T) {
	t.Parallel()
	tree := Capture(sampleTree(), Options{})
	if !strings.Contains(tree.Text, "Submit") {
		t.Fatalf("expected rendered text to mention Submit, got %q", tree.Text)
	}
}

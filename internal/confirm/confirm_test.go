package confirm

import (
	"strings"
	"testing"
	"time"
)

func TestRequestMintsCPrefixedID(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	id, err := r.Request("navigate", "navigate", "Navigate to https://example.com", "go https://example.com")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !strings.HasPrefix(id, "c_") || len(id) != len("c_")+16 {
		t.Fatalf("unexpected id shape: %q", id)
	}
}

func TestConsumeOnceOnly(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	id, err := r.Request("click", "click", "Click #submit", "click #submit")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	consumed, ok := r.Consume(id)
	if !ok || consumed.Action != "click" {
		t.Fatalf("expected first consume to succeed, got %+v ok=%v", consumed, ok)
	}
	_, ok = r.Consume(id)
	if ok {
		t.Fatalf("expected second consume of same id to fail")
	}
}

func TestConsumeUnknownIDFails(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, ok := r.Consume("c_doesnotexist0000")
	if ok {
		t.Fatalf("expected consume of unknown id to fail")
	}
}

func TestAutoExpiry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	id, err := r.Request("eval", "eval", "Evaluate script: 1+1", "1+1")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	r.mu.Lock()
	if timer, ok := r.timers[id]; ok {
		timer.Stop()
	}
	r.mu.Unlock()
	r.expireNow(id)

	_, ok := r.Consume(id)
	if ok {
		t.Fatalf("expected expired id to be unconsumable")
	}
	_ = time.Millisecond
}

func TestDescribeEvalTruncatesLongScript(t *testing.T) {
	t.Parallel()
	script := strings.Repeat("a", 200)
	desc := DescribeEval(script)
	if !strings.HasSuffix(desc, "…") {
		t.Fatalf("expected truncated description to end with ellipsis, got %q", desc)
	}
	if len(desc) > len("Evaluate script: ")+maxScriptPreview+len("…") {
		t.Fatalf("description too long: %d chars", len(desc))
	}
}

func TestDescribeEvalShortScriptNoTruncation(t *testing.T) {
	t.Parallel()
	desc := DescribeEval("1+1")
	if desc != "Evaluate script: 1+1" {
		t.Fatalf("unexpected description: %q", desc)
	}
}

func TestDescribeNavigateIncludesURL(t *testing.T) {
	t.Parallel()
	desc := DescribeNavigate("https://example.com")
	if !strings.Contains(desc, "https://example.com") {
		t.Fatalf("expected description to include url, got %q", desc)
	}
}

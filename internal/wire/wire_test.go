package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRequestDecodeParams(t *testing.T) {
	t.Parallel()
	var req Request
	if err := json.Unmarshal([]byte(`{"id":"1","action":"navigate","url":"about:blank"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.ID != "1" || req.Action != ActionNavigate {
		t.Fatalf("unexpected request: %+v", req)
	}
	var params struct {
		URL string `json:"url"`
	}
	if err := req.DecodeParams(&params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params.URL != "about:blank" {
		t.Fatalf("expected about:blank, got %q", params.URL)
	}
}

func TestCategoryForKnownAndUnknown(t *testing.T) {
	t.Parallel()
	if CategoryFor(ActionNavigate) != CategoryNavigate {
		t.Fatalf("navigate should categorize as navigate")
	}
	if CategoryFor(ActionEvaluate) != CategoryEval {
		t.Fatalf("evaluate should categorize as eval")
	}
	if CategoryFor(Action("totally_unknown")) != CategoryUnknown {
		t.Fatalf("unrecognized action should categorize as unknown")
	}
	if IsKnown(Action("totally_unknown")) {
		t.Fatalf("unrecognized action should not be known")
	}
	if !IsKnown(ActionClick) {
		t.Fatalf("click should be known")
	}
}

func TestCategoryForRequestUploadException(t *testing.T) {
	t.Parallel()
	plain := &Request{Action: ActionSetValue, Params: json.RawMessage(`{"id":"1","action":"setvalue","target":"#x","value":"hi"}`)}
	if got := CategoryForRequest(plain); got != CategoryFill {
		t.Fatalf("setvalue without files should categorize as fill, got %s", got)
	}
	upload := &Request{Action: ActionSetValue, Params: json.RawMessage(`{"id":"1","action":"setvalue","target":"#x","files":["/tmp/a.txt"]}`)}
	if got := CategoryForRequest(upload); got != CategoryUpload {
		t.Fatalf("setvalue with files should categorize as upload, got %s", got)
	}
	other := &Request{Action: ActionClick, Params: json.RawMessage(`{"id":"1","action":"click","target":"#x"}`)}
	if got := CategoryForRequest(other); got != CategoryClick {
		t.Fatalf("non-setvalue actions should use the static category, got %s", got)
	}
}

func TestResponseBuilders(t *testing.T) {
	t.Parallel()
	ok := OK("1", map[string]string{"url": "about:blank"})
	if !ok.Success || ok.ID != "1" {
		t.Fatalf("unexpected OK response: %+v", ok)
	}
	fail := Fail("2", "boom")
	if fail.Success || fail.Error != "boom" {
		t.Fatalf("unexpected Fail response: %+v", fail)
	}
	confirm := NeedsConfirmation("3", "c_abc", "download", "Download via x")
	if confirm.Success || !confirm.ConfirmationRequired || confirm.ConfirmationID != "c_abc" {
		t.Fatalf("unexpected confirm response: %+v", confirm)
	}
}

func TestErrorKindOf(t *testing.T) {
	t.Parallel()
	err := New(KindStaleRef, "ref %s not found", "e1")
	if KindOf(err) != KindStaleRef {
		t.Fatalf("expected stale_ref kind")
	}
	wrapped := Wrap(KindDriverError, errors.New("underlying"), "driver failed")
	if KindOf(wrapped) != KindDriverError {
		t.Fatalf("expected driver_error kind")
	}
	if !errors.Is(wrapped.Unwrap(), wrapped.Cause) {
		t.Fatalf("unwrap should return cause")
	}
	if KindOf(errors.New("plain")) != KindDriverError {
		t.Fatalf("plain errors should default to driver_error kind")
	}
}

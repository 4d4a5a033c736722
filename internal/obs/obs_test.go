package obs

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestNewLoggerDefaultsToInfoOnUnrecognizedLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "not-a-level")
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Sync()
	if !logger.Core().Enabled(parseLevel("info")) {
		t.Fatalf("expected info level to be enabled by default")
	}
}

func TestStartMetricsServerDisabledWhenAddrEmpty(t *testing.T) {
	t.Parallel()
	srv, err := StartMetricsServer("", NewMetrics(), nil)
	if err != nil {
		t.Fatalf("expected no error for empty addr, got %v", err)
	}
	if srv != nil {
		t.Fatalf("expected nil server for empty addr")
	}
}

func TestStartMetricsServerRejectsNonLoopback(t *testing.T) {
	t.Parallel()
	_, err := StartMetricsServer("0.0.0.0:0", NewMetrics(), nil)
	if err == nil {
		t.Fatalf("expected error for non-loopback address")
	}
}

func TestStartMetricsServerServesMetricsEndpoint(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	m.ObserveAction("navigate", "ok", 10*time.Millisecond)

	srv, err := StartMetricsServer("127.0.0.1:0", m, nil)
	if err != nil {
		t.Fatalf("StartMetricsServer: %v", err)
	}
	defer srv.Shutdown(context.Background())

	addr := srv.listener.Addr().String()
	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(body) == 0 {
		t.Fatalf("expected non-empty metrics body")
	}
}

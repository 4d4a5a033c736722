// Package obs carries the daemon's ambient observability stack: a
// zap structured logger configured from AGENT_BROWSER_LOG_LEVEL, and a
// Prometheus metrics registry exposed on a loopback-only HTTP listener
// gated by AGENT_BROWSER_METRICS_ADDR, carried the way a production
// daemon in this corpus would.
package obs

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnv names the environment variable selecting zap's level.
const LogLevelEnv = "AGENT_BROWSER_LOG_LEVEL"

// MetricsAddrEnv names the environment variable enabling the metrics
// listener; unset or empty disables it.
const MetricsAddrEnv = "AGENT_BROWSER_METRICS_ADDR"

// NewLogger builds the daemon's zap logger, writing JSON to stderr at the
// level named by AGENT_BROWSER_LOG_LEVEL (debug|info|warn|error, default
// info; an unrecognized value falls back to info rather than failing
// startup).
func NewLogger() (*zap.Logger, error) {
	level := parseLevel(os.Getenv(LogLevelEnv))
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("obs: build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// RequestFields returns the per-request zap fields session, action and
// request_id. The session dispatch loop writes no per-request log lines
// and does not call it.
func RequestFields(sessionName, action, requestID string) []zap.Field {
	return []zap.Field{
		zap.String("session", sessionName),
		zap.String("action", action),
		zap.String("request_id", requestID),
	}
}

// Metrics is the daemon's Prometheus registry and the counters/gauges the
// dispatch loop and bridge update.
type Metrics struct {
	Registry *prometheus.Registry

	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	PolicyOutcomes *prometheus.CounterVec
	SessionsActive prometheus.Gauge
	BridgeFrames   *prometheus.CounterVec
}

// NewMetrics builds a fresh registry with all daemon metrics registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_browser",
			Name:      "actions_total",
			Help:      "Count of dispatched actions by action name and outcome.",
		}, []string{"action", "outcome"}),
		ActionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agent_browser",
			Name:      "action_duration_seconds",
			Help:      "Action execution latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		PolicyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_browser",
			Name:      "policy_outcomes_total",
			Help:      "Count of policy evaluations by category and decision.",
		}, []string{"category", "decision"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agent_browser",
			Name:      "sessions_active",
			Help:      "Number of currently running sessions.",
		}),
		BridgeFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_browser",
			Name:      "bridge_frames_total",
			Help:      "Count of bridge relay frames by endpoint and direction.",
		}, []string{"endpoint", "direction"}),
	}
}

// ObserveAction records one dispatched action's outcome and latency.
func (m *Metrics) ObserveAction(action, outcome string, duration time.Duration) {
	m.ActionsTotal.WithLabelValues(action, outcome).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// ObservePolicy records one policy evaluation outcome.
func (m *Metrics) ObservePolicy(category, decision string) {
	m.PolicyOutcomes.WithLabelValues(category, decision).Inc()
}

// Server wraps the loopback-only /metrics HTTP listener.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// StartMetricsServer binds addr (expected to be a loopback address) and
// serves /metrics. It returns (nil, nil) if addr is empty, the documented
// way to disable metrics entirely.
func StartMetricsServer(addr string, metrics *Metrics, log *zap.Logger) (*Server, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, nil
	}
	if err := requireLoopback(addr); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("obs: listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}
	}()
	return &Server{httpServer: srv, listener: ln}, nil
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func requireLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("obs: invalid metrics addr %q: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("obs: metrics addr %q must name an explicit loopback host", addr)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		if host == "localhost" {
			return nil
		}
		return fmt.Errorf("obs: metrics addr %q is not loopback", addr)
	}
	if !ip.IsLoopback() {
		return fmt.Errorf("obs: metrics addr %q is not loopback", addr)
	}
	return nil
}

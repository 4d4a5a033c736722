// Command agent-browserd runs one session daemon: it binds a Unix domain
// socket named after AGENT_BROWSER_SESSION, wires up the credential vault,
// policy engine, confirmation registry and chosen browser backend, and
// serves newline-delimited JSON requests until told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agent-browser/daemon/internal/bridge"
	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/confirm"
	"github.com/agent-browser/daemon/internal/cryptox"
	"github.com/agent-browser/daemon/internal/executor"
	"github.com/agent-browser/daemon/internal/obs"
	"github.com/agent-browser/daemon/internal/paths"
	"github.com/agent-browser/daemon/internal/policy"
	"github.com/agent-browser/daemon/internal/session"
	"github.com/agent-browser/daemon/internal/vault"
)

const version = "1.0.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version")
	backendFlag := flag.String("backend", "", "Browser backend: local_launch, cdp_attach, or bridge_relay (default local_launch)")
	bridgeAddr := flag.String("bridge-addr", "127.0.0.1:0", "Loopback address the bridge relay listens on, when -backend=bridge_relay")
	extensionID := flag.String("extension-id", "", "chrome-extension:// id to build the relay invite URL for, when -backend=bridge_relay")
	flag.Parse()

	if *showVersion {
		fmt.Printf("agent-browserd v%s\n", version)
		os.Exit(0)
	}

	if err := run(*backendFlag, *bridgeAddr, *extensionID); err != nil {
		fmt.Fprintln(os.Stderr, "agent-browserd:", err)
		os.Exit(1)
	}
}

func run(backendFlag, bridgeAddr, extensionID string) error {
	log, err := obs.NewLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	metrics := obs.NewMetrics()
	metricsSrv, err := obs.StartMetricsServer(os.Getenv(obs.MetricsAddrEnv), metrics, log)
	if err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	key, err := cryptox.EnsureKey(func(path string) {
		log.Info("generated encryption key", zap.String("path", path))
	})
	if err != nil {
		return fmt.Errorf("acquire encryption key: %w", err)
	}
	credentials := vault.New(key)

	policyPath, err := paths.PolicyFile()
	if err != nil {
		return fmt.Errorf("resolve policy file path: %w", err)
	}
	policyStore, err := policy.NewStore(policyPath, func(warnings []string) {
		for _, w := range warnings {
			log.Warn("policy: parse warning", zap.String("warning", w))
		}
	})
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	policyStore.Watch(stopWatch, log)

	confirmations := confirm.NewRegistry()

	backend, bridgeSrv, err := buildBackend(backendFlag, bridgeAddr, extensionID, log, metrics)
	if err != nil {
		return fmt.Errorf("build browser backend: %w", err)
	}

	sessionName := paths.Session()
	uploadDir, err := paths.StateDir(sessionName)
	if err != nil {
		return fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := paths.EnsureDir(uploadDir); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}

	deps := session.Deps{
		Vault:         credentials,
		Policy:        policyStore,
		Confirm:       confirmations,
		Runner:        executor.New(log, uploadDir),
		Metrics:       metrics,
		Log:           log,
		ActionTimeout: actionTimeout(),
	}
	sess := session.New(sessionName, backend, deps)

	ln, socketPath, err := session.Listen(sessionName)
	if err != nil {
		return fmt.Errorf("bind session socket: %w", err)
	}
	sess.MarkRunning()
	metrics.SessionsActive.Inc()
	log.Info("agent-browserd: session running",
		zap.String("session", sessionName),
		zap.String("socket", socketPath),
		zap.String("backend", string(backendKind(backendFlag))))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go acceptLoop(ctx, ln, sess, log)

	<-ctx.Done()
	log.Info("agent-browserd: shutting down")

	sess.Drain()
	_ = ln.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Stop(shutdownCtx); err != nil {
		log.Warn("agent-browserd: backend close error", zap.Error(err))
	}
	if bridgeSrv != nil {
		_ = bridgeSrv.Shutdown(shutdownCtx)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	metrics.SessionsActive.Dec()
	if err := session.RemoveSocket(socketPath); err != nil {
		log.Warn("agent-browserd: remove socket failed", zap.Error(err))
	}
	return nil
}

func acceptLoop(ctx context.Context, ln net.Listener, sess *session.Session, log *zap.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("agent-browserd: accept failed", zap.Error(err))
			continue
		}
		go sess.ServeConn(ctx, conn)
	}
}

func backendKind(flagValue string) browser.Kind {
	switch strings.TrimSpace(flagValue) {
	case string(browser.KindCdpAttach):
		return browser.KindCdpAttach
	case string(browser.KindBridgeRelay):
		return browser.KindBridgeRelay
	default:
		return browser.KindLocalLaunch
	}
}

// buildBackend constructs the configured BrowserBackend. bridge_relay is the
// only variant fully implemented by this build; local_launch and cdp_attach
// construct their stubs, which fail uniformly at the point of use rather
// than at startup (see internal/browser/stub.go).
func buildBackend(flagValue, bridgeAddr, extensionID string, log *zap.Logger, metrics *obs.Metrics) (browser.BrowserBackend, *bridge.Server, error) {
	switch backendKind(flagValue) {
	case browser.KindCdpAttach:
		return &browser.CdpAttachBackend{}, nil, nil

	case browser.KindBridgeRelay:
		srv, err := bridge.NewServer(bridgeAddr, log, metrics)
		if err != nil {
			return nil, nil, err
		}
		relay, p := srv.NewPair()
		if extensionID != "" {
			invite := bridge.InviteURL(extensionID, p, p.DriverID, "")
			log.Info("agent-browserd: open this URL in the browser to connect the extension",
				zap.String("invite_url", invite))
		} else {
			log.Info("agent-browserd: waiting for extension",
				zap.String("extension_url", p.ExtensionURL))
		}
		waitCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := relay.WaitExtension(waitCtx); err != nil {
			_ = srv.Shutdown(context.Background())
			return nil, nil, fmt.Errorf("bridge: extension never connected: %w", err)
		}
		return relay, srv, nil

	default:
		return &browser.LocalLaunchBackend{
			ExecutablePath: os.Getenv(paths.ExecutablePathEnv),
			Headed:         parseBool(os.Getenv(paths.HeadedEnv)),
			Extensions:     splitList(os.Getenv(paths.ExtensionsEnv)),
		}, nil, nil
	}
}

func actionTimeout() time.Duration {
	raw := strings.TrimSpace(os.Getenv(paths.ActionTimeoutEnv))
	if raw == "" {
		return session.DefaultActionTimeout
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return session.DefaultActionTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

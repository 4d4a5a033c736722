package session

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/agent-browser/daemon/internal/paths"
)

// probeTimeout bounds how long a stale-socket connect probe may block.
const probeTimeout = 200 * time.Millisecond

// Listen binds the session's Unix domain socket, handling the stale-socket
// detection this requires: if a socket file already exists and is
// connectable, another daemon owns this session and Listen returns an
// error; if it exists but isn't connectable, it's removed as stale before
// binding.
func Listen(sessionName string) (net.Listener, string, error) {
	socketPath, err := paths.SocketPath(sessionName)
	if err != nil {
		return nil, "", err
	}
	if err := paths.EnsureDir(filepath.Dir(socketPath)); err != nil {
		return nil, "", err
	}

	if _, statErr := os.Stat(socketPath); statErr == nil {
		if probeConnectable(socketPath) {
			return nil, "", fmt.Errorf("session: socket %s is owned by another running daemon", socketPath)
		}
		if err := os.Remove(socketPath); err != nil {
			return nil, "", fmt.Errorf("session: remove stale socket %s: %w", socketPath, err)
		}
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, "", fmt.Errorf("session: listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		ln.Close()
		return nil, "", fmt.Errorf("session: chmod socket %s: %w", socketPath, err)
	}
	return ln, socketPath, nil
}

// probeConnectable reports whether a client can currently dial path,
// indicating a live daemon already owns it.
func probeConnectable(path string) bool {
	conn, err := net.DialTimeout("unix", path, probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RemoveSocket removes the socket sentinel on clean shutdown, once the
// stopped state has been reached.
func RemoveSocket(socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: remove socket %s: %w", socketPath, err)
	}
	return nil
}

package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/agent-browser/daemon/internal/wire"
)

// ServeConn reads newline-delimited JSON request frames from conn and
// writes newline-delimited JSON responses, dispatching each through
// s.Dispatch. Requests on one connection are handled strictly in arrival
// order (a per-connection FIFO guarantee) since this loop reads
// and dispatches synchronously rather than spawning a goroutine per frame.
func (s *Session) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	encodeMu := newFrameEncoder(conn)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleFrame(ctx, line, encodeMu)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && s.Log != nil {
				s.Log.Debug("connection read error", zap.String("session", s.Name), zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, line []byte, enc *frameEncoder) {
	var req wire.Request
	if err := json.Unmarshal(line, &req); err != nil {
		_ = enc.Write(wire.Fail("", "parse_error: "+err.Error()))
		return
	}
	resp := s.Dispatch(ctx, &req)
	_ = enc.Write(resp)
}

// frameEncoder writes each response as one newline-terminated JSON frame.
// It holds no lock: only ServeConn's own loop writes to the connection, so
// writes never overlap.
type frameEncoder struct {
	w io.Writer
}

func newFrameEncoder(w io.Writer) *frameEncoder {
	return &frameEncoder{w: w}
}

func (f *frameEncoder) Write(resp wire.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.w.Write(data)
	return err
}

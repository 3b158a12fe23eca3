// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mountbay/mountbay/lib/codec"
)

// ActionFunc processes one control request. The raw parameter is the
// full CBOR request, "action" field included; handlers decode their
// own fields from it.
//
// A non-nil result is marshaled into the response's "data" field. A
// nil result yields a bare {ok: true}. An error yields a failure
// response carrying the error text.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire envelope for every control-socket reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Connection limits. A control client connects, writes one request,
// and reads one reply; anything slower than these is stuck or hostile.
// Requests are an action name plus a few scalars, so 1 MB of request
// is already three orders of magnitude of headroom.
const (
	readTimeout    = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxRequestSize = 1024 * 1024
)

// SocketServer serves the daemon's CBOR control protocol on a Unix
// socket. Each connection is one request-response cycle: the client
// writes a CBOR value, the server replies, the connection closes.
//
// Register actions with Handle before calling Serve; unknown actions
// get a failure response.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	// inFlight counts connections currently inside a handler, so
	// Serve can drain them before returning.
	inFlight sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
	}
}

// Handle registers a handler for the given action name. Panics on a
// duplicate registration; actions are wired once at startup.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve listens on the Unix socket and dispatches requests until ctx
// is cancelled, then stops accepting and waits for in-flight handlers.
// A stale socket file at the path is removed before listening, and the
// socket file is removed again on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Cancellation unblocks Accept by closing the listener.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("control socket listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.inFlight.Add(1)
		go func() {
			defer s.inFlight.Done()
			defer conn.Close()
			s.respond(conn, s.serveRequest(ctx, conn))
		}()
	}

	s.inFlight.Wait()
	return nil
}

// serveRequest reads and dispatches one request, returning the reply
// envelope to send. A nil return means the client hung up without
// sending anything and no reply is owed.
func (s *SocketServer) serveRequest(ctx context.Context, conn net.Conn) *Response {
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// One self-delimiting CBOR value per connection, so no framing is
	// needed. LimitReader caps what a hostile client can make us hold.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return failure(fmt.Sprintf("invalid request: %v", err))
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		return failure(fmt.Sprintf("invalid request: %v", err))
	}
	if header.Action == "" {
		return failure("missing required field: action")
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		return failure(fmt.Sprintf("unknown action %q", header.Action))
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		return failure(err.Error())
	}

	reply := &Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return failure(fmt.Sprintf("internal: marshaling response: %v", err))
		}
		reply.Data = data
	}
	return reply
}

// respond writes the reply envelope. Write failures are logged at
// debug level only: the connection is closing either way.
func (s *SocketServer) respond(conn net.Conn, reply *Response) {
	if reply == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func failure(message string) *Response {
	return &Response{OK: false, Error: message}
}

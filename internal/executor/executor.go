// Package executor implements the server side of the bridge protocol:
// a TCP listener that accepts one client at a time, dispatches tool
// requests serially against the active document, and replies with
// response or error frames carrying the request's correlation id.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cadbridge/internal/document"
	"cadbridge/internal/domain"
	"cadbridge/internal/handler"
	"cadbridge/internal/history"
	"cadbridge/internal/metrics"
	"cadbridge/internal/registry"
	"cadbridge/internal/wire"
)

// State is the executor lifecycle state.
type State int32

const (
	StateListening State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Recorder receives the command audit trail. Recording failures are
// logged, never propagated.
type Recorder interface {
	RecordCommand(ctx context.Context, cmd history.Command) error
}

// Config holds the executor dependencies.
type Config struct {
	Host      string
	Port      int
	Registry  *registry.Registry
	Handlers  *handler.Set
	Documents *document.Store
	History   Recorder // optional
	Logger    *slog.Logger
}

// Executor serves the bridge protocol. One client at a time: a second
// connection attempt is refused with an error frame and closed, the
// first connection stays untouched.
type Executor struct {
	cfg      Config
	listener net.Listener
	state    atomic.Int32

	mu     sync.Mutex
	active net.Conn
}

// New prepares an executor. Serve binds the listener.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

// Addr returns the bound listener address, or nil before Serve.
func (e *Executor) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// State reports the current lifecycle state.
func (e *Executor) State() State {
	return State(e.state.Load())
}

// Serve listens and accepts connections until ctx is canceled. It
// returns nil on clean shutdown.
func (e *Executor) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(e.cfg.Host, fmt.Sprintf("%d", e.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	e.mu.Lock()
	e.listener = ln
	e.mu.Unlock()
	e.state.Store(int32(StateListening))
	e.cfg.Logger.Info("executor listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		e.shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				e.cfg.Logger.Info("executor stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		e.mu.Lock()
		if e.active != nil {
			e.mu.Unlock()
			e.refuse(conn)
			continue
		}
		e.active = conn
		e.mu.Unlock()

		e.state.Store(int32(StateConnected))
		metrics.ActiveConnections.Inc()
		session := uuid.NewString()
		e.cfg.Logger.Info("client connected", "remote", conn.RemoteAddr().String(), "session", session)

		go func() {
			e.serveConn(ctx, conn, session)
			metrics.ActiveConnections.Dec()
			e.mu.Lock()
			e.active = nil
			e.mu.Unlock()
			// CAS so a concurrent shutdown's Closed store cannot be
			// overwritten back to Listening.
			e.state.CompareAndSwap(int32(StateConnected), int32(StateListening))
			e.cfg.Logger.Info("client disconnected", "session", session)
		}()
	}
}

// refuse rejects a second client without disturbing the active one. The
// refusal frame uses correlation id 0 since no request prompted it.
func (e *Executor) refuse(conn net.Conn) {
	e.cfg.Logger.Warn("refusing second client", "remote", conn.RemoteAddr().String())
	derr := domain.Errorf(domain.CodeRefused, "", "executor already has a client connected")
	if err := wire.WriteMessage(conn, wire.NewError(0, derr)); err != nil {
		e.cfg.Logger.Debug("cannot write refusal frame", "err", err)
	}
	conn.Close()
}

func (e *Executor) shutdown() {
	e.state.Store(int32(StateClosed))
	e.mu.Lock()
	ln, conn := e.listener, e.active
	e.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

// serveConn reads requests and dispatches them serially. A malformed
// frame closes the connection without a reply: framing offers no
// recovery point.
func (e *Executor) serveConn(ctx context.Context, conn net.Conn, session string) {
	defer conn.Close()

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, wire.ErrMalformed) {
				metrics.FramesMalformed.Inc()
				e.cfg.Logger.Error("malformed frame, closing connection", "session", session, "err", err)
			}
			return
		}
		if msg.Kind != wire.KindRequest {
			e.cfg.Logger.Error("client sent a non-request frame, closing", "session", session, "kind", msg.Kind)
			return
		}

		start := time.Now()
		result, derr := e.dispatch(ctx, msg.Tool, msg.Params)
		latency := time.Since(start)

		metrics.CommandsTotal.Inc()
		metrics.CommandLatency.Observe(latency.Seconds())

		var reply *wire.Message
		if derr != nil {
			metrics.CommandErrors.Inc()
			e.cfg.Logger.Warn("command failed", "session", session, "tool", msg.Tool, "code", derr.Code, "err", derr.Message)
			reply = wire.NewError(msg.ID, derr)
		} else {
			e.cfg.Logger.Info("command executed", "session", session, "tool", msg.Tool,
				"latency_ms", latency.Milliseconds())
			reply = wire.NewResponse(msg.ID, result)
		}

		e.record(ctx, session, msg, result, derr, latency)

		if err := wire.WriteMessage(conn, reply); err != nil {
			e.cfg.Logger.Error("cannot write reply, closing connection", "session", session, "err", err)
			return
		}
	}
}

// dispatch validates and executes one tool call. Every failure comes
// back as a structured error; a handler panic becomes an internal error
// rather than taking the executor down.
func (e *Executor) dispatch(ctx context.Context, tool string, params map[string]any) (result map[string]any, derr *domain.Error) {
	defer func() {
		if r := recover(); r != nil {
			e.cfg.Logger.Error("handler panic", "tool", tool, "panic", r)
			result = nil
			derr = domain.Errorf(domain.CodeInternal, tool, "internal error: %v", r)
		}
	}()

	args, err := e.cfg.Registry.Validate(domain.ToolCall{Name: tool, Arguments: params})
	if err != nil {
		return nil, classify(tool, err)
	}

	fn, ok := e.cfg.Handlers.Get(tool)
	if !ok {
		return nil, domain.Errorf(domain.CodeUnknownTool, tool, "no handler registered for tool %q", tool)
	}

	doc := e.cfg.Documents.Active()
	if doc == nil {
		return nil, domain.Errorf(domain.CodeNoDocument, tool, "no active document")
	}

	result, err = fn(ctx, doc, args)
	if err != nil {
		return nil, classify(tool, err)
	}
	return result, nil
}

// classify maps an error to its wire code. Structured errors pass
// through; validation errors keep their class; anything else is a
// domain failure.
func classify(tool string, err error) *domain.Error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	if errors.Is(err, registry.ErrUnknownTool) {
		return domain.Errorf(domain.CodeUnknownTool, tool, "%v", err)
	}
	var perr *registry.ParameterError
	if errors.As(err, &perr) {
		return domain.Errorf(domain.CodeParameter, tool, "%v", perr)
	}
	return domain.Errorf(domain.CodeDomain, tool, "%v", err)
}

// record appends the command to the audit trail, best effort.
func (e *Executor) record(ctx context.Context, session string, msg *wire.Message, result map[string]any, derr *domain.Error, latency time.Duration) {
	if e.cfg.History == nil {
		return
	}
	cmd := history.Command{
		SessionID: session,
		Tool:      msg.Tool,
		Params:    registry.FormatArgs(msg.Params),
		LatencyMS: latency.Milliseconds(),
	}
	if derr != nil {
		cmd.ErrCode = string(derr.Code)
		cmd.Result = derr.Message
	} else {
		cmd.Result = registry.FormatArgs(result)
	}
	if err := e.cfg.History.RecordCommand(ctx, cmd); err != nil {
		e.cfg.Logger.Warn("cannot record command history", "err", err)
	}
}

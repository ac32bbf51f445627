// Package bridge owns the client side of the socket connection to the
// in-application command executor. It serializes requests (the executor
// is single-threaded), correlates responses to requests, and surfaces
// remote failures as structured errors.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"cadbridge/internal/domain"
	"cadbridge/internal/registry"
	"cadbridge/internal/wire"
)

var (
	// ErrConnect reports a failure to establish the socket connection.
	ErrConnect = errors.New("cannot connect to executor")
	// ErrTimeout reports that a request received no reply in time. The
	// remote operation may still complete; only the wait was abandoned.
	ErrTimeout = errors.New("request timed out")
	// ErrConnectionLost resolves every request outstanding when the
	// connection drops.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed reports use of a bridge after Close.
	ErrClosed = errors.New("bridge closed")
)

const defaultQueueSize = 16

// Config holds the bridge dependencies and dial parameters.
type Config struct {
	Host        string
	Port        int
	DialTimeout time.Duration
	Registry    *registry.Registry
	Logger      *slog.Logger
}

// Bridge is one live connection to the executor. Safe for concurrent
// use: Send calls queue in FIFO order and exactly one request is in
// flight at a time.
type Bridge struct {
	conn     net.Conn
	registry *registry.Registry
	logger   *slog.Logger

	requests chan *request
	nextID   uint64 // written by sendLoop only

	mu       sync.Mutex
	pending  map[uint64]*request
	inflight *inflight

	done     chan struct{}
	failOnce sync.Once
	termErr  atomic.Value // error
}

// request is one queued Send call.
type request struct {
	tool     string
	params   map[string]any
	outcome  chan outcome // buffered(1)
	canceled atomic.Bool  // caller gave up before the frame was written
	sentAt   time.Time
}

type outcome struct {
	result map[string]any
	err    error
}

// inflight tracks the single request currently on the wire so the send
// loop can wait for its socket-level settlement even after the caller
// timed out and the pending entry was removed.
type inflight struct {
	id      uint64
	settled chan struct{}
}

// Dial connects to the executor and starts the reader and sender loops.
func Dial(cfg Config) (*Bridge, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}
	b := &Bridge{
		conn:     conn,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		requests: make(chan *request, defaultQueueSize),
		pending:  make(map[uint64]*request),
		done:     make(chan struct{}),
	}
	b.logger.Info("connected to executor", "addr", addr)
	go b.sendLoop()
	go b.readLoop()
	return b, nil
}

// Send validates the call, queues it, and blocks until a response
// arrives, the timeout elapses, or the connection is lost. Invalid calls
// fail locally before any byte is written.
func (b *Bridge) Send(ctx context.Context, call domain.ToolCall, timeout time.Duration) (map[string]any, error) {
	params, err := b.registry.Validate(call)
	if err != nil {
		return nil, err
	}

	req := &request{
		tool:    call.Name,
		params:  params,
		outcome: make(chan outcome, 1),
	}

	select {
	case b.requests <- req:
	case <-b.done:
		return nil, b.terminalErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var timer *time.Timer
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case out := <-req.outcome:
		return out.result, out.err
	case <-timeoutC:
		b.abandon(req)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, call.Name, timeout)
	case <-ctx.Done():
		b.abandon(req)
		return nil, ctx.Err()
	case <-b.done:
		return nil, b.terminalErr()
	}
}

// abandon removes a request's pending entry so a late reply is discarded
// as stale instead of being delivered to a caller that already returned.
func (b *Bridge) abandon(req *request) {
	req.canceled.Store(true)
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, p := range b.pending {
		if p == req {
			delete(b.pending, id)
			return
		}
	}
}

// sendLoop writes queued requests one at a time and waits for each to
// settle at the socket level before starting the next, preserving FIFO
// order and the single-request-in-flight invariant.
func (b *Bridge) sendLoop() {
	for {
		select {
		case <-b.done:
			b.drainQueue()
			return
		case req := <-b.requests:
			// The canceled check shares the pending lock with the insert so
			// abandon either sees the entry or this skip sees the flag.
			b.mu.Lock()
			if req.canceled.Load() {
				b.mu.Unlock()
				continue
			}
			b.nextID++
			id := b.nextID
			fl := &inflight{id: id, settled: make(chan struct{})}
			req.sentAt = time.Now()
			b.pending[id] = req
			b.inflight = fl
			b.mu.Unlock()

			if err := wire.WriteMessage(b.conn, wire.NewRequest(id, req.tool, req.params)); err != nil {
				b.fail(fmt.Errorf("%w: %v", ErrConnectionLost, err))
				return
			}
			b.logger.Debug("request sent", "id", id, "tool", req.tool)

			select {
			case <-fl.settled:
			case <-b.done:
				b.drainQueue()
				return
			}
		}
	}
}

// drainQueue fails any requests still queued when the connection dies.
func (b *Bridge) drainQueue() {
	for {
		select {
		case req := <-b.requests:
			req.outcome <- outcome{err: b.terminalErr()}
		default:
			return
		}
	}
}

// readLoop decodes replies and matches them to pending requests by
// correlation id. A malformed frame tears the connection down.
func (b *Bridge) readLoop() {
	for {
		msg, err := wire.ReadMessage(b.conn)
		if err != nil {
			if errors.Is(err, wire.ErrMalformed) {
				b.logger.Error("malformed frame from executor, closing", "err", err)
			}
			b.fail(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			return
		}
		if msg.Kind == wire.KindRequest {
			b.logger.Error("executor sent a request frame, closing")
			b.fail(fmt.Errorf("%w: protocol violation", ErrConnectionLost))
			return
		}
		// A refusal is addressed to the connection, not a request (id 0):
		// the executor already has a client. Terminal for this bridge, and
		// callers get the structured error rather than a bare socket loss.
		if msg.Kind == wire.KindError && (msg.ID == 0 || msg.Err.Code == domain.CodeRefused) {
			b.logger.Error("executor refused the connection", "err", msg.Err)
			b.fail(msg.Err)
			return
		}

		b.mu.Lock()
		if b.inflight != nil && b.inflight.id == msg.ID {
			close(b.inflight.settled)
			b.inflight = nil
		}
		req, ok := b.pending[msg.ID]
		if ok {
			delete(b.pending, msg.ID)
		}
		b.mu.Unlock()

		if !ok {
			b.logger.Debug("discarding stale response", "id", msg.ID)
			continue
		}

		switch msg.Kind {
		case wire.KindError:
			req.outcome <- outcome{err: msg.Err}
		default:
			b.logger.Debug("response received", "id", msg.ID, "tool", req.tool,
				"latency_ms", time.Since(req.sentAt).Milliseconds())
			req.outcome <- outcome{result: msg.Result}
		}
	}
}

// fail records the terminal error, resolves every outstanding request
// with ErrConnectionLost, and closes the socket. Idempotent.
func (b *Bridge) fail(err error) {
	b.failOnce.Do(func() {
		b.termErr.Store(err)
		b.mu.Lock()
		pending := b.pending
		b.pending = make(map[uint64]*request)
		b.inflight = nil
		b.mu.Unlock()

		close(b.done)
		b.conn.Close()

		for id, req := range pending {
			b.logger.Debug("resolving outstanding request with connection loss", "id", id, "tool", req.tool)
			req.outcome <- outcome{err: err}
		}
	})
}

func (b *Bridge) terminalErr() error {
	if err, ok := b.termErr.Load().(error); ok {
		return err
	}
	return ErrConnectionLost
}

// Pending reports the number of requests awaiting a response; used to
// verify the no-leak property.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close tears the connection down. Outstanding requests resolve with
// ErrClosed. Safe to call more than once.
func (b *Bridge) Close() error {
	b.fail(ErrClosed)
	return nil
}

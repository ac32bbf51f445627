package executor

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"cadbridge/internal/bridge"
	"cadbridge/internal/document"
	"cadbridge/internal/domain"
	"cadbridge/internal/handler"
	"cadbridge/internal/history"
	"cadbridge/internal/registry"
	"cadbridge/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memRecorder collects history records for assertions.
type memRecorder struct {
	mu   sync.Mutex
	cmds []history.Command
}

func (m *memRecorder) RecordCommand(ctx context.Context, cmd history.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmds = append(m.cmds, cmd)
	return nil
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cmds)
}

// startExecutor serves on an ephemeral port and returns the executor
// plus its bound port.
func startExecutor(t *testing.T, docs *document.Store, rec Recorder) (*Executor, int) {
	t.Helper()
	exec := New(Config{
		Host:      "127.0.0.1",
		Port:      0,
		Registry:  registry.NewDefault(testLogger()),
		Handlers:  handler.NewDefault(),
		Documents: docs,
		History:   rec,
		Logger:    testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exec.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("executor did not stop")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for exec.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("executor never bound its listener")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, portStr, _ := net.SplitHostPort(exec.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return exec, port
}

func dialBridge(t *testing.T, port int) *bridge.Bridge {
	t.Helper()
	b, err := bridge.Dial(bridge.Config{
		Host:        "127.0.0.1",
		Port:        port,
		DialTimeout: time.Second,
		Registry:    registry.NewDefault(testLogger()),
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func send(t *testing.T, b *bridge.Bridge, name string, args map[string]any) map[string]any {
	t.Helper()
	result, err := b.Send(context.Background(), domain.ToolCall{Name: name, Arguments: args}, 5*time.Second)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return result
}

func TestExecutor_BuildBox(t *testing.T) {
	docs := document.NewStore()
	docs.Open("TestDesign")
	rec := &memRecorder{}
	_, port := startExecutor(t, docs, rec)
	b := dialBridge(t, port)

	send(t, b, "create_sketch", map[string]any{"plane": "xy"})
	send(t, b, "draw_rectangle", map[string]any{"width": 10.0, "height": 5.0})
	result := send(t, b, "extrude", map[string]any{"height": 2.0})
	if result["body_name"] != "Body1" {
		t.Fatalf("expected Body1, got %v", result["body_name"])
	}

	scene := send(t, b, "get_scene_info", nil)
	if scene["design_name"] != "TestDesign" {
		t.Fatalf("unexpected design name: %v", scene["design_name"])
	}
	if scene["bodies_count"].(float64) != 1 {
		t.Fatalf("expected 1 body, got %v", scene["bodies_count"])
	}

	info := send(t, b, "get_object_info", map[string]any{"name": "Body1"})
	if info["volume"].(float64) != 100 {
		t.Fatalf("expected volume 100, got %v", info["volume"])
	}

	if rec.count() != 5 {
		t.Fatalf("expected 5 history records, got %d", rec.count())
	}
}

func TestExecutor_NoDocument(t *testing.T) {
	_, port := startExecutor(t, document.NewStore(), nil)
	b := dialBridge(t, port)

	_, err := b.Send(context.Background(),
		domain.ToolCall{Name: "get_scene_info"}, 5*time.Second)
	var derr *domain.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected structured error, got %v", err)
	}
	if derr.Code != domain.CodeNoDocument {
		t.Fatalf("expected no_document, got %s", derr.Code)
	}
}

func TestExecutor_DomainError(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")
	_, port := startExecutor(t, docs, nil)
	b := dialBridge(t, port)

	// Rectangle without a sketch.
	_, err := b.Send(context.Background(),
		domain.ToolCall{Name: "draw_rectangle", Arguments: map[string]any{"width": 1.0, "height": 1.0}},
		5*time.Second)
	var derr *domain.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected structured error, got %v", err)
	}
	if derr.Code != domain.CodeDomain {
		t.Fatalf("expected domain_error, got %s", derr.Code)
	}
}

func TestExecutor_ExecuteCodeUnsupported(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")
	_, port := startExecutor(t, docs, nil)
	b := dialBridge(t, port)

	_, err := b.Send(context.Background(),
		domain.ToolCall{Name: "execute_code", Arguments: map[string]any{"code": "print(1)"}},
		5*time.Second)
	var derr *domain.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected structured error, got %v", err)
	}
	if derr.Code != domain.CodeUnsupported {
		t.Fatalf("expected unsupported, got %s", derr.Code)
	}
}

func TestExecutor_UnknownToolOverWire(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")
	_, port := startExecutor(t, docs, nil)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := wire.WriteMessage(conn, wire.NewRequest(1, "teleport", nil)); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Kind != wire.KindError || msg.ID != 1 {
		t.Fatalf("unexpected reply: %+v", msg)
	}
	if msg.Err.Code != domain.CodeUnknownTool {
		t.Fatalf("expected unknown_tool, got %s", msg.Err.Code)
	}
}

func TestExecutor_SecondClientRefused(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")
	exec, port := startExecutor(t, docs, nil)
	b := dialBridge(t, port)
	send(t, b, "get_scene_info", nil)

	if exec.State() != StateConnected {
		t.Fatalf("expected connected state, got %s", exec.State())
	}

	second, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	msg, err := wire.ReadMessage(second)
	if err != nil {
		t.Fatalf("read refusal: %v", err)
	}
	if msg.Kind != wire.KindError || msg.ID != 0 {
		t.Fatalf("unexpected refusal frame: %+v", msg)
	}
	if msg.Err.Code != domain.CodeRefused {
		t.Fatalf("expected connection_refused, got %s", msg.Err.Code)
	}
	if _, err := wire.ReadMessage(second); err == nil {
		t.Fatal("expected second connection to be closed")
	}

	// The first client is unaffected.
	send(t, b, "get_scene_info", nil)
}

func TestExecutor_ReconnectAfterDisconnect(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")
	exec, port := startExecutor(t, docs, nil)

	b := dialBridge(t, port)
	send(t, b, "create_sketch", map[string]any{"plane": "xy"})
	b.Close()

	deadline := time.Now().Add(2 * time.Second)
	for exec.State() != StateListening {
		if time.Now().After(deadline) {
			t.Fatalf("executor stuck in state %s", exec.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Document state survives the reconnect.
	b2 := dialBridge(t, port)
	scene := send(t, b2, "get_scene_info", nil)
	if scene["sketches_count"].(float64) != 1 {
		t.Fatalf("expected sketch to survive reconnect, got %v", scene["sketches_count"])
	}
}

func TestExecutor_ShutdownWhileConnectedStaysClosed(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")
	exec := New(Config{
		Host:      "127.0.0.1",
		Port:      0,
		Registry:  registry.NewDefault(testLogger()),
		Handlers:  handler.NewDefault(),
		Documents: docs,
		Logger:    testLogger(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exec.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for exec.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("executor never bound its listener")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, portStr, _ := net.SplitHostPort(exec.Addr().String())
	port, _ := strconv.Atoi(portStr)
	b := dialBridge(t, port)
	send(t, b, "get_scene_info", nil)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not stop")
	}

	// The disconnect cleanup for the active client must not flip a closed
	// executor back to listening.
	time.Sleep(100 * time.Millisecond)
	if got := exec.State(); got != StateClosed {
		t.Fatalf("expected closed after shutdown, got %s", got)
	}
}

func TestExecutor_MalformedFrameClosesConnection(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")
	_, port := startExecutor(t, docs, nil)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := wire.ReadMessage(conn); err == nil {
		t.Fatal("expected connection to be closed after malformed frame")
	}
}

func TestExecutor_HandlerPanicBecomesInternalError(t *testing.T) {
	docs := document.NewStore()
	docs.Open("D")

	handlers := handler.NewDefault()
	handlers.Register("get_scene_info", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		panic("boom")
	})

	exec := New(Config{
		Host:      "127.0.0.1",
		Port:      0,
		Registry:  registry.NewDefault(testLogger()),
		Handlers:  handlers,
		Documents: docs,
		Logger:    testLogger(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Serve(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for exec.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("executor never bound its listener")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, portStr, _ := net.SplitHostPort(exec.Addr().String())
	port, _ := strconv.Atoi(portStr)
	b := dialBridge(t, port)

	_, err := b.Send(context.Background(),
		domain.ToolCall{Name: "get_scene_info"}, 5*time.Second)
	var derr *domain.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected structured error, got %v", err)
	}
	if derr.Code != domain.CodeInternal {
		t.Fatalf("expected internal, got %s", derr.Code)
	}

	// The connection survives the panic.
	_, err = b.Send(context.Background(),
		domain.ToolCall{Name: "create_sketch", Arguments: map[string]any{"plane": "xy"}}, 5*time.Second)
	if err != nil {
		t.Fatalf("send after panic: %v", err)
	}
}

package script

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"cadbridge/internal/domain"
	"cadbridge/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testLibrary() *Library {
	return NewLibrary(registry.NewDefault(testLogger()), testLogger())
}

func boxCalls() []domain.ToolCall {
	return []domain.ToolCall{
		{Name: "create_sketch", Arguments: map[string]any{"plane": "xy"}},
		{Name: "draw_rectangle", Arguments: map[string]any{"width": 10.0, "height": 5.0}},
		{Name: "extrude", Arguments: map[string]any{"height": 2.5}},
		{Name: "fillet", Arguments: map[string]any{"radius": 0.5}},
	}
}

func TestCompile_Golden(t *testing.T) {
	lib := testLibrary()
	compiled, err := lib.Compile(boxCalls())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if compiled.Calls != 4 {
		t.Fatalf("expected 4 calls, got %d", compiled.Calls)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "compile_box", []byte(compiled.Source))
}

func TestCompile_Deterministic(t *testing.T) {
	lib := testLibrary()
	first, err := lib.Compile(boxCalls())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := lib.Compile(boxCalls())
		if err != nil {
			t.Fatalf("compile %d: %v", i, err)
		}
		if again.Source != first.Source {
			t.Fatalf("compile %d produced different output", i)
		}
	}
}

func TestCompile_PreambleEmittedOnce(t *testing.T) {
	lib := testLibrary()
	calls := []domain.ToolCall{
		{Name: "create_sketch", Arguments: map[string]any{"plane": "xy"}},
		{Name: "draw_circle", Arguments: map[string]any{"radius": 3.0}},
		{Name: "draw_circle", Arguments: map[string]any{"radius": 1.0}},
		{Name: "draw_rectangle", Arguments: map[string]any{"width": 4.0, "height": 4.0}},
	}
	compiled, err := lib.Compile(calls)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	marker := "# Ensure a sketch is active"
	if got := strings.Count(compiled.Source, marker); got != 1 {
		t.Fatalf("expected preamble once, found %d times", got)
	}

	// The preamble must appear before the first fragment that needs it.
	preambleAt := strings.Index(compiled.Source, marker)
	firstCircle := strings.Index(compiled.Source, "# Tool call 2: draw_circle")
	if preambleAt > firstCircle {
		t.Fatalf("preamble at %d after first dependent fragment at %d", preambleAt, firstCircle)
	}
}

func TestCompile_OrderPreserved(t *testing.T) {
	lib := testLibrary()
	compiled, err := lib.Compile(boxCalls())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	prev := -1
	for _, marker := range []string{
		"# Tool call 1: create_sketch",
		"# Tool call 2: draw_rectangle",
		"# Tool call 3: extrude",
		"# Tool call 4: fillet",
	} {
		at := strings.Index(compiled.Source, marker)
		if at < 0 {
			t.Fatalf("marker %q missing", marker)
		}
		if at < prev {
			t.Fatalf("marker %q out of order", marker)
		}
		prev = at
	}
}

func TestCompile_AllOrNothing(t *testing.T) {
	lib := testLibrary()
	calls := []domain.ToolCall{
		{Name: "create_sketch", Arguments: map[string]any{"plane": "xy"}},
		{Name: "draw_rectangle", Arguments: map[string]any{"width": -1.0, "height": 5.0}},
	}
	_, err := lib.Compile(calls)
	if err == nil {
		t.Fatal("expected compilation error")
	}

	var cerr *CompilationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CompilationError, got %T", err)
	}
	if cerr.Index != 1 || cerr.Tool != "draw_rectangle" {
		t.Fatalf("expected failure at call 2 (draw_rectangle), got call %d (%s)", cerr.Index+1, cerr.Tool)
	}
	var perr *registry.ParameterError
	if !errors.As(err, &perr) {
		t.Fatalf("expected wrapped ParameterError, got %v", err)
	}
}

func TestCompile_Empty(t *testing.T) {
	lib := testLibrary()
	compiled, err := lib.Compile(nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if compiled.Calls != 0 {
		t.Fatalf("expected 0 calls, got %d", compiled.Calls)
	}
	if !strings.HasPrefix(compiled.Source, "# Generated by cadbridge") {
		t.Fatal("expected harness header in empty script")
	}
	if !strings.Contains(compiled.Source, "def stop(context):") {
		t.Fatal("expected harness footer in empty script")
	}
}

func TestCompile_ExecuteCodeVerbatim(t *testing.T) {
	lib := testLibrary()
	code := "for i in range(3):\n    ui.messageBox(str(i))"
	compiled, err := lib.Compile([]domain.ToolCall{
		{Name: "execute_code", Arguments: map[string]any{"code": code}},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(compiled.Source, "        for i in range(3):\n            ui.messageBox(str(i))") {
		t.Fatal("expected custom code indented into harness body")
	}
}

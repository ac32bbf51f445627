package history

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"), testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndRecentCommands(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i, tool := range []string{"create_sketch", "draw_rectangle", "extrude"} {
		err := store.RecordCommand(ctx, Command{
			SessionID: "s1",
			Tool:      tool,
			Params:    `{"x":1}`,
			Result:    `{"ok":true}`,
			LatencyMS: int64(i),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("record %s: %v", tool, err)
		}
	}

	cmds, err := store.RecentCommands(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	// Newest first.
	if cmds[0].Tool != "extrude" || cmds[1].Tool != "draw_rectangle" {
		t.Fatalf("unexpected order: %s, %s", cmds[0].Tool, cmds[1].Tool)
	}
	if cmds[0].Params != `{"x":1}` {
		t.Fatalf("unexpected params: %q", cmds[0].Params)
	}
}

func TestStore_RecordErrorCode(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	err := store.RecordCommand(ctx, Command{
		SessionID: "s1",
		Tool:      "extrude",
		ErrCode:   "no_document",
		Result:    "no active document",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	cmds, err := store.RecentCommands(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if cmds[0].ErrCode != "no_document" {
		t.Fatalf("expected err code recorded, got %q", cmds[0].ErrCode)
	}
}

func TestStore_Scripts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.RecordScript(ctx, Script{Path: "/tmp/a.py", Calls: 4, Bytes: 1234}); err != nil {
		t.Fatalf("record script: %v", err)
	}

	scripts, err := store.RecentScripts(ctx, 10)
	if err != nil {
		t.Fatalf("recent scripts: %v", err)
	}
	if len(scripts) != 1 || scripts[0].Calls != 4 || scripts[0].Bytes != 1234 {
		t.Fatalf("unexpected scripts: %+v", scripts)
	}
}

func TestStore_Prune(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := store.RecordCommand(ctx, Command{SessionID: "s1", Tool: "old", CreatedAt: old}); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if err := store.RecordCommand(ctx, Command{SessionID: "s1", Tool: "new"}); err != nil {
		t.Fatalf("record new: %v", err)
	}

	n, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned record, got %d", n)
	}

	cmds, err := store.RecentCommands(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Tool != "new" {
		t.Fatalf("unexpected survivors: %+v", cmds)
	}
}

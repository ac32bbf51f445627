// Package history persists the command audit trail and compiled-script
// records in SQLite. Recording is best effort: a history failure never
// fails the command that produced it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Command is one executed (or failed) live tool call.
type Command struct {
	ID        int64
	SessionID string
	Tool      string
	Params    string
	Result    string
	ErrCode   string
	LatencyMS int64
	CreatedAt time.Time
}

// Script is one compiled script record.
type Script struct {
	ID        int64
	Path      string
	Calls     int
	Bytes     int
	CreatedAt time.Time
}

// Store is a SQLite-backed history store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (creating if needed) the history database.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// SQLite wants a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		tool        TEXT NOT NULL,
		params      TEXT,
		result      TEXT,
		err_code    TEXT,
		latency_ms  INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_commands_time ON commands(created_at);
	CREATE INDEX IF NOT EXISTS idx_commands_session ON commands(session_id, created_at);

	CREATE TABLE IF NOT EXISTS scripts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		path        TEXT NOT NULL,
		calls       INTEGER NOT NULL,
		bytes       INTEGER NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_scripts_time ON scripts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordCommand appends one command to the audit trail.
func (s *Store) RecordCommand(ctx context.Context, cmd Command) error {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commands (session_id, tool, params, result, err_code, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cmd.SessionID, cmd.Tool, cmd.Params, cmd.Result, cmd.ErrCode, cmd.LatencyMS, cmd.CreatedAt,
	)
	return err
}

// RecordScript appends one compiled-script record.
func (s *Store) RecordScript(ctx context.Context, sc Script) error {
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scripts (path, calls, bytes, created_at)
		 VALUES (?, ?, ?, ?)`,
		sc.Path, sc.Calls, sc.Bytes, sc.CreatedAt,
	)
	return err
}

// RecentCommands returns the last N commands, newest first.
func (s *Store) RecentCommands(ctx context.Context, limit int) ([]Command, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, tool, params, result, err_code, latency_ms, created_at
		 FROM commands ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []Command
	for rows.Next() {
		var c Command
		var params, result, errCode sql.NullString
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Tool, &params, &result, &errCode,
			&c.LatencyMS, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Params = params.String
		c.Result = result.String
		c.ErrCode = errCode.String
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// RecentScripts returns the last N script records, newest first.
func (s *Store) RecentScripts(ctx context.Context, limit int) ([]Script, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, calls, bytes, created_at
		 FROM scripts ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scripts []Script
	for rows.Next() {
		var sc Script
		if err := rows.Scan(&sc.ID, &sc.Path, &sc.Calls, &sc.Bytes, &sc.CreatedAt); err != nil {
			return nil, err
		}
		scripts = append(scripts, sc)
	}
	return scripts, rows.Err()
}

// Prune deletes records older than the retention window.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	res, err = s.db.ExecContext(ctx, `DELETE FROM scripts WHERE created_at < ?`, cutoff)
	if err != nil {
		return n, err
	}
	m, _ := res.RowsAffected()
	return n + m, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

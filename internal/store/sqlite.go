package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/types"
)

// SQLiteStore implements Store on an embedded SQLite database.
// Chunks and calls are stored as JSON documents next to the columns used
// for ordering and filtering.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS processing_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	current_position INTEGER NOT NULL,
	total_lines INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_start ON chunks(start_line, id);

CREATE TABLE IF NOT EXISTS llm_calls (
	id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	chunk_id TEXT,
	stage TEXT,
	prompt_key TEXT,
	provider TEXT,
	success INTEGER NOT NULL,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_llm_calls_ts ON llm_calls(ts);
CREATE INDEX IF NOT EXISTS idx_llm_calls_chunk ON llm_calls(chunk_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) GetState(ctx context.Context) (*types.ProcessingState, error) {
	var st types.ProcessingState
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT current_position, total_lines, updated_at FROM processing_state WHERE id = 1`,
	).Scan(&st.CurrentPosition, &st.TotalLines, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	if updated != 0 {
		st.UpdatedAt = time.Unix(0, updated).UTC()
	}
	return &st, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, state *types.ProcessingState) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO processing_state (id, current_position, total_lines, updated_at)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	current_position = excluded.current_position,
	total_lines = excluded.total_lines,
	updated_at = excluded.updated_at`,
		state.CurrentPosition, state.TotalLines, unixNano(state.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*types.ProcessedChunk, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM chunks WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", id, err)
	}
	return decodeChunk(data)
}

func (s *SQLiteStore) PutChunk(ctx context.Context, chunk *types.ProcessedChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk %s: %w", chunk.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO chunks (id, start_line, end_line, completed, data)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	start_line = excluded.start_line,
	end_line = excluded.end_line,
	completed = excluded.completed,
	data = excluded.data`,
		chunk.ID, chunk.StartLine, chunk.EndLine, boolInt(chunk.Completed), string(data))
	if err != nil {
		return fmt.Errorf("put chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListChunks(ctx context.Context) ([]*types.ProcessedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM chunks ORDER BY start_line, id`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []*types.ProcessedChunk
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		chunk, err := decodeChunk(data)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteChunks(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) RecordCall(ctx context.Context, call *llmcall.Call) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("marshal call: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO llm_calls (id, ts, chunk_id, stage, prompt_key, provider, success, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, unixNano(call.Timestamp), call.ChunkID, call.Stage, call.PromptKey,
		call.Provider, boolInt(call.Success), string(data))
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCalls(ctx context.Context, filter llmcall.QueryFilter) ([]llmcall.Call, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if filter.ChunkID != "" {
		add("chunk_id = ?", filter.ChunkID)
	}
	if filter.Stage != "" {
		add("stage = ?", filter.Stage)
	}
	if filter.PromptKey != "" {
		add("prompt_key = ?", filter.PromptKey)
	}
	if filter.Provider != "" {
		add("provider = ?", filter.Provider)
	}
	if filter.After != nil {
		add("ts > ?", filter.After.UnixNano())
	}
	if filter.Success != nil {
		add("success = ?", boolInt(*filter.Success))
	}

	query := "SELECT data FROM llm_calls"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	out := []llmcall.Call{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var call llmcall.Call
		if err := json.Unmarshal([]byte(data), &call); err != nil {
			return nil, fmt.Errorf("decode call: %w", err)
		}
		out = append(out, call)
	}
	return out, rows.Err()
}

func decodeChunk(data string) (*types.ProcessedChunk, error) {
	var chunk types.ProcessedChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	return &chunk, nil
}

// unixNano maps the zero time to 0 instead of an out-of-range value.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)

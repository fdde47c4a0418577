// Package store persists the processing cursor, the chunk catalog, and the
// LLM call log.
//
// Three implementations share one contract: MemoryStore for unit tests,
// SQLiteStore (the default, embedded) and RedisStore for a shared server.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/types"
)

// ErrNotFound is returned when a state record or chunk does not exist.
var ErrNotFound = errors.New("not found")

// Store abstracts persistence for the pipeline.
type Store interface {
	// GetState returns the processing cursor, or ErrNotFound if none was saved.
	GetState(ctx context.Context) (*types.ProcessingState, error)
	// SaveState overwrites the processing cursor.
	SaveState(ctx context.Context, state *types.ProcessingState) error

	// GetChunk returns the chunk with id, or ErrNotFound.
	GetChunk(ctx context.Context, id string) (*types.ProcessedChunk, error)
	// PutChunk creates or overwrites a chunk by id.
	PutChunk(ctx context.Context, chunk *types.ProcessedChunk) error
	// ListChunks returns every chunk ordered by start line, then id.
	ListChunks(ctx context.Context) ([]*types.ProcessedChunk, error)
	// DeleteChunks removes the whole catalog and returns how many were removed.
	DeleteChunks(ctx context.Context) (int, error)

	// RecordCall appends an LLM call record.
	RecordCall(ctx context.Context, call *llmcall.Call) error
	// ListCalls returns call records matching filter, newest first.
	ListCalls(ctx context.Context, filter llmcall.QueryFilter) ([]llmcall.Call, error)

	Close() error
}

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a Store implementation.
type Config struct {
	Driver      string
	Path        string // sqlite database file
	RedisURL    string // redis://host:port/db
	RedisPrefix string
}

// Open constructs the Store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return OpenSQLite(ctx, cfg.Path)
	case DriverRedis:
		return OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/types"
)

// MemoryStore implements Store in memory for unit tests and dry runs.
// Error injection is supported for testing error handling paths.
type MemoryStore struct {
	mu sync.RWMutex

	state  *types.ProcessingState
	chunks map[string]*types.ProcessedChunk
	calls  []llmcall.Call

	// --- Error injection fields for testing ---

	// GetStateErr is returned by GetState when non-nil
	GetStateErr error

	// SaveStateErr is returned by SaveState when non-nil
	SaveStateErr error

	// PutChunkErr is returned by PutChunk when non-nil
	PutChunkErr error

	// ErrOnChunkID causes reads and writes of specific chunk ids to fail
	ErrOnChunkID map[string]error

	// ErrAfterNWrites causes PutChunk to fail after N successful writes
	ErrAfterNWrites int
	writeCount      int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks: make(map[string]*types.ProcessedChunk),
	}
}

func (m *MemoryStore) GetState(_ context.Context) (*types.ProcessingState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetStateErr != nil {
		return nil, m.GetStateErr
	}
	if m.state == nil {
		return nil, ErrNotFound
	}
	st := *m.state
	return &st, nil
}

func (m *MemoryStore) SaveState(_ context.Context, state *types.ProcessingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveStateErr != nil {
		return m.SaveStateErr
	}
	st := *state
	m.state = &st
	return nil
}

func (m *MemoryStore) GetChunk(_ context.Context, id string) (*types.ProcessedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.ErrOnChunkID[id]; ok {
		return nil, err
	}
	chunk, ok := m.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	return chunk.Clone(), nil
}

func (m *MemoryStore) PutChunk(_ context.Context, chunk *types.ProcessedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutChunkErr != nil {
		return m.PutChunkErr
	}
	if err, ok := m.ErrOnChunkID[chunk.ID]; ok {
		return err
	}
	if m.ErrAfterNWrites > 0 && m.writeCount >= m.ErrAfterNWrites {
		return fmt.Errorf("injected error after %d writes", m.ErrAfterNWrites)
	}
	m.writeCount++
	m.chunks[chunk.ID] = chunk.Clone()
	return nil
}

func (m *MemoryStore) ListChunks(_ context.Context) ([]*types.ProcessedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.ProcessedChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c.Clone())
	}
	SortChunks(out)
	return out, nil
}

func (m *MemoryStore) DeleteChunks(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.chunks)
	m.chunks = make(map[string]*types.ProcessedChunk)
	return n, nil
}

func (m *MemoryStore) RecordCall(_ context.Context, call *llmcall.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, *call)
	return nil
}

func (m *MemoryStore) ListCalls(_ context.Context, filter llmcall.QueryFilter) ([]llmcall.Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filter.Apply(m.calls), nil
}

func (m *MemoryStore) Close() error { return nil }

// SortChunks orders chunks by start line, then id.
func SortChunks(chunks []*types.ProcessedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].StartLine != chunks[j].StartLine {
			return chunks[i].StartLine < chunks[j].StartLine
		}
		return chunks[i].ID < chunks[j].ID
	})
}

var _ Store = (*MemoryStore)(nil)

// Package state manages the resumable processing cursor.
//
// The cursor is a single record: the first line not yet processed and the
// total line count of the source. It is created at line 0 on first use,
// advanced only after a chunk has been persisted, and re-created at line 0
// on reset. A single operator is assumed; there is no locking across
// processes.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/primer/internal/store"
	"github.com/jackzampolin/primer/internal/types"
)

// ErrInvalidState is returned for a cursor outside [0, totalLines].
var ErrInvalidState = errors.New("invalid processing state")

// Backing is the subset of store.Store the manager needs.
type Backing interface {
	GetState(ctx context.Context) (*types.ProcessingState, error)
	SaveState(ctx context.Context, state *types.ProcessingState) error
	DeleteChunks(ctx context.Context) (int, error)
}

// Manager reads and writes the processing cursor.
type Manager struct {
	backing Backing
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a Manager over backing.
func NewManager(backing Backing, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backing: backing,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetState returns the cursor, creating it at line 0 if absent.
func (m *Manager) GetState(ctx context.Context) (*types.ProcessingState, error) {
	st, err := m.backing.GetState(ctx)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load processing state: %w", err)
	}
	st = &types.ProcessingState{}
	if err := m.SaveState(ctx, st); err != nil {
		return nil, err
	}
	m.logger.Info("created processing state", "current_position", 0)
	return st, nil
}

// SaveState validates and persists st, stamping UpdatedAt.
func (m *Manager) SaveState(ctx context.Context, st *types.ProcessingState) error {
	if st == nil || !st.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidState, st)
	}
	st.UpdatedAt = m.now()
	if err := m.backing.SaveState(ctx, st); err != nil {
		return fmt.Errorf("save processing state: %w", err)
	}
	return nil
}

// Reset re-creates the cursor at line 0, keeping the known total line count.
// Previously produced chunks are kept unless clearChunks is set.
func (m *Manager) Reset(ctx context.Context, clearChunks bool) (*types.ProcessingState, error) {
	total := 0
	if prev, err := m.backing.GetState(ctx); err == nil {
		total = prev.TotalLines
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load processing state: %w", err)
	}

	st := &types.ProcessingState{TotalLines: total}
	if err := m.SaveState(ctx, st); err != nil {
		return nil, err
	}

	removed := 0
	if clearChunks {
		n, err := m.backing.DeleteChunks(ctx)
		if err != nil {
			return nil, fmt.Errorf("clear chunks: %w", err)
		}
		removed = n
	}
	m.logger.Info("processing state reset", "total_lines", total, "chunks_removed", removed)
	return st, nil
}

// SetTotalLines records the source length. A cursor past the new end is
// pulled back to it.
func (m *Manager) SetTotalLines(ctx context.Context, total int) (*types.ProcessingState, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: negative total lines %d", ErrInvalidState, total)
	}
	st, err := m.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if st.TotalLines == total {
		return st, nil
	}
	if st.CurrentPosition > total {
		m.logger.Warn("source shrank below cursor",
			"current_position", st.CurrentPosition,
			"total_lines", total)
		st.CurrentPosition = total
	}
	st.TotalLines = total
	if err := m.SaveState(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Advance moves the cursor forward to position. The cursor never moves
// backwards; a smaller position leaves it unchanged.
func (m *Manager) Advance(ctx context.Context, position int) (*types.ProcessingState, error) {
	st, err := m.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if position <= st.CurrentPosition {
		return st, nil
	}
	if position > st.TotalLines {
		return nil, fmt.Errorf("%w: position %d beyond total lines %d", ErrInvalidState, position, st.TotalLines)
	}
	st.CurrentPosition = position
	if err := m.SaveState(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

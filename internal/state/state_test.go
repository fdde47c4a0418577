package state

import (
	"context"
	"errors"
	"testing"

	"github.com/jackzampolin/primer/internal/store"
	"github.com/jackzampolin/primer/internal/types"
)

func TestManager_GetState(t *testing.T) {
	ctx := context.Background()

	t.Run("creates at line zero", func(t *testing.T) {
		s := store.NewMemoryStore()
		m := NewManager(s, nil)

		st, err := m.GetState(ctx)
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if st.CurrentPosition != 0 || st.TotalLines != 0 {
			t.Errorf("GetState() = %+v, want zero cursor", st)
		}
		if _, err := s.GetState(ctx); err != nil {
			t.Errorf("state was not persisted: %v", err)
		}
	})

	t.Run("storage errors propagate", func(t *testing.T) {
		s := store.NewMemoryStore()
		s.GetStateErr = errors.New("disk gone")
		if _, err := NewManager(s, nil).GetState(ctx); err == nil {
			t.Error("expected error")
		}
	})
}

func TestManager_SaveState(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore(), nil)

	tests := []struct {
		name    string
		st      *types.ProcessingState
		wantErr bool
	}{
		{"valid", &types.ProcessingState{CurrentPosition: 10, TotalLines: 20}, false},
		{"at end", &types.ProcessingState{CurrentPosition: 20, TotalLines: 20}, false},
		{"past end", &types.ProcessingState{CurrentPosition: 21, TotalLines: 20}, true},
		{"negative", &types.ProcessingState{CurrentPosition: -1, TotalLines: 20}, true},
		{"nil", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.SaveState(ctx, tt.st)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Errorf("SaveState() = %v, want ErrInvalidState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SaveState() error = %v", err)
			}
			if tt.st.UpdatedAt.IsZero() {
				t.Error("UpdatedAt not stamped")
			}
		})
	}
}

func TestManager_Advance(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore(), nil)
	if _, err := m.SetTotalLines(ctx, 250); err != nil {
		t.Fatalf("SetTotalLines() error = %v", err)
	}

	st, err := m.Advance(ctx, 100)
	if err != nil || st.CurrentPosition != 100 {
		t.Fatalf("Advance(100) = %+v, %v", st, err)
	}

	st, err = m.Advance(ctx, 50)
	if err != nil || st.CurrentPosition != 100 {
		t.Errorf("Advance(50) moved cursor backwards: %+v, %v", st, err)
	}

	if _, err := m.Advance(ctx, 300); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Advance(300) = %v, want ErrInvalidState", err)
	}

	st, _ = m.Advance(ctx, 250)
	if !st.Done() {
		t.Error("expected cursor at end to be Done")
	}
}

func TestManager_SetTotalLines(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore(), nil)
	m.SetTotalLines(ctx, 100)
	m.Advance(ctx, 80)

	st, err := m.SetTotalLines(ctx, 50)
	if err != nil {
		t.Fatalf("SetTotalLines() error = %v", err)
	}
	if st.CurrentPosition != 50 || st.TotalLines != 50 {
		t.Errorf("SetTotalLines(50) = %+v, want cursor clamped to 50", st)
	}

	if _, err := m.SetTotalLines(ctx, -1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetTotalLines(-1) = %v", err)
	}
}

func TestManager_Reset(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*store.MemoryStore, *Manager) {
		t.Helper()
		s := store.NewMemoryStore()
		m := NewManager(s, nil)
		m.SetTotalLines(ctx, 250)
		m.Advance(ctx, 200)
		s.PutChunk(ctx, &types.ProcessedChunk{ID: "c1", StartLine: 0, EndLine: 100})
		return s, m
	}

	t.Run("keeps chunks by default", func(t *testing.T) {
		s, m := setup(t)
		st, err := m.Reset(ctx, false)
		if err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		if st.CurrentPosition != 0 || st.TotalLines != 250 {
			t.Errorf("Reset() = %+v", st)
		}
		chunks, _ := s.ListChunks(ctx)
		if len(chunks) != 1 {
			t.Errorf("chunks after reset = %d, want 1", len(chunks))
		}
	})

	t.Run("clears chunks on request", func(t *testing.T) {
		s, m := setup(t)
		if _, err := m.Reset(ctx, true); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		chunks, _ := s.ListChunks(ctx)
		if len(chunks) != 0 {
			t.Errorf("chunks after clearing reset = %d, want 0", len(chunks))
		}
	})

	t.Run("reset without prior state", func(t *testing.T) {
		m := NewManager(store.NewMemoryStore(), nil)
		st, err := m.Reset(ctx, false)
		if err != nil || st.CurrentPosition != 0 {
			t.Errorf("Reset() = %+v, %v", st, err)
		}
	})
}

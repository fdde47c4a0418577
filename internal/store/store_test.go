package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/types"
)

func testChunk(id string, start, end int) *types.ProcessedChunk {
	return &types.ProcessedChunk{
		ID:             id,
		StartLine:      start,
		EndLine:        end,
		DisplayEndLine: end - 1,
		Theory:         []types.TheoryBlock{{ID: "theory_" + id, Title: "T"}},
		Questions:      []types.Question{},
		Tasks:          []types.CodeTask{},
		LogicalBlockInfo: types.LogicalBlockInfo{
			SuggestedEndLine: types.NoSuggestedEnd,
		},
		ProcessedDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// runStoreContract exercises the behavior every Store implementation shares.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("state round trip", func(t *testing.T) {
		if _, err := s.GetState(ctx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetState() on empty store = %v, want ErrNotFound", err)
		}
		want := &types.ProcessingState{CurrentPosition: 100, TotalLines: 250, UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
		if err := s.SaveState(ctx, want); err != nil {
			t.Fatalf("SaveState() error = %v", err)
		}
		got, err := s.GetState(ctx)
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if got.CurrentPosition != 100 || got.TotalLines != 250 || !got.UpdatedAt.Equal(want.UpdatedAt) {
			t.Errorf("GetState() = %+v, want %+v", got, want)
		}

		want.CurrentPosition = 200
		if err := s.SaveState(ctx, want); err != nil {
			t.Fatalf("SaveState() overwrite error = %v", err)
		}
		got, _ = s.GetState(ctx)
		if got.CurrentPosition != 200 {
			t.Errorf("CurrentPosition = %d after overwrite, want 200", got.CurrentPosition)
		}
	})

	t.Run("chunk not found", func(t *testing.T) {
		if _, err := s.GetChunk(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetChunk() = %v, want ErrNotFound", err)
		}
	})

	t.Run("chunks ordered and overwritten by id", func(t *testing.T) {
		for _, c := range []*types.ProcessedChunk{
			testChunk("chunk_200_250_b", 200, 250),
			testChunk("chunk_0_100_a", 0, 100),
			testChunk("chunk_100_200_a", 100, 200),
		} {
			if err := s.PutChunk(ctx, c); err != nil {
				t.Fatalf("PutChunk(%s) error = %v", c.ID, err)
			}
		}

		updated := testChunk("chunk_100_200_a", 100, 200)
		updated.Completed = true
		updated.Theory = nil
		if err := s.PutChunk(ctx, updated); err != nil {
			t.Fatalf("PutChunk() overwrite error = %v", err)
		}

		chunks, err := s.ListChunks(ctx)
		if err != nil {
			t.Fatalf("ListChunks() error = %v", err)
		}
		if len(chunks) != 3 {
			t.Fatalf("ListChunks() returned %d chunks, want 3", len(chunks))
		}
		for i, want := range []int{0, 100, 200} {
			if chunks[i].StartLine != want {
				t.Errorf("chunks[%d].StartLine = %d, want %d", i, chunks[i].StartLine, want)
			}
		}

		got, err := s.GetChunk(ctx, "chunk_100_200_a")
		if err != nil {
			t.Fatalf("GetChunk() error = %v", err)
		}
		if !got.Completed || len(got.Theory) != 0 {
			t.Errorf("GetChunk() = %+v, want overwritten chunk", got)
		}
		if got.DisplayEndLine != 199 || got.LogicalBlockInfo.SuggestedEndLine != types.NoSuggestedEnd {
			t.Errorf("fields not preserved: %+v", got)
		}
	})

	t.Run("delete chunks", func(t *testing.T) {
		n, err := s.DeleteChunks(ctx)
		if err != nil {
			t.Fatalf("DeleteChunks() error = %v", err)
		}
		if n != 3 {
			t.Errorf("DeleteChunks() = %d, want 3", n)
		}
		chunks, _ := s.ListChunks(ctx)
		if len(chunks) != 0 {
			t.Errorf("ListChunks() after delete returned %d", len(chunks))
		}
		if _, err := s.GetState(ctx); err != nil {
			t.Errorf("state should survive chunk deletion: %v", err)
		}
	})

	t.Run("call log", func(t *testing.T) {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, stage := range []string{"theory-extraction", "question-generation", "theory-extraction"} {
			call := &llmcall.Call{
				ID:        "call-" + string(rune('a'+i)),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				ChunkID:   "c1",
				Stage:     stage,
				PromptKey: "k",
				Provider:  "mock",
				Success:   i != 1,
			}
			if err := s.RecordCall(ctx, call); err != nil {
				t.Fatalf("RecordCall() error = %v", err)
			}
		}

		all, err := s.ListCalls(ctx, llmcall.QueryFilter{})
		if err != nil {
			t.Fatalf("ListCalls() error = %v", err)
		}
		if len(all) != 3 || all[0].ID != "call-c" {
			t.Errorf("ListCalls() = %v, want newest first", all)
		}

		extraction, _ := s.ListCalls(ctx, llmcall.QueryFilter{Stage: "theory-extraction"})
		if len(extraction) != 2 {
			t.Errorf("stage filter returned %d calls, want 2", len(extraction))
		}

		failed := false
		failures, _ := s.ListCalls(ctx, llmcall.QueryFilter{Success: &failed})
		if len(failures) != 1 || failures[0].ID != "call-b" {
			t.Errorf("success filter = %v", failures)
		}

		page, _ := s.ListCalls(ctx, llmcall.QueryFilter{Limit: 1, Offset: 1})
		if len(page) != 1 || page[0].ID != "call-b" {
			t.Errorf("paged calls = %v", page)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ErrorInjection(t *testing.T) {
	ctx := context.Background()
	errInjected := errors.New("injected")

	t.Run("state errors", func(t *testing.T) {
		s := NewMemoryStore()
		s.SaveStateErr = errInjected
		if err := s.SaveState(ctx, &types.ProcessingState{}); !errors.Is(err, errInjected) {
			t.Errorf("SaveState() = %v", err)
		}
		s.GetStateErr = errInjected
		if _, err := s.GetState(ctx); !errors.Is(err, errInjected) {
			t.Errorf("GetState() = %v", err)
		}
	})

	t.Run("ErrOnChunkID", func(t *testing.T) {
		s := NewMemoryStore()
		s.ErrOnChunkID = map[string]error{"bad": errInjected}
		if err := s.PutChunk(ctx, testChunk("bad", 0, 10)); !errors.Is(err, errInjected) {
			t.Errorf("PutChunk() = %v", err)
		}
		if err := s.PutChunk(ctx, testChunk("good", 0, 10)); err != nil {
			t.Errorf("PutChunk(good) = %v", err)
		}
	})

	t.Run("ErrAfterNWrites", func(t *testing.T) {
		s := NewMemoryStore()
		s.ErrAfterNWrites = 2
		for i := 0; i < 2; i++ {
			if err := s.PutChunk(ctx, testChunk(string(rune('a'+i)), i, i+1)); err != nil {
				t.Fatalf("write %d failed: %v", i, err)
			}
		}
		if err := s.PutChunk(ctx, testChunk("c", 2, 3)); err == nil {
			t.Error("expected third write to fail")
		}
	})

	t.Run("returned chunks are copies", func(t *testing.T) {
		s := NewMemoryStore()
		s.PutChunk(ctx, testChunk("a", 0, 10))
		got, _ := s.GetChunk(ctx, "a")
		got.Theory = nil
		again, _ := s.GetChunk(ctx, "a")
		if len(again.Theory) != 1 {
			t.Error("mutating a returned chunk changed the store")
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), t.TempDir()+"/primer.db")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()
	runStoreContract(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/primer.db"

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.PutChunk(ctx, testChunk("a", 0, 10)); err != nil {
		t.Fatalf("PutChunk() error = %v", err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.GetChunk(ctx, "a"); err != nil {
		t.Errorf("chunk lost across reopen: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Driver: DriverMemory}, false},
		{"sqlite", Config{Driver: DriverSQLite, Path: t.TempDir() + "/x.db"}, false},
		{"sqlite without path", Config{Driver: DriverSQLite}, true},
		{"redis without url", Config{Driver: DriverRedis}, true},
		{"unknown", Config{Driver: "etcd"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

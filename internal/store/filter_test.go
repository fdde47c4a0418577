package store

import (
	"testing"

	"github.com/jackzampolin/primer/internal/types"
)

func TestChunkFilter(t *testing.T) {
	a := testChunk("chunk_0_100_a", 0, 100)
	b := testChunk("chunk_100_200_b", 100, 200)
	c := testChunk("chunk_200_250_c", 200, 250)
	b.Completed = true
	all := []*types.ProcessedChunk{a, b, c}

	yes, no := true, false
	tests := []struct {
		name   string
		filter ChunkFilter
		want   []string
	}{
		{"empty filter", ChunkFilter{}, []string{a.ID, b.ID, c.ID}},
		{"range", ChunkFilter{StartLine: 100, EndLine: 250}, []string{b.ID, c.ID}},
		{"open upper bound", ChunkFilter{StartLine: 200}, []string{c.ID}},
		{"range excludes overlap", ChunkFilter{EndLine: 150}, []string{a.ID}},
		{"exact bounds", ChunkFilter{StartLine: 0, EndLine: 100}, []string{a.ID}},
		{"completed", ChunkFilter{Completed: &yes}, []string{b.ID}},
		{"not completed", ChunkFilter{Completed: &no}, []string{a.ID, c.ID}},
		{"glob", ChunkFilter{Match: "chunk_1??_*"}, []string{b.ID}},
		{"glob and range", ChunkFilter{Match: "chunk_*_?", StartLine: 200}, []string{c.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Apply(all)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d chunks, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	t.Run("invalid pattern", func(t *testing.T) {
		if _, err := (ChunkFilter{Match: "chunk_[1"}).Apply(all); err == nil {
			t.Error("expected error for unterminated class")
		}
	})
}

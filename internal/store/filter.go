package store

import (
	"fmt"
	"math"

	"github.com/gobwas/glob"

	"github.com/jackzampolin/primer/internal/types"
)

// ChunkFilter selects chunks from a listing.
type ChunkFilter struct {
	// StartLine and EndLine restrict to chunks lying inside [StartLine, EndLine).
	// An EndLine of 0 means no upper bound.
	StartLine int
	EndLine   int

	Completed *bool

	// Match is a glob over chunk ids, e.g. "chunk_1??_*".
	Match string
}

// Apply returns the chunks satisfying every set field of f, preserving order.
func (f ChunkFilter) Apply(chunks []*types.ProcessedChunk) ([]*types.ProcessedChunk, error) {
	var g glob.Glob
	if f.Match != "" {
		var err error
		if g, err = glob.Compile(f.Match); err != nil {
			return nil, fmt.Errorf("invalid match pattern %q: %w", f.Match, err)
		}
	}

	end := f.EndLine
	if end <= 0 {
		end = math.MaxInt
	}

	out := make([]*types.ProcessedChunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.Contains(f.StartLine, end) {
			continue
		}
		if f.Completed != nil && c.Completed != *f.Completed {
			continue
		}
		if g != nil && !g.Match(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Package segment splits a line range of a source document into fixed-size spans.
package segment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned when endLine <= startLine or a bound is negative.
	ErrInvalidRange = errors.New("invalid line range")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// Span is a half-open line interval [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of lines in the span.
func (s Span) Len() int { return s.End - s.Start }

// DisplayEnd returns the inclusive last line of the span.
func (s Span) DisplayEnd() int { return s.End - 1 }

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// Validate checks a requested range and chunk size.
func Validate(start, end, size int) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidRange, start, end)
	}
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	return nil
}

// Segment returns the ordered spans [s, min(s+size, end)) for s = start, start+size, ...
// The spans are contiguous, non-overlapping and cover [start, end) exactly.
func Segment(start, end, size int) ([]Span, error) {
	if err := Validate(start, end, size); err != nil {
		return nil, err
	}
	spans := make([]Span, 0, (end-start+size-1)/size)
	for s := start; s < end; s += size {
		spans = append(spans, Span{Start: s, End: min(s+size, end)})
	}
	return spans, nil
}

// Next returns the span beginning at cursor, or false once cursor reaches end.
func Next(cursor, end, size int) (Span, bool) {
	if cursor >= end || size <= 0 {
		return Span{}, false
	}
	return Span{Start: cursor, End: min(cursor+size, end)}, true
}

package types

import (
	"fmt"
	"strings"
	"time"
)

// NoSuggestedEnd marks a LogicalBlockInfo without a usable split point.
const NoSuggestedEnd = -1

// LogicalBlockInfo is the backend's hint about where the current logical block ends.
type LogicalBlockInfo struct {
	SuggestedEndLine int    `json:"suggestedEndLine"`
	Reason           string `json:"reason,omitempty"`
}

// HasSuggestion reports whether SuggestedEndLine falls strictly inside (start, end).
func (l LogicalBlockInfo) HasSuggestion(start, end int) bool {
	return l.SuggestedEndLine > start && l.SuggestedEndLine < end
}

// ProcessedChunk is the persisted result of processing one span of source lines.
// EndLine is exclusive; DisplayEndLine is the inclusive last line shown to operators.
type ProcessedChunk struct {
	ID               string           `json:"id"`
	StartLine        int              `json:"startLine"`
	EndLine          int              `json:"endLine"`
	DisplayEndLine   int              `json:"displayEndLine"`
	Theory           []TheoryBlock    `json:"theory"`
	Questions        []Question       `json:"questions"`
	Tasks            []CodeTask       `json:"tasks"`
	LogicalBlockInfo LogicalBlockInfo `json:"logicalBlockInfo"`
	Completed        bool             `json:"completed"`
	ProcessedDate    time.Time        `json:"processedDate"`
}

// ChunkID builds the identifier for a chunk spanning [start, end).
// The suffix keeps ids unique when the same span is reprocessed.
func ChunkID(start, end int, suffix string) string {
	return fmt.Sprintf("chunk_%d_%d_%s", start, end, strings.ToLower(suffix))
}

// Clone returns a deep copy of the chunk's slices so callers can mutate freely.
func (c *ProcessedChunk) Clone() *ProcessedChunk {
	if c == nil {
		return nil
	}
	out := *c
	out.Theory = append([]TheoryBlock(nil), c.Theory...)
	out.Questions = append([]Question(nil), c.Questions...)
	out.Tasks = append([]CodeTask(nil), c.Tasks...)
	return &out
}

// Contains reports whether the chunk lies entirely inside [start, end).
func (c *ProcessedChunk) Contains(start, end int) bool {
	return c.StartLine >= start && c.EndLine <= end
}

// ProcessingState is the resumable cursor over the source document.
type ProcessingState struct {
	CurrentPosition int       `json:"currentPosition"`
	TotalLines      int       `json:"totalLines"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Valid reports whether 0 <= CurrentPosition <= TotalLines.
func (s ProcessingState) Valid() bool {
	return s.CurrentPosition >= 0 && s.TotalLines >= 0 && s.CurrentPosition <= s.TotalLines
}

// Done reports whether the cursor reached the end of the document.
func (s ProcessingState) Done() bool {
	return s.TotalLines > 0 && s.CurrentPosition >= s.TotalLines
}

// RewriteOptions are the operator instructions for the chunk-rewrite stage.
type RewriteOptions struct {
	Instructions    string         `json:"instructions,omitempty"`
	Focus           string         `json:"focus,omitempty"`
	Difficulty      string         `json:"difficulty,omitempty"`
	QuestionTypes   []QuestionType `json:"questionTypes,omitempty"`
	EnhanceExamples bool           `json:"enhanceExamples,omitempty"`
	SimplifyContent bool           `json:"simplifyContent,omitempty"`
	KeepIDs         bool           `json:"keepIds"`
}

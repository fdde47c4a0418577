package pipeline

import (
	"context"
	"time"

	"github.com/jackzampolin/primer/internal/prompts"
	"github.com/jackzampolin/primer/internal/sanitize"
	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/types"
)

// Stage names.
const (
	StageTheoryExtraction   = "theory-extraction"
	StageTheoryEnhancement  = "theory-enhancement"
	StageQuestionGeneration = "question-generation"
	StageTaskGeneration     = "task-generation"
	StageChunkRewrite       = "chunk-rewrite"
)

// Kind classifies what a stage does to the chunk catalog.
type Kind string

const (
	// KindCreate stages produce a new chunk from a source span.
	KindCreate Kind = "create"
	// KindMutate stages replace one field of an existing chunk.
	KindMutate Kind = "mutate"
	// KindRewrite stages regenerate an existing chunk wholesale.
	KindRewrite Kind = "rewrite"
)

// Stage is one transformation applied to a chunk.
type Stage interface {
	// Identity
	Name() string
	Dependencies() []string // Stages whose output this stage consumes

	// Metadata
	Kind() Kind
	Description() string
	PromptKey() string

	// Run applies the stage through o. Contained failures are reported in
	// Result.Failure; the returned error is reserved for structural problems.
	Run(ctx context.Context, o *Orchestrator, in Input) (*Result, error)
}

// Input addresses the chunk (or, for extraction, the source span) a stage
// works on.
type Input struct {
	ChunkID string               `json:"chunk_id,omitempty"`
	Span    segment.Span         `json:"span,omitempty"`
	Rewrite types.RewriteOptions `json:"rewrite,omitempty"`

	// FollowSuggestion ends an extracted chunk at the backend's suggested
	// line when it falls strictly inside Span.
	FollowSuggestion bool `json:"follow_suggestion,omitempty"`
}

// Result reports the outcome of one stage run on one chunk.
type Result struct {
	Stage    string                `json:"stage"`
	ChunkID  string                `json:"chunk_id,omitempty"`
	Span     segment.Span          `json:"span"`
	Chunk    *types.ProcessedChunk `json:"chunk,omitempty"`
	Strategy sanitize.Strategy     `json:"strategy,omitempty"`
	Duration time.Duration         `json:"duration"`

	// Failure is a contained, per-chunk failure: backend error, irrecoverable
	// response, or nothing usable produced. The chunk is left as it was.
	Failure error `json:"-"`
}

// OK reports whether the stage produced and persisted its output.
func (r *Result) OK() bool {
	return r != nil && r.Failure == nil
}

// FailureMessage returns the failure text, or "" on success.
func (r *Result) FailureMessage() string {
	if r == nil || r.Failure == nil {
		return ""
	}
	return r.Failure.Error()
}

// stage is the built-in Stage implementation.
type stage struct {
	name        string
	deps        []string
	kind        Kind
	description string
	promptKey   string
	run         func(ctx context.Context, o *Orchestrator, in Input) (*Result, error)
}

func (s *stage) Name() string           { return s.name }
func (s *stage) Dependencies() []string { return s.deps }
func (s *stage) Kind() Kind             { return s.kind }
func (s *stage) Description() string    { return s.description }
func (s *stage) PromptKey() string      { return s.promptKey }

func (s *stage) Run(ctx context.Context, o *Orchestrator, in Input) (*Result, error) {
	return s.run(ctx, o, in)
}

// BuiltinStages returns the five stages in their natural order.
func BuiltinStages() []Stage {
	return []Stage{
		&stage{
			name:        StageTheoryExtraction,
			kind:        KindCreate,
			description: "Extract theory blocks from a source span into a new chunk",
			promptKey:   prompts.TheoryExtractionKey,
			run: func(ctx context.Context, o *Orchestrator, in Input) (*Result, error) {
				return o.extract(ctx, in.Span, in.FollowSuggestion, 0)
			},
		},
		&stage{
			name:        StageTheoryEnhancement,
			deps:        []string{StageTheoryExtraction},
			kind:        KindMutate,
			description: "Add worked examples to every theory block of a chunk",
			promptKey:   prompts.TheoryEnhancementKey,
			run: func(ctx context.Context, o *Orchestrator, in Input) (*Result, error) {
				return o.EnhanceTheory(ctx, in.ChunkID)
			},
		},
		&stage{
			name:        StageQuestionGeneration,
			deps:        []string{StageTheoryEnhancement},
			kind:        KindMutate,
			description: "Generate practice questions from a chunk's theory",
			promptKey:   prompts.QuestionGenerationKey,
			run: func(ctx context.Context, o *Orchestrator, in Input) (*Result, error) {
				return o.GenerateQuestions(ctx, in.ChunkID)
			},
		},
		&stage{
			name:        StageTaskGeneration,
			deps:        []string{StageQuestionGeneration},
			kind:        KindMutate,
			description: "Generate coding tasks from a chunk's theory",
			promptKey:   prompts.TaskGenerationKey,
			run: func(ctx context.Context, o *Orchestrator, in Input) (*Result, error) {
				return o.GenerateTasks(ctx, in.ChunkID)
			},
		},
		&stage{
			name:        StageChunkRewrite,
			deps:        []string{StageTheoryExtraction},
			kind:        KindRewrite,
			description: "Rewrite a chunk following operator instructions",
			promptKey:   prompts.ChunkRewriteKey,
			run: func(ctx context.Context, o *Orchestrator, in Input) (*Result, error) {
				return o.RewriteChunk(ctx, in.ChunkID, in.Rewrite)
			},
		},
	}
}

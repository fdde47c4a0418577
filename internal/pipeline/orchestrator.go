package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jackzampolin/primer/internal/backend"
	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/prompts"
	"github.com/jackzampolin/primer/internal/sanitize"
	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/store"
	"github.com/jackzampolin/primer/internal/types"
)

// Config wires an Orchestrator.
type Config struct {
	Backend  backend.Backend
	Store    store.Store
	Document *segment.Document // required for theory extraction
	Prompts  *prompts.Builder  // defaults to prompts.NewBuilder()
	Registry *Registry         // defaults to DefaultRegistry()
	Options  backend.Options
	Logger   *slog.Logger

	// ChunkSizeLines is the block size cap given to theory extraction when a
	// request does not set one. Defaults to DefaultChunkSizeLines.
	ChunkSizeLines int
}

// Orchestrator runs single stages on single chunks: build prompt, call the
// backend, sanitize, persist. It never retries; backend and content failures
// are contained in Result.Failure.
type Orchestrator struct {
	backend  backend.Backend
	store    store.Store
	doc      *segment.Document
	prompts  *prompts.Builder
	registry *Registry
	opts     backend.Options
	logger   *slog.Logger
	size     int

	now   func() time.Time
	newID func() string
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrInvalidRequest)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidRequest)
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewBuilder()
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if err := cfg.Registry.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ChunkSizeLines <= 0 {
		cfg.ChunkSizeLines = DefaultChunkSizeLines
	}
	return &Orchestrator{
		backend:  cfg.Backend,
		store:    cfg.Store,
		doc:      cfg.Document,
		prompts:  cfg.Prompts,
		registry: cfg.Registry,
		opts:     cfg.Options,
		logger:   cfg.Logger,
		size:     cfg.ChunkSizeLines,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return ulid.Make().String() },
	}, nil
}

// Registry returns the stage registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Document returns the source document, which may be nil.
func (o *Orchestrator) Document() *segment.Document { return o.doc }

// Store returns the backing store.
func (o *Orchestrator) Store() store.Store { return o.store }

// RunStage runs the named stage. An unknown name is a structural error.
func (o *Orchestrator) RunStage(ctx context.Context, name string, in Input) (*Result, error) {
	s, ok := o.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	return s.Run(ctx, o, in)
}

// ExtractTheory runs theory extraction over span and persists the new chunk.
func (o *Orchestrator) ExtractTheory(ctx context.Context, span segment.Span) (*Result, error) {
	return o.extract(ctx, span, false, 0)
}

// extract runs theory extraction. chunkSize caps the lines one block may
// span; 0 uses the configured default.
func (o *Orchestrator) extract(ctx context.Context, span segment.Span, follow bool, chunkSize int) (*Result, error) {
	start := time.Now()
	res := &Result{Stage: StageTheoryExtraction, Span: span}

	if o.doc == nil {
		return nil, fmt.Errorf("%w: no source document loaded", ErrInvalidRequest)
	}
	if span.Start < 0 || span.End <= span.Start || span.End > o.doc.LineCount() {
		return nil, fmt.Errorf("%w: span %s outside document of %d lines",
			segment.ErrInvalidRange, span, o.doc.LineCount())
	}

	if chunkSize <= 0 {
		chunkSize = o.size
	}
	prompt := o.prompts.TheoryExtraction(prompts.ExtractionInput{
		StartLine:      span.Start,
		EndLine:        span.End,
		ChunkSizeLines: chunkSize,
		Text:           o.doc.Numbered(span),
	})
	text, err := o.call(ctx, StageTheoryExtraction, "", prompts.TheoryExtractionKey, prompt)
	if err != nil {
		return o.contain(ctx, res, start, err)
	}

	resp := sanitize.Sanitize(text)
	res.Strategy = resp.Strategy
	if resp.IsFallback() {
		return o.contain(ctx, res, start, ErrUnrecoverableResponse)
	}
	if err := sanitize.ValidateEnvelope(resp); err != nil {
		o.logger.Warn("extraction response shape mismatch", "span", span.String(), "error", err)
	}

	end := span.End
	if follow && resp.LogicalBlockInfo.HasSuggestion(span.Start, span.End) {
		end = resp.LogicalBlockInfo.SuggestedEndLine
	}

	chunk := &types.ProcessedChunk{
		ID:               types.ChunkID(span.Start, end, o.newID()),
		StartLine:        span.Start,
		EndLine:          end,
		DisplayEndLine:   end - 1,
		Theory:           make([]types.TheoryBlock, 0, len(resp.Theory)),
		Questions:        make([]types.Question, 0, len(resp.Questions)),
		Tasks:            make([]types.CodeTask, 0, len(resp.Tasks)),
		LogicalBlockInfo: resp.LogicalBlockInfo,
		ProcessedDate:    o.now(),
	}
	for _, v := range resp.Theory {
		chunk.Theory = append(chunk.Theory, sanitize.Theory(v))
	}
	for _, v := range resp.Questions {
		chunk.Questions = append(chunk.Questions, sanitize.Question(v))
	}
	for _, v := range resp.Tasks {
		chunk.Tasks = append(chunk.Tasks, sanitize.Task(v))
	}

	if err := o.store.PutChunk(ctx, chunk); err != nil {
		return nil, fmt.Errorf("persist chunk %s: %w", chunk.ID, err)
	}

	res.ChunkID = chunk.ID
	res.Span = segment.Span{Start: chunk.StartLine, End: chunk.EndLine}
	res.Chunk = chunk
	res.Duration = time.Since(start)
	o.logger.Info("chunk extracted",
		"chunk_id", chunk.ID,
		"start_line", chunk.StartLine,
		"end_line", chunk.EndLine,
		"theory", len(chunk.Theory),
		"strategy", resp.Strategy,
		"suggested_end_line", chunk.LogicalBlockInfo.SuggestedEndLine)
	return res, nil
}

// EnhanceTheory asks for worked examples on every theory block of a chunk.
// The update is atomic: if any block fails, the chunk is left unchanged.
func (o *Orchestrator) EnhanceTheory(ctx context.Context, chunkID string) (*Result, error) {
	start := time.Now()
	chunk, res, err := o.load(ctx, StageTheoryEnhancement, chunkID)
	if err != nil {
		return nil, err
	}
	if len(chunk.Theory) == 0 {
		return o.contain(ctx, res, start, ErrNoTheory)
	}

	enhanced := make([]types.TheoryBlock, 0, len(chunk.Theory))
	for _, block := range chunk.Theory {
		prompt := o.prompts.TheoryEnhancement(block)
		text, err := o.call(ctx, StageTheoryEnhancement, chunkID, prompts.TheoryEnhancementKey, prompt)
		if err != nil {
			return o.contain(ctx, res, start, fmt.Errorf("block %s: %w", block.ID, err))
		}
		v, strategy := sanitize.Object(text, "theory")
		res.Strategy = strategy
		if strategy == sanitize.StrategyFallback {
			return o.contain(ctx, res, start, fmt.Errorf("block %s: %w", block.ID, ErrUnrecoverableResponse))
		}
		out := sanitize.Theory(v)
		out.ID = block.ID
		enhanced = append(enhanced, out)
	}

	chunk.Theory = enhanced
	return o.save(ctx, res, chunk, start, "theory", len(enhanced))
}

// GenerateQuestions replaces a chunk's questions with ones generated from
// its theory.
func (o *Orchestrator) GenerateQuestions(ctx context.Context, chunkID string) (*Result, error) {
	start := time.Now()
	chunk, res, err := o.load(ctx, StageQuestionGeneration, chunkID)
	if err != nil {
		return nil, err
	}
	if len(chunk.Theory) == 0 {
		return o.contain(ctx, res, start, ErrNoTheory)
	}

	prompt := o.prompts.QuestionGeneration(chunk.Theory)
	text, err := o.call(ctx, StageQuestionGeneration, chunkID, prompts.QuestionGenerationKey, prompt)
	if err != nil {
		return o.contain(ctx, res, start, err)
	}
	items, strategy := sanitize.Items(text, "questions")
	res.Strategy = strategy
	if len(items) == 0 {
		return o.contain(ctx, res, start, fmt.Errorf("%w: no questions", ErrUnrecoverableResponse))
	}

	questions := make([]types.Question, 0, len(items))
	for _, v := range items {
		questions = append(questions, sanitize.Question(v))
	}
	chunk.Questions = questions
	return o.save(ctx, res, chunk, start, "questions", len(questions))
}

// GenerateTasks replaces a chunk's tasks with ones generated from its theory.
func (o *Orchestrator) GenerateTasks(ctx context.Context, chunkID string) (*Result, error) {
	start := time.Now()
	chunk, res, err := o.load(ctx, StageTaskGeneration, chunkID)
	if err != nil {
		return nil, err
	}
	if len(chunk.Theory) == 0 {
		return o.contain(ctx, res, start, ErrNoTheory)
	}

	prompt := o.prompts.TaskGeneration(chunk.Theory)
	text, err := o.call(ctx, StageTaskGeneration, chunkID, prompts.TaskGenerationKey, prompt)
	if err != nil {
		return o.contain(ctx, res, start, err)
	}
	items, strategy := sanitize.Items(text, "tasks")
	res.Strategy = strategy
	if len(items) == 0 {
		return o.contain(ctx, res, start, fmt.Errorf("%w: no tasks", ErrUnrecoverableResponse))
	}

	tasks := make([]types.CodeTask, 0, len(items))
	for _, v := range items {
		tasks = append(tasks, sanitize.Task(v))
	}
	chunk.Tasks = tasks
	return o.save(ctx, res, chunk, start, "tasks", len(tasks))
}

// RewriteChunk regenerates a chunk following opts. Each of theory, questions
// and tasks is replaced only when the response carries at least one item for
// it; the chunk id, span and completion flag are kept.
func (o *Orchestrator) RewriteChunk(ctx context.Context, chunkID string, opts types.RewriteOptions) (*Result, error) {
	start := time.Now()
	chunk, res, err := o.load(ctx, StageChunkRewrite, chunkID)
	if err != nil {
		return nil, err
	}

	prompt := o.prompts.ChunkRewrite(chunk, opts)
	text, err := o.call(ctx, StageChunkRewrite, chunkID, prompts.ChunkRewriteKey, prompt)
	if err != nil {
		return o.contain(ctx, res, start, err)
	}
	resp := sanitize.Sanitize(text)
	res.Strategy = resp.Strategy
	if resp.IsFallback() {
		return o.contain(ctx, res, start, ErrUnrecoverableResponse)
	}
	if len(resp.Theory)+len(resp.Questions)+len(resp.Tasks) == 0 {
		return o.contain(ctx, res, start, fmt.Errorf("%w: empty rewrite", ErrUnrecoverableResponse))
	}

	if len(resp.Theory) > 0 {
		theory := make([]types.TheoryBlock, 0, len(resp.Theory))
		for i, v := range resp.Theory {
			block := sanitize.Theory(v)
			if opts.KeepIDs && i < len(chunk.Theory) {
				block.ID = chunk.Theory[i].ID
			}
			theory = append(theory, block)
		}
		chunk.Theory = theory
	}
	if len(resp.Questions) > 0 {
		questions := make([]types.Question, 0, len(resp.Questions))
		for i, v := range resp.Questions {
			q := sanitize.Question(v)
			if opts.KeepIDs && i < len(chunk.Questions) {
				q.ID = chunk.Questions[i].ID
			}
			questions = append(questions, q)
		}
		chunk.Questions = questions
	}
	if len(resp.Tasks) > 0 {
		tasks := make([]types.CodeTask, 0, len(resp.Tasks))
		for i, v := range resp.Tasks {
			task := sanitize.Task(v)
			if opts.KeepIDs && i < len(chunk.Tasks) {
				task.ID = chunk.Tasks[i].ID
			}
			tasks = append(tasks, task)
		}
		chunk.Tasks = tasks
	}
	chunk.ProcessedDate = o.now()
	return o.save(ctx, res, chunk, start, "theory", len(chunk.Theory))
}

// MarkCompleted flags a chunk as reviewed. Completion never reverts.
func (o *Orchestrator) MarkCompleted(ctx context.Context, chunkID string) (*types.ProcessedChunk, error) {
	chunk, err := o.store.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if chunk.Completed {
		return chunk, nil
	}
	chunk.Completed = true
	if err := o.store.PutChunk(ctx, chunk); err != nil {
		return nil, fmt.Errorf("persist chunk %s: %w", chunkID, err)
	}
	o.logger.Info("chunk marked completed", "chunk_id", chunkID)
	return chunk, nil
}

// Export is the serialized chunk catalog.
type Export struct {
	ExportedAt time.Time               `json:"exportedAt"`
	Count      int                     `json:"count"`
	Chunks     []*types.ProcessedChunk `json:"chunks"`
}

// ExportChunks writes the whole chunk catalog to w as one JSON document.
func (o *Orchestrator) ExportChunks(ctx context.Context, w io.Writer) (int, error) {
	chunks, err := o.store.ListChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chunks: %w", err)
	}
	if chunks == nil {
		chunks = []*types.ProcessedChunk{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Export{ExportedAt: o.now(), Count: len(chunks), Chunks: chunks}); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	return len(chunks), nil
}

// load fetches the chunk a mutating stage works on. A missing chunk is a
// structural error.
func (o *Orchestrator) load(ctx context.Context, stage, chunkID string) (*types.ProcessedChunk, *Result, error) {
	if chunkID == "" {
		return nil, nil, fmt.Errorf("%w: chunk id is required", ErrInvalidRequest)
	}
	chunk, err := o.store.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, nil, err
	}
	return chunk, &Result{
		Stage:   stage,
		ChunkID: chunkID,
		Span:    segment.Span{Start: chunk.StartLine, End: chunk.EndLine},
	}, nil
}

func (o *Orchestrator) save(ctx context.Context, res *Result, chunk *types.ProcessedChunk, start time.Time, field string, n int) (*Result, error) {
	if err := o.store.PutChunk(ctx, chunk); err != nil {
		return nil, fmt.Errorf("persist chunk %s: %w", chunk.ID, err)
	}
	res.Chunk = chunk
	res.Duration = time.Since(start)
	o.logger.Info("stage complete",
		"stage", res.Stage,
		"chunk_id", chunk.ID,
		field, n,
		"strategy", res.Strategy)
	return res, nil
}

// call sends prompt to the backend, labelling the recorded LLM call.
func (o *Orchestrator) call(ctx context.Context, stage, chunkID, key, prompt string) (string, error) {
	ctx = llmcall.WithOptions(ctx, llmcall.RecordOptions{
		ChunkID:    chunkID,
		Stage:      stage,
		PromptKey:  key,
		PromptHash: o.prompts.Hash(key),
	})
	o.logger.Debug("calling backend", "stage", stage, "chunk_id", chunkID, "prompt_chars", len(prompt))
	return o.backend.ProcessContent(ctx, prompt, o.opts)
}

// contain turns err into a contained failure. Cancellation of ctx is not
// contained: it aborts the caller.
func (o *Orchestrator) contain(ctx context.Context, res *Result, start time.Time, err error) (*Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, ctxErr
	}
	res.Failure = err
	res.Duration = time.Since(start)
	o.logger.Warn("stage failed",
		"stage", res.Stage,
		"chunk_id", res.ChunkID,
		"span", res.Span.String(),
		"error", err)
	return res, nil
}

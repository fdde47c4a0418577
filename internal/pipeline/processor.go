package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/state"
	"github.com/jackzampolin/primer/internal/types"
)

// DefaultChunkSizeLines is used when a request leaves the chunk size unset.
const DefaultChunkSizeLines = 100

// RangeRequest asks for theory extraction over [StartLine, EndLine).
type RangeRequest struct {
	StartLine      int           `json:"start_line"`
	EndLine        int           `json:"end_line"`
	ChunkSizeLines int           `json:"chunk_size_lines"`
	Delay          time.Duration `json:"delay"`

	// FollowSuggestions lets the backend's logical block hint end a chunk
	// early; the next chunk then starts at the suggested line.
	FollowSuggestions bool `json:"follow_suggestions"`

	// OnResult, when set, observes every stage result as it completes.
	OnResult func(*Result) `json:"-"`
}

// StagesRequest asks for every post-extraction stage over the chunks lying
// inside [StartLine, EndLine). An EndLine of 0 selects every chunk.
type StagesRequest struct {
	StartLine int           `json:"start_line"`
	EndLine   int           `json:"end_line"`
	Delay     time.Duration `json:"delay"`

	OnResult func(*Result) `json:"-"`
}

// ChunkFailure is one contained failure in a batch.
type ChunkFailure struct {
	Span    segment.Span `json:"span"`
	ChunkID string       `json:"chunk_id,omitempty"`
	Stage   string       `json:"stage"`
	Reason  string       `json:"reason"`
}

// Report summarizes a batch run.
type Report struct {
	Chunks     []*types.ProcessedChunk `json:"chunks"`
	Failures   []ChunkFailure          `json:"failures"`
	StageRuns  int                     `json:"stage_runs"`
	Succeeded  int                     `json:"succeeded"`
	Failed     int                     `json:"failed"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Cursor     *types.ProcessingState  `json:"cursor,omitempty"`
}

func (r *Report) add(res *Result) {
	r.StageRuns++
	if res.OK() {
		r.Succeeded++
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, ChunkFailure{
		Span:    res.Span,
		ChunkID: res.ChunkID,
		Stage:   res.Stage,
		Reason:  res.FailureMessage(),
	})
}

// Processor drives the orchestrator over line ranges and chunk sets,
// strictly one chunk at a time.
type Processor struct {
	o      *Orchestrator
	state  *state.Manager
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewProcessor creates a Processor.
func NewProcessor(o *Orchestrator, st *state.Manager, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = o.logger
	}
	return &Processor{o: o, state: st, logger: logger, sleep: sleepContext}
}

// Orchestrator returns the orchestrator the processor drives.
func (p *Processor) Orchestrator() *Orchestrator { return p.o }

// State returns the cursor manager.
func (p *Processor) State() *state.Manager { return p.state }

// ProcessRange extracts every span of the requested range into chunks.
// A failing span is logged and recorded in the report; processing carries
// on with the next span. The cursor advances after every persisted chunk.
// The returned error is reserved for invalid requests, storage failures
// and cancellation.
func (p *Processor) ProcessRange(ctx context.Context, req RangeRequest) (*Report, error) {
	if req.ChunkSizeLines == 0 {
		req.ChunkSizeLines = DefaultChunkSizeLines
	}
	if err := p.validateRange(req); err != nil {
		return nil, err
	}
	if err := p.initBackend(ctx); err != nil {
		return nil, err
	}
	if _, err := p.state.SetTotalLines(ctx, p.o.doc.LineCount()); err != nil {
		return nil, err
	}

	report := &Report{StartedAt: time.Now().UTC(), Chunks: []*types.ProcessedChunk{}, Failures: []ChunkFailure{}}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	p.logger.Info("range processing started",
		"start_line", req.StartLine,
		"end_line", req.EndLine,
		"chunk_size_lines", req.ChunkSizeLines,
		"delay", req.Delay,
		"follow_suggestions", req.FollowSuggestions)

	cursor := req.StartLine
	for {
		span, ok := segment.Next(cursor, req.EndLine, req.ChunkSizeLines)
		if !ok {
			break
		}
		if report.StageRuns > 0 {
			if err := p.sleep(ctx, req.Delay); err != nil {
				return report, err
			}
		}

		res, err := p.o.extract(ctx, span, req.FollowSuggestions, req.ChunkSizeLines)
		if err != nil {
			return report, fmt.Errorf("extract %s: %w", span, err)
		}
		report.add(res)
		if req.OnResult != nil {
			req.OnResult(res)
		}

		if !res.OK() {
			cursor = span.End
			continue
		}
		report.Chunks = append(report.Chunks, res.Chunk)
		cursor = res.Span.End
		st, err := p.state.Advance(ctx, cursor)
		if err != nil {
			return report, err
		}
		report.Cursor = st
	}

	if report.Cursor == nil {
		st, err := p.state.GetState(ctx)
		if err != nil {
			return report, err
		}
		report.Cursor = st
	}
	p.logger.Info("range processing finished",
		"start_line", req.StartLine,
		"end_line", req.EndLine,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"current_position", report.Cursor.CurrentPosition)
	return report, nil
}

// Resume continues extraction from the persisted cursor. StartLine in req is
// ignored; an EndLine of 0 means the end of the document.
func (p *Processor) Resume(ctx context.Context, req RangeRequest) (*Report, error) {
	if p.o.doc == nil {
		return nil, fmt.Errorf("%w: no source document loaded", ErrInvalidRequest)
	}
	st, err := p.state.SetTotalLines(ctx, p.o.doc.LineCount())
	if err != nil {
		return nil, err
	}
	if req.EndLine == 0 {
		req.EndLine = st.TotalLines
	}
	req.StartLine = st.CurrentPosition
	if req.StartLine >= req.EndLine {
		p.logger.Info("nothing to resume", "current_position", st.CurrentPosition, "end_line", req.EndLine)
		now := time.Now().UTC()
		return &Report{
			Chunks:     []*types.ProcessedChunk{},
			Failures:   []ChunkFailure{},
			StartedAt:  now,
			FinishedAt: now,
			Cursor:     st,
		}, nil
	}
	return p.ProcessRange(ctx, req)
}

// RunAllStages walks every selected chunk, in line order, through each
// mutating stage in dependency order. A failing stage is recorded and the
// walk continues with the next stage and the next chunk.
func (p *Processor) RunAllStages(ctx context.Context, req StagesRequest) (*Report, error) {
	if req.StartLine < 0 || (req.EndLine != 0 && req.EndLine <= req.StartLine) {
		return nil, fmt.Errorf("%w: start=%d end=%d", segment.ErrInvalidRange, req.StartLine, req.EndLine)
	}
	if req.Delay < 0 {
		return nil, fmt.Errorf("%w: negative delay %s", ErrInvalidRequest, req.Delay)
	}
	if err := p.initBackend(ctx); err != nil {
		return nil, err
	}

	all, err := p.o.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	stages, err := p.o.registry.OfKind(KindMutate)
	if err != nil {
		return nil, err
	}

	report := &Report{StartedAt: time.Now().UTC(), Chunks: []*types.ProcessedChunk{}, Failures: []ChunkFailure{}}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	for _, chunk := range all {
		if chunk.StartLine < req.StartLine || (req.EndLine != 0 && chunk.EndLine > req.EndLine) {
			continue
		}
		latest := chunk
		for _, s := range stages {
			if report.StageRuns > 0 {
				if err := p.sleep(ctx, req.Delay); err != nil {
					return report, err
				}
			}
			res, err := s.Run(ctx, p.o, Input{ChunkID: chunk.ID})
			if err != nil {
				return report, fmt.Errorf("%s on %s: %w", s.Name(), chunk.ID, err)
			}
			report.add(res)
			if req.OnResult != nil {
				req.OnResult(res)
			}
			if res.OK() {
				latest = res.Chunk
			}
		}
		report.Chunks = append(report.Chunks, latest)
	}

	p.logger.Info("all stages finished",
		"chunks", len(report.Chunks),
		"stage_runs", report.StageRuns,
		"succeeded", report.Succeeded,
		"failed", report.Failed)
	return report, nil
}

func (p *Processor) validateRange(req RangeRequest) error {
	if err := segment.Validate(req.StartLine, req.EndLine, req.ChunkSizeLines); err != nil {
		return err
	}
	if req.Delay < 0 {
		return fmt.Errorf("%w: negative delay %s", ErrInvalidRequest, req.Delay)
	}
	if p.o.doc == nil {
		return fmt.Errorf("%w: no source document loaded", ErrInvalidRequest)
	}
	if total := p.o.doc.LineCount(); req.EndLine > total {
		return fmt.Errorf("%w: end line %d beyond document of %d lines", segment.ErrInvalidRange, req.EndLine, total)
	}
	return nil
}

func (p *Processor) initBackend(ctx context.Context) error {
	if p.o.backend.IsInitialized() {
		return nil
	}
	if err := p.o.backend.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize backend %s: %w", p.o.backend.Name(), err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

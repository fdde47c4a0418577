package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunKind names the batch a Runner executes.
type RunKind string

const (
	RunRange     RunKind = "range"
	RunResume    RunKind = "resume"
	RunAllStages RunKind = "all-stages"
)

// RunStatus is a snapshot of the current or most recent background run.
type RunStatus struct {
	ID         string     `json:"id,omitempty"`
	Kind       RunKind    `json:"kind,omitempty"`
	Running    bool       `json:"running"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	LastChunk  string     `json:"last_chunk,omitempty"`
	Report     *Report    `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Runner executes at most one batch at a time in the background.
type Runner struct {
	p      *Processor
	logger *slog.Logger

	mu     sync.Mutex
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a Runner over p.
func NewRunner(p *Processor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = p.logger
	}
	return &Runner{p: p, logger: logger}
}

// StartRange runs ProcessRange in the background. An invalid range is
// rejected before anything starts.
func (r *Runner) StartRange(req RangeRequest) (RunStatus, error) {
	if req.ChunkSizeLines == 0 {
		req.ChunkSizeLines = DefaultChunkSizeLines
	}
	if err := r.p.validateRange(req); err != nil {
		return RunStatus{}, err
	}
	return r.start(RunRange, func(ctx context.Context, observe func(*Result)) (*Report, error) {
		req.OnResult = observe
		return r.p.ProcessRange(ctx, req)
	})
}

// StartResume runs Resume in the background.
func (r *Runner) StartResume(req RangeRequest) (RunStatus, error) {
	return r.start(RunResume, func(ctx context.Context, observe func(*Result)) (*Report, error) {
		req.OnResult = observe
		return r.p.Resume(ctx, req)
	})
}

// StartAllStages runs RunAllStages in the background.
func (r *Runner) StartAllStages(req StagesRequest) (RunStatus, error) {
	return r.start(RunAllStages, func(ctx context.Context, observe func(*Result)) (*Report, error) {
		req.OnResult = observe
		return r.p.RunAllStages(ctx, req)
	})
}

func (r *Runner) start(kind RunKind, fn func(context.Context, func(*Result)) (*Report, error)) (RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Running {
		return r.status, fmt.Errorf("%w: %s run %s", ErrRunInProgress, r.status.Kind, r.status.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.status = RunStatus{
		ID:        uuid.New().String(),
		Kind:      kind,
		Running:   true,
		StartedAt: time.Now().UTC(),
	}
	r.cancel = cancel
	r.done = done
	id := r.status.ID

	r.logger.Info("run started", "run_id", id, "kind", kind)
	go func() {
		defer close(done)
		defer cancel()
		report, err := fn(ctx, r.observe)
		r.finish(report, err)
	}()
	return r.status, nil
}

func (r *Runner) observe(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.OK() {
		r.status.Succeeded++
	} else {
		r.status.Failed++
	}
	r.status.LastChunk = res.ChunkID
	if r.status.LastChunk == "" {
		r.status.LastChunk = res.Span.String()
	}
}

func (r *Runner) finish(report *Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.status.Running = false
	r.status.FinishedAt = &now
	r.status.Report = report
	switch {
	case err == nil:
		r.logger.Info("run finished", "run_id", r.status.ID,
			"succeeded", r.status.Succeeded, "failed", r.status.Failed)
	case errors.Is(err, context.Canceled):
		r.status.Error = "cancelled"
		r.logger.Warn("run cancelled", "run_id", r.status.ID)
	default:
		r.status.Error = err.Error()
		r.logger.Error("run failed", "run_id", r.status.ID, "error", err)
	}
}

// Status returns a snapshot of the current or last run.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Cancel stops the active run. It reports whether a run was active.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Running || r.cancel == nil {
		return false
	}
	r.cancel()
	return true
}

// Wait blocks until the active run (if any) finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

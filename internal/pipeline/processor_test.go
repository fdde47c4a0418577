package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/primer/internal/backend"
	"github.com/jackzampolin/primer/internal/segment"
)

func spansOf(r *Report) []segment.Span {
	out := make([]segment.Span, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		out = append(out, segment.Span{Start: c.StartLine, End: c.EndLine})
	}
	return out
}

func equalSpans(a, b []segment.Span) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestProcessor_ProcessRange(t *testing.T) {
	ctx := context.Background()

	t.Run("segments the range", func(t *testing.T) {
		f := newFixture(t, 250)
		report, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 250, ChunkSizeLines: 100})
		if err != nil {
			t.Fatalf("ProcessRange() error = %v", err)
		}
		want := []segment.Span{{Start: 0, End: 100}, {Start: 100, End: 200}, {Start: 200, End: 250}}
		if got := spansOf(report); !equalSpans(got, want) {
			t.Errorf("spans = %v, want %v", got, want)
		}
		if report.Succeeded != 3 || report.Failed != 0 {
			t.Errorf("succeeded/failed = %d/%d", report.Succeeded, report.Failed)
		}
		if report.Cursor.CurrentPosition != 250 || report.Cursor.TotalLines != 250 {
			t.Errorf("cursor = %+v", report.Cursor)
		}
		chunks, _ := f.store.ListChunks(ctx)
		if len(chunks) != 3 {
			t.Errorf("stored chunks = %d", len(chunks))
		}
	})

	t.Run("default chunk size", func(t *testing.T) {
		f := newFixture(t, 150)
		report, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 150})
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Chunks) != 2 {
			t.Errorf("chunks = %d, want 2", len(report.Chunks))
		}
	})

	t.Run("failure on one chunk does not stop the batch", func(t *testing.T) {
		f := newFixture(t, 500)
		f.backend.respond = func(stage, prompt string) (string, error) {
			if strings.Contains(prompt, lineMarker(200)) {
				return "", backend.ErrBackendError
			}
			return defaultReply(stage), nil
		}
		report, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 500, ChunkSizeLines: 100})
		if err != nil {
			t.Fatalf("ProcessRange() error = %v", err)
		}
		want := []segment.Span{{Start: 0, End: 100}, {Start: 100, End: 200}, {Start: 300, End: 400}, {Start: 400, End: 500}}
		if got := spansOf(report); !equalSpans(got, want) {
			t.Errorf("spans = %v, want %v", got, want)
		}
		if len(report.Failures) != 1 {
			t.Fatalf("failures = %+v", report.Failures)
		}
		fail := report.Failures[0]
		if fail.Span != (segment.Span{Start: 200, End: 300}) || fail.Stage != StageTheoryExtraction || fail.Reason == "" {
			t.Errorf("failure = %+v", fail)
		}
		if len(f.backend.Calls()) != 5 {
			t.Errorf("backend calls = %d, want 5", len(f.backend.Calls()))
		}
		if report.Cursor.CurrentPosition != 500 {
			t.Errorf("cursor = %d, want 500", report.Cursor.CurrentPosition)
		}

		// The cursor is already past the failed span, so it is recovered by
		// processing that span explicitly.
		f.backend.respond = func(stage, prompt string) (string, error) { return defaultReply(stage), nil }
		retry, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: fail.Span.Start, EndLine: fail.Span.End, ChunkSizeLines: 100})
		if err != nil {
			t.Fatalf("ProcessRange(retry) error = %v", err)
		}
		if got := spansOf(retry); !equalSpans(got, []segment.Span{fail.Span}) {
			t.Errorf("retry spans = %v, want %v", got, fail.Span)
		}
		if retry.Cursor.CurrentPosition != 500 {
			t.Errorf("cursor after retry = %d, want 500", retry.Cursor.CurrentPosition)
		}
	})

	t.Run("failing last chunk leaves cursor behind it", func(t *testing.T) {
		f := newFixture(t, 200)
		f.backend.respond = func(stage, prompt string) (string, error) {
			if strings.Contains(prompt, lineMarker(100)) {
				return "not json", nil
			}
			return defaultReply(stage), nil
		}
		report, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 200, ChunkSizeLines: 100})
		if err != nil {
			t.Fatal(err)
		}
		if report.Cursor.CurrentPosition != 100 {
			t.Errorf("cursor = %d, want 100", report.Cursor.CurrentPosition)
		}
	})

	t.Run("follows logical block suggestions", func(t *testing.T) {
		f := newFixture(t, 150)
		f.backend.respond = func(_, prompt string) (string, error) {
			if strings.Contains(prompt, lineMarker(0)) {
				return extractionReply(60, "t1"), nil
			}
			return extractionReply(-1, "t2"), nil
		}
		report, err := f.p.ProcessRange(ctx, RangeRequest{
			StartLine: 0, EndLine: 150, ChunkSizeLines: 100, FollowSuggestions: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		want := []segment.Span{{Start: 0, End: 60}, {Start: 60, End: 150}}
		if got := spansOf(report); !equalSpans(got, want) {
			t.Errorf("spans = %v, want %v", got, want)
		}
	})

	t.Run("suggestions ignored unless requested", func(t *testing.T) {
		f := newFixture(t, 150)
		f.backend.respond = func(string, string) (string, error) { return extractionReply(60, "t1"), nil }
		report, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 150, ChunkSizeLines: 100})
		if err != nil {
			t.Fatal(err)
		}
		want := []segment.Span{{Start: 0, End: 100}, {Start: 100, End: 150}}
		if got := spansOf(report); !equalSpans(got, want) {
			t.Errorf("spans = %v, want %v", got, want)
		}
	})

	t.Run("storage failure aborts", func(t *testing.T) {
		f := newFixture(t, 300)
		f.store.ErrAfterNWrites = 1
		report, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 300, ChunkSizeLines: 100})
		if err == nil {
			t.Fatal("expected storage error")
		}
		if report == nil || len(report.Chunks) != 1 {
			t.Errorf("report = %+v", report)
		}
	})

	t.Run("backend initialization failure", func(t *testing.T) {
		f := newFixture(t, 100)
		f.backend.initErr = backend.ErrBackendUnavailable
		_, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 100})
		if !errors.Is(err, backend.ErrBackendUnavailable) {
			t.Errorf("err = %v, want ErrBackendUnavailable", err)
		}
	})
}

func TestProcessor_ProcessRange_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RangeRequest
		want error
	}{
		{"end before start", RangeRequest{StartLine: 50, EndLine: 10, ChunkSizeLines: 10}, segment.ErrInvalidRange},
		{"empty range", RangeRequest{StartLine: 10, EndLine: 10, ChunkSizeLines: 10}, segment.ErrInvalidRange},
		{"negative start", RangeRequest{StartLine: -1, EndLine: 10, ChunkSizeLines: 10}, segment.ErrInvalidRange},
		{"negative chunk size", RangeRequest{StartLine: 0, EndLine: 10, ChunkSizeLines: -5}, segment.ErrInvalidChunkSize},
		{"negative delay", RangeRequest{StartLine: 0, EndLine: 10, ChunkSizeLines: 10, Delay: -time.Second}, ErrInvalidRequest},
		{"beyond document", RangeRequest{StartLine: 0, EndLine: 101, ChunkSizeLines: 10}, segment.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100)
			_, err := f.p.ProcessRange(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if len(f.backend.Calls()) != 0 {
				t.Error("backend called for invalid request")
			}
		})
	}
}

func TestProcessor_Delay(t *testing.T) {
	ctx := context.Background()

	t.Run("sleeps between chunks only", func(t *testing.T) {
		f := newFixture(t, 300)
		var sleeps []time.Duration
		f.p.sleep = func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}
		if _, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 300, ChunkSizeLines: 100, Delay: 2 * time.Second}); err != nil {
			t.Fatal(err)
		}
		if len(sleeps) != 2 || sleeps[0] != 2*time.Second {
			t.Errorf("sleeps = %v", sleeps)
		}
	})

	t.Run("cancellation during delay stops the batch", func(t *testing.T) {
		f := newFixture(t, 300)
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		f.backend.respond = func(stage, _ string) (string, error) {
			cancel()
			return defaultReply(stage), nil
		}
		report, err := f.p.ProcessRange(cctx, RangeRequest{StartLine: 0, EndLine: 300, ChunkSizeLines: 100, Delay: time.Hour})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if len(report.Chunks) != 1 {
			t.Errorf("chunks = %d, want 1", len(report.Chunks))
		}
	})
}

func TestProcessor_CursorIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 300)
	if _, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 100, EndLine: 200, ChunkSizeLines: 100}); err != nil {
		t.Fatal(err)
	}
	report, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 100, ChunkSizeLines: 100})
	if err != nil {
		t.Fatal(err)
	}
	if report.Cursor.CurrentPosition != 200 {
		t.Errorf("cursor = %d, want 200", report.Cursor.CurrentPosition)
	}
}

func TestProcessor_Resume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	if _, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 100, ChunkSizeLines: 100}); err != nil {
		t.Fatal(err)
	}

	report, err := f.p.Resume(ctx, RangeRequest{ChunkSizeLines: 100})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	want := []segment.Span{{Start: 100, End: 200}, {Start: 200, End: 250}}
	if got := spansOf(report); !equalSpans(got, want) {
		t.Errorf("spans = %v, want %v", got, want)
	}

	report, err = f.p.Resume(ctx, RangeRequest{ChunkSizeLines: 100})
	if err != nil {
		t.Fatalf("second Resume() error = %v", err)
	}
	if len(report.Chunks) != 0 || report.Cursor.CurrentPosition != 250 {
		t.Errorf("second resume = %+v", report)
	}
}

func TestProcessor_RunAllStages(t *testing.T) {
	ctx := context.Background()

	t.Run("walks every chunk through every stage", func(t *testing.T) {
		f := newFixture(t, 200)
		if _, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 200, ChunkSizeLines: 100}); err != nil {
			t.Fatal(err)
		}
		var order []string
		report, err := f.p.RunAllStages(ctx, StagesRequest{OnResult: func(r *Result) { order = append(order, r.Stage) }})
		if err != nil {
			t.Fatalf("RunAllStages() error = %v", err)
		}
		if report.StageRuns != 6 || report.Failed != 0 {
			t.Errorf("runs/failed = %d/%d", report.StageRuns, report.Failed)
		}
		wantOrder := []string{StageTheoryEnhancement, StageQuestionGeneration, StageTaskGeneration}
		for i, s := range order[:3] {
			if s != wantOrder[i] {
				t.Errorf("order[%d] = %s, want %s", i, s, wantOrder[i])
			}
		}
		for _, c := range report.Chunks {
			if len(c.Questions) == 0 || len(c.Tasks) == 0 || c.Theory[0].Title != "Enhanced" {
				t.Errorf("chunk %s not fully staged: %+v", c.ID, c)
			}
		}
	})

	t.Run("failing stage does not stop the walk", func(t *testing.T) {
		f := newFixture(t, 200)
		if _, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 200, ChunkSizeLines: 100}); err != nil {
			t.Fatal(err)
		}
		f.backend.respond = func(stage, _ string) (string, error) {
			if stage == StageQuestionGeneration {
				return "", backend.ErrTimeout
			}
			return defaultReply(stage), nil
		}
		report, err := f.p.RunAllStages(ctx, StagesRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if report.StageRuns != 6 || report.Failed != 2 {
			t.Errorf("runs/failed = %d/%d", report.StageRuns, report.Failed)
		}
		for _, c := range report.Chunks {
			if len(c.Tasks) == 0 {
				t.Errorf("tasks missing on %s", c.ID)
			}
		}
	})

	t.Run("selects chunks inside range", func(t *testing.T) {
		f := newFixture(t, 300)
		if _, err := f.p.ProcessRange(ctx, RangeRequest{StartLine: 0, EndLine: 300, ChunkSizeLines: 100}); err != nil {
			t.Fatal(err)
		}
		report, err := f.p.RunAllStages(ctx, StagesRequest{StartLine: 100, EndLine: 300})
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Chunks) != 2 || report.Chunks[0].StartLine != 100 {
			t.Errorf("chunks = %v", spansOf(report))
		}
	})

	t.Run("invalid range", func(t *testing.T) {
		f := newFixture(t, 10)
		if _, err := f.p.RunAllStages(ctx, StagesRequest{StartLine: 5, EndLine: 5}); !errors.Is(err, segment.ErrInvalidRange) {
			t.Errorf("err = %v", err)
		}
	})
}

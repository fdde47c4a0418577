package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunner(t *testing.T) {
	t.Run("single active run", func(t *testing.T) {
		f := newFixture(t, 200)
		release := make(chan struct{})
		f.backend.respond = func(stage, _ string) (string, error) {
			<-release
			return defaultReply(stage), nil
		}
		r := NewRunner(f.p, nil)

		st, err := r.StartRange(RangeRequest{StartLine: 0, EndLine: 200, ChunkSizeLines: 100})
		if err != nil {
			t.Fatalf("StartRange() error = %v", err)
		}
		if !st.Running || st.ID == "" || st.Kind != RunRange {
			t.Errorf("status = %+v", st)
		}
		if _, err := r.StartAllStages(StagesRequest{}); !errors.Is(err, ErrRunInProgress) {
			t.Errorf("second start err = %v, want ErrRunInProgress", err)
		}

		close(release)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		st = r.Status()
		if st.Running || st.FinishedAt == nil || st.Error != "" {
			t.Errorf("status = %+v", st)
		}
		if st.Succeeded != 2 || st.Report == nil || len(st.Report.Chunks) != 2 {
			t.Errorf("succeeded = %d report = %+v", st.Succeeded, st.Report)
		}

		if _, err := r.StartResume(RangeRequest{ChunkSizeLines: 100}); err != nil {
			t.Errorf("start after finish: %v", err)
		}
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		f := newFixture(t, 300)
		r := NewRunner(f.p, nil)
		if r.Cancel() {
			t.Error("Cancel() with no run = true")
		}
		if _, err := r.StartRange(RangeRequest{StartLine: 0, EndLine: 300, ChunkSizeLines: 100, Delay: time.Hour}); err != nil {
			t.Fatal(err)
		}
		if !r.Cancel() {
			t.Error("Cancel() = false during run")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		if st := r.Status(); st.Running || st.Error != "cancelled" {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("rejects invalid range before starting", func(t *testing.T) {
		f := newFixture(t, 100)
		r := NewRunner(f.p, nil)
		if _, err := r.StartRange(RangeRequest{StartLine: 50, EndLine: 500}); err == nil {
			t.Fatal("expected error for end beyond document")
		}
		if st := r.Status(); st.Running || st.ID != "" {
			t.Errorf("status = %+v, want no run", st)
		}
	})
}

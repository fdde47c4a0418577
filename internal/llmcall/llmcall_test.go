package llmcall

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/primer/internal/providers"
)

type memorySink struct {
	mu    sync.Mutex
	calls []*Call
	err   error
}

func (s *memorySink) RecordCall(_ context.Context, call *Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, call)
	return nil
}

func TestFromChatResult(t *testing.T) {
	t.Run("nil result", func(t *testing.T) {
		if FromChatResult(nil, RecordOptions{}) != nil {
			t.Error("expected nil call")
		}
	})

	t.Run("copies metrics and options", func(t *testing.T) {
		temp := 0.3
		call := FromChatResult(&providers.ChatResult{
			Content:          "{}",
			PromptTokens:     10,
			CompletionTokens: 5,
			ExecutionTime:    1500 * time.Millisecond,
			Provider:         "openrouter",
			ModelUsed:        "m",
			Attempts:         2,
			Success:          true,
		}, RecordOptions{ChunkID: "c1", Stage: "theory-extraction", PromptKey: "k", Temperature: &temp})

		if call.ID == "" {
			t.Error("expected generated ID")
		}
		if call.LatencyMs != 1500 || call.InputTokens != 10 || call.OutputTokens != 5 || call.Attempts != 2 {
			t.Errorf("metrics = %+v", call)
		}
		if call.ChunkID != "c1" || call.Stage != "theory-extraction" || *call.Temperature != 0.3 {
			t.Errorf("options = %+v", call)
		}
		if call.Error != "" {
			t.Errorf("Error = %q on success", call.Error)
		}
	})

	t.Run("failure carries error message", func(t *testing.T) {
		call := FromChatResult(&providers.ChatResult{ErrorMessage: "boom"}, RecordOptions{})
		if call.Success || call.Error != "boom" {
			t.Errorf("call = %+v", call)
		}
	})
}

func TestOptionsContext(t *testing.T) {
	if _, ok := OptionsFrom(context.Background()); ok {
		t.Error("expected no options on empty context")
	}
	ctx := WithOptions(context.Background(), RecordOptions{Stage: "task-generation"})
	opts, ok := OptionsFrom(ctx)
	if !ok || opts.Stage != "task-generation" {
		t.Errorf("OptionsFrom() = %+v, %v", opts, ok)
	}
}

func TestQueryFilter(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := []Call{
		{ID: "a", ChunkID: "c1", Stage: "s1", Timestamp: base, Success: true},
		{ID: "b", ChunkID: "c1", Stage: "s2", Timestamp: base.Add(time.Minute), Success: false},
		{ID: "c", ChunkID: "c2", Stage: "s1", Timestamp: base.Add(2 * time.Minute), Success: true},
	}

	t.Run("newest first", func(t *testing.T) {
		got := QueryFilter{}.Apply(calls)
		if len(got) != 3 || got[0].ID != "c" || got[2].ID != "a" {
			t.Errorf("Apply() = %v", got)
		}
	})

	t.Run("filters", func(t *testing.T) {
		ok := true
		got := QueryFilter{ChunkID: "c1", Success: &ok}.Apply(calls)
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("Apply() = %v", got)
		}
		after := base
		got = QueryFilter{After: &after}.Apply(calls)
		if len(got) != 2 {
			t.Errorf("After filter returned %d calls, want 2", len(got))
		}
	})

	t.Run("offset and limit", func(t *testing.T) {
		got := QueryFilter{Offset: 1, Limit: 1}.Apply(calls)
		if len(got) != 1 || got[0].ID != "b" {
			t.Errorf("Apply() = %v", got)
		}
		if got := (QueryFilter{Offset: 5}).Apply(calls); len(got) != 0 {
			t.Errorf("expected empty page, got %d", len(got))
		}
	})
}

func TestRecorder(t *testing.T) {
	t.Run("writes queued calls on stop", func(t *testing.T) {
		sink := &memorySink{}
		r := NewRecorder(sink, nil)
		for i := 0; i < 5; i++ {
			r.Record(&providers.ChatResult{Success: true}, RecordOptions{PromptKey: "k"})
		}
		r.Stop()

		if len(sink.calls) != 5 {
			t.Errorf("sink received %d calls, want 5", len(sink.calls))
		}
	})

	t.Run("sink errors are swallowed", func(t *testing.T) {
		sink := &memorySink{err: errors.New("disk full")}
		r := NewRecorder(sink, nil)
		r.Record(&providers.ChatResult{}, RecordOptions{})
		r.Stop()
	})

	t.Run("nil sink and stopped recorder are no-ops", func(t *testing.T) {
		r := NewRecorder(nil, nil)
		r.Record(&providers.ChatResult{}, RecordOptions{})
		r.Stop()

		sink := &memorySink{}
		r = NewRecorder(sink, nil)
		r.Stop()
		r.Record(&providers.ChatResult{}, RecordOptions{})
		r.Stop()
		if len(sink.calls) != 0 {
			t.Errorf("stopped recorder wrote %d calls", len(sink.calls))
		}

		var nilRec *Recorder
		nilRec.RecordCall(&Call{})
		nilRec.Stop()
	})
}

func TestSummarize(t *testing.T) {
	calls := []Call{
		{Stage: "theory-extraction", Success: true, InputTokens: 10, OutputTokens: 5, LatencyMs: 100, CostUSD: 0.01},
		{Stage: "theory-extraction", Success: false, LatencyMs: 300},
		{Stage: "question-generation", Success: true, InputTokens: 4, OutputTokens: 2, LatencyMs: 50},
	}

	s := Summarize(calls)
	if s.Total.Count != 3 || s.Total.SuccessCount != 2 || s.Total.ErrorCount != 1 {
		t.Errorf("total = %+v", s.Total)
	}
	if s.Total.InputTokens != 14 || s.Total.OutputTokens != 7 {
		t.Errorf("tokens = %d/%d", s.Total.InputTokens, s.Total.OutputTokens)
	}
	if s.Total.AvgLatencyMs != 150 {
		t.Errorf("AvgLatencyMs = %v, want 150", s.Total.AvgLatencyMs)
	}
	if len(s.ByStage) != 2 || s.ByStage[0].Stage != "question-generation" {
		t.Fatalf("ByStage = %+v", s.ByStage)
	}
	extraction := s.ByStage[1]
	if extraction.Count != 2 || extraction.ErrorCount != 1 || extraction.AvgLatencyMs != 200 || extraction.CostUSD != 0.01 {
		t.Errorf("extraction = %+v", extraction)
	}

	if empty := Summarize(nil); empty.Total.Count != 0 || len(empty.ByStage) != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}

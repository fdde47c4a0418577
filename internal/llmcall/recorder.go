package llmcall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/primer/internal/providers"
)

// Sink persists recorded calls.
type Sink interface {
	RecordCall(ctx context.Context, call *Call) error
}

// Recorder handles fire-and-forget LLM call recording. Calls are queued and
// written to the sink by a single background worker.
type Recorder struct {
	sink   Sink
	logger *slog.Logger

	queue    chan *Call
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewRecorder creates a recorder and starts its worker. A nil sink disables
// recording.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:   sink,
		logger: logger,
		queue:  make(chan *Call, 256),
	}
	if sink != nil {
		r.wg.Add(1)
		go r.run()
	}
	return r
}

// Record captures an LLM call asynchronously.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	r.RecordCall(FromChatResult(result, opts))
}

// RecordCall queues an already-constructed Call. It never blocks; when the
// queue is full the call is dropped with a warning.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || r.sink == nil || call == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("recorder stopped, dropping LLM call", "prompt_key", call.PromptKey)
		return
	}
	select {
	case r.queue <- call:
	default:
		r.logger.Warn("recorder queue full, dropping LLM call", "prompt_key", call.PromptKey)
	}
}

// Stop drains the queue and waits for pending writes.
func (r *Recorder) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for call := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.RecordCall(ctx, call); err != nil {
			r.logger.Warn("failed to record LLM call",
				"error", err,
				"chunk_id", call.ChunkID,
				"prompt_key", call.PromptKey)
		}
		cancel()
	}
}

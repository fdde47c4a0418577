package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jackzampolin/primer/internal/backend"
	"github.com/jackzampolin/primer/internal/llmcall"
	"github.com/jackzampolin/primer/internal/segment"
	"github.com/jackzampolin/primer/internal/state"
	"github.com/jackzampolin/primer/internal/store"
)

type fakeCall struct {
	Prompt string
	Labels llmcall.RecordOptions
}

// fakeBackend answers prompts through respond and records every call.
type fakeBackend struct {
	mu          sync.Mutex
	initialized bool
	initErr     error
	respond     func(stage, prompt string) (string, error)
	calls       []fakeCall
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

func (b *fakeBackend) Initialize(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initErr != nil {
		return b.initErr
	}
	b.initialized = true
	return nil
}

func (b *fakeBackend) ProcessContent(ctx context.Context, prompt string, _ backend.Options) (string, error) {
	labels, _ := llmcall.OptionsFrom(ctx)
	b.mu.Lock()
	b.calls = append(b.calls, fakeCall{Prompt: prompt, Labels: labels})
	respond := b.respond
	b.mu.Unlock()
	if respond == nil {
		return defaultReply(labels.Stage), nil
	}
	return respond(labels.Stage, prompt)
}

func (b *fakeBackend) Calls() []fakeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]fakeCall(nil), b.calls...)
}

func defaultReply(stage string) string {
	switch stage {
	case StageTheoryExtraction:
		return extractionReply(-1, "theory-alpha", "theory-beta")
	case StageTheoryEnhancement:
		return `{"id":"ignored","title":"Enhanced","content":"More detail","examples":[{"title":"Ex","code":"x := 1","language":"go","explanation":"assign"}]}`
	case StageQuestionGeneration:
		return `{"questions":[{"id":"q1","question":"What is a goroutine?","answer":"A lightweight thread","level":"easy","type":"open"}]}`
	case StageTaskGeneration:
		return `[{"id":"task1","title":"Spawn","description":"Start a goroutine"}]`
	case StageChunkRewrite:
		return `{"theory":[],"questions":[{"id":"q9","question":"Rewritten?","answer":"Yes"}],"tasks":[]}`
	}
	return ""
}

func extractionReply(suggestedEnd int, ids ...string) string {
	blocks := make([]string, 0, len(ids))
	for _, id := range ids {
		blocks = append(blocks, fmt.Sprintf(`{"id":%q,"title":"Title %s","content":"Body of %s"}`, id, id, id))
	}
	return fmt.Sprintf(`{"logicalBlockInfo":{"suggestedEndLine":%d},"theory":[%s],"questions":[],"tasks":[]}`,
		suggestedEnd, strings.Join(blocks, ","))
}

func newDoc(n int) *segment.Document {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return segment.NewDocument(lines)
}

// lineMarker matches the numbered rendering of line n in an extraction prompt.
func lineMarker(n int) string {
	return fmt.Sprintf("| line %d\n", n)
}

type fixture struct {
	backend *fakeBackend
	store   *store.MemoryStore
	o       *Orchestrator
	p       *Processor
}

func newFixture(t *testing.T, lines int) *fixture {
	t.Helper()
	fb := &fakeBackend{}
	ms := store.NewMemoryStore()
	o, err := NewOrchestrator(Config{Backend: fb, Store: ms, Document: newDoc(lines)})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return &fixture{
		backend: fb,
		store:   ms,
		o:       o,
		p:       NewProcessor(o, state.NewManager(ms, nil), nil),
	}
}

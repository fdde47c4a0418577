package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/jackzampolin/primer/internal/types"
)

//go:embed templates/theory_extraction.tmpl
var theoryExtractionTmpl string

//go:embed templates/theory_enhancement.tmpl
var theoryEnhancementTmpl string

//go:embed templates/question_generation.tmpl
var questionGenerationTmpl string

//go:embed templates/task_generation.tmpl
var taskGenerationTmpl string

//go:embed templates/chunk_rewrite.tmpl
var chunkRewriteTmpl string

// Prompt keys
const (
	TheoryExtractionKey   = "stages.theory_extraction.user"
	TheoryEnhancementKey  = "stages.theory_enhancement.user"
	QuestionGenerationKey = "stages.question_generation.user"
	TaskGenerationKey     = "stages.task_generation.user"
	ChunkRewriteKey       = "stages.chunk_rewrite.user"
)

// ErrUnknownPrompt is returned when overriding a key the builder does not know.
var ErrUnknownPrompt = errors.New("unknown prompt key")

var embedded = []EmbeddedPrompt{
	{Key: TheoryExtractionKey, Text: theoryExtractionTmpl, Description: "Extract theory blocks from a numbered span of source lines"},
	{Key: TheoryEnhancementKey, Text: theoryEnhancementTmpl, Description: "Add worked examples to one theory block"},
	{Key: QuestionGenerationKey, Text: questionGenerationTmpl, Description: "Generate practice questions from a chunk's theory"},
	{Key: TaskGenerationKey, Text: taskGenerationTmpl, Description: "Generate coding tasks from a chunk's theory"},
	{Key: ChunkRewriteKey, Text: chunkRewriteTmpl, Description: "Rewrite a whole chunk following operator instructions"},
}

var defaultTemplates = func() map[string]*template.Template {
	m := make(map[string]*template.Template, len(embedded))
	for _, p := range embedded {
		m[p.Key] = template.Must(template.New(p.Key).Parse(p.Text))
	}
	return m
}()

type activePrompt struct {
	text     string
	tmpl     *template.Template
	override bool
}

// Builder renders stage prompts. The zero value is not usable; use NewBuilder.
type Builder struct {
	mu     sync.RWMutex
	active map[string]activePrompt
}

// NewBuilder returns a builder using the embedded templates.
func NewBuilder() *Builder {
	b := &Builder{active: make(map[string]activePrompt, len(embedded))}
	for _, p := range embedded {
		b.active[p.Key] = activePrompt{text: p.Text, tmpl: defaultTemplates[p.Key]}
	}
	return b
}

var defaultBuilder = NewBuilder()

// Override replaces the template for key. The text must parse as a Go template.
func (b *Builder) Override(key, text string) error {
	if _, ok := defaultTemplates[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrompt, key)
	}
	tmpl, err := template.New(key).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse override for %s: %w", key, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[key] = activePrompt{text: text, tmpl: tmpl, override: true}
	return nil
}

// LoadOverrides reads <dir>/<key>.tmpl files and applies them. A missing
// directory is not an error. Returns the number of overrides applied.
func (b *Builder) LoadOverrides(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read prompt overrides: %w", err)
	}

	applied := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".tmpl") {
			continue
		}
		key := strings.TrimSuffix(name, ".tmpl")
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return applied, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := b.Override(key, string(data)); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// List returns the active prompts sorted by key.
func (b *Builder) List() []EmbeddedPrompt {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]EmbeddedPrompt, 0, len(embedded))
	for _, p := range embedded {
		a := b.active[p.Key]
		out = append(out, EmbeddedPrompt{
			Key:         p.Key,
			Text:        a.text,
			Description: p.Description,
			Variables:   ExtractVariables(a.text),
			Hash:        HashText(a.text),
			IsOverride:  a.override,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get returns the active prompt for key.
func (b *Builder) Get(key string) (EmbeddedPrompt, bool) {
	for _, p := range b.List() {
		if p.Key == key {
			return p, true
		}
	}
	return EmbeddedPrompt{}, false
}

// Hash returns the hash of the active template text for key.
func (b *Builder) Hash(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return HashText(b.active[key].text)
}

// render executes the active template for key. If an override fails to
// execute, the embedded default is used instead.
func (b *Builder) render(key string, data any) string {
	b.mu.RLock()
	a := b.active[key]
	b.mu.RUnlock()

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err == nil {
		return buf.String()
	}
	buf.Reset()
	if err := defaultTemplates[key].Execute(&buf, data); err != nil {
		return a.text
	}
	return buf.String()
}

// ExtractionInput is the span handed to the theory-extraction prompt.
// Text should already carry absolute line-number prefixes.
// ChunkSizeLines caps the source lines one block may span; 0 uses the span
// length.
type ExtractionInput struct {
	StartLine      int
	EndLine        int
	ChunkSizeLines int
	Text           string
}

type extractionData struct {
	StartLine      int
	EndLine        int
	DisplayEndLine int
	ChunkSizeLines int
	Text           string
	Example        string
}

// TheoryExtraction renders the theory-extraction prompt for a span.
func (b *Builder) TheoryExtraction(in ExtractionInput) string {
	text := in.Text
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	size := in.ChunkSizeLines
	if size <= 0 {
		size = max(in.EndLine-in.StartLine, 1)
	}
	return b.render(TheoryExtractionKey, extractionData{
		StartLine:      in.StartLine,
		EndLine:        in.EndLine,
		DisplayEndLine: in.EndLine - 1,
		ChunkSizeLines: size,
		Text:           text,
		Example:        extractionExample,
	})
}

type enhancementData struct {
	ID      string
	Block   string
	Example string
}

// TheoryEnhancement renders the enhancement prompt for one theory block.
func (b *Builder) TheoryEnhancement(block types.TheoryBlock) string {
	return b.render(TheoryEnhancementKey, enhancementData{
		ID:      block.ID,
		Block:   indentJSON(block),
		Example: enhancementExample,
	})
}

type generationData struct {
	Theory  string
	Min     int
	Max     int
	Example string
}

// QuestionGeneration renders the question-generation prompt for a chunk's theory.
func (b *Builder) QuestionGeneration(theory []types.TheoryBlock) string {
	lo := min(max(2*len(theory), 3), 12)
	return b.render(QuestionGenerationKey, generationData{
		Theory:  indentJSON(summarize(theory)),
		Min:     lo,
		Max:     lo + 3,
		Example: questionExample,
	})
}

// TaskGeneration renders the task-generation prompt for a chunk's theory.
func (b *Builder) TaskGeneration(theory []types.TheoryBlock) string {
	lo := min(max(len(theory), 1), 5)
	return b.render(TaskGenerationKey, generationData{
		Theory:  indentJSON(summarize(theory)),
		Min:     lo,
		Max:     lo + 2,
		Example: taskExample,
	})
}

type rewriteData struct {
	types.RewriteOptions
	Chunk   string
	Example string
}

// ChunkRewrite renders the rewrite prompt for a whole chunk.
func (b *Builder) ChunkRewrite(chunk *types.ProcessedChunk, opts types.RewriteOptions) string {
	body := struct {
		ID        string              `json:"id"`
		Theory    []types.TheoryBlock `json:"theory"`
		Questions []types.Question    `json:"questions"`
		Tasks     []types.CodeTask    `json:"tasks"`
	}{chunk.ID, chunk.Theory, chunk.Questions, chunk.Tasks}

	return b.render(ChunkRewriteKey, rewriteData{
		RewriteOptions: opts,
		Chunk:          indentJSON(body),
		Example:        rewriteExample,
	})
}

// theorySummary is the part of a theory block the generators need.
type theorySummary struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Content    string              `json:"content"`
	Technology types.Technology    `json:"technology"`
	Examples   []types.CodeExample `json:"examples,omitempty"`
}

func summarize(theory []types.TheoryBlock) []theorySummary {
	out := make([]theorySummary, 0, len(theory))
	for _, t := range theory {
		out = append(out, theorySummary{
			ID:         t.ID,
			Title:      t.Title,
			Content:    t.Content,
			Technology: t.Technology,
			Examples:   t.Examples,
		})
	}
	return out
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// TheoryExtraction renders with the default builder.
func TheoryExtraction(in ExtractionInput) string { return defaultBuilder.TheoryExtraction(in) }

// TheoryEnhancement renders with the default builder.
func TheoryEnhancement(block types.TheoryBlock) string { return defaultBuilder.TheoryEnhancement(block) }

// QuestionGeneration renders with the default builder.
func QuestionGeneration(theory []types.TheoryBlock) string {
	return defaultBuilder.QuestionGeneration(theory)
}

// TaskGeneration renders with the default builder.
func TaskGeneration(theory []types.TheoryBlock) string { return defaultBuilder.TaskGeneration(theory) }

// ChunkRewrite renders with the default builder.
func ChunkRewrite(chunk *types.ProcessedChunk, opts types.RewriteOptions) string {
	return defaultBuilder.ChunkRewrite(chunk, opts)
}

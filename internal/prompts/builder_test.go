package prompts

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/primer/internal/types"
)

func TestTheoryExtraction(t *testing.T) {
	prompt := TheoryExtraction(ExtractionInput{
		StartLine: 100,
		EndLine:   200,
		Text:      "100| # Closures\n101| A closure is ...",
	})

	for _, want := range []string{
		"lines 100 to 199",
		"100| # Closures",
		"less than 200",
		`"logicalBlockInfo"`,
		`"suggestedEndLine": -1`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestTheoryExtraction_CompletenessRules(t *testing.T) {
	prompt := TheoryExtraction(ExtractionInput{
		StartLine:      0,
		EndLine:        200,
		ChunkSizeLines: 50,
		Text:           "0| # Event loop\n1| ![diagram](img/a.png)",
	})
	for _, want := range []string{
		"Extract 100% of the content",
		"image references",
		"![diagram](img/a.png)",
		"more than 50 lines",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Without a configured size the span length is the cap.
	prompt = TheoryExtraction(ExtractionInput{StartLine: 100, EndLine: 180})
	if !strings.Contains(prompt, "more than 80 lines") {
		t.Error("block cap should default to the span length")
	}
}

func TestPrompts_AreDeterministic(t *testing.T) {
	block := sampleTheory
	chunk := &types.ProcessedChunk{ID: "chunk_0_10_x", Theory: []types.TheoryBlock{block}}
	opts := types.RewriteOptions{Focus: "async", KeepIDs: true}

	if TheoryEnhancement(block) != TheoryEnhancement(block) {
		t.Error("TheoryEnhancement is not deterministic")
	}
	if QuestionGeneration(chunk.Theory) != QuestionGeneration(chunk.Theory) {
		t.Error("QuestionGeneration is not deterministic")
	}
	if ChunkRewrite(chunk, opts) != ChunkRewrite(chunk, opts) {
		t.Error("ChunkRewrite is not deterministic")
	}
}

func TestTheoryEnhancement_PinsID(t *testing.T) {
	prompt := TheoryEnhancement(types.TheoryBlock{ID: "theory_abc", Title: "Hoisting"})
	if !strings.Contains(prompt, `Keep "id" unchanged: theory_abc`) {
		t.Error("prompt should pin the block id")
	}
	if !strings.Contains(prompt, "Hoisting") {
		t.Error("prompt should contain the block")
	}
}

func TestGenerationBounds(t *testing.T) {
	one := []types.TheoryBlock{sampleTheory}
	if p := QuestionGeneration(one); !strings.Contains(p, "between 3 and 6") {
		t.Errorf("question bounds for one block not found")
	}
	if p := TaskGeneration(one); !strings.Contains(p, "between 1 and 3") {
		t.Errorf("task bounds for one block not found")
	}
}

func TestChunkRewrite_Options(t *testing.T) {
	chunk := &types.ProcessedChunk{ID: "chunk_0_10_x"}

	p := ChunkRewrite(chunk, types.RewriteOptions{Instructions: "Make it shorter", Focus: "closures", KeepIDs: true})
	for _, want := range []string{"Make it shorter", "Focus on: closures", "Keep every existing"} {
		if !strings.Contains(p, want) {
			t.Errorf("rewrite prompt missing %q", want)
		}
	}

	p = ChunkRewrite(chunk, types.RewriteOptions{})
	if strings.Contains(p, "Focus on:") {
		t.Error("empty focus should be omitted")
	}
	if !strings.Contains(p, "Improve clarity") {
		t.Error("default instructions missing")
	}
}

func TestChunkRewrite_AdaptationOptions(t *testing.T) {
	var opts types.RewriteOptions
	raw := `{"focus":"closures","difficulty":"hard","questionTypes":["mcq","code"],"enhanceExamples":true,"simplifyContent":true}`
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	p := ChunkRewrite(&types.ProcessedChunk{ID: "chunk_0_10_x"}, opts)
	for _, want := range []string{
		"Focus on: closures",
		"Target difficulty: hard",
		`use only "mcq", "code" for "type"`,
		"Enhance examples:",
		"Simplify content:",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("rewrite prompt missing %q", want)
		}
	}

	p = ChunkRewrite(&types.ProcessedChunk{ID: "chunk_0_10_x"}, types.RewriteOptions{})
	for _, absent := range []string{"Target difficulty:", "Question types:", "Enhance examples:", "Simplify content:"} {
		if strings.Contains(p, absent) {
			t.Errorf("unset option rendered %q", absent)
		}
	}
}

func TestExamplesAreValidJSON(t *testing.T) {
	for name, ex := range map[string]string{
		"extraction":  extractionExample,
		"enhancement": enhancementExample,
		"question":    questionExample,
		"task":        taskExample,
		"rewrite":     rewriteExample,
	} {
		if !json.Valid([]byte(ex)) {
			t.Errorf("%s example is not valid JSON", name)
		}
	}
}

func TestBuilder_Override(t *testing.T) {
	b := NewBuilder()
	before := b.Hash(TheoryExtractionKey)

	if err := b.Override(TheoryExtractionKey, "custom {{.StartLine}}-{{.EndLine}}"); err != nil {
		t.Fatalf("Override() error = %v", err)
	}
	if got := b.TheoryExtraction(ExtractionInput{StartLine: 1, EndLine: 5}); got != "custom 1-5" {
		t.Errorf("rendered = %q", got)
	}
	if b.Hash(TheoryExtractionKey) == before {
		t.Error("hash should change with override")
	}
	p, ok := b.Get(TheoryExtractionKey)
	if !ok || !p.IsOverride {
		t.Error("Get() should report override")
	}

	if err := b.Override("stages.nope.user", "x"); !errors.Is(err, ErrUnknownPrompt) {
		t.Errorf("expected ErrUnknownPrompt, got %v", err)
	}
	if err := b.Override(TaskGenerationKey, "{{.Broken"); err == nil {
		t.Error("expected parse error")
	}

	// Default builder is unaffected.
	if strings.HasPrefix(TheoryExtraction(ExtractionInput{StartLine: 1, EndLine: 5}), "custom") {
		t.Error("override leaked into default builder")
	}
}

func TestBuilder_OverrideFallsBackOnExecError(t *testing.T) {
	b := NewBuilder()
	if err := b.Override(TaskGenerationKey, "{{.Missing.Field}}"); err != nil {
		t.Fatalf("Override() error = %v", err)
	}
	p := b.TaskGeneration([]types.TheoryBlock{sampleTheory})
	if !strings.Contains(p, "coding tasks") {
		t.Errorf("expected default template after exec error, got %q", p)
	}
}

func TestBuilder_LoadOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, QuestionGenerationKey+".tmpl"), []byte("Q {{.Min}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder()
	n, err := b.LoadOverrides(dir)
	if err != nil {
		t.Fatalf("LoadOverrides() error = %v", err)
	}
	if n != 1 {
		t.Errorf("applied = %d, want 1", n)
	}
	if got := b.QuestionGeneration(nil); got != "Q 3" {
		t.Errorf("rendered = %q", got)
	}

	if n, err := b.LoadOverrides(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("missing dir: n=%d err=%v", n, err)
	}
}

func TestList(t *testing.T) {
	list := NewBuilder().List()
	if len(list) != 5 {
		t.Fatalf("List() = %d prompts, want 5", len(list))
	}
	for _, p := range list {
		if p.Hash != HashText(p.Text) {
			t.Errorf("%s: hash mismatch", p.Key)
		}
		if len(p.Variables) == 0 {
			t.Errorf("%s: no variables extracted", p.Key)
		}
	}
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{.B}} {{ .A }} {{if .C}}x{{end}} {{- .B}}")
	want := []string{"A", "B", "C"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ExtractVariables() = %v, want %v", got, want)
	}
}

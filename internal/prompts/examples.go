package prompts

import "github.com/jackzampolin/primer/internal/types"

// The literal JSON shapes shown to the backend. Built from the real types so
// the field names cannot drift from what the sanitizers read.

var sampleTheory = types.TheoryBlock{
	ID:      "theory_closures",
	Title:   "Closures",
	Content: "A closure is a function that keeps access to variables from the scope where it was created, even after that scope has returned.",
	Examples: []types.CodeExample{{
		Title:       "Counter factory",
		Code:        "function makeCounter() {\n  let count = 0;\n  return () => ++count;\n}",
		Language:    "javascript",
		Explanation: "Each call to makeCounter creates a new count variable that only the returned function can reach.",
	}},
	Tags:               []string{"functions", "scope"},
	Technology:         types.TechJavaScript,
	Prerequisites:      []string{"Functions", "Lexical scope"},
	Complexity:         6,
	InterviewRelevance: 9,
	LearningPath:       types.LearningPathIntermediate,
	RequiredFor:        []string{"Module pattern"},
	RelatedQuestions:   []string{},
	RelatedTasks:       []string{},
}

var sampleQuestion = types.Question{
	ID:                 "q_closure_counter",
	Topic:              "Closures",
	Level:              types.DifficultyMedium,
	Type:               types.QuestionTypeMCQ,
	Question:           "What does calling makeCounter() twice and invoking each result once return?",
	Answer:             "1 and 1",
	Example:            "const a = makeCounter(); const b = makeCounter(); a(); b();",
	Options:            []string{"1 and 1", "1 and 2", "0 and 0", "undefined"},
	AnalysisPoints:     []string{"Each factory call creates a separate scope"},
	KeyConcepts:        []string{"closure", "lexical environment"},
	EvaluationCriteria: []string{"Explains why the counters are independent"},
	Tags:               []string{"closures"},
	Prerequisites:      []string{"Functions"},
	Complexity:         5,
	InterviewFrequency: 8,
	LearningPath:       types.LearningPathIntermediate,
}

var sampleTask = types.CodeTask{
	ID:                 "task_once",
	Title:              "Implement once()",
	Description:        "Write once(fn) that returns a function which calls fn only the first time and returns the first result on every later call.",
	Difficulty:         types.DifficultyMedium,
	StartingCode:       "function once(fn) {\n  // your code here\n}",
	SolutionCode:       "function once(fn) {\n  let called = false, result;\n  return (...args) => {\n    if (!called) { called = true; result = fn(...args); }\n    return result;\n  };\n}",
	TestCases:          []string{"fn is invoked exactly once after three calls", "every call returns the first result"},
	Hints:              []string{"Keep state in variables captured by the returned function."},
	Tags:               []string{"closures", "higher-order functions"},
	TimeEstimate:       20,
	Prerequisites:      []string{"Closures"},
	Complexity:         5,
	InterviewRelevance: 8,
	LearningPath:       types.LearningPathIntermediate,
	RelatedConcepts:    []string{"memoization"},
}

var (
	extractionExample = indentJSON(struct {
		LogicalBlockInfo types.LogicalBlockInfo `json:"logicalBlockInfo"`
		Theory           []types.TheoryBlock    `json:"theory"`
		Questions        []types.Question       `json:"questions"`
		Tasks            []types.CodeTask       `json:"tasks"`
	}{
		LogicalBlockInfo: types.LogicalBlockInfo{SuggestedEndLine: types.NoSuggestedEnd},
		Theory:           []types.TheoryBlock{sampleTheory},
		Questions:        []types.Question{},
		Tasks:            []types.CodeTask{},
	})

	enhancementExample = indentJSON(sampleTheory)
	questionExample    = indentJSON([]types.Question{sampleQuestion})
	taskExample        = indentJSON([]types.CodeTask{sampleTask})

	rewriteExample = indentJSON(struct {
		ID        string              `json:"id"`
		Theory    []types.TheoryBlock `json:"theory"`
		Questions []types.Question    `json:"questions"`
		Tasks     []types.CodeTask    `json:"tasks"`
	}{"chunk_0_100_01hzy", []types.TheoryBlock{sampleTheory}, []types.Question{sampleQuestion}, []types.CodeTask{sampleTask}})
)

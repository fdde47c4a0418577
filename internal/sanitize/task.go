package sanitize

import (
	"github.com/tidwall/gjson"

	"github.com/jackzampolin/primer/internal/types"
)

const (
	defaultTaskTitle = "Untitled Task"
	defaultTestCase  = "The solution satisfies every requirement in the task description."
	defaultHint      = "Break the problem into smaller steps and solve them one at a time."
	defaultTaskTag   = "practice"
)

// Task normalizes a raw code task. It never fails. Every task leaves with at
// least one test case, one hint and one tag, and a positive time estimate.
func Task(v gjson.Result) types.CodeTask {
	t := types.CodeTask{
		ID:                 id(v.Get("id"), "task"),
		Title:              str(v.Get("title"), defaultTaskTitle),
		Description:        text(v.Get("description"), ""),
		Difficulty:         types.ParseDifficulty(v.Get("difficulty").String()),
		StartingCode:       text(v.Get("startingCode"), ""),
		SolutionCode:       text(v.Get("solutionCode"), ""),
		TestCases:          strList(v.Get("testCases"), true),
		Hints:              strList(v.Get("hints"), false),
		Tags:               strList(v.Get("tags"), false),
		TimeEstimate:       minutes(v.Get("timeEstimate")),
		Prerequisites:      strList(v.Get("prerequisites"), false),
		Complexity:         rating(v.Get("complexity")),
		InterviewRelevance: rating(v.Get("interviewRelevance")),
		LearningPath:       types.ParseLearningPath(v.Get("learningPath").String()),
		RelatedConcepts:    strList(v.Get("relatedConcepts"), false),
	}
	if len(t.TestCases) == 0 {
		t.TestCases = []string{defaultTestCase}
	}
	if len(t.Hints) == 0 {
		t.Hints = []string{defaultHint}
	}
	if len(t.Tags) == 0 {
		t.Tags = []string{defaultTaskTag}
	}
	return t
}

// TaskJSON normalizes a raw task given as JSON text.
func TaskJSON(raw string) types.CodeTask {
	return Task(gjson.Parse(raw))
}

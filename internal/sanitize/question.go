package sanitize

import (
	"github.com/tidwall/gjson"

	"github.com/jackzampolin/primer/internal/types"
)

const defaultTopic = "General"

// Question normalizes a raw question. It never fails.
// Options are kept only for multiple-choice questions with at least two of them;
// a multiple-choice question without options is downgraded to open.
func Question(v gjson.Result) types.Question {
	q := types.Question{
		ID:                 id(v.Get("id"), "q"),
		Topic:              str(v.Get("topic"), defaultTopic),
		Level:              types.ParseDifficulty(first(v, "level", "difficulty").String()),
		Type:               types.ParseQuestionType(v.Get("type").String()),
		Question:           str(first(v, "question", "text", "prompt"), ""),
		Answer:             text(v.Get("answer"), ""),
		Example:            text(v.Get("example"), ""),
		Options:            []string{},
		AnalysisPoints:     strList(v.Get("analysisPoints"), false),
		KeyConcepts:        strList(v.Get("keyConcepts"), false),
		EvaluationCriteria: strList(v.Get("evaluationCriteria"), false),
		Tags:               strList(v.Get("tags"), false),
		Prerequisites:      strList(v.Get("prerequisites"), false),
		Complexity:         rating(v.Get("complexity")),
		InterviewFrequency: rating(v.Get("interviewFrequency")),
		LearningPath:       types.ParseLearningPath(v.Get("learningPath").String()),
	}
	if q.Type == types.QuestionTypeMCQ {
		if opts := strList(v.Get("options"), false); len(opts) >= 2 {
			q.Options = opts
		} else {
			q.Type = types.QuestionTypeOpen
		}
	}
	return q
}

// QuestionJSON normalizes a raw question given as JSON text.
func QuestionJSON(raw string) types.Question {
	return Question(gjson.Parse(raw))
}

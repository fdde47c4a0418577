package sanitize

import (
	"github.com/tidwall/gjson"

	"github.com/jackzampolin/primer/internal/types"
)

const (
	defaultTheoryTitle     = "Untitled Section"
	placeholderCode        = "// Example to be added"
	placeholderExplanation = "No worked example was provided for this section."
)

// Theory normalizes a raw theory block. It never fails.
func Theory(v gjson.Result) types.TheoryBlock {
	tech := types.ParseTechnology(v.Get("technology").String())
	block := types.TheoryBlock{
		ID:                 id(v.Get("id"), "theory"),
		Title:              str(v.Get("title"), defaultTheoryTitle),
		Content:            text(first(v, "content", "text", "body"), ""),
		Tags:               strList(v.Get("tags"), false),
		Technology:         tech,
		Prerequisites:      strList(v.Get("prerequisites"), false),
		Complexity:         rating(v.Get("complexity")),
		InterviewRelevance: rating(v.Get("interviewRelevance")),
		LearningPath:       types.ParseLearningPath(v.Get("learningPath").String()),
		RequiredFor:        strList(v.Get("requiredFor"), false),
		RelatedQuestions:   strList(v.Get("relatedQuestions"), false),
		RelatedTasks:       strList(v.Get("relatedTasks"), false),
	}
	block.Examples = examples(v.Get("examples"), languageFor(tech))
	return block
}

// TheoryJSON normalizes a raw theory block given as JSON text.
func TheoryJSON(raw string) types.TheoryBlock {
	return Theory(gjson.Parse(raw))
}

func examples(v gjson.Result, lang string) []types.CodeExample {
	out := []types.CodeExample{}
	for _, item := range listOf(v) {
		switch {
		case item.IsObject():
			ex := types.CodeExample{
				Title:       str(item.Get("title"), "Example"),
				Code:        text(first(item, "code", "snippet"), ""),
				Language:    str(item.Get("language"), lang),
				Explanation: str(first(item, "explanation", "description"), ""),
			}
			if ex.Code == "" && ex.Explanation == "" {
				continue
			}
			out = append(out, ex)
		case text(item, "") != "":
			out = append(out, types.CodeExample{Title: "Example", Code: item.Str, Language: lang})
		}
	}
	if len(out) == 0 {
		out = append(out, types.CodeExample{
			Title:       "Example",
			Code:        placeholderCode,
			Language:    lang,
			Explanation: placeholderExplanation,
		})
	}
	return out
}

func listOf(v gjson.Result) []gjson.Result {
	if v.IsArray() {
		return v.Array()
	}
	if v.Exists() && v.Type != gjson.Null {
		return []gjson.Result{v}
	}
	return nil
}

func languageFor(tech types.Technology) string {
	switch tech {
	case types.TechReact, types.TechNode:
		return string(types.TechJavaScript)
	case types.TechGeneral:
		return "text"
	default:
		return string(tech)
	}
}

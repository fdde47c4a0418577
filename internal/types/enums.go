// Package types provides the data model shared across primer packages.
// This package has no dependencies on other primer packages to avoid import cycles.
package types

import "strings"

// Difficulty grades questions and tasks.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty converts a string to a Difficulty.
// Returns DifficultyMedium if the string is not recognized.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "beginner":
		return DifficultyEasy
	case "medium", "intermediate", "moderate":
		return DifficultyMedium
	case "hard", "advanced", "difficult":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// LearningPath places an entity on the learner's track.
type LearningPath string

const (
	LearningPathBeginner     LearningPath = "beginner"
	LearningPathIntermediate LearningPath = "intermediate"
	LearningPathAdvanced     LearningPath = "advanced"
	LearningPathExpert       LearningPath = "expert"
)

// ParseLearningPath converts a string to a LearningPath.
// Returns LearningPathIntermediate if the string is not recognized.
func ParseLearningPath(s string) LearningPath {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginner", "basic", "foundation":
		return LearningPathBeginner
	case "intermediate":
		return LearningPathIntermediate
	case "advanced":
		return LearningPathAdvanced
	case "expert":
		return LearningPathExpert
	default:
		return LearningPathIntermediate
	}
}

// QuestionType is the answer format of a question.
type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "mcq"
	QuestionTypeCode      QuestionType = "code"
	QuestionTypeOpen      QuestionType = "open"
	QuestionTypeFlashcard QuestionType = "flashcard"
)

// ParseQuestionType converts a string to a QuestionType.
// Returns QuestionTypeOpen if the string is not recognized.
func ParseQuestionType(s string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq", "multiple-choice", "multiple_choice", "multiplechoice":
		return QuestionTypeMCQ
	case "code", "coding":
		return QuestionTypeCode
	case "open", "open-ended", "open_ended":
		return QuestionTypeOpen
	case "flashcard", "flash-card":
		return QuestionTypeFlashcard
	default:
		return QuestionTypeOpen
	}
}

// Technology tags the language or platform a theory block covers.
type Technology string

const (
	TechJavaScript Technology = "javascript"
	TechTypeScript Technology = "typescript"
	TechReact      Technology = "react"
	TechNode       Technology = "nodejs"
	TechPython     Technology = "python"
	TechGo         Technology = "go"
	TechJava       Technology = "java"
	TechSQL        Technology = "sql"
	TechGeneral    Technology = "general"
)

// ParseTechnology converts a string to a Technology.
// Returns TechGeneral if the string is not recognized.
func ParseTechnology(s string) Technology {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "javascript", "js", "ecmascript":
		return TechJavaScript
	case "typescript", "ts":
		return TechTypeScript
	case "react", "reactjs", "react.js":
		return TechReact
	case "nodejs", "node", "node.js":
		return TechNode
	case "python", "py":
		return TechPython
	case "go", "golang":
		return TechGo
	case "java":
		return TechJava
	case "sql":
		return TechSQL
	default:
		return TechGeneral
	}
}

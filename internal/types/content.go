package types

// Rating bounds shared by complexity, interviewRelevance and interviewFrequency.
const (
	MinRating     = 1
	MaxRating     = 10
	DefaultRating = 5
)

// DefaultTimeEstimate is the minutes assigned to a task with no usable estimate.
const DefaultTimeEstimate = 30

// CodeExample is a worked example attached to a theory block.
type CodeExample struct {
	Title       string `json:"title"`
	Code        string `json:"code"`
	Language    string `json:"language"`
	Explanation string `json:"explanation"`
}

// TheoryBlock is one explanatory section extracted from the source.
type TheoryBlock struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Content            string        `json:"content"`
	Examples           []CodeExample `json:"examples"`
	Tags               []string      `json:"tags"`
	Technology         Technology    `json:"technology"`
	Prerequisites      []string      `json:"prerequisites"`
	Complexity         int           `json:"complexity"`
	InterviewRelevance int           `json:"interviewRelevance"`
	LearningPath       LearningPath  `json:"learningPath"`
	RequiredFor        []string      `json:"requiredFor"`
	RelatedQuestions   []string      `json:"relatedQuestions"`
	RelatedTasks       []string      `json:"relatedTasks"`
}

// Question is a practice question derived from theory.
type Question struct {
	ID                 string       `json:"id"`
	Topic              string       `json:"topic"`
	Level              Difficulty   `json:"level"`
	Type               QuestionType `json:"type"`
	Question           string       `json:"question"`
	Answer             string       `json:"answer"`
	Example            string       `json:"example"`
	Options            []string     `json:"options"`
	AnalysisPoints     []string     `json:"analysisPoints"`
	KeyConcepts        []string     `json:"keyConcepts"`
	EvaluationCriteria []string     `json:"evaluationCriteria"`
	Tags               []string     `json:"tags"`
	Prerequisites      []string     `json:"prerequisites"`
	Complexity         int          `json:"complexity"`
	InterviewFrequency int          `json:"interviewFrequency"`
	LearningPath       LearningPath `json:"learningPath"`
}

// CodeTask is a hands-on coding exercise.
type CodeTask struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Difficulty         Difficulty   `json:"difficulty"`
	StartingCode       string       `json:"startingCode"`
	SolutionCode       string       `json:"solutionCode"`
	TestCases          []string     `json:"testCases"`
	Hints              []string     `json:"hints"`
	Tags               []string     `json:"tags"`
	TimeEstimate       int          `json:"timeEstimate"`
	Prerequisites      []string     `json:"prerequisites"`
	Complexity         int          `json:"complexity"`
	InterviewRelevance int          `json:"interviewRelevance"`
	LearningPath       LearningPath `json:"learningPath"`
	RelatedConcepts    []string     `json:"relatedConcepts"`
}

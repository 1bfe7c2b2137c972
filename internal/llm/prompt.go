package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"mcqquiz/internal/quiz"
)

// DefaultQuestionCount is the number of questions requested when the caller does not say.
const DefaultQuestionCount = 5

// QuizPrompt is the template sent to the model. It is filled by BuildPrompt.
const QuizPrompt = `You are a teacher who wants to make tests for your students consisting of MCQs.
You have to make {number} questions on {subject}. The difficulty of questions would be {difficulty}.
You have to respond in the following format: {json}. There should not be any extra words.
You must follow the format exactly. Just fill the parameters of the JSON data given.
Number the questions with consecutive keys starting at "1".
Make sure that the brackets are correctly closed. Nothing other than the JSON should be returned.
Remember this`

// exampleRecord is the one-question example embedded in the prompt.
var exampleRecord = map[string]any{
	"1": map[string]any{
		"question": "This will be the question",
		"options": map[string]string{
			"A": "This is the first option",
			"B": "This is the second option",
			"C": "This is the third option",
			"D": "This is the fourth option",
		},
		"correct": "Which option is correct. Just write the letter",
		"reason":  "Why this is the correct option",
	},
}

// Request describes the quiz to generate.
type Request struct {
	Subject    string
	Difficulty quiz.Difficulty
	Count      int
}

// BuildPrompt fills QuizPrompt for req.
func BuildPrompt(req Request) (string, error) {
	count := req.Count
	if count <= 0 {
		count = DefaultQuestionCount
	}
	example, err := json.Marshal(exampleRecord)
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt example: %w", err)
	}
	r := strings.NewReplacer(
		"{number}", fmt.Sprintf("%d", count),
		"{subject}", req.Subject,
		"{difficulty}", string(req.Difficulty),
		"{json}", string(example),
	)
	return r.Replace(QuizPrompt), nil
}

package quiz

import "fmt"

// Result is the outcome for one question.
type Result struct {
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected"`
	Correct    string `json:"correct"`
	IsCorrect  bool   `json:"is_correct"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

// Scorecard is the graded quiz.
type Scorecard struct {
	Score   int      `json:"score"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// Score grades answers (question ID -> selected option text). A question is correct when the
// selected text equals the text of the option named by the model as correct.
func Score(questions []Question, answers map[string]string) Scorecard {
	card := Scorecard{Total: len(questions), Results: make([]Result, 0, len(questions))}
	for _, q := range questions {
		selected := answers[q.ID]
		correct := q.CorrectText()
		r := Result{
			QuestionID: q.ID,
			Selected:   selected,
			Correct:    correct,
			IsCorrect:  selected != "" && selected == correct,
			Reason:     q.Reason,
		}
		if r.IsCorrect {
			card.Score++
			r.Message = fmt.Sprintf("Question %s: Correct! %s", q.ID, q.Reason)
		} else {
			r.Message = fmt.Sprintf("Question %s: Incorrect. The correct answer is %s. %s", q.ID, correct, q.Reason)
		}
		card.Results = append(card.Results, r)
	}
	return card
}

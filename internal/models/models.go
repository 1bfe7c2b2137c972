package models

import (
	"time"

	"github.com/google/uuid"

	"mcqquiz/internal/quiz"
)

// Quiz is a generated quiz as stored
type Quiz struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  string          `json:"-"`
	Subject    string          `json:"subject"`
	Difficulty quiz.Difficulty `json:"difficulty"`
	Questions  []quiz.Question `json:"questions,omitempty"`
	// RawResponse is the model output the questions were recovered from.
	RawResponse string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attempt is a submitted, scored quiz
type Attempt struct {
	ID         uuid.UUID         `json:"id"`
	QuizID     uuid.UUID         `json:"quiz_id"`
	SessionID  string            `json:"-"`
	Subject    string            `json:"subject,omitempty"`
	Score      int               `json:"score"`
	Total      int               `json:"total"`
	Answers    map[string]string `json:"answers"`
	FinishedAt time.Time         `json:"finished_at"`
}

// PublicQuestion is a question as shown while the quiz is running (no answer or reason)
type PublicQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []Option `json:"options"`
}

// Option is one answer choice
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// QuizResponse is returned while a quiz is being taken
type QuizResponse struct {
	ID         uuid.UUID         `json:"id"`
	Subject    string            `json:"subject"`
	Difficulty quiz.Difficulty   `json:"difficulty"`
	Questions  []PublicQuestion  `json:"questions"`
	Answers    map[string]string `json:"answers"`
}

// SubmitResponse is returned after grading
type SubmitResponse struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	quiz.Scorecard
}

// RecoverResponse is returned by the recovery debugging endpoint
type RecoverResponse struct {
	Records   any             `json:"records"`
	Keys      []string        `json:"keys"`
	Dropped   int             `json:"dropped"`
	Questions []quiz.Question `json:"questions"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewQuizResponse hides answers and reasons from q.
func NewQuizResponse(q *Quiz, answers map[string]string) QuizResponse {
	resp := QuizResponse{
		ID:         q.ID,
		Subject:    q.Subject,
		Difficulty: q.Difficulty,
		Questions:  make([]PublicQuestion, 0, len(q.Questions)),
		Answers:    answers,
	}
	if resp.Answers == nil {
		resp.Answers = map[string]string{}
	}
	for _, question := range q.Questions {
		pq := PublicQuestion{ID: question.ID, Question: question.Question}
		for _, letter := range question.OptionLetters() {
			pq.Options = append(pq.Options, Option{Letter: letter, Text: question.Options[letter]})
		}
		resp.Questions = append(resp.Questions, pq)
	}
	return resp
}

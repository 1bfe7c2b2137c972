package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when an action is not allowed in the current mode.
var ErrInvalidTransition = errors.New("quiz: invalid transition")

// Mode is the step of the quiz flow a session is in.
type Mode string

const (
	ModeLogin     Mode = "login"
	ModeMake      Mode = "make"
	ModeQuiz      Mode = "quiz"
	ModeSubmitted Mode = "submitted"
)

// Difficulty of the generated questions.
type Difficulty string

const (
	DifficultyEasy         Difficulty = "easy"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyHard         Difficulty = "hard"
)

// ParseDifficulty validates a difficulty name.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyIntermediate, DifficultyHard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q, expected easy, intermediate or hard", s)
	}
}

// Session is the per-user state of the quiz flow. Handlers load it, apply one transition
// and save it back.
type Session struct {
	ID          string            `json:"id"`
	Mode        Mode              `json:"mode"`
	AccessToken string            `json:"-"`
	Subject     string            `json:"subject,omitempty"`
	Difficulty  Difficulty        `json:"difficulty,omitempty"`
	QuizID      *uuid.UUID        `json:"quiz_id,omitempty"`
	Answers     map[string]string `json:"answers,omitempty"`
	Score       int               `json:"score"`
}

// NewSession starts a session on the login step.
func NewSession() *Session {
	return &Session{
		ID:   uuid.NewString(),
		Mode: ModeLogin,
	}
}

func (s *Session) require(action string, modes ...Mode) error {
	for _, m := range modes {
		if s.Mode == m {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s in mode %s", ErrInvalidTransition, action, s.Mode)
}

// Login stores the model access token and moves on to quiz creation.
// An empty token is allowed when the server has its own model credentials.
func (s *Session) Login(token string) error {
	if err := s.require("login", ModeLogin, ModeMake); err != nil {
		return err
	}
	s.AccessToken = strings.TrimSpace(token)
	s.Mode = ModeMake
	return nil
}

// Make records what to generate. The quiz itself is attached with Loaded.
func (s *Session) Make(subject string, difficulty Difficulty) error {
	if err := s.require("make a quiz", ModeMake); err != nil {
		return err
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return errors.New("subject must not be empty")
	}
	s.Subject = subject
	s.Difficulty = difficulty
	return nil
}

// Loaded attaches a generated quiz and enters quiz mode with a clean score sheet.
func (s *Session) Loaded(quizID uuid.UUID) error {
	if err := s.require("load a quiz", ModeMake); err != nil {
		return err
	}
	s.QuizID = &quizID
	s.Answers = make(map[string]string)
	s.Score = 0
	s.Mode = ModeQuiz
	return nil
}

// Running reports whether id is the quiz attached to the session.
func (s *Session) Running(id uuid.UUID) bool {
	return s.QuizID != nil && *s.QuizID == id
}

// Answer records the selected option text for a question.
func (s *Session) Answer(questionID, choice string) error {
	if err := s.require("answer", ModeQuiz); err != nil {
		return err
	}
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	s.Answers[questionID] = choice
	return nil
}

// Submit stores the score and closes the quiz.
func (s *Session) Submit(score int) error {
	if err := s.require("submit", ModeQuiz); err != nil {
		return err
	}
	s.Score = score
	s.Mode = ModeSubmitted
	return nil
}

// Reset discards the current quiz and returns to quiz creation.
func (s *Session) Reset() error {
	if err := s.require("reset", ModeQuiz, ModeSubmitted); err != nil {
		return err
	}
	s.QuizID = nil
	s.Answers = nil
	s.Score = 0
	s.Mode = ModeMake
	return nil
}

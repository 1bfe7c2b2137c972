package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"mcqquiz/internal/models"
	"mcqquiz/internal/quiz"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the application's SQL against a pool or a transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const schema = `
CREATE TABLE IF NOT EXISTS quizzes (
	id           UUID PRIMARY KEY,
	session_id   TEXT NOT NULL,
	subject      TEXT NOT NULL,
	difficulty   TEXT NOT NULL,
	raw_response TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS questions (
	quiz_id  UUID NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
	key      TEXT NOT NULL,
	position INT NOT NULL,
	question TEXT NOT NULL,
	options  JSONB NOT NULL,
	correct  TEXT NOT NULL,
	reason   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (quiz_id, key)
);
CREATE TABLE IF NOT EXISTS attempts (
	id          UUID PRIMARY KEY,
	quiz_id     UUID NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
	session_id  TEXT NOT NULL,
	score       INT NOT NULL,
	total       INT NOT NULL,
	answers     JSONB NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS attempts_session_idx ON attempts (session_id, finished_at DESC);
`

// EnsureSchema creates the tables if they do not exist yet.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const createQuiz = `
INSERT INTO quizzes (id, session_id, subject, difficulty, raw_response, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const createQuestion = `
INSERT INTO questions (quiz_id, key, position, question, options, correct, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// CreateQuiz inserts the quiz row and its questions. Run it inside a transaction.
func (q *Queries) CreateQuiz(ctx context.Context, quiz *models.Quiz) error {
	raw := pgtype.Text{String: quiz.RawResponse, Valid: quiz.RawResponse != ""}
	if _, err := q.db.Exec(ctx, createQuiz, quiz.ID, quiz.SessionID, quiz.Subject, string(quiz.Difficulty), raw, quiz.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}
	for i, question := range quiz.Questions {
		options, err := json.Marshal(question.Options)
		if err != nil {
			return fmt.Errorf("failed to marshal options for question %s: %w", question.ID, err)
		}
		if _, err := q.db.Exec(ctx, createQuestion, quiz.ID, question.ID, i, question.Question, options, question.Correct, question.Reason); err != nil {
			return fmt.Errorf("failed to insert question %s: %w", question.ID, err)
		}
	}
	return nil
}

const getQuiz = `
SELECT id, session_id, subject, difficulty, created_at
FROM quizzes WHERE id = $1`

const listQuestions = `
SELECT key, question, options, correct, reason
FROM questions WHERE quiz_id = $1 ORDER BY position`

// GetQuiz loads a quiz with its questions in their original order.
func (q *Queries) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	var out models.Quiz
	var difficulty string
	err := q.db.QueryRow(ctx, getQuiz, id).Scan(&out.ID, &out.SessionID, &out.Subject, &difficulty, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz %s: %w", id, err)
	}
	out.Difficulty = quiz.Difficulty(difficulty)

	rows, err := q.db.Query(ctx, listQuestions, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions for quiz %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var question quiz.Question
		var options []byte
		if err := rows.Scan(&question.ID, &question.Question, &options, &question.Correct, &question.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan question for quiz %s: %w", id, err)
		}
		if err := json.Unmarshal(options, &question.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of question %s: %w", question.ID, err)
		}
		out.Questions = append(out.Questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions for quiz %s: %w", id, err)
	}
	return &out, nil
}

const createAttempt = `
INSERT INTO attempts (id, quiz_id, session_id, score, total, answers, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// CreateAttempt stores a graded attempt.
func (q *Queries) CreateAttempt(ctx context.Context, attempt *models.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	_, err = q.db.Exec(ctx, createAttempt, attempt.ID, attempt.QuizID, attempt.SessionID,
		attempt.Score, attempt.Total, answers, attempt.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

const listAttempts = `
SELECT a.id, a.quiz_id, q.subject, a.score, a.total, a.answers, a.finished_at
FROM attempts a LEFT JOIN quizzes q ON q.id = a.quiz_id
WHERE a.session_id = $1
ORDER BY a.finished_at DESC
LIMIT 50`

// ListAttempts returns the latest attempts of a session, newest first.
func (q *Queries) ListAttempts(ctx context.Context, sessionID string) ([]models.Attempt, error) {
	rows, err := q.db.Query(ctx, listAttempts, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []models.Attempt{}
	for rows.Next() {
		var a models.Attempt
		var subject pgtype.Text
		var answers []byte
		var finishedAt pgtype.Timestamptz
		if err := rows.Scan(&a.ID, &a.QuizID, &subject, &a.Score, &a.Total, &answers, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.SessionID = sessionID
		a.Subject = subject.String
		a.FinishedAt = finishedAt.Time
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers of attempt %s: %w", a.ID, err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// SaveQuiz stores a quiz and its questions atomically.
func (db *DB) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now()
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin database transaction: %w", err)
	}
	if err := db.Queries.WithTx(tx).CreateQuiz(ctx, quiz); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Printf("WARN: Failed to roll back quiz %s: %v", quiz.ID, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit quiz %s: %w", quiz.ID, err)
	}
	return nil
}

// GetQuiz loads a quiz by ID.
func (db *DB) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	return db.Queries.GetQuiz(ctx, id)
}

// SaveAttempt stores a graded attempt.
func (db *DB) SaveAttempt(ctx context.Context, attempt *models.Attempt) error {
	if attempt.FinishedAt.IsZero() {
		attempt.FinishedAt = time.Now()
	}
	return db.Queries.CreateAttempt(ctx, attempt)
}

// ListAttempts returns the latest attempts of a session.
func (db *DB) ListAttempts(ctx context.Context, sessionID string) ([]models.Attempt, error) {
	return db.Queries.ListAttempts(ctx, sessionID)
}

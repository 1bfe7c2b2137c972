package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mcqquiz/internal/llm"
	"mcqquiz/internal/models"
	"mcqquiz/internal/recovery"
)

// QuizStore persists quizzes and attempts.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	SaveAttempt(ctx context.Context, attempt *models.Attempt) error
	ListAttempts(ctx context.Context, sessionID string) ([]models.Attempt, error)
}

// Archiver keeps the raw model output of a quiz.
type Archiver interface {
	ArchiveRaw(ctx context.Context, quizID uuid.UUID, raw string) (string, error)
}

// Handler contains the API handlers dependencies
type Handler struct {
	Store     QuizStore
	Generator *llm.Generator
	Parser    *recovery.Parser
	// Archiver is nil when raw responses are not archived.
	Archiver Archiver
}

// NewHandler creates a new Handler
func NewHandler(store QuizStore, generator *llm.Generator, parser *recovery.Parser, archiver Archiver) *Handler {
	if parser == nil {
		parser = recovery.New()
	}
	return &Handler{
		Store:     store,
		Generator: generator,
		Parser:    parser,
		Archiver:  archiver,
	}
}

// abortWithError logs the error with its context and aborts the request.
func (h *Handler) abortWithError(c *gin.Context, statusCode int, errorContext string, err error) {
	sessionID := ""
	if s, ok := sessionFromContext(c); ok {
		sessionID = s.ID
	}
	if statusCode >= 500 {
		log.Printf("ERROR: %s: %v (Session: %s, Path: %s)", errorContext, err, sessionID, c.Request.URL.Path)
	} else {
		log.Printf("WARN: %s: %v (Session: %s, Path: %s)", errorContext, err, sessionID, c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(statusCode, models.ErrorResponse{Error: fmt.Sprintf("%s: %v", errorContext, err)})
}

// archiveRaw stores the raw response if archiving is enabled. Failures are only logged.
func (h *Handler) archiveRaw(ctx context.Context, quizID uuid.UUID, raw string) {
	if h.Archiver == nil {
		return
	}
	if _, err := h.Archiver.ArchiveRaw(ctx, quizID, raw); err != nil {
		log.Printf("WARN: Failed to archive raw response for quiz %s: %v", quizID, err)
	}
}

package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mcqquiz/internal/models"
	"mcqquiz/internal/quiz"
)

// HandleSubmitQuiz grades the running quiz, stores the attempt and closes the quiz.
func (h *Handler) HandleSubmitQuiz(c *gin.Context) {
	ctx := c.Request.Context()
	s := LoadSession(c)

	q, ok := h.loadOwnQuiz(c, s)
	if !ok {
		return
	}
	if !s.Running(q.ID) || s.Mode != quiz.ModeQuiz {
		h.abortWithError(c, http.StatusConflict, "Submit quiz",
			fmt.Errorf("%w: quiz %s is not running in this session", quiz.ErrInvalidTransition, q.ID))
		return
	}

	card := quiz.Score(q.Questions, s.Answers)
	attempt := &models.Attempt{
		ID:         uuid.New(),
		QuizID:     q.ID,
		SessionID:  s.ID,
		Subject:    q.Subject,
		Score:      card.Score,
		Total:      card.Total,
		Answers:    s.Answers,
		FinishedAt: time.Now(),
	}
	if attempt.Answers == nil {
		attempt.Answers = map[string]string{}
	}
	if err := h.Store.SaveAttempt(ctx, attempt); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Store attempt", err)
		return
	}

	if err := s.Submit(card.Score); err != nil {
		h.abortWithError(c, transitionStatus(err), "Submit quiz", err)
		return
	}
	if err := SaveSession(c, s); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Save session", err)
		return
	}

	log.Printf("INFO: Session %s scored %d/%d on quiz %s", s.ID, card.Score, card.Total, q.ID)
	c.JSON(http.StatusOK, models.SubmitResponse{AttemptID: attempt.ID, Scorecard: card})
}

// HandleListAttempts returns the past attempts of this session, newest first.
func (h *Handler) HandleListAttempts(c *gin.Context) {
	s := LoadSession(c)

	attempts, err := h.Store.ListAttempts(c.Request.Context(), s.ID)
	if err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "List attempts", err)
		return
	}
	if attempts == nil {
		attempts = []models.Attempt{}
	}
	c.JSON(http.StatusOK, attempts)
}

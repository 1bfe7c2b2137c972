package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mcqquiz/internal/db"
	"mcqquiz/internal/llm"
	"mcqquiz/internal/models"
	"mcqquiz/internal/quiz"
)

// maxQuestionCount caps the count a client can ask for.
const maxQuestionCount = 20

// GenerateQuizRequest is the body of POST /api/quizzes.
type GenerateQuizRequest struct {
	Subject    string `json:"subject" binding:"required"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

// AnswerRequest is the body of PUT /api/quizzes/:quizId/answers. Choice is an option
// letter or the option text.
type AnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	Choice     string `json:"choice" binding:"required"`
}

// HandleGenerateQuiz asks the model for a quiz, recovers the questions and starts the quiz.
func (h *Handler) HandleGenerateQuiz(c *gin.Context) {
	ctx := c.Request.Context()
	s := LoadSession(c)

	var req GenerateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, http.StatusBadRequest, "Bind quiz request", err)
		return
	}
	difficulty := quiz.DifficultyEasy
	if req.Difficulty != "" {
		d, err := quiz.ParseDifficulty(req.Difficulty)
		if err != nil {
			h.abortWithError(c, http.StatusBadRequest, "Validate quiz request", err)
			return
		}
		difficulty = d
	}
	if req.Count < 0 || req.Count > maxQuestionCount {
		h.abortWithError(c, http.StatusBadRequest, "Validate quiz request",
			fmt.Errorf("count must be between 1 and %d", maxQuestionCount))
		return
	}
	if err := s.Make(req.Subject, difficulty); err != nil {
		h.abortWithError(c, transitionStatus(err), "Make quiz", err)
		return
	}

	log.Printf("INFO: Generating %s quiz on '%s' for session %s", difficulty, s.Subject, s.ID)
	gen, err := h.Generator.Generate(ctx, s.AccessToken, llm.Request{
		Subject:    s.Subject,
		Difficulty: difficulty,
		Count:      req.Count,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNoQuestions) {
			c.AbortWithStatusJSON(http.StatusBadGateway, models.ErrorResponse{
				Error: "The model response could not be turned into a quiz. Please try again.",
			})
			log.Printf("WARN: No usable questions for session %s: %v", s.ID, err)
			return
		}
		h.abortWithError(c, http.StatusBadGateway, "Generate quiz", err)
		return
	}

	newQuiz := &models.Quiz{
		ID:          uuid.New(),
		SessionID:   s.ID,
		Subject:     s.Subject,
		Difficulty:  difficulty,
		Questions:   gen.Questions,
		RawResponse: gen.Raw,
		CreatedAt:   time.Now(),
	}
	if err := h.Store.SaveQuiz(ctx, newQuiz); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Store quiz", err)
		return
	}
	h.archiveRaw(ctx, newQuiz.ID, gen.Raw)

	if err := s.Loaded(newQuiz.ID); err != nil {
		h.abortWithError(c, transitionStatus(err), "Start quiz", err)
		return
	}
	if err := SaveSession(c, s); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Save session", err)
		return
	}

	log.Printf("INFO: Quiz %s created with %d questions after %d attempt(s)", newQuiz.ID, len(newQuiz.Questions), gen.Attempts)
	c.JSON(http.StatusCreated, models.NewQuizResponse(newQuiz, s.Answers))
}

// loadOwnQuiz fetches the quiz named in the URL. Quizzes of other sessions are reported as
// not found.
func (h *Handler) loadOwnQuiz(c *gin.Context, s *quiz.Session) (*models.Quiz, bool) {
	quizIDStr := c.Param("quizId")
	quizID, err := uuid.Parse(quizIDStr)
	if err != nil {
		h.abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid Quiz ID format '%s'", quizIDStr), err)
		return nil, false
	}

	q, err := h.Store.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.abortWithError(c, http.StatusNotFound, "Quiz not found", err)
		} else {
			h.abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to get quiz %s", quizID), err)
		}
		return nil, false
	}
	if q.SessionID != s.ID {
		h.abortWithError(c, http.StatusNotFound, "Quiz not found", fmt.Errorf("quiz %s: %w", quizID, db.ErrNotFound))
		return nil, false
	}
	return q, true
}

// HandleGetQuiz returns the questions without revealing the answers.
func (h *Handler) HandleGetQuiz(c *gin.Context) {
	s := LoadSession(c)
	q, ok := h.loadOwnQuiz(c, s)
	if !ok {
		return
	}

	var answers map[string]string
	if s.Running(q.ID) {
		answers = s.Answers
	}
	c.JSON(http.StatusOK, models.NewQuizResponse(q, answers))
}

// HandleSaveAnswer records the selected option for one question of the running quiz.
func (h *Handler) HandleSaveAnswer(c *gin.Context) {
	s := LoadSession(c)

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, http.StatusBadRequest, "Bind answer request", err)
		return
	}

	q, ok := h.loadOwnQuiz(c, s)
	if !ok {
		return
	}
	if !s.Running(q.ID) {
		h.abortWithError(c, http.StatusConflict, "Save answer", fmt.Errorf("%w: quiz %s is not the running quiz", quiz.ErrInvalidTransition, q.ID))
		return
	}

	var question *quiz.Question
	for i := range q.Questions {
		if q.Questions[i].ID == req.QuestionID {
			question = &q.Questions[i]
			break
		}
	}
	if question == nil {
		h.abortWithError(c, http.StatusBadRequest, "Save answer", fmt.Errorf("question %s is not part of quiz %s", req.QuestionID, q.ID))
		return
	}
	text, ok := question.Choice(req.Choice)
	if !ok {
		h.abortWithError(c, http.StatusBadRequest, "Save answer", fmt.Errorf("%q is not an option of question %s", req.Choice, question.ID))
		return
	}

	if err := s.Answer(question.ID, text); err != nil {
		h.abortWithError(c, transitionStatus(err), "Save answer", err)
		return
	}
	if err := SaveSession(c, s); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Save session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": s.Answers})
}

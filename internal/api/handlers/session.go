package handlers

import (
	"encoding/gob"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"mcqquiz/internal/quiz"
)

// Keys under which the quiz session is kept.
const (
	// SessionKey is the key in the gin-contrib session store.
	SessionKey = "quiz_session"
	// SessionContextKey is the gin context key set by SessionRequired.
	SessionContextKey = "quizSession"
)

func init() {
	// Gob needs the concrete type to store it in the session.
	gob.Register(quiz.Session{})
}

// LoadSession returns the quiz session of the request, or a fresh one on the login step.
func LoadSession(c *gin.Context) *quiz.Session {
	if s, ok := sessionFromContext(c); ok {
		return s
	}
	value := sessions.Default(c).Get(SessionKey)
	if s, ok := value.(quiz.Session); ok && s.ID != "" {
		return &s
	}
	return quiz.NewSession()
}

// SaveSession writes s back to the session store.
func SaveSession(c *gin.Context, s *quiz.Session) error {
	session := sessions.Default(c)
	session.Set(SessionKey, *s)
	if err := session.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	c.Set(SessionContextKey, s)
	return nil
}

func sessionFromContext(c *gin.Context) (*quiz.Session, bool) {
	value, exists := c.Get(SessionContextKey)
	if !exists {
		return nil, false
	}
	s, ok := value.(*quiz.Session)
	return s, ok
}

// transitionStatus maps a failed session transition to an HTTP status.
func transitionStatus(err error) int {
	if errors.Is(err, quiz.ErrInvalidTransition) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// HandleGetSession returns the current session, creating one on first visit.
func (h *Handler) HandleGetSession(c *gin.Context) {
	s := LoadSession(c)
	if err := SaveSession(c, s); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Save session", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// LoginRequest carries the user's model access token.
type LoginRequest struct {
	Token string `json:"token"`
}

// HandleLogin stores the access token and moves the session to quiz creation.
func (h *Handler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, http.StatusBadRequest, "Bind login request", err)
		return
	}

	s := LoadSession(c)
	if err := s.Login(req.Token); err != nil {
		h.abortWithError(c, transitionStatus(err), "Login", err)
		return
	}
	if err := SaveSession(c, s); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Save session", err)
		return
	}

	log.Printf("INFO: Session %s logged in (token provided: %t)", s.ID, s.AccessToken != "")
	c.JSON(http.StatusOK, s)
}

// HandleReset discards the current quiz ("Make New Quiz").
func (h *Handler) HandleReset(c *gin.Context) {
	s := LoadSession(c)
	if err := s.Reset(); err != nil {
		h.abortWithError(c, transitionStatus(err), "Reset session", err)
		return
	}
	if err := SaveSession(c, s); err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Save session", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mcqquiz/internal/api/handlers"
	"mcqquiz/internal/quiz"
)

// CORSMiddleware allows the frontend at frontendURL to call the API with cookies.
func CORSMiddleware(frontendURL string) gin.HandlerFunc {
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}
	origin := strings.TrimSuffix(frontendURL, "/")
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SessionRequired rejects requests from sessions that have not logged in yet and puts the
// loaded session into the context.
func SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := handlers.LoadSession(c)
		if s.Mode == quiz.ModeLogin {
			log.Printf("WARN: SessionRequired failed - session %s has not logged in", s.ID)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Login required"})
			return
		}

		c.Set(handlers.SessionContextKey, s)
		c.Next()
	}
}

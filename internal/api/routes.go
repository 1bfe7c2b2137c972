package api

import (
	"github.com/gin-gonic/gin"

	"mcqquiz/internal/api/handlers"
)

// SetupRoutes sets up the API routes
func SetupRoutes(router *gin.Engine, handler *handlers.Handler, frontendURL string) {
	router.Use(CORSMiddleware(frontendURL))

	api := router.Group("/api")
	{
		api.GET("/session", handler.HandleGetSession)
		api.POST("/session/login", handler.HandleLogin)

		// Raw model output in, recovered records out.
		api.POST("/recover", handler.HandleRecover)

		authorized := api.Group("/")
		authorized.Use(SessionRequired())
		{
			authorized.POST("/session/reset", handler.HandleReset)

			authorized.POST("/quizzes", handler.HandleGenerateQuiz)
			authorized.GET("/quizzes/:quizId", handler.HandleGetQuiz)
			authorized.PUT("/quizzes/:quizId/answers", handler.HandleSaveAnswer)
			authorized.POST("/quizzes/:quizId/submit", handler.HandleSubmitQuiz)

			authorized.GET("/attempts", handler.HandleListAttempts)
		}
	}
}

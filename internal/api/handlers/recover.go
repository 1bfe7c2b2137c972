package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mcqquiz/internal/models"
	"mcqquiz/internal/quiz"
)

// maxRecoverBody limits the raw text accepted by the recovery endpoint.
const maxRecoverBody = 1 << 20

// HandleRecover runs the recovery parser on the raw request body and returns what it found.
func (h *Handler) HandleRecover(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxRecoverBody)
	raw, err := io.ReadAll(body)
	if err != nil {
		h.abortWithError(c, http.StatusRequestEntityTooLarge, "Read recovery input", err)
		return
	}

	res, err := h.Parser.Recover(string(raw))
	if err != nil {
		h.abortWithError(c, http.StatusInternalServerError, "Recover records", err)
		return
	}

	keys := res.Keys
	if keys == nil {
		keys = []string{}
	}
	questions := quiz.FromRecords(res)
	c.JSON(http.StatusOK, models.RecoverResponse{
		Records:   res,
		Keys:      keys,
		Dropped:   res.Dropped,
		Questions: questions,
	})
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/usecase"
)

func (h *Handlers) generateBatch(c *gin.Context) {
	if h.Generation == nil {
		h.fail(c, apperr.New(apperr.CodeBackend, "generate batch", "generation backend is not configured"))
		return
	}

	var body batchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "malformed batch body")
		return
	}

	result, err := h.Generation.GenerateBatch(c.Request.Context(), usecase.BatchRequest{
		Topics:            body.Topics,
		Count:             body.Count,
		MinWords:          body.MinWords,
		MaxWords:          body.MaxWords,
		MaxRetriesPerItem: body.MaxRetriesPerItem,
		Requester:         actorFrom(c),
	})
	if err != nil && result.Requested == 0 {
		h.fail(c, err)
		return
	}
	if err != nil {
		h.Logger.Warn("batch interrupted", "created", result.Created, "error", err)
	}
	c.JSON(http.StatusOK, toBatch(result))
}

func (h *Handlers) generationProgress(c *gin.Context) {
	if h.Generation == nil {
		c.JSON(http.StatusOK, gin.H{"running": false, "completed": 0, "total": 0, "failures": []string{}})
		return
	}
	p := h.Generation.Progress()
	c.JSON(http.StatusOK, gin.H{
		"running":   p.Running,
		"completed": p.Completed,
		"total":     p.Total,
		"failures":  nonNil(p.Failures),
	})
}

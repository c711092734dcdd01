package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AIHandler serves the metered AI endpoints. Admission has already
// charged the caller's AI quota when these run.
type AIHandler struct {
	db *gorm.DB
}

// NewAIHandler constructs an AI handler.
func NewAIHandler(db *gorm.DB) *AIHandler {
	return &AIHandler{db: db}
}

// completeRequest captures the completion payload.
type completeRequest struct {
	Prompt string `json:"prompt"`
}

// Complete runs a completion for the caller's prompt.
func (h *AIHandler) Complete(c *gin.Context) {
	var body completeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	prompt := strings.TrimSpace(body.Prompt)
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prompt": prompt,
		"status": "accepted",
	})
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/edgegate/edgegate/internal/block"
	"github.com/edgegate/edgegate/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BlockHandler manages admin CRUD for the block registry.
type BlockHandler struct {
	db       *gorm.DB
	registry *block.Registry
}

// NewBlockHandler constructs a block handler.
func NewBlockHandler(db *gorm.DB, registry *block.Registry) *BlockHandler {
	return &BlockHandler{db: db, registry: registry}
}

// createBlockRequest captures the payload for creating a block.
type createBlockRequest struct {
	Identity        string `json:"identity"`        // Identity key, e.g. "user:42" or "ip:203.0.113.7".
	Reason          string `json:"reason"`          // Human-readable reason.
	DurationSeconds int    `json:"durationSeconds"` // Block length; defaults to the configured duration.
}

// Create inserts or extends a block for an identity.
func (h *BlockHandler) Create(c *gin.Context) {
	var body createBlockRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	identity := strings.TrimSpace(body.Identity)
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity is required"})
		return
	}
	duration := time.Duration(body.DurationSeconds) * time.Second
	if duration <= 0 {
		duration = block.LoadBlockDuration()
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = "blocked by administrator"
	}

	until := time.Now().Add(duration)
	if errBlock := h.registry.Block(c.Request.Context(), identity, reason, models.BlockSourceAdmin, until); errBlock != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create block failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"identity":  identity,
		"reason":    reason,
		"expiresAt": until.UTC().Format(time.RFC3339),
	})
}

// List returns the active blocks, newest first.
func (h *BlockHandler) List(c *gin.Context) {
	rows, errList := h.registry.List(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list blocks failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatBlock(&row))
	}
	c.JSON(http.StatusOK, gin.H{"blocks": out})
}

// Delete removes a block by identity.
func (h *BlockHandler) Delete(c *gin.Context) {
	identity := strings.TrimSpace(c.Param("identity"))
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity"})
		return
	}
	if errUnblock := h.registry.Unblock(c.Request.Context(), identity); errUnblock != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete block failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// formatBlock formats a block row into response JSON.
func formatBlock(b *models.BlockEntry) gin.H {
	return gin.H{
		"id":        b.ID,
		"identity":  b.Identity,
		"reason":    b.Reason,
		"source":    b.Source,
		"expiresAt": b.ExpiresAt.UTC().Format(time.RFC3339),
		"createdAt": b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

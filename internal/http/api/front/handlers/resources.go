package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ResourceHandler serves the protected application endpoints. The
// admission middleware has already run by the time these execute, so the
// handlers stay oblivious to quotas, blocks, and CSRF.
type ResourceHandler struct {
	db *gorm.DB
}

// NewResourceHandler constructs a resource handler.
func NewResourceHandler(db *gorm.DB) *ResourceHandler {
	return &ResourceHandler{db: db}
}

// ListData returns the caller's data.
func (h *ResourceHandler) ListData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": []gin.H{}})
}

// CreateData accepts a data write.
func (h *ResourceHandler) CreateData(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

// ExportData starts an export job.
func (h *ResourceHandler) ExportData(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{
		"status":    "queued",
		"requested": time.Now().UTC().Format(time.RFC3339),
	})
}

// InviteTeamMember sends a team invite.
func (h *ResourceHandler) InviteTeamMember(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// DeleteAccount schedules account deletion.
func (h *ResourceHandler) DeleteAccount(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

// PublicStatus reports the public service status.
func (h *ResourceHandler) PublicStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "operational"})
}

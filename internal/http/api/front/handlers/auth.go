package handlers

import (
	"net/http"
	"strings"

	"github.com/edgegate/edgegate/internal/config"
	"github.com/edgegate/edgegate/internal/csrf"
	"github.com/edgegate/edgegate/internal/identity"
	"github.com/edgegate/edgegate/internal/models"
	"github.com/edgegate/edgegate/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler signs users in and out and hands out CSRF tokens.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
	csrf   *csrf.Service
	secure bool // Secure flag on delivered cookies.
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, csrfService *csrf.Service, secure bool) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, csrf: csrfService, secure: secure}
}

// loginRequest captures the login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials, issues a session token, and rotates the
// session's CSRF epoch so pre-login tokens stop verifying.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.Active || !security.VerifyPassword(body.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	sessionID, errSession := security.NewSessionID()
	if errSession != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session creation failed"})
		return
	}
	token, errIssue := security.IssueSessionToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, user.ID, sessionID, user.Tier)
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	h.csrf.Rotate(sessionID)
	csrfToken, errCSRF := h.csrf.Issue(sessionID)
	if errCSRF != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "csrf issuance failed"})
		return
	}
	csrf.Deliver(c, csrfToken, h.secure)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"tier":     user.Tier,
		},
	})
}

// Logout rotates the session's CSRF epoch. The session token itself
// expires on its own; rotation makes any captured CSRF token useless.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := sessionIDFromContext(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no active session"})
		return
	}
	h.csrf.Rotate(sessionID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Token returns a fresh CSRF token for the caller's session.
func (h *AuthHandler) Token(c *gin.Context) {
	sessionID := sessionIDFromContext(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no active session"})
		return
	}
	token, errIssue := h.csrf.Issue(sessionID)
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "csrf issuance failed"})
		return
	}
	csrf.Deliver(c, token, h.secure)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func sessionIDFromContext(c *gin.Context) string {
	raw, ok := c.Get(identity.CtxSessionID)
	if !ok {
		return ""
	}
	sessionID, okCast := raw.(string)
	if !okCast {
		return ""
	}
	return sessionID
}

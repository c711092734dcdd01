package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/edgegate/edgegate/internal/db"
	"github.com/edgegate/edgegate/internal/models"
	"github.com/edgegate/edgegate/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler manages admin CRUD for user accounts.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a user handler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// validTiers lists the tier names accepted on write.
var validTiers = map[string]struct{}{
	models.TierFree:       {},
	models.TierPro:        {},
	models.TierEnterprise: {},
}

// createUserRequest captures the payload for creating a user.
type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Tier     string `json:"tier"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Create validates and inserts a user account.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	if len(body.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}
	tier := strings.TrimSpace(body.Tier)
	if tier == "" {
		tier = models.TierFree
	}
	if _, ok := validTiers[tier]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := models.User{
		Username: username,
		Email:    strings.TrimSpace(body.Email),
		Password: hash,
		Tier:     tier,
		Active:   true,
		IsAdmin:  body.IsAdmin,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already exists"})
		return
	}
	c.JSON(http.StatusCreated, formatUser(&user))
}

// List returns users sorted by id, optionally filtered by a
// case-insensitive username substring via ?q=.
func (h *UserHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Order("id ASC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "username"), pattern)
	}
	var rows []models.User
	if errFind := query.Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatUser(&row))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// setTierRequest captures the payload for a tier change.
type setTierRequest struct {
	Tier string `json:"tier"`
}

// SetTier changes a user's subscription tier. The new tier applies on
// the user's next request; already-counted windows are not rewritten.
func (h *UserHandler) SetTier(c *gin.Context) {
	user, ok := h.findByParam(c)
	if !ok {
		return
	}
	var body setTierRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tier := strings.TrimSpace(body.Tier)
	if _, okTier := validTiers[tier]; !okTier {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Update("tier", tier).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update tier failed"})
		return
	}
	user.Tier = tier
	c.JSON(http.StatusOK, formatUser(user))
}

// Disable deactivates a user account.
func (h *UserHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// Enable reactivates a user account.
func (h *UserHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	user, ok := h.findByParam(c)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Update("active", active).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	user.Active = active
	c.JSON(http.StatusOK, formatUser(user))
}

func (h *UserHandler) findByParam(c *gin.Context) (*models.User, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &user, true
}

// formatUser formats a user row into response JSON. The password hash
// never leaves the server.
func formatUser(u *models.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"tier":     u.Tier,
		"active":   u.Active,
		"isAdmin":  u.IsAdmin,
	}
}

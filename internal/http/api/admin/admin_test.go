package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgegate/edgegate/internal/block"
	"github.com/edgegate/edgegate/internal/config"
	"github.com/edgegate/edgegate/internal/db"
	"github.com/edgegate/edgegate/internal/models"
	"github.com/edgegate/edgegate/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{Secret: "admin-test-secret", Expiry: time.Hour}

func newAdminEnv(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "edgegate-test.db")
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	engine := gin.New()
	RegisterAdminRoutes(engine, conn, testJWT, block.NewRegistry(conn, nil))
	return engine, conn
}

func createUser(t *testing.T, conn *gorm.DB, username string, isAdmin bool) *models.User {
	t.Helper()
	hash, errHash := security.HashPassword("password")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
		Tier:     models.TierFree,
		Active:   true,
		IsAdmin:  isAdmin,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func bearerFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, errIssue := security.IssueSessionToken(testJWT.Secret, testJWT.Expiry, user.ID, "sess-admin", user.Tier)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, bearer string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, errMarshal := json.Marshal(payload)
		if errMarshal != nil {
			t.Fatalf("marshal: %v", errMarshal)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	engine, conn := newAdminEnv(t)
	regular := createUser(t, conn, "regular", false)

	if w := doJSON(t, engine, http.MethodGet, "/v0/admin/blocks", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := doJSON(t, engine, http.MethodGet, "/v0/admin/blocks", bearerFor(t, regular), nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
}

func TestBlockLifecycle(t *testing.T) {
	engine, conn := newAdminEnv(t)
	admin := createUser(t, conn, "admin", true)
	bearer := bearerFor(t, admin)

	w := doJSON(t, engine, http.MethodPost, "/v0/admin/blocks", bearer, gin.H{
		"identity":        "ip:203.0.113.9",
		"reason":          "abuse report",
		"durationSeconds": 600,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create block: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodGet, "/v0/admin/blocks", bearer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list blocks: expected 200, got %d", w.Code)
	}
	var listed struct {
		Blocks []struct {
			Identity string `json:"identity"`
			Source   string `json:"source"`
		} `json:"blocks"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &listed); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if len(listed.Blocks) != 1 || listed.Blocks[0].Identity != "ip:203.0.113.9" {
		t.Fatalf("unexpected block list: %+v", listed.Blocks)
	}
	if listed.Blocks[0].Source != models.BlockSourceAdmin {
		t.Fatalf("expected admin source, got %q", listed.Blocks[0].Source)
	}

	w = doJSON(t, engine, http.MethodDelete, "/v0/admin/blocks/ip:203.0.113.9", bearer, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete block: expected 204, got %d", w.Code)
	}
	w = doJSON(t, engine, http.MethodGet, "/v0/admin/blocks", bearer, nil)
	if errDecode := json.Unmarshal(w.Body.Bytes(), &listed); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if len(listed.Blocks) != 0 {
		t.Fatalf("expected empty block list after delete, got %+v", listed.Blocks)
	}
}

func TestSettingValidation(t *testing.T) {
	engine, conn := newAdminEnv(t)
	admin := createUser(t, conn, "admin", true)
	bearer := bearerFor(t, admin)

	w := doJSON(t, engine, http.MethodPut, "/v0/admin/settings/DDOS_BURST_LIMIT", bearer, gin.H{"value": -5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative burst limit should be rejected, got %d", w.Code)
	}

	// Migration seeds the key, so an update on it succeeds.
	w = doJSON(t, engine, http.MethodPut, "/v0/admin/settings/DDOS_BURST_LIMIT", bearer, gin.H{"value": 250})
	if w.Code != http.StatusOK {
		t.Fatalf("valid burst limit update failed: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodGet, "/v0/admin/settings/DDOS_BURST_LIMIT", bearer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get setting: expected 200, got %d", w.Code)
	}
	var got struct {
		Value json.RawMessage `json:"value"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &got); errDecode != nil {
		t.Fatalf("decode setting: %v", errDecode)
	}
	if string(bytes.TrimSpace(got.Value)) != "250" {
		t.Fatalf("expected value 250, got %s", got.Value)
	}
}

func TestUserListFilter(t *testing.T) {
	engine, conn := newAdminEnv(t)
	admin := createUser(t, conn, "admin", true)
	createUser(t, conn, "alice", false)
	createUser(t, conn, "bob", false)
	bearer := bearerFor(t, admin)

	w := doJSON(t, engine, http.MethodGet, "/v0/admin/users?q=ALI", bearer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", w.Code)
	}
	var listed struct {
		Users []struct {
			Username string `json:"username"`
		} `json:"users"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &listed); errDecode != nil {
		t.Fatalf("decode users: %v", errDecode)
	}
	if len(listed.Users) != 1 || listed.Users[0].Username != "alice" {
		t.Fatalf("expected only alice to match, got %+v", listed.Users)
	}
}

func TestUserTierChange(t *testing.T) {
	engine, conn := newAdminEnv(t)
	admin := createUser(t, conn, "admin", true)
	target := createUser(t, conn, "member", false)
	bearer := bearerFor(t, admin)

	tierPath := fmt.Sprintf("/v0/admin/users/%d/tier", target.ID)
	w := doJSON(t, engine, http.MethodPut, tierPath, bearer, gin.H{"tier": "pro"})
	if w.Code != http.StatusOK {
		t.Fatalf("tier change: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, target.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if reloaded.Tier != models.TierPro {
		t.Fatalf("expected pro tier, got %q", reloaded.Tier)
	}

	if w := doJSON(t, engine, http.MethodPut, tierPath, bearer, gin.H{"tier": "platinum"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown tier should be rejected, got %d", w.Code)
	}
}

package front

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgegate/edgegate/internal/admission"
	"github.com/edgegate/edgegate/internal/config"
	"github.com/edgegate/edgegate/internal/csrf"
	"github.com/edgegate/edgegate/internal/db"
	"github.com/edgegate/edgegate/internal/models"
	"github.com/edgegate/edgegate/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{Secret: "front-test-secret", Expiry: time.Hour}

func newFrontEnv(t *testing.T) (*gin.Engine, *gorm.DB, *csrf.Service) {
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

	csrfService, errCSRF := csrf.NewService("front-csrf-secret", nil)
	if errCSRF != nil {
		t.Fatalf("csrf service: %v", errCSRF)
	}

	engine := gin.New()
	engine.Use(admission.SessionMiddleware(testJWT.Secret))
	RegisterFrontRoutes(engine, conn, testJWT, csrfService, false)
	return engine, conn, csrfService
}

func seedUser(t *testing.T, conn *gorm.DB, username, password string) *models.User {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
		Tier:     models.TierPro,
		Active:   true,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func postJSON(t *testing.T, engine *gin.Engine, path string, header map[string]string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		t.Fatalf("marshal: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestLoginIssuesSessionAndCSRF(t *testing.T) {
	engine, conn, _ := newFrontEnv(t)
	seedUser(t, conn, "alice", "correct horse")

	w := postJSON(t, engine, "/v0/auth/login", nil, gin.H{"username": "alice", "password": "correct horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
			Tier     string `json:"tier"`
		} `json:"user"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode login response: %v", errDecode)
	}
	if resp.Token == "" {
		t.Fatalf("expected a session token")
	}
	if resp.User.Tier != models.TierPro {
		t.Fatalf("expected pro tier in response, got %q", resp.User.Tier)
	}

	claims, errParse := security.ParseSessionToken(testJWT.Secret, resp.Token)
	if errParse != nil {
		t.Fatalf("issued token should parse: %v", errParse)
	}
	if claims.SessionID == "" {
		t.Fatalf("expected a session id in the token")
	}

	if w.Header().Get(csrf.HeaderName) == "" {
		t.Fatalf("expected csrf token header on login response")
	}
	foundCookie := false
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == csrf.CookieName && cookie.Value != "" {
			foundCookie = true
		}
	}
	if !foundCookie {
		t.Fatalf("expected csrf cookie on login response")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	engine, conn, _ := newFrontEnv(t)
	seedUser(t, conn, "alice", "correct horse")

	if w := postJSON(t, engine, "/v0/auth/login", nil, gin.H{"username": "alice", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", w.Code)
	}
	if w := postJSON(t, engine, "/v0/auth/login", nil, gin.H{"username": "nobody", "password": "x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", w.Code)
	}
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	engine, conn, _ := newFrontEnv(t)
	user := seedUser(t, conn, "alice", "correct horse")
	if errUpdate := conn.Model(user).Update("active", false).Error; errUpdate != nil {
		t.Fatalf("disable user: %v", errUpdate)
	}

	if w := postJSON(t, engine, "/v0/auth/login", nil, gin.H{"username": "alice", "password": "correct horse"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("disabled user: expected 401, got %d", w.Code)
	}
}

func TestLogoutRotatesCSRFEpoch(t *testing.T) {
	engine, conn, csrfService := newFrontEnv(t)
	user := seedUser(t, conn, "alice", "correct horse")

	token, errIssue := security.IssueSessionToken(testJWT.Secret, testJWT.Expiry, user.ID, "sess-front", user.Tier)
	if errIssue != nil {
		t.Fatalf("issue session: %v", errIssue)
	}
	header := map[string]string{"Authorization": "Bearer " + token}

	csrfToken, errCSRF := csrfService.Issue("sess-front")
	if errCSRF != nil {
		t.Fatalf("issue csrf: %v", errCSRF)
	}
	if errVerify := csrfService.Verify(csrfToken, "sess-front"); errVerify != nil {
		t.Fatalf("pre-logout token should verify: %v", errVerify)
	}

	if w := postJSON(t, engine, "/v0/auth/logout", header, gin.H{}); w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}
	if errVerify := csrfService.Verify(csrfToken, "sess-front"); errVerify == nil {
		t.Fatalf("pre-logout csrf token must stop verifying")
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	engine, _, _ := newFrontEnv(t)

	if w := postJSON(t, engine, "/v0/auth/logout", nil, gin.H{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous logout: expected 401, got %d", w.Code)
	}
}

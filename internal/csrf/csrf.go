// Package csrf issues and verifies stateless tokens protecting
// state-changing requests against cross-site forgery.
package csrf

import (
	"container/list"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Delivery names for the double-submit pattern. The cookie alone never
// satisfies verification; the client must echo the token through the
// header or form field.
const (
	CookieName = "edgegate_csrf"
	HeaderName = "X-CSRF-Token"
	FormField  = "_csrf"
)

// Verification errors.
var (
	ErrMissingToken    = errors.New("csrf: missing token")
	ErrInvalidToken    = errors.New("csrf: invalid token")
	ErrSessionMismatch = errors.New("csrf: token not bound to session")
	ErrRotated         = errors.New("csrf: token issued before rotation")
)

// defaultTokenTTL bounds how long an issued token verifies.
const defaultTokenTTL = 12 * time.Hour

// claims is the signed token payload. Validity comes from the signature
// and the session binding, not from any server-side token table.
type claims struct {
	SessionID string `json:"sid"`
	Epoch     int64  `json:"epc"`
	jwt.RegisteredClaims
}

type epochEntry struct {
	sessionID string
	epoch     int64
	element   *list.Element
}

// Service signs and verifies CSRF tokens. The only server-side state is
// a bounded per-session rotation epoch; unseen sessions are epoch zero,
// so verification cost stays constant regardless of load.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
	nowFn    func() time.Time

	mu      sync.Mutex
	epochs  map[string]*epochEntry
	order   *list.List
	maxKeys int
}

const defaultMaxSessions = 100000

// NewService constructs a Service.
func NewService(secret string, nowFn func() time.Time) (*Service, error) {
	if secret == "" {
		return nil, errors.New("csrf: empty secret")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		secret:   []byte(secret),
		tokenTTL: defaultTokenTTL,
		nowFn:    nowFn,
		epochs:   make(map[string]*epochEntry),
		order:    list.New(),
		maxKeys:  defaultMaxSessions,
	}, nil
}

// Issue creates a token bound to the session under its current epoch.
func (s *Service) Issue(sessionID string) (string, error) {
	if s == nil {
		return "", errors.New("csrf: service not initialized")
	}
	if sessionID == "" {
		return "", errors.New("csrf: empty session id")
	}
	now := s.nowFn()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sessionID,
		Epoch:     s.currentEpoch(sessionID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, errSign := token.SignedString(s.secret)
	if errSign != nil {
		return "", fmt.Errorf("csrf: sign token: %w", errSign)
	}
	return signed, nil
}

// Verify validates the token signature and its binding to the caller's
// current session and rotation epoch.
func (s *Service) Verify(token, sessionID string) error {
	if s == nil {
		return ErrInvalidToken
	}
	if token == "" {
		return ErrMissingToken
	}

	var parsed claims
	_, errParse := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("csrf: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFn))
	if errParse != nil {
		return ErrInvalidToken
	}
	if parsed.SessionID == "" || parsed.SessionID != sessionID {
		return ErrSessionMismatch
	}
	if parsed.Epoch != s.currentEpoch(sessionID) {
		return ErrRotated
	}
	return nil
}

// Rotate invalidates tokens issued to the session before this call.
// Invoked on authentication state transitions (login, logout).
func (s *Service) Rotate(sessionID string) {
	if s == nil || sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.epochs[sessionID]
	if entry == nil {
		entry = &epochEntry{sessionID: sessionID}
		entry.element = s.order.PushFront(entry)
		s.epochs[sessionID] = entry
		for len(s.epochs) > s.maxKeys {
			back := s.order.Back()
			if back == nil {
				break
			}
			dropped := back.Value.(*epochEntry)
			s.order.Remove(back)
			delete(s.epochs, dropped.sessionID)
		}
	} else {
		s.order.MoveToFront(entry.element)
	}
	entry.epoch++
}

func (s *Service) currentEpoch(sessionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.epochs[sessionID]
	if entry == nil {
		return 0
	}
	s.order.MoveToFront(entry.element)
	return entry.epoch
}

// TokenFromRequest extracts the echoed token from the header or form
// field. The cookie is deliberately not consulted.
func TokenFromRequest(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	if token := c.GetHeader(HeaderName); token != "" {
		return token
	}
	return c.PostForm(FormField)
}

// Deliver writes the token to the response cookie and mirrors it in a
// header for client-side echoing. The cookie is readable by the client
// application on purpose: it must copy the value into the request header.
func Deliver(c *gin.Context, token string, secure bool) {
	if c == nil {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	c.Header(HeaderName, token)
}

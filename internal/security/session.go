// Package security handles session token issuance and verification. The
// admission layer consumes the resolved user and tier as opaque facts.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSessionToken covers malformed, mis-signed, and expired tokens.
var ErrInvalidSessionToken = errors.New("security: invalid session token")

// SessionClaims carries the authenticated caller facts.
type SessionClaims struct {
	UserID    uint64 `json:"uid"`
	SessionID string `json:"sid"`
	Tier      string `json:"tier"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session token for the user.
func IssueSessionToken(secret string, expiry time.Duration, userID uint64, sessionID, tier string) (string, error) {
	if secret == "" {
		return "", errors.New("security: empty jwt secret")
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		Tier:      tier,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	})
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign session token: %w", errSign)
	}
	return signed, nil
}

// ParseSessionToken validates a session token and returns its claims.
func ParseSessionToken(secret, token string) (*SessionClaims, error) {
	if secret == "" || token == "" {
		return nil, ErrInvalidSessionToken
	}
	var claims SessionClaims
	parsed, errParse := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !parsed.Valid {
		return nil, ErrInvalidSessionToken
	}
	if claims.UserID == 0 || claims.SessionID == "" {
		return nil, ErrInvalidSessionToken
	}
	return &claims, nil
}

// NewSessionID returns a random 128-bit session identifier.
func NewSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: session id: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}

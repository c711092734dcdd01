package security

import (
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, errIssue := IssueSessionToken("secret", time.Hour, 42, "sess-1", "pro")
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	claims, errParse := ParseSessionToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.SessionID != "sess-1" || claims.Tier != "pro" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, errIssue := IssueSessionToken("secret-a", time.Hour, 42, "sess-1", "free")
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, errParse := ParseSessionToken("secret-b", token); errParse != ErrInvalidSessionToken {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", errParse)
	}
}

func TestSessionTokenExpired(t *testing.T) {
	token, errIssue := IssueSessionToken("secret", -time.Minute, 42, "sess-1", "free")
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, errParse := ParseSessionToken("secret", token); errParse != ErrInvalidSessionToken {
		t.Fatalf("expected expired token rejection, got %v", errParse)
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	a, errA := NewSessionID()
	b, errB := NewSessionID()
	if errA != nil || errB != nil {
		t.Fatalf("session id: %v %v", errA, errB)
	}
	if a == b {
		t.Fatalf("session ids should be unique")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

// Package identity derives a stable per-caller key from network origin
// and, when an upstream auth step resolved one, the authenticated user.
package identity

import (
	"net"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware and read by the resolver.
const (
	CtxUserID    = "userID"
	CtxSessionID = "sessionID"
	CtxTier      = "userTier"
)

// UnknownOrigin is used when no network origin can be determined.
// Resolution never fails; the shared unknown bucket is the floor.
const UnknownOrigin = "unknown"

// Identity describes the resolved caller of a single request. It lives
// for the request only and is never persisted.
type Identity struct {
	NetworkOrigin string
	UserID        uint64
	SessionID     string
}

// Key returns the composite identity key: the authenticated user when
// present, else the network origin. Distinct authenticated users behind
// one IP get their own buckets; anonymous traffic from that IP shares one.
func (id Identity) Key() string {
	if id.UserID != 0 {
		return "user:" + strconv.FormatUint(id.UserID, 10)
	}
	return "ip:" + id.NetworkOrigin
}

// Authenticated reports whether an upstream auth step attached a user.
func (id Identity) Authenticated() bool { return id.UserID != 0 }

// Resolve builds the caller identity for the current request.
func Resolve(c *gin.Context) Identity {
	id := Identity{NetworkOrigin: resolveOrigin(c)}
	if c == nil {
		return id
	}
	if userID, ok := c.Get(CtxUserID); ok {
		if parsed, okCast := userID.(uint64); okCast {
			id.UserID = parsed
		}
	}
	if sessionID, ok := c.Get(CtxSessionID); ok {
		if parsed, okCast := sessionID.(string); okCast {
			id.SessionID = parsed
		}
	}
	return id
}

// resolveOrigin prefers the first entry of the forwarded chain, then the
// real-IP header, then the connection remote address.
func resolveOrigin(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return UnknownOrigin
	}
	if forwarded := strings.TrimSpace(c.Request.Header.Get("X-Forwarded-For")); forwarded != "" {
		first := forwarded
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			first = forwarded[:idx]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.Request.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if remote := strings.TrimSpace(c.Request.RemoteAddr); remote != "" {
		if host, _, errSplit := net.SplitHostPort(remote); errSplit == nil && host != "" {
			return host
		}
		return remote
	}
	return UnknownOrigin
}

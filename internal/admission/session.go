package admission

import (
	"strings"

	"github.com/edgegate/edgegate/internal/identity"
	"github.com/edgegate/edgegate/internal/security"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware attaches verified caller facts to the request
// context when a valid bearer session token is present. Requests without
// one proceed anonymously; handlers that need authentication enforce it
// themselves. This is the upstream step whose output the admission
// pipeline consumes, never computes.
func SessionMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.Next()
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.Next()
			return
		}

		claims, errParse := security.ParseSessionToken(secret, token)
		if errParse != nil {
			c.Next()
			return
		}
		c.Set(identity.CtxUserID, claims.UserID)
		c.Set(identity.CtxSessionID, claims.SessionID)
		c.Set(identity.CtxTier, claims.Tier)
		c.Next()
	}
}

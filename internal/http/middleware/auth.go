package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iwonder/iwonder-backend/internal/auth"
)

// userIDKey is the Gin context key carrying the authenticated user's ID.
const userIDKey = "userID"

// RequireAuth verifies the Authorization bearer token and stores the user ID
// in the Gin context. Requests without a valid token are rejected with 401.
//
// Tests may instead supply an X-User-ID header, honored only when no
// Authorization header is present and allowHeaderFallback is true.
func RequireAuth(secret string, allowHeaderFallback bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" && allowHeaderFallback {
			if raw := strings.TrimSpace(c.GetHeader("X-User-ID")); raw != "" {
				if uid, err := strconv.ParseInt(raw, 10, 64); err == nil && uid > 0 {
					c.Set(userIDKey, uid)
					c.Next()
					return
				}
			}
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		uid, err := auth.ParseToken(secret, token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}

// CurrentUserID returns the authenticated user ID from the Gin context, or 0
// when the request is unauthenticated.
func CurrentUserID(c *gin.Context) int64 {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ghl-sync-bridge/internal/auth"
)

// SubjectKey holds the token subject on the gin context.
const SubjectKey = "sub"

// JWTAuth requires Authorization: Bearer <jwt> signed with secret.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if !strings.HasPrefix(h, "Bearer ") || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token"})
			return
		}
		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bad token"})
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}

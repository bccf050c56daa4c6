package middleware

import (
	"net/http"
	"slices"

	"github.com/feyza/backend/internal/auth"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth, which stores the caller's role.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString("user_role")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imagehub/internal/models"
)

func RequireRoles(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "AUTH_004"})
			return
		}

		if _, ok := roleSet[user.Role()]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "AUTH_003"})
			return
		}

		c.Next()
	}
}

// RequireAdmin admits admins and superusers.
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleSuperuser)
}

func RequireSuperuser() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperuser)
}

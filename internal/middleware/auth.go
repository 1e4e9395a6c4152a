package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"imagehub/internal/models"
	"imagehub/internal/security"
	"imagehub/internal/service"
)

const (
	// AccessCookie carries the access token for browser clients.
	AccessCookie = "access_token"

	currentUserKey = "current_user"
	claimsKey      = "access_claims"
	viaCookieKey   = "auth_via_cookie"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, *security.AccessClaims, error)
}

// Auth accepts a Bearer header or, failing that, the access cookie.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, viaCookie := accessToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token", "code": "AUTH_004"})
			return
		}

		user, claims, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrForbidden) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_disabled", "code": "AUTH_005"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "code": "AUTH_004"})
			return
		}

		c.Set(claimsKey, *claims)
		c.Set(currentUserKey, user)
		c.Set(viaCookieKey, viaCookie)

		c.Next()
	}
}

func accessToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), false
	}
	if cookie, err := c.Cookie(AccessCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// CurrentUser returns the account set by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func CurrentClaims(c *gin.Context) (security.AccessClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return security.AccessClaims{}, false
	}
	claims, ok := v.(security.AccessClaims)
	return claims, ok
}

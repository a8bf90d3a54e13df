package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrovia/agrovia-api/internal/application"
	"github.com/agrovia/agrovia-api/internal/infrastructure/cache"
	"github.com/agrovia/agrovia-api/pkg/helpers"
	"github.com/agrovia/agrovia-api/pkg/response"
)

const (
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
	CtxUserEmailKey = "userEmail"
)

// Auth validates the access token cookie and requires a live session entry in
// the auth cache. On success it injects user id, session id and email into
// the Gin context.
func Auth(authCache *cache.AuthCache, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.Verify(token, helpers.TokenTypeAccess)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.Abort()
			return
		}

		var payload application.SessionPayload
		found, err := authCache.GetSession(c.Request.Context(), claims.SessionID, &payload)
		if err != nil || !found {
			response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxSessionIDKey, claims.SessionID)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Next()
	}
}

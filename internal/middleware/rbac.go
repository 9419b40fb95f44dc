package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/response"
)

// RequireRole restricts a route group to the given roles. It assumes a
// full-session middleware already ran and set the claims.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
	}
}

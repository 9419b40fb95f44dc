package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/secureexam/portal-backend/internal/response"
	"github.com/secureexam/portal-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// RequireFullSession validates a full-session JWT from the Authorization
// header. Temp tokens are rejected with the same 401 as missing tokens.
func RequireFullSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			abortTokenError(c, err)
			return
		}

		if claims.Stage != service.StageFullSession {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireTempStage validates a stage-one token. Full-session tokens are
// rejected: each stage authorizes exactly its own operation class.
func RequireTempStage(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			abortTokenError(c, err)
			return
		}

		if claims.Stage != service.StagePasswordVerified {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrInvalidStage)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func abortTokenError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrStaleToken) {
		response.AbortFail(c, http.StatusUnauthorized, response.ErrStaleToken)
		return
	}
	response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	return authService.ValidateToken(parts[1])
}

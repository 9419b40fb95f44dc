package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secureexam/portal-backend/internal/middleware"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
	"github.com/secureexam/portal-backend/internal/response"
	"github.com/secureexam/portal-backend/internal/service"
	"github.com/secureexam/portal-backend/internal/validator"
)

// AuthHandler handles registration and the two-stage login endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register godoc
// POST /api/v1/auth/register
// Creates an account and dispatches the email verification link.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			response.Fail(c, http.StatusBadRequest, response.ErrWeakPassword)
		case errors.Is(err, repository.ErrDuplicate):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user.Public()})
}

// VerifyEmail godoc
// GET /api/v1/auth/verify-email?token=...
// Confirms the address behind a registration.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), token); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrTokenInvalid)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"verified": true})
}

// Login godoc
// POST /api/v1/auth/login
// Stage one: password check. Succeeds with a temp token that only unlocks
// the OTP endpoints; every failure mode returns the same 401.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tempToken, err := h.authService.LoginPassword(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tempToken":   tempToken,
		"requiresMFA": true,
	})
}

// SendOTP godoc
// POST /api/v1/auth/send-otp (Bearer temp token)
// Issues a fresh one-time code and dispatches it. A new code supersedes any
// previous one for the same account.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.RequestCode(c.Request.Context(), claims); err != nil {
		if errors.Is(err, service.ErrInvalidStage) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidStage)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sent": true})
}

// VerifyOTP godoc
// POST /api/v1/auth/verify-otp (Bearer temp token, {otp})
// Stage two: code check. Consumes the code and upgrades to a full session.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.VerifyOTCRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, user, err := h.authService.CompleteMFA(c.Request.Context(), claims, req.OTC, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveCode):
			response.Fail(c, http.StatusBadRequest, response.ErrNoActiveCode)
		case errors.Is(err, service.ErrCodeExpired):
			response.Fail(c, http.StatusBadRequest, response.ErrCodeExpired)
		case errors.Is(err, service.ErrCodeMismatch):
			response.Fail(c, http.StatusUnauthorized, response.ErrCodeMismatch)
		case errors.Is(err, service.ErrInvalidStage):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidStage)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user.Public(),
	})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	userID, err := claims.UserID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user.Public()})
}

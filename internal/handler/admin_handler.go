package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
	"github.com/secureexam/portal-backend/internal/response"
	"github.com/secureexam/portal-backend/internal/service"
	"github.com/secureexam/portal-backend/internal/validator"
)

// AdminHandler handles platform administration endpoints. Routes are
// admin-only; the role gate runs in middleware.
type AdminHandler struct {
	adminService *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Stats godoc
// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// ListUsers godoc
// GET /api/v1/admin/users?role=student
func (h *AdminHandler) ListUsers(c *gin.Context) {
	role := model.Role(c.Query("role"))
	switch role {
	case "", model.RoleStudent, model.RoleInstructor, model.RoleAdmin:
	default:
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	users, err := h.adminService.ListUsers(c.Request.Context(), role)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"users": users})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetUserActive godoc
// PATCH /api/v1/admin/users/:id/active
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req setActiveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.adminService.SetUserActive(c.Request.Context(), userID, *req.Active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"active": *req.Active})
}

// AuditLog godoc
// GET /api/v1/admin/audit?limit=100
func (h *AdminHandler) AuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.adminService.RecentAuditLog(c.Request.Context(), limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"audit_log": entries})
}

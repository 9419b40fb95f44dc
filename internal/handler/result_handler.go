package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/response"
	"github.com/secureexam/portal-backend/internal/service"
	"github.com/secureexam/portal-backend/internal/validator"
)

// ResultHandler handles result retrieval and admit card endpoints.
type ResultHandler struct {
	examService  *service.ExamService
	authzService *service.AuthzService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(examService *service.ExamService, authzService *service.AuthzService) *ResultHandler {
	return &ResultHandler{examService: examService, authzService: authzService}
}

func (h *ResultHandler) authorize(c *gin.Context, resource model.Resource, action model.Action, resourceID *uuid.UUID) bool {
	return authorizeRequest(c, h.authzService, resource, action, resourceID)
}

// MyResults godoc
// GET /api/v1/results/my
// The caller's results, split into published and pending. Pending entries
// never carry marks.
func (h *ResultHandler) MyResults(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}

	results, err := h.examService.MyResults(c.Request.Context(), studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetResult godoc
// GET /api/v1/results/:id
func (h *ResultHandler) GetResult(c *gin.Context) {
	resultID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceResults, model.ActionView, &resultID) {
		return
	}

	result, err := h.examService.GetResult(c.Request.Context(), resultID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ExamResults godoc
// GET /api/v1/exams/:id/results
// Every result for an exam plus aggregate stats, for the owning instructor.
func (h *ResultHandler) ExamResults(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionEdit, &examID) {
		return
	}

	results, err := h.examService.ResultsForExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"results": results.Results,
		"stats":   results.Stats,
	})
}

// AdmitCard godoc
// GET /api/v1/exams/:id/admit-card
// Hall-ticket payload for the enrolled caller.
func (h *ResultHandler) AdmitCard(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	studentID, ok := callerID(c)
	if !ok {
		return
	}

	card, err := h.examService.AdmitCard(c.Request.Context(), examID, studentID)
	if err != nil {
		if errors.Is(err, service.ErrNotEnrolled) {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"admit_card": card})
}

// VerifyAdmit godoc
// POST /api/v1/verify-admit
// Public endpoint for venue staff: recomputes and compares the admit code.
func (h *ResultHandler) VerifyAdmit(c *gin.Context) {
	var req model.VerifyAdmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.VerifyAdmit(c.Request.Context(), &req); err != nil {
		response.Success(c, http.StatusOK, gin.H{"valid": false})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"valid": true})
}

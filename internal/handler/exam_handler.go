package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/secureexam/portal-backend/internal/middleware"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
	"github.com/secureexam/portal-backend/internal/response"
	"github.com/secureexam/portal-backend/internal/service"
	"github.com/secureexam/portal-backend/internal/validator"
)

// ExamHandler handles exam authoring, enrollment, paper delivery,
// submission, and grading endpoints.
type ExamHandler struct {
	examService  *service.ExamService
	authzService *service.AuthzService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, authzService *service.AuthzService) *ExamHandler {
	return &ExamHandler{examService: examService, authzService: authzService}
}

// authorize runs one access check and writes the failure response itself.
// Returns false when the request must stop.
func (h *ExamHandler) authorize(c *gin.Context, resource model.Resource, action model.Action, resourceID *uuid.UUID) bool {
	return authorizeRequest(c, h.authzService, resource, action, resourceID)
}

func authorizeRequest(c *gin.Context, authz *service.AuthzService, resource model.Resource, action model.Action, resourceID *uuid.UUID) bool {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return false
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return false
	}

	err = authz.Authorize(c.Request.Context(), service.AccessRequest{
		UserID:     userID,
		Role:       claims.Role,
		Resource:   resource,
		Action:     action,
		ResourceID: resourceID,
	})
	if err != nil {
		failAuthz(c, err)
		return false
	}
	return true
}

// failAuthz maps an authorization denial to the wire response. Denial
// reasons stay internal except the window and publication cases, which
// the client needs to act on.
func failAuthz(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrOutsideWindow):
		response.Fail(c, http.StatusForbidden, response.ErrOutsideWindow)
	case errors.Is(err, service.ErrResultPending):
		response.Fail(c, http.StatusForbidden, response.ErrResultNotPublished)
	default:
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	id, err := claims.UserID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// Create godoc
// POST /api/v1/exams
// Creates an exam; the question set is encrypted before it ever hits disk.
func (h *ExamHandler) Create(c *gin.Context) {
	if !h.authorize(c, model.ResourceExam, model.ActionCreate, nil) {
		return
	}
	instructorID, ok := callerID(c)
	if !ok {
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), instructorID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// List godoc
// GET /api/v1/exams
// Lists the exams visible to the caller's role.
func (h *ExamHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	userID, ok := callerID(c)
	if !ok {
		return
	}

	exams, err := h.examService.List(c.Request.Context(), userID, claims.Role)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// Get godoc
// GET /api/v1/exams/:id
// Returns exam metadata, never question content.
func (h *ExamHandler) Get(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionView, &examID) {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// Delete godoc
// DELETE /api/v1/exams/:id
func (h *ExamHandler) Delete(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionDelete, &examID) {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetPaper godoc
// GET /api/v1/exams/:id/paper
// Delivers the question paper, answers stripped, base64-encoded.
// Enrollment and window checks run in the authorization layer.
func (h *ExamHandler) GetPaper(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionView, &examID) {
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), examID)
	if err != nil {
		if errors.Is(err, service.ErrIntegrity) {
			response.Fail(c, http.StatusInternalServerError, response.ErrIntegrity)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// Enroll godoc
// POST /api/v1/exams/:id/enroll
// Enrolls one student. Instructor-owned exams only.
func (h *ExamHandler) Enroll(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionEdit, &examID) {
		return
	}

	var req model.EnrollRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	enrollment, err := h.examService.Enroll(c.Request.Context(), examID, req.StudentID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, repository.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotStudent):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"enrollment": enrollment})
}

// BulkEnroll godoc
// POST /api/v1/exams/:id/enroll/bulk
func (h *ExamHandler) BulkEnroll(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionEdit, &examID) {
		return
	}

	var req model.BulkEnrollRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.examService.BulkEnroll(c.Request.Context(), examID, req.StudentIDs)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ListStudents godoc
// GET /api/v1/exams/:id/students
func (h *ExamHandler) ListStudents(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionEdit, &examID) {
		return
	}

	enrollments, err := h.examService.ListEnrollments(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"enrollments": enrollments})
}

// Submit godoc
// POST /api/v1/exams/:id/submit
// Accepts a student's answers once, inside the window.
func (h *ExamHandler) Submit(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceSubmission, model.ActionCreate, nil) {
		return
	}
	studentID, ok := callerID(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	submission, result, err := h.examService.Submit(c.Request.Context(), examID, studentID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotEnrolled):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		case errors.Is(err, service.ErrOutsideWindow):
			response.Fail(c, http.StatusForbidden, response.ErrOutsideWindow)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, service.ErrIntegrity):
			response.Fail(c, http.StatusInternalServerError, response.ErrIntegrity)
		case errors.Is(err, repository.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"submission":    submission,
		"result_status": result.Status,
	})
}

// ListSubmissions godoc
// GET /api/v1/exams/:id/submissions
func (h *ExamHandler) ListSubmissions(c *gin.Context) {
	examID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceExam, model.ActionEdit, &examID) {
		return
	}

	submissions, err := h.examService.ListSubmissions(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submissions": submissions})
}

// GetSubmission godoc
// GET /api/v1/submissions/:id
// Decrypted questions and answers for grading, or for a student reviewing
// their own work after the exam closes.
func (h *ExamHandler) GetSubmission(c *gin.Context) {
	submissionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceSubmission, model.ActionView, &submissionID) {
		return
	}

	view, err := h.examService.GetSubmissionDetail(c.Request.Context(), submissionID)
	if err != nil {
		if errors.Is(err, service.ErrIntegrity) {
			response.Fail(c, http.StatusInternalServerError, response.ErrIntegrity)
			return
		}
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": view})
}

// Grade godoc
// POST /api/v1/submissions/:id/grade
// Applies manual marks and publishes the result.
func (h *ExamHandler) Grade(c *gin.Context) {
	submissionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if !h.authorize(c, model.ResourceSubmission, model.ActionGrade, &submissionID) {
		return
	}
	graderID, ok := callerID(c)
	if !ok {
		return
	}

	var req model.GradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	req.SubmissionID = submissionID

	result, err := h.examService.Grade(c.Request.Context(), graderID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyGraded):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, repository.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrIntegrity):
			response.Fail(c, http.StatusInternalServerError, response.ErrIntegrity)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/secureexam/portal-backend/internal/clock"
	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

// Authorization denial reasons. Handlers log the specific reason for audit
// and surface a uniform 403-class response to the client.
var (
	ErrNoPermission  = errors.New("role has no permission for this action")
	ErrNotEnrolled   = errors.New("not enrolled in this exam")
	ErrOutsideWindow = errors.New("outside the exam time window")
	ErrNotOwner      = errors.New("resource is owned by another user")
	ErrTooEarly      = errors.New("submission detail not visible before exam end")
	ErrResultPending = errors.New("result not yet published")
)

// permissionMatrix is the static role × resource-category → actions table.
// Admins bypass the lookup entirely.
var permissionMatrix = map[model.Resource]map[model.Role][]model.Action{
	model.ResourceExam: {
		model.RoleStudent:    {model.ActionView},
		model.RoleInstructor: {model.ActionCreate, model.ActionView, model.ActionEdit, model.ActionDelete},
	},
	model.ResourceSubmission: {
		model.RoleStudent:    {model.ActionCreate, model.ActionView},
		model.RoleInstructor: {model.ActionView, model.ActionGrade},
	},
	model.ResourceResults: {
		model.RoleStudent:    {model.ActionView},
		model.RoleInstructor: {model.ActionView, model.ActionEdit},
	},
	model.ResourceUsers: {
		model.RoleStudent:    {model.ActionView},
		model.RoleInstructor: {model.ActionView},
	},
	model.ResourceSettings: {
		model.RoleInstructor: {model.ActionView},
	},
}

// roleAllows checks the static matrix only.
func roleAllows(role model.Role, resource model.Resource, action model.Action) bool {
	if role == model.RoleAdmin {
		return true
	}
	for _, a := range permissionMatrix[resource][role] {
		if a == action {
			return true
		}
	}
	return false
}

// Narrow read interfaces over persistence — the engine only ever reads
// resource metadata, never writes.

type examGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

type enrollmentGetter interface {
	GetByStudentAndExam(ctx context.Context, studentID, examID uuid.UUID) (*model.Enrollment, error)
}

type submissionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
}

type resultGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error)
}

// AccessRequest describes one authorization question: may this identity
// perform this action on this resource (optionally a specific record)?
type AccessRequest struct {
	UserID     uuid.UUID
	Role       model.Role
	Resource   model.Resource
	Action     model.Action
	ResourceID *uuid.UUID
}

// AuthzService evaluates static role permissions plus dynamic, record-level
// policy (enrollment, time window with grace, ownership).
type AuthzService struct {
	exams       examGetter
	enrollments enrollmentGetter
	submissions submissionGetter
	results     resultGetter
	clk         clock.Clock
	grace       time.Duration
	log         zerolog.Logger
}

// NewAuthzService creates a new AuthzService.
func NewAuthzService(
	cfg *config.Config,
	exams examGetter,
	enrollments enrollmentGetter,
	submissions submissionGetter,
	results resultGetter,
	clk clock.Clock,
	log zerolog.Logger,
) *AuthzService {
	return &AuthzService{
		exams:       exams,
		enrollments: enrollments,
		submissions: submissions,
		results:     results,
		clk:         clk,
		grace:       cfg.SubmitGrace,
		log:         log.With().Str("component", "authz").Logger(),
	}
}

// Authorize runs the static check first (no I/O), then the dynamic checks
// for the resource+action pairs that need them. The returned error is the
// most specific denial reason; repository.ErrNotFound when the record is absent.
func (s *AuthzService) Authorize(ctx context.Context, req AccessRequest) error {
	if req.Role == model.RoleAdmin {
		return nil
	}
	if !roleAllows(req.Role, req.Resource, req.Action) {
		return ErrNoPermission
	}
	if req.ResourceID == nil {
		return nil
	}

	var err error
	switch req.Resource {
	case model.ResourceExam:
		err = s.checkExam(ctx, req)
	case model.ResourceSubmission:
		err = s.checkSubmission(ctx, req)
	case model.ResourceResults:
		err = s.checkResult(ctx, req)
	}
	if err != nil {
		s.log.Info().
			Str("user_id", req.UserID.String()).
			Str("role", string(req.Role)).
			Str("resource", string(req.Resource)).
			Str("action", string(req.Action)).
			Str("resource_id", req.ResourceID.String()).
			Str("reason", err.Error()).
			Msg("access denied")
	}
	return err
}

func (s *AuthzService) checkExam(ctx context.Context, req AccessRequest) error {
	exam, err := s.exams.GetByID(ctx, *req.ResourceID)
	if err != nil {
		return repository.ErrNotFound
	}

	switch req.Role {
	case model.RoleStudent:
		if req.Action != model.ActionView {
			return ErrNoPermission
		}
		enr, err := s.enrollments.GetByStudentAndExam(ctx, req.UserID, exam.ID)
		if err != nil || enr.Status == model.EnrollmentWithdrawn {
			return ErrNotEnrolled
		}
		now := s.clk.Now()
		if now.Before(exam.StartTime) || now.After(exam.EndTime.Add(s.grace)) {
			return ErrOutsideWindow
		}
	case model.RoleInstructor:
		if exam.InstructorID != req.UserID {
			return ErrNotOwner
		}
	}
	return nil
}

func (s *AuthzService) checkSubmission(ctx context.Context, req AccessRequest) error {
	sub, err := s.submissions.GetByID(ctx, *req.ResourceID)
	if err != nil {
		return repository.ErrNotFound
	}
	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return repository.ErrNotFound
	}

	switch req.Role {
	case model.RoleStudent:
		if sub.StudentID != req.UserID {
			return ErrNotOwner
		}
		// Raw submission detail stays hidden until the exam closes.
		if s.clk.Now().Before(exam.EndTime) {
			return ErrTooEarly
		}
	case model.RoleInstructor:
		if exam.InstructorID != req.UserID {
			return ErrNotOwner
		}
	}
	return nil
}

func (s *AuthzService) checkResult(ctx context.Context, req AccessRequest) error {
	res, err := s.results.GetByID(ctx, *req.ResourceID)
	if err != nil {
		return repository.ErrNotFound
	}

	switch req.Role {
	case model.RoleStudent:
		if res.StudentID != req.UserID {
			return ErrNotOwner
		}
		if res.Status == model.ResultPending {
			return ErrResultPending
		}
	case model.RoleInstructor:
		exam, err := s.exams.GetByID(ctx, res.ExamID)
		if err != nil {
			return repository.ErrNotFound
		}
		if exam.InstructorID != req.UserID {
			return ErrNotOwner
		}
	}
	return nil
}

package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

// PlatformStats is the admin dashboard overview.
type PlatformStats struct {
	Students    int `json:"students"`
	Instructors int `json:"instructors"`
	Exams       int `json:"exams"`
	Submissions int `json:"submissions"`
}

// AdminService handles platform administration: overview stats, user
// management, and audit log access.
type AdminService struct {
	users       *repository.UserRepository
	exams       *repository.ExamRepository
	submissions *repository.SubmissionRepository
	auditLog    *repository.AuditRepository
	log         zerolog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	users *repository.UserRepository,
	exams *repository.ExamRepository,
	submissions *repository.SubmissionRepository,
	auditLog *repository.AuditRepository,
	log zerolog.Logger,
) *AdminService {
	return &AdminService{
		users:       users,
		exams:       exams,
		submissions: submissions,
		auditLog:    auditLog,
		log:         log.With().Str("component", "admin_service").Logger(),
	}
}

// Stats aggregates platform-wide counts.
func (s *AdminService) Stats(ctx context.Context) (*PlatformStats, error) {
	students, err := s.users.CountByRole(ctx, model.RoleStudent)
	if err != nil {
		return nil, err
	}
	instructors, err := s.users.CountByRole(ctx, model.RoleInstructor)
	if err != nil {
		return nil, err
	}
	exams, err := s.exams.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissions.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		Students:    students,
		Instructors: instructors,
		Exams:       exams,
		Submissions: submissions,
	}, nil
}

// ListUsers retrieves users, optionally filtered by role.
func (s *AdminService) ListUsers(ctx context.Context, role model.Role) ([]model.PublicUser, error) {
	var (
		users []model.User
		err   error
	)
	if role == "" {
		users, err = s.users.ListAll(ctx)
	} else {
		users, err = s.users.ListByRole(ctx, role)
	}
	if err != nil {
		return nil, err
	}

	public := make([]model.PublicUser, 0, len(users))
	for i := range users {
		public = append(public, users[i].Public())
	}
	return public, nil
}

// SetUserActive activates or deactivates an account. Deactivated accounts
// fail stage-one login with the same response as bad credentials.
func (s *AdminService) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id.String()).Bool("active", active).Msg("user activation changed")
	return nil
}

// RecentAuditLog returns the newest audit entries.
func (s *AdminService) RecentAuditLog(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.auditLog.ListRecent(ctx, limit)
}

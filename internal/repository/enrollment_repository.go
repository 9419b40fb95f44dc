package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureexam/portal-backend/internal/model"
)

// EnrollmentRepository handles enrollment data access. The table carries a
// UNIQUE (student_id, exam_id) constraint; violations surface as ErrDuplicate.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Create inserts a new enrollment in the "enrolled" state.
func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	if e.Status == "" {
		e.Status = model.EnrollmentEnrolled
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO enrollments (student_id, exam_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, enrolled_at`,
		e.StudentID, e.ExamID, e.Status,
	).Scan(&e.ID, &e.EnrolledAt)
	return translate(err)
}

// GetByStudentAndExam retrieves the enrollment for a (student, exam) pair.
func (r *EnrollmentRepository) GetByStudentAndExam(ctx context.Context, studentID, examID uuid.UUID) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, exam_id, status, enrolled_at
		 FROM enrollments WHERE student_id = $1 AND exam_id = $2`,
		studentID, examID,
	).Scan(&e.ID, &e.StudentID, &e.ExamID, &e.Status, &e.EnrolledAt)
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// MarkCompleted transitions enrolled → completed. The WHERE guard makes the
// transition happen exactly once; a second attempt affects zero rows.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, studentID, examID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE enrollments SET status = $1
		 WHERE student_id = $2 AND exam_id = $3 AND status = $4`,
		model.EnrollmentCompleted, studentID, examID, model.EnrollmentEnrolled)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByExam retrieves all enrollments for an exam.
func (r *EnrollmentRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Enrollment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, exam_id, status, enrolled_at
		 FROM enrollments WHERE exam_id = $1 ORDER BY enrolled_at`, examID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.ExamID, &e.Status, &e.EnrolledAt); err != nil {
			return nil, translate(err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, translate(rows.Err())
}

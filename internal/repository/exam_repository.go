package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureexam/portal-backend/internal/model"
)

const examColumns = `id, title, description, instructor_id, encrypted_questions,
	content_hash, start_time, end_time, total_marks, passing_marks, created_at, updated_at`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row interface{ Scan(dest ...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.InstructorID,
		&e.EncryptedQuestions, &e.ContentHash, &e.StartTime, &e.EndTime,
		&e.TotalMarks, &e.PassingMarks, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// GetByID retrieves an exam by id.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, instructor_id, encrypted_questions,
		                    content_hash, start_time, end_time, total_marks, passing_marks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.InstructorID, e.EncryptedQuestions,
		e.ContentHash, e.StartTime, e.EndTime, e.TotalMarks, e.PassingMarks,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return translate(err)
}

// Delete removes an exam.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByInstructor retrieves exams created by one instructor, newest first.
func (r *ExamRepository) ListByInstructor(ctx context.Context, instructorID uuid.UUID) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE instructor_id = $1
		 ORDER BY created_at DESC`, instructorID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectExams(rows)
}

// ListAll retrieves every exam, newest first. Admin use only.
func (r *ExamRepository) ListAll(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams ORDER BY created_at DESC`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectExams(rows)
}

// ListByEnrolledStudent retrieves exams a student is enrolled in, along with
// the enrollment status, newest first.
func (r *ExamRepository) ListByEnrolledStudent(ctx context.Context, studentID uuid.UUID) ([]model.Exam, []model.EnrollmentStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, e.description, e.instructor_id, e.encrypted_questions,
		        e.content_hash, e.start_time, e.end_time, e.total_marks, e.passing_marks,
		        e.created_at, e.updated_at, en.status
		 FROM exams e
		 JOIN enrollments en ON en.exam_id = e.id
		 WHERE en.student_id = $1
		 ORDER BY e.created_at DESC`, studentID)
	if err != nil {
		return nil, nil, translate(err)
	}
	defer rows.Close()

	var exams []model.Exam
	var statuses []model.EnrollmentStatus
	for rows.Next() {
		var e model.Exam
		var st model.EnrollmentStatus
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.InstructorID,
			&e.EncryptedQuestions, &e.ContentHash, &e.StartTime, &e.EndTime,
			&e.TotalMarks, &e.PassingMarks, &e.CreatedAt, &e.UpdatedAt, &st); err != nil {
			return nil, nil, translate(err)
		}
		exams = append(exams, e)
		statuses = append(statuses, st)
	}
	return exams, statuses, translate(rows.Err())
}

// CountAll counts every exam.
func (r *ExamRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`).Scan(&n)
	return n, translate(err)
}

func collectExams(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.Exam, error) {
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, translate(rows.Err())
}

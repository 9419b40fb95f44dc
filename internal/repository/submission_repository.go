package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureexam/portal-backend/internal/model"
)

const submissionColumns = `id, student_id, exam_id, encrypted_answers, answers_hash,
	submitted_at, graded, graded_by, graded_at`

// SubmissionRepository handles submission data access. UNIQUE
// (student_id, exam_id) enforces at-most-one submission per student per
// exam; a second insert surfaces as ErrDuplicate.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

func scanSubmission(row interface{ Scan(dest ...any) error }) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.StudentID, &s.ExamID, &s.EncryptedAnswers,
		&s.AnswersHash, &s.SubmittedAt, &s.Graded, &s.GradedBy, &s.GradedAt)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

// Create inserts a new submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (student_id, exam_id, encrypted_answers, answers_hash, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		s.StudentID, s.ExamID, s.EncryptedAnswers, s.AnswersHash, s.SubmittedAt,
	).Scan(&s.ID)
	return translate(err)
}

// GetByID retrieves a submission by id.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// ListByExam retrieves all submissions for an exam, newest first.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 ORDER BY submitted_at DESC`, examID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, translate(rows.Err())
}

// MarkGraded records who graded the submission and when.
func (r *SubmissionRepository) MarkGraded(ctx context.Context, id uuid.UUID, gradedBy uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE submissions SET graded = TRUE, graded_by = $1, graded_at = $2 WHERE id = $3`,
		gradedBy, at, id)
	return translate(err)
}

// CountAll counts every submission.
func (r *SubmissionRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n)
	return n, translate(err)
}

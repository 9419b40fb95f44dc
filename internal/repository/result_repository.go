package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureexam/portal-backend/internal/model"
)

const resultColumns = `id, student_id, exam_id, submission_id, total_marks,
	marks_obtained, percentage, grade, status, graded_answers, graded_by, graded_at`

// ResultRepository handles result data access. Graded answers are stored
// as a JSONB document alongside the aggregate marks.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func scanResult(row interface{ Scan(dest ...any) error }) (*model.Result, error) {
	res := &model.Result{}
	var gradedAnswers []byte
	err := row.Scan(&res.ID, &res.StudentID, &res.ExamID, &res.SubmissionID,
		&res.TotalMarks, &res.MarksObtained, &res.Percentage, &res.Grade,
		&res.Status, &gradedAnswers, &res.GradedBy, &res.GradedAt)
	if err != nil {
		return nil, translate(err)
	}
	if err := json.Unmarshal(gradedAnswers, &res.GradedAnswers); err != nil {
		return nil, err
	}
	return res, nil
}

// Create inserts a new result.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	gradedAnswers, err := json.Marshal(res.GradedAnswers)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO results (student_id, exam_id, submission_id, total_marks,
		                      marks_obtained, percentage, grade, status, graded_answers, graded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		res.StudentID, res.ExamID, res.SubmissionID, res.TotalMarks,
		res.MarksObtained, res.Percentage, res.Grade, res.Status, gradedAnswers, res.GradedAt,
	).Scan(&res.ID)
	return translate(err)
}

// GetByID retrieves a result by id.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results WHERE id = $1`, id))
}

// GetBySubmission retrieves the result derived from one submission.
func (r *ResultRepository) GetBySubmission(ctx context.Context, submissionID uuid.UUID) (*model.Result, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results WHERE submission_id = $1`, submissionID))
}

// Update rewrites the grading outcome after manual grading.
func (r *ResultRepository) Update(ctx context.Context, res *model.Result) error {
	gradedAnswers, err := json.Marshal(res.GradedAnswers)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE results
		 SET marks_obtained = $1, percentage = $2, grade = $3, status = $4,
		     graded_answers = $5, graded_by = $6, graded_at = $7
		 WHERE id = $8`,
		res.MarksObtained, res.Percentage, res.Grade, res.Status,
		gradedAnswers, res.GradedBy, res.GradedAt, res.ID)
	return translate(err)
}

// ListByStudent retrieves all results for a student, newest grading first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE student_id = $1 ORDER BY graded_at DESC`, studentID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectResults(rows)
}

// ListByExam retrieves all results for an exam, best percentage first.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE exam_id = $1 ORDER BY percentage DESC`, examID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func collectResults(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.Result, error) {
	var results []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, translate(rows.Err())
}

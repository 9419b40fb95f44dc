package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus enumerates result publication states.
type ResultStatus string

const (
	// ResultPending means at least one answer still awaits manual grading.
	ResultPending ResultStatus = "pending"
	// ResultPublished means every answer is graded and the result is visible.
	ResultPublished ResultStatus = "published"
)

// GradedAnswer is the per-question grading outcome.
type GradedAnswer struct {
	QuestionIndex         int    `json:"question_index"`
	StudentAnswer         string `json:"student_answer"`
	IsCorrect             bool   `json:"is_correct"`
	MarksObtained         int    `json:"marks_obtained"`
	RequiresManualGrading bool   `json:"requires_manual_grading"`
	Feedback              string `json:"feedback,omitempty"`
}

// Result is the graded outcome derived from a submission.
type Result struct {
	ID            uuid.UUID      `json:"id"`
	StudentID     uuid.UUID      `json:"student_id"`
	ExamID        uuid.UUID      `json:"exam_id"`
	SubmissionID  uuid.UUID      `json:"submission_id"`
	TotalMarks    int            `json:"total_marks"`
	MarksObtained int            `json:"marks_obtained"`
	Percentage    float64        `json:"percentage"`
	Grade         string         `json:"grade"`
	Status        ResultStatus   `json:"status"`
	GradedAnswers []GradedAnswer `json:"graded_answers"`
	GradedBy      *uuid.UUID     `json:"graded_by,omitempty"`
	GradedAt      time.Time      `json:"graded_at"`
}

// ManualGrade is an instructor's mark for one manually-graded answer.
type ManualGrade struct {
	MarksAwarded int    `json:"marks_awarded" binding:"min=0"`
	Feedback     string `json:"feedback" binding:"omitempty,max=2000"`
}

// GradeRequest applies manual grades to a submission. Keys are question
// indexes as JSON object keys; the submission id comes from the route.
type GradeRequest struct {
	SubmissionID uuid.UUID              `json:"-"`
	Grades       map[string]ManualGrade `json:"grades" binding:"required,min=1"`
}

// ExamStats aggregates graded results for an exam.
type ExamStats struct {
	TotalStudents     int     `json:"total_students"`
	Graded            int     `json:"graded"`
	Pending           int     `json:"pending"`
	Passed            int     `json:"passed"`
	AveragePercentage float64 `json:"average_percentage"`
	HighestScore      int     `json:"highest_score"`
	LowestScore       int     `json:"lowest_score"`
}

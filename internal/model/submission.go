package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AnswerSet maps question index (as JSON object key) to the student's answer.
type AnswerSet map[string]string

// Get returns the answer for a question index, empty string if unanswered.
func (a AnswerSet) Get(idx int) string {
	return a[strconv.Itoa(idx)]
}

// Submission holds a student's encrypted answers for one exam.
// Unique per (student, exam) — at most one submission each.
type Submission struct {
	ID               uuid.UUID  `json:"id"`
	StudentID        uuid.UUID  `json:"student_id"`
	ExamID           uuid.UUID  `json:"exam_id"`
	EncryptedAnswers string     `json:"-"`
	AnswersHash      string     `json:"answers_hash"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	Graded           bool       `json:"graded"`
	GradedBy         *uuid.UUID `json:"graded_by,omitempty"`
	GradedAt         *time.Time `json:"graded_at,omitempty"`
}

// SubmitRequest carries the raw answers for an exam submission.
type SubmitRequest struct {
	Answers AnswerSet `json:"answers" binding:"required"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

// ManualGradingRequired reports whether the question type needs human judgment.
func (t QuestionType) ManualGradingRequired() bool {
	return t == QuestionShortAnswer || t == QuestionEssay
}

// Question is the authoring-side representation, correct answer included.
// It only ever exists in plaintext inside a request or after decryption.
type Question struct {
	QuestionText  string       `json:"question_text" binding:"required,min=1"`
	QuestionType  QuestionType `json:"question_type" binding:"required,oneof=multiple_choice true_false short_answer essay"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Marks         int          `json:"marks" binding:"required,min=1"`
}

// Exam represents an exam record. Question content is stored encrypted;
// ContentHash fingerprints the plaintext question set at creation time.
type Exam struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	InstructorID       uuid.UUID `json:"instructor_id"`
	EncryptedQuestions string    `json:"-"`
	ContentHash        string    `json:"-"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	TotalMarks         int       `json:"total_marks"`
	PassingMarks       int       `json:"passing_marks"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title        string     `json:"title" binding:"required,min=3,max=255"`
	Description  string     `json:"description" binding:"omitempty,max=2000"`
	StartTime    time.Time  `json:"start_time" binding:"required"`
	EndTime      time.Time  `json:"end_time" binding:"required,gtfield=StartTime"`
	TotalMarks   int        `json:"total_marks" binding:"omitempty,min=1"`
	PassingMarks int        `json:"passing_marks" binding:"omitempty,min=0"`
	Questions    []Question `json:"questions" binding:"required,min=1,dive"`
}

// QuestionForStudent is a question with the correct answer stripped.
type QuestionForStudent struct {
	Index        int          `json:"index"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options"`
	Marks        int          `json:"marks"`
}

// ExamPaper is the student-facing exam payload.
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalMarks      int                  `json:"total_marks"`
	EndTime         time.Time            `json:"end_time"`
	Questions       []QuestionForStudent `json:"questions"`
}

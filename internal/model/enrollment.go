package model

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus enumerates enrollment states.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
)

// Enrollment ties a student to an exam. Unique per (student, exam).
type Enrollment struct {
	ID         uuid.UUID        `json:"id"`
	StudentID  uuid.UUID        `json:"student_id"`
	ExamID     uuid.UUID        `json:"exam_id"`
	Status     EnrollmentStatus `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"`
}

// EnrollRequest enrolls a single student.
type EnrollRequest struct {
	StudentID uuid.UUID `json:"student_id" binding:"required"`
}

// BulkEnrollRequest enrolls multiple students at once.
type BulkEnrollRequest struct {
	StudentIDs []uuid.UUID `json:"student_ids" binding:"required,min=1"`
}

// BulkEnrollResult reports per-student outcomes of a bulk enrollment.
type BulkEnrollResult struct {
	Enrolled []uuid.UUID         `json:"enrolled"`
	Failed   []BulkEnrollFailure `json:"failed"`
}

// BulkEnrollFailure names why one student could not be enrolled.
type BulkEnrollFailure struct {
	StudentID uuid.UUID `json:"student_id"`
	Reason    string    `json:"reason"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// AdmitCard is the hall-ticket payload a student presents at an exam.
// Code is deterministic for a (student, exam) pair so it can be
// re-verified without storing it.
type AdmitCard struct {
	StudentID   uuid.UUID `json:"student_id"`
	StudentName string    `json:"student_name"`
	ExamID      uuid.UUID `json:"exam_id"`
	ExamTitle   string    `json:"exam_title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Code        string    `json:"code"`
}

// VerifyAdmitRequest checks an admit card code presented at the venue.
type VerifyAdmitRequest struct {
	StudentID uuid.UUID `json:"student_id" binding:"required"`
	ExamID    uuid.UUID `json:"exam_id" binding:"required"`
	Code      string    `json:"code" binding:"required"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a security-relevant operation.
type AuditAction string

const (
	AuditRegister    AuditAction = "register"
	AuditVerifyEmail AuditAction = "verify_email"
	AuditLoginStage1 AuditAction = "login_password"
	AuditLoginStage2 AuditAction = "login_otc"
	AuditCreateExam  AuditAction = "create_exam"
	AuditSubmitExam  AuditAction = "submit_exam"
	AuditGradeExam   AuditAction = "grade_exam"
)

// AuditOutcome is success or failure.
type AuditOutcome string

const (
	AuditSuccess AuditOutcome = "success"
	AuditFailure AuditOutcome = "failure"
)

// AuditEntry records the outcome of a security-relevant operation.
// Reason carries the specific internal failure cause; it is never
// surfaced to clients.
type AuditEntry struct {
	ID           uuid.UUID    `json:"id"`
	UserID       *uuid.UUID   `json:"user_id,omitempty"`
	Action       AuditAction  `json:"action"`
	ResourceType string       `json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID   `json:"resource_id,omitempty"`
	Outcome      AuditOutcome `json:"outcome"`
	Reason       string       `json:"reason,omitempty"`
	IPAddress    string       `json:"ip_address,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

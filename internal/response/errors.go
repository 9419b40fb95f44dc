package response

// ErrCode is a typed error code enum for consistent API error identification.
// Authentication and authorization failures deliberately map to generic
// messages — the specific reason lives only in the server-side audit trail.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrInvalidStage       ErrCode = "INVALID_STAGE"
	ErrStaleToken         ErrCode = "STALE_TOKEN"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrNoActiveCode       ErrCode = "NO_ACTIVE_CODE"
	ErrCodeExpired        ErrCode = "CODE_EXPIRED"
	ErrCodeMismatch       ErrCode = "CODE_MISMATCH"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrWeakPassword   ErrCode = "WEAK_PASSWORD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrOutsideWindow      ErrCode = "EXAM_NOT_AVAILABLE"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"
	ErrResultNotPublished ErrCode = "RESULT_NOT_PUBLISHED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrIntegrity ErrCode = "INTEGRITY_ERROR"
	ErrInternal  ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrInvalidStage:
		return "This token is not valid for the requested operation."
	case ErrStaleToken:
		return "Session expired. Please login again."
	case ErrTokenRequired:
		return "Authentication token required."
	case ErrTokenInvalid:
		return "Invalid authentication token."
	case ErrNoActiveCode:
		return "No verification code is active. Please request a new one."
	case ErrCodeExpired:
		return "Verification code expired."
	case ErrCodeMismatch:
		return "Invalid verification code."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to perform this action."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrWeakPassword:
		return "Password must be at least 8 characters with uppercase, lowercase, number, and special character."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrOutsideWindow:
		return "Exam is not available at this time."
	case ErrAlreadySubmitted:
		return "You have already submitted this exam."
	case ErrResultNotPublished:
		return "Result not yet published."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrIntegrity:
		return "Stored content could not be read."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

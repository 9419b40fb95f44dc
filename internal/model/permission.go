package model

// Resource is a coarse resource category used by the static permission matrix.
type Resource string

const (
	ResourceExam       Resource = "exam"
	ResourceSubmission Resource = "submission"
	ResourceResults    Resource = "results"
	ResourceUsers      Resource = "users"
	ResourceSettings   Resource = "settings"
)

// Action is an operation on a resource category.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionGrade  Action = "grade"
)

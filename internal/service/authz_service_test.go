package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureexam/portal-backend/internal/clock"
	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

// ─── Fake getters ───────────────────────────────────────────────────────────

type fakeExamGetter map[uuid.UUID]*model.Exam

func (f fakeExamGetter) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	if e, ok := f[id]; ok {
		return e, nil
	}
	return nil, repository.ErrNotFound
}

type enrollmentKey struct{ student, exam uuid.UUID }

type fakeEnrollmentGetter map[enrollmentKey]*model.Enrollment

func (f fakeEnrollmentGetter) GetByStudentAndExam(_ context.Context, studentID, examID uuid.UUID) (*model.Enrollment, error) {
	if e, ok := f[enrollmentKey{studentID, examID}]; ok {
		return e, nil
	}
	return nil, repository.ErrNotFound
}

type fakeSubmissionGetter map[uuid.UUID]*model.Submission

func (f fakeSubmissionGetter) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

type fakeResultGetter map[uuid.UUID]*model.Result

func (f fakeResultGetter) GetByID(_ context.Context, id uuid.UUID) (*model.Result, error) {
	if r, ok := f[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

// ─── Harness ────────────────────────────────────────────────────────────────

type authzHarness struct {
	svc         *AuthzService
	exams       fakeExamGetter
	enrollments fakeEnrollmentGetter
	submissions fakeSubmissionGetter
	results     fakeResultGetter
	clk         *clock.Fixed
	now         time.Time
}

func newAuthzHarness() *authzHarness {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	h := &authzHarness{
		exams:       fakeExamGetter{},
		enrollments: fakeEnrollmentGetter{},
		submissions: fakeSubmissionGetter{},
		results:     fakeResultGetter{},
		clk:         &clock.Fixed{T: now},
		now:         now,
	}
	cfg := &config.Config{SubmitGrace: 5 * time.Minute}
	h.svc = NewAuthzService(cfg, h.exams, h.enrollments, h.submissions, h.results, h.clk, zerolog.Nop())
	return h
}

// openExam adds an exam whose window contains the harness clock.
func (h *authzHarness) openExam(instructorID uuid.UUID) *model.Exam {
	exam := &model.Exam{
		ID:           uuid.New(),
		InstructorID: instructorID,
		StartTime:    h.now.Add(-time.Hour),
		EndTime:      h.now.Add(time.Hour),
	}
	h.exams[exam.ID] = exam
	return exam
}

func (h *authzHarness) enroll(studentID, examID uuid.UUID, status model.EnrollmentStatus) {
	h.enrollments[enrollmentKey{studentID, examID}] = &model.Enrollment{
		ID: uuid.New(), StudentID: studentID, ExamID: examID, Status: status,
	}
}

func studentView(userID uuid.UUID, resource model.Resource, id *uuid.UUID) AccessRequest {
	return AccessRequest{UserID: userID, Role: model.RoleStudent, Resource: resource, Action: model.ActionView, ResourceID: id}
}

// ─── Static matrix ──────────────────────────────────────────────────────────

func TestStaticMatrix(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	userID := uuid.New()

	cases := []struct {
		name     string
		role     model.Role
		resource model.Resource
		action   model.Action
		allowed  bool
	}{
		{"student cannot create exams", model.RoleStudent, model.ResourceExam, model.ActionCreate, false},
		{"student can submit", model.RoleStudent, model.ResourceSubmission, model.ActionCreate, true},
		{"student cannot grade", model.RoleStudent, model.ResourceSubmission, model.ActionGrade, false},
		{"instructor can create exams", model.RoleInstructor, model.ResourceExam, model.ActionCreate, true},
		{"instructor can grade", model.RoleInstructor, model.ResourceSubmission, model.ActionGrade, true},
		{"instructor cannot edit users", model.RoleInstructor, model.ResourceUsers, model.ActionEdit, false},
		{"student cannot view settings", model.RoleStudent, model.ResourceSettings, model.ActionView, false},
		{"instructor can view settings", model.RoleInstructor, model.ResourceSettings, model.ActionView, true},
	}
	for _, tc := range cases {
		err := h.svc.Authorize(ctx, AccessRequest{
			UserID: userID, Role: tc.role, Resource: tc.resource, Action: tc.action,
		})
		if tc.allowed {
			assert.NoError(t, err, tc.name)
		} else {
			assert.ErrorIs(t, err, ErrNoPermission, tc.name)
		}
	}
}

func TestAdminBypassesEverything(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	exam := h.openExam(uuid.New())

	// Admin needs neither enrollment nor ownership.
	err := h.svc.Authorize(ctx, AccessRequest{
		UserID: uuid.New(), Role: model.RoleAdmin,
		Resource: model.ResourceExam, Action: model.ActionDelete, ResourceID: &exam.ID,
	})
	assert.NoError(t, err)
}

// ─── Dynamic: exam access ───────────────────────────────────────────────────

func TestStudentExamAccessRequiresEnrollment(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	student := uuid.New()
	exam := h.openExam(uuid.New())

	assert.ErrorIs(t, h.svc.Authorize(ctx, studentView(student, model.ResourceExam, &exam.ID)), ErrNotEnrolled)

	h.enroll(student, exam.ID, model.EnrollmentEnrolled)
	assert.NoError(t, h.svc.Authorize(ctx, studentView(student, model.ResourceExam, &exam.ID)))
}

func TestWithdrawnEnrollmentDeniesAccess(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	student := uuid.New()
	exam := h.openExam(uuid.New())
	h.enroll(student, exam.ID, model.EnrollmentWithdrawn)

	assert.ErrorIs(t, h.svc.Authorize(ctx, studentView(student, model.ResourceExam, &exam.ID)), ErrNotEnrolled)
}

func TestExamWindowWithGrace(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	student := uuid.New()
	instructor := uuid.New()

	exam := &model.Exam{
		ID:           uuid.New(),
		InstructorID: instructor,
		StartTime:    h.now,
		EndTime:      h.now.Add(time.Hour),
	}
	h.exams[exam.ID] = exam
	h.enroll(student, exam.ID, model.EnrollmentEnrolled)

	req := studentView(student, model.ResourceExam, &exam.ID)

	// One second before start: too early.
	h.clk.T = h.now.Add(-time.Second)
	assert.ErrorIs(t, h.svc.Authorize(ctx, req), ErrOutsideWindow)

	// Exactly at start.
	h.clk.T = h.now
	assert.NoError(t, h.svc.Authorize(ctx, req))

	// Inside the 5-minute grace period past the end.
	h.clk.T = h.now.Add(time.Hour + 4*time.Minute)
	assert.NoError(t, h.svc.Authorize(ctx, req))

	// One second past end+grace: closed.
	h.clk.T = h.now.Add(time.Hour + 5*time.Minute + time.Second)
	assert.ErrorIs(t, h.svc.Authorize(ctx, req), ErrOutsideWindow)
}

func TestInstructorExamOwnership(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	owner := uuid.New()
	exam := h.openExam(owner)

	ownerReq := AccessRequest{
		UserID: owner, Role: model.RoleInstructor,
		Resource: model.ResourceExam, Action: model.ActionEdit, ResourceID: &exam.ID,
	}
	assert.NoError(t, h.svc.Authorize(ctx, ownerReq))

	otherReq := ownerReq
	otherID := uuid.New()
	otherReq.UserID = otherID
	assert.ErrorIs(t, h.svc.Authorize(ctx, otherReq), ErrNotOwner)
}

func TestMissingRecordDenies(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	missing := uuid.New()

	err := h.svc.Authorize(ctx, studentView(uuid.New(), model.ResourceExam, &missing))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// ─── Dynamic: submission access ─────────────────────────────────────────────

func TestStudentSubmissionHiddenUntilExamEnds(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	student := uuid.New()
	exam := h.openExam(uuid.New())

	sub := &model.Submission{ID: uuid.New(), StudentID: student, ExamID: exam.ID}
	h.submissions[sub.ID] = sub

	req := studentView(student, model.ResourceSubmission, &sub.ID)

	// Exam still open: detail withheld.
	assert.ErrorIs(t, h.svc.Authorize(ctx, req), ErrTooEarly)

	// After the end time it opens up.
	h.clk.T = exam.EndTime.Add(time.Minute)
	assert.NoError(t, h.svc.Authorize(ctx, req))

	// Someone else's submission stays off limits.
	otherReq := studentView(uuid.New(), model.ResourceSubmission, &sub.ID)
	assert.ErrorIs(t, h.svc.Authorize(ctx, otherReq), ErrNotOwner)
}

func TestInstructorSubmissionAccessNeedsExamOwnership(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	owner := uuid.New()
	exam := h.openExam(owner)

	sub := &model.Submission{ID: uuid.New(), StudentID: uuid.New(), ExamID: exam.ID}
	h.submissions[sub.ID] = sub

	gradeReq := AccessRequest{
		UserID: owner, Role: model.RoleInstructor,
		Resource: model.ResourceSubmission, Action: model.ActionGrade, ResourceID: &sub.ID,
	}
	assert.NoError(t, h.svc.Authorize(ctx, gradeReq))

	otherReq := gradeReq
	otherReq.UserID = uuid.New()
	assert.ErrorIs(t, h.svc.Authorize(ctx, otherReq), ErrNotOwner)
}

// ─── Dynamic: result access ─────────────────────────────────────────────────

func TestStudentResultAccess(t *testing.T) {
	h := newAuthzHarness()
	ctx := context.Background()
	student := uuid.New()
	exam := h.openExam(uuid.New())

	pending := &model.Result{ID: uuid.New(), StudentID: student, ExamID: exam.ID, Status: model.ResultPending}
	published := &model.Result{ID: uuid.New(), StudentID: student, ExamID: exam.ID, Status: model.ResultPublished}
	h.results[pending.ID] = pending
	h.results[published.ID] = published

	// Pending results stay invisible even to their owner.
	err := h.svc.Authorize(ctx, studentView(student, model.ResourceResults, &pending.ID))
	assert.ErrorIs(t, err, ErrResultPending)

	require.NoError(t, h.svc.Authorize(ctx, studentView(student, model.ResourceResults, &published.ID)))

	// Published or not, another student's result is off limits.
	err = h.svc.Authorize(ctx, studentView(uuid.New(), model.ResourceResults, &published.ID))
	assert.ErrorIs(t, err, ErrNotOwner)
}

package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/repository"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

type fakeAssignmentStore struct {
	assignments map[string]*models.Assignment
	submissions map[string]*models.SubmissionDetail
	feedback    map[string]*models.Feedback
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{
		assignments: map[string]*models.Assignment{},
		submissions: map[string]*models.SubmissionDetail{},
		feedback:    map[string]*models.Feedback{},
	}
}

func (f *fakeAssignmentStore) FindByID(_ context.Context, id string) (*models.Assignment, error) {
	if a, ok := f.assignments[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignmentStore) ListByCourse(_ context.Context, courseID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.assignments {
		if a.CourseID == courseID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAssignmentStore) Create(_ context.Context, a *models.Assignment) error {
	a.ID = uuid.NewString()
	f.assignments[a.ID] = a
	return nil
}

func (f *fakeAssignmentStore) Delete(_ context.Context, id string) error {
	if _, ok := f.assignments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.assignments, id)
	return nil
}

func (f *fakeAssignmentStore) FindSubmissionByID(_ context.Context, id string) (*models.SubmissionDetail, error) {
	if s, ok := f.submissions[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignmentStore) ListSubmissionsByAssignment(_ context.Context, assignmentID string) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range f.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, s.Submission)
		}
	}
	return out, nil
}

func (f *fakeAssignmentStore) CreateSubmission(_ context.Context, s *models.Submission) error {
	for _, existing := range f.submissions {
		if existing.AssignmentID == s.AssignmentID && existing.StudentID == s.StudentID {
			return repository.ErrDuplicateRow
		}
	}
	s.ID = uuid.NewString()
	assignment := f.assignments[s.AssignmentID]
	f.submissions[s.ID] = &models.SubmissionDetail{Submission: *s, CourseID: assignment.CourseID}
	return nil
}

func (f *fakeAssignmentStore) FindFeedbackBySubmission(_ context.Context, submissionID string) (*models.Feedback, error) {
	if fb, ok := f.feedback[submissionID]; ok {
		return fb, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignmentStore) CreateFeedback(_ context.Context, fb *models.Feedback) error {
	if _, ok := f.feedback[fb.SubmissionID]; ok {
		return repository.ErrDuplicateRow
	}
	fb.ID = uuid.NewString()
	f.feedback[fb.SubmissionID] = fb
	return nil
}

const (
	testInstructorID  = "66666666-6666-4666-8666-666666666666"
	otherInstructorID = "77777777-7777-4777-8777-777777777777"
	testAssignmentID  = "88888888-8888-4888-8888-888888888888"
	testSubmissionID  = "99999999-9999-4999-8999-999999999999"
	testAdminID       = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
)

type assignmentFixture struct {
	svc   *AssignmentService
	store *fakeAssignmentStore
}

// Fixture: one free published course owned by testInstructorID, with one
// assignment, and testStudentID enrolled.
func newAssignmentFixture() *assignmentFixture {
	store := newFakeAssignmentStore()
	store.assignments[testAssignmentID] = &models.Assignment{
		ID: testAssignmentID, CourseID: testCourseID, Title: "Week 1", MaxScore: 100,
	}
	courses := &fakeCourseReader{courses: map[string]*models.Course{
		testCourseID: {ID: testCourseID, InstructorID: testInstructorID, IsPublished: true},
	}}
	enrollments := &stubEnrollmentReader{enrolled: map[string]bool{
		testStudentID + "/" + testCourseID: true,
	}}
	entitlement := NewEntitlementService(&stubPaymentReader{}, enrollments, nil)
	svc := NewAssignmentService(store, courses, entitlement, nil, nil)
	return &assignmentFixture{svc: svc, store: store}
}

func (fx *assignmentFixture) seedSubmission() {
	fx.store.submissions[testSubmissionID] = &models.SubmissionDetail{
		Submission: models.Submission{
			ID:           testSubmissionID,
			AssignmentID: testAssignmentID,
			StudentID:    testStudentID,
			Content:      "my answer",
		},
		CourseID:     testCourseID,
		InstructorID: testInstructorID,
	}
}

func TestCreateAssignment(t *testing.T) {
	fx := newAssignmentFixture()
	owner := Principal{UserID: testInstructorID, Role: models.RoleInstructor}

	assignment, err := fx.svc.Create(context.Background(), owner, CreateAssignmentRequest{
		CourseID: testCourseID,
		Title:    "Week 2",
		MaxScore: 50,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, assignment.ID)

	// Other instructors cannot attach coursework.
	_, err = fx.svc.Create(context.Background(), Principal{UserID: otherInstructorID, Role: models.RoleInstructor}, CreateAssignmentRequest{
		CourseID: testCourseID,
		Title:    "Week 3",
		MaxScore: 50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestListAssignmentsRequiresCourseAccess(t *testing.T) {
	fx := newAssignmentFixture()

	_, err := fx.svc.ListByCourse(context.Background(), Principal{UserID: otherStudentID, Role: models.RoleStudent}, testCourseID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)

	list, err := fx.svc.ListByCourse(context.Background(), Principal{UserID: testStudentID, Role: models.RoleStudent}, testCourseID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSubmit(t *testing.T) {
	fx := newAssignmentFixture()
	student := Principal{UserID: testStudentID, Role: models.RoleStudent}

	submission, err := fx.svc.Submit(context.Background(), student, SubmitRequest{
		AssignmentID: testAssignmentID,
		StudentID:    testStudentID,
		Content:      "my answer",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, submission.ID)

	// One submission per student per assignment.
	_, err = fx.svc.Submit(context.Background(), student, SubmitRequest{
		AssignmentID: testAssignmentID,
		StudentID:    testStudentID,
		Content:      "second try",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitWithoutEnrollment(t *testing.T) {
	fx := newAssignmentFixture()

	_, err := fx.svc.Submit(context.Background(), Principal{UserID: otherStudentID, Role: models.RoleStudent}, SubmitRequest{
		AssignmentID: testAssignmentID,
		StudentID:    otherStudentID,
		Content:      "drive-by answer",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestListSubmissionsOwnerOnly(t *testing.T) {
	fx := newAssignmentFixture()
	fx.seedSubmission()

	_, err := fx.svc.ListSubmissions(context.Background(), Principal{UserID: otherInstructorID, Role: models.RoleInstructor}, testAssignmentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	subs, err := fx.svc.ListSubmissions(context.Background(), Principal{UserID: testInstructorID, Role: models.RoleInstructor}, testAssignmentID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestGiveFeedback(t *testing.T) {
	fx := newAssignmentFixture()
	fx.seedSubmission()

	req := FeedbackRequest{
		SubmissionID: testSubmissionID,
		InstructorID: otherInstructorID,
		Comment:      "not yours to grade",
	}
	_, err := fx.svc.GiveFeedback(context.Background(), Principal{UserID: otherInstructorID, Role: models.RoleInstructor}, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	score := 85
	fb, err := fx.svc.GiveFeedback(context.Background(), Principal{UserID: testInstructorID, Role: models.RoleInstructor}, FeedbackRequest{
		SubmissionID: testSubmissionID,
		InstructorID: testInstructorID,
		Comment:      "good work",
		Score:        &score,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)

	// Feedback is given once.
	_, err = fx.svc.GiveFeedback(context.Background(), Principal{UserID: testInstructorID, Role: models.RoleInstructor}, FeedbackRequest{
		SubmissionID: testSubmissionID,
		InstructorID: testInstructorID,
		Comment:      "second thoughts",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGetFeedbackVisibility(t *testing.T) {
	fx := newAssignmentFixture()
	fx.seedSubmission()
	fx.store.feedback[testSubmissionID] = &models.Feedback{
		ID: "fb-1", SubmissionID: testSubmissionID, InstructorID: testInstructorID, Comment: "good work",
	}

	tests := []struct {
		name      string
		principal Principal
		wantErr   string
	}{
		{name: "author reads own feedback", principal: Principal{UserID: testStudentID, Role: models.RoleStudent}},
		{name: "course instructor reads feedback", principal: Principal{UserID: testInstructorID, Role: models.RoleInstructor}},
		{name: "admin reads feedback", principal: Principal{UserID: testAdminID, Role: models.RoleAdmin}},
		{
			name:      "other student is shut out",
			principal: Principal{UserID: otherStudentID, Role: models.RoleStudent},
			wantErr:   appErrors.ErrForbidden.Code,
		},
		{
			name:      "other instructor is shut out",
			principal: Principal{UserID: otherInstructorID, Role: models.RoleInstructor},
			wantErr:   appErrors.ErrForbidden.Code,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fb, err := fx.svc.GetFeedback(context.Background(), tc.principal, testSubmissionID)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, appErrors.FromError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "good work", fb.Comment)
		})
	}
}

func TestGetFeedbackNoneYet(t *testing.T) {
	fx := newAssignmentFixture()
	fx.seedSubmission()

	_, err := fx.svc.GetFeedback(context.Background(), Principal{UserID: testStudentID, Role: models.RoleStudent}, testSubmissionID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

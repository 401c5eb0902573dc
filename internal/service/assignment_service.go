package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/repository"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

type assignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
	FindSubmissionByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	ListSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	FindFeedbackBySubmission(ctx context.Context, submissionID string) (*models.Feedback, error)
	CreateFeedback(ctx context.Context, fb *models.Feedback) error
}

type assignmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateAssignmentRequest holds the fields for creating an assignment.
type CreateAssignmentRequest struct {
	CourseID    string `validate:"required,uuid4"`
	Title       string `validate:"required,min=3,max=200"`
	Description string `validate:"max=10000"`
	DueAt       *time.Time
	MaxScore    int `validate:"min=1,max=1000"`
}

// SubmitRequest is a student's submission for an assignment.
type SubmitRequest struct {
	AssignmentID string `validate:"required,uuid4"`
	StudentID    string `validate:"required,uuid4"`
	Content      string `validate:"required,max=100000"`
	FileURL      string `validate:"omitempty,url"`
}

// FeedbackRequest is an instructor's feedback on a submission.
type FeedbackRequest struct {
	SubmissionID string `validate:"required,uuid4"`
	InstructorID string `validate:"required,uuid4"`
	Comment      string `validate:"required,max=10000"`
	Score        *int   `validate:"omitempty"`
}

// AssignmentService covers assignments, submissions and feedback. All reads
// and writes resolve access through the owning course; feedback is further
// restricted to the submission's author, the course instructor, and admins.
type AssignmentService struct {
	assignments assignmentStore
	courses     assignmentCourseReader
	entitlement *EntitlementService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(assignments assignmentStore, courses assignmentCourseReader, entitlement *EntitlementService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		courses:     courses,
		entitlement: entitlement,
		validate:    validate,
		logger:      logger,
	}
}

// ListByCourse returns a course's assignments for an entitled principal.
func (s *AssignmentService) ListByCourse(ctx context.Context, p Principal, courseID string) ([]models.Assignment, error) {
	if err := s.requireCourseAccess(ctx, p, courseID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Create adds an assignment to a course. Requires ownership or admin.
func (s *AssignmentService) Create(ctx context.Context, p Principal, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment")
	}
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if d := s.entitlement.EvaluateOwnership(p, course); !d.Allow {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	assignment := &models.Assignment{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
		MaxScore:    req.MaxScore,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Submit records a student's submission. The student must be entitled to
// the course; one submission per (assignment, student).
func (s *AssignmentService) Submit(ctx context.Context, p Principal, req SubmitRequest) (*models.Submission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.requireCourseAccess(ctx, p, assignment.CourseID); err != nil {
		return nil, err
	}

	submission := &models.Submission{
		AssignmentID: req.AssignmentID,
		StudentID:    req.StudentID,
		Content:      req.Content,
		FileURL:      req.FileURL,
	}
	if err := s.assignments.CreateSubmission(ctx, submission); err != nil {
		if errors.Is(err, repository.ErrDuplicateRow) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return submission, nil
}

// ListSubmissions returns an assignment's submissions. Instructor-side
// view: requires ownership of the course or admin.
func (s *AssignmentService) ListSubmissions(ctx context.Context, p Principal, assignmentID string) ([]models.Submission, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	course, err := s.loadCourse(ctx, assignment.CourseID)
	if err != nil {
		return nil, err
	}
	if d := s.entitlement.EvaluateOwnership(p, course); !d.Allow {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	submissions, err := s.assignments.ListSubmissionsByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// GiveFeedback attaches instructor feedback to a submission. Only the
// course's instructor or an admin may respond.
func (s *AssignmentService) GiveFeedback(ctx context.Context, p Principal, req FeedbackRequest) (*models.Feedback, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback")
	}

	submission, err := s.loadSubmission(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if p.Role != models.RoleAdmin && submission.InstructorID != p.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another instructor's course")
	}

	fb := &models.Feedback{
		SubmissionID: req.SubmissionID,
		InstructorID: req.InstructorID,
		Comment:      req.Comment,
		Score:        req.Score,
	}
	if err := s.assignments.CreateFeedback(ctx, fb); err != nil {
		if errors.Is(err, repository.ErrDuplicateRow) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already given")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feedback")
	}
	return fb, nil
}

// GetFeedback returns the feedback on a submission. Visible to the
// submission's author, the course instructor, and admins only.
func (s *AssignmentService) GetFeedback(ctx context.Context, p Principal, submissionID string) (*models.Feedback, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	allowed := p.Role == models.RoleAdmin ||
		submission.StudentID == p.UserID ||
		submission.InstructorID == p.UserID
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "feedback is private")
	}

	fb, err := s.assignments.FindFeedbackBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no feedback yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	return fb, nil
}

func (s *AssignmentService) requireCourseAccess(ctx context.Context, p Principal, courseID string) error {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return err
	}
	decision, err := s.entitlement.EvaluateCourseAccess(ctx, p, course)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}
	return nil
}

func (s *AssignmentService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *AssignmentService) loadSubmission(ctx context.Context, submissionID string) (*models.SubmissionDetail, error) {
	submission, err := s.assignments.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

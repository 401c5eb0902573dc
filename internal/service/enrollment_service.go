package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/repository"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateProgress(ctx context.Context, id string, progress float64, status models.EnrollmentStatus) error
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentPaymentStore interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

// EnrollRequest carries the inputs for the free-course enrollment path.
type EnrollRequest struct {
	StudentID string `validate:"required,uuid4"`
	CourseID  string `validate:"required,uuid4"`
}

// EnrollWithPaymentRequest carries the inputs for the paid-course path.
// PaymentID must reference a COMPLETED payment by the same student for
// the same course.
type EnrollWithPaymentRequest struct {
	StudentID string `validate:"required,uuid4"`
	CourseID  string `validate:"required,uuid4"`
	PaymentID string `validate:"required,uuid4"`
}

// UpdateProgressRequest carries a student's progress update.
type UpdateProgressRequest struct {
	EnrollmentID string  `validate:"required,uuid4"`
	StudentID    string  `validate:"required,uuid4"`
	Progress     float64 `validate:"min=0,max=100"`
}

// EnrollmentService implements the enrollment workflow. Every entry point
// re-checks course availability and the payment gate itself; the
// webhook-driven path additionally guarantees idempotency.
type EnrollmentService struct {
	enrollments enrollmentStore
	courses     enrollmentCourseReader
	payments    enrollmentPaymentStore
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(enrollments enrollmentStore, courses enrollmentCourseReader, payments enrollmentPaymentStore, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		payments:    payments,
		validate:    validate,
		logger:      logger,
	}
}

// Enroll enrolls a student in a free, published course.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request")
	}

	course, err := s.availableCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsFree() {
		return nil, appErrors.Clone(appErrors.ErrPaidCourseNeedsPayment, "")
	}

	return s.create(ctx, req.StudentID, req.CourseID)
}

// EnrollWithPayment enrolls a student in a paid course, validating the
// referenced payment against the student and course before any row is
// written.
func (s *EnrollmentService) EnrollWithPayment(ctx context.Context, req EnrollWithPaymentRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request")
	}

	course, err := s.availableCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if course.IsFree() {
		return nil, appErrors.Clone(appErrors.ErrFreeCourseNoPayment, "")
	}

	payment, err := s.payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPaymentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	// A payment made by someone else is indistinguishable from no payment.
	if payment.StudentID != req.StudentID {
		return nil, appErrors.Clone(appErrors.ErrPaymentNotFound, "")
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPaymentNotCompleted, "")
	}
	if payment.CourseID != req.CourseID {
		return nil, appErrors.Clone(appErrors.ErrPaymentWrongCourse, "")
	}

	return s.create(ctx, req.StudentID, req.CourseID)
}

// EnrollAfterPayment is the webhook-driven path. The payment must be
// COMPLETED and the course still available; a course unpublished between
// checkout and settlement does not get an enrollment row. Safe to call more
// than once for the same payment; repeats return the existing enrollment.
func (s *EnrollmentService) EnrollAfterPayment(ctx context.Context, payment *models.Payment) (*models.Enrollment, error) {
	if payment.Status != models.PaymentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPaymentNotCompleted, "")
	}
	if _, err := s.availableCourse(ctx, payment.CourseID); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID: payment.StudentID,
		CourseID:  payment.CourseID,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicateRow) {
			existing, findErr := s.enrollments.FindByStudentAndCourse(ctx, payment.StudentID, payment.CourseID)
			if findErr != nil {
				return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing enrollment")
			}
			return existing, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("student enrolled after payment",
		zap.String("student_id", payment.StudentID),
		zap.String("course_id", payment.CourseID),
		zap.String("payment_id", payment.ID))
	return enrollment, nil
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// UpdateProgress records a student's progress through a course. At 100
// percent the enrollment transitions to COMPLETED.
func (s *EnrollmentService) UpdateProgress(ctx context.Context, req UpdateProgressRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress update")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != req.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}

	status := enrollment.Status
	if req.Progress >= 100 {
		status = models.EnrollmentStatusCompleted
	} else if status == models.EnrollmentStatusCompleted {
		status = models.EnrollmentStatusActive
	}
	if err := s.enrollments.UpdateProgress(ctx, enrollment.ID, req.Progress, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}
	enrollment.ProgressPercentage = req.Progress
	enrollment.Status = status
	return enrollment, nil
}

// availableCourse loads a course and applies the availability rule shared
// by both enrollment paths: missing and unpublished courses read the same.
func (s *EnrollmentService) availableCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotAvailable, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrCourseNotAvailable, "")
	}
	return course, nil
}

func (s *EnrollmentService) create(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	enrollment := &models.Enrollment{StudentID: studentID, CourseID: courseID}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicateRow) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to enroll student %s", studentID))
	}
	return enrollment, nil
}

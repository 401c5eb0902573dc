package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/models"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

type lessonStore interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type lessonCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateLessonRequest holds the fields for creating a lesson.
type CreateLessonRequest struct {
	CourseID    string `validate:"required,uuid4"`
	Title       string `validate:"required,min=3,max=200"`
	Content     string `validate:"max=50000"`
	VideoURL    string `validate:"omitempty,url"`
	Position    int    `validate:"min=0"`
	IsPublished bool
}

// UpdateLessonRequest holds the mutable lesson fields.
type UpdateLessonRequest struct {
	Title       string `validate:"required,min=3,max=200"`
	Content     string `validate:"max=50000"`
	VideoURL    string `validate:"omitempty,url"`
	Position    int    `validate:"min=0"`
	IsPublished bool
}

// LessonService serves lesson content behind the entitlement evaluator.
// Every read resolves the parent course first; lesson policy is never
// evaluated in isolation.
type LessonService struct {
	lessons     lessonStore
	courses     lessonCourseReader
	entitlement *EntitlementService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewLessonService constructs the service.
func NewLessonService(lessons lessonStore, courses lessonCourseReader, entitlement *EntitlementService, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{
		lessons:     lessons,
		courses:     courses,
		entitlement: entitlement,
		validate:    validate,
		logger:      logger,
	}
}

// Get returns a lesson the principal is entitled to read.
func (s *LessonService) Get(ctx context.Context, p Principal, lessonID string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	course, err := s.loadCourse(ctx, lesson.CourseID)
	if err != nil {
		return nil, err
	}

	decision, err := s.entitlement.EvaluateLessonAccess(ctx, p, lesson, course)
	if err != nil {
		return nil, err
	}
	if !decision.Allow {
		return nil, decision.Err()
	}
	return lesson, nil
}

// ListByCourse returns a course's lessons for an entitled principal.
// Owners and admins see drafts; everyone else sees published lessons only.
func (s *LessonService) ListByCourse(ctx context.Context, p Principal, courseID string) ([]models.Lesson, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	decision, err := s.entitlement.EvaluateCourseAccess(ctx, p, course)
	if err != nil {
		return nil, err
	}
	if !decision.Allow {
		return nil, decision.Err()
	}

	publishedOnly := !s.entitlement.EvaluateOwnership(p, course).Allow
	lessons, err := s.lessons.ListByCourse(ctx, courseID, publishedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// Create adds a lesson to a course. Requires ownership or admin.
func (s *LessonService) Create(ctx context.Context, p Principal, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson")
	}
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if d := s.entitlement.EvaluateOwnership(p, course); !d.Allow {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	lesson := &models.Lesson{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Content:     req.Content,
		VideoURL:    req.VideoURL,
		Position:    req.Position,
		IsPublished: req.IsPublished,
	}
	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// Update mutates a lesson. Requires ownership or admin.
func (s *LessonService) Update(ctx context.Context, p Principal, lessonID string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson")
	}
	lesson, _, err := s.loadOwned(ctx, p, lessonID)
	if err != nil {
		return nil, err
	}

	lesson.Title = req.Title
	lesson.Content = req.Content
	lesson.VideoURL = req.VideoURL
	lesson.Position = req.Position
	lesson.IsPublished = req.IsPublished
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}

// Delete removes a lesson. Requires ownership or admin.
func (s *LessonService) Delete(ctx context.Context, p Principal, lessonID string) error {
	if _, _, err := s.loadOwned(ctx, p, lessonID); err != nil {
		return err
	}
	if err := s.lessons.Delete(ctx, lessonID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	return nil
}

func (s *LessonService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *LessonService) loadOwned(ctx context.Context, p Principal, lessonID string) (*models.Lesson, *models.Course, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	course, err := s.loadCourse(ctx, lesson.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if d := s.entitlement.EvaluateOwnership(p, course); !d.Allow {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return lesson, course, nil
}

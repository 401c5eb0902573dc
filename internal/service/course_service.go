package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/models"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

const catalogCachePrefix = "catalog:courses:"

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
}

type courseCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

type courseAuditor interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// CreateCourseRequest holds the fields for creating a course. Courses are
// always created as drafts.
type CreateCourseRequest struct {
	InstructorID string  `validate:"required,uuid4"`
	Title        string  `validate:"required,min=3,max=200"`
	Description  string  `validate:"max=5000"`
	Category     string  `validate:"max=100"`
	Pricing      float64 `validate:"min=0"`
}

// UpdateCourseRequest holds the mutable course fields.
type UpdateCourseRequest struct {
	Title       string  `validate:"required,min=3,max=200"`
	Description string  `validate:"max=5000"`
	Category    string  `validate:"max=100"`
	Pricing     float64 `validate:"min=0"`
}

type catalogPage struct {
	Courses []models.CourseDetail `json:"courses"`
	Total   int                   `json:"total"`
}

// CourseService owns course CRUD, publication, and the cached public
// catalog. Reads that go through the entitlement evaluator live elsewhere;
// this service only gates mutations, which require ownership or admin.
type CourseService struct {
	courses     courseStore
	cache       courseCache
	entitlement *EntitlementService
	auditor     courseAuditor
	cacheTTL    time.Duration
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(courses courseStore, cache courseCache, entitlement *EntitlementService, auditor courseAuditor, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CourseService{
		courses:     courses,
		cache:       cache,
		entitlement: entitlement,
		auditor:     auditor,
		cacheTTL:    cacheTTL,
		validate:    validate,
		logger:      logger,
	}
}

// Catalog lists published courses for the public storefront. Pages are
// cached per filter; any course mutation invalidates the whole prefix.
func (s *CourseService) Catalog(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	filter.PublishedOnly = true

	key := s.catalogKey(filter)
	if s.cache != nil {
		var page catalogPage
		if err := s.cache.Get(ctx, key, &page); err == nil {
			return page.Courses, page.Total, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, catalogPage{Courses: courses, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return courses, total, nil
}

// ListOwned lists an instructor's own courses, drafts included.
func (s *CourseService) ListOwned(ctx context.Context, instructorID string, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	filter.InstructorID = instructorID
	filter.PublishedOnly = false
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, total, nil
}

// Get returns a course visible to the principal. Unpublished courses read
// as missing unless the caller owns them or is an admin.
func (s *CourseService) Get(ctx context.Context, p Principal, courseID string) (*models.Course, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		if d := s.entitlement.EvaluateOwnership(p, course); !d.Allow {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
	}
	return course, nil
}

// Create registers a new draft course owned by the instructor.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course")
	}
	course := &models.Course{
		InstructorID: req.InstructorID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Pricing:      req.Pricing,
		IsPublished:  false,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Update mutates course fields. Requires ownership or admin.
func (s *CourseService) Update(ctx context.Context, p Principal, courseID string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course")
	}
	course, err := s.loadOwned(ctx, p, courseID)
	if err != nil {
		return nil, err
	}

	course.Title = req.Title
	course.Description = req.Description
	course.Category = req.Category
	course.Pricing = req.Pricing
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// SetPublished toggles a course between draft and published. Requires
// ownership or admin; the transition lands in the audit log.
func (s *CourseService) SetPublished(ctx context.Context, p Principal, courseID string, published bool) (*models.Course, error) {
	course, err := s.loadOwned(ctx, p, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsPublished == published {
		return course, nil
	}
	if err := s.courses.SetPublished(ctx, courseID, published); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change publication")
	}
	course.IsPublished = published
	s.invalidateCatalog(ctx)

	if s.auditor != nil {
		entry := &models.AuditLog{
			UserID:     &p.UserID,
			Action:     models.AuditActionCoursePublish,
			Resource:   "course",
			ResourceID: &course.ID,
			NewValues:  []byte(fmt.Sprintf(`{"is_published":%t}`, published)),
		}
		if err := s.auditor.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to write publish audit entry", zap.String("course_id", course.ID), zap.Error(err))
		}
	}
	return course, nil
}

// Delete removes a course. Requires ownership or admin.
func (s *CourseService) Delete(ctx context.Context, p Principal, courseID string) error {
	if _, err := s.loadOwned(ctx, p, courseID); err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) load(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) loadOwned(ctx context.Context, p Principal, courseID string) (*models.Course, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if d := s.entitlement.EvaluateOwnership(p, course); !d.Allow {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return course, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, catalogCachePrefix); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func (s *CourseService) catalogKey(filter models.CourseFilter) string {
	return fmt.Sprintf("%s%s:%s:%t:%d:%d:%s:%s",
		catalogCachePrefix, filter.Category, filter.Search, filter.FreeOnly,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

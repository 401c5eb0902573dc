package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/middleware"
	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/service"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
	"github.com/coursebay/coursebay-api/pkg/response"
)

// CourseHandler exposes the course catalog and instructor course CRUD.
type CourseHandler struct {
	courses *service.CourseService
	lessons *service.LessonService
	logger  *zap.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(courses *service.CourseService, lessons *service.LessonService, logger *zap.Logger) *CourseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseHandler{courses: courses, lessons: lessons, logger: logger}
}

// RegisterRoutes wires the course endpoints.
func (h *CourseHandler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.GET("/courses", h.Catalog)

	authed.GET("/courses/:id", h.Get)
	authed.GET("/courses/:id/lessons", h.ListLessons)

	instructor := authed.Group("", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
	instructor.GET("/instructor/courses", h.ListOwned)
	instructor.POST("/courses", h.Create)
	instructor.PUT("/courses/:id", h.Update)
	instructor.PATCH("/courses/:id/publish", h.SetPublished)
	instructor.DELETE("/courses/:id", h.Delete)
}

type createCourseBody struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Pricing     float64 `json:"pricing"`
}

type publishBody struct {
	Published bool `json:"published"`
}

// Catalog godoc
// @Summary List published courses
// @Tags courses
// @Produce json
// @Param category query string false "Category filter"
// @Param search query string false "Title search"
// @Param free query bool false "Free courses only"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.CourseDetail}
// @Router /courses [get]
func (h *CourseHandler) Catalog(c *gin.Context) {
	filter := courseFilterFromQuery(c)
	courses, total, err := h.courses.Catalog(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Fetch a course
// @Tags courses
// @Security BearerAuth
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=models.Course}
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// ListLessons godoc
// @Summary List a course's lessons
// @Tags courses
// @Security BearerAuth
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=[]models.Lesson}
// @Failure 402 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/lessons [get]
func (h *CourseHandler) ListLessons(c *gin.Context) {
	lessons, err := h.lessons.ListByCourse(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// ListOwned godoc
// @Summary List the caller's own courses, drafts included
// @Tags courses
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.CourseDetail}
// @Router /instructor/courses [get]
func (h *CourseHandler) ListOwned(c *gin.Context) {
	filter := courseFilterFromQuery(c)
	courses, total, err := h.courses.ListOwned(c.Request.Context(), c.GetString(middleware.ContextUserID), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Create godoc
// @Summary Create a draft course
// @Tags courses
// @Security BearerAuth
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope{data=models.Course}
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var body createCourseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), service.CreateCourseRequest{
		InstructorID: c.GetString(middleware.ContextUserID),
		Title:        body.Title,
		Description:  body.Description,
		Category:     body.Category,
		Pricing:      body.Pricing,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update a course
// @Tags courses
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=models.Course}
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var body createCourseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), middleware.Principal(c), c.Param("id"), service.UpdateCourseRequest{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Pricing:     body.Pricing,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// SetPublished godoc
// @Summary Publish or unpublish a course
// @Tags courses
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body publishBody true "Publication flag"
// @Success 200 {object} response.Envelope{data=models.Course}
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/publish [patch]
func (h *CourseHandler) SetPublished(c *gin.Context) {
	var body publishBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	course, err := h.courses.SetPublished(c.Request.Context(), middleware.Principal(c), c.Param("id"), body.Published)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete a course
// @Tags courses
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), middleware.Principal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func courseFilterFromQuery(c *gin.Context) models.CourseFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	free, _ := strconv.ParseBool(c.DefaultQuery("free", "false"))
	return models.CourseFilter{
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		FreeOnly:  free,
		Page:      page,
		PageSize:  size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
}

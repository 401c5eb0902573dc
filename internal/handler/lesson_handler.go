package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/middleware"
	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/service"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
	"github.com/coursebay/coursebay-api/pkg/response"
)

// LessonHandler exposes lesson content and instructor lesson CRUD.
type LessonHandler struct {
	lessons *service.LessonService
	logger  *zap.Logger
}

// NewLessonHandler constructs the handler.
func NewLessonHandler(lessons *service.LessonService, logger *zap.Logger) *LessonHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonHandler{lessons: lessons, logger: logger}
}

// RegisterRoutes wires the lesson endpoints.
func (h *LessonHandler) RegisterRoutes(authed *gin.RouterGroup) {
	authed.GET("/lessons/:id", h.Get)

	instructor := authed.Group("", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
	instructor.POST("/courses/:id/lessons", h.Create)
	instructor.PUT("/lessons/:id", h.Update)
	instructor.DELETE("/lessons/:id", h.Delete)
}

type lessonBody struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	VideoURL    string `json:"video_url"`
	Position    int    `json:"position"`
	IsPublished bool   `json:"is_published"`
}

// Get godoc
// @Summary Fetch a lesson
// @Tags lessons
// @Security BearerAuth
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope{data=models.Lesson}
// @Failure 402 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.lessons.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Create godoc
// @Summary Add a lesson to a course
// @Tags lessons
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope{data=models.Lesson}
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var body lessonBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	lesson, err := h.lessons.Create(c.Request.Context(), middleware.Principal(c), service.CreateLessonRequest{
		CourseID:    c.Param("id"),
		Title:       body.Title,
		Content:     body.Content,
		VideoURL:    body.VideoURL,
		Position:    body.Position,
		IsPublished: body.IsPublished,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Update godoc
// @Summary Update a lesson
// @Tags lessons
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope{data=models.Lesson}
// @Failure 403 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	var body lessonBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	lesson, err := h.lessons.Update(c.Request.Context(), middleware.Principal(c), c.Param("id"), service.UpdateLessonRequest{
		Title:       body.Title,
		Content:     body.Content,
		VideoURL:    body.VideoURL,
		Position:    body.Position,
		IsPublished: body.IsPublished,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Delete godoc
// @Summary Delete a lesson
// @Tags lessons
// @Security BearerAuth
// @Param id path string true "Lesson ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	if err := h.lessons.Delete(c.Request.Context(), middleware.Principal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

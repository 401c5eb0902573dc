package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/middleware"
	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/service"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
	"github.com/coursebay/coursebay-api/pkg/response"
)

// AssignmentHandler exposes assignments, submissions and feedback.
type AssignmentHandler struct {
	assignments *service.AssignmentService
	logger      *zap.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(assignments *service.AssignmentService, logger *zap.Logger) *AssignmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentHandler{assignments: assignments, logger: logger}
}

// RegisterRoutes wires the assignment endpoints.
func (h *AssignmentHandler) RegisterRoutes(authed *gin.RouterGroup) {
	authed.GET("/courses/:id/assignments", h.ListByCourse)
	authed.GET("/submissions/:id/feedback", h.GetFeedback)

	student := authed.Group("", middleware.RequireRoles(models.RoleStudent))
	student.POST("/assignments/:id/submissions", h.Submit)

	instructor := authed.Group("", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
	instructor.POST("/courses/:id/assignments", h.Create)
	instructor.GET("/assignments/:id/submissions", h.ListSubmissions)
	instructor.POST("/submissions/:id/feedback", h.GiveFeedback)
}

type assignmentBody struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at"`
	MaxScore    int        `json:"max_score"`
}

type submissionBody struct {
	Content string `json:"content"`
	FileURL string `json:"file_url"`
}

type feedbackBody struct {
	Comment string `json:"comment"`
	Score   *int   `json:"score"`
}

// ListByCourse godoc
// @Summary List a course's assignments
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=[]models.Assignment}
// @Failure 402 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/assignments [get]
func (h *AssignmentHandler) ListByCourse(c *gin.Context) {
	assignments, err := h.assignments.ListByCourse(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Create godoc
// @Summary Add an assignment to a course
// @Tags assignments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope{data=models.Assignment}
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var body assignmentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), middleware.Principal(c), service.CreateAssignmentRequest{
		CourseID:    c.Param("id"),
		Title:       body.Title,
		Description: body.Description,
		DueAt:       body.DueAt,
		MaxScore:    body.MaxScore,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Submit godoc
// @Summary Submit an answer to an assignment
// @Tags assignments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 201 {object} response.Envelope{data=models.Submission}
// @Failure 402 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	var body submissionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	submission, err := h.assignments.Submit(c.Request.Context(), middleware.Principal(c), service.SubmitRequest{
		AssignmentID: c.Param("id"),
		StudentID:    c.GetString(middleware.ContextUserID),
		Content:      body.Content,
		FileURL:      body.FileURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// ListSubmissions godoc
// @Summary List an assignment's submissions
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope{data=[]models.Submission}
// @Failure 403 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) ListSubmissions(c *gin.Context) {
	submissions, err := h.assignments.ListSubmissions(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// GiveFeedback godoc
// @Summary Attach feedback to a submission
// @Tags assignments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Success 201 {object} response.Envelope{data=models.Feedback}
// @Failure 403 {object} response.Envelope
// @Router /submissions/{id}/feedback [post]
func (h *AssignmentHandler) GiveFeedback(c *gin.Context) {
	var body feedbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	fb, err := h.assignments.GiveFeedback(c.Request.Context(), middleware.Principal(c), service.FeedbackRequest{
		SubmissionID: c.Param("id"),
		InstructorID: c.GetString(middleware.ContextUserID),
		Comment:      body.Comment,
		Score:        body.Score,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fb)
}

// GetFeedback godoc
// @Summary Read the feedback on a submission
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope{data=models.Feedback}
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/feedback [get]
func (h *AssignmentHandler) GetFeedback(c *gin.Context) {
	fb, err := h.assignments.GetFeedback(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fb, nil)
}

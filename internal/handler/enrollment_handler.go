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

// EnrollmentHandler exposes the student-facing enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
	logger      *zap.Logger
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, metrics *service.MetricsService, logger *zap.Logger) *EnrollmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentHandler{enrollments: enrollments, metrics: metrics, logger: logger}
}

// RegisterRoutes wires the enrollment endpoints.
func (h *EnrollmentHandler) RegisterRoutes(authed *gin.RouterGroup) {
	student := authed.Group("", middleware.RequireRoles(models.RoleStudent))
	student.POST("/courses/:id/enroll", h.Enroll)
	student.PATCH("/enrollments/:id/progress", h.UpdateProgress)

	authed.GET("/me/enrollments", h.ListMine)
}

type enrollBody struct {
	PaymentID string `json:"payment_id"`
}

type progressBody struct {
	Progress float64 `json:"progress"`
}

// Enroll godoc
// @Summary Enroll in a course
// @Description Free courses enroll directly. Paid courses require a payment_id referencing a completed payment.
// @Tags enrollments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body enrollBody false "Payment reference for paid courses"
// @Success 201 {object} response.Envelope{data=models.Enrollment}
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var body enrollBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
			return
		}
	}

	studentID := c.GetString(middleware.ContextUserID)
	courseID := c.Param("id")

	var enrollment *models.Enrollment
	var err error
	if body.PaymentID != "" {
		enrollment, err = h.enrollments.EnrollWithPayment(c.Request.Context(), service.EnrollWithPaymentRequest{
			StudentID: studentID,
			CourseID:  courseID,
			PaymentID: body.PaymentID,
		})
	} else {
		enrollment, err = h.enrollments.Enroll(c.Request.Context(), service.EnrollRequest{
			StudentID: studentID,
			CourseID:  courseID,
		})
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordEnrollment()
	}
	response.Created(c, enrollment)
}

// ListMine godoc
// @Summary List the caller's enrollments
// @Tags enrollments
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.EnrollmentDetail}
// @Router /me/enrollments [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.EnrollmentFilter{
		StudentID: c.GetString(middleware.ContextUserID),
		Page:      page,
		PageSize:  size,
	}
	enrollments, total, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
	})
}

// UpdateProgress godoc
// @Summary Update progress through an enrolled course
// @Tags enrollments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body progressBody true "Progress percentage"
// @Success 200 {object} response.Envelope{data=models.Enrollment}
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/progress [patch]
func (h *EnrollmentHandler) UpdateProgress(c *gin.Context) {
	var body progressBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	enrollment, err := h.enrollments.UpdateProgress(c.Request.Context(), service.UpdateProgressRequest{
		EnrollmentID: c.Param("id"),
		StudentID:    c.GetString(middleware.ContextUserID),
		Progress:     body.Progress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

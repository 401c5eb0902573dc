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

// AdminHandler exposes the admin-only account and session operations.
type AdminHandler struct {
	users       *service.UserService
	enrollments *service.EnrollmentService
	registry    *service.SessionRegistry
	logger      *zap.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(users *service.UserService, enrollments *service.EnrollmentService, registry *service.SessionRegistry, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{users: users, enrollments: enrollments, registry: registry, logger: logger}
}

// RegisterRoutes wires the admin endpoints under role enforcement.
func (h *AdminHandler) RegisterRoutes(authed *gin.RouterGroup) {
	admin := authed.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id", h.GetUser)
	admin.PATCH("/users/:id/role", h.ChangeRole)
	admin.POST("/users/:id/force-logout", h.ForceLogout)
	admin.GET("/sessions", h.ListSessions)
	admin.GET("/enrollments", h.ListEnrollments)
}

type roleBody struct {
	Role models.UserRole `json:"role"`
}

// ListUsers godoc
// @Summary List accounts
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param role query string false "Role filter"
// @Param search query string false "Email or name search"
// @Success 200 {object} response.Envelope{data=[]models.User}
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.UserFilter{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: size,
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		filter.Role = &role
	}

	users, total, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
	})
}

// GetUser godoc
// @Summary Fetch a single account
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope{data=models.User}
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ChangeRole godoc
// @Summary Change a user's role
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body roleBody true "New role"
// @Success 200 {object} response.Envelope{data=models.User}
// @Failure 400 {object} response.Envelope
// @Router /admin/users/{id}/role [patch]
func (h *AdminHandler) ChangeRole(c *gin.Context) {
	var body roleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	user, err := h.users.ChangeRole(c.Request.Context(), c.GetString(middleware.ContextUserID), service.ChangeRoleRequest{
		UserID: c.Param("id"),
		Role:   body.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ForceLogout godoc
// @Summary Revoke all of a user's sessions and refresh tokens
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/force-logout [post]
func (h *AdminHandler) ForceLogout(c *gin.Context) {
	dropped, err := h.users.ForceLogout(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"sessions_dropped": dropped}, nil)
}

// ListSessions godoc
// @Summary List live admin sessions
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]service.AdminSession}
// @Router /admin/sessions [get]
func (h *AdminHandler) ListSessions(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.registry.Active(), nil)
}

// ListEnrollments godoc
// @Summary List enrollments across the platform
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param course_id query string false "Course filter"
// @Param student_id query string false "Student filter"
// @Success 200 {object} response.Envelope{data=[]models.EnrollmentDetail}
// @Router /admin/enrollments [get]
func (h *AdminHandler) ListEnrollments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.EnrollmentFilter{
		CourseID:  c.Query("course_id"),
		StudentID: c.Query("student_id"),
		Page:      page,
		PageSize:  size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
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

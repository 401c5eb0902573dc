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

// AuthHandler exposes signup, login and token management endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	metrics *service.MetricsService
	logger  *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth *service.AuthService, metrics *service.MetricsService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, metrics: metrics, logger: logger}
}

// RegisterRoutes wires the auth endpoints.
func (h *AuthHandler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.POST("/auth/signup", h.Signup)
	public.POST("/auth/verify-email", h.VerifyEmail)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)
	authed.POST("/auth/logout", h.Logout)
	authed.POST("/auth/change-password", h.ChangePassword)
}

// Signup godoc
// @Summary Register a new student account
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body models.SignupRequest true "Signup payload"
// @Success 201 {object} response.Envelope{data=models.UserInfo}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	user, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// VerifyEmail godoc
// @Summary Verify an email address with a signup token
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body models.VerifyEmailRequest true "Verification token"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.auth.VerifyEmail(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Login godoc
// @Summary Authenticate and receive an access/refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope{data=models.LoginResponse}
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.auth.Login(c.Request.Context(), req)
	if h.metrics != nil {
		h.metrics.RecordLogin(err == nil)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Refresh godoc
// @Summary Rotate a refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope{data=models.RefreshTokenResponse}
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.auth.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Logout godoc
// @Summary Revoke the caller's refresh tokens and admin session
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	sessionID := c.GetString(middleware.ContextSessionID)
	if err := h.auth.Logout(c.Request.Context(), userID, sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Param payload body models.ChangePasswordRequest true "Password change payload"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), c.GetString(middleware.ContextUserID), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

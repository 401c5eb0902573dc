package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/middleware"
	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/service"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
	"github.com/coursebay/coursebay-api/pkg/response"
)

// PaymentHandler exposes checkout, the gateway webhook, payment history
// and PDF receipts.
type PaymentHandler struct {
	payments *service.PaymentService
	metrics  *service.MetricsService
	logger   *zap.Logger
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(payments *service.PaymentService, metrics *service.MetricsService, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{payments: payments, metrics: metrics, logger: logger}
}

// RegisterRoutes wires the payment endpoints. The webhook is registered on
// the public group since the gateway cannot carry a user token.
func (h *PaymentHandler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.POST("/webhooks/payments", h.Webhook)

	student := authed.Group("", middleware.RequireRoles(models.RoleStudent))
	student.POST("/courses/:id/checkout", h.CreateCheckout)

	authed.GET("/me/payments", h.ListMine)
	authed.GET("/payments/:id/receipt", h.Receipt)
}

// gatewayNotification is the raw webhook payload posted by the gateway.
type gatewayNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

// CreateCheckout godoc
// @Summary Open a payment checkout session for a paid course
// @Tags payments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope{data=models.Payment}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/checkout [post]
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	payment, err := h.payments.CreateCheckout(c.Request.Context(), service.CreateCheckoutRequest{
		StudentID: c.GetString(middleware.ContextUserID),
		CourseID:  c.Param("id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Webhook godoc
// @Summary Payment gateway notification endpoint
// @Description Verifies the gateway signature and settles the referenced payment. Idempotent under redelivery.
// @Tags payments
// @Accept json
// @Success 200
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /webhooks/payments [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var raw gatewayNotification
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification body"))
		return
	}

	eventType, ok := normalizeStatus(raw.TransactionStatus)
	if !ok {
		// Pending and unknown statuses are acknowledged and ignored.
		c.Status(http.StatusOK)
		return
	}
	gross, err := strconv.ParseFloat(raw.GrossAmount, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid gross amount"))
		return
	}

	event := models.GatewayEvent{
		Type:          eventType,
		TransactionID: raw.TransactionID,
		OrderID:       raw.OrderID,
		GrossAmount:   gross,
		Signature:     raw.SignatureKey,
		ReceivedAt:    time.Now().UTC(),
	}
	if err := h.payments.HandleGatewayEvent(c.Request.Context(), event); err != nil {
		if h.metrics != nil {
			h.metrics.RecordPayment("error")
		}
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordPayment(string(eventType))
	}
	c.Status(http.StatusOK)
}

// ListMine godoc
// @Summary List the caller's payments
// @Tags payments
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.Payment}
// @Router /me/payments [get]
func (h *PaymentHandler) ListMine(c *gin.Context) {
	payments, err := h.payments.ListByStudent(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Receipt godoc
// @Summary Download the PDF receipt for a completed payment
// @Tags payments
// @Security BearerAuth
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	p := middleware.Principal(c)
	pdf, err := h.payments.Receipt(c.Request.Context(), service.ReceiptRequest{
		PaymentID:     c.Param("id"),
		RequesterID:   p.UserID,
		RequesterRole: p.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="receipt-`+c.Param("id")+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// normalizeStatus maps gateway transaction statuses onto the two settlement
// outcomes. Pending statuses return false.
func normalizeStatus(status string) (models.GatewayEventType, bool) {
	switch status {
	case "settlement", "capture":
		return models.GatewayEventCompleted, true
	case "deny", "cancel", "expire", "failure":
		return models.GatewayEventFailed, true
	default:
		return "", false
	}
}

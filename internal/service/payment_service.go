package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/models"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
	"github.com/coursebay/coursebay-api/pkg/export"
	"github.com/coursebay/coursebay-api/pkg/payments"
)

type paymentStore interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	HasCompleted(ctx context.Context, studentID, courseID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, completedAt *time.Time) error
}

type paymentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type paymentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type paymentEnroller interface {
	EnrollAfterPayment(ctx context.Context, payment *models.Payment) (*models.Enrollment, error)
}

type paymentEnrollmentReader interface {
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
}

type paymentAuditor interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// CreateCheckoutRequest starts a hosted checkout for a paid course.
type CreateCheckoutRequest struct {
	StudentID string `validate:"required,uuid4"`
	CourseID  string `validate:"required,uuid4"`
}

// ReceiptRequest asks for the PDF receipt of a completed payment.
type ReceiptRequest struct {
	PaymentID     string `validate:"required,uuid4"`
	RequesterID   string `validate:"required,uuid4"`
	RequesterRole models.UserRole
}

// PaymentService owns the payment lifecycle: checkout creation against the
// external gateway, webhook settlement, and receipts. Webhook delivery is
// at-least-once, so settlement is written to be safely re-runnable.
type PaymentService struct {
	paymentRepo paymentStore
	courses     paymentCourseReader
	users       paymentUserReader
	enrollments paymentEnrollmentReader
	enroller    paymentEnroller
	auditor     paymentAuditor
	gateway     payments.Gateway
	receipts    *export.ReceiptExporter
	notifier    *EmailNotifier
	serverKey   string
	validate    *validator.Validate
	logger      *zap.Logger
}

// PaymentServiceDeps bundles the collaborators for NewPaymentService.
type PaymentServiceDeps struct {
	Payments    paymentStore
	Courses     paymentCourseReader
	Users       paymentUserReader
	Enrollments paymentEnrollmentReader
	Enroller    paymentEnroller
	Auditor     paymentAuditor
	Gateway     payments.Gateway
	Receipts    *export.ReceiptExporter
	Notifier    *EmailNotifier
	ServerKey   string
	Validate    *validator.Validate
	Logger      *zap.Logger
}

// NewPaymentService constructs the service.
func NewPaymentService(deps PaymentServiceDeps) *PaymentService {
	if deps.Validate == nil {
		deps.Validate = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &PaymentService{
		paymentRepo: deps.Payments,
		courses:     deps.Courses,
		users:       deps.Users,
		enrollments: deps.Enrollments,
		enroller:    deps.Enroller,
		auditor:     deps.Auditor,
		gateway:     deps.Gateway,
		receipts:    deps.Receipts,
		notifier:    deps.Notifier,
		serverKey:   deps.ServerKey,
		validate:    deps.Validate,
		logger:      deps.Logger,
	}
}

// CreateCheckout opens a gateway checkout session for a paid course and
// records the payment in PENDING. The payment row is only written after the
// gateway accepts the order, so a gateway failure leaves no trace.
func (s *PaymentService) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*models.Payment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkout request")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotAvailable, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrCourseNotAvailable, "")
	}
	if course.IsFree() {
		return nil, appErrors.Clone(appErrors.ErrFreeCourseNoPayment, "")
	}

	enrolled, err := s.enrollments.Exists(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}
	paid, err := s.paymentRepo.HasCompleted(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payments")
	}
	if paid {
		return nil, appErrors.Clone(appErrors.ErrPaymentAlreadyProcessed, "course is already paid for")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	payment := &models.Payment{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Amount:    course.Pricing,
		Currency:  "USD",
		Status:    models.PaymentStatusPending,
	}

	session, err := s.gateway.CreateCheckout(ctx, payments.CheckoutRequest{
		OrderID:       payment.ID,
		Amount:        payment.Amount,
		ItemID:        course.ID,
		ItemName:      course.Title,
		CustomerName:  student.FullName,
		CustomerEmail: student.Email,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment gateway rejected checkout")
	}
	payment.TransactionID = session.Token
	payment.CheckoutURL = session.RedirectURL

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.logger.Info("checkout created",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", payment.StudentID),
		zap.String("course_id", payment.CourseID))
	return payment, nil
}

// HandleGatewayEvent settles a payment from an asynchronous gateway
// notification. Re-delivery of a settled event is a no-op. A completion
// whose enrollment write fails is compensated by rolling the payment back
// to FAILED, so a completed payment never stands without its enrollment.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, event models.GatewayEvent) error {
	if !s.verifySignature(event) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "invalid gateway signature")
	}

	payment, err := s.paymentRepo.FindByID(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrPaymentNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	switch payment.Status {
	case models.PaymentStatusFailed:
		if event.Type == models.GatewayEventCompleted {
			return appErrors.Clone(appErrors.ErrPaymentAlreadyProcessed, "payment already failed")
		}
		return nil
	case models.PaymentStatusCompleted:
		if event.Type == models.GatewayEventFailed {
			s.logger.Warn("ignoring failure event for completed payment", zap.String("payment_id", payment.ID))
			return nil
		}
		// Redelivery. Enrollment may still be missing if the first attempt
		// died between the status write and the enrollment write.
		return s.ensureEnrollment(ctx, payment)
	}

	if event.Type == models.GatewayEventFailed {
		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment failed")
		}
		s.audit(ctx, payment, "failed")
		return nil
	}

	if event.GrossAmount != payment.Amount {
		// Amount tampering: fail the payment rather than grant access.
		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment failed")
		}
		s.audit(ctx, payment, "amount_mismatch")
		return appErrors.Clone(appErrors.ErrValidation, "gateway amount does not match payment")
	}

	now := time.Now().UTC()
	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusCompleted, &now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment completed")
	}
	payment.Status = models.PaymentStatusCompleted
	payment.CompletedAt = &now
	s.audit(ctx, payment, "completed")

	if _, err := s.enroller.EnrollAfterPayment(ctx, payment); err != nil {
		// Compensate: a completed payment must never stand without its
		// enrollment, so the settlement is rolled back to FAILED.
		if updateErr := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed, nil); updateErr != nil {
			s.logger.Error("failed to roll back payment after enrollment failure",
				zap.String("payment_id", payment.ID), zap.Error(updateErr))
		} else {
			payment.Status = models.PaymentStatusFailed
			payment.CompletedAt = nil
		}
		s.audit(ctx, payment, "enrollment_failed")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll after payment")
	}
	s.notifyCompleted(ctx, payment)
	return nil
}

// Receipt renders the PDF receipt for a completed payment. Only the paying
// student and admins may fetch it; everyone else sees a missing resource.
func (s *PaymentService) Receipt(ctx context.Context, req ReceiptRequest) ([]byte, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receipt request")
	}

	payment, err := s.paymentRepo.FindByID(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPaymentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.StudentID != req.RequesterID && req.RequesterRole != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrPaymentNotFound, "")
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPaymentNotCompleted, "")
	}

	course, err := s.courses.FindByID(ctx, payment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	student, err := s.users.FindByID(ctx, payment.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	paidAt := payment.UpdatedAt
	if payment.CompletedAt != nil {
		paidAt = *payment.CompletedAt
	}
	pdf, err := s.receipts.Render(export.Receipt{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		CourseTitle:   course.Title,
		StudentName:   student.FullName,
		StudentEmail:  student.Email,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		PaidAt:        paidAt,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return pdf, nil
}

// ListByStudent returns the student's payment history, newest first.
func (s *PaymentService) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	history, err := s.paymentRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return history, nil
}

// ensureEnrollment serves redeliveries for already-completed payments. The
// enrollment is usually present and returned as-is; it can only be missing
// when a crash hit the window between the status write and the enrollment
// write, in which case the redelivery retry fills it in.
func (s *PaymentService) ensureEnrollment(ctx context.Context, payment *models.Payment) error {
	if _, err := s.enroller.EnrollAfterPayment(ctx, payment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll after payment")
	}
	s.notifyCompleted(ctx, payment)
	return nil
}

func (s *PaymentService) notifyCompleted(ctx context.Context, payment *models.Payment) {
	if s.notifier == nil {
		return
	}
	student, err := s.users.FindByID(ctx, payment.StudentID)
	if err != nil {
		s.logger.Warn("skipping payment email, student lookup failed", zap.String("payment_id", payment.ID), zap.Error(err))
		return
	}
	course, err := s.courses.FindByID(ctx, payment.CourseID)
	if err != nil {
		s.logger.Warn("skipping payment email, course lookup failed", zap.String("payment_id", payment.ID), zap.Error(err))
		return
	}
	s.notifier.SendPaymentReceipt(student.FullName, student.Email, course.Title, payment.Amount, payment.Currency)
	s.notifier.SendEnrollmentConfirmed(student.FullName, student.Email, course.Title)
}

func (s *PaymentService) audit(ctx context.Context, payment *models.Payment, outcome string) {
	if s.auditor == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &payment.StudentID,
		Action:     models.AuditActionPaymentEvent,
		Resource:   "payment",
		ResourceID: &payment.ID,
		NewValues:  []byte(fmt.Sprintf(`{"outcome":%q,"course_id":%q}`, outcome, payment.CourseID)),
	}
	if err := s.auditor.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write payment audit entry", zap.String("payment_id", payment.ID), zap.Error(err))
	}
}

// verifySignature checks the gateway's SHA-512 signature over the order id
// and gross amount, keyed with the merchant server key.
func (s *PaymentService) verifySignature(event models.GatewayEvent) bool {
	if s.serverKey == "" {
		return true
	}
	sum := sha512.Sum512([]byte(fmt.Sprintf("%s%.2f%s", event.OrderID, event.GrossAmount, s.serverKey)))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(event.Signature)) == 1
}

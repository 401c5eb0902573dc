package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/pkg/jobs"
	"github.com/coursebay/coursebay-api/pkg/mail"
)

// Email job types dispatched through the background queue.
const (
	emailJobVerification = "email.verification"
	emailJobEnrollment   = "email.enrollment_confirmed"
	emailJobReceipt      = "email.payment_receipt"
)

type emailPayload struct {
	ToName    string
	ToEmail   string
	Subject   string
	TextBody  string
	Reference string
}

// EmailNotifier delivers transactional email off the request path. Sends
// are enqueued onto an in-memory worker pool; a failed enqueue is logged
// and dropped rather than failing the caller's request.
type EmailNotifier struct {
	queue  *jobs.Queue
	mailer mail.Mailer
	logger *zap.Logger
}

// NewEmailNotifier builds the notifier and its backing queue. Call Start
// before use and Stop on shutdown.
func NewEmailNotifier(mailer mail.Mailer, workers int, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &EmailNotifier{mailer: mailer, logger: logger}
	n.queue = jobs.NewQueue("email", n.deliver, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return n
}

// Start begins background delivery.
func (n *EmailNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *EmailNotifier) Stop() {
	n.queue.Stop()
}

// SendVerification queues the signup verification email.
func (n *EmailNotifier) SendVerification(name, email, token string) {
	n.enqueue(emailJobVerification, emailPayload{
		ToName:    name,
		ToEmail:   email,
		Subject:   "Verify your email address",
		TextBody:  fmt.Sprintf("Welcome to CourseBay, %s!\n\nUse this code to verify your email address: %s\n\nThe code expires in 24 hours.", name, token),
		Reference: token,
	})
}

// SendEnrollmentConfirmed queues the enrollment confirmation email.
func (n *EmailNotifier) SendEnrollmentConfirmed(name, email, courseTitle string) {
	n.enqueue(emailJobEnrollment, emailPayload{
		ToName:   name,
		ToEmail:  email,
		Subject:  "You're enrolled: " + courseTitle,
		TextBody: fmt.Sprintf("Hi %s,\n\nYour enrollment in %q is confirmed. You now have full access to the course content.", name, courseTitle),
	})
}

// SendPaymentReceipt queues the payment confirmation email.
func (n *EmailNotifier) SendPaymentReceipt(name, email, courseTitle string, amount float64, currency string) {
	n.enqueue(emailJobReceipt, emailPayload{
		ToName:   name,
		ToEmail:  email,
		Subject:  "Payment received for " + courseTitle,
		TextBody: fmt.Sprintf("Hi %s,\n\nWe received your payment of %.2f %s for %q. Your receipt is available from your payment history.", name, amount, currency, courseTitle),
	})
}

func (n *EmailNotifier) enqueue(jobType string, payload emailPayload) {
	err := n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		n.logger.Warn("dropping email job", zap.String("type", jobType), zap.Error(err))
	}
}

func (n *EmailNotifier) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(emailPayload)
	if !ok {
		n.logger.Error("unexpected email payload", zap.String("job_id", job.ID))
		return nil
	}
	return n.mailer.Send(ctx, mail.Message{
		ToName:    payload.ToName,
		ToEmail:   payload.ToEmail,
		Subject:   payload.Subject,
		TextBody:  payload.TextBody,
		Reference: payload.Reference,
	})
}

package service

import (
	"context"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebay/coursebay-api/internal/models"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
	"github.com/coursebay/coursebay-api/pkg/payments"
)

type fakePaymentStore struct {
	rows map[string]*models.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{rows: map[string]*models.Payment{}}
}

func (f *fakePaymentStore) FindByID(_ context.Context, id string) (*models.Payment, error) {
	if p, ok := f.rows[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentStore) HasCompleted(_ context.Context, studentID, courseID string) (bool, error) {
	for _, p := range f.rows {
		if p.StudentID == studentID && p.CourseID == courseID && p.Status == models.PaymentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentStore) ListByStudent(_ context.Context, studentID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.rows {
		if p.StudentID == studentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) Create(_ context.Context, p *models.Payment) error {
	f.rows[p.ID] = p
	return nil
}

func (f *fakePaymentStore) UpdateStatus(_ context.Context, id string, status models.PaymentStatus, completedAt *time.Time) error {
	p, ok := f.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	p.CompletedAt = completedAt
	return nil
}

type fakeUserReader struct {
	users map[string]*models.User
}

func (f *fakeUserReader) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type fakeEnrollmentExists struct {
	enrolled bool
}

func (f *fakeEnrollmentExists) Exists(_ context.Context, _, _ string) (bool, error) {
	return f.enrolled, nil
}

type recordingEnroller struct {
	calls int
	err   error
}

func (r *recordingEnroller) EnrollAfterPayment(_ context.Context, payment *models.Payment) (*models.Enrollment, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &models.Enrollment{StudentID: payment.StudentID, CourseID: payment.CourseID}, nil
}

type fakeGateway struct {
	session *payments.CheckoutSession
	err     error
}

func (f *fakeGateway) CreateCheckout(_ context.Context, _ payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type paymentFixture struct {
	svc      *PaymentService
	store    *fakePaymentStore
	enroller *recordingEnroller
	enrolled *fakeEnrollmentExists
	gateway  *fakeGateway
}

func newPaymentFixture(serverKey string, pricing float64) *paymentFixture {
	store := newFakePaymentStore()
	enroller := &recordingEnroller{}
	enrolled := &fakeEnrollmentExists{}
	gateway := &fakeGateway{session: &payments.CheckoutSession{Token: "snap-token", RedirectURL: "https://pay.example/session"}}

	courses := &fakeCourseReader{courses: map[string]*models.Course{
		testCourseID: {ID: testCourseID, InstructorID: "inst", Title: "Go Deep Dive", Pricing: pricing, IsPublished: true},
	}}
	users := &fakeUserReader{users: map[string]*models.User{
		testStudentID: {ID: testStudentID, Email: "student@example.com", FullName: "Sam Student"},
	}}

	svc := NewPaymentService(PaymentServiceDeps{
		Payments:    store,
		Courses:     courses,
		Users:       users,
		Enrollments: enrolled,
		Enroller:    enroller,
		Gateway:     gateway,
		ServerKey:   serverKey,
	})
	return &paymentFixture{svc: svc, store: store, enroller: enroller, enrolled: enrolled, gateway: gateway}
}

func signEvent(orderID string, gross float64, serverKey string) string {
	sum := sha512.Sum512([]byte(fmt.Sprintf("%s%.2f%s", orderID, gross, serverKey)))
	return hex.EncodeToString(sum[:])
}

func TestCreateCheckout(t *testing.T) {
	fx := newPaymentFixture("", 49.99)

	payment, err := fx.svc.CreateCheckout(context.Background(), CreateCheckoutRequest{
		StudentID: testStudentID,
		CourseID:  testCourseID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, 49.99, payment.Amount)
	assert.Equal(t, "snap-token", payment.TransactionID)
	assert.Equal(t, "https://pay.example/session", payment.CheckoutURL)
	assert.Contains(t, fx.store.rows, payment.ID)
}

func TestCreateCheckoutFreeCourse(t *testing.T) {
	fx := newPaymentFixture("", 0)

	_, err := fx.svc.CreateCheckout(context.Background(), CreateCheckoutRequest{
		StudentID: testStudentID,
		CourseID:  testCourseID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFreeCourseNoPayment.Code, appErrors.FromError(err).Code)
}

func TestCreateCheckoutAlreadyEnrolled(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.enrolled.enrolled = true

	_, err := fx.svc.CreateCheckout(context.Background(), CreateCheckoutRequest{
		StudentID: testStudentID,
		CourseID:  testCourseID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
}

func TestCreateCheckoutGatewayFailureLeavesNoRow(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.gateway.err = errors.New("gateway timeout")

	_, err := fx.svc.CreateCheckout(context.Background(), CreateCheckoutRequest{
		StudentID: testStudentID,
		CourseID:  testCourseID,
	})
	require.Error(t, err)
	assert.Empty(t, fx.store.rows)
}

func TestHandleGatewayEventCompletes(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}

	err := fx.svc.HandleGatewayEvent(context.Background(), models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, fx.store.rows[testPaymentID].Status)
	assert.NotNil(t, fx.store.rows[testPaymentID].CompletedAt)
	assert.Equal(t, 1, fx.enroller.calls)
}

func TestHandleGatewayEventRedelivery(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}
	event := models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
	}

	require.NoError(t, fx.svc.HandleGatewayEvent(context.Background(), event))
	// Redelivery retries the enrollment, which is itself idempotent.
	require.NoError(t, fx.svc.HandleGatewayEvent(context.Background(), event))
	assert.Equal(t, 2, fx.enroller.calls)
	assert.Equal(t, models.PaymentStatusCompleted, fx.store.rows[testPaymentID].Status)
}

func TestHandleGatewayEventFailure(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}

	err := fx.svc.HandleGatewayEvent(context.Background(), models.GatewayEvent{
		Type:        models.GatewayEventFailed,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, fx.store.rows[testPaymentID].Status)
	assert.Zero(t, fx.enroller.calls)

	// A completion after failure is a conflict, not a state change.
	err = fx.svc.HandleGatewayEvent(context.Background(), models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentAlreadyProcessed.Code, appErrors.FromError(err).Code)
}

func TestHandleGatewayEventAmountMismatch(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}

	err := fx.svc.HandleGatewayEvent(context.Background(), models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 0.01,
	})
	require.Error(t, err)
	assert.Equal(t, models.PaymentStatusFailed, fx.store.rows[testPaymentID].Status)
	assert.Zero(t, fx.enroller.calls)
}

func TestHandleGatewayEventSignature(t *testing.T) {
	const serverKey = "merchant-secret"
	fx := newPaymentFixture(serverKey, 49.99)
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}

	err := fx.svc.HandleGatewayEvent(context.Background(), models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
		Signature:   "forged",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	err = fx.svc.HandleGatewayEvent(context.Background(), models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
		Signature:   signEvent(testPaymentID, 49.99, serverKey),
	})
	require.NoError(t, err)
}

func TestReceiptAccess(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	now := time.Now().UTC()
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Currency: "USD", Status: models.PaymentStatusCompleted, CompletedAt: &now,
	}

	// Another student's receipt reads as missing, not forbidden.
	_, err := fx.svc.Receipt(context.Background(), ReceiptRequest{
		PaymentID:     testPaymentID,
		RequesterID:   otherStudentID,
		RequesterRole: models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentNotFound.Code, appErrors.FromError(err).Code)
}

func TestReceiptPendingPayment(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}

	_, err := fx.svc.Receipt(context.Background(), ReceiptRequest{
		PaymentID:     testPaymentID,
		RequesterID:   testStudentID,
		RequesterRole: models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentNotCompleted.Code, appErrors.FromError(err).Code)
}

func TestHandleGatewayEventEnrollFailureCompensates(t *testing.T) {
	fx := newPaymentFixture("", 49.99)
	fx.store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}
	fx.enroller.err = errors.New("db down")

	event := models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
	}
	require.Error(t, fx.svc.HandleGatewayEvent(context.Background(), event))
	// A completed payment never stands without its enrollment: the
	// settlement is rolled back to FAILED.
	assert.Equal(t, models.PaymentStatusFailed, fx.store.rows[testPaymentID].Status)
	assert.Nil(t, fx.store.rows[testPaymentID].CompletedAt)

	// A later redelivery of the completion is a conflict, not a retry.
	err := fx.svc.HandleGatewayEvent(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentAlreadyProcessed.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, fx.enroller.calls)
}

func TestHandleGatewayEventCourseUnpublishedBeforeSettlement(t *testing.T) {
	enrollments := newFakeEnrollmentStore()
	courses := &fakeCourseReader{courses: map[string]*models.Course{
		testCourseID: {ID: testCourseID, InstructorID: "inst", Title: "Go Deep Dive", Pricing: 49.99, IsPublished: true},
	}}
	store := newFakePaymentStore()
	store.rows[testPaymentID] = &models.Payment{
		ID: testPaymentID, StudentID: testStudentID, CourseID: testCourseID,
		Amount: 49.99, Status: models.PaymentStatusPending,
	}

	svc := NewPaymentService(PaymentServiceDeps{
		Payments:    store,
		Courses:     courses,
		Enrollments: &fakeEnrollmentExists{},
		Enroller:    NewEnrollmentService(enrollments, courses, store, nil, nil),
	})

	// The instructor unpublished the course while the payment was pending.
	courses.courses[testCourseID].IsPublished = false

	err := svc.HandleGatewayEvent(context.Background(), models.GatewayEvent{
		Type:        models.GatewayEventCompleted,
		OrderID:     testPaymentID,
		GrossAmount: 49.99,
	})
	require.Error(t, err)
	assert.Empty(t, enrollments.rows)
	assert.Equal(t, models.PaymentStatusFailed, store.rows[testPaymentID].Status)
}

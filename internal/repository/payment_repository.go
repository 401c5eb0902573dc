package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursebay/coursebay-api/internal/models"
)

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, student_id, course_id, amount, currency, status, transaction_id, checkout_url, created_at, updated_at, completed_at FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return &payment, nil
}

// FindByTransactionID returns a payment by the gateway transaction id.
func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	const query = `SELECT id, student_id, course_id, amount, currency, status, transaction_id, checkout_url, created_at, updated_at, completed_at FROM payments WHERE transaction_id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, transactionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by transaction id: %w", err)
	}
	return &payment, nil
}

// FindCompleted returns the completed payment for a (student, course)
// pair, or sql.ErrNoRows when none exists.
func (r *PaymentRepository) FindCompleted(ctx context.Context, studentID, courseID string) (*models.Payment, error) {
	const query = `SELECT id, student_id, course_id, amount, currency, status, transaction_id, checkout_url, created_at, updated_at, completed_at FROM payments
        WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, studentID, courseID, models.PaymentStatusCompleted); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find completed payment: %w", err)
	}
	return &payment, nil
}

// HasCompleted reports whether a completed payment exists for the pair.
func (r *PaymentRepository) HasCompleted(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM payments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.PaymentStatusCompleted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check completed payment: %w", err)
	}
	return true, nil
}

// ListByStudent returns a student's payments, newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	const query = `SELECT id, student_id, course_id, amount, currency, status, transaction_id, checkout_url, created_at, updated_at, completed_at FROM payments
        WHERE student_id = $1 ORDER BY created_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// Create persists a new payment record in its initial state.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	const query = `INSERT INTO payments (id, student_id, course_id, amount, currency, status, transaction_id, checkout_url, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :amount, :currency, :status, :transaction_id, :checkout_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRow
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// UpdateStatus moves a payment to a new status. completedAt is only set
// for the COMPLETED transition.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, completedAt *time.Time) error {
	const query = `UPDATE payments SET status = $2, completed_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, completedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

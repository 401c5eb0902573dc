package models

import "time"

// PaymentStatus is the state of a payment as driven by the gateway.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records a financial transaction tied to a student and course.
// A payment authorizes enrollment only in the course it names, and only
// once its status is COMPLETED.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Currency      string        `db:"currency" json:"currency"`
	Status        PaymentStatus `db:"status" json:"status"`
	TransactionID string        `db:"transaction_id" json:"transaction_id"`
	CheckoutURL   string        `db:"checkout_url" json:"checkout_url,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

// GatewayEventType classifies asynchronous payment-gateway notifications.
type GatewayEventType string

const (
	GatewayEventCompleted GatewayEventType = "COMPLETED"
	GatewayEventFailed    GatewayEventType = "FAILED"
)

// GatewayEvent is a normalized webhook notification from the payment
// gateway. Delivery is at-least-once; handling must be idempotent.
type GatewayEvent struct {
	Type          GatewayEventType `json:"type"`
	TransactionID string           `json:"transaction_id"`
	OrderID       string           `json:"order_id"`
	GrossAmount   float64          `json:"gross_amount"`
	Signature     string           `json:"signature"`
	ReceivedAt    time.Time        `json:"received_at"`
}

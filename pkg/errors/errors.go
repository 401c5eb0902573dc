package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrEmailNotVerified   = New("EMAIL_NOT_VERIFIED", http.StatusForbidden, "email address not verified")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Access denials carry the machine-readable reason the client needs to
	// present the correct remediation (pay vs enroll vs ownership).
	ErrPaymentRequired = New("PAYMENT_REQUIRED", http.StatusPaymentRequired, "course requires a completed payment")
	ErrNotEnrolled     = New("NOT_ENROLLED", http.StatusForbidden, "enrollment required to access course content")
	ErrSessionInvalid  = New("SESSION_INVALID", http.StatusUnauthorized, "admin session is no longer valid")

	// Enrollment/payment workflow conflicts.
	ErrAlreadyEnrolled         = New("ALREADY_ENROLLED", http.StatusConflict, "student already enrolled in course")
	ErrCourseNotAvailable      = New("COURSE_NOT_AVAILABLE", http.StatusNotFound, "course is not available")
	ErrPaidCourseNeedsPayment  = New("PAID_COURSE_REQUIRES_PAYMENT", http.StatusPaymentRequired, "paid course requires payment before enrollment")
	ErrFreeCourseNoPayment     = New("FREE_COURSE_NO_PAYMENT", http.StatusBadRequest, "free course does not require payment")
	ErrPaymentNotFound         = New("PAYMENT_NOT_FOUND", http.StatusNotFound, "payment not found")
	ErrPaymentNotCompleted     = New("PAYMENT_NOT_COMPLETED", http.StatusBadRequest, "payment has not completed")
	ErrPaymentWrongCourse      = New("PAYMENT_WRONG_COURSE", http.StatusBadRequest, "payment does not belong to this course")
	ErrPaymentAlreadyProcessed = New("PAYMENT_ALREADY_PROCESSED", http.StatusConflict, "payment already processed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

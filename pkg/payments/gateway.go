package payments

import "context"

// CheckoutRequest describes the order sent to the payment gateway.
type CheckoutRequest struct {
	OrderID       string
	Amount        float64
	ItemID        string
	ItemName      string
	CustomerName  string
	CustomerEmail string
}

// CheckoutSession is the gateway-issued session for a pending payment.
type CheckoutSession struct {
	Token       string
	RedirectURL string
}

// Gateway creates hosted checkout sessions with an external payment
// processor. Completion and failure arrive asynchronously via webhook.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

package payments

import (
	"context"
	"fmt"
	"math"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransGateway implements Gateway on top of the Midtrans Snap API.
type MidtransGateway struct {
	client snap.Client
}

// NewMidtransGateway configures a Snap client. useProduction selects the
// production environment; otherwise the sandbox is used.
func NewMidtransGateway(serverKey string, useProduction bool) *MidtransGateway {
	g := &MidtransGateway{}
	env := midtrans.Sandbox
	if useProduction {
		env = midtrans.Production
	}
	g.client.New(serverKey, env)
	return g
}

// CreateCheckout opens a hosted checkout session for the given order.
func (g *MidtransGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive")
	}
	if req.OrderID == "" {
		return nil, fmt.Errorf("checkout order id is required")
	}

	gross := int64(math.Round(req.Amount * 100))
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       req.ItemID,
				Price:    gross,
				Qty:      1,
				Name:     truncate(req.ItemName, 50),
				Category: "course",
			},
		},
	}

	resp, err := g.client.CreateTransaction(snapReq)
	if err != nil {
		return nil, fmt.Errorf("create snap transaction: %w", err)
	}
	return &CheckoutSession{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
)

type Stripe struct{}

// NewStripe sets the process-wide API key used by the stripe resource packages.
func NewStripe(secretKey string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{}
}

func (s *Stripe) CreateOrder(ctx context.Context, receipt string, amount int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("receipt", receipt)
	params.SetIdempotencyKey("order-" + receipt)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ID, nil
}

func (s *Stripe) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		Amount: stripe.Int64(req.Amount),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if strings.HasPrefix(req.PaymentRef, "ch_") {
		params.Charge = stripe.String(req.PaymentRef)
	} else {
		params.PaymentIntent = stripe.String(req.PaymentRef)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return &Refund{Ref: r.ID, State: refundState(r.Status)}, nil
}

func (s *Stripe) RefundStatus(ctx context.Context, ref string) (RefundState, error) {
	params := &stripe.RefundParams{}
	params.Context = ctx
	r, err := refund.Get(ref, params)
	if err != nil {
		return "", fmt.Errorf("get refund: %w", err)
	}
	return refundState(r.Status), nil
}

func refundState(s stripe.RefundStatus) RefundState {
	switch s {
	case stripe.RefundStatusSucceeded:
		return RefundSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return RefundFailed
	}
	return RefundPending
}

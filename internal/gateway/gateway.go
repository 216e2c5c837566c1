// Package gateway abstracts the online payment provider.
package gateway

import (
	"context"
	"errors"
)

type RefundState string

const (
	RefundPending   RefundState = "PENDING"
	RefundSucceeded RefundState = "SUCCEEDED"
	RefundFailed    RefundState = "FAILED"
)

type RefundRequest struct {
	PaymentRef string
	Amount     int64
	// IdempotencyKey is stable per order and trigger so a retried refund is never issued twice.
	IdempotencyKey string
}

type Refund struct {
	Ref   string
	State RefundState
}

// Gateway is the payment provider surface the fulfillment core depends on.
type Gateway interface {
	// CreateOrder registers a payable order and returns the provider's order reference.
	CreateOrder(ctx context.Context, receipt string, amount int64, currency string) (string, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
	RefundStatus(ctx context.Context, ref string) (RefundState, error)
}

var ErrNotConfigured = errors.New("payment gateway is not configured")

// Disabled rejects every call. It backs COD-only deployments.
type Disabled struct{}

func (Disabled) CreateOrder(context.Context, string, int64, string) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) Refund(context.Context, RefundRequest) (*Refund, error) {
	return nil, ErrNotConfigured
}

func (Disabled) RefundStatus(context.Context, string) (RefundState, error) {
	return "", ErrNotConfigured
}

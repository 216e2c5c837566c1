package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("whsec")
	sig := Sign(secret, "order_1", "pay_1")

	assert.True(t, VerifySignature(secret, "order_1", "pay_1", sig))
	assert.False(t, VerifySignature(secret, "order_1", "pay_2", sig))
	assert.False(t, VerifySignature([]byte("other"), "order_1", "pay_1", sig))
	assert.False(t, VerifySignature(secret, "order_1", "pay_1", ""))
	assert.False(t, VerifySignature(nil, "order_1", "pay_1", sig))
}

func TestFakeRefundIsIdempotent(t *testing.T) {
	g := NewFake()
	ctx := context.Background()

	first, err := g.Refund(ctx, RefundRequest{PaymentRef: "pay_1", Amount: 100, IdempotencyKey: "cancel-1"})
	require.NoError(t, err)
	second, err := g.Refund(ctx, RefundRequest{PaymentRef: "pay_1", Amount: 100, IdempotencyKey: "cancel-1"})
	require.NoError(t, err)
	assert.Equal(t, first.Ref, second.Ref)

	g.RefundState = RefundPending
	pending, err := g.Refund(ctx, RefundRequest{PaymentRef: "pay_2", Amount: 100, IdempotencyKey: "return-2"})
	require.NoError(t, err)
	assert.Equal(t, RefundPending, pending.State)

	g.Settle(pending.Ref, RefundSucceeded)
	st, err := g.RefundStatus(ctx, pending.Ref)
	require.NoError(t, err)
	assert.Equal(t, RefundSucceeded, st)
}

func TestRefundStateMapping(t *testing.T) {
	assert.Equal(t, RefundSucceeded, refundState("succeeded"))
	assert.Equal(t, RefundFailed, refundState("failed"))
	assert.Equal(t, RefundFailed, refundState("canceled"))
	assert.Equal(t, RefundPending, refundState("pending"))
	assert.Equal(t, RefundPending, refundState("requires_action"))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Refund(context.Background(), RefundRequest{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

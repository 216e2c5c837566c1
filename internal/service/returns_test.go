package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var damaged = transport.CreateRequestRequest{Reason: "arrived damaged"}

func TestReturnRequiresDelivered(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	shipped := env.seedOrder(t, codAt(domain.StatusShipped))
	_, err := env.returns.RequestReturn(ctx, owner(shipped), shipped.ID, damaged)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "Transition SHIPPED → RETURN_REQUESTED not allowed", err.Error())

	confirmed := env.seedOrder(t, codAt(domain.StatusConfirmed))
	_, err = env.returns.RequestExchange(ctx, owner(confirmed), confirmed.ID, transport.CreateRequestRequest{Reason: "too small", NewSize: "L"})
	require.ErrorIs(t, err, domain.ErrValidation)

	delivered := env.seedOrder(t, codAt(domain.StatusDelivered))
	_, err = env.returns.RequestReturn(ctx, Actor{UserID: uuid.New()}, delivered.ID, damaged)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.returns.RequestReturn(ctx, admin, delivered.ID, damaged)
	require.ErrorIs(t, err, domain.ErrForbidden, "only the purchaser opens a return")
}

func TestReturnRequestSetsProcess(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, codAt(domain.StatusDelivered))

	rr, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRequested, rr.Status)
	assert.Equal(t, order.ID, rr.OrderID)

	stored := env.reload(t, order.ID)
	assert.Equal(t, domain.StatusReturnRequested, stored.Status)
	assert.Equal(t, domain.ReturnProcess(domain.RequestRequested), stored.Process)
	assert.Equal(t, domain.RequestRequested, stored.ReturnStatus())
	assert.Equal(t, domain.RequestNone, stored.ExchangeStatus())

	_, err = env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.ErrorIs(t, err, domain.ErrValidation, "a second request finds the order no longer delivered")
}

func TestApproveOnlineReturnRefunds(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, onlinePaid(domain.StatusDelivered))

	rr, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)

	req, err := env.returns.Review(ctx, domain.ProcessReturn, rr.ID, domain.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, req.Status)

	stored := env.reload(t, order.ID)
	assert.Equal(t, domain.StatusReturnApproved, stored.Status)
	assert.Equal(t, domain.RefundOriginalSource, stored.RefundMethod)
	assert.Equal(t, domain.RefundStatusCompleted, stored.RefundStatus)
	assert.Equal(t, domain.PaymentRefunded, stored.PaymentStatus)
	assert.Equal(t, order.Total, stored.RefundAmount)
	assert.NotEmpty(t, stored.GatewayRefundRef)
	require.Len(t, env.gw.Calls, 1)
	assert.Equal(t, "return-"+order.ID.String(), env.gw.Calls[0].IdempotencyKey)

	loaded, err := env.repo.GetRequest(ctx, domain.ProcessReturn, rr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, loaded.Status)
}

func TestApproveOnlineReturnGatewayFailureStaysPending(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, onlinePaid(domain.StatusDelivered))
	rr, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)

	env.gw.FailRefunds = true
	req, err := env.returns.Review(ctx, domain.ProcessReturn, rr.ID, domain.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, req.Status)

	stored := env.reload(t, order.ID)
	assert.Equal(t, domain.StatusReturnApproved, stored.Status)
	assert.Equal(t, domain.RefundStatusInitiated, stored.RefundStatus)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)

	// Completing the return waits for the refund.
	_, err = env.returns.Complete(ctx, domain.ProcessReturn, rr.ID)
	require.ErrorIs(t, err, domain.ErrConflict)

	env.gw.FailRefunds = false
	rep, err := env.refunds.ReconcilePending(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Completed)

	_, err = env.returns.Complete(ctx, domain.ProcessReturn, rr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, env.reload(t, order.ID).Status)
}

func TestApproveCODReturnCreditsOnce(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, codAt(domain.StatusDelivered))
	rr, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)

	_, err = env.returns.Review(ctx, domain.ProcessReturn, rr.ID, domain.ActionApprove, "ok")
	require.NoError(t, err)
	_, err = env.returns.Review(ctx, domain.ProcessReturn, rr.ID, domain.ActionApprove, "ok")
	require.NoError(t, err)

	stored := env.reload(t, order.ID)
	assert.Equal(t, domain.RefundWallet, stored.RefundMethod)
	assert.Equal(t, domain.RefundStatusCompleted, stored.RefundStatus)

	entries := env.walletEntries(t, order.UserID)
	require.Len(t, entries, 1)
	assert.Equal(t, ReasonReturn, entries[0].Reason)
	assert.Equal(t, order.Total, entries[0].Amount)
	assert.Zero(t, env.gw.RefundCalls())

	_, err = env.returns.Review(ctx, domain.ProcessReturn, rr.ID, domain.ActionReject, "")
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
}

func (e *testEnv) approveConcurrently(t *testing.T, requestID uuid.UUID) {
	t.Helper()
	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.returns.Review(context.Background(), domain.ProcessReturn, requestID, domain.ActionApprove, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.GreaterOrEqual(t, succeeded, 1)
}

func TestConcurrentCODApprovalCreditsOnce(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, codAt(domain.StatusDelivered))
	rr, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)

	env.approveConcurrently(t, rr.ID)

	entries := env.walletEntries(t, order.UserID)
	require.Len(t, entries, 1)
	balance, err := env.repo.GetBalance(ctx, order.UserID)
	require.NoError(t, err)
	assert.Equal(t, order.Total, balance)
	assert.Equal(t, domain.StatusReturnApproved, env.reload(t, order.ID).Status)
	assert.Zero(t, env.gw.RefundCalls())
}

func TestConcurrentOnlineApprovalRefundsOnce(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, onlinePaid(domain.StatusDelivered))
	rr, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)

	env.approveConcurrently(t, rr.ID)

	require.Len(t, env.gw.Calls, 1)
	assert.Equal(t, "return-"+order.ID.String(), env.gw.Calls[0].IdempotencyKey)
	stored := env.reload(t, order.ID)
	assert.Equal(t, domain.RefundStatusCompleted, stored.RefundStatus)
	assert.Equal(t, order.Total, stored.RefundAmount)
	assert.Empty(t, env.walletEntries(t, order.UserID))
}

func TestRejectReturn(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, onlinePaid(domain.StatusDelivered))
	rr, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)

	req, err := env.returns.Review(ctx, domain.ProcessReturn, rr.ID, domain.ActionReject, "worn")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, req.Status)
	assert.Equal(t, "worn", req.AdminNote)

	stored := env.reload(t, order.ID)
	assert.Equal(t, domain.StatusReturnRejected, stored.Status)
	assert.Equal(t, domain.RefundNone, stored.RefundMethod)
	assert.Zero(t, env.gw.RefundCalls())
}

func TestExchangeProgression(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, codAt(domain.StatusDelivered))

	er, err := env.returns.RequestExchange(ctx, owner(order), order.ID, transport.CreateRequestRequest{Reason: "too small", NewSize: "L"})
	require.NoError(t, err)
	assert.Equal(t, "L", er.NewSize)
	assert.Equal(t, domain.StatusExchangeRequested, env.reload(t, order.ID).Status)

	_, err = env.returns.Advance(ctx, domain.ProcessExchange, er.ID, "")
	require.ErrorIs(t, err, domain.ErrValidation, "cannot advance before approval")

	_, err = env.returns.Review(ctx, domain.ProcessExchange, er.ID, domain.ActionApprove, "")
	require.NoError(t, err)
	assert.Empty(t, env.walletEntries(t, order.UserID))

	_, err = env.returns.Advance(ctx, domain.ProcessExchange, er.ID, domain.RequestPickupCompleted)
	require.ErrorIs(t, err, domain.ErrValidation, "steps cannot be skipped")

	_, err = env.returns.Advance(ctx, domain.ProcessExchange, er.ID, domain.RequestRefundInitiated)
	require.ErrorIs(t, err, domain.ErrValidation, "return steps do not apply to exchanges")

	for _, step := range []domain.RequestStatus{domain.RequestPickupScheduled, domain.RequestPickupCompleted, domain.RequestExchangeProcessing} {
		req, err := env.returns.Advance(ctx, domain.ProcessExchange, er.ID, "")
		require.NoError(t, err)
		assert.Equal(t, step, req.Status)
		stored := env.reload(t, order.ID)
		assert.Equal(t, domain.StatusExchangeApproved, stored.Status)
		assert.Equal(t, domain.ExchangeProcess(step), stored.Process)
	}

	req, err := env.returns.Advance(ctx, domain.ProcessExchange, er.ID, domain.RequestExchangeCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestExchangeCompleted, req.Status)

	stored := env.reload(t, order.ID)
	assert.Equal(t, domain.StatusExchanged, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, fixedNow.Equal(*stored.CompletedAt))

	_, err = env.returns.Advance(ctx, domain.ProcessExchange, er.ID, "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdminStatusEndpointDrivesReturn(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, codAt(domain.StatusDelivered))
	_, err := env.returns.RequestReturn(ctx, owner(order), order.ID, damaged)
	require.NoError(t, err)

	_, err = env.orders.UpdateStatus(ctx, admin, order.ID, updateTo("RETURN_REQUESTED"))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.orders.UpdateStatus(ctx, admin, order.ID, updateTo("EXCHANGE_APPROVED"))
	require.ErrorIs(t, err, domain.ErrValidation)

	got, err := env.orders.UpdateStatus(ctx, admin, order.ID, updateTo("RETURN_APPROVED"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturnApproved, got.Status)
	assert.Len(t, env.walletEntries(t, order.UserID), 1)

	got, err = env.orders.UpdateStatus(ctx, admin, order.ID, updateTo("PICKUP_SCHEDULED"))
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnProcess(domain.RequestPickupScheduled), got.Process)

	_, err = env.orders.UpdateStatus(ctx, admin, order.ID, updateTo("EXCHANGE_PROCESSING"))
	require.ErrorIs(t, err, domain.ErrValidation)

	got, err = env.orders.UpdateStatus(ctx, admin, order.ID, updateTo("RETURNED"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, got.Status)
	assert.Equal(t, domain.ReturnProcess(domain.RequestRefundCompleted), got.Process)
	require.NotNil(t, got.CompletedAt)

	req, err := env.repo.GetRequestByOrder(ctx, domain.ProcessReturn, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRefundCompleted, req.Status)

	got, err = env.orders.UpdateStatus(ctx, admin, order.ID, updateTo("RETURNED"))
	require.NoError(t, err, "same-state update is a no-op")
	assert.Equal(t, domain.StatusReturned, got.Status)
	assert.Len(t, env.walletEntries(t, order.UserID), 1)
}

func TestReviewMissingRequest(t *testing.T) {
	env := newEnv(t)
	_, err := env.returns.Review(context.Background(), domain.ProcessReturn, uuid.New(), domain.ActionApprove, "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	order := env.seedOrder(t, codAt(domain.StatusDelivered))
	_, err = env.orders.UpdateStatus(context.Background(), admin, order.ID, updateTo("PICKUP_SCHEDULED"))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.StatusDelivered, env.reload(t, order.ID).Status)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/gateway"
	"github.com/Skotchmaster/fulfillment/internal/metrics"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/google/uuid"
)

var (
	errNoPaymentRef = errors.New("order has no gateway payment reference")
	// errFinalizedElsewhere: the reconciler completed this cancellation first.
	errFinalizedElsewhere = errors.New("cancellation finalized by reconciler")
)

// RefundOrchestrator decides between a gateway refund and a wallet credit and applies it
// together with the order mutation that caused it.
type RefundOrchestrator struct {
	Repo    *repo.GormRepo
	Gateway gateway.Gateway
	Ledger  *Ledger
	Events  events.Publisher
	Now     func() time.Time
}

func idempotencyKey(trigger domain.RefundTrigger, orderID uuid.UUID) string {
	if trigger == domain.TriggerReturn {
		return "return-" + orderID.String()
	}
	return "cancel-" + orderID.String()
}

func (o *RefundOrchestrator) refund(ctx context.Context, order *models.Order) (*gateway.Refund, error) {
	start := time.Now()
	r, err := o.Gateway.Refund(ctx, gateway.RefundRequest{
		PaymentRef:     order.GatewayPaymentRef,
		Amount:         order.RefundAmount,
		IdempotencyKey: idempotencyKey(order.RefundTrigger, order.ID),
	})
	metrics.Get().GatewayDuration.WithLabelValues("refund", metrics.Result(err)).Observe(time.Since(start).Seconds())
	metrics.Get().RefundsTotal.WithLabelValues(string(domain.RefundOriginalSource), string(order.RefundTrigger), metrics.Result(err)).Inc()
	if err != nil {
		return nil, &domain.GatewayError{Op: "refund", Err: err}
	}
	return r, nil
}

func reserveGatewayRefund(order *models.Order, trigger domain.RefundTrigger, at time.Time) {
	order.RefundMethod = domain.RefundOriginalSource
	order.RefundStatus = domain.RefundStatusInitiated
	order.RefundTrigger = trigger
	order.RefundAmount = order.Total
	order.RefundReservedAt = &at
}

func clearRefund(order *models.Order) {
	order.RefundMethod = domain.RefundNone
	order.RefundStatus = domain.RefundStatusNone
	order.RefundTrigger = domain.TriggerNone
	order.RefundAmount = 0
	order.RefundReservedAt = nil
}

// Cancel moves an order to CANCELLED and refunds whatever was collected. Cancelling an
// already cancelled order returns it unchanged. A gateway failure leaves the order as it was.
func (o *RefundOrchestrator) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := o.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(order) {
		return nil, fmt.Errorf("%w: order belongs to another user", domain.ErrForbidden)
	}
	if order.Status == domain.StatusCancelled {
		return order, nil
	}
	if err := domain.CheckTransition(order.Status, domain.StatusCancelled); err != nil {
		return nil, err
	}
	if order.CancellationPending() {
		return nil, fmt.Errorf("%w: cancellation refund already in progress", domain.ErrConflict)
	}

	from := order.Status
	var entry *models.WalletTransaction
	switch {
	case order.PaymentStatus == domain.PaymentPaid:
		err = o.cancelPaid(ctx, order)
	case order.PaymentMethod == domain.PaymentCOD:
		entry, err = o.cancelToWallet(ctx, order)
	default:
		err = o.cancelUnpaid(ctx, order)
	}
	if errors.Is(err, errFinalizedElsewhere) {
		return order, nil
	}
	if err != nil {
		return nil, err
	}

	o.Ledger.Committed(ctx, entry)
	statusChanged(ctx, o.Events, order, string(from))
	if order.RefundMethod != domain.RefundNone {
		publish(ctx, o.Events, events.Event{Type: refundEventType(order), OrderID: order.ID, UserID: order.UserID, Amount: order.RefundAmount})
	}
	return order, nil
}

func (o *RefundOrchestrator) markCancelled(order *models.Order) {
	order.Status = domain.StatusCancelled
	order.CancelledAt = timePtr(clock(o.Now).now())
}

// cancelPaid reserves the refund, calls the gateway with no transaction open and then
// finalizes. A crash between the two steps leaves a reservation for ReconcilePending.
func (o *RefundOrchestrator) cancelPaid(ctx context.Context, order *models.Order) error {
	l := logging.FromContext(ctx)
	if order.GatewayPaymentRef == "" {
		return &domain.GatewayError{Op: "refund", Err: errNoPaymentRef}
	}

	reserveGatewayRefund(order, domain.TriggerCancellation, clock(o.Now).now())
	if err := o.Repo.UpdateOrder(ctx, order); err != nil {
		return err
	}

	r, err := o.refund(ctx, order)
	if err == nil && r.State == gateway.RefundFailed {
		err = &domain.GatewayError{Op: "refund", Err: fmt.Errorf("refund %s failed at provider", r.Ref)}
	}
	if err != nil {
		l.Warn("cancel_refund_failed", "order_id", order.ID, "amount", order.RefundAmount, "error", err)
		clearRefund(order)
		if rerr := o.Repo.UpdateOrder(ctx, order); rerr != nil {
			l.Error("cancel_release_failed", "order_id", order.ID, "error", rerr)
		}
		return err
	}

	o.markCancelled(order)
	order.PaymentStatus = domain.PaymentRefunded
	order.GatewayRefundRef = r.Ref
	if err := o.Repo.UpdateOrder(ctx, order); err != nil {
		if errors.Is(err, repo.ErrStale) {
			if stored, gerr := o.Repo.GetOrder(ctx, order.ID); gerr == nil &&
				stored.Status == domain.StatusCancelled && stored.RefundTrigger == domain.TriggerCancellation {
				*order = *stored
				l.Info("cancel_finalized_elsewhere", "order_id", order.ID, "refund_ref", order.GatewayRefundRef)
				return errFinalizedElsewhere
			}
		}
		l.Error("cancel_finalize_failed", "order_id", order.ID, "refund_ref", r.Ref, "error", err)
		return fmt.Errorf("finalize cancellation: %w", err)
	}
	l.Info("cancel_refund_initiated", "order_id", order.ID, "amount", order.RefundAmount, "refund_ref", r.Ref)
	return nil
}

func (o *RefundOrchestrator) cancelToWallet(ctx context.Context, order *models.Order) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := o.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		o.markCancelled(order)
		order.RefundMethod = domain.RefundWallet
		order.RefundStatus = domain.RefundStatusCompleted
		order.RefundTrigger = domain.TriggerCancellation
		order.RefundAmount = order.Total
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		return o.creditTx(ctx, tx, order, &entry)
	})
	if err != nil {
		return nil, err
	}
	metrics.Get().RefundsTotal.WithLabelValues(string(domain.RefundWallet), string(domain.TriggerCancellation), "ok").Inc()
	return entry, nil
}

func (o *RefundOrchestrator) creditTx(ctx context.Context, tx *repo.GormRepo, order *models.Order, out **models.WalletTransaction) error {
	if order.RefundAmount <= 0 {
		return nil
	}
	orderID := order.ID
	entry, err := o.Ledger.CreditTx(ctx, tx, Entry{
		UserID:  order.UserID,
		OrderID: &orderID,
		Amount:  order.RefundAmount,
		Reason:  string(order.RefundTrigger),
	})
	if err != nil {
		return err
	}
	*out = entry
	return nil
}

func (o *RefundOrchestrator) cancelUnpaid(ctx context.Context, order *models.Order) error {
	o.markCancelled(order)
	return o.Repo.UpdateOrder(ctx, order)
}

// RefundReturn applies the money side of a return approval. persist runs in the same
// transaction as the refund bookkeeping and must write the request and the order.
// COD returns are credited to the wallet atomically. Paid online returns are reserved,
// then refunded through the gateway; a gateway failure keeps the approval with the refund
// INITIATED for ReconcilePending.
func (o *RefundOrchestrator) RefundReturn(ctx context.Context, order *models.Order, persist func(tx *repo.GormRepo) error) error {
	l := logging.FromContext(ctx)

	switch {
	case order.PaymentMethod == domain.PaymentCOD:
		var entry *models.WalletTransaction
		err := o.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
			order.RefundMethod = domain.RefundWallet
			order.RefundStatus = domain.RefundStatusCompleted
			order.RefundTrigger = domain.TriggerReturn
			order.RefundAmount = order.Total
			if err := persist(tx); err != nil {
				return err
			}
			return o.creditTx(ctx, tx, order, &entry)
		})
		if err != nil {
			return err
		}
		metrics.Get().RefundsTotal.WithLabelValues(string(domain.RefundWallet), string(domain.TriggerReturn), "ok").Inc()
		o.Ledger.Committed(ctx, entry)
		publish(ctx, o.Events, events.Event{Type: events.RefundCompleted, OrderID: order.ID, UserID: order.UserID, Amount: order.RefundAmount})
		return nil

	case order.PaymentStatus == domain.PaymentPaid:
		reserveGatewayRefund(order, domain.TriggerReturn, clock(o.Now).now())
		if err := o.Repo.Transaction(ctx, persist); err != nil {
			return err
		}
		publish(ctx, o.Events, events.Event{Type: events.RefundInitiated, OrderID: order.ID, UserID: order.UserID, Amount: order.RefundAmount})

		if order.GatewayPaymentRef == "" {
			l.Warn("return_refund_pending", "order_id", order.ID, "error", errNoPaymentRef)
			return nil
		}
		r, err := o.refund(ctx, order)
		if err != nil {
			l.Warn("return_refund_pending", "order_id", order.ID, "amount", order.RefundAmount, "error", err)
			return nil
		}
		o.applyRefundResult(order, r.Ref, r.State)
		if err := o.Repo.UpdateOrder(ctx, order); err != nil {
			l.Warn("return_refund_finalize_deferred", "order_id", order.ID, "refund_ref", r.Ref, "error", err)
			return nil
		}
		if order.RefundStatus == domain.RefundStatusCompleted {
			publish(ctx, o.Events, events.Event{Type: events.RefundCompleted, OrderID: order.ID, UserID: order.UserID, Amount: order.RefundAmount})
		}
		return nil

	default:
		return o.Repo.Transaction(ctx, persist)
	}
}

// applyRefundResult records a gateway refund. A return refund accepted by the gateway is
// complete; a cancellation stays INITIATED until the provider reports it settled.
func (o *RefundOrchestrator) applyRefundResult(order *models.Order, ref string, state gateway.RefundState) {
	order.GatewayRefundRef = ref
	if state == gateway.RefundFailed {
		return
	}
	order.PaymentStatus = domain.PaymentRefunded
	if order.RefundTrigger == domain.TriggerReturn || state == gateway.RefundSucceeded {
		order.RefundStatus = domain.RefundStatusCompleted
	}
}

func refundEventType(order *models.Order) events.Type {
	if order.RefundStatus == domain.RefundStatusCompleted {
		return events.RefundCompleted
	}
	return events.RefundInitiated
}

type ReconcileReport struct {
	Visited   int
	Completed int
	Pending   int
	Failed    int
}

// ReconcilePending drives gateway refunds left INITIATED to completion. Reservations younger
// than grace are skipped: their original call may still be waiting on the provider.
// Re-issued refunds reuse the per-order idempotency key, so the provider never pays out twice.
func (o *RefundOrchestrator) ReconcilePending(ctx context.Context, grace time.Duration, limit int) (ReconcileReport, error) {
	var rep ReconcileReport
	orders, err := o.Repo.PendingGatewayRefunds(ctx, clock(o.Now).now().Add(-grace), limit)
	if err != nil {
		return rep, err
	}
	l := logging.FromContext(ctx)
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		order := &orders[i]
		rep.Visited++
		outcome, err := o.reconcileOne(ctx, order)
		switch {
		case err != nil:
			rep.Failed++
			l.Warn("reconcile_failed", "order_id", order.ID, "trigger", order.RefundTrigger, "error", err)
		case outcome:
			rep.Completed++
			l.Info("reconcile_completed", "order_id", order.ID, "trigger", order.RefundTrigger, "amount", order.RefundAmount)
		default:
			rep.Pending++
		}
		metrics.Get().ReconcileRuns.WithLabelValues(reconcileLabel(outcome, err)).Inc()
	}
	return rep, nil
}

func reconcileLabel(completed bool, err error) string {
	switch {
	case err != nil:
		return "failed"
	case completed:
		return "completed"
	}
	return "pending"
}

// reconcileOne reports whether the order's refund reached COMPLETED.
func (o *RefundOrchestrator) reconcileOne(ctx context.Context, order *models.Order) (bool, error) {
	if order.GatewayRefundRef != "" {
		return o.pollRefund(ctx, order)
	}
	if order.GatewayPaymentRef == "" {
		return false, errNoPaymentRef
	}

	r, err := o.refund(ctx, order)
	if err != nil {
		return false, err
	}
	from := order.Status
	if order.RefundTrigger == domain.TriggerCancellation && order.Status != domain.StatusCancelled {
		o.markCancelled(order)
	}
	o.applyRefundResult(order, r.Ref, r.State)
	if err := o.Repo.UpdateOrder(ctx, order); err != nil {
		return false, err
	}
	if from != order.Status {
		statusChanged(ctx, o.Events, order, string(from))
	}
	done := order.RefundStatus == domain.RefundStatusCompleted
	if done {
		publish(ctx, o.Events, events.Event{Type: events.RefundCompleted, OrderID: order.ID, UserID: order.UserID, Amount: order.RefundAmount})
	}
	return done, nil
}

func (o *RefundOrchestrator) pollRefund(ctx context.Context, order *models.Order) (bool, error) {
	start := time.Now()
	state, err := o.Gateway.RefundStatus(ctx, order.GatewayRefundRef)
	metrics.Get().GatewayDuration.WithLabelValues("refund_status", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return false, &domain.GatewayError{Op: "refund_status", Err: err}
	}
	switch state {
	case gateway.RefundSucceeded:
		order.RefundStatus = domain.RefundStatusCompleted
		if err := o.Repo.UpdateOrder(ctx, order); err != nil {
			return false, err
		}
		publish(ctx, o.Events, events.Event{Type: events.RefundCompleted, OrderID: order.ID, UserID: order.UserID, Amount: order.RefundAmount})
		return true, nil
	case gateway.RefundFailed:
		return false, &domain.GatewayError{Op: "refund_status", Err: fmt.Errorf("refund %s failed at provider", order.GatewayRefundRef)}
	}
	return false, nil
}

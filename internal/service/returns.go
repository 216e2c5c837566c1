package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/google/uuid"
)

// Workflow runs return and exchange requests on delivered orders. The request row and
// the order's ActiveProcess always move together in one transaction.
type Workflow struct {
	Repo    *repo.GormRepo
	Refunds *RefundOrchestrator
	Events  events.Publisher
	Now     func() time.Time
}

func (w *Workflow) RequestReturn(ctx context.Context, actor Actor, orderID uuid.UUID, req transport.CreateRequestRequest) (*models.ReturnRequest, error) {
	rr := &models.ReturnRequest{}
	if err := w.open(ctx, actor, orderID, domain.ProcessReturn, req, &rr.RequestBase, rr); err != nil {
		return nil, err
	}
	return rr, nil
}

func (w *Workflow) RequestExchange(ctx context.Context, actor Actor, orderID uuid.UUID, req transport.CreateRequestRequest) (*models.ExchangeRequest, error) {
	er := &models.ExchangeRequest{NewSize: req.NewSize, NewColor: req.NewColor}
	if err := w.open(ctx, actor, orderID, domain.ProcessExchange, req, &er.RequestBase, er); err != nil {
		return nil, err
	}
	return er, nil
}

func (w *Workflow) open(ctx context.Context, actor Actor, orderID uuid.UUID, kind domain.ProcessKind, req transport.CreateRequestRequest, base *models.RequestBase, row any) error {
	order, err := w.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != actor.UserID {
		return fmt.Errorf("%w: order belongs to another user", domain.ErrForbidden)
	}
	target, _ := domain.OrderStatusFor(kind, domain.RequestRequested)
	if order.Status != domain.StatusDelivered {
		return &domain.TransitionError{From: string(order.Status), To: string(target)}
	}

	base.OrderID = order.ID
	base.UserID = order.UserID
	base.Reason = req.Reason
	base.Status = domain.RequestRequested

	from := order.Status
	err = w.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.CreateRequest(ctx, row); err != nil {
			return err
		}
		order.Status = target
		order.Process = domain.ActiveProcess{Kind: kind, State: domain.RequestRequested}
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return err
	}

	typ := events.ReturnRequested
	if kind == domain.ProcessExchange {
		typ = events.ExchangeRequested
	}
	publish(ctx, w.Events, events.Event{Type: typ, OrderID: order.ID, UserID: order.UserID})
	statusChanged(ctx, w.Events, order, string(from))
	return nil
}

func (w *Workflow) load(ctx context.Context, kind domain.ProcessKind, requestID uuid.UUID) (*models.RequestBase, *models.Order, error) {
	req, err := w.Repo.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, nil, err
	}
	order, err := w.Repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return req, order, nil
}

// loadForOrder resolves the order's active request for the admin status endpoint.
func (w *Workflow) loadForOrder(ctx context.Context, order *models.Order, kind domain.ProcessKind) (*models.RequestBase, error) {
	if !order.Process.Active() {
		return nil, fmt.Errorf("%w: order has no return or exchange in progress", domain.ErrValidation)
	}
	if kind == domain.ProcessNone {
		kind = order.Process.Kind
	}
	if kind != order.Process.Kind {
		return nil, &domain.TransitionError{From: string(order.Process.State), To: string(kind)}
	}
	return w.Repo.GetRequestByOrder(ctx, kind, order.ID)
}

func (w *Workflow) Review(ctx context.Context, kind domain.ProcessKind, requestID uuid.UUID, action domain.ReviewAction, note string) (*models.RequestBase, error) {
	req, order, err := w.load(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if err := w.review(ctx, kind, req, order, action, note); err != nil {
		return nil, err
	}
	return req, nil
}

func (w *Workflow) review(ctx context.Context, kind domain.ProcessKind, req *models.RequestBase, order *models.Order, action domain.ReviewAction, note string) error {
	target := action.Target()
	if req.Status == target {
		return nil
	}
	if req.Status != domain.RequestRequested {
		return &domain.TransitionError{From: string(req.Status), To: string(target)}
	}
	orderTarget, _ := domain.OrderStatusFor(kind, target)
	if err := domain.CheckTransition(order.Status, orderTarget); err != nil {
		return err
	}

	from := order.Status
	persist := func(tx *repo.GormRepo) error {
		if err := tx.UpdateRequestStatus(ctx, kind, req, target, note); err != nil {
			return err
		}
		order.Status = orderTarget
		order.Process = domain.ActiveProcess{Kind: kind, State: target}
		return tx.UpdateOrder(ctx, order)
	}

	var err error
	if kind == domain.ProcessReturn && action == domain.ActionApprove {
		err = w.Refunds.RefundReturn(ctx, order, persist)
	} else {
		err = w.Repo.Transaction(ctx, persist)
	}
	if err != nil {
		return err
	}

	publish(ctx, w.Events, events.Event{Type: events.RequestStatusChange, OrderID: order.ID, UserID: order.UserID, To: string(target)})
	statusChanged(ctx, w.Events, order, string(from))
	return nil
}

// Advance moves a request exactly one step along its post-approval progression.
// An empty target means the next step.
func (w *Workflow) Advance(ctx context.Context, kind domain.ProcessKind, requestID uuid.UUID, target domain.RequestStatus) (*models.RequestBase, error) {
	req, order, err := w.load(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if err := w.advance(ctx, kind, req, order, target); err != nil {
		return nil, err
	}
	return req, nil
}

func (w *Workflow) advance(ctx context.Context, kind domain.ProcessKind, req *models.RequestBase, order *models.Order, target domain.RequestStatus) error {
	if target == domain.RequestNone {
		next, ok := domain.NextStep(kind, req.Status)
		if !ok {
			return fmt.Errorf("%w: %s request in %s has no next step", domain.ErrValidation, kind, req.Status)
		}
		target = next
	}
	if req.Status == target {
		return nil
	}
	if err := domain.CheckStep(kind, req.Status, target); err != nil {
		return err
	}
	return w.moveTo(ctx, kind, req, order, target)
}

// Complete jumps an approved request to its final step and closes the order.
func (w *Workflow) Complete(ctx context.Context, kind domain.ProcessKind, requestID uuid.UUID) (*models.RequestBase, error) {
	req, order, err := w.load(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if err := w.complete(ctx, kind, req, order); err != nil {
		return nil, err
	}
	return req, nil
}

func (w *Workflow) complete(ctx context.Context, kind domain.ProcessKind, req *models.RequestBase, order *models.Order) error {
	final := domain.FinalStep(kind)
	if req.Status == final {
		return nil
	}
	if _, ok := domain.NextStep(kind, req.Status); !ok {
		return &domain.TransitionError{From: string(req.Status), To: string(final)}
	}
	return w.moveTo(ctx, kind, req, order, final)
}

func (w *Workflow) moveTo(ctx context.Context, kind domain.ProcessKind, req *models.RequestBase, order *models.Order, target domain.RequestStatus) error {
	final := target == domain.FinalStep(kind)
	if kind == domain.ProcessReturn && final &&
		order.RefundMethod != domain.RefundNone && order.RefundStatus != domain.RefundStatusCompleted {
		return fmt.Errorf("%w: refund for order %s is not completed", domain.ErrConflict, order.ID)
	}

	from := order.Status
	if final {
		orderTarget, _ := domain.OrderStatusFor(kind, target)
		if err := domain.CheckTransition(order.Status, orderTarget); err != nil {
			return err
		}
		order.Status = orderTarget
		order.CompletedAt = timePtr(clock(w.Now).now())
	}

	err := w.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.UpdateRequestStatus(ctx, kind, req, target, ""); err != nil {
			return err
		}
		order.Process = domain.ActiveProcess{Kind: kind, State: target}
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return err
	}

	publish(ctx, w.Events, events.Event{Type: events.RequestStatusChange, OrderID: order.ID, UserID: order.UserID, To: string(target)})
	if from != order.Status {
		statusChanged(ctx, w.Events, order, string(from))
	}
	return nil
}

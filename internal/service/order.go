package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/catalog"
	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/gateway"
	"github.com/Skotchmaster/fulfillment/internal/metrics"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/Skotchmaster/fulfillment/internal/util"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/google/uuid"
)

// OrderService owns the order state machine and routes admin status updates to the
// component responsible for the target.
type OrderService struct {
	Repo            *repo.GormRepo
	Catalog         catalog.Catalog
	Gateway         gateway.Gateway
	Promos          *PromoValidator
	Refunds         *RefundOrchestrator
	Returns         *Workflow
	Events          events.Publisher
	SignatureSecret []byte
	Currency        string
	Now             func() time.Time
}

func (s *OrderService) Place(ctx context.Context, userID uuid.UUID, req transport.PlaceOrderRequest) (*models.Order, error) {
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", domain.ErrValidation)
	}

	var subtotal int64
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
		}
		p, err := s.Catalog.Product(ctx, it.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown product %s", domain.ErrValidation, it.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("price lookup: %w", err)
		}
		line := p.Price * int64(it.Quantity)
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			LineTotal: line,
			Size:      it.Size,
			Color:     it.Color,
		})
		subtotal += line
	}

	var quote *Quote
	var terms *domain.PromoTerms
	if code := domain.NormalizeCode(req.PromoCode); code != "" {
		q, err := s.Promos.Validate(ctx, code, subtotal, userID)
		if err != nil {
			return nil, err
		}
		quote, terms = q, &q.Terms
	}
	totals := domain.ComputeTotals(subtotal, terms)

	order := &models.Order{
		UserID:        userID,
		Status:        method.InitialStatus(),
		PaymentStatus: domain.PaymentPending,
		PaymentMethod: method,
		Subtotal:      totals.Subtotal,
		Shipping:      totals.Shipping,
		Discount:      totals.Discount,
		Total:         totals.Total,
		Items:         items,
	}
	if quote != nil {
		order.PromoCode = quote.Code
	}

	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		// Online orders record usage when the payment is verified.
		if quote != nil && method == domain.PaymentCOD {
			return RecordUsageTx(ctx, tx, userID, quote.Code, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, events.Event{Type: events.OrderPlaced, OrderID: order.ID, UserID: userID, To: string(order.Status), Amount: order.Total})

	if method == domain.PaymentOnline {
		start := time.Now()
		ref, err := s.Gateway.CreateOrder(ctx, order.ID.String(), order.Total, s.Currency)
		metrics.Get().GatewayDuration.WithLabelValues("create_order", metrics.Result(err)).Observe(time.Since(start).Seconds())
		if err != nil {
			logging.FromContext(ctx).Warn("gateway_order_failed", "order_id", order.ID, "amount", order.Total, "error", err)
			return order, &domain.GatewayError{Op: "create_order", Err: err}
		}
		order.GatewayOrderRef = ref
		if err := s.Repo.UpdateOrder(ctx, order); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrderWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(order) {
		return nil, fmt.Errorf("%w: order belongs to another user", domain.ErrForbidden)
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, userID uuid.UUID, page, size int) (*transport.ListResponse[models.Order], error) {
	from, limit := util.Calculate(page, size)
	orders, err := s.Repo.ListOrders(ctx, userID, limit, from)
	if err != nil {
		return nil, err
	}
	total, err := s.Repo.CountOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	return &transport.ListResponse[models.Order]{Items: orders, Page: page, Size: limit, Total: total}, nil
}

// VerifyPayment confirms an online payment reported by the customer's browser. Once the
// signature checks out the capture is always stored. If the order's promo no longer applies
// the payment is refunded in full and the promo rejection is returned.
func (s *OrderService) VerifyPayment(ctx context.Context, actor Actor, req transport.VerifyPaymentRequest) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(order) {
		return nil, fmt.Errorf("%w: order belongs to another user", domain.ErrForbidden)
	}
	if !gateway.VerifySignature(s.SignatureSecret, req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		return nil, fmt.Errorf("%w: invalid payment signature", domain.ErrValidation)
	}
	if order.GatewayOrderRef == "" || order.GatewayOrderRef != req.GatewayOrderID {
		return nil, fmt.Errorf("%w: payment does not belong to this order", domain.ErrValidation)
	}
	if order.PaymentStatus == domain.PaymentPaid {
		if order.GatewayPaymentRef == req.GatewayPaymentID && !order.CancellationPending() {
			return order, nil
		}
		return nil, fmt.Errorf("%w: order already paid", domain.ErrConflict)
	}
	if order.Status != domain.StatusPending || order.PaymentStatus != domain.PaymentPending {
		return nil, &domain.TransitionError{From: string(order.Status), To: string(domain.StatusConfirmed)}
	}

	from := order.Status
	var rejected error
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if order.PromoCode != "" {
			if err := s.Promos.ConfirmTx(ctx, tx, order.UserID, order.PromoCode, order.ID); err != nil {
				if !promoRejected(err) {
					return err
				}
				rejected = err
			}
		}
		order.PaymentStatus = domain.PaymentPaid
		order.GatewayPaymentRef = req.GatewayPaymentID
		if rejected != nil {
			reserveGatewayRefund(order, domain.TriggerCancellation, clock(s.Now).now())
		} else {
			order.Status = domain.StatusConfirmed
		}
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, events.Event{Type: events.PaymentVerified, OrderID: order.ID, UserID: order.UserID, Amount: order.Total})

	if rejected != nil {
		l := logging.FromContext(ctx)
		l.Warn("verify_promo_rejected", "order_id", order.ID, "code", order.PromoCode, "amount", order.Total, "error", rejected)
		publish(ctx, s.Events, events.Event{Type: events.RefundInitiated, OrderID: order.ID, UserID: order.UserID, Amount: order.RefundAmount})
		// On failure the reservation is left for the reconciler.
		if _, err := s.Refunds.reconcileOne(ctx, order); err != nil {
			l.Warn("verify_refund_deferred", "order_id", order.ID, "error", err)
		}
		return nil, rejected
	}
	statusChanged(ctx, s.Events, order, string(from))
	return order, nil
}

// UpdateStatus is the admin status endpoint. The target is parsed into a closed command
// and handed to the state machine, the refund orchestrator or the return workflow.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, req transport.UpdateStatusRequest) (*models.Order, error) {
	cmd, err := domain.ParseAdminCommand(req.Status)
	if err != nil {
		return nil, err
	}
	if cmd.Kind == domain.CommandCancel {
		return s.Refunds.Cancel(ctx, actor, orderID)
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch cmd.Kind {
	case domain.CommandTransition:
		err = s.transition(ctx, order, cmd.Status, domain.Shipment{CourierName: req.CourierName, TrackingID: req.TrackingID})
	case domain.CommandReview, domain.CommandComplete:
		if order.Status == cmd.Status {
			return order, nil
		}
		if err := domain.CheckTransition(order.Status, cmd.Status); err != nil {
			return nil, err
		}
		var rq *models.RequestBase
		if rq, err = s.Returns.loadForOrder(ctx, order, cmd.Process); err != nil {
			return nil, err
		}
		if cmd.Kind == domain.CommandReview {
			err = s.Returns.review(ctx, cmd.Process, rq, order, cmd.Action, req.Note)
		} else {
			err = s.Returns.complete(ctx, cmd.Process, rq, order)
		}
	case domain.CommandAdvance:
		var rq *models.RequestBase
		if rq, err = s.Returns.loadForOrder(ctx, order, cmd.Process); err != nil {
			return nil, err
		}
		err = s.Returns.advance(ctx, order.Process.Kind, rq, order, cmd.Step)
	default:
		err = fmt.Errorf("%w: unsupported status %q", domain.ErrValidation, req.Status)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, target domain.OrderStatus, ship domain.Shipment) error {
	if order.Status == target {
		return nil
	}
	if err := domain.CheckTransition(order.Status, target); err != nil {
		return err
	}
	if order.CancellationPending() {
		return fmt.Errorf("%w: cancellation refund in progress", domain.ErrConflict)
	}

	now := clock(s.Now).now()
	switch target {
	case domain.StatusShipped:
		if !ship.Complete() {
			return fmt.Errorf("%w: courierName and trackingId are required to ship", domain.ErrValidation)
		}
		order.CourierName = ship.CourierName
		order.TrackingID = ship.TrackingID
		order.ShippedAt = timePtr(now)
	case domain.StatusDelivered:
		order.DeliveredAt = timePtr(now)
		// Cash is collected on delivery.
		if order.PaymentMethod == domain.PaymentCOD && order.PaymentStatus == domain.PaymentPending {
			order.PaymentStatus = domain.PaymentPaid
		}
	}

	from := order.Status
	order.Status = target
	if err := s.Repo.UpdateOrder(ctx, order); err != nil {
		return err
	}
	statusChanged(ctx, s.Events, order, string(from))
	return nil
}

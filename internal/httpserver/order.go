package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Svc     *service.OrderService
	Refunds *service.RefundOrchestrator
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "create_order", err)
	}
	var req transport.PlaceOrderRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "create_order", err)
	}

	order, err := h.Svc.Place(ctx, actor.UserID, req)
	if err != nil {
		return fail(l, "create_order", err)
	}

	l.Info("create_order_success", "order_id", order.ID, "total", order.Total, "payment_method", order.PaymentMethod)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "get_orders", err)
	}
	page, size, err := paging(c)
	if err != nil {
		return fail(l, "get_orders", err)
	}

	resp, err := h.Svc.List(ctx, actor.UserID, page, size)
	if err != nil {
		return fail(l, "get_orders", err)
	}

	l.Info("get_orders_success", "count", len(resp.Items))
	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "get_order", err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(l, "get_order", err)
	}

	order, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		return fail(l, "get_order", err)
	}

	l.Info("get_order_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "cancel_order", err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(l, "cancel_order", err)
	}

	order, err := h.Refunds.Cancel(ctx, actor, id)
	if err != nil {
		return fail(l, "cancel_order", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID, "refund_method", order.RefundMethod, "refund_status", order.RefundStatus)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.verify")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "verify_payment", err)
	}
	var req transport.VerifyPaymentRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "verify_payment", err)
	}

	order, err := h.Svc.VerifyPayment(ctx, actor, req)
	if err != nil {
		return fail(l, "verify_payment", err)
	}

	l.Info("verify_payment_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

// UpdateStatus is the admin status endpoint.
func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "update_status", err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return fail(l, "update_status", err)
	}
	var req transport.UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_status", err)
	}

	order, err := h.Svc.UpdateStatus(ctx, actor, id, req)
	if err != nil {
		return fail(l, "update_status", err)
	}

	l.Info("update_status_success", "order_id", order.ID, "status", order.Status)
	return c.JSON(http.StatusOK, order)
}

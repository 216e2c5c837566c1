package httpserver

import (
	"fmt"
	"net/http"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/labstack/echo/v4"
)

// RequestHTTP serves one kind of after-delivery request: returns or exchanges.
type RequestHTTP struct {
	Svc  *service.Workflow
	Kind domain.ProcessKind
}

func (h *RequestHTTP) area() string {
	if h.Kind == domain.ProcessExchange {
		return "exchange"
	}
	return "return"
}

func (h *RequestHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	op := "create_" + h.area()
	l := logging.FromContext(ctx).With("handler", h.area()+"."+op)

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, op, err)
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return fail(l, op, err)
	}
	var req transport.CreateRequestRequest
	if err := bind(c, &req); err != nil {
		return fail(l, op, err)
	}

	var out any
	if h.Kind == domain.ProcessExchange {
		out, err = h.Svc.RequestExchange(ctx, actor, orderID, req)
	} else {
		out, err = h.Svc.RequestReturn(ctx, actor, orderID, req)
	}
	if err != nil {
		return fail(l, op, err)
	}

	l.Info(op+"_success", "order_id", orderID)
	return c.JSON(http.StatusCreated, out)
}

// Review accepts {"action": "approve"} on POST and {"status": "APPROVED"} on PATCH.
func (h *RequestHTTP) Review(c echo.Context) error {
	ctx := c.Request().Context()
	op := "review_" + h.area()
	l := logging.FromContext(ctx).With("handler", h.area()+"."+op)

	id, err := pathID(c, "id")
	if err != nil {
		return fail(l, op, err)
	}
	var req transport.ReviewRequest
	if err := bind(c, &req); err != nil {
		return fail(l, op, err)
	}
	action, err := domain.ParseReviewAction(req.Decision())
	if err != nil {
		return fail(l, op, err)
	}

	rq, err := h.Svc.Review(ctx, h.Kind, id, action, req.Note)
	if err != nil {
		return fail(l, op, err)
	}

	l.Info(op+"_success", "request_id", rq.ID, "order_id", rq.OrderID, "action", action.String())
	return c.JSON(http.StatusOK, rq)
}

func (h *RequestHTTP) Advance(c echo.Context) error {
	ctx := c.Request().Context()
	op := "advance_" + h.area()
	l := logging.FromContext(ctx).With("handler", h.area()+"."+op)

	id, err := pathID(c, "id")
	if err != nil {
		return fail(l, op, err)
	}
	var req transport.AdvanceRequest
	if err := bind(c, &req); err != nil {
		return fail(l, op, err)
	}
	target := domain.RequestNone
	if req.Status != "" {
		st, ok := domain.ParseRequestSubState(req.Status)
		if !ok {
			return fail(l, op, fmt.Errorf("%w: unknown step %q", domain.ErrValidation, req.Status))
		}
		target = st
	}

	rq, err := h.Svc.Advance(ctx, h.Kind, id, target)
	if err != nil {
		return fail(l, op, err)
	}

	l.Info(op+"_success", "request_id", rq.ID, "status", rq.Status)
	return c.JSON(http.StatusOK, rq)
}

func (h *RequestHTTP) Complete(c echo.Context) error {
	ctx := c.Request().Context()
	op := "complete_" + h.area()
	l := logging.FromContext(ctx).With("handler", h.area()+"."+op)

	id, err := pathID(c, "id")
	if err != nil {
		return fail(l, op, err)
	}

	rq, err := h.Svc.Complete(ctx, h.Kind, id)
	if err != nil {
		return fail(l, op, err)
	}

	l.Info(op+"_success", "request_id", rq.ID, "order_id", rq.OrderID)
	return c.JSON(http.StatusOK, rq)
}

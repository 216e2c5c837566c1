package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/labstack/echo/v4"
)

type PromoHTTP struct {
	Svc *service.PromoValidator
}

func (h *PromoHTTP) Validate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "promo.validate")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "validate_promo", err)
	}
	var req transport.ValidatePromoRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "validate_promo", err)
	}

	q, err := h.Svc.Validate(ctx, req.PromoCode, req.Subtotal, actor.UserID)
	if err != nil {
		return fail(l, "validate_promo", err)
	}

	l.Info("validate_promo_success", "code", q.Code, "discount", q.Discount)
	return c.JSON(http.StatusOK, transport.PromoQuote{Code: q.Code, Discount: q.Discount})
}

func (h *PromoHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "promo.create")

	var req transport.CreatePromoRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "create_promo", err)
	}

	p, err := h.Svc.CreatePromo(ctx, req)
	if err != nil {
		return fail(l, "create_promo", err)
	}

	l.Info("create_promo_success", "code", p.Code)
	return c.JSON(http.StatusCreated, p)
}

func (h *PromoHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "promo.update")

	code := c.Param("code")
	var req transport.UpdatePromoRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_promo", err)
	}

	p, err := h.Svc.UpdatePromo(ctx, code, req)
	if err != nil {
		return fail(l, "update_promo", err)
	}

	l.Info("update_promo_success", "code", p.Code, "active", p.IsActive)
	return c.JSON(http.StatusOK, p)
}

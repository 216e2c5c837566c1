package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/fulfillment/internal/transport"
	middleware "github.com/Skotchmaster/fulfillment/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Orders    *OrderHTTP
	Returns   *RequestHTTP
	Exchanges *RequestHTTP
	Promos    *PromoHTTP
	Wallet    *WalletHTTP

	JWTSecret  []byte
	AuthClient middleware.TokenRefresher
	// Ready reports storage health for /health/ready. Nil means always ready.
	Ready func() error
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = transport.NewValidator()
	e.HTTPErrorHandler = errorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)

	api := e.Group("/api/v1", authMW.RequireAuth)
	api.POST("/orders", d.Orders.CreateOrder)
	api.GET("/orders", d.Orders.GetOrders)
	api.GET("/orders/:id", d.Orders.GetOrder)
	api.POST("/orders/:id/cancel", d.Orders.CancelOrder)
	api.POST("/orders/:id/return", d.Returns.Create)
	api.POST("/orders/:id/exchange", d.Exchanges.Create)
	api.POST("/promos/validate", d.Promos.Validate)
	api.POST("/payments/verify", d.Orders.VerifyPayment)
	api.GET("/wallet", d.Wallet.GetWallet)

	admin := e.Group("/api/v1/admin", authMW.RequireAdmin)
	admin.PATCH("/orders/:id/status", d.Orders.UpdateStatus)
	for prefix, h := range map[string]*RequestHTTP{"/returns": d.Returns, "/exchanges": d.Exchanges} {
		admin.PATCH(prefix+"/:id", h.Review)
		admin.POST(prefix+"/:id/review", h.Review)
		admin.POST(prefix+"/:id/advance", h.Advance)
		admin.POST(prefix+"/:id/complete", h.Complete)
	}
	admin.POST("/promos", d.Promos.Create)
	admin.PATCH("/promos/:code", d.Promos.Update)
	admin.POST("/wallet/:userId", d.Wallet.Adjust)
}

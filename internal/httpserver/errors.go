package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/labstack/echo/v4"
)

// statusFor maps the domain error taxonomy onto HTTP. Conflict is checked first
// because conflict errors may also wrap a validation cause.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func reasonFor(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusBadGateway:
		return "payment gateway error"
	}
	return err.Error()
}

// fail logs the failed operation and converts err into the HTTP error returned to echo.
func fail(l *slog.Logger, op string, err error) error {
	status := statusFor(err)
	reason := reasonFor(status, err)
	if status >= http.StatusInternalServerError {
		l.Error(op+"_error", "status", status, "reason", reason, "error", err)
	} else {
		l.Warn(op+"_error", "status", status, "reason", reason, "error", err)
	}
	return echo.NewHTTPError(status, reason)
}

// errorHandler renders every error as {"error": reason}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	reason := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			reason = msg
		} else if status != http.StatusInternalServerError {
			reason = http.StatusText(status)
		}
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, transport.ErrorResponse{Error: reason})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}

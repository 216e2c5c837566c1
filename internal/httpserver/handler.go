package httpserver

import (
	"fmt"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/service"
	middleware "github.com/Skotchmaster/fulfillment/pkg/middleware/auth"
	"github.com/Skotchmaster/fulfillment/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// actorFrom reads the identity stored by the auth middleware.
func actorFrom(c echo.Context) (service.Actor, error) {
	s, ok := c.Get(middleware.ContextUserID).(string)
	if !ok || s == "" {
		return service.Actor{}, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	userID, err := uuid.Parse(s)
	if err != nil {
		return service.Actor{}, fmt.Errorf("%w: invalid user id", domain.ErrUnauthorized)
	}
	role, _ := c.Get(middleware.ContextRole).(string)
	return service.Actor{UserID: userID, Admin: role == tokens.RoleAdmin}, nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return id, nil
}

func paging(c echo.Context) (page, size int, err error) {
	err = echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("size", &size).
		BindError()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid pagination", domain.ErrValidation)
	}
	return page, size, nil
}

// bind decodes and validates the request body.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid body", domain.ErrValidation)
	}
	return c.Validate(req)
}

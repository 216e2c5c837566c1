package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Skotchmaster/fulfillment/pkg/authclient"
	jwthelp "github.com/Skotchmaster/fulfillment/pkg/jwt"
	"github.com/Skotchmaster/fulfillment/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Keys under which the authenticated identity is stored on echo.Context.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

type TokenRefresher interface {
	RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*authclient.RefreshResponse, error)
}

// AutoRefreshMiddleware authenticates the access-token cookie. An expired token is
// exchanged through the auth service once and the new cookies are written back.
type AutoRefreshMiddleware struct {
	JWTSecret  []byte
	AuthClient TokenRefresher
}

// NewAutoRefreshMiddleware builds the cookie auth middleware. A nil refresher disables refresh
// and expired access tokens are rejected.
func NewAutoRefreshMiddleware(secret []byte, authClient TokenRefresher) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{JWTSecret: secret, AuthClient: authClient}
}

type ClaimsCheck func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.guard(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.guard(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != tokens.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *AutoRefreshMiddleware) guard(next echo.HandlerFunc, check ClaimsCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, refreshed, err := m.authenticate(c)
		if err != nil {
			clearAuthCookies(c)
			return err
		}
		if check != nil {
			if err := check(claims); err != nil {
				if refreshed {
					clearAuthCookies(c)
				}
				return err
			}
		}
		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextRole, claims.Role)
		return next(c)
	}
}

// authenticate returns the caller's claims and whether they came from a refresh.
func (m *AutoRefreshMiddleware) authenticate(c echo.Context) (*tokens.AccessClaims, bool, error) {
	access, err := c.Cookie(accessCookie)
	if err != nil || access.Value == "" {
		return nil, false, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	claims, err := tokens.AccessClaimsFromToken(access.Value, m.JWTSecret)
	if err == nil {
		return claims, false, nil
	}
	if !errors.Is(err, jwt.ErrTokenExpired) || m.AuthClient == nil {
		return nil, false, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	refresh, err := c.Cookie(refreshCookie)
	if err != nil || refresh.Value == "" {
		return nil, false, echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}
	resp, err := m.AuthClient.RefreshTokens(c.Request().Context(), refresh.Value, access.Value)
	if err != nil {
		return nil, false, echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
	}
	claims, err = tokens.AccessClaimsFromToken(resp.AccessToken, m.JWTSecret)
	if err != nil {
		return nil, false, echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
	}

	c.SetCookie(jwthelp.CreateCookie(accessCookie, resp.AccessToken, "/", time.Unix(resp.AccessExp, 0)))
	c.SetCookie(jwthelp.CreateCookie(refreshCookie, resp.RefreshToken, "/", time.Unix(resp.RefreshExp, 0)))
	return claims, true, nil
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(jwthelp.DeleteCookie(accessCookie, "/"))
	c.SetCookie(jwthelp.DeleteCookie(refreshCookie, "/"))
}

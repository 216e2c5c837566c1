package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/fulfillment/pkg/authclient"
	"github.com/Skotchmaster/fulfillment/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-jwt-secret")

type fakeRefresher struct {
	resp *authclient.RefreshResponse
	err  error
}

func (f *fakeRefresher) RefreshTokens(context.Context, string, string) (*authclient.RefreshResponse, error) {
	return f.resp, f.err
}

func sign(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	token, err := tokens.SignAccessToken(tokens.AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, secret)
	require.NoError(t, err)
	return token
}

func run(t *testing.T, h echo.MiddlewareFunc, cookies ...*http.Cookie) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	err := h(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return c, err
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	return he.Code
}

func TestRequireAuth_ValidToken(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	c, err := run(t, m.RequireAuth, &http.Cookie{Name: "accessToken", Value: sign(t, "u-1", "user", time.Now().Add(time.Minute))})
	require.NoError(t, err)
	require.Equal(t, "u-1", c.Get(ContextUserID))
	require.Equal(t, "user", c.Get(ContextRole))
}

func TestRequireAuth_MissingCookie(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	_, err := run(t, m.RequireAuth)
	require.Equal(t, http.StatusUnauthorized, httpCode(t, err))
}

func TestRequireAdmin_RejectsUser(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	_, err := run(t, m.RequireAdmin, &http.Cookie{Name: "accessToken", Value: sign(t, "u-1", "user", time.Now().Add(time.Minute))})
	require.Equal(t, http.StatusForbidden, httpCode(t, err))
}

func TestRequireAuth_ExpiredWithoutRefresher(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	_, err := run(t, m.RequireAuth, &http.Cookie{Name: "accessToken", Value: sign(t, "u-1", "user", time.Now().Add(-time.Minute))})
	require.Equal(t, http.StatusUnauthorized, httpCode(t, err))
}

func TestRequireAuth_RefreshesExpiredToken(t *testing.T) {
	fresh := sign(t, "u-2", tokens.RoleAdmin, time.Now().Add(time.Minute))
	m := NewAutoRefreshMiddleware(secret, &fakeRefresher{resp: &authclient.RefreshResponse{
		AccessToken:  fresh,
		RefreshToken: "refresh-2",
		AccessExp:    time.Now().Add(time.Minute).Unix(),
		RefreshExp:   time.Now().Add(time.Hour).Unix(),
	}})

	c, err := run(t, m.RequireAdmin,
		&http.Cookie{Name: "accessToken", Value: sign(t, "u-2", tokens.RoleAdmin, time.Now().Add(-time.Minute))},
		&http.Cookie{Name: "refreshToken", Value: "refresh-1"},
	)
	require.NoError(t, err)
	require.Equal(t, "u-2", c.Get(ContextUserID))
}

func TestRequireAuth_RefreshFailure(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, &fakeRefresher{err: errors.New("down")})
	_, err := run(t, m.RequireAuth,
		&http.Cookie{Name: "accessToken", Value: sign(t, "u-2", "user", time.Now().Add(-time.Minute))},
		&http.Cookie{Name: "refreshToken", Value: "refresh-1"},
	)
	require.Equal(t, http.StatusUnauthorized, httpCode(t, err))
}

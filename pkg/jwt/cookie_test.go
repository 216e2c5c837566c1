package jwt

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCreateCookie(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := CreateCookie("accessToken", "abc", "/", exp)

	assert.Equal(t, "accessToken", c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, exp, c.Expires)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestDeleteCookie(t *testing.T) {
	c := DeleteCookie("refreshToken", "/")

	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.True(t, c.Expires.Before(time.Now()))
	assert.True(t, c.HttpOnly)
}

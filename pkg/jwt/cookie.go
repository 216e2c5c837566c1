package jwt

import (
	"net/http"
	"time"
)

// tokenCookie is the shared shape of every auth cookie: script-inaccessible and HTTPS only.
func tokenCookie(name, value, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	c := tokenCookie(name, value, path)
	c.Expires = expires
	return c
}

// DeleteCookie expires name in the browser immediately.
func DeleteCookie(name, path string) *http.Cookie {
	c := tokenCookie(name, "", path)
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	return c
}

package config

import (
	"errors"
	"fmt"
)

// Require reports every required setting that is empty.
func (c Config) Require() error {
	var errs []error
	missing := func(env string) { errs = append(errs, fmt.Errorf("missing required env %s", env)) }

	if c.DatabaseURL == "" {
		missing("DATABASE_URL")
	}
	if len(c.JWTAccessSecret) == 0 {
		missing("JWT_SECRET")
	}
	if c.CatalogHTTPURL == "" {
		missing("CATALOG_URL")
	}
	if len(c.GatewaySignatureSecret) == 0 {
		missing("GATEWAY_SIGNATURE_SECRET")
	}
	return errors.Join(errs...)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
	ErrGateway      = errors.New("gateway")      // 502
)

// TransitionError reports an illegal move between two states of the same machine.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Transition %s → %s not allowed", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrValidation }

// PromoError carries the first failed promo eligibility check.
type PromoError struct {
	Reason PromoRejection
}

func (e *PromoError) Error() string { return string(e.Reason) }

func (e *PromoError) Is(target error) bool { return target == ErrValidation }

// GatewayError wraps a payment provider failure. The triggering mutation is never persisted.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

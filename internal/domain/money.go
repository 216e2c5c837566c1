package domain

import (
	"strings"
	"time"
)

// Amounts are minor currency units (paise).
const (
	FreeShippingAbove int64 = 1000_00
	StandardShipping  int64 = 50_00
)

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFlat    DiscountType = "FLAT"
)

type PromoRejection string

const (
	PromoInvalidCode   PromoRejection = "INVALID_CODE"
	PromoBelowMinimum  PromoRejection = "BELOW_MINIMUM"
	PromoNotFirstOrder PromoRejection = "NOT_FIRST_ORDER"
	PromoAlreadyUsed   PromoRejection = "ALREADY_USED"
)

// PromoTerms is the subset of a promo code that affects eligibility and amount.
type PromoTerms struct {
	DiscountType   DiscountType
	DiscountValue  int64
	MinOrderValue  int64
	FirstOrderOnly bool
	ExpiresAt      *time.Time
	IsActive       bool
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (t PromoTerms) Usable(now time.Time) bool {
	return t.IsActive && (t.ExpiresAt == nil || !t.ExpiresAt.Before(now))
}

// Discount never exceeds subtotal and is never negative.
func Discount(t PromoTerms, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var d int64
	switch t.DiscountType {
	case DiscountPercent:
		d = subtotal * t.DiscountValue / 100
	case DiscountFlat:
		d = t.DiscountValue
	}
	if d < 0 {
		return 0
	}
	return min(d, subtotal)
}

func Shipping(subtotal int64) int64 {
	if subtotal > FreeShippingAbove {
		return 0
	}
	return StandardShipping
}

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

// ComputeTotals is the only place totals are derived; checkout preview and placement both call it.
func ComputeTotals(subtotal int64, promo *PromoTerms) Totals {
	t := Totals{Subtotal: subtotal, Shipping: Shipping(subtotal)}
	if promo != nil {
		t.Discount = Discount(*promo, subtotal)
	}
	t.Total = t.Subtotal - t.Discount + t.Shipping
	return t
}

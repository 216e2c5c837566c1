package transport

import (
	"time"

	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/google/uuid"
)

type OrderItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity"  validate:"gt=0,lte=100"`
	Size      string    `json:"size,omitempty"  validate:"max=32"`
	Color     string    `json:"color,omitempty" validate:"max=32"`
}

type PlaceOrderRequest struct {
	Items         []OrderItemInput `json:"items"         validate:"required,min=1,dive"`
	PaymentMethod string           `json:"paymentMethod" validate:"required,oneof=COD ONLINE"`
	PromoCode     string           `json:"promoCode,omitempty" validate:"max=64"`
}

// UpdateStatusRequest drives the admin status endpoint. Status may name an order
// status or a return/exchange sub-state.
type UpdateStatusRequest struct {
	Status      string `json:"status"                validate:"required"`
	CourierName string `json:"courierName,omitempty" validate:"max=64"`
	TrackingID  string `json:"trackingId,omitempty"  validate:"max=128"`
	Note        string `json:"note,omitempty"        validate:"max=500"`
}

type CreateRequestRequest struct {
	Reason   string `json:"reason"             validate:"required,min=3,max=500"`
	NewSize  string `json:"newSize,omitempty"  validate:"max=32"`
	NewColor string `json:"newColor,omitempty" validate:"max=32"`
}

// ReviewRequest accepts either {"action":"approve"} or {"status":"APPROVED"}.
type ReviewRequest struct {
	Action string `json:"action,omitempty"`
	Status string `json:"status,omitempty"`
	Note   string `json:"note,omitempty" validate:"max=500"`
}

func (r ReviewRequest) Decision() string {
	if r.Action != "" {
		return r.Action
	}
	return r.Status
}

type AdvanceRequest struct {
	// Status is optional; empty means the next step.
	Status string `json:"status,omitempty"`
}

type ValidatePromoRequest struct {
	PromoCode string `json:"promoCode" validate:"required,max=64"`
	Subtotal  int64  `json:"subtotal"  validate:"gte=0"`
}

type PromoQuote struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
}

type VerifyPaymentRequest struct {
	GatewaySignature string    `json:"gatewaySignature" validate:"required"`
	GatewayOrderID   string    `json:"gatewayOrderId"   validate:"required"`
	GatewayPaymentID string    `json:"gatewayPaymentId" validate:"required"`
	OrderID          uuid.UUID `json:"orderId"          validate:"required"`
}

type CreatePromoRequest struct {
	Code           string     `json:"code"          validate:"required,min=3,max=64"`
	DiscountType   string     `json:"discountType"  validate:"required,oneof=PERCENT FLAT"`
	DiscountValue  int64      `json:"discountValue" validate:"gt=0"`
	MinOrderValue  int64      `json:"minOrderValue" validate:"gte=0"`
	FirstOrderOnly bool       `json:"firstOrderOnly"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	IsActive       *bool      `json:"isActive,omitempty"`
}

type UpdatePromoRequest struct {
	DiscountType   *string    `json:"discountType,omitempty"  validate:"omitempty,oneof=PERCENT FLAT"`
	DiscountValue  *int64     `json:"discountValue,omitempty" validate:"omitempty,gt=0"`
	MinOrderValue  *int64     `json:"minOrderValue,omitempty" validate:"omitempty,gte=0"`
	FirstOrderOnly *bool      `json:"firstOrderOnly,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	IsActive       *bool      `json:"isActive,omitempty"`
}

type WalletAdjustRequest struct {
	Type   string `json:"type"   validate:"required,oneof=CREDIT DEBIT"`
	Amount int64  `json:"amount" validate:"gt=0"`
	Reason string `json:"reason,omitempty" validate:"max=64"`
}

type ListResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type WalletResponse struct {
	UserID       uuid.UUID                              `json:"userId"`
	Balance      int64                                  `json:"balance"`
	Transactions ListResponse[models.WalletTransaction] `json:"transactions"`
}

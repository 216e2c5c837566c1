package models

import (
	"time"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Order struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"userId"`

	Status        domain.OrderStatus   `gorm:"size:32;index;not null" json:"status"`
	PaymentStatus domain.PaymentStatus `gorm:"size:16;not null"       json:"paymentStatus"`
	PaymentMethod domain.PaymentMethod `gorm:"size:16;not null"       json:"paymentMethod"`

	Subtotal  int64  `gorm:"not null" json:"subtotal"`
	Shipping  int64  `gorm:"not null" json:"shipping"`
	Discount  int64  `gorm:"not null" json:"discount"`
	PromoCode string `gorm:"size:64"  json:"promoCode,omitempty"`
	Total     int64  `gorm:"not null" json:"total"`

	GatewayOrderRef   string `gorm:"size:128;index" json:"gatewayOrderRef,omitempty"`
	GatewayPaymentRef string `gorm:"size:128"       json:"gatewayPaymentRef,omitempty"`
	GatewayRefundRef  string `gorm:"size:128"       json:"gatewayRefundRef,omitempty"`

	RefundMethod  domain.RefundMethod  `gorm:"size:32"       json:"refundMethod,omitempty"`
	RefundStatus  domain.RefundStatus  `gorm:"size:16;index" json:"refundStatus,omitempty"`
	RefundAmount  int64                `json:"refundAmount"`
	RefundTrigger domain.RefundTrigger `gorm:"size:16"       json:"refundTrigger,omitempty"`

	// RefundReservedAt is set when a gateway refund is reserved, before the provider is called.
	RefundReservedAt *time.Time `gorm:"index" json:"refundReservedAt,omitempty"`

	Process domain.ActiveProcess `gorm:"embedded;embeddedPrefix:process_" json:"process"`

	CourierName string `gorm:"size:64"  json:"courierName,omitempty"`
	TrackingID  string `gorm:"size:128" json:"trackingId,omitempty"`

	ShippedAt   *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Version guards every update: writers compare-and-set on it.
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *Order) ReturnStatus() domain.RequestStatus   { return o.Process.ReturnStatus() }
func (o *Order) ExchangeStatus() domain.RequestStatus { return o.Process.ExchangeStatus() }

// CancellationPending: a gateway refund for cancellation was reserved but not finalized.
func (o *Order) CancellationPending() bool {
	return o.RefundTrigger == domain.TriggerCancellation &&
		o.RefundStatus == domain.RefundStatusInitiated &&
		o.Status != domain.StatusCancelled
}

// OrderItem is a purchase-time snapshot and is never updated.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null" json:"orderId"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"       json:"productId"`
	Quantity  int       `gorm:"not null;check:quantity>0" json:"quantity"`
	UnitPrice int64     `gorm:"not null"                 json:"unitPrice"`
	LineTotal int64     `gorm:"not null"                 json:"lineTotal"`
	Size      string    `gorm:"size:32"                  json:"size,omitempty"`
	Color     string    `gorm:"size:32"                  json:"color,omitempty"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// RequestBase holds the columns shared by return and exchange requests.
// OrderID is unique: an order can carry at most one request of each kind.
type RequestBase struct {
	ID        uuid.UUID            `gorm:"type:uuid;primaryKey"           json:"id"`
	OrderID   uuid.UUID            `gorm:"type:uuid;uniqueIndex;not null" json:"orderId"`
	UserID    uuid.UUID            `gorm:"type:uuid;index;not null"       json:"userId"`
	Reason    string               `gorm:"size:500;not null"              json:"reason"`
	Status    domain.RequestStatus `gorm:"size:32;not null"               json:"status"`
	AdminNote string               `gorm:"size:500"                       json:"adminNote,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type ReturnRequest struct {
	RequestBase
}

func (r *ReturnRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type ExchangeRequest struct {
	RequestBase
	NewSize  string `gorm:"size:32" json:"newSize,omitempty"`
	NewColor string `gorm:"size:32" json:"newColor,omitempty"`
}

func (r *ExchangeRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

const (
	TableReturnRequests   = "return_requests"
	TableExchangeRequests = "exchange_requests"
)

func (ReturnRequest) TableName() string   { return TableReturnRequests }
func (ExchangeRequest) TableName() string { return TableExchangeRequests }

type PromoCode struct {
	Code           string              `gorm:"primaryKey;size:64" json:"code"`
	DiscountType   domain.DiscountType `gorm:"size:16;not null"   json:"discountType"`
	DiscountValue  int64               `gorm:"not null"           json:"discountValue"`
	MinOrderValue  int64               `gorm:"not null;default:0" json:"minOrderValue"`
	FirstOrderOnly bool                `gorm:"not null;default:false" json:"firstOrderOnly"`
	ExpiresAt      *time.Time          `json:"expiresAt,omitempty"`
	IsActive       bool                `gorm:"not null"               json:"isActive"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func (p *PromoCode) Terms() domain.PromoTerms {
	return domain.PromoTerms{
		DiscountType:   p.DiscountType,
		DiscountValue:  p.DiscountValue,
		MinOrderValue:  p.MinOrderValue,
		FirstOrderOnly: p.FirstOrderOnly,
		ExpiresAt:      p.ExpiresAt,
		IsActive:       p.IsActive,
	}
}

// PromoCodeUsage: at most one row per (user, code), ever.
type PromoCodeUsage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                                json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_promo_usage_user_code" json:"userId"`
	Code      string    `gorm:"size:64;not null;uniqueIndex:idx_promo_usage_user_code"   json:"code"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null"                                  json:"orderId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *PromoCodeUsage) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// User is the local wallet projection of an account owned by the auth service.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WalletBalance int64     `gorm:"not null;default:0"  json:"walletBalance"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type WalletEntryType string

const (
	WalletCredit WalletEntryType = "CREDIT"
	WalletDebit  WalletEntryType = "DEBIT"
)

// WalletTransaction is append-only. Amount is always positive; Type carries the sign.
// (OrderID, Reason) is unique so an order can fund the wallet once per reason.
type WalletTransaction struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"                         json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null"                     json:"userId"`
	OrderID   *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_wallet_order_reason" json:"orderId,omitempty"`
	Amount    int64           `gorm:"not null;check:amount>0"                      json:"amount"`
	Type      WalletEntryType `gorm:"size:8;not null"                              json:"type"`
	Reason    string          `gorm:"size:64;not null;uniqueIndex:idx_wallet_order_reason" json:"reason"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (w *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

func (w WalletTransaction) Signed() int64 {
	if w.Type == WalletDebit {
		return -w.Amount
	}
	return w.Amount
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&Order{}, &OrderItem{}, &ReturnRequest{}, &ExchangeRequest{},
		&PromoCode{}, &PromoCodeUsage{}, &User{}, &WalletTransaction{},
	}
}

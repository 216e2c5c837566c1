package domain

type OrderStatus string

const (
	StatusPending           OrderStatus = "PENDING"
	StatusConfirmed         OrderStatus = "CONFIRMED"
	StatusProcessing        OrderStatus = "PROCESSING"
	StatusShipped           OrderStatus = "SHIPPED"
	StatusDelivered         OrderStatus = "DELIVERED"
	StatusCancelled         OrderStatus = "CANCELLED"
	StatusReturnRequested   OrderStatus = "RETURN_REQUESTED"
	StatusReturnApproved    OrderStatus = "RETURN_APPROVED"
	StatusReturnRejected    OrderStatus = "RETURN_REJECTED"
	StatusReturned          OrderStatus = "RETURNED"
	StatusExchangeRequested OrderStatus = "EXCHANGE_REQUESTED"
	StatusExchangeApproved  OrderStatus = "EXCHANGE_APPROVED"
	StatusExchangeRejected  OrderStatus = "EXCHANGE_REJECTED"
	StatusExchanged         OrderStatus = "EXCHANGED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:           {StatusConfirmed, StatusCancelled},
	StatusConfirmed:         {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing:        {StatusShipped, StatusCancelled},
	StatusShipped:           {StatusDelivered, StatusReturnRequested},
	StatusDelivered:         {StatusReturnRequested, StatusExchangeRequested},
	StatusReturnRequested:   {StatusReturnApproved, StatusReturnRejected},
	StatusReturnApproved:    {StatusReturned},
	StatusExchangeRequested: {StatusExchangeApproved, StatusExchangeRejected},
	StatusExchangeApproved:  {StatusExchanged},
}

var allOrderStatuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled,
	StatusReturnRequested, StatusReturnApproved, StatusReturnRejected, StatusReturned,
	StatusExchangeRequested, StatusExchangeApproved, StatusExchangeRejected, StatusExchanged,
}

func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), allOrderStatuses...)
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range allOrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusReturned, StatusExchanged, StatusReturnRejected, StatusExchangeRejected:
		return true
	}
	return false
}

// Cancellable reports whether the customer may still cancel.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// CanTransitionTo reports whether to is in the allowed set of s. Same-state is not a transition.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns nil for same-state and allowed moves.
func CheckTransition(from, to OrderStatus) error {
	if from == to || from.CanTransitionTo(to) {
		return nil
	}
	return &TransitionError{From: string(from), To: string(to)}
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCOD, PaymentOnline:
		return PaymentMethod(s), true
	}
	return "", false
}

// InitialStatus: COD orders need no payment step.
func (m PaymentMethod) InitialStatus() OrderStatus {
	if m == PaymentCOD {
		return StatusConfirmed
	}
	return StatusPending
}

type RefundMethod string

const (
	RefundNone           RefundMethod = ""
	RefundOriginalSource RefundMethod = "ORIGINAL_SOURCE"
	RefundWallet         RefundMethod = "WALLET"
)

type RefundStatus string

const (
	RefundStatusNone      RefundStatus = ""
	RefundStatusInitiated RefundStatus = "INITIATED"
	RefundStatusCompleted RefundStatus = "COMPLETED"
)

// RefundTrigger records which workflow owns an outstanding refund.
type RefundTrigger string

const (
	TriggerNone         RefundTrigger = ""
	TriggerCancellation RefundTrigger = "CANCELLATION"
	TriggerReturn       RefundTrigger = "RETURN"
)

// Shipment is required when entering SHIPPED.
type Shipment struct {
	CourierName string
	TrackingID  string
}

func (s *Shipment) Complete() bool {
	return s != nil && s.CourierName != "" && s.TrackingID != ""
}

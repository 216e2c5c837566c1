package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/google/uuid"
)

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.DB.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *GormRepo) GetOrderWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (r *GormRepo) CountOrders(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// UpdateOrder writes every mutable column only if the stored version still equals order.Version.
// On success order.Version is advanced; on a lost race ErrStale is returned and nothing is written.
func (r *GormRepo) UpdateOrder(ctx context.Context, order *models.Order) error {
	next := order.Version + 1
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":              order.Status,
			"payment_status":      order.PaymentStatus,
			"gateway_order_ref":   order.GatewayOrderRef,
			"gateway_payment_ref": order.GatewayPaymentRef,
			"gateway_refund_ref":  order.GatewayRefundRef,
			"refund_method":       order.RefundMethod,
			"refund_status":       order.RefundStatus,
			"refund_amount":       order.RefundAmount,
			"refund_trigger":      order.RefundTrigger,
			"refund_reserved_at":  order.RefundReservedAt,
			"process_kind":        order.Process.Kind,
			"process_state":       order.Process.State,
			"courier_name":        order.CourierName,
			"tracking_id":         order.TrackingID,
			"shipped_at":          order.ShippedAt,
			"delivered_at":        order.DeliveredAt,
			"cancelled_at":        order.CancelledAt,
			"completed_at":        order.CompletedAt,
			"version":             next,
		})
	if res.Error != nil {
		return fmt.Errorf("update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	order.Version = next
	return nil
}

// PendingGatewayRefunds lists orders whose provider refund has not been confirmed yet and
// was reserved no later than reservedBefore. Younger reservations may still have a call in flight.
func (r *GormRepo) PendingGatewayRefunds(ctx context.Context, reservedBefore time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Where("refund_method = ? AND refund_status = ? AND (refund_reserved_at IS NULL OR refund_reserved_at <= ?)",
			domain.RefundOriginalSource, domain.RefundStatusInitiated, reservedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list pending refunds: %w", err)
	}
	return orders, nil
}

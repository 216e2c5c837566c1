package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func requestTable(kind domain.ProcessKind) (string, error) {
	switch kind {
	case domain.ProcessReturn:
		return models.TableReturnRequests, nil
	case domain.ProcessExchange:
		return models.TableExchangeRequests, nil
	}
	return "", fmt.Errorf("%w: unknown request kind %q", domain.ErrValidation, kind)
}

// CreateRequest inserts a *models.ReturnRequest or *models.ExchangeRequest.
// A second request of the same kind for one order is a conflict.
func (r *GormRepo) CreateRequest(ctx context.Context, req any) error {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(req)
	if res.Error != nil {
		return fmt.Errorf("create request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: a request already exists for this order", domain.ErrConflict)
	}
	return nil
}

func (r *GormRepo) GetRequest(ctx context.Context, kind domain.ProcessKind, id uuid.UUID) (*models.RequestBase, error) {
	table, err := requestTable(kind)
	if err != nil {
		return nil, err
	}
	var req models.RequestBase
	if err := r.DB.WithContext(ctx).Table(table).Where("id = ?", id).Take(&req).Error; err != nil {
		return nil, notFound(err, "request")
	}
	return &req, nil
}

func (r *GormRepo) GetRequestByOrder(ctx context.Context, kind domain.ProcessKind, orderID uuid.UUID) (*models.RequestBase, error) {
	table, err := requestTable(kind)
	if err != nil {
		return nil, err
	}
	var req models.RequestBase
	if err := r.DB.WithContext(ctx).Table(table).Where("order_id = ?", orderID).Take(&req).Error; err != nil {
		return nil, notFound(err, "request")
	}
	return &req, nil
}

// UpdateRequestStatus moves req from its loaded status to next, failing with ErrStale if
// another writer moved it first.
func (r *GormRepo) UpdateRequestStatus(ctx context.Context, kind domain.ProcessKind, req *models.RequestBase, next domain.RequestStatus, note string) error {
	table, err := requestTable(kind)
	if err != nil {
		return err
	}
	updates := map[string]any{"status": next, "updated_at": time.Now().UTC()}
	if note != "" {
		updates["admin_note"] = note
	}
	res := r.DB.WithContext(ctx).Table(table).
		Where("id = ? AND status = ?", req.ID, req.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	req.Status = next
	if note != "" {
		req.AdminNote = note
	}
	return nil
}

package repo

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (r *GormRepo) GetPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.DB.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		return nil, notFound(err, "promo code")
	}
	return &promo, nil
}

func (r *GormRepo) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(promo)
	if res.Error != nil {
		return fmt.Errorf("create promo: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: promo code %s exists", domain.ErrConflict, promo.Code)
	}
	return nil
}

func (r *GormRepo) SavePromo(ctx context.Context, promo *models.PromoCode) error {
	if err := r.DB.WithContext(ctx).Save(promo).Error; err != nil {
		return fmt.Errorf("save promo: %w", err)
	}
	return nil
}

func (r *GormRepo) HasPromoUsage(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.PromoCodeUsage{}).
		Where("user_id = ? AND code = ?", userID, code).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check promo usage: %w", err)
	}
	return n > 0, nil
}

// RecordPromoUsage inserts the (user, code) row. It reports false when the pair already exists;
// the unique index is the authoritative single-use guard.
func (r *GormRepo) RecordPromoUsage(ctx context.Context, usage *models.PromoCodeUsage) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "code"}},
			DoNothing: true,
		}).
		Create(usage)
	if res.Error != nil {
		return false, fmt.Errorf("record promo usage: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
